// Package engine orchestrates the invoice intake pipeline: exclusion
// screening, classification, per-attachment extraction, archival, and
// ledger logging.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tothsteve/itc-admin/internal/model"
	"github.com/tothsteve/itc-admin/internal/rules"
	"github.com/tothsteve/itc-admin/internal/service"
)

// Config holds configuration options for the processing engine.
type Config struct {
	// DownloadDir is where attachments land before archival.
	DownloadDir string
	// ReviewThreshold routes accepted classifications below this
	// confidence to the interactive prompter when one is configured.
	ReviewThreshold float64
	// MaxResults caps how many messages one run fetches.
	MaxResults int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DownloadDir:     "downloads",
		ReviewThreshold: 0.75,
		MaxResults:      100,
	}
}

// RunStats summarizes one processing run.
type RunStats struct {
	Messages  int
	Processed int
	Excluded  int
	Skipped   int
	Failed    int
}

// Engine wires the rules engine to its I/O collaborators.
type Engine struct {
	store      *rules.Store
	mail       service.MailSource
	extractor  service.TextExtractor
	archiver   service.Archiver
	ledger     service.LedgerWriter
	storage    service.Storage
	prompter   service.Prompter
	logger     *slog.Logger
	config     Config
	OnProgress func(current, total int)
}

// New creates a processing engine. The prompter may be nil, in which case
// every accepted classification proceeds without review.
func New(store *rules.Store, mail service.MailSource, extractor service.TextExtractor,
	archiver service.Archiver, ledger service.LedgerWriter, storage service.Storage,
	prompter service.Prompter, config Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		mail:      mail,
		extractor: extractor,
		archiver:  archiver,
		ledger:    ledger,
		storage:   storage,
		prompter:  prompter,
		config:    config,
		logger:    logger,
	}
}

// ReloadRules re-reads the rules document. In-flight messages keep the
// snapshot they started with.
func (e *Engine) ReloadRules() error {
	return e.store.Reload()
}

// ProcessSince fetches messages received since the given time and runs each
// through the pipeline. Per-message failures are counted, not fatal.
func (e *Engine) ProcessSince(ctx context.Context, since time.Time) (*RunStats, error) {
	messages, err := e.mail.MessagesWithPDFs(ctx, since, e.config.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	stats := &RunStats{Messages: len(messages)}
	for i := range messages {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if err := e.ProcessMessage(ctx, &messages[i], stats); err != nil {
			e.logger.Error("failed to process message",
				"message_id", messages[i].ID,
				"sender", messages[i].Sender,
				"error", err)
			stats.Failed++
		}
		if e.OnProgress != nil {
			e.OnProgress(i+1, len(messages))
		}
	}

	e.logger.Info("processing run complete",
		"messages", stats.Messages,
		"processed", stats.Processed,
		"excluded", stats.Excluded,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	return stats, nil
}

// ProcessMessage runs one message through exclusion, classification, and
// per-attachment extraction. The exclusion filter always runs before the
// classifier; an excluded message is never classified.
func (e *Engine) ProcessMessage(ctx context.Context, msg *model.EmailMessage, stats *RunStats) error {
	processed, err := e.storage.IsProcessed(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("failed to check processed state: %w", err)
	}
	if processed {
		e.logger.Debug("message already processed", "message_id", msg.ID)
		return nil
	}

	// One snapshot for the whole message, so a concurrent reload cannot
	// change the rules between classification and extraction.
	snap := e.store.Snapshot()

	if excluded, reason := snap.IsExcluded(msg.Sender, msg.Subject); excluded {
		e.logger.Info("message excluded", "message_id", msg.ID, "reason", reason)
		stats.Excluded++
		return e.storage.SaveInvoice(ctx, &model.ProcessedInvoice{
			GmailMessageID: msg.ID,
			Sender:         msg.Sender,
			Subject:        msg.Subject,
			Status:         model.StatusExcluded,
			ErrorMessage:   reason,
			ProcessedAt:    time.Now(),
		})
	}

	classification := snap.Classify(msg.Sender, msg.Subject, msg.Body, msg.PDFCount())
	if classification == nil {
		// No rule reached the confidence floor: no archive copy and no
		// ledger row, only a local record so the message isn't refetched.
		e.logger.Info("no matching rule, skipping", "message_id", msg.ID, "sender", msg.Sender)
		stats.Skipped++
		return e.storage.SaveInvoice(ctx, &model.ProcessedInvoice{
			GmailMessageID: msg.ID,
			Sender:         msg.Sender,
			Subject:        msg.Subject,
			Status:         model.StatusSkipped,
			ProcessedAt:    time.Now(),
		})
	}

	if e.prompter != nil && classification.Confidence < e.config.ReviewThreshold {
		reviewed, err := e.prompter.ReviewClassification(ctx, msg, classification)
		if err != nil {
			return fmt.Errorf("classification review failed: %w", err)
		}
		if reviewed == nil {
			stats.Skipped++
			return e.storage.SaveInvoice(ctx, &model.ProcessedInvoice{
				GmailMessageID: msg.ID,
				Sender:         msg.Sender,
				Subject:        msg.Subject,
				Status:         model.StatusSkipped,
				ErrorMessage:   "rejected in review",
				ProcessedAt:    time.Now(),
			})
		}
		classification = reviewed
	}

	e.logger.Info("classified message",
		"message_id", msg.ID,
		"partner", classification.PartnerName,
		"confidence", classification.Confidence)

	rule, _ := snap.Rule(classification.PartnerName)

	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		if rule != nil && !rule.MatchesAttachment(att.Filename) {
			e.logger.Debug("attachment skipped by filename filter",
				"message_id", msg.ID, "filename", att.Filename)
			continue
		}
		if err := e.processAttachment(ctx, snap, msg, att, classification); err != nil {
			e.logger.Error("failed to process attachment",
				"message_id", msg.ID,
				"filename", att.Filename,
				"error", err)
			stats.Failed++
			if saveErr := e.storage.SaveInvoice(ctx, &model.ProcessedInvoice{
				GmailMessageID: msg.ID,
				Sender:         msg.Sender,
				Subject:        msg.Subject,
				PDFFilename:    att.Filename,
				PartnerName:    classification.PartnerName,
				Status:         model.StatusFailed,
				ErrorMessage:   err.Error(),
				ProcessedAt:    time.Now(),
			}); saveErr != nil {
				e.logger.Error("failed to record attachment failure", "error", saveErr)
			}
			continue
		}
		stats.Processed++
	}

	return nil
}

// processAttachment downloads, extracts, renames, archives, and logs one
// PDF attachment.
func (e *Engine) processAttachment(ctx context.Context, snap *rules.Snapshot,
	msg *model.EmailMessage, att *model.Attachment, classification *model.Classification) error {

	data, err := e.mail.DownloadAttachment(ctx, msg.ID, att.AttachmentID)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	msgDir := filepath.Join(e.config.DownloadDir, msg.ID)
	if err := os.MkdirAll(msgDir, 0o750); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}
	localPath := filepath.Join(msgDir, att.Filename)
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write attachment: %w", err)
	}

	pdfText, err := e.extractor.ExtractText(data)
	if err != nil {
		// Extraction failure leaves the amounts empty, the file still
		// gets archived and logged.
		e.logger.Warn("pdf text extraction failed", "filename", att.Filename, "error", err)
		pdfText = ""
	}

	emailText := msg.Subject + " " + msg.Body

	invoice := &model.ProcessedInvoice{
		GmailMessageID: msg.ID,
		Sender:         msg.Sender,
		Subject:        msg.Subject,
		PDFFilename:    att.Filename,
		PartnerName:    classification.PartnerName,
		PaymentType:    classification.PaymentType,
		Confidence:     classification.Confidence,
		PDFSizeBytes:   int64(len(data)),
		Status:         model.StatusCompleted,
		ProcessedAt:    time.Now(),
	}

	if amount, ok := snap.ExtractAmount(emailText, pdfText, classification); ok {
		invoice.Amount = &amount
	}
	if eur, ok := snap.ExtractEURAmount(pdfText, classification); ok {
		invoice.EURAmount = &eur
	}

	dueDate, ok := snap.ExtractDueDate(pdfText, classification)
	if !ok {
		dueDate = time.Now().Format("20060102")
	}
	invoice.DueDate = dueDate

	if rule, found := snap.Rule(classification.PartnerName); found {
		invoice.SheetDescription = rule.SheetDescription
	}

	renamedPath, err := e.renameWithPrefixes(localPath, snap, classification, dueDate)
	if err != nil {
		e.logger.Warn("could not rename file, keeping original name", "error", err)
		renamedPath = localPath
	}
	invoice.RenamedFilename = filepath.Base(renamedPath)

	archivePath, err := e.archiver.Store(ctx, renamedPath, classification.FolderPath)
	if err != nil {
		invoice.Status = model.StatusPartial
		invoice.ErrorMessage = fmt.Sprintf("archive copy failed: %v", err)
		e.logger.Warn("archive copy failed", "filename", invoice.RenamedFilename, "error", err)
	} else {
		invoice.ArchivePath = archivePath
	}

	if err := e.ledger.Append(ctx, invoice); err != nil {
		invoice.Status = model.StatusPartial
		invoice.ErrorMessage = fmt.Sprintf("ledger append failed: %v", err)
		e.logger.Warn("ledger append failed", "filename", invoice.RenamedFilename, "error", err)
	}

	if err := e.storage.SaveInvoice(ctx, invoice); err != nil {
		return fmt.Errorf("failed to record invoice: %w", err)
	}

	e.logger.Info("attachment processed",
		"filename", invoice.RenamedFilename,
		"partner", invoice.PartnerName,
		"status", invoice.Status)
	return nil
}

// renameWithPrefixes renames a downloaded file to
// YYYYMMDD_<prefix>_<original-name>.
func (e *Engine) renameWithPrefixes(path string, snap *rules.Snapshot,
	classification *model.Classification, dueDate string) (string, error) {

	prefix := "UNK"
	if rule, ok := snap.Rule(classification.PartnerName); ok && rule.FilenamePrefix != "" {
		prefix = rule.FilenamePrefix
	}

	newName := fmt.Sprintf("%s_%s_%s", dueDate, prefix, filepath.Base(path))
	newPath := filepath.Join(filepath.Dir(path), newName)
	if err := os.Rename(path, newPath); err != nil {
		return "", err
	}
	return newPath, nil
}
