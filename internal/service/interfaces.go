// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/tothsteve/itc-admin/internal/model"
)

// MailSource produces incoming messages carrying PDF attachments.
type MailSource interface {
	// MessagesWithPDFs returns messages received since the given time that
	// carry at least one PDF attachment.
	MessagesWithPDFs(ctx context.Context, since time.Time, maxResults int) ([]model.EmailMessage, error)
	// DownloadAttachment fetches the raw bytes of one attachment.
	DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// TextExtractor produces plain text from raw PDF bytes.
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// Archiver copies a renamed invoice file into the synced folder tree.
type Archiver interface {
	// Store copies the file at sourcePath into destFolder and returns the
	// final path, accounting for duplicate-name suffixing. An empty
	// destFolder means the configured default folder.
	Store(ctx context.Context, sourcePath, destFolder string) (string, error)
}

// LedgerWriter appends processed invoice rows to the shared spreadsheet.
type LedgerWriter interface {
	Append(ctx context.Context, invoice *model.ProcessedInvoice) error
}

// ProcessingStats aggregates persisted invoice records by status.
type ProcessingStats struct {
	ByStatus  map[model.ProcessingStatus]int
	Total     int
	Completed int
	Failed    int
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// IsProcessed reports whether an attachment of the message was already
	// handled in a previous run.
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	SaveInvoice(ctx context.Context, invoice *model.ProcessedInvoice) error
	GetInvoicesByStatus(ctx context.Context, status model.ProcessingStatus) ([]model.ProcessedInvoice, error)
	GetStats(ctx context.Context) (*ProcessingStats, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Prompter handles interactive review of low-confidence classifications.
type Prompter interface {
	// ReviewClassification presents a classification for confirmation. The
	// returned classification may carry an overridden invoice type; a nil
	// result means the user rejected the match.
	ReviewClassification(ctx context.Context, msg *model.EmailMessage, c *model.Classification) (*model.Classification, error)
}
