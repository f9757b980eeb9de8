package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothsteve/itc-admin/internal/model"
	"github.com/tothsteve/itc-admin/internal/rules"
)

const testRulesDoc = `{
  "rules": [
    {
      "name": "Danubius Zrt.",
      "email_patterns": ["danubius"],
      "invoice_type": "kiadas_vallalati",
      "filename_prefix": "DAN",
      "sheet_description": "Víz számla",
      "amount_extraction": {
        "method": "pdf",
        "pdf_patterns": ["Fizetendő:\\s*([0-9\\s.,]+)\\s*Ft"]
      },
      "due_date_extraction": {
        "pdf_patterns": ["határidő:\\s*(\\d{4})\\.(\\d{2})\\.(\\d{2})"]
      }
    },
    {
      "name": "Hetzner Online",
      "email_patterns": ["hetzner"],
      "subject_patterns": ["invoice"],
      "invoice_type": "kiadas_vallalati",
      "filename_prefix": "HETZ",
      "pdf_filename_patterns": ["Hetzner"]
    }
  ],
  "exclusion_rules": [
    {
      "name": "Newsletters",
      "email_patterns": ["newsletter@"]
    }
  ],
  "default_rule": {
    "name": "Unknown Invoice",
    "filename_prefix": "UNK"
  },
  "settings": {
    "base_folder": "/tmp/invoices",
    "current_year": 2025,
    "folder_structure": {
      "kiadas_vallalati": "Vallalati"
    }
  }
}`

func newTestStore(t *testing.T) *rules.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(testRulesDoc), 0o600))
	store, err := rules.NewStore(path, slog.Default())
	require.NoError(t, err)
	return store
}

type testFixture struct {
	engine    *Engine
	mail      *MockMailSource
	extractor *MockTextExtractor
	archiver  *MockArchiver
	ledger    *MockLedger
	storage   *MockStorage
	prompter  *MockPrompter
}

func newTestFixture(t *testing.T, messages ...model.EmailMessage) *testFixture {
	t.Helper()
	f := &testFixture{
		mail:      NewMockMailSource(messages...),
		extractor: &MockTextExtractor{},
		archiver:  &MockArchiver{},
		ledger:    &MockLedger{},
		storage:   NewMockStorage(),
		prompter:  &MockPrompter{Accept: true},
	}
	cfg := DefaultConfig()
	cfg.DownloadDir = t.TempDir()
	f.engine = New(newTestStore(t), f.mail, f.extractor, f.archiver, f.ledger,
		f.storage, f.prompter, cfg, slog.Default())
	return f
}

func danubiusMessage() model.EmailMessage {
	return model.EmailMessage{
		ID:      "msg-001",
		Sender:  "szamla@danubius.hu",
		Subject: "Havi számla",
		Body:    "Mellékeljük az aktuális számlát.",
		Date:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Attachments: []model.Attachment{
			{Filename: "szamla.pdf", AttachmentID: "att-001", Size: 1024},
		},
	}
}

func TestProcessMessageCompleted(t *testing.T) {
	f := newTestFixture(t)
	f.extractor.Text = "Fizetendő: 21 489,50 Ft\nFizetési határidő: 2025.03.15"

	msg := danubiusMessage()
	stats := &RunStats{}
	require.NoError(t, f.engine.ProcessMessage(context.Background(), &msg, stats))

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, []string{"att-001"}, f.mail.DownloadCalls())

	saved := f.storage.Saved()
	require.Len(t, saved, 1)
	inv := saved[0]
	assert.Equal(t, model.StatusCompleted, inv.Status)
	assert.Equal(t, "Danubius Zrt.", inv.PartnerName)
	assert.Equal(t, "20250315_DAN_szamla.pdf", inv.RenamedFilename)
	assert.Equal(t, "20250315", inv.DueDate)
	assert.Equal(t, "Víz számla", inv.SheetDescription)
	require.NotNil(t, inv.Amount)
	assert.InDelta(t, 21489.50, *inv.Amount, 0.001)

	require.Len(t, f.ledger.Appended(), 1)
	require.Len(t, f.archiver.Stored(), 1)
	assert.Contains(t, f.archiver.Stored()[0], "20250315_DAN_szamla.pdf")
	// Full-score match skips review.
	assert.Equal(t, 0, f.prompter.CallCount())
}

func TestProcessMessageExcluded(t *testing.T) {
	f := newTestFixture(t)
	msg := danubiusMessage()
	msg.Sender = "newsletter@danubius.hu"

	stats := &RunStats{}
	require.NoError(t, f.engine.ProcessMessage(context.Background(), &msg, stats))

	assert.Equal(t, 1, stats.Excluded)
	assert.Empty(t, f.mail.DownloadCalls())
	assert.Empty(t, f.archiver.Stored())
	assert.Empty(t, f.ledger.Appended())

	saved := f.storage.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, model.StatusExcluded, saved[0].Status)
	assert.Contains(t, saved[0].ErrorMessage, "Excluded by rule: Newsletters")
}

func TestProcessMessageNoMatch(t *testing.T) {
	f := newTestFixture(t)
	msg := danubiusMessage()
	msg.Sender = "billing@stranger.example"

	stats := &RunStats{}
	require.NoError(t, f.engine.ProcessMessage(context.Background(), &msg, stats))

	assert.Equal(t, 1, stats.Skipped)
	// No rule reached the confidence floor: the attachment must never be
	// downloaded, archived, or logged to the ledger.
	assert.Empty(t, f.mail.DownloadCalls())
	assert.Empty(t, f.archiver.Stored())
	assert.Empty(t, f.ledger.Appended())

	saved := f.storage.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, model.StatusSkipped, saved[0].Status)
}

func TestProcessMessageAlreadyProcessed(t *testing.T) {
	f := newTestFixture(t)
	msg := danubiusMessage()
	f.storage.MarkProcessed(msg.ID)

	stats := &RunStats{}
	require.NoError(t, f.engine.ProcessMessage(context.Background(), &msg, stats))

	assert.Empty(t, f.mail.DownloadCalls())
	assert.Empty(t, f.storage.Saved())
	assert.Equal(t, 0, stats.Processed)
}

func TestProcessMessageReviewRejected(t *testing.T) {
	f := newTestFixture(t)
	f.prompter.Accept = false
	f.prompter.Result = nil

	// Hetzner declares email and subject patterns; matching only email
	// scores 2/3, below the review threshold.
	msg := danubiusMessage()
	msg.Sender = "billing@hetzner.com"
	msg.Subject = "Ihre Rechnung"

	stats := &RunStats{}
	require.NoError(t, f.engine.ProcessMessage(context.Background(), &msg, stats))

	assert.Equal(t, 1, f.prompter.CallCount())
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, f.ledger.Appended())

	saved := f.storage.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, model.StatusSkipped, saved[0].Status)
	assert.Equal(t, "rejected in review", saved[0].ErrorMessage)
}

func TestProcessMessageAttachmentFilenameFilter(t *testing.T) {
	f := newTestFixture(t)
	msg := model.EmailMessage{
		ID:      "msg-002",
		Sender:  "billing@hetzner.com",
		Subject: "Invoice 2025-03",
		Attachments: []model.Attachment{
			{Filename: "terms.pdf", AttachmentID: "att-terms"},
			{Filename: "Hetzner_2025-03.pdf", AttachmentID: "att-inv"},
		},
	}

	stats := &RunStats{}
	require.NoError(t, f.engine.ProcessMessage(context.Background(), &msg, stats))

	// Only the attachment matching pdf_filename_patterns is processed.
	assert.Equal(t, []string{"att-inv"}, f.mail.DownloadCalls())
	assert.Equal(t, 1, stats.Processed)
}

func TestProcessMessageArchiveFailure(t *testing.T) {
	f := newTestFixture(t)
	f.archiver.Err = assert.AnError

	msg := danubiusMessage()
	stats := &RunStats{}
	require.NoError(t, f.engine.ProcessMessage(context.Background(), &msg, stats))

	saved := f.storage.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, model.StatusPartial, saved[0].Status)
	assert.Contains(t, saved[0].ErrorMessage, "archive copy failed")
	// The ledger row is still written.
	assert.Len(t, f.ledger.Appended(), 1)
}

func TestProcessMessageDueDateFallback(t *testing.T) {
	f := newTestFixture(t)
	f.extractor.Text = "no dates here"

	msg := danubiusMessage()
	stats := &RunStats{}
	require.NoError(t, f.engine.ProcessMessage(context.Background(), &msg, stats))

	saved := f.storage.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, time.Now().Format("20060102"), saved[0].DueDate)
}

func TestProcessSince(t *testing.T) {
	excluded := danubiusMessage()
	excluded.ID = "msg-excl"
	excluded.Sender = "newsletter@danubius.hu"

	unmatched := danubiusMessage()
	unmatched.ID = "msg-skip"
	unmatched.Sender = "billing@stranger.example"

	f := newTestFixture(t, danubiusMessage(), excluded, unmatched)
	f.extractor.Text = "Fizetendő: 3 200 Ft\nFizetési határidő: 2025.04.01"

	var progress int
	f.engine.OnProgress = func(current, total int) { progress = current }

	stats, err := f.engine.ProcessSince(context.Background(), time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Messages)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Excluded)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 3, progress)
}

func TestProcessSinceFetchError(t *testing.T) {
	f := newTestFixture(t)
	f.mail.ListErr = assert.AnError

	_, err := f.engine.ProcessSince(context.Background(), time.Now())
	require.Error(t, err)
}
