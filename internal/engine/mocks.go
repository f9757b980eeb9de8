package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tothsteve/itc-admin/internal/model"
	"github.com/tothsteve/itc-admin/internal/service"
)

// MockMailSource is a test implementation of the MailSource interface.
type MockMailSource struct {
	Messages    []model.EmailMessage
	Attachments map[string][]byte
	ListErr     error
	DownloadErr error

	downloadCalls []string
	mu            sync.Mutex
}

// NewMockMailSource creates a mail source preloaded with the given messages.
func NewMockMailSource(messages ...model.EmailMessage) *MockMailSource {
	return &MockMailSource{
		Messages:    messages,
		Attachments: make(map[string][]byte),
	}
}

// MessagesWithPDFs returns the preloaded messages.
func (m *MockMailSource) MessagesWithPDFs(_ context.Context, _ time.Time, _ int) ([]model.EmailMessage, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Messages, nil
}

// DownloadAttachment returns canned attachment bytes keyed by attachment ID.
func (m *MockMailSource) DownloadAttachment(_ context.Context, _, attachmentID string) ([]byte, error) {
	m.mu.Lock()
	m.downloadCalls = append(m.downloadCalls, attachmentID)
	m.mu.Unlock()
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	if data, ok := m.Attachments[attachmentID]; ok {
		return data, nil
	}
	return []byte("%PDF-1.4 mock"), nil
}

// DownloadCalls returns the attachment IDs requested so far.
func (m *MockMailSource) DownloadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.downloadCalls))
	copy(calls, m.downloadCalls)
	return calls
}

// MockTextExtractor is a test implementation of the TextExtractor interface.
type MockTextExtractor struct {
	Text string
	Err  error

	callCount int
	mu        sync.Mutex
}

// ExtractText returns the canned text.
func (m *MockTextExtractor) ExtractText(_ []byte) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

// CallCount returns the number of ExtractText calls.
func (m *MockTextExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MockArchiver is a test implementation of the Archiver interface.
type MockArchiver struct {
	Err error

	stored []string
	mu     sync.Mutex
}

// Store records the source path and echoes back a synthetic archive path.
func (m *MockArchiver) Store(_ context.Context, sourcePath, destFolder string) (string, error) {
	m.mu.Lock()
	m.stored = append(m.stored, sourcePath)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if destFolder == "" {
		destFolder = "/archive"
	}
	return destFolder + "/" + sourcePath, nil
}

// Stored returns the source paths passed to Store.
func (m *MockArchiver) Stored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]string, len(m.stored))
	copy(stored, m.stored)
	return stored
}

// MockLedger is a test implementation of the LedgerWriter interface.
type MockLedger struct {
	Err error

	appended []model.ProcessedInvoice
	mu       sync.Mutex
}

// Append records the invoice.
func (m *MockLedger) Append(_ context.Context, invoice *model.ProcessedInvoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.appended = append(m.appended, *invoice)
	return nil
}

// Appended returns a copy of the recorded invoices.
func (m *MockLedger) Appended() []model.ProcessedInvoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	appended := make([]model.ProcessedInvoice, len(m.appended))
	copy(appended, m.appended)
	return appended
}

// MockStorage is an in-memory test implementation of the Storage interface.
type MockStorage struct {
	SaveErr error

	processed map[string]bool
	saved     []model.ProcessedInvoice
	mu        sync.Mutex
}

// NewMockStorage creates an empty in-memory storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{processed: make(map[string]bool)}
}

// MarkProcessed pre-seeds a message ID as already handled.
func (m *MockStorage) MarkProcessed(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[messageID] = true
}

// IsProcessed reports whether the message ID was saved or pre-seeded.
func (m *MockStorage) IsProcessed(_ context.Context, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[messageID], nil
}

// SaveInvoice records the invoice and marks its message as processed.
func (m *MockStorage) SaveInvoice(_ context.Context, invoice *model.ProcessedInvoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saved = append(m.saved, *invoice)
	m.processed[invoice.GmailMessageID] = true
	return nil
}

// GetInvoicesByStatus filters saved invoices by status.
func (m *MockStorage) GetInvoicesByStatus(_ context.Context, status model.ProcessingStatus) ([]model.ProcessedInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ProcessedInvoice
	for _, inv := range m.saved {
		if inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

// GetStats aggregates saved invoices by status.
func (m *MockStorage) GetStats(_ context.Context) (*service.ProcessingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &service.ProcessingStats{ByStatus: make(map[model.ProcessingStatus]int)}
	for _, inv := range m.saved {
		stats.ByStatus[inv.Status]++
		stats.Total++
		switch inv.Status {
		case model.StatusCompleted:
			stats.Completed++
		case model.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// Migrate is a no-op.
func (m *MockStorage) Migrate(_ context.Context) error { return nil }

// Close is a no-op.
func (m *MockStorage) Close() error { return nil }

// Saved returns a copy of the recorded invoices.
func (m *MockStorage) Saved() []model.ProcessedInvoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make([]model.ProcessedInvoice, len(m.saved))
	copy(saved, m.saved)
	return saved
}

// MockPrompter is a test implementation of the Prompter interface.
type MockPrompter struct {
	// Accept returns the input classification unchanged. Otherwise Result
	// is returned; a nil Result rejects every match.
	Accept bool
	Result *model.Classification
	Err    error

	callCount int
	mu        sync.Mutex
}

// ReviewClassification returns the canned review outcome.
func (m *MockPrompter) ReviewClassification(_ context.Context, _ *model.EmailMessage, c *model.Classification) (*model.Classification, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Accept {
		return c, nil
	}
	return m.Result, nil
}

// CallCount returns the number of review calls.
func (m *MockPrompter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
