package sheets

import (
	"context"
	"sync"

	"github.com/tothsteve/itc-admin/internal/model"
)

// MockWriter is a mock implementation of LedgerWriter for testing.
type MockWriter struct {
	AppendFunc      func(ctx context.Context, invoice *model.ProcessedInvoice) error
	AppendedRows    []*model.ProcessedInvoice
	AppendCallCount int
	mu              sync.Mutex
}

// NewMockWriter creates a new mock ledger writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		AppendedRows: make([]*model.ProcessedInvoice, 0),
	}
}

// Append implements the LedgerWriter interface.
func (m *MockWriter) Append(ctx context.Context, invoice *model.ProcessedInvoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCallCount++

	var err error
	if m.AppendFunc != nil {
		err = m.AppendFunc(ctx, invoice)
	}
	if err == nil {
		m.AppendedRows = append(m.AppendedRows, invoice)
	}
	return err
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCallCount = 0
	m.AppendedRows = m.AppendedRows[:0]
}
