// Package testutil provides shared helpers for tests that need a real
// database or canned invoice records.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tothsteve/itc-admin/internal/model"
	"github.com/tothsteve/itc-admin/internal/storage"
)

// SetupTestDB creates a migrated SQLite database in a temp directory and
// registers cleanup with the test.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.Migrate(context.Background()), "failed to migrate test database")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

// Invoice returns a completed invoice record with plausible defaults,
// customized by the given mutators.
func Invoice(t *testing.T, mutate ...func(*model.ProcessedInvoice)) *model.ProcessedInvoice {
	t.Helper()

	amount := 12500.0
	inv := &model.ProcessedInvoice{
		GmailMessageID:  "msg-test-001",
		Sender:          "szamla@partner.hu",
		Subject:         "Számla",
		PDFFilename:     "szamla.pdf",
		RenamedFilename: "20250315_TST_szamla.pdf",
		ArchivePath:     "/archive/2025/Vallalati/20250315_TST_szamla.pdf",
		PartnerName:     "Test Partner",
		PaymentType:     "Vállalati számla",
		DueDate:         "20250315",
		Status:          model.StatusCompleted,
		PDFSizeBytes:    2048,
		Amount:          &amount,
		Confidence:      1.0,
		ProcessedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, m := range mutate {
		m(inv)
	}
	return inv
}
