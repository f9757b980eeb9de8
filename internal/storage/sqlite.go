// Package storage implements the persistence layer using SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tothsteve/itc-admin/internal/model"
	"github.com/tothsteve/itc-admin/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS processed_invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gmail_message_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		pdf_filename TEXT NOT NULL DEFAULT '',
		renamed_filename TEXT NOT NULL DEFAULT '',
		archive_path TEXT NOT NULL DEFAULT '',
		partner_name TEXT NOT NULL DEFAULT '',
		payment_type TEXT NOT NULL DEFAULT '',
		sheet_description TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		pdf_size_bytes INTEGER NOT NULL DEFAULT 0,
		amount REAL,
		eur_amount REAL,
		confidence REAL NOT NULL DEFAULT 0,
		processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_processed_invoices_message
		ON processed_invoices(gmail_message_id);
	CREATE INDEX IF NOT EXISTS idx_processed_invoices_status
		ON processed_invoices(status);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// IsProcessed reports whether any attachment of the message was already
// recorded in a previous run.
func (s *SQLiteStorage) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_invoices WHERE gmail_message_id = ?`,
		messageID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check processed state: %w", err)
	}
	return count > 0, nil
}

// SaveInvoice records one processed attachment.
func (s *SQLiteStorage) SaveInvoice(ctx context.Context, invoice *model.ProcessedInvoice) error {
	if invoice == nil {
		return fmt.Errorf("invoice cannot be nil")
	}
	if invoice.GmailMessageID == "" {
		return fmt.Errorf("invoice gmail_message_id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_invoices (
			gmail_message_id, sender, subject, pdf_filename, renamed_filename,
			archive_path, partner_name, payment_type, sheet_description,
			due_date, status, error_message, pdf_size_bytes, amount,
			eur_amount, confidence, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.GmailMessageID, invoice.Sender, invoice.Subject,
		invoice.PDFFilename, invoice.RenamedFilename, invoice.ArchivePath,
		invoice.PartnerName, invoice.PaymentType, invoice.SheetDescription,
		invoice.DueDate, string(invoice.Status), invoice.ErrorMessage,
		invoice.PDFSizeBytes, invoice.Amount, invoice.EURAmount,
		invoice.Confidence, invoice.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

// GetInvoicesByStatus returns all recorded invoices with the given status.
func (s *SQLiteStorage) GetInvoicesByStatus(ctx context.Context, status model.ProcessingStatus) ([]model.ProcessedInvoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gmail_message_id, sender, subject, pdf_filename,
			renamed_filename, archive_path, partner_name, payment_type,
			sheet_description, due_date, status, error_message,
			pdf_size_bytes, amount, eur_amount, confidence, processed_at
		FROM processed_invoices
		WHERE status = ?
		ORDER BY processed_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invoices []model.ProcessedInvoice
	for rows.Next() {
		var inv model.ProcessedInvoice
		var statusStr string
		if err := rows.Scan(&inv.GmailMessageID, &inv.Sender, &inv.Subject,
			&inv.PDFFilename, &inv.RenamedFilename, &inv.ArchivePath,
			&inv.PartnerName, &inv.PaymentType, &inv.SheetDescription,
			&inv.DueDate, &statusStr, &inv.ErrorMessage, &inv.PDFSizeBytes,
			&inv.Amount, &inv.EURAmount, &inv.Confidence, &inv.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.Status = model.ProcessingStatus(statusStr)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// GetStats aggregates invoice counts by processing status.
func (s *SQLiteStorage) GetStats(ctx context.Context) (*service.ProcessingStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM processed_invoices GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &service.ProcessingStats{
		ByStatus: make(map[model.ProcessingStatus]int),
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.ByStatus[model.ProcessingStatus(status)] = count
		stats.Total += count
	}
	stats.Completed = stats.ByStatus[model.StatusCompleted]
	stats.Failed = stats.ByStatus[model.StatusFailed]
	return stats, rows.Err()
}
