package model

import "time"

// ProcessingStatus records how far one attachment made it through the
// pipeline.
type ProcessingStatus string

// Processing status constants.
const (
	StatusCompleted ProcessingStatus = "COMPLETED"
	StatusPartial   ProcessingStatus = "PARTIAL"
	StatusFailed    ProcessingStatus = "FAILED"
	StatusExcluded  ProcessingStatus = "EXCLUDED"
	StatusSkipped   ProcessingStatus = "SKIPPED"
)

// ProcessedInvoice is the persisted record of one processed attachment. It
// doubles as the ledger row source.
type ProcessedInvoice struct {
	ProcessedAt      time.Time
	GmailMessageID   string
	Sender           string
	Subject          string
	PDFFilename      string
	RenamedFilename  string
	ArchivePath      string
	PartnerName      string
	PaymentType      string
	SheetDescription string
	DueDate          string // YYYYMMDD, empty if none extracted
	ErrorMessage     string
	Status           ProcessingStatus
	PDFSizeBytes     int64
	Amount           *float64 // HUF
	EURAmount        *float64
	Confidence       float64
}
