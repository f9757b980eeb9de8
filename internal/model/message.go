package model

import "time"

// Attachment describes one PDF attachment on an incoming message.
type Attachment struct {
	Filename     string
	AttachmentID string
	Size         int64
}

// EmailMessage is the engine's view of one incoming message. The Gmail
// client produces these; the rules engine only reads them.
type EmailMessage struct {
	Date        time.Time
	ID          string
	ThreadID    string
	Sender      string
	Subject     string
	Body        string
	Attachments []Attachment
}

// PDFCount returns the number of PDF attachments on the message.
func (m *EmailMessage) PDFCount() int {
	return len(m.Attachments)
}
