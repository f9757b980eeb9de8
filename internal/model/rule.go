// Package model defines the core data structures for the itc-admin application.
package model

import (
	"fmt"
	"strings"
)

// InvoiceType categorizes an invoice for routing and ledger labeling.
type InvoiceType string

// Invoice type constants. The Hungarian values mirror the synced folder
// names and the ledger's payment-type column.
const (
	InvoiceTypeCorporate InvoiceType = "kiadas_vallalati"
	InvoiceTypePersonal  InvoiceType = "kiadas_penztár"
)

// Valid reports whether the invoice type is one of the known categories.
func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceTypeCorporate, InvoiceTypePersonal:
		return true
	}
	return false
}

// PaymentType returns the ledger payment-type label conventionally paired
// with this invoice type.
func (t InvoiceType) PaymentType() string {
	if t == InvoiceTypePersonal {
		return "Saját"
	}
	return "Vállalati számla"
}

// AmountMethod selects which text sources the amount extractor consults.
type AmountMethod string

// Amount extraction method constants.
const (
	AmountMethodEmail AmountMethod = "email"
	AmountMethodPDF   AmountMethod = "pdf"
	AmountMethodBoth  AmountMethod = "both"
	AmountMethodNone  AmountMethod = "none"
)

// Valid reports whether the method is one of the known extraction methods.
func (m AmountMethod) Valid() bool {
	switch m {
	case AmountMethodEmail, AmountMethodPDF, AmountMethodBoth, AmountMethodNone:
		return true
	}
	return false
}

// EURExtraction configures secondary-currency amount extraction from PDF text.
type EURExtraction struct {
	PDFPatterns []string `json:"pdf_patterns"`
}

// AmountExtraction configures how monetary amounts are pulled from a
// message and its PDF attachments.
type AmountExtraction struct {
	Method        AmountMethod   `json:"method"`
	EmailPatterns []string       `json:"email_patterns,omitempty"`
	PDFPatterns   []string       `json:"pdf_patterns,omitempty"`
	EUR           *EURExtraction `json:"eur_extraction,omitempty"`
}

// DueDateExtraction configures due-date extraction from PDF text. Each
// pattern carries either one capture group (a near-final date string) or
// three (year/month/day in an order resolved at extraction time).
type DueDateExtraction struct {
	PDFPatterns []string `json:"pdf_patterns"`
}

// Rule binds a partner identity to its matching signals, extraction
// patterns, and output routing metadata.
type Rule struct {
	Name                string             `json:"name"`
	EmailPatterns       []string           `json:"email_patterns,omitempty"`
	SubjectPatterns     []string           `json:"subject_patterns,omitempty"`
	BodyPatterns        []string           `json:"body_patterns,omitempty"`
	PDFCountRequired    int                `json:"pdf_count_required,omitempty"`
	InvoiceType         InvoiceType        `json:"invoice_type"`
	PaymentType         string             `json:"payment_type,omitempty"`
	FolderOverride      InvoiceType        `json:"folder_override,omitempty"`
	FilenamePrefix      string             `json:"filename_prefix,omitempty"`
	SheetDescription    string             `json:"sheet_description,omitempty"`
	AmountExtraction    *AmountExtraction  `json:"amount_extraction,omitempty"`
	DueDateExtraction   *DueDateExtraction `json:"due_date_extraction,omitempty"`
	PDFFilenamePatterns []string           `json:"pdf_filename_patterns,omitempty"`
}

// Validate ensures the rule carries usable data. It is called once at load
// time so malformed entries fail the load instead of an arbitrary later
// lookup.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.InvoiceType != "" && !r.InvoiceType.Valid() {
		return fmt.Errorf("rule %q: unknown invoice type %q", r.Name, r.InvoiceType)
	}
	if r.FolderOverride != "" && !r.FolderOverride.Valid() {
		return fmt.Errorf("rule %q: unknown folder override %q", r.Name, r.FolderOverride)
	}
	if r.PDFCountRequired < 0 {
		return fmt.Errorf("rule %q: pdf_count_required cannot be negative", r.Name)
	}
	if ae := r.AmountExtraction; ae != nil {
		if ae.Method == "" {
			ae.Method = AmountMethodBoth
		}
		if !ae.Method.Valid() {
			return fmt.Errorf("rule %q: unknown amount extraction method %q", r.Name, ae.Method)
		}
	}
	return nil
}

// EffectiveInvoiceType returns the rule's invoice type, defaulting to the
// corporate expense category when unset.
func (r *Rule) EffectiveInvoiceType() InvoiceType {
	if r.InvoiceType == "" {
		return InvoiceTypeCorporate
	}
	return r.InvoiceType
}

// EffectivePaymentType returns the payment-type label, falling back to the
// label paired with the invoice type.
func (r *Rule) EffectivePaymentType() string {
	if r.PaymentType != "" {
		return r.PaymentType
	}
	return r.EffectiveInvoiceType().PaymentType()
}

// RoutingType returns the invoice type used for folder resolution, honoring
// the folder override when present.
func (r *Rule) RoutingType() InvoiceType {
	if r.FolderOverride != "" {
		return r.FolderOverride
	}
	return r.EffectiveInvoiceType()
}

// MatchesAttachment reports whether an attachment filename passes the rule's
// optional filename filter. Rules without filename patterns accept every
// attachment.
func (r *Rule) MatchesAttachment(filename string) bool {
	if len(r.PDFFilenamePatterns) == 0 {
		return true
	}
	lower := strings.ToLower(filename)
	for _, pattern := range r.PDFFilenamePatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// ExclusionRule is a veto pattern screened before classification.
type ExclusionRule struct {
	Name            string   `json:"name"`
	EmailPatterns   []string `json:"email_patterns,omitempty"`
	SubjectPatterns []string `json:"subject_patterns,omitempty"`
}

// Validate ensures the exclusion rule is usable.
func (r *ExclusionRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("exclusion rule name is required")
	}
	if len(r.EmailPatterns) == 0 && len(r.SubjectPatterns) == 0 {
		return fmt.Errorf("exclusion rule %q declares no patterns", r.Name)
	}
	return nil
}
