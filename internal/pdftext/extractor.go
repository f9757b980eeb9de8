// Package pdftext extracts plain text from PDF invoice attachments.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

const (
	// maxTextBytes caps extracted text; invoice PDFs are small and the
	// extraction patterns only need the first pages.
	maxTextBytes = 100 * 1024
	// scannedThreshold is the chars-per-page count below which a PDF is
	// considered scanned (image-only) with no usable text layer.
	scannedThreshold = 50
)

// Result holds the outcome of extracting text from one PDF.
type Result struct {
	Text      string
	PageCount int
	IsScanned bool
}

// Extractor implements service.TextExtractor over raw PDF bytes.
type Extractor struct{}

// New returns a PDF text extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractText returns the plain text of a PDF. Scanned PDFs yield an empty
// string rather than an error so the pipeline can continue without amounts.
func (e *Extractor) ExtractText(data []byte) (string, error) {
	result, err := e.Analyze(data)
	if err != nil {
		return "", err
	}
	if result.IsScanned {
		slog.Warn("pdf appears to be scanned, no text layer", "pages", result.PageCount)
		return "", nil
	}
	return result.Text, nil
}

// Analyze extracts text and basic metadata from a PDF. The underlying
// reader panics on some malformed documents, so the whole call is wrapped
// in recover and reported as an error instead.
func (e *Extractor) Analyze(data []byte) (result *Result, err error) {
	result = &Result{PageCount: 1, IsScanned: true}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during pdf analysis: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return result, fmt.Errorf("open pdf reader: %w", err)
	}

	result.PageCount = reader.NumPage()
	if result.PageCount < 1 {
		result.PageCount = 1
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return result, fmt.Errorf("extract plain text: %w", err)
	}

	textBytes, err := io.ReadAll(io.LimitReader(plainText, int64(maxTextBytes)))
	if err != nil {
		return result, fmt.Errorf("read plain text: %w", err)
	}

	result.Text = string(textBytes)
	result.IsScanned = isLikelyScanned(result.Text, result.PageCount)
	return result, nil
}

func isLikelyScanned(text string, pageCount int) bool {
	if pageCount < 1 {
		pageCount = 1
	}
	return len(text)/pageCount < scannedThreshold
}
