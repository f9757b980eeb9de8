package rules

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/tothsteve/itc-admin/internal/model"
)

// ExtractAmount pulls the primary (HUF) amount for a classified message.
// emailText is the subject and body concatenated; pdfText is the extracted
// text of one attachment. The matched rule's method decides which sources
// are consulted: "email" and "pdf" try a single source, "both" tries email
// first and falls through to the PDF. Returns false when nothing parses.
func (snap *Snapshot) ExtractAmount(emailText, pdfText string, c *model.Classification) (float64, bool) {
	if c == nil {
		return 0, false
	}

	rule, ok := snap.byName[c.PartnerName]
	if !ok {
		// Rule vanished between classify and extract (reload); fall back.
		rule = &snap.defaultRule
	}
	if rule.AmountExtraction == nil {
		return 0, false
	}
	cfg := rule.AmountExtraction

	if cfg.Method == model.AmountMethodEmail || cfg.Method == model.AmountMethodBoth {
		if amount, ok := snap.extractFirst(emailText, cfg.EmailPatterns, normalizeEmailAmount); ok {
			slog.Debug("extracted amount from email", "partner", c.PartnerName, "amount", amount)
			return amount, true
		}
	}

	if (cfg.Method == model.AmountMethodPDF || cfg.Method == model.AmountMethodBoth) && pdfText != "" {
		if amount, ok := snap.extractFirst(pdfText, cfg.PDFPatterns, normalizePDFAmount); ok {
			slog.Debug("extracted amount from pdf", "partner", c.PartnerName, "amount", amount)
			return amount, true
		}
	}

	slog.Warn("could not extract amount", "partner", c.PartnerName, "method", cfg.Method)
	return 0, false
}

// ExtractEURAmount pulls the secondary EUR amount from PDF text for
// dual-currency invoices. Only rules with an eur_extraction block
// participate; the extraction runs independently of the HUF amount.
func (snap *Snapshot) ExtractEURAmount(pdfText string, c *model.Classification) (float64, bool) {
	if c == nil || pdfText == "" {
		return 0, false
	}

	rule, ok := snap.byName[c.PartnerName]
	if !ok || rule.AmountExtraction == nil || rule.AmountExtraction.EUR == nil {
		return 0, false
	}

	amount, ok := snap.extractFirst(pdfText, rule.AmountExtraction.EUR.PDFPatterns, normalizeEURAmount)
	if ok {
		slog.Debug("extracted EUR amount", "partner", c.PartnerName, "amount", amount)
	}
	return amount, ok
}

// extractFirst applies patterns in declared order and returns the first
// captured value that normalizes to a float. Pattern or parse failures are
// logged and skipped, never propagated.
func (snap *Snapshot) extractFirst(text string, patterns []string, normalize func(string) (float64, error)) (float64, bool) {
	for _, pattern := range patterns {
		re := snap.pattern(pattern)
		if re == nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		amount, err := normalize(m[1])
		if err != nil {
			slog.Warn("amount pattern captured unparseable value", "pattern", pattern, "value", m[1], "error", err)
			continue
		}
		return amount, true
	}
	return 0, false
}

// normalizeEmailAmount parses the Hungarian email format: dot thousands
// separators and a comma decimal, e.g. "1.234.567,89" -> 1234567.89.
func normalizeEmailAmount(s string) (float64, error) {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

// normalizePDFAmount parses the number shapes seen in PDF bodies:
//
//	"3 548.94"  space thousands, dot decimal
//	"21 489,50" space thousands, comma decimal
//	"21.489,50" dot thousands, comma decimal
//
// A space plus exactly one dot selects the first shape; a space otherwise
// selects the second; no space selects the third.
func normalizePDFAmount(s string) (float64, error) {
	if strings.Contains(s, " ") {
		if strings.Count(s, ".") == 1 {
			s = strings.ReplaceAll(s, " ", "")
		} else {
			s = strings.ReplaceAll(s, " ", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
	} else {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}

// normalizeEURAmount parses EUR amounts, which use comma thousands
// separators and a dot decimal, e.g. "1,234.56" -> 1234.56.
func normalizeEURAmount(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}
