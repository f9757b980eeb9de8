package rules

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tothsteve/itc-admin/internal/model"
)

// ExtractDueDate pulls the payment due date from PDF text and returns it in
// YYYYMMDD form. The sentinel unknown partner and rules without a
// due_date_extraction block yield no date. Patterns are tried in order;
// a match whose fields do not form a valid calendar date is discarded and
// the next pattern is tried.
func (snap *Snapshot) ExtractDueDate(pdfText string, c *model.Classification) (string, bool) {
	if c == nil || c.PartnerName == UnknownPartner {
		return "", false
	}

	rule, ok := snap.byName[c.PartnerName]
	if !ok || rule.DueDateExtraction == nil {
		return "", false
	}

	for _, pattern := range rule.DueDateExtraction.PDFPatterns {
		re := snap.pattern(pattern)
		if re == nil {
			continue
		}
		m := re.FindStringSubmatch(pdfText)
		if m == nil {
			continue
		}
		slog.Debug("due date pattern matched", "pattern", pattern, "match", m[0])

		switch len(m) {
		case 4:
			if date, ok := resolveDateGroups(m[1], m[2], m[3]); ok {
				return date, true
			}
		case 2:
			// Single group: already near-final, strip separators as-is.
			date := strings.NewReplacer("-", "", ".", "").Replace(m[1])
			return date, true
		}
	}

	return "", false
}

// resolveDateGroups disambiguates a three-group date match. A 4-digit first
// group means year-month-day. Otherwise, with a 4-digit third group, a
// first value above 12 means day-month-year and a second value above 12
// means month-day-year; when neither exceeds 12 the order is genuinely
// ambiguous and month-day-year is assumed. Anything else falls back to
// day-month-year.
func resolveDateGroups(p1, p2, p3 string) (string, bool) {
	var year, month, day string

	switch {
	case len(p1) == 4:
		year, month, day = p1, p2, p3
	case len(p3) == 4:
		switch {
		case atoi(p1) > 12:
			day, month, year = p1, p2, p3
		case atoi(p2) > 12:
			month, day, year = p1, p2, p3
		default:
			month, day, year = p1, p2, p3
		}
	default:
		day, month, year = p1, p2, p3
	}

	y, m, d := atoi(year), atoi(month), atoi(day)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}
	date := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if date.Year() != y || date.Month() != time.Month(m) || date.Day() != d {
		// time.Date normalizes overflow (e.g. Feb 30); reject those.
		return "", false
	}
	return date.Format("20060102"), true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
