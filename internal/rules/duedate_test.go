package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dueDateSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	return loadSnapshot(t, `{
		"rules": [{
			"name": "Partner A",
			"email_patterns": ["partner-a"],
			"due_date_extraction": {
				"pdf_patterns": [
					"határidő:\\s*(\\d{4})\\.(\\d{2})\\.(\\d{2})",
					"due date:\\s*(\\d{1,2})/(\\d{1,2})/(\\d{4})",
					"esedékes:\\s*(\\d{4}-\\d{2}-\\d{2})"
				]
			}
		}]
	}`)
}

func TestExtractDueDateThreeGroups(t *testing.T) {
	snap := dueDateSnapshot(t)

	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{
			name:  "year first is year-month-day",
			text:  "Fizetési határidő: 2025.03.15",
			want:  "20250315",
			found: true,
		},
		{
			name:  "first group above 12 is day-month-year",
			text:  "Due date: 15/03/2025",
			want:  "20250315",
			found: true,
		},
		{
			name:  "second group above 12 is month-day-year",
			text:  "Due date: 03/15/2025",
			want:  "20250315",
			found: true,
		},
		{
			name:  "ambiguous defaults to month-day-year",
			text:  "Due date: 03/04/2025",
			want:  "20250403",
			found: true,
		},
		{
			name:  "invalid calendar date is skipped",
			text:  "Fizetési határidő: 2025.13.40",
			found: false,
		},
		{
			name:  "overflow day is rejected",
			text:  "Fizetési határidő: 2025.02.30",
			found: false,
		},
		{
			name:  "no pattern matches",
			text:  "Köszönjük a vásárlást.",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, ok := snap.ExtractDueDate(tt.text, classified("Partner A"))
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, date)
			}
		})
	}
}

func TestExtractDueDateSingleGroup(t *testing.T) {
	snap := dueDateSnapshot(t)

	// Single-group patterns just strip separators, no validation.
	date, ok := snap.ExtractDueDate("Esedékes: 2025-03-15", classified("Partner A"))
	require.True(t, ok)
	assert.Equal(t, "20250315", date)
}

func TestExtractDueDateUnknownPartner(t *testing.T) {
	snap := dueDateSnapshot(t)

	_, ok := snap.ExtractDueDate("Fizetési határidő: 2025.03.15", classified(UnknownPartner))
	assert.False(t, ok)
}

func TestExtractDueDateNoExtractionBlock(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [{"name": "Partner B", "email_patterns": ["partner-b"]}]
	}`)

	_, ok := snap.ExtractDueDate("Fizetési határidő: 2025.03.15", classified("Partner B"))
	assert.False(t, ok)
}

func TestResolveDateGroups(t *testing.T) {
	tests := []struct {
		name   string
		p1, p2 string
		p3     string
		want   string
		valid  bool
	}{
		{name: "ymd", p1: "2025", p2: "03", p3: "15", want: "20250315", valid: true},
		{name: "dmy", p1: "15", p2: "03", p3: "2025", want: "20250315", valid: true},
		{name: "mdy", p1: "03", p2: "15", p3: "2025", want: "20250315", valid: true},
		{name: "ambiguous assumes mdy", p1: "03", p2: "04", p3: "2025", want: "20250403", valid: true},
		{name: "no four digit group assumes dmy", p1: "15", p2: "03", p3: "25", want: "00250315", valid: true},
		{name: "month out of range", p1: "2025", p2: "13", p3: "40", valid: false},
		{name: "february overflow", p1: "2025", p2: "02", p3: "30", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveDateGroups(tt.p1, tt.p2, tt.p3)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
