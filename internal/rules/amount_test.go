package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothsteve/itc-admin/internal/model"
)

func classified(partner string) *model.Classification {
	return &model.Classification{PartnerName: partner}
}

func TestExtractAmountFromEmail(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [{
			"name": "Partner A",
			"email_patterns": ["partner-a"],
			"amount_extraction": {
				"method": "email",
				"email_patterns": ["Fizetendő összeg:\\s*([0-9.,]+)\\s*Ft"]
			}
		}]
	}`)

	tests := []struct {
		name  string
		text  string
		want  float64
		found bool
	}{
		{
			name:  "dotted thousands with comma decimal",
			text:  "Fizetendő összeg: 1.234.567,89 Ft",
			want:  1234567.89,
			found: true,
		},
		{
			name:  "plain integer",
			text:  "Fizetendő összeg: 4500 Ft",
			want:  4500,
			found: true,
		},
		{
			name:  "no amount in text",
			text:  "Köszönjük a vásárlást!",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, ok := snap.ExtractAmount(tt.text, "", classified("Partner A"))
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.InDelta(t, tt.want, amount, 0.001)
			}
		})
	}
}

func TestExtractAmountFromPDF(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [{
			"name": "Partner A",
			"email_patterns": ["partner-a"],
			"amount_extraction": {
				"method": "pdf",
				"pdf_patterns": ["Fizetendő:\\s*([0-9\\s.,]+?)\\s*Ft"]
			}
		}]
	}`)

	tests := []struct {
		name string
		text string
		want float64
	}{
		{
			name: "space thousands with dot decimal",
			text: "Fizetendő: 3 548.94 Ft",
			want: 3548.94,
		},
		{
			name: "space thousands with comma decimal",
			text: "Fizetendő: 21 489,50 Ft",
			want: 21489.50,
		},
		{
			name: "dot thousands with comma decimal",
			text: "Fizetendő: 21.489,50 Ft",
			want: 21489.50,
		},
		{
			name: "plain integer",
			text: "Fizetendő: 9600 Ft",
			want: 9600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, ok := snap.ExtractAmount("", tt.text, classified("Partner A"))
			require.True(t, ok)
			assert.InDelta(t, tt.want, amount, 0.001)
		})
	}
}

func TestExtractAmountMethodBoth(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [{
			"name": "Partner A",
			"email_patterns": ["partner-a"],
			"amount_extraction": {
				"method": "both",
				"email_patterns": ["Összeg:\\s*([0-9.,]+)\\s*Ft"],
				"pdf_patterns": ["Fizetendő:\\s*([0-9\\s.,]+?)\\s*Ft"]
			}
		}]
	}`)

	// Email wins when both sources carry an amount.
	amount, ok := snap.ExtractAmount("Összeg: 1.000,50 Ft", "Fizetendő: 2 000 Ft", classified("Partner A"))
	require.True(t, ok)
	assert.InDelta(t, 1000.50, amount, 0.001)

	// Falls through to the PDF when the email has nothing.
	amount, ok = snap.ExtractAmount("köszönjük", "Fizetendő: 2 000 Ft", classified("Partner A"))
	require.True(t, ok)
	assert.InDelta(t, 2000, amount, 0.001)

	// Empty PDF text never consults the PDF patterns.
	_, ok = snap.ExtractAmount("köszönjük", "", classified("Partner A"))
	assert.False(t, ok)
}

func TestExtractAmountMethodNone(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [{
			"name": "Partner A",
			"email_patterns": ["partner-a"],
			"amount_extraction": {"method": "none"}
		}]
	}`)

	_, ok := snap.ExtractAmount("Összeg: 100 Ft", "Összeg: 100 Ft", classified("Partner A"))
	assert.False(t, ok)
}

func TestExtractAmountFallsBackToDefaultRule(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [],
		"default_rule": {
			"name": "Unknown Invoice",
			"amount_extraction": {
				"method": "pdf",
				"pdf_patterns": ["Total:\\s*([0-9\\s.,]+?)\\s*Ft"]
			}
		}
	}`)

	amount, ok := snap.ExtractAmount("", "Total: 5 500 Ft", classified("Vanished Partner"))
	require.True(t, ok)
	assert.InDelta(t, 5500, amount, 0.001)
}

func TestExtractAmountPatternOrder(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [{
			"name": "Partner A",
			"email_patterns": ["partner-a"],
			"amount_extraction": {
				"method": "pdf",
				"pdf_patterns": [
					"Bruttó:\\s*([0-9\\s.,]+?)\\s*Ft",
					"Fizetendő:\\s*([0-9\\s.,]+?)\\s*Ft"
				]
			}
		}]
	}`)

	// The first declared pattern that captures a parseable value wins.
	text := "Fizetendő: 1 000 Ft\nBruttó: 2 000 Ft"
	amount, ok := snap.ExtractAmount("", text, classified("Partner A"))
	require.True(t, ok)
	assert.InDelta(t, 2000, amount, 0.001)
}

func TestExtractEURAmount(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [
			{
				"name": "Hetzner Online",
				"email_patterns": ["hetzner"],
				"amount_extraction": {
					"method": "pdf",
					"pdf_patterns": ["HUF\\s*([0-9\\s.,]+)"],
					"eur_extraction": {"pdf_patterns": ["€\\s*([0-9,.]+)"]}
				}
			},
			{"name": "No EUR", "email_patterns": ["other"]}
		]
	}`)

	amount, ok := snap.ExtractEURAmount("Total: € 1,234.56", classified("Hetzner Online"))
	require.True(t, ok)
	assert.InDelta(t, 1234.56, amount, 0.001)

	// Rules without an eur_extraction block never yield a EUR amount, and
	// there is no default-rule fallback.
	_, ok = snap.ExtractEURAmount("€ 10.00", classified("No EUR"))
	assert.False(t, ok)
	_, ok = snap.ExtractEURAmount("€ 10.00", classified("Vanished Partner"))
	assert.False(t, ok)
}

func TestNormalizePDFAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "3 548.94", want: 3548.94},
		{in: "21 489,50", want: 21489.50},
		{in: "1 234 567,89", want: 1234567.89},
		{in: "21.489,50", want: 21489.50},
		{in: "1.234.567,89", want: 1234567.89},
		{in: "9600", want: 9600},
		{in: "12,5", want: 12.5},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizePDFAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}
