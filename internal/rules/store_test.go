package rules

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothsteve/itc-admin/internal/common"
	"github.com/tothsteve/itc-admin/internal/model"
)

// writeRules writes a rules document to a temp file and returns its path.
func writeRules(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

// loadSnapshot loads a rules document and returns its snapshot.
func loadSnapshot(t *testing.T, doc string) *Snapshot {
	t.Helper()
	store, err := NewStore(writeRules(t, doc), slog.Default())
	require.NoError(t, err)
	return store.Snapshot()
}

func TestNewStoreLoadsDocument(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [
			{"name": "Partner A", "email_patterns": ["a.example"]},
			{"name": "Partner B", "email_patterns": ["b.example"], "invoice_type": "kiadas_penztár"}
		],
		"exclusion_rules": [
			{"name": "Spam", "email_patterns": ["spam@"]}
		],
		"default_rule": {"name": "Unknown Invoice", "filename_prefix": "UNK"},
		"settings": {"base_folder": "/inv", "current_year": 2025}
	}`)

	require.Len(t, snap.Rules(), 2)
	assert.Equal(t, "Partner A", snap.Rules()[0].Name)
	assert.Len(t, snap.Exclusions(), 1)
	assert.Equal(t, "Unknown Invoice", snap.DefaultRule().Name)

	rule, ok := snap.Rule("Partner B")
	require.True(t, ok)
	assert.Equal(t, model.InvoiceTypePersonal, rule.InvoiceType)
}

func TestNewStoreRejectsInvalidRule(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing rule name",
			doc:  `{"rules": [{"email_patterns": ["x"]}]}`,
		},
		{
			name: "unknown invoice type",
			doc:  `{"rules": [{"name": "X", "invoice_type": "bevetels"}]}`,
		},
		{
			name: "exclusion rule without patterns",
			doc:  `{"exclusion_rules": [{"name": "Empty"}]}`,
		},
		{
			name: "malformed json",
			doc:  `{"rules": [`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(writeRules(t, tt.doc), slog.Default())
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestNewStoreMissingFile(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "absent.json"), slog.Default())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestDuplicateRuleNameLastWins(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [
			{"name": "Partner A", "email_patterns": ["old.example"], "filename_prefix": "OLD"},
			{"name": "Partner B", "email_patterns": ["b.example"]},
			{"name": "Partner A", "email_patterns": ["new.example"], "filename_prefix": "NEW"}
		]
	}`)

	// The later definition replaces the earlier one but keeps its
	// declaration position, so evaluation order is stable.
	require.Len(t, snap.Rules(), 2)
	assert.Equal(t, "Partner A", snap.Rules()[0].Name)
	assert.Equal(t, "NEW", snap.Rules()[0].FilenamePrefix)
	assert.Equal(t, []string{"new.example"}, snap.Rules()[0].EmailPatterns)
}

func TestReloadKeepsPreviousSnapshotOnFailure(t *testing.T) {
	path := writeRules(t, `{"rules": [{"name": "Partner A", "email_patterns": ["a"]}]}`)
	store, err := NewStore(path, slog.Default())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"rules": [`), 0o600))
	require.Error(t, store.Reload())

	// Previous table still active.
	_, ok := store.Snapshot().Rule("Partner A")
	assert.True(t, ok)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	path := writeRules(t, `{"rules": [{"name": "Partner A", "email_patterns": ["a"]}]}`)
	store, err := NewStore(path, slog.Default())
	require.NoError(t, err)

	old := store.Snapshot()
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"rules": [{"name": "Partner B", "email_patterns": ["b"]}]}`), 0o600))
	require.NoError(t, store.Reload())

	_, ok := store.Snapshot().Rule("Partner B")
	assert.True(t, ok)
	// The old snapshot is untouched for in-flight work.
	_, ok = old.Rule("Partner A")
	assert.True(t, ok)
}

func TestInvalidPatternSkippedAtLoad(t *testing.T) {
	snap := loadSnapshot(t, `{
		"rules": [{
			"name": "Partner A",
			"email_patterns": ["a.example"],
			"amount_extraction": {"method": "pdf", "pdf_patterns": ["Total: ([0-9"]}
		}]
	}`)

	// The bad regex is dropped, not fatal; extraction simply finds nothing.
	c := snap.Classify("billing@a.example", "", "", 1)
	require.NotNil(t, c)
	_, ok := snap.ExtractAmount("", "Total: 100", c)
	assert.False(t, ok)
}

func TestFolderPath(t *testing.T) {
	snap := loadSnapshot(t, `{
		"settings": {
			"base_folder": "/data/invoices",
			"current_year": 2025,
			"folder_structure": {
				"kiadas_vallalati": "Vallalati",
				"kiadas_penztár": "Penztar"
			}
		}
	}`)

	assert.Equal(t, filepath.Join("/data/invoices", "2025", "Vallalati"),
		snap.FolderPath(model.InvoiceTypeCorporate))
	assert.Equal(t, filepath.Join("/data/invoices", "2025", "Penztar"),
		snap.FolderPath(model.InvoiceTypePersonal))
}

func TestSheetTargetFor(t *testing.T) {
	snap := loadSnapshot(t, `{
		"settings": {
			"current_year": 2025,
			"google_sheets": {
				"spreadsheet_id": "sheet-123",
				"worksheet_template": "Költségek {year}",
				"columns": {
					"kiadas_vallalati": {"target": "Kiadás HUF"},
					"kiadas_penztár": {"target": "Kiadás EUR"}
				}
			}
		}
	}`)

	target := snap.SheetTargetFor(model.InvoiceTypeCorporate, 0)
	assert.Equal(t, "sheet-123", target.SpreadsheetID)
	assert.Equal(t, "Költségek 2025", target.WorksheetName)
	assert.Equal(t, "Kiadás HUF", target.TargetColumn)

	target = snap.SheetTargetFor(model.InvoiceTypePersonal, 2024)
	assert.Equal(t, "Költségek 2024", target.WorksheetName)
	assert.Equal(t, "Kiadás EUR", target.TargetColumn)
}

func TestSheetTargetForDefaults(t *testing.T) {
	snap := loadSnapshot(t, `{"settings": {"current_year": 2025}}`)

	target := snap.SheetTargetFor(model.InvoiceTypeCorporate, 0)
	assert.Equal(t, "2025", target.WorksheetName)
	assert.Equal(t, "Kiadás HUF", target.TargetColumn)
}
