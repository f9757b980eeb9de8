// Package rules implements the invoice classification and extraction rules
// engine: a declarative rule table loaded from a JSON document, an exclusion
// filter, a weighted-score classifier, and locale-aware amount and due-date
// extractors.
package rules

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/tothsteve/itc-admin/internal/common"
	"github.com/tothsteve/itc-admin/internal/model"
)

// UnknownPartner is the sentinel partner name used for manually handled
// invoices that never matched a rule.
const UnknownPartner = "Unknown Invoice"

// SheetTarget describes where a ledger row for an invoice type belongs.
type SheetTarget struct {
	SpreadsheetID string
	WorksheetName string
	TargetColumn  string
}

// ColumnMapping names the ledger column an invoice type's amount goes to.
type ColumnMapping struct {
	Target string `json:"target"`
}

// SheetsSettings is the google_sheets block of the rules document.
type SheetsSettings struct {
	SpreadsheetID     string                              `json:"spreadsheet_id"`
	WorksheetTemplate string                              `json:"worksheet_template"`
	Columns           map[model.InvoiceType]ColumnMapping `json:"columns"`
}

// Settings is the settings block of the rules document.
type Settings struct {
	BaseFolder      string                       `json:"base_folder"`
	CurrentYear     int                          `json:"current_year"`
	FolderStructure map[model.InvoiceType]string `json:"folder_structure"`
	GoogleSheets    SheetsSettings               `json:"google_sheets"`
}

// ruleDocument mirrors the top-level layout of the rules JSON file.
type ruleDocument struct {
	Rules          []model.Rule          `json:"rules"`
	ExclusionRules []model.ExclusionRule `json:"exclusion_rules"`
	DefaultRule    model.Rule            `json:"default_rule"`
	Settings       Settings              `json:"settings"`
}

// Snapshot is an immutable view of one loaded rule table. All engine
// operations run against a snapshot, so in-flight work is unaffected by a
// concurrent reload.
type Snapshot struct {
	byName      map[string]*model.Rule
	compiled    map[string]*regexp.Regexp
	settings    Settings
	defaultRule model.Rule
	ordered     []*model.Rule
	exclusions  []model.ExclusionRule
}

// Store owns the rule table reference. Load failures at construction are
// fatal; a failed Reload keeps the previous snapshot active.
type Store struct {
	snap   atomic.Pointer[Snapshot]
	logger *slog.Logger
	path   string
}

// NewStore loads the rules document at path and returns a store holding it.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}

	snap, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	s.snap.Store(snap)
	return s, nil
}

// Snapshot returns the current rule table. The returned value is immutable
// and safe for concurrent use.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Reload re-reads the rules document and atomically swaps the snapshot. On
// failure the previous snapshot stays active and the error is returned.
func (s *Store) Reload() error {
	snap, err := s.load()
	if err != nil {
		s.logger.Error("rules reload failed, keeping previous rule table", "path", s.path, "error", err)
		return err
	}
	s.snap.Store(snap)
	s.logger.Info("rules reloaded",
		"rules", len(snap.ordered),
		"exclusion_rules", len(snap.exclusions))
	return nil
}

func (s *Store) load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	snap := &Snapshot{
		byName:      make(map[string]*model.Rule, len(doc.Rules)),
		compiled:    make(map[string]*regexp.Regexp),
		settings:    doc.Settings,
		defaultRule: doc.DefaultRule,
		exclusions:  doc.ExclusionRules,
	}

	for i := range doc.Rules {
		rule := &doc.Rules[i]
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if prev, ok := snap.byName[rule.Name]; ok {
			// Last-loaded wins; keep the original declaration position.
			s.logger.Warn("duplicate rule name, later definition wins", "rule", rule.Name)
			*prev = *rule
			snap.byName[rule.Name] = prev
			continue
		}
		snap.byName[rule.Name] = rule
		snap.ordered = append(snap.ordered, rule)
	}

	for i := range doc.ExclusionRules {
		if err := doc.ExclusionRules[i].Validate(); err != nil {
			return nil, err
		}
	}
	if doc.DefaultRule.Name != "" {
		if err := snap.defaultRule.Validate(); err != nil {
			return nil, err
		}
	}

	snap.compilePatterns(s.logger)

	s.logger.Info("loaded processing rules",
		"rules", len(snap.ordered),
		"exclusion_rules", len(snap.exclusions))
	return snap, nil
}

// compilePatterns pre-compiles every extraction regex in the table. Patterns
// that fail to compile are warn-logged and skipped at extraction time rather
// than failing the load.
func (snap *Snapshot) compilePatterns(logger *slog.Logger) {
	add := func(ruleName string, patterns []string) {
		for _, p := range patterns {
			if _, ok := snap.compiled[p]; ok {
				continue
			}
			re, err := regexp.Compile("(?im)" + p)
			if err != nil {
				logger.Warn("skipping invalid extraction pattern", "rule", ruleName, "pattern", p, "error", err)
				continue
			}
			snap.compiled[p] = re
		}
	}

	rules := append([]*model.Rule{}, snap.ordered...)
	rules = append(rules, &snap.defaultRule)
	for _, rule := range rules {
		if ae := rule.AmountExtraction; ae != nil {
			add(rule.Name, ae.EmailPatterns)
			add(rule.Name, ae.PDFPatterns)
			if ae.EUR != nil {
				add(rule.Name, ae.EUR.PDFPatterns)
			}
		}
		if dd := rule.DueDateExtraction; dd != nil {
			add(rule.Name, dd.PDFPatterns)
		}
	}
}

// Rule returns the rule registered under name.
func (snap *Snapshot) Rule(name string) (*model.Rule, bool) {
	r, ok := snap.byName[name]
	return r, ok
}

// Rules returns every rule in declaration order.
func (snap *Snapshot) Rules() []*model.Rule {
	return snap.ordered
}

// Exclusions returns the exclusion rules in declaration order.
func (snap *Snapshot) Exclusions() []model.ExclusionRule {
	return snap.exclusions
}

// DefaultRule returns the fallback rule used when a classified partner's
// rule has vanished between classification and extraction.
func (snap *Snapshot) DefaultRule() *model.Rule {
	return &snap.defaultRule
}

// Settings returns the settings block of the loaded document.
func (snap *Snapshot) Settings() Settings {
	return snap.settings
}

// FolderPath resolves the archive directory for an invoice type:
// <base_folder>/<current_year>/<mapped folder name>.
func (snap *Snapshot) FolderPath(invoiceType model.InvoiceType) string {
	folderName := snap.settings.FolderStructure[invoiceType]
	if folderName == "" {
		folderName = string(invoiceType)
	}
	return filepath.Join(snap.settings.BaseFolder, strconv.Itoa(snap.settings.CurrentYear), folderName)
}

// SheetTargetFor resolves the ledger destination for an invoice type. A zero
// year means the configured current year.
func (snap *Snapshot) SheetTargetFor(invoiceType model.InvoiceType, year int) SheetTarget {
	if year == 0 {
		year = snap.settings.CurrentYear
	}
	gs := snap.settings.GoogleSheets

	worksheet := gs.WorksheetTemplate
	if worksheet == "" {
		worksheet = "{year}"
	}
	worksheet = strings.ReplaceAll(worksheet, "{year}", strconv.Itoa(year))

	target := gs.Columns[invoiceType].Target
	if target == "" {
		target = "Kiadás HUF"
	}

	return SheetTarget{
		SpreadsheetID: gs.SpreadsheetID,
		WorksheetName: worksheet,
		TargetColumn:  target,
	}
}

// pattern returns the compiled regex for a configured pattern, or nil if the
// pattern failed to compile at load time.
func (snap *Snapshot) pattern(p string) *regexp.Regexp {
	return snap.compiled[p]
}
