package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tothsteve/itc-admin/internal/archive"
	"github.com/tothsteve/itc-admin/internal/cli"
	"github.com/tothsteve/itc-admin/internal/common"
	"github.com/tothsteve/itc-admin/internal/config"
	"github.com/tothsteve/itc-admin/internal/engine"
	"github.com/tothsteve/itc-admin/internal/gmail"
	"github.com/tothsteve/itc-admin/internal/model"
	"github.com/tothsteve/itc-admin/internal/pdftext"
	"github.com/tothsteve/itc-admin/internal/rules"
	"github.com/tothsteve/itc-admin/internal/service"
	"github.com/tothsteve/itc-admin/internal/sheets"
	"github.com/tothsteve/itc-admin/internal/storage"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process new invoice emails",
		Long: `Fetch invoice emails from Gmail, classify them against the partner
rules, extract amounts and due dates from the PDFs, archive the renamed
files, and append each invoice to the Google Sheets ledger.`,
		RunE: runProcess,
	}

	cmd.Flags().IntP("days", "d", 7, "How many days back to search")
	cmd.Flags().Int("max-results", 100, "Maximum messages to fetch in one run")
	cmd.Flags().Bool("no-review", false, "Skip interactive review of low-confidence matches")

	_ = viper.BindPFlag("process.days", cmd.Flags().Lookup("days"))
	_ = viper.BindPFlag("process.max_results", cmd.Flags().Lookup("max-results"))
	_ = viper.BindPFlag("process.no_review", cmd.Flags().Lookup("no-review"))

	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	eng, cleanup, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	days := viper.GetInt("process.days")
	since := time.Now().AddDate(0, 0, -days)

	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Processing invoices from the last %d days...", days)))

	var bar *progressbar.ProgressBar
	eng.OnProgress = func(current, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Processing invoices...[reset]"),
			)
		}
		_ = bar.Set(current)
	}

	stats, err := eng.ProcessSince(ctx, since)
	if err != nil {
		return fmt.Errorf("processing run failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	printRunStats(stats)
	return nil
}

func printRunStats(stats *engine.RunStats) {
	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Messages fetched:  %d", stats.Messages)))
	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Invoices archived: %d", stats.Processed)))
	if stats.Excluded > 0 {
		fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Excluded:          %d", stats.Excluded)))
	}
	if stats.Skipped > 0 {
		fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Skipped:           %d", stats.Skipped)))
	}
	if stats.Failed > 0 {
		fmt.Println(cli.ErrorStyle.Render(fmt.Sprintf("Failed:            %d", stats.Failed)))
	}
}

// buildEngine wires the full pipeline from configuration: rules, Gmail,
// PDF extraction, archive, SQLite, and the Sheets ledger. The returned
// cleanup function closes the storage handle.
func buildEngine(ctx context.Context) (*engine.Engine, func(), error) {
	store, err := rules.NewStore(config.RulesPath(), slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	snap := store.Snapshot()

	// The rules document is the fallback source for the ledger target.
	target := snap.SheetTargetFor(model.InvoiceTypeCorporate, 0)
	if target.SpreadsheetID != "" {
		viper.SetDefault("sheets.spreadsheet_id", target.SpreadsheetID)
	}
	viper.SetDefault("sheets.worksheet_name", target.WorksheetName)

	gmailCfg, err := config.LoadGmailConfig()
	if err != nil {
		return nil, nil, common.NewUserError("Gmail is not configured; run 'itcadmin auth' first", err)
	}
	mail, err := gmail.NewClient(ctx, *gmailCfg, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gmail client: %w", err)
	}

	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, nil, common.NewUserError("Google Sheets is not configured; run 'itcadmin auth' first", err)
	}
	ledger, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sheets writer: %w", err)
	}

	archiver, err := archive.NewManager(config.ArchiveFolder(), slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive folder: %w", err)
	}

	db, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	var prompter *cli.Prompter
	if !viper.GetBool("process.no_review") {
		prompter = cli.NewPrompter(os.Stdin, os.Stdout, liveFolderResolver(store))
	}

	cfg := engine.DefaultConfig()
	if v := viper.GetString("process.download_dir"); v != "" {
		cfg.DownloadDir = config.ExpandPath(v)
	}
	if v := viper.GetFloat64("process.review_threshold"); v > 0 {
		cfg.ReviewThreshold = v
	}
	if v := viper.GetInt("process.max_results"); v > 0 {
		cfg.MaxResults = v
	}

	var promptSvc service.Prompter
	if prompter != nil {
		promptSvc = prompter
	}

	eng := engine.New(store, mail, pdftext.New(), archiver, ledger, db, promptSvc, cfg, slog.Default())
	cleanup := func() { _ = db.Close() }
	return eng, cleanup, nil
}

// liveFolderResolver resolves archive folders from the store's current
// snapshot, so an override during review reflects a rules reload rather
// than the settings loaded at startup.
func liveFolderResolver(store *rules.Store) cli.FolderResolver {
	return func(invoiceType model.InvoiceType) string {
		return store.Snapshot().FolderPath(invoiceType)
	}
}
