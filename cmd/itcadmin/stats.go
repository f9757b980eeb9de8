package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tothsteve/itc-admin/internal/archive"
	"github.com/tothsteve/itc-admin/internal/cli"
	"github.com/tothsteve/itc-admin/internal/config"
	"github.com/tothsteve/itc-admin/internal/model"
	"github.com/tothsteve/itc-admin/internal/storage"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics",
		Long: `Summarize the processed-invoice history by status and report the
archive folder contents.`,
		RunE: runStats,
	}

	cmd.Flags().Bool("failed", false, "List failed invoices instead of the summary")

	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if failed, _ := cmd.Flags().GetBool("failed"); failed {
		return listFailed(cmd, db)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Println(cli.TitleStyle.Render("Processing history"))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, status := range []model.ProcessingStatus{
		model.StatusCompleted, model.StatusPartial, model.StatusFailed,
		model.StatusExcluded, model.StatusSkipped,
	} {
		if n := stats.ByStatus[status]; n > 0 {
			fmt.Fprintf(w, "%s\t%d\n", status, n)
		}
	}
	fmt.Fprintf(w, "TOTAL\t%d\n", stats.Total)
	if err := w.Flush(); err != nil {
		return err
	}

	mgr, err := archive.NewManager(config.ArchiveFolder(), slog.Default())
	if err != nil {
		// Archive problems shouldn't hide the database summary.
		slog.Warn("archive folder unavailable", "error", err)
		return nil
	}
	folder, err := mgr.FolderStats()
	if err != nil {
		slog.Warn("could not read archive folder", "error", err)
		return nil
	}
	fmt.Println()
	fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Archive: %d files (%d PDFs), %.1f MB",
		folder.TotalFiles, folder.PDFFiles, float64(folder.TotalBytes)/(1024*1024))))
	return nil
}

func listFailed(cmd *cobra.Command, db *storage.SQLiteStorage) error {
	invoices, err := db.GetInvoicesByStatus(cmd.Context(), model.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to list failed invoices: %w", err)
	}
	if len(invoices) == 0 {
		fmt.Println(cli.SuccessStyle.Render("No failed invoices."))
		return nil
	}

	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Failed invoices (%d)", len(invoices))))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSENDER\tFILE\tERROR")
	for _, inv := range invoices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			inv.ProcessedAt.Format("2006-01-02"), inv.Sender, inv.PDFFilename, inv.ErrorMessage)
	}
	return w.Flush()
}
