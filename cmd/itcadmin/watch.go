package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tothsteve/itc-admin/internal/common"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously watch the mailbox for new invoices",
		Long: `Poll Gmail on an interval and process new invoice emails as they
arrive. The rules document is reloaded before each cycle, so rule edits
take effect without a restart. Stop with Ctrl-C.`,
		RunE: runWatch,
	}

	cmd.Flags().Duration("interval", 5*time.Minute, "Polling interval")
	cmd.Flags().IntP("days", "d", 1, "How many days back the first cycle searches")

	_ = viper.BindPFlag("watch.interval", cmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("watch.days", cmd.Flags().Lookup("days"))

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// Watch mode never blocks on a terminal prompt.
	viper.Set("process.no_review", true)

	eng, cleanup, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	interval := viper.GetDuration("watch.interval")
	if interval < time.Minute {
		interval = time.Minute
	}
	since := time.Now().AddDate(0, 0, -viper.GetInt("watch.days"))

	slog.Info("watching mailbox", "interval", interval)

	for {
		cycleStart := time.Now()
		if err := eng.ReloadRules(); err != nil {
			slog.Warn("rules reload failed, previous rules stay active", "error", err)
		}

		sleep := interval
		stats, err := eng.ProcessSince(ctx, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("processing cycle failed", "error", err)
			// Back off so a broken upstream isn't hammered every interval;
			// throttling and dropped connections get an even longer pause.
			sleep = 2 * interval
			if common.IsRetryable(err) {
				sleep = 4 * interval
			}
		} else if stats.Processed > 0 || stats.Failed > 0 {
			slog.Info("processing cycle complete",
				"processed", stats.Processed,
				"excluded", stats.Excluded,
				"skipped", stats.Skipped,
				"failed", stats.Failed)
		}

		// Overlap the next window slightly; dedup keeps reruns harmless.
		since = cycleStart.Add(-time.Hour)

		select {
		case <-ctx.Done():
			fmt.Println("Stopped watching.")
			return nil
		case <-time.After(sleep):
		}
	}
}
