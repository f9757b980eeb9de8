package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tothsteve/itc-admin/internal/cli"
	"github.com/tothsteve/itc-admin/internal/config"
	"github.com/tothsteve/itc-admin/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the partner rule table",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesValidateCmd())
	cmd.AddCommand(rulesTestCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded partner rules",
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := rules.NewStore(config.RulesPath(), slog.Default())
			if err != nil {
				return err
			}
			snap := store.Snapshot()

			fmt.Println(cli.TitleStyle.Render("Partner rules"))
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tPREFIX\tEMAIL PATTERNS")
			for _, rule := range snap.Rules() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					rule.Name, rule.EffectiveInvoiceType(), rule.FilenamePrefix, len(rule.EmailPatterns))
			}
			return w.Flush()
		},
	}
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the rules document",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := config.RulesPath()
			store, err := rules.NewStore(path, slog.Default())
			if err != nil {
				fmt.Println(cli.ErrorStyle.Render(fmt.Sprintf("✗ %s is invalid", path)))
				return err
			}
			snap := store.Snapshot()
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ %s is valid (%d rules, %d exclusion rules)",
				path, len(snap.Rules()), len(snap.Exclusions()))))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Classify a hypothetical message against the rules",
		Long: `Run the classifier against a hand-supplied sender, subject, and body
to see which partner rule would match and with what confidence.`,
		RunE: runRulesTest,
	}

	cmd.Flags().String("sender", "", "Sender email address")
	cmd.Flags().String("subject", "", "Message subject")
	cmd.Flags().String("body", "", "Message body")
	cmd.Flags().Int("pdf-count", 1, "Number of PDF attachments")
	_ = cmd.MarkFlagRequired("sender")

	return cmd
}

func runRulesTest(cmd *cobra.Command, _ []string) error {
	store, err := rules.NewStore(config.RulesPath(), slog.Default())
	if err != nil {
		return err
	}
	snap := store.Snapshot()

	sender, _ := cmd.Flags().GetString("sender")
	subject, _ := cmd.Flags().GetString("subject")
	body, _ := cmd.Flags().GetString("body")
	pdfCount, _ := cmd.Flags().GetInt("pdf-count")

	if excluded, reason := snap.IsExcluded(sender, subject); excluded {
		fmt.Println(cli.WarningStyle.Render(reason))
		return nil
	}

	c := snap.Classify(sender, subject, body, pdfCount)
	if c == nil {
		fmt.Println(cli.WarningStyle.Render("No rule reached the confidence threshold."))
		return nil
	}

	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Matched: %s", c.PartnerName)))
	fmt.Printf("  Invoice type: %s\n", c.InvoiceType)
	fmt.Printf("  Payment type: %s\n", c.PaymentType)
	fmt.Printf("  Folder:       %s\n", c.FolderPath)
	fmt.Printf("  Confidence:   %.2f\n", c.Confidence)
	for _, p := range c.MatchedPatterns {
		fmt.Println(cli.SubtleStyle.Render("  matched " + p))
	}
	return nil
}
