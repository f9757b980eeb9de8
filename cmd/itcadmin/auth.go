package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	gmailapi "google.golang.org/api/gmail/v1"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/tothsteve/itc-admin/internal/config"
	"github.com/tothsteve/itc-admin/internal/gmail"
	"github.com/tothsteve/itc-admin/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google services",
		Long: `Run the OAuth2 consent flow for Gmail and Google Sheets.

A single consent covers both scopes, so one refresh token drives the
whole pipeline. The token is written back to the config file.`,
		RunE: runAuth,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")

	cmd.AddCommand(authTestCmd())

	return cmd
}

func runAuth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	clientID := viper.GetString("gmail.client_id")
	clientSecret := viper.GetString("gmail.client_secret")

	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}

	if clientID == "" {
		clientID = os.Getenv("GMAIL_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GMAIL_CLIENT_SECRET")
	}

	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("OAuth2 credentials not found. Please set gmail.client_id and gmail.client_secret in config or use --client-id and --client-secret flags")
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	tokenFile := filepath.Join(configDir, "itc-admin", "google-token.json")

	slog.Info("Starting Google authentication", "token_file", tokenFile)

	token, err := sheets.AuthenticateInteractive(ctx, sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{gmailapi.GmailReadonlyScope, sheetsapi.SpreadsheetsScope},
		TokenFile:    tokenFile,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	viper.Set("gmail.refresh_token", token.RefreshToken)
	viper.Set("sheets.refresh_token", token.RefreshToken)
	viper.Set("gmail.client_id", clientID)
	viper.Set("gmail.client_secret", clientSecret)

	if err := saveConfig(); err != nil {
		slog.Warn("Failed to update config file with refresh token", "error", err)
		slog.Info("Please add this to your config.yaml manually:")
		slog.Info(fmt.Sprintf("gmail:\n  refresh_token: \"%s\"", token.RefreshToken))
	} else {
		slog.Info("Updated config file with refresh token")
		slog.Info("✅ Authentication successful!")
	}

	slog.Info("Run 'itcadmin process' to start processing invoices.")
	return nil
}

func authTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify the saved Gmail credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			gmailCfg, err := config.LoadGmailConfig()
			if err != nil {
				return fmt.Errorf("gmail configuration: %w", err)
			}
			client, err := gmail.NewClient(ctx, *gmailCfg, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to create gmail client: %w", err)
			}
			if err := client.TestConnection(ctx); err != nil {
				return fmt.Errorf("gmail connection failed: %w", err)
			}
			slog.Info("✅ Gmail connection works")
			return nil
		},
	}
}

func saveConfig() error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configFile = filepath.Join(home, ".config", "itc-admin", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o750); err != nil {
		return err
	}
	return viper.WriteConfigAs(configFile)
}
