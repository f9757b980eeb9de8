package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/tothsteve/itc-admin/internal/gmail"
	"github.com/tothsteve/itc-admin/internal/sheets"
)

// LoadSheetsConfig loads Google Sheets configuration with this precedence:
//  1. Viper configuration (config file or ITC_ env vars)
//  2. Direct environment variables (GOOGLE_SHEETS_*)
//  3. Default values
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	if v := viper.GetString("sheets.service_account_path"); v != "" {
		config.ServiceAccountPath = ExpandPath(v)
	}
	if v := viper.GetString("sheets.client_id"); v != "" {
		config.ClientID = v
	}
	if v := viper.GetString("sheets.client_secret"); v != "" {
		config.ClientSecret = v
	}
	if v := viper.GetString("sheets.refresh_token"); v != "" {
		config.RefreshToken = v
	}
	if v := viper.GetString("sheets.spreadsheet_id"); v != "" {
		config.SpreadsheetID = v
	}
	if v := viper.GetString("sheets.worksheet_name"); v != "" {
		config.WorksheetName = v
	}

	if config.ServiceAccountPath == "" {
		if v := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); v != "" {
			config.ServiceAccountPath = ExpandPath(v)
		}
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if config.RefreshToken == "" {
		config.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if config.SpreadsheetID == "" {
		config.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if config.WorksheetName == "" {
		if v := os.Getenv("GOOGLE_SHEETS_WORKSHEET_NAME"); v != "" {
			config.WorksheetName = v
		} else {
			config.WorksheetName = strconv.Itoa(currentYear())
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadGmailConfig loads Gmail OAuth2 credentials with the same precedence as
// LoadSheetsConfig: Viper first, then GMAIL_* environment variables.
func LoadGmailConfig() (*gmail.Config, error) {
	config := gmail.Config{
		ClientID:     viper.GetString("gmail.client_id"),
		ClientSecret: viper.GetString("gmail.client_secret"),
		RefreshToken: viper.GetString("gmail.refresh_token"),
	}

	if config.ClientID == "" {
		config.ClientID = os.Getenv("GMAIL_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("GMAIL_CLIENT_SECRET")
	}
	if config.RefreshToken == "" {
		config.RefreshToken = os.Getenv("GMAIL_REFRESH_TOKEN")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// RulesPath returns the path of the rules document.
func RulesPath() string {
	if v := viper.GetString("rules.path"); v != "" {
		return ExpandPath(v)
	}
	return "invoice_rules.json"
}

// ArchiveFolder returns the synced folder invoices are archived to.
func ArchiveFolder() string {
	if v := viper.GetString("archive.sync_folder"); v != "" {
		return ExpandPath(v)
	}
	return ExpandPath("~/Dropbox/ITC/Szamlak")
}

func currentYear() int {
	return time.Now().Year()
}

// DatabasePath returns the SQLite database file path.
func DatabasePath() string {
	if v := viper.GetString("database.path"); v != "" {
		return ExpandPath(v)
	}
	return ExpandPath("~/.local/share/itc-admin/invoices.db")
}
