package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tothsteve/itc-admin/internal/common"
	"github.com/tothsteve/itc-admin/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer implements the LedgerWriter interface for Google Sheets. It
// appends one row per processed attachment to the yearly worksheet, whose
// columns are:
//
//	Dátum | Fizetve | Bevétel HUF | Kiadás HUF | Bevétel EUR | Kiadás EUR |
//	Megjegyzés | Link a számlára | (spare)
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets ledger writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// Append implements the LedgerWriter interface.
func (w *Writer) Append(ctx context.Context, invoice *model.ProcessedInvoice) error {
	row := w.buildRow(invoice)

	valueRange := &sheets.ValueRange{
		Values: [][]any{row},
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	rangeStr := fmt.Sprintf("%s!A:I", w.config.WorksheetName)
	err := common.WithRetry(ctx, func() error {
		_, appendErr := w.service.Spreadsheets.Values.Append(w.config.SpreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return appendErr
	}, retryOpts)

	if err != nil {
		return fmt.Errorf("failed to append ledger row: %w", err)
	}

	w.logger.Info("appended ledger row",
		"worksheet", w.config.WorksheetName,
		"partner", invoice.PartnerName,
		"file", invoice.RenamedFilename)
	return nil
}

// buildRow maps an invoice record onto the worksheet's column layout.
func (w *Writer) buildRow(invoice *model.ProcessedInvoice) []any {
	// The ledger's date column carries the due date; fall back to the
	// processing date when no due date was extracted.
	dateValue := time.Now().Format("2006-01-02")
	if len(invoice.DueDate) == 8 {
		if parsed, err := time.Parse("20060102", invoice.DueDate); err == nil {
			dateValue = parsed.Format("2006-01-02")
		}
	}

	// HUF amounts are whole forints in the ledger; EUR keeps decimals.
	var hufValue any = ""
	if invoice.Amount != nil {
		hufValue = int64(*invoice.Amount)
	}
	var eurValue any = ""
	if invoice.EURAmount != nil {
		eurValue = *invoice.EURAmount
	}

	description := invoice.SheetDescription
	if description == "" {
		description = fmt.Sprintf("Email: %s from %s", invoice.PDFFilename, invoice.Sender)
	}

	paymentType := invoice.PaymentType
	if paymentType == "" {
		paymentType = model.InvoiceTypeCorporate.PaymentType()
	}

	return []any{
		dateValue,           // Dátum
		paymentType,         // Fizetve
		"",                  // Bevétel HUF (income, unused for expenses)
		hufValue,            // Kiadás HUF
		"",                  // Bevétel EUR
		eurValue,            // Kiadás EUR
		description,         // Megjegyzés
		invoice.ArchivePath, // Link a számlára
		"",                  // spare
	}
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}
