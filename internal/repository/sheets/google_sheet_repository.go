package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/kisaan/internal/config"
	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// Repository defines the persistence operations supported by the Google Sheets adapter.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// ReportExporter appends one spreadsheet row per inventory report.
type ReportExporter struct {
	repo       Repository
	sheetRange string
}

// NewReportExporter writes report rows into sheetRange through repo.
func NewReportExporter(repo Repository, sheetRange string) *ReportExporter {
	return &ReportExporter{repo: repo, sheetRange: sheetRange}
}

// PublishInventoryReport appends the report as a row.
func (e *ReportExporter) PublishInventoryReport(ctx context.Context, report models.InventoryReport, _ string) error {
	return e.repo.WriteRow(ctx, e.sheetRange, ReportRow(report))
}

// ReportRow lays out a report in the column order of the inventory sheet.
func ReportRow(r models.InventoryReport) []interface{} {
	return []interface{}{
		r.GeneratedAt.Format(time.RFC3339),
		r.TotalListings,
		r.ActiveListings,
		r.TotalQuantity,
		r.AvailableQuantity,
		r.InventoryValue,
		r.OrganicListings,
		r.OrganicShare,
		r.AveragePrice,
		r.MinPrice,
		r.MaxPrice,
	}
}
