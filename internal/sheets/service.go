// Package sheets exports structured lab results to a Google Sheet.
package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"labscan/internal/logger"
	"labscan/internal/report"
)

// Headers is the header row written to a new worksheet.
var Headers = []string{"Source", "Measurement", "Value", "Low", "High", "Exported"}

const lastColumn = "F"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
	now           func() time.Time
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return NewSheetsServiceWithClient(sheetsService, spreadsheetID), nil
}

// NewSheetsServiceWithClient creates a service for spreadsheetID with an explicit client.
func NewSheetsServiceWithClient(sheetsService *sheets.Service, spreadsheetID string) *Service {
	log := logger.WithComponent("sheets")
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Using spreadsheet")

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
		now:           time.Now,
	}
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// AppendReport appends one row per measurement to sheetName, creating the worksheet
// and its header row when missing. source names the scanned document.
func (s *Service) AppendReport(ctx context.Context, sheetName, source string, rows []report.Row) error {
	const op = "AppendReport"

	if len(rows) == 0 {
		s.log.Info().Str("sheet", sheetName).Msg("No rows to export")
		return nil
	}

	s.log.Info().
		Str("sheet", sheetName).
		Str("source", source).
		Int("rows", len(rows)).
		Msg("Writing lab results to Google Sheet")

	if err := s.ensureSheetWithHeaders(ctx, sheetName); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	exported := s.now().Format("2006-01-02 15:04:05")
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, []interface{}{
			source,          // A: Source
			row.Measurement, // B: Measurement
			row.Value,       // C: Value
			row.Low,         // D: Low
			row.High,        // E: High
			exported,        // F: Exported
		})
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		fmt.Sprintf("%s!A:%s", sheetName, lastColumn),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote lab results to Google Sheet")

	return nil
}

// ensureSheetWithHeaders ensures the sheet exists and has proper headers
func (s *Service) ensureSheetWithHeaders(ctx context.Context, sheetName string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
			},
		}
		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
			return fmt.Errorf("%s: create sheet returned no properties", op)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", sheetName, lastColumn)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{header}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and applies basic formatting
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	columns := int64(len(Headers))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}
