// Package sheets wraps the Google Drive and Sheets APIs: duplicating the
// template spreadsheet, writing parsed test case rows, and auto-resizing
// columns after a write.
package sheets

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// valueInputUserEntered makes Sheets parse written values the way a typing
// user would (numbers, dates), matching how the template expects its data.
const valueInputUserEntered = "USER_ENTERED"

// Client provides spreadsheet provisioning and write operations.
type Client struct {
	sheets *sheets.Service
	drive  *drive.Service
}

// NewClient builds Drive and Sheets services from service account JSON.
func NewClient(ctx context.Context, serviceAccountJSON []byte) (*Client, error) {
	if len(serviceAccountJSON) == 0 {
		return nil, fmt.Errorf("google service account info not set")
	}

	driveSvc, err := drive.NewService(ctx, option.WithCredentialsJSON(serviceAccountJSON), option.WithScopes(drive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Drive service: %w", err)
	}
	sheetsSvc, err := sheets.NewService(ctx, option.WithCredentialsJSON(serviceAccountJSON), option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sheets service: %w", err)
	}
	return &Client{sheets: sheetsSvc, drive: driveSvc}, nil
}

// DuplicateTemplate copies the template spreadsheet under a new title and
// returns the new spreadsheet's id.
func (c *Client) DuplicateTemplate(ctx context.Context, templateID, title string) (string, error) {
	slog.Debug("sheets.DuplicateTemplate: copying template", "templateID", templateID, "title", title)
	file, err := c.drive.Files.Copy(templateID, &drive.File{Name: title}).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("sheets.DuplicateTemplate: copy failed", "error", err, "templateID", templateID)
		return "", fmt.Errorf("failed to duplicate template spreadsheet: %w", err)
	}
	slog.Info("sheets.DuplicateTemplate: spreadsheet created", "sheetID", file.Id, "title", title)
	return file.Id, nil
}

// UpdateRange writes the rows into the given A1-style range.
func (c *Client) UpdateRange(ctx context.Context, sheetID, a1Range string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	_, err := c.sheets.Spreadsheets.Values.Update(sheetID, a1Range, &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInputUserEntered).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("sheets.UpdateRange: update failed", "error", err, "sheetID", sheetID, "range", a1Range)
		return fmt.Errorf("failed to update range %s: %w", a1Range, err)
	}
	slog.Debug("sheets.UpdateRange: rows written", "sheetID", sheetID, "range", a1Range, "rows", len(rows))
	return nil
}

// AutoResizeColumns resizes the first columns of the named tab to fit their
// content after a write.
func (c *Client) AutoResizeColumns(ctx context.Context, sheetID, tabName string, columns int64) error {
	spreadsheet, err := c.sheets.Spreadsheets.Get(sheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to load spreadsheet %s: %w", sheetID, err)
	}

	var gridID int64 = -1
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tabName {
			gridID = sh.Properties.SheetId
			break
		}
	}
	if gridID < 0 {
		return fmt.Errorf("tab %q not found in spreadsheet %s", tabName, sheetID)
	}

	_, err = c.sheets.Spreadsheets.BatchUpdate(sheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    gridID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to auto-resize columns on %q: %w", tabName, err)
	}
	return nil
}
