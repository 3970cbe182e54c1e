// Package google appends ledger entries to a Google Sheet via the Sheets
// v4 API.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.RowAppender = (*Client)(nil)

// NewFromEnv builds a Sheets client from environment variables.
// Required: SHEETS_SPREADSHEET_ID. Auth comes from SHEETS_CREDENTIALS_FILE
// or Application Default Credentials. The sheet name defaults to "Ledger"
// and is prefixed with the current year ("2026 Ledger").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("SHEETS_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing SHEETS_SPREADSHEET_ID")
	}

	base := strings.TrimSpace(os.Getenv("SHEETS_SHEET_NAME"))
	if base == "" {
		base = "Ledger"
	}

	var opts []goption.ClientOption
	if credFile := strings.TrimSpace(os.Getenv("SHEETS_CREDENTIALS_FILE")); credFile != "" {
		opts = append(opts, goption.WithCredentialsFile(credFile))
	}
	opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     fmt.Sprintf("%d %s", time.Now().Year(), base),
	}, nil
}

// AppendEntry appends [id, date, kind, amount, currency, description,
// category] to the sheet and returns the updated range as row reference.
func (c *Client) AppendEntry(ctx context.Context, e core.Entry) (string, error) {
	category := ""
	if e.CategoryID != nil {
		category = strconv.FormatInt(*e.CategoryID, 10)
	}

	row := []any{
		strconv.FormatInt(e.ID, 10),
		e.CreatedAt.Format("2006-01-02"),
		string(e.Kind),
		e.Amount.String(),
		e.Amount.Currency,
		e.Description,
		category,
	}

	resp, err := c.svc.Spreadsheets.Values.Append(
		c.spreadsheetID,
		fmt.Sprintf("%s!A:G", c.sheetName),
		&gsheet.ValueRange{Values: [][]any{row}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append row: %w", err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// DeleteEntry clears the row whose first column matches the entry id.
func (c *Client) DeleteEntry(ctx context.Context, id int64) error {
	resp, err := c.svc.Spreadsheets.Values.Get(
		c.spreadsheetID,
		fmt.Sprintf("%s!A:A", c.sheetName),
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read id column: %w", err)
	}

	want := strconv.FormatInt(id, 10)
	rowIdx := -1
	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == want {
			rowIdx = i + 1 // sheet rows are 1-based
			break
		}
	}
	if rowIdx < 0 {
		slog.WarnContext(ctx, "Exported row not found for delete", "id", id)
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.Clear(
		c.spreadsheetID,
		fmt.Sprintf("%s!A%d:G%d", c.sheetName, rowIdx, rowIdx),
		&gsheet.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear row %d: %w", rowIdx, err)
	}
	return nil
}
