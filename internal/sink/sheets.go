package sink

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	insertDataInsertRows  = "INSERT_ROWS"
)

// SheetsSink appends rows to a Google Sheets range
type SheetsSink struct {
	service       *sheets.Service
	spreadsheetID string
	appendRange   string
}

var _ Sink = (*SheetsSink)(nil)

// NewSheetsSink creates a sink appending to appendRange (A1 notation) of spreadsheetID.
// Authentication and endpoint are taken from opts.
func NewSheetsSink(ctx context.Context, spreadsheetID, appendRange string, opts ...option.ClientOption) (*SheetsSink, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsSink{
		service:       service,
		spreadsheetID: spreadsheetID,
		appendRange:   appendRange,
	}, nil
}

// AppendRow appends row after the last row of the configured range
func (s *SheetsSink) AppendRow(ctx context.Context, row Row) error {
	values := row.Values()
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = sheetCell(v)
	}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.appendRange, &sheets.ValueRange{Values: [][]any{cells}}).
		ValueInputOption(valueInputUserEntered).
		InsertDataOption(insertDataInsertRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row for comment %s: %w", row.CommentID, err)
	}
	return nil
}

// Readiness fetches the spreadsheet metadata
func (s *SheetsSink) Readiness(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("spreadsheet %s is not reachable: %w", s.spreadsheetID, err)
	}
	return nil
}

// Close is a no-op
func (*SheetsSink) Close() error {
	return nil
}

// sheetCell prefixes values Sheets would parse as a formula with an apostrophe,
// which USER_ENTERED stores as literal text.
func sheetCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@", rune(v[0])) {
		return "'" + v
	}
	return v
}
