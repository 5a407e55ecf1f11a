package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"fiirank/internal/config"
)

// SheetsWriter publishes a sheet to one tab of a Google spreadsheet,
// replacing what was there.
type SheetsWriter struct {
	service       *sheets.Service
	spreadsheetID string
	tab           string
	logger        *slog.Logger
}

// NewSheetsWriter authenticates with the service account credentials file
// from cfg. Extra options are appended after the credentials.
func NewSheetsWriter(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger, opts ...option.ClientOption) (*SheetsWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		}, opts...)
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	tab := cfg.SheetName
	if tab == "" {
		tab = SheetName
	}
	return &SheetsWriter{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		tab:           tab,
		logger:        logger,
	}, nil
}

// Write clears the tab and writes the header and rows from A1.
func (w *SheetsWriter) Write(ctx context.Context, sheet Sheet) error {
	_, err := w.service.Spreadsheets.Values.
		Clear(w.spreadsheetID, w.tab, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", w.tab, err)
	}

	values := make([][]any, 0, len(sheet.Rows)+1)
	header := make([]any, len(sheet.Header))
	for i, h := range sheet.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, row := range sheet.Rows {
		out := make([]any, len(row))
		for i, c := range row {
			if c == nil {
				c = ""
			}
			out[i] = c
		}
		values = append(values, out)
	}

	_, err = w.service.Spreadsheets.Values.
		Update(w.spreadsheetID, w.tab+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", w.tab, err)
	}

	w.logger.InfoContext(ctx, "published ranking to google sheets",
		"spreadsheet_id", w.spreadsheetID,
		"sheet", w.tab,
		"rows", len(sheet.Rows))
	return nil
}
