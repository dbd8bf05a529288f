// Package sheets adapts a Google Sheets roster tab to the reconciliation
// engine's row source. The sheet uses a fixed column order:
// id | surname | head name | phone | size | notes, with a header row.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/priyamehta/platetrack-backend/internal/reconcile"
	"github.com/priyamehta/platetrack-backend/pkg/config"
)

// RowSource reads roster rows from one spreadsheet range.
type RowSource struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	readRange     string
}

var _ reconcile.RowSource = (*RowSource)(nil)

// New builds a RowSource from config. Credentials fall back to application
// default credentials when no JSON is provided.
func New(ctx context.Context, cfg config.SheetsConfig, gcp config.GCPConfig) (*RowSource, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("sheets spreadsheet id is required")
	}

	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope)}
	if strings.TrimSpace(gcp.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &RowSource{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     cfg.ReadRange,
	}, nil
}

// Fetch reads the configured range and maps it to roster rows, skipping the
// header row.
func (s *RowSource) Fetch(ctx context.Context) ([]reconcile.Row, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading range %q: %w", s.readRange, err)
	}

	if len(resp.Values) <= 1 {
		return nil, nil
	}

	rows := make([]reconcile.Row, 0, len(resp.Values)-1)
	for _, cells := range resp.Values[1:] {
		rows = append(rows, reconcile.Row{
			ID:       cell(cells, 0),
			Surname:  cell(cells, 1),
			HeadName: cell(cells, 2),
			Phone:    cell(cells, 3),
			Size:     cell(cells, 4),
			Notes:    cell(cells, 5),
		})
	}
	return rows, nil
}

func cell(cells []interface{}, index int) string {
	if index >= len(cells) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(cells[index]))
}
