package sheets

import (
	"context"
	"fmt"

	"did_alerts/internal/retry"

	"github.com/rs/zerolog/log"
)

// RangeWriter is the part of Client the Publisher needs.
type RangeWriter interface {
	ClearRange(ctx context.Context, spreadsheetID, range_ string) error
	UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error
}

// Publisher overwrites one tab with a table of values.
type Publisher struct {
	writer        RangeWriter
	spreadsheetID string
	sheetName     string
	retryConfig   retry.Config
}

func NewPublisher(writer RangeWriter, spreadsheetID, sheetName string, retryConfig retry.Config) *Publisher {
	return &Publisher{
		writer:        writer,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		retryConfig:   retryConfig,
	}
}

func (p *Publisher) SheetName() string {
	return p.sheetName
}

// Publish clears the tab and writes rows starting at A1.
func (p *Publisher) Publish(ctx context.Context, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	tab := quoteSheet(p.sheetName)
	_, err := retry.WithRetry(ctx, "publish "+p.sheetName, p.retryConfig, func(ctx context.Context) (struct{}, error) {
		if err := p.writer.ClearRange(ctx, p.spreadsheetID, tab); err != nil {
			return struct{}{}, permanentUnlessRetryable(err)
		}
		return struct{}{}, permanentUnlessRetryable(p.writer.UpdateRange(ctx, p.spreadsheetID, tab+"!A1", values))
	})
	if err != nil {
		return fmt.Errorf("failed to publish report to %s: %w", p.sheetName, err)
	}

	log.Info().
		Str("sheet", p.sheetName).
		Int("rows", len(rows)).
		Msg("Published report to sheet")
	return nil
}
