package sheets

import (
	"context"
	"errors"

	"did_alerts/internal/retry"

	"github.com/rs/zerolog/log"
)

// API is the part of Client the Source needs.
type API interface {
	ListSheets(ctx context.Context, spreadsheetID string) ([]string, error)
	ReadAll(ctx context.Context, spreadsheetID, sheetName string) ([][]string, error)
}

// Source reads client sheets from one spreadsheet, retrying transient
// failures.
type Source struct {
	api           API
	spreadsheetID string
	exclude       map[string]bool
	listRetry     retry.Config
	readRetry     retry.Config
}

// NewSource builds a Source. Tabs named in exclude (the report tab) are not
// treated as client sheets.
func NewSource(api API, spreadsheetID string, listRetry, readRetry retry.Config, exclude ...string) *Source {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		if name != "" {
			skip[name] = true
		}
	}
	return &Source{
		api:           api,
		spreadsheetID: spreadsheetID,
		exclude:       skip,
		listRetry:     listRetry,
		readRetry:     readRetry,
	}
}

// SheetNames lists client sheets in spreadsheet order.
func (s *Source) SheetNames(ctx context.Context) ([]string, error) {
	all, err := retry.WithRetry(ctx, "list sheets", s.listRetry, func(ctx context.Context) ([]string, error) {
		names, err := s.api.ListSheets(ctx, s.spreadsheetID)
		return names, permanentUnlessRetryable(err)
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(all))
	for _, name := range all {
		if s.exclude[name] {
			log.Debug().Str("sheet", name).Msg("Skipping excluded sheet")
			continue
		}
		names = append(names, name)
	}
	log.Info().Int("sheets", len(names)).Msg("Connected to spreadsheet")
	return names, nil
}

// FetchRows reads every row of one sheet.
func (s *Source) FetchRows(ctx context.Context, sheetName string) ([][]string, error) {
	return retry.WithRetry(ctx, "read "+sheetName, s.readRetry, func(ctx context.Context) ([][]string, error) {
		rows, err := s.api.ReadAll(ctx, s.spreadsheetID, sheetName)
		return rows, permanentUnlessRetryable(err)
	})
}

func permanentUnlessRetryable(err error) error {
	if err == nil {
		return nil
	}
	var sErr *Error
	if errors.As(err, &sErr) && sErr.IsRetryable() {
		return err
	}
	return retry.Permanent(err)
}
