package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client is a thin wrapper over the Sheets v4 API with errors classified into
// *Error.
type Client struct {
	service *sheets.Service
}

func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	if _, err := os.Stat(credentialsFile); err != nil {
		kind := KindConnection
		if errors.Is(err, os.ErrNotExist) {
			kind = KindCredentials
		}
		return nil, &Error{Kind: kind, Op: "load credentials", Target: credentialsFile, Underlying: err}
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, &Error{Kind: KindAuth, Op: "create sheets service", Target: credentialsFile, Underlying: err}
	}

	return &Client{
		service: service,
	}, nil
}

// ListSheets returns the tab titles of the spreadsheet in display order.
func (c *Client) ListSheets(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := c.service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("list sheets", spreadsheetID, err)
	}

	names := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			names = append(names, s.Properties.Title)
		}
	}
	return names, nil
}

// ReadAll returns every populated row of a tab as strings.
func (c *Client) ReadAll(ctx context.Context, spreadsheetID, sheetName string) ([][]string, error) {
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, quoteSheet(sheetName)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("read sheet", sheetName, err)
	}
	return toStrings(resp.Values), nil
}

func (c *Client) ClearRange(ctx context.Context, spreadsheetID, range_ string) error {
	_, err := c.service.Spreadsheets.Values.Clear(spreadsheetID, range_, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return classify("clear range", range_, err)
	}
	return nil
}

func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error {
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return classify("update range", range_, err)
	}

	return nil
}

// quoteSheet makes a tab title usable as an A1 range.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprintf("%v", v)
			}
		}
		rows[i] = cells
	}
	return rows
}
