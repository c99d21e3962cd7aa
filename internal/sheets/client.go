// Package sheets reads and writes the registration spreadsheet through the
// Google Sheets v4 REST API.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/eventpass/internal/pkg/httpretry"
	"github.com/ignite/eventpass/internal/pkg/logger"
)

// DefaultBaseURL is the Sheets v4 endpoint.
const DefaultBaseURL = "https://sheets.googleapis.com/v4"

// Client is a RowSource over one tab of one spreadsheet.
type Client struct {
	http          httpretry.HTTPDoer
	baseURL       string
	spreadsheetID string
	sheetName     string
	dataRange     string
	log           *logger.Logger
}

// NewClient creates a client. doer is usually a RetryClient around an
// authenticated *http.Client.
func NewClient(doer httpretry.HTTPDoer, baseURL, spreadsheetID, sheetName, dataRange string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if dataRange == "" {
		dataRange = DefaultRange(sheetName)
	}
	return &Client{
		http:          doer,
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		dataRange:     dataRange,
		log:           logger.With("sheets"),
	}
}

type valueRange struct {
	Range          string     `json:"range,omitempty"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]string `json:"values"`
}

// ReadAll fetches the data range. The first returned row is the header; an
// empty sheet yields nil headers and rows.
func (c *Client) ReadAll(ctx context.Context) ([]string, [][]string, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s?majorDimension=ROWS",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(c.dataRange))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, err
	}

	var vr valueRange
	if err := c.do(req, &vr); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", c.dataRange, err)
	}
	if len(vr.Values) == 0 {
		return nil, nil, nil
	}
	return vr.Values[0], vr.Values[1:], nil
}

// WriteCell sets one cell with valueInputOption=RAW.
func (c *Client) WriteCell(ctx context.Context, row, col int, value string) error {
	ref := CellRef(c.sheetName, row, col)
	body, err := json.Marshal(valueRange{Range: ref, MajorDimension: "ROWS", Values: [][]string{{value}}})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s?valueInputOption=RAW",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	c.log.Debug("cell updated", "cell", ref, "value", value)
	return nil
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sheets API status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sheets response: %w", err)
	}
	return nil
}
