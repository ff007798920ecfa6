// Package httpsource talks to the remote sheet API over JSON/HTTP.
//
// The API shape mirrors the spreadsheet service the records live in:
//
//	GET  {base}/tables/{id}/header          -> {"header": ["Clientes", ...]}
//	GET  {base}/tables/{id}/rows            -> {"rows": [{"Clientes": "Acme", ...}, ...]}
//	POST {base}/tables/{id}/rows            <- {"values": ["Acme", ""]}
//	PUT  {base}/tables/{id}/cells/{row}/{col} <- {"value": "Acme"}
//
// Every request carries the service bearer token. A non-2xx status or a
// transport failure is returned as-is; the mediator classifies it as
// SourceUnavailable.
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/normaq/clientbook/internal/model"
	"github.com/normaq/clientbook/internal/tabular"
)

var _ tabular.Source = (*Client)(nil)

// Client is an HTTP implementation of tabular.Source.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for the sheet API at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) HeaderRow(ctx context.Context, tableID string) ([]string, error) {
	var out struct {
		Header []string `json:"header"`
	}
	path := fmt.Sprintf("/tables/%s/header", url.PathEscape(tableID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Header, nil
}

func (c *Client) Rows(ctx context.Context, tableID string) ([]model.Record, error) {
	var out struct {
		Rows []model.Record `json:"rows"`
	}
	path := fmt.Sprintf("/tables/%s/rows", url.PathEscape(tableID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *Client) AppendRow(ctx context.Context, tableID string, values []string) error {
	body := struct {
		Values []string `json:"values"`
	}{Values: values}
	path := fmt.Sprintf("/tables/%s/rows", url.PathEscape(tableID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) UpdateCell(ctx context.Context, tableID string, row, col int, value string) error {
	body := struct {
		Value string `json:"value"`
	}{Value: value}
	path := fmt.Sprintf("/tables/%s/cells/%d/%d", url.PathEscape(tableID), row, col)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// do performs one API call, encoding body (if non-nil) and decoding the
// response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpsource: encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("httpsource: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpsource: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the error message; the rest is
		// discarded with the connection.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("httpsource: %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("httpsource: decoding response: %w", err)
		}
	}
	return nil
}
