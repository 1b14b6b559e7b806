// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultFMPBaseURL = "https://financialmodelingprep.com/api/v3"

// fmpQuote mirrors the fields the quote adapter maps from the FMP /quote
// endpoint. The provider's "price" becomes LatestPrice; dayHigh/dayLow
// become High/Low.
type fmpQuote struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	DayHigh float64 `json:"dayHigh"`
	DayLow  float64 `json:"dayLow"`
	Volume  int64   `json:"volume"`
}

// fmpErrorEnvelope is the error shape FMP returns with a 200 status.
type fmpErrorEnvelope struct {
	ErrorMessage string `json:"Error Message"`
}

// StockClient fetches quotes and historical series from the Financial
// Modeling Prep API.
//
// # Thread Safety
//
// Safe for concurrent use.
type StockClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string

	// now stamps quote fetch times; injectable for tests.
	now func() time.Time
}

// NewStockClient creates a StockClient from environment variables.
//
// # Description
//
//	Reads FMP_API_KEY. As with the weather client, a missing key is
//	surfaced per-call as a configuration error rather than failing startup.
//
// # Outputs
//
//   - *StockClient: The configured client.
func NewStockClient() *StockClient {
	apiKey := os.Getenv("FMP_API_KEY")
	if apiKey == "" {
		slog.Warn("FMP_API_KEY is empty; stock lookups will fail")
	}
	return NewStockClientWithConfig(apiKey, defaultFMPBaseURL)
}

// NewStockClientWithConfig creates a StockClient with explicit
// configuration. Useful for testing against a mock server.
func NewStockClientWithConfig(apiKey, baseURL string) *StockClient {
	return &StockClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// Quote retrieves the current quote for a ticker symbol.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - in: The ticker symbol. Must pass Validate.
//
// # Outputs
//
//   - *StockQuote: The mapped quote with a fetch-time timestamp.
//   - error: Wraps ErrConfiguration, ErrNotFound, or ErrUpstream.
//
// # Thread Safety
//
// Safe for concurrent use.
func (c *StockClient) Quote(ctx context.Context, in StockInput) (*StockQuote, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: stock API key not set", ErrConfiguration)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(in.Symbol)
	params := url.Values{}
	params.Set("apikey", c.apiKey)

	body, err := c.get(ctx, "/quote/"+symbol, params, symbol)
	if err != nil {
		return nil, err
	}

	var quotes []fmpQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		// Not a quote array: check for the provider's error envelope.
		var envelope fmpErrorEnvelope
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: %s", ErrUpstream, envelope.ErrorMessage)
		}
		return nil, fmt.Errorf("%w: stock: decoding response: %v", ErrUpstream, err)
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: symbol %q", ErrNotFound, symbol)
	}

	q := quotes[0]
	return &StockQuote{
		Symbol:      q.Symbol,
		LatestPrice: q.Price,
		High:        q.DayHigh,
		Low:         q.DayLow,
		Volume:      q.Volume,
		Timestamp:   c.now().Format(time.RFC3339),
	}, nil
}

// get issues a request against the FMP API and maps the HTTP status codes
// shared by both endpoints.
func (c *StockClient) get(ctx context.Context, path string, params url.Values, symbol string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("stock: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: stock: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: stock: reading response: %v", ErrUpstream, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: invalid stock API key", ErrConfiguration)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: symbol %q", ErrNotFound, symbol)
	default:
		return nil, fmt.Errorf("%w: stock: status %d", ErrUpstream, resp.StatusCode)
	}
}
