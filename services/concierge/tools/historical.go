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
	"net/url"
	"sort"
	"strings"
)

// fmpHistoricalResponse mirrors the FMP historical-price-full payload.
type fmpHistoricalResponse struct {
	Symbol     string          `json:"symbol"`
	Historical []HistoricalBar `json:"historical"`
	fmpErrorEnvelope
}

// History retrieves end-of-day bars for a symbol over an inclusive date
// window.
//
// # Description
//
//	EndDate defaults to today when empty. The provider returns bars newest
//	first; the adapter sorts them ascending by date so downstream
//	summarization sees a chronological series.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - in: Symbol plus start/end dates in YYYY-MM-DD form. Must pass Validate.
//
// # Outputs
//
//   - *HistoricalSeries: Bars sorted by date ascending.
//   - error: Wraps ErrConfiguration, ErrNotFound, or ErrUpstream.
//
// # Thread Safety
//
// Safe for concurrent use.
func (c *StockClient) History(ctx context.Context, in HistoricalStockInput) (*HistoricalSeries, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: stock API key not set", ErrConfiguration)
	}
	if in.EndDate == "" {
		in.EndDate = c.now().Format("2006-01-02")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(in.Symbol)
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("from", in.StartDate)
	params.Set("to", in.EndDate)

	body, err := c.get(ctx, "/historical-price-full/"+symbol, params, symbol)
	if err != nil {
		return nil, err
	}

	var res fmpHistoricalResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: historical: decoding response: %v", ErrUpstream, err)
	}
	if res.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, res.ErrorMessage)
	}
	if res.Historical == nil {
		return nil, fmt.Errorf("%w: no historical data for %q in range", ErrNotFound, symbol)
	}

	bars := res.Historical
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })

	return &HistoricalSeries{Symbol: symbol, Historical: bars}, nil
}
