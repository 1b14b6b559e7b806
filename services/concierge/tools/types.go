// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the external data-fetcher adapters: current
// weather (OpenWeather), current stock quote and historical stock series
// (Financial Modeling Prep). Each adapter is a thin call-and-map over the
// provider's REST API; all routing logic lives upstream in the
// orchestration core.
package tools

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Error taxonomy for adapter failures. The orchestrator converts all of
// these into a user-facing apology; they are never surfaced as structured
// data.
var (
	// ErrConfiguration marks missing or rejected credentials.
	ErrConfiguration = errors.New("tool configuration error")

	// ErrNotFound marks an unknown symbol or location.
	ErrNotFound = errors.New("resource not found")

	// ErrUpstream marks a network or provider-side failure.
	ErrUpstream = errors.New("upstream API error")
)

// validate checks constructed tool inputs before any network call.
var validate = validator.New()

// WeatherInput selects a place for a current-conditions lookup. Either
// Location or the Lat/Lon pair must be set.
type WeatherInput struct {
	Location string   `json:"location" validate:"required_without=Lat"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Unit     string   `json:"unit" validate:"required,oneof=metric imperial"`
}

// Validate reports whether the input satisfies the adapter contract.
func (in WeatherInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("weather input: %w", err)
	}
	return nil
}

// StockInput selects a ticker for a current quote.
type StockInput struct {
	Symbol string `json:"symbol" validate:"required,alpha,uppercase,min=1,max=5"`
}

// Validate reports whether the input satisfies the adapter contract.
func (in StockInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("stock input: %w", err)
	}
	return nil
}

// HistoricalStockInput selects a ticker and an inclusive date window.
// EndDate defaults to today when empty. Callers must not construct an
// instance with StartDate after EndDate; the extractor collapses such
// windows before they reach the adapter.
type HistoricalStockInput struct {
	Symbol    string `json:"symbol" validate:"required,alpha,uppercase,min=1,max=5"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// Validate reports whether the input satisfies the adapter contract.
func (in HistoricalStockInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("historical stock input: %w", err)
	}
	return nil
}

// WeatherReport is the success payload of the weather adapter. Sunrise and
// sunset are ISO-8601 UTC timestamps.
type WeatherReport struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	Pressure    int     `json:"pressure"`
	Weather     string  `json:"weather"`
	WindSpeed   float64 `json:"wind_speed"`
	Visibility  int     `json:"visibility"`
	Sunrise     string  `json:"sunrise"`
	Sunset      string  `json:"sunset"`
}

// StockQuote is the success payload of the current-stock adapter.
// Timestamp is the fetch time in ISO-8601, not a provider field.
type StockQuote struct {
	Symbol      string  `json:"symbol"`
	LatestPrice float64 `json:"latest_price"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Volume      int64   `json:"volume"`
	Timestamp   string  `json:"timestamp"`
}

// HistoricalBar is one end-of-day record.
type HistoricalBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// HistoricalSeries is the success payload of the historical-stock adapter.
// Bars are ordered by date ascending.
type HistoricalSeries struct {
	Symbol     string          `json:"symbol"`
	Historical []HistoricalBar `json:"historical"`
}
