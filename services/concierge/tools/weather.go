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
	"strconv"
	"time"
)

const defaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// openWeatherResponse mirrors the subset of the OpenWeather current-weather
// payload the adapter maps.
type openWeatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility int    `json:"visibility"`
	Message    string `json:"message"`
}

// WeatherClient fetches current conditions from the OpenWeather API.
//
// # Thread Safety
//
// Safe for concurrent use.
type WeatherClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewWeatherClient creates a WeatherClient from environment variables.
//
// # Description
//
//	Reads OPEN_WEATHER_API_KEY. An empty key is not an error here: the
//	client is still constructed, and Fetch surfaces the missing key as a
//	configuration error so the orchestrator can degrade to an apology
//	instead of the process failing at startup.
//
// # Outputs
//
//   - *WeatherClient: The configured client.
func NewWeatherClient() *WeatherClient {
	apiKey := os.Getenv("OPEN_WEATHER_API_KEY")
	if apiKey == "" {
		slog.Warn("OPEN_WEATHER_API_KEY is empty; weather lookups will fail")
	}
	return NewWeatherClientWithConfig(apiKey, defaultOpenWeatherBaseURL)
}

// NewWeatherClientWithConfig creates a WeatherClient with explicit
// configuration. Useful for testing against a mock server.
func NewWeatherClientWithConfig(apiKey, baseURL string) *WeatherClient {
	return &WeatherClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

// Fetch retrieves current weather for the given input.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - in: Location (or lat/lon) and unit. Must pass Validate.
//
// # Outputs
//
//   - *WeatherReport: The mapped success payload.
//   - error: Wraps ErrConfiguration (missing/invalid key), ErrNotFound
//     (unknown location), or ErrUpstream (network/provider failure).
//
// # Thread Safety
//
// Safe for concurrent use.
func (c *WeatherClient) Fetch(ctx context.Context, in WeatherInput) (*WeatherReport, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: weather API key not set", ErrConfiguration)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("appid", c.apiKey)
	params.Set("units", in.Unit)
	if in.Lat != nil && in.Lon != nil {
		params.Set("lat", strconv.FormatFloat(*in.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(*in.Lon, 'f', -1, 64))
	} else {
		params.Set("q", in.Location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: weather: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: weather: reading response: %v", ErrUpstream, err)
	}

	var res openWeatherResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: weather: decoding response: %v", ErrUpstream, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// Fall through to mapping.
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: invalid weather API key", ErrConfiguration)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: location not found", ErrNotFound)
	default:
		msg := res.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: weather: %s", ErrUpstream, msg)
	}

	report := &WeatherReport{
		Location:    fmt.Sprintf("%s, %s", res.Name, res.Sys.Country),
		Temperature: res.Main.Temp,
		FeelsLike:   res.Main.FeelsLike,
		Humidity:    res.Main.Humidity,
		Pressure:    res.Main.Pressure,
		WindSpeed:   res.Wind.Speed,
		Visibility:  res.Visibility,
		Sunrise:     time.Unix(res.Sys.Sunrise, 0).UTC().Format(time.RFC3339),
		Sunset:      time.Unix(res.Sys.Sunset, 0).UTC().Format(time.RFC3339),
	}
	if len(res.Weather) > 0 {
		report.Weather = res.Weather[0].Description
	}
	return report, nil
}
