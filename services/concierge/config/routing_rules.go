// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the immutable routing configuration for the
// Concierge service: the keyword sets used by the intent classifier and
// the company-name to ticker-symbol table used by the parameter extractor.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed routing_rules.yaml
var defaultRoutingRulesYAML []byte

// SymbolMapping binds a lowercase company name to its ticker symbol.
type SymbolMapping struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
}

// RoutingRules is the immutable keyword and symbol configuration consumed
// by the classifier and extractor. Loaded from routing_rules.yaml at
// startup and cached; callers must not mutate the slices.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type RoutingRules struct {
	WeatherKeywords      []string `yaml:"weather_keywords"`
	CurrentStockKeywords []string `yaml:"current_stock_keywords"`
	HistoricalKeywords   []string `yaml:"historical_keywords"`
	GenericStockKeywords []string `yaml:"generic_stock_keywords"`
	CompanyMentions      []string `yaml:"company_mentions"`

	// SymbolTable is ordered: the first entry whose name is a substring of
	// the lowercased query wins.
	SymbolTable []SymbolMapping `yaml:"symbol_table"`
}

var (
	cachedRoutingRules *RoutingRules
	routingRulesOnce   sync.Once
	routingRulesErr    error
)

// LoadRoutingRules loads and caches the routing rules from the embedded
// YAML configuration. Returns the cached result on subsequent calls.
//
// # Outputs
//
//   - *RoutingRules: The loaded configuration. Never nil on success.
//   - error: Non-nil if YAML parsing fails or a keyword set is empty.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadRoutingRules() (*RoutingRules, error) {
	routingRulesOnce.Do(func() {
		var rules RoutingRules
		if err := yaml.Unmarshal(defaultRoutingRulesYAML, &rules); err != nil {
			routingRulesErr = fmt.Errorf("parsing routing_rules.yaml: %w", err)
			return
		}
		if err := rules.validate(); err != nil {
			routingRulesErr = err
			return
		}
		cachedRoutingRules = &rules
		slog.Info("routing rules loaded",
			slog.Int("weather_keywords", len(rules.WeatherKeywords)),
			slog.Int("historical_keywords", len(rules.HistoricalKeywords)),
			slog.Int("symbol_table_entries", len(rules.SymbolTable)),
		)
	})
	return cachedRoutingRules, routingRulesErr
}

// MustLoadRoutingRules loads the routing rules or panics. The embedded
// configuration is part of the binary; failure to parse it is a build
// defect, not a runtime condition.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadRoutingRules() *RoutingRules {
	rules, err := LoadRoutingRules()
	if err != nil {
		panic(fmt.Sprintf("embedded routing rules are invalid: %v", err))
	}
	return rules
}

func (r *RoutingRules) validate() error {
	switch {
	case len(r.WeatherKeywords) == 0:
		return fmt.Errorf("routing_rules.yaml: weather_keywords is empty")
	case len(r.CurrentStockKeywords) == 0:
		return fmt.Errorf("routing_rules.yaml: current_stock_keywords is empty")
	case len(r.HistoricalKeywords) == 0:
		return fmt.Errorf("routing_rules.yaml: historical_keywords is empty")
	case len(r.SymbolTable) == 0:
		return fmt.Errorf("routing_rules.yaml: symbol_table is empty")
	}
	for i, m := range r.SymbolTable {
		if m.Name == "" || m.Symbol == "" {
			return fmt.Errorf("routing_rules.yaml: symbol_table entry %d is incomplete", i)
		}
	}
	return nil
}
