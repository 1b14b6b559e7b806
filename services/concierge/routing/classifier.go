// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing contains the intent classifier and the parameter
// extractor for the Concierge request router. Both are pure functions over
// the raw query text: no network calls, no hidden state, same output for
// the same input and reference date.
package routing

import (
	"strings"
	"unicode"

	"github.com/AleutianAI/concierge/services/concierge/config"
)

// RouteIntent is the closed set of routing decisions. Exactly one intent is
// selected per query.
type RouteIntent int

const (
	// IntentConversational routes the query to the conversational
	// collaborator with no tool call.
	IntentConversational RouteIntent = iota

	// IntentWeather routes to the current-weather adapter.
	IntentWeather

	// IntentCurrentStock routes to the stock quote adapter.
	IntentCurrentStock

	// IntentHistoricalStock routes to the historical stock adapter.
	IntentHistoricalStock
)

// String returns the intent name used in logs and metrics labels.
func (i RouteIntent) String() string {
	switch i {
	case IntentWeather:
		return "weather"
	case IntentCurrentStock:
		return "current_stock"
	case IntentHistoricalStock:
		return "historical_stock"
	default:
		return "conversational"
	}
}

// Classifier maps raw query text to exactly one RouteIntent using ordered
// keyword and pattern heuristics.
//
// # Description
//
//	This is a deliberately brittle heuristic, not a learned model. Ties are
//	resolved by fixed precedence (Weather > Historical > CurrentStock >
//	Conversational), not confidence scores, so the precedence stays
//	auditable. The rules come from an immutable config.RoutingRules table
//	injected at construction.
//
// # Thread Safety
//
// Safe for concurrent use (all state is read-only after construction).
type Classifier struct {
	rules *config.RoutingRules
}

// NewClassifier creates a classifier over the given rule tables.
func NewClassifier(rules *config.RoutingRules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify inspects the query and returns the selected route.
//
// # Description
//
//	Flags are computed in a fixed order, then collapsed by precedence:
//	 1. historical: any historical keyword, an ISO date substring, or a
//	    relative-range pattern ("last 3 weeks"). Checked before
//	    current-stock so dated stock queries never route to the quote tool.
//	 2. weather: any weather keyword.
//	 3. current-stock: only when not historical, and the query carries a
//	    stock keyword, a known company mention, or a fully-uppercase token
//	    of 3-5 letters.
//	 4. Recovery: when nothing fired but a generic stock term is present,
//	    lean toward current-stock.
//	Selection order: weather, then historical, then current-stock, then
//	conversational.
//
// # Inputs
//
//   - query: The raw user query (not the conversation history).
//
// # Outputs
//
//   - RouteIntent: Exactly one route.
//
// # Thread Safety
//
// Safe for concurrent use.
func (c *Classifier) Classify(query string) RouteIntent {
	lower := strings.ToLower(query)

	isHistorical := containsAny(lower, c.rules.HistoricalKeywords) ||
		isoDateRe.MatchString(query) ||
		relativeRangeRe.MatchString(query)

	isWeather := containsAny(lower, c.rules.WeatherKeywords)

	isCurrent := !isHistorical && (containsAny(lower, c.rules.CurrentStockKeywords) ||
		containsAny(lower, c.rules.CompanyMentions) ||
		hasUppercaseToken(query))

	// Recovery: generic stock terms with no other signal lean toward a
	// current quote. Kept verbatim from the shipped heuristic even though
	// the generic set is a subset of the current-stock keywords.
	if !isHistorical && !isCurrent && containsAny(lower, c.rules.GenericStockKeywords) {
		isCurrent = true
	}

	intent := IntentConversational
	switch {
	case isWeather:
		intent = IntentWeather
	case isHistorical:
		intent = IntentHistoricalStock
	case isCurrent:
		intent = IntentCurrentStock
	}

	RecordRouteDecision(intent.String())
	return intent
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hasUppercaseToken reports whether any whitespace-delimited token is a run
// of 3-5 uppercase letters — the shape of a bare ticker mention ("AAPL").
func hasUppercaseToken(query string) bool {
	for _, word := range strings.Fields(query) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		if len(word) < 3 || len(word) > 5 {
			continue
		}
		allUpper := true
		for _, r := range word {
			if !unicode.IsUpper(r) {
				allUpper = false
				break
			}
		}
		if allUpper {
			return true
		}
	}
	return false
}
