// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/concierge/services/concierge/config"
)

// Sentinel errors for missing parameters. The orchestrator maps each one
// to a clarifying question instead of a tool call.
var (
	ErrMissingSymbol    = errors.New("no ticker symbol found in query")
	ErrMissingLocation  = errors.New("no location found in query")
	ErrMissingDateRange = errors.New("no date range found in query")
)

var (
	// symbolTokenRe matches a standalone run of 1-5 uppercase letters.
	symbolTokenRe = regexp.MustCompile(`\b([A-Z]{1,5})\b`)

	// locationRe captures the location phrase after a weather cue. The
	// capture stops at the first non-word, non-space rune, so trailing
	// punctuation ("weather in Boston?") is excluded.
	locationRe = regexp.MustCompile(`(?i)(?:weather in|forecast for|conditions in)\s+([\w\s]+)`)

	// isoDateRe matches YYYY-MM-DD substrings.
	isoDateRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	// relativeRangeRe matches "last|past N day(s)/week(s)/month(s)".
	relativeRangeRe = regexp.MustCompile(`(?i)\b(last|past)\s+(\d+)\s+(day|week|month)s?\b`)
)

// DateRange is an inclusive calendar date window. Start is never after End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// isoDate is the wire format for dates exchanged with the stock adapters.
const isoDate = "2006-01-02"

// FormatStart returns the start date in YYYY-MM-DD form.
func (r DateRange) FormatStart() string { return r.Start.Format(isoDate) }

// FormatEnd returns the end date in YYYY-MM-DD form.
func (r DateRange) FormatEnd() string { return r.End.Format(isoDate) }

// ExtractSymbol pulls a ticker symbol out of unstructured text.
//
// # Description
//
//	Two passes, first hit wins:
//	 1. A standalone token of 1-5 uppercase letters ("price for MSFT").
//	 2. A company name from the ordered symbol table as a substring of the
//	    lowercased text ("how is tesla doing" -> TSLA).
//
//	The uppercase scan deliberately accepts short words like "I" when they
//	are the only uppercase token; the classifier's keyword gates keep this
//	from firing on purely conversational queries.
//
// # Inputs
//
//   - text: The raw query text.
//   - table: Ordered name -> symbol mappings. First match wins.
//
// # Outputs
//
//   - string: The ticker symbol, uppercase.
//   - error: ErrMissingSymbol when neither pass matches.
//
// # Thread Safety
//
// Safe for concurrent use (stateless function).
func ExtractSymbol(text string, table []config.SymbolMapping) (string, error) {
	if m := symbolTokenRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]), nil
	}

	lower := strings.ToLower(text)
	for _, entry := range table {
		if strings.Contains(lower, entry.Name) {
			return entry.Symbol, nil
		}
	}

	RecordExtractionMiss("symbol")
	return "", ErrMissingSymbol
}

// ExtractLocation pulls a location name out of a weather query.
//
// # Description
//
//	Matches "weather in X", "forecast for X", or "conditions in X"
//	(case-insensitive) and returns X trimmed of surrounding whitespace.
//
// # Outputs
//
//   - string: The location phrase.
//   - error: ErrMissingLocation when no cue phrase matches.
//
// # Thread Safety
//
// Safe for concurrent use (stateless function).
func ExtractLocation(text string) (string, error) {
	m := locationRe.FindStringSubmatch(text)
	if m == nil {
		RecordExtractionMiss("location")
		return "", ErrMissingLocation
	}
	loc := strings.TrimSpace(m[1])
	if loc == "" {
		RecordExtractionMiss("location")
		return "", ErrMissingLocation
	}
	return loc, nil
}

// ExtractDateRange derives a date window from unstructured text.
//
// # Description
//
//	Rules are tried in strict priority order; the first rule that produces
//	a result wins:
//	 1. Two or more ISO dates: sorted ascending, earliest two form the range.
//	 2. Exactly one ISO date: (that date, today).
//	 3. "last|past N day/week/month(s)": end = today, start = today minus
//	    N units (week = 7 days, month = 30 days — a deliberate
//	    approximation). A zero or inverted window falls back to one day.
//	 4. Literal "last month": the previous calendar month.
//	 5. Literal "last year": Jan 1 through Dec 31 of the previous year.
//
//	The returned range always satisfies Start <= End; a derived range that
//	would violate that is collapsed to a one-day window ending at End.
//
// # Inputs
//
//   - text: The raw query text.
//   - today: The reference date. Injected so extraction is reproducible.
//
// # Outputs
//
//   - DateRange: The derived window.
//   - error: ErrMissingDateRange when no rule matches.
//
// # Thread Safety
//
// Safe for concurrent use (stateless function).
func ExtractDateRange(text string, today time.Time) (DateRange, error) {
	today = truncateToDate(today)

	// Rule 1 and 2: explicit ISO dates. Substrings that look like a date
	// but do not parse (e.g. 2023-13-40) are ignored.
	var isoDates []time.Time
	for _, m := range isoDateRe.FindAllStringSubmatch(text, -1) {
		if d, err := time.ParseInLocation(isoDate, m[1], today.Location()); err == nil {
			isoDates = append(isoDates, d)
		}
	}
	if len(isoDates) >= 2 {
		sort.Slice(isoDates, func(i, j int) bool { return isoDates[i].Before(isoDates[j]) })
		return DateRange{Start: isoDates[0], End: isoDates[1]}, nil
	}
	if len(isoDates) == 1 {
		return clampRange(isoDates[0], today), nil
	}

	// Rule 3: relative ranges.
	if m := relativeRangeRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			days := n
			switch strings.ToLower(m[3]) {
			case "week":
				days = n * 7
			case "month":
				days = n * 30
			}
			start := today.AddDate(0, 0, -days)
			if !start.Before(today) {
				start = today.AddDate(0, 0, -1)
			}
			return DateRange{Start: start, End: today}, nil
		}
	}

	// Rules 4 and 5: literal phrases.
	lower := strings.ToLower(text)
	if strings.Contains(lower, "last month") {
		firstOfThisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		lastOfPrevMonth := firstOfThisMonth.AddDate(0, 0, -1)
		firstOfPrevMonth := time.Date(lastOfPrevMonth.Year(), lastOfPrevMonth.Month(), 1, 0, 0, 0, 0, today.Location())
		return DateRange{Start: firstOfPrevMonth, End: lastOfPrevMonth}, nil
	}
	if strings.Contains(lower, "last year") {
		year := today.Year() - 1
		return DateRange{
			Start: time.Date(year, time.January, 1, 0, 0, 0, 0, today.Location()),
			End:   time.Date(year, time.December, 31, 0, 0, 0, 0, today.Location()),
		}, nil
	}

	RecordExtractionMiss("date_range")
	return DateRange{}, ErrMissingDateRange
}

// clampRange builds (start, today) and collapses to a one-day window when
// start would land after today (a single future date in the query).
func clampRange(start, today time.Time) DateRange {
	if start.After(today) {
		return DateRange{Start: today.AddDate(0, 0, -1), End: today}
	}
	return DateRange{Start: start, End: today}
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
