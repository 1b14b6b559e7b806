// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package concierge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/concierge/services/concierge/config"
	"github.com/AleutianAI/concierge/services/concierge/tools"
	"github.com/AleutianAI/concierge/services/datatypes"
	"github.com/AleutianAI/concierge/services/llm"
)

// =============================================================================
// Function Fakes
// =============================================================================

type fakeWeather struct {
	calls  int
	report *tools.WeatherReport
	err    error
}

func (f *fakeWeather) Fetch(_ context.Context, _ tools.WeatherInput) (*tools.WeatherReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeStocks struct {
	quoteCalls   int
	historyCalls int
	lastQuoteIn  tools.StockInput
	lastHistIn   tools.HistoricalStockInput
	quote        *tools.StockQuote
	series       *tools.HistoricalSeries
	err          error
}

func (f *fakeStocks) Quote(_ context.Context, in tools.StockInput) (*tools.StockQuote, error) {
	f.quoteCalls++
	f.lastQuoteIn = in
	return f.quote, f.err
}

func (f *fakeStocks) History(_ context.Context, in tools.HistoricalStockInput) (*tools.HistoricalSeries, error) {
	f.historyCalls++
	f.lastHistIn = in
	return f.series, f.err
}

// chatFunc adapts a function to the llm.Client interface.
type chatFunc func(ctx context.Context, messages []datatypes.Message, opts llm.ChatOptions) (string, error)

func (f chatFunc) Chat(ctx context.Context, messages []datatypes.Message, opts llm.ChatOptions) (string, error) {
	return f(ctx, messages, opts)
}

// recordingChat captures every request and replies with a fixed string.
type recordingChat struct {
	requests [][]datatypes.Message
	reply    string
	err      error
}

func (r *recordingChat) Chat(_ context.Context, messages []datatypes.Message, _ llm.ChatOptions) (string, error) {
	r.requests = append(r.requests, messages)
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

func newTestOrchestrator(t *testing.T, weather WeatherFetcher, stocks *fakeStocks, chat llm.Client) *Orchestrator {
	t.Helper()
	rules := config.MustLoadRoutingRules()
	if weather == nil {
		weather = &fakeWeather{report: &tools.WeatherReport{Location: "Testville"}}
	}
	if stocks == nil {
		stocks = &fakeStocks{
			quote:  &tools.StockQuote{Symbol: "MSFT", LatestPrice: 400},
			series: &tools.HistoricalSeries{Symbol: "MSFT"},
		}
	}
	if chat == nil {
		chat = &recordingChat{reply: "summary text"}
	}
	orch, err := NewOrchestrator(rules, weather, stocks, stocks, chat, DefaultOrchestratorConfig(), nil)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	orch.now = func() time.Time { return time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC) }
	return orch
}

// =============================================================================
// Clarification Paths
// =============================================================================

func TestRespond_WeatherMissingLocationAsksClarification(t *testing.T) {
	weather := &fakeWeather{report: &tools.WeatherReport{}}
	chat := &recordingChat{reply: "should not be used"}
	orch := newTestOrchestrator(t, weather, nil, chat)

	res, err := orch.Respond(context.Background(), "what's the weather like today", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if res.Response != "Which location's weather are you interested in?" {
		t.Errorf("got %q, want the location clarification", res.Response)
	}
	if weather.calls != 0 {
		t.Errorf("weather tool called %d times, want 0", weather.calls)
	}
	if len(chat.requests) != 0 {
		t.Errorf("chat called %d times, want 0 on clarification", len(chat.requests))
	}
	if res.StructuredData != nil {
		t.Error("clarification must not carry structured data")
	}
}

func TestRespond_CurrentStockMissingSymbolAsksClarification(t *testing.T) {
	stocks := &fakeStocks{}
	orch := newTestOrchestrator(t, nil, stocks, nil)

	res, err := orch.Respond(context.Background(), "what's the stock price", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if res.Response != "Which stock symbol are you interested in?" {
		t.Errorf("got %q, want the symbol clarification", res.Response)
	}
	if stocks.quoteCalls != 0 {
		t.Errorf("quote tool called %d times, want 0", stocks.quoteCalls)
	}
}

func TestRespond_HistoricalMissingSymbolAsksClarification(t *testing.T) {
	stocks := &fakeStocks{}
	orch := newTestOrchestrator(t, nil, stocks, nil)

	res, err := orch.Respond(context.Background(), "show me the historical data", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if res.Response != "Which stock symbol's historical data do you want?" {
		t.Errorf("got %q, want the historical symbol clarification", res.Response)
	}
	if stocks.historyCalls != 0 {
		t.Errorf("history tool called %d times, want 0", stocks.historyCalls)
	}
}

func TestRespond_HistoricalMissingRangeAsksClarification(t *testing.T) {
	stocks := &fakeStocks{}
	orch := newTestOrchestrator(t, nil, stocks, nil)

	res, err := orch.Respond(context.Background(), "show me historical data for AAPL", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	want := "For which date range do you want historical data for AAPL?"
	if res.Response != want {
		t.Errorf("got %q, want %q", res.Response, want)
	}
	if stocks.historyCalls != 0 {
		t.Errorf("history tool called %d times, want 0", stocks.historyCalls)
	}
}

// =============================================================================
// Dispatch and Summarization
// =============================================================================

func TestRespond_CurrentStockEndToEnd(t *testing.T) {
	stocks := &fakeStocks{quote: &tools.StockQuote{Symbol: "MSFT", LatestPrice: 415.32}}
	chat := &recordingChat{reply: "MSFT trades at $415.32."}
	orch := newTestOrchestrator(t, nil, stocks, chat)

	res, err := orch.Respond(context.Background(), "what's the price of MSFT", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}

	if stocks.quoteCalls != 1 {
		t.Fatalf("quote tool called %d times, want 1", stocks.quoteCalls)
	}
	if stocks.lastQuoteIn.Symbol != "MSFT" {
		t.Errorf("quote input symbol = %q, want MSFT", stocks.lastQuoteIn.Symbol)
	}
	if res.Response != "MSFT trades at $415.32." {
		t.Errorf("Response = %q, want the summarizer output", res.Response)
	}
	quote, ok := res.StructuredData.(*tools.StockQuote)
	if !ok {
		t.Fatalf("StructuredData is %T, want *tools.StockQuote", res.StructuredData)
	}
	if quote.LatestPrice != 415.32 {
		t.Errorf("structured payload price = %v, want 415.32", quote.LatestPrice)
	}

	// The summarizer prompt carries the original query and the serialized
	// payload.
	if len(chat.requests) != 1 {
		t.Fatalf("chat called %d times, want 1", len(chat.requests))
	}
	prompt := chat.requests[0][len(chat.requests[0])-1].Content
	if !strings.Contains(prompt, `"what's the price of MSFT"`) {
		t.Errorf("prompt missing original query: %s", prompt)
	}
	if !strings.Contains(prompt, `"latest_price":415.32`) {
		t.Errorf("prompt missing serialized payload: %s", prompt)
	}
}

func TestRespond_WeatherEndToEnd(t *testing.T) {
	weather := &fakeWeather{report: &tools.WeatherReport{Location: "London, GB", Temperature: 11.5}}
	chat := &recordingChat{reply: "It's 11.5°C in London."}
	orch := newTestOrchestrator(t, weather, nil, chat)

	res, err := orch.Respond(context.Background(), "what's the weather in London", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if weather.calls != 1 {
		t.Fatalf("weather tool called %d times, want 1", weather.calls)
	}
	if res.Response != "It's 11.5°C in London." {
		t.Errorf("Response = %q", res.Response)
	}
	if _, ok := res.StructuredData.(*tools.WeatherReport); !ok {
		t.Fatalf("StructuredData is %T, want *tools.WeatherReport", res.StructuredData)
	}
}

func TestRespond_HistoricalEndToEnd(t *testing.T) {
	series := &tools.HistoricalSeries{
		Symbol: "TSLA",
		Historical: []tools.HistoricalBar{
			{Date: "2023-01-02", Close: 108.1},
			{Date: "2023-01-03", Close: 110.4},
		},
	}
	stocks := &fakeStocks{series: series}
	chat := &recordingChat{reply: "TSLA rose over the window."}
	orch := newTestOrchestrator(t, nil, stocks, chat)

	res, err := orch.Respond(context.Background(), "TSLA performance from 2023-01-01 to 2023-02-01", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if stocks.historyCalls != 1 {
		t.Fatalf("history tool called %d times, want 1", stocks.historyCalls)
	}
	if stocks.lastHistIn.Symbol != "TSLA" {
		t.Errorf("history input symbol = %q, want TSLA", stocks.lastHistIn.Symbol)
	}
	if stocks.lastHistIn.StartDate != "2023-01-01" || stocks.lastHistIn.EndDate != "2023-02-01" {
		t.Errorf("history input range = (%s, %s), want (2023-01-01, 2023-02-01)",
			stocks.lastHistIn.StartDate, stocks.lastHistIn.EndDate)
	}
	if res.Response != "TSLA rose over the window." {
		t.Errorf("Response = %q", res.Response)
	}

	// Small series: no truncation note in the prompt.
	prompt := chat.requests[0][len(chat.requests[0])-1].Content
	if strings.Contains(prompt, "summarize key trends") {
		t.Errorf("truncation note present for a %d-bar series", len(series.Historical))
	}
}

func TestRespond_HistoricalTruncationNote(t *testing.T) {
	bars := make([]tools.HistoricalBar, 15)
	for i := range bars {
		bars[i] = tools.HistoricalBar{Date: fmt.Sprintf("2023-01-%02d", i+1), Close: 100 + float64(i)}
	}
	stocks := &fakeStocks{series: &tools.HistoricalSeries{Symbol: "AAPL", Historical: bars}}
	chat := &recordingChat{reply: "AAPL trended upward."}
	orch := newTestOrchestrator(t, nil, stocks, chat)

	_, err := orch.Respond(context.Background(), "AAPL from 2023-01-01 to 2023-01-31", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	prompt := chat.requests[0][len(chat.requests[0])-1].Content
	if !strings.Contains(prompt, "summarize key trends") {
		t.Errorf("truncation note missing for a %d-bar series: %s", len(bars), prompt)
	}
}

// =============================================================================
// Failure Degradation
// =============================================================================

func TestRespond_ToolFailurePoliteNotice(t *testing.T) {
	stocks := &fakeStocks{err: fmt.Errorf("%w: status 502", tools.ErrUpstream)}
	chat := &recordingChat{reply: "I'm sorry, I couldn't reach the stock service just now."}
	orch := newTestOrchestrator(t, nil, stocks, chat)

	res, err := orch.Respond(context.Background(), "price of MSFT", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if res.Response != "I'm sorry, I couldn't reach the stock service just now." {
		t.Errorf("Response = %q, want the collaborator's phrasing", res.Response)
	}
	if res.StructuredData != nil {
		t.Error("tool failure must not surface structured data")
	}

	// The failure is forwarded as an internal assistant note.
	last := chat.requests[0][len(chat.requests[0])-1]
	if last.Role != datatypes.RoleAssistant {
		t.Errorf("failure note role = %q, want assistant", last.Role)
	}
	if !strings.Contains(last.Content, "Internal Note: The stock tool failed with error:") {
		t.Errorf("failure note malformed: %s", last.Content)
	}
}

func TestRespond_ToolFailureChatAlsoDownFallsBackToTemplate(t *testing.T) {
	stocks := &fakeStocks{err: errors.New("connection refused")}
	chat := chatFunc(func(context.Context, []datatypes.Message, llm.ChatOptions) (string, error) {
		return "", errors.New("llm down")
	})
	orch := newTestOrchestrator(t, nil, stocks, chat)

	res, err := orch.Respond(context.Background(), "price of MSFT", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if res.Response != "Sorry, I couldn't get the stock data due to an error." {
		t.Errorf("Response = %q, want the templated fallback", res.Response)
	}
	if res.StructuredData != nil {
		t.Error("fallback must not surface structured data")
	}
}

func TestRespond_SummarizerFailureKeepsPayload(t *testing.T) {
	stocks := &fakeStocks{quote: &tools.StockQuote{Symbol: "MSFT", LatestPrice: 400}}
	chat := chatFunc(func(context.Context, []datatypes.Message, llm.ChatOptions) (string, error) {
		return "", errors.New("model overloaded")
	})
	orch := newTestOrchestrator(t, nil, stocks, chat)

	res, err := orch.Respond(context.Background(), "price of MSFT", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if res.Response != "I found the data, but had trouble summarizing it." {
		t.Errorf("Response = %q, want the summarization fallback", res.Response)
	}
	if res.StructuredData == nil {
		t.Error("structured payload must survive a summarizer failure")
	}
}

func TestRespond_PanicInToolBecomesApology(t *testing.T) {
	weather := &panickyWeather{}
	orch := newTestOrchestrator(t, weather, nil, nil)

	res, err := orch.Respond(context.Background(), "weather in Boston", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if !strings.Contains(res.Response, "internal error") {
		t.Errorf("Response = %q, want the internal-error apology", res.Response)
	}
}

type panickyWeather struct{}

func (panickyWeather) Fetch(context.Context, tools.WeatherInput) (*tools.WeatherReport, error) {
	panic("boom")
}

// =============================================================================
// Conversational Path
// =============================================================================

func TestRespond_ConversationalPassesHistory(t *testing.T) {
	chat := &recordingChat{reply: "Hello! How can I help?"}
	orch := newTestOrchestrator(t, nil, nil, chat)

	history := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "hi"},
		{Role: datatypes.RoleAssistant, Content: "hello"},
	}
	res, err := orch.Respond(context.Background(), "tell me a joke", history)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if res.Response != "Hello! How can I help?" {
		t.Errorf("Response = %q", res.Response)
	}
	if res.StructuredData != nil {
		t.Error("conversational replies carry no structured data")
	}

	msgs := chat.requests[0]
	if msgs[0].Role != datatypes.RoleSystem {
		t.Fatalf("first message role = %q, want system", msgs[0].Role)
	}
	// System prompt + prior 2 turns + current user turn.
	if len(msgs) != 4 {
		t.Fatalf("chat got %d messages, want 4", len(msgs))
	}
	last := msgs[len(msgs)-1]
	if last.Role != datatypes.RoleUser || last.Content != "tell me a joke" {
		t.Errorf("last message = %+v, want the current user turn", last)
	}
}

func TestRespond_ConversationalChatDownFallsBack(t *testing.T) {
	orch := newTestOrchestrator(t, nil, nil, llm.NewDisabledClient("test"))

	res, err := orch.Respond(context.Background(), "how are you today", nil)
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if res.Response != "I'm not sure how to respond to that right now." {
		t.Errorf("Response = %q, want the conversational fallback", res.Response)
	}
}

func TestRespond_DoesNotMutateCallerHistory(t *testing.T) {
	orch := newTestOrchestrator(t, nil, nil, nil)

	history := make([]datatypes.Message, 1, 4)
	history[0] = datatypes.Message{Role: datatypes.RoleUser, Content: "hi"}
	snapshot := datatypes.CloneHistory(history)

	if _, err := orch.Respond(context.Background(), "hello again", history); err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if len(history) != len(snapshot) || history[0] != snapshot[0] {
		t.Error("caller's history slice was mutated")
	}
}

func TestRespond_CancelledContext(t *testing.T) {
	orch := newTestOrchestrator(t, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := orch.Respond(ctx, "hello", nil); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
