// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package concierge implements the conversational request router: the
// /chat transport, the per-conversation session store, and the
// orchestration core that classifies a query, extracts parameters,
// dispatches to a data tool, and assembles the reply.
package concierge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/concierge/services/concierge/config"
	"github.com/AleutianAI/concierge/services/concierge/routing"
	"github.com/AleutianAI/concierge/services/concierge/tools"
	"github.com/AleutianAI/concierge/services/datatypes"
	"github.com/AleutianAI/concierge/services/llm"
)

var tracer = otel.Tracer("concierge.orchestrator")

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// WeatherFetcher is the weather tool adapter contract.
type WeatherFetcher interface {
	Fetch(ctx context.Context, in tools.WeatherInput) (*tools.WeatherReport, error)
}

// QuoteFetcher is the current-stock tool adapter contract.
type QuoteFetcher interface {
	Quote(ctx context.Context, in tools.StockInput) (*tools.StockQuote, error)
}

// HistoryFetcher is the historical-stock tool adapter contract.
type HistoryFetcher interface {
	History(ctx context.Context, in tools.HistoricalStockInput) (*tools.HistoricalSeries, error)
}

// =============================================================================
// Clarification and Degradation Templates
// =============================================================================

// One fixed clarifying question per missing-parameter case. A missing
// parameter is terminal for the turn: no tool call, no retry.
const (
	clarifyWeatherLocation   = "Which location's weather are you interested in?"
	clarifyCurrentSymbol     = "Which stock symbol are you interested in?"
	clarifyHistoricalSymbol  = "Which stock symbol's historical data do you want?"
	clarifyHistoricalRangeFn = "For which date range do you want historical data for %s?"
)

const (
	summarizeFailedReply   = "I found the data, but had trouble summarizing it."
	conversationFallback   = "I'm not sure how to respond to that right now."
	toolFailureFn          = "Sorry, I couldn't get the %s data due to an error."
	internalErrorFn        = "Sorry, an internal error occurred while processing the %s request."
	truncationInstructions = "Note: If there are many data points, summarize key trends or provide the first few and last few data points, rather than listing everything."
)

// truncationThreshold is the historical point count above which the
// summarizer is told to truncate instead of enumerating.
const truncationThreshold = 10

// System prompts for the conversational collaborator and the per-domain
// summarizer variants.
const (
	conversationalSystemPrompt = "You are the primary assistant managing the conversation. " +
		"Maintain a friendly and conversational tone. Analyze the user's latest message " +
		"in the context of the conversation history and respond helpfully. When an " +
		"internal note reports a tool failure, inform the user politely without exposing " +
		"internal details."

	weatherSummarizerPrompt = "You are a helpful assistant that provides real-time weather " +
		"updates. Summarize the retrieved weather data concisely for the user."

	stockSummarizerPrompt = "You are an assistant that reports the latest stock price for a " +
		"given ticker symbol. Summarize the retrieved quote concisely for the user."

	historicalSummarizerPrompt = "You are an assistant that reports historical end-of-day " +
		"stock data (open, high, low, close, volume) for a ticker symbol over a date range. " +
		"Mention the symbol and the date range clearly."
)

// =============================================================================
// Orchestrator
// =============================================================================

// Result is the outcome of one orchestrated turn.
type Result struct {
	// Response is the natural-language reply. Never empty.
	Response string

	// StructuredData is the tool success payload, or nil. A tool error
	// payload is never placed here.
	StructuredData any
}

// OrchestratorConfig bounds the orchestrator's external calls.
type OrchestratorConfig struct {
	// ToolTimeout caps each data-tool call.
	// Default: 15s
	ToolTimeout time.Duration `json:"tool_timeout"`

	// ChatTimeout caps each summarizer/conversational call.
	// Default: 60s
	ChatTimeout time.Duration `json:"chat_timeout"`

	// Temperature for summarizer and conversational calls.
	// Default: 0.3
	Temperature float64 `json:"temperature"`

	// MaxTokens limits summarizer output length.
	// Default: 512
	MaxTokens int `json:"max_tokens"`
}

// DefaultOrchestratorConfig returns sensible defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ToolTimeout: 15 * time.Second,
		ChatTimeout: 60 * time.Second,
		Temperature: 0.3,
		MaxTokens:   512,
	}
}

// Orchestrator runs the per-request state machine:
// Classify -> ExtractParams -> (Dispatch | AskClarification) -> Respond.
//
// # Description
//
//	Stateless between requests: the only cross-request state is the
//	session history, which the transport layer owns. Every external call
//	(tool adapter, chat collaborator) is wrapped so a failure degrades to
//	a user-facing reply; nothing propagates past Respond except context
//	cancellation.
//
// # Thread Safety
//
// Safe for concurrent use (all fields are read-only after construction).
type Orchestrator struct {
	classifier *routing.Classifier
	symbols    []config.SymbolMapping

	weather WeatherFetcher
	quotes  QuoteFetcher
	history HistoryFetcher
	chat    llm.Client

	cfg    OrchestratorConfig
	logger *slog.Logger

	// now supplies the reference date for date-range extraction.
	// Injectable so extraction is reproducible in tests.
	now func() time.Time
}

// NewOrchestrator wires the orchestration core.
//
// # Inputs
//
//   - rules: Immutable routing rule tables. Must not be nil.
//   - weather, quotes, history: Tool adapters. Must not be nil.
//   - chat: Chat collaborator. Must not be nil (use llm.NewDisabledClient
//     to run without a provider).
//   - cfg: Call bounds; zero fields take defaults.
//   - logger: Structured logger. May be nil (slog.Default is used).
//
// # Outputs
//
//   - *Orchestrator: The wired core.
//   - error: Non-nil when a required collaborator is missing.
func NewOrchestrator(
	rules *config.RoutingRules,
	weather WeatherFetcher,
	quotes QuoteFetcher,
	history HistoryFetcher,
	chat llm.Client,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if rules == nil {
		return nil, fmt.Errorf("routing rules must not be nil")
	}
	if weather == nil || quotes == nil || history == nil {
		return nil, fmt.Errorf("all tool adapters must be set")
	}
	if chat == nil {
		return nil, fmt.Errorf("chat client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultOrchestratorConfig()
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaults.ToolTimeout
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = defaults.ChatTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}

	return &Orchestrator{
		classifier: routing.NewClassifier(rules),
		symbols:    rules.SymbolTable,
		weather:    weather,
		quotes:     quotes,
		history:    history,
		chat:       chat,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Respond runs one turn through the state machine.
//
// # Description
//
//	Appends the query as a user turn to a working copy of the history
//	(the caller's slice is never mutated), classifies the raw query,
//	extracts parameters for the selected route, then either asks a
//	clarifying question, dispatches to the matching tool, or answers
//	conversationally. The caller persists the assistant turn.
//
// # Inputs
//
//   - ctx: Context for cancellation; per-call timeouts are layered on top.
//   - query: The latest user utterance.
//   - history: Prior turns, oldest first, without the current query.
//
// # Outputs
//
//   - *Result: Reply text plus optional structured payload.
//   - error: Non-nil only when ctx is already done.
//
// # Thread Safety
//
// Safe for concurrent use.
func (o *Orchestrator) Respond(ctx context.Context, query string, history []datatypes.Message) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Orchestrator.Respond")
	defer span.End()

	start := time.Now()
	working := datatypes.CloneHistory(history, datatypes.Message{Role: datatypes.RoleUser, Content: query})

	intent := o.classifier.Classify(query)
	span.SetAttributes(
		attribute.String("route.intent", intent.String()),
		attribute.Int("history.turns", len(history)),
	)
	logger := o.logger.With(slog.String("intent", intent.String()))
	logger.Info("query classified", slog.Int("history_turns", len(history)))

	var res *Result
	switch intent {
	case routing.IntentWeather:
		res = o.routeWeather(ctx, query, working, logger)
	case routing.IntentHistoricalStock:
		res = o.routeHistorical(ctx, query, working, logger)
	case routing.IntentCurrentStock:
		res = o.routeCurrentStock(ctx, query, working, logger)
	default:
		res = o.converse(ctx, working, logger)
	}

	RecordTurnDuration(intent.String(), time.Since(start).Seconds())
	return res, nil
}

// =============================================================================
// Per-Route Extraction and Dispatch
// =============================================================================

func (o *Orchestrator) routeWeather(ctx context.Context, query string, working []datatypes.Message, logger *slog.Logger) *Result {
	location, err := routing.ExtractLocation(query)
	if err != nil {
		logger.Info("weather query missing location, asking for clarification")
		return &Result{Response: clarifyWeatherLocation}
	}

	in := tools.WeatherInput{Location: location, Unit: "metric"}
	return o.safeDispatch("weather", func() *Result {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
		defer cancel()

		report, err := o.weather.Fetch(tctx, in)
		if err != nil {
			return o.toolFailure(ctx, "weather", working, err, logger)
		}
		RecordToolCall("weather", "success")
		return o.summarizeAndRespond(ctx, "weather", weatherSummarizerPrompt, query, report, "", logger)
	})
}

func (o *Orchestrator) routeCurrentStock(ctx context.Context, query string, working []datatypes.Message, logger *slog.Logger) *Result {
	symbol, err := routing.ExtractSymbol(query, o.symbols)
	if err != nil {
		logger.Info("stock query missing symbol, asking for clarification")
		return &Result{Response: clarifyCurrentSymbol}
	}

	in := tools.StockInput{Symbol: symbol}
	return o.safeDispatch("stock", func() *Result {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
		defer cancel()

		quote, err := o.quotes.Quote(tctx, in)
		if err != nil {
			return o.toolFailure(ctx, "stock", working, err, logger)
		}
		RecordToolCall("stock", "success")
		return o.summarizeAndRespond(ctx, "stock", stockSummarizerPrompt, query, quote, "", logger)
	})
}

func (o *Orchestrator) routeHistorical(ctx context.Context, query string, working []datatypes.Message, logger *slog.Logger) *Result {
	symbol, err := routing.ExtractSymbol(query, o.symbols)
	if err != nil {
		logger.Info("historical query missing symbol, asking for clarification")
		return &Result{Response: clarifyHistoricalSymbol}
	}
	dateRange, err := routing.ExtractDateRange(query, o.now())
	if err != nil {
		logger.Info("historical query missing date range, asking for clarification",
			slog.String("symbol", symbol))
		return &Result{Response: fmt.Sprintf(clarifyHistoricalRangeFn, symbol)}
	}

	in := tools.HistoricalStockInput{
		Symbol:    symbol,
		StartDate: dateRange.FormatStart(),
		EndDate:   dateRange.FormatEnd(),
	}
	return o.safeDispatch("historical_stock", func() *Result {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
		defer cancel()

		series, err := o.history.History(tctx, in)
		if err != nil {
			return o.toolFailure(ctx, "historical_stock", working, err, logger)
		}
		RecordToolCall("historical_stock", "success")

		extra := ""
		if len(series.Historical) > truncationThreshold {
			extra = truncationInstructions
		}
		return o.summarizeAndRespond(ctx, "historical_stock", historicalSummarizerPrompt, query, series, extra, logger)
	})
}

// safeDispatch converts a panic during dispatch or summarization into a
// generic apology. Raw failures never reach the transport layer.
func (o *Orchestrator) safeDispatch(domain string, fn func() *Result) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("dispatch panic recovered",
				slog.String("tool", domain),
				slog.Any("panic", r),
			)
			RecordToolCall(domain, "panic")
			res = &Result{Response: fmt.Sprintf(internalErrorFn, domain)}
		}
	}()
	return fn()
}

// =============================================================================
// Response Assembly
// =============================================================================

// summarizeAndRespond composes the summarization prompt from the original
// query and the serialized payload, then runs the domain summarizer. The
// structured payload is preserved even when summarization fails.
func (o *Orchestrator) summarizeAndRespond(ctx context.Context, domain, systemPrompt, query string, payload any, extra string, logger *slog.Logger) *Result {
	serialized, err := json.Marshal(payload)
	if err != nil {
		// Payloads are plain structs; this should never fire.
		logger.Error("payload serialization failed", slog.String("error", err.Error()))
		return &Result{Response: summarizeFailedReply, StructuredData: payload}
	}

	prompt := fmt.Sprintf("User asked: %q. You retrieved the following data: %s. "+
		"Please summarize this data concisely for the user.", query, serialized)
	if extra != "" {
		prompt += " " + extra
	}

	messages := []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: systemPrompt},
		{Role: datatypes.RoleUser, Content: prompt},
	}

	text, err := o.chatCall(ctx, messages)
	if err != nil {
		logger.Warn("summarization failed, degrading to generic reply",
			slog.String("tool", domain),
			slog.String("error", err.Error()),
		)
		RecordSummarizerFailure(domain)
		return &Result{Response: summarizeFailedReply, StructuredData: payload}
	}

	return &Result{Response: text, StructuredData: payload}
}

// toolFailure asks the conversational collaborator to phrase a polite
// failure notice. The tool's error payload is discarded: it is never
// surfaced as structured data.
func (o *Orchestrator) toolFailure(ctx context.Context, domain string, working []datatypes.Message, toolErr error, logger *slog.Logger) *Result {
	logger.Warn("tool call failed",
		slog.String("tool", domain),
		slog.String("error", toolErr.Error()),
	)
	RecordToolCall(domain, "error")

	note := fmt.Sprintf("Internal Note: The %s tool failed with error: %v. Inform the user politely.", domain, toolErr)
	messages := make([]datatypes.Message, 0, len(working)+2)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleSystem, Content: conversationalSystemPrompt})
	messages = append(messages, working...)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleAssistant, Content: note})

	text, err := o.chatCall(ctx, messages)
	if err != nil {
		return &Result{Response: fmt.Sprintf(toolFailureFn, domain)}
	}
	return &Result{Response: text}
}

// converse forwards the full working history to the conversational
// collaborator for a free-form reply. No tool is invoked.
func (o *Orchestrator) converse(ctx context.Context, working []datatypes.Message, logger *slog.Logger) *Result {
	messages := make([]datatypes.Message, 0, len(working)+1)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleSystem, Content: conversationalSystemPrompt})
	messages = append(messages, working...)

	text, err := o.chatCall(ctx, messages)
	if err != nil {
		logger.Warn("conversational reply failed, degrading to fallback",
			slog.String("error", err.Error()),
		)
		RecordSummarizerFailure("conversational")
		return &Result{Response: conversationFallback}
	}
	return &Result{Response: text}
}

func (o *Orchestrator) chatCall(ctx context.Context, messages []datatypes.Message) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.ChatTimeout)
	defer cancel()

	ctxSpan, span := tracer.Start(cctx, "Orchestrator.chatCall")
	defer span.End()

	text, err := o.chat.Chat(ctxSpan, messages, llm.ChatOptions{
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return "", err
	}
	return text, nil
}
