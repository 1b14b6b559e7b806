// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command concierge starts the Aleutian Concierge API server.
//
// Aleutian Concierge is a conversational request router:
//   - Keyword-based intent classification (weather, stocks, chat)
//   - Regex parameter extraction (location, ticker symbol, date range)
//   - Live data via OpenWeather and Financial Modeling Prep
//   - LLM-backed summarization and conversational replies
//
// Usage:
//
//	go run ./cmd/concierge
//	go run ./cmd/concierge -port 9090
//
// With Ollama (for summaries and conversation):
//
//	OLLAMA_BASE_URL=http://localhost:11434 OLLAMA_MODEL=llama3.2 go run ./cmd/concierge
//
// With OpenAI:
//
//	OPENAI_API_KEY=sk-... go run ./cmd/concierge
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/concierge/health
//
//	# Ask about the weather
//	curl -X POST http://localhost:8080/v1/concierge/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "What is the weather in London?"}'
//
//	# Follow up in the same conversation
//	curl -X POST http://localhost:8080/v1/concierge/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "How about Paris?", "conversation_id": "<id from previous reply>"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/concierge/services/concierge"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	traceStdout := flag.Bool("trace-stdout", false, "Export OTel spans to stdout")
	rps := flag.Float64("rps", 20, "Sustained requests per second allowed per instance")
	burst := flag.Int("burst", 40, "Request burst allowed per instance")
	flag.Parse()

	// Load .env if present; real env vars win.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so spans correlate across clients.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdownTracing := setupTracing(*traceStdout)
	defer shutdownTracing()

	svc, err := concierge.NewService(concierge.DefaultOrchestratorConfig(), slog.Default())
	if err != nil {
		slog.Error("Failed to build concierge service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-concierge"))
	if *debug {
		router.Use(gin.Logger())
	}
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "X-Request-ID", "traceparent", "tracestate"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(*rps), *burst)))

	v1 := router.Group("/v1/concierge")
	concierge.RegisterRoutes(v1, svc.Handlers)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting Aleutian Concierge server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down Aleutian Concierge server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupTracing installs a stdout span exporter when enabled. The noop
// provider stays in place otherwise so instrumentation costs nothing.
func setupTracing(enabled bool) func() {
	if !enabled {
		return func() {}
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		slog.Warn("Stdout trace exporter unavailable, tracing disabled",
			slog.String("error", err.Error()))
		return func() {}
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Warn("Trace provider shutdown failed", slog.String("error", err.Error()))
		}
	}
}

// rateLimitMiddleware rejects requests over the instance-wide limit
// with 429 so a misbehaving client cannot exhaust upstream API quotas.
func rateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, concierge.ErrorResponse{Detail: "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func printBanner(port int) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                    ALEUTIAN CONCIERGE SERVER                      ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Conversational router for weather and stock market queries.      ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/concierge/health           │  ║
║  │                                                             │  ║
║  │ # Ask something                                             │  ║
║  │ curl -X POST http://localhost:%d/v1/concierge/chat \   │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"query": "What is the weather in London?"}'          │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Routes: weather | current stock | historical stock | chat        ║
║  Data:   OpenWeather, Financial Modeling Prep                     ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, port, port)
}
