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
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/concierge/services/concierge/config"
	"github.com/AleutianAI/concierge/services/concierge/tools"
	"github.com/AleutianAI/concierge/services/llm"
)

// Service bundles the session store, orchestrator, and HTTP handlers
// for one concierge deployment.
type Service struct {
	Store        *SessionStore
	Orchestrator *Orchestrator
	Handlers     *Handlers
}

// NewService builds a fully wired Service from the environment.
//
// # Description
//
//	Loads the embedded routing rules, constructs the weather and stock
//	clients from their API-key env vars, and selects a chat collaborator:
//	Ollama when OLLAMA_MODEL is set, otherwise OpenAI when OPENAI_API_KEY
//	is set, otherwise a disabled client so the service still answers with
//	templated degradations.
func NewService(cfg OrchestratorConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := config.LoadRoutingRules()
	if err != nil {
		return nil, fmt.Errorf("loading routing rules: %w", err)
	}

	weather := tools.NewWeatherClient()
	stocks := tools.NewStockClient()
	chat := selectChatClient(logger)

	orch, err := NewOrchestrator(rules, weather, stocks, stocks, chat, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("wiring orchestrator: %w", err)
	}

	store := NewSessionStore()
	return &Service{
		Store:        store,
		Orchestrator: orch,
		Handlers:     NewHandlers(orch, store, logger),
	}, nil
}

func selectChatClient(logger *slog.Logger) llm.Client {
	if os.Getenv("OLLAMA_MODEL") != "" {
		client, err := llm.NewOllamaClient()
		if err == nil {
			logger.Info("using ollama chat client", slog.String("model", os.Getenv("OLLAMA_MODEL")))
			return client
		}
		logger.Warn("ollama client unavailable, trying openai", slog.String("error", err.Error()))
	}

	if os.Getenv("OPENAI_API_KEY") != "" {
		client, err := llm.NewOpenAIClient()
		if err == nil {
			logger.Info("using openai chat client")
			return client
		}
		logger.Warn("openai client unavailable", slog.String("error", err.Error()))
	}

	logger.Warn("no chat provider configured; summaries and conversation will degrade to templated replies")
	return llm.NewDisabledClient("no provider configured (set OLLAMA_MODEL or OPENAI_API_KEY)")
}
