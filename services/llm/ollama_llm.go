// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/AleutianAI/concierge/services/datatypes"
)

// OllamaClient implements Client against a local Ollama instance via
// langchaingo. Intended for keyless local deployments.
//
// # Thread Safety
//
// Safe for concurrent use.
type OllamaClient struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaClient creates an OllamaClient from environment variables.
//
// # Description
//
//	Reads OLLAMA_MODEL (required) and OLLAMA_BASE_URL (optional; the
//	langchaingo default of http://localhost:11434 applies when unset).
//
// # Outputs
//
//   - *OllamaClient: The configured client.
//   - error: Non-nil if OLLAMA_MODEL is missing or the client cannot be built.
func NewOllamaClient() (*OllamaClient, error) {
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		return nil, fmt.Errorf("ollama: model is missing (OLLAMA_MODEL)")
	}

	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating client: %w", err)
	}
	return &OllamaClient{llm: client, model: model}, nil
}

// Chat sends messages to the Ollama chat endpoint.
//
// # Thread Safety
//
// Safe for concurrent use.
func (c *OllamaClient) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case datatypes.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case datatypes.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("ollama: generation failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("ollama: empty completion")
	}
	return resp.Choices[0].Content, nil
}
