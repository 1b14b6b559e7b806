// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the chat clients behind the Concierge summarizer
// and conversational collaborator. The orchestration core depends only on
// the Client interface; any provider (OpenAI-compatible, Ollama) can sit
// behind it, and tests substitute a function fake.
package llm

import (
	"context"

	"github.com/AleutianAI/concierge/services/datatypes"
)

// Client is the narrow interface the orchestrator uses for both
// summarization and conversational replies.
//
// # Description
//
//	The core never inspects provider internals: it sends messages, gets
//	back best-effort natural-language text, and treats any error as
//	"collaborator unavailable" (degrading to a templated reply). No tool
//	calls, no streaming.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Chat sends messages and returns the assistant's response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation messages (system, user, assistant).
	//   - opts: Provider-agnostic chat options.
	//
	// Outputs:
	//   - string: The assistant's response text.
	//   - error: Non-nil on failure or empty output.
	Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error)
}

// ChatOptions holds provider-agnostic options for a chat request.
type ChatOptions struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// Temperature controls randomness (0.0-1.0).
	Temperature float64

	// MaxTokens limits the response length. Zero means provider default.
	MaxTokens int
}
