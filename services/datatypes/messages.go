// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire types shared between the Concierge
// transport layer, the orchestration core, and the LLM clients.
package datatypes

// Message roles. History is an ordered sequence of turns, oldest first.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CloneHistory returns a copy of the given history with the extra turns
// appended. The input slice is never mutated; callers can hand the result
// to a collaborator without exposing the stored history to aliasing.
func CloneHistory(history []Message, extra ...Message) []Message {
	out := make([]Message, 0, len(history)+len(extra))
	out = append(out, history...)
	out = append(out, extra...)
	return out
}
