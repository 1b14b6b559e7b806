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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/concierge/services/datatypes"
)

func TestOpenAIChat_Success(t *testing.T) {
	var gotReq openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "hello back"}, "finish_reason": "stop"}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "test-model", server.URL)
	reply, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: "be brief"},
		{Role: datatypes.RoleUser, Content: "hello"},
	}, ChatOptions{Temperature: 0.3, MaxTokens: 128})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}

	if reply != "hello back" {
		t.Errorf("reply = %q, want hello back", reply)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q, want test-model", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != datatypes.RoleSystem {
		t.Errorf("messages not forwarded: %+v", gotReq.Messages)
	}
	if gotReq.MaxCompletionTokens == nil || *gotReq.MaxCompletionTokens != 128 {
		t.Errorf("max_completion_tokens not forwarded: %+v", gotReq.MaxCompletionTokens)
	}
}

func TestOpenAIChat_ModelOverride(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "default-model", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "hi"},
	}, ChatOptions{Model: "override-model"})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if gotModel != "override-model" {
		t.Errorf("model = %q, want override-model", gotModel)
	}
}

func TestOpenAIChat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "Incorrect API key"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("bad-key", "test-model", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "hi"},
	}, ChatOptions{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("provider message not preserved: %v", err)
	}
}

func TestOpenAIChat_EmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "test-model", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "hi"},
	}, ChatOptions{})
	if err == nil || !strings.Contains(err.Error(), "empty completion") {
		t.Errorf("got %v, want an empty-completion error", err)
	}
}

func TestNewOpenAIClient_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAIClient(); err == nil {
		t.Error("expected an error when OPENAI_API_KEY is unset")
	}
}

func TestDisabledClient(t *testing.T) {
	client := NewDisabledClient("maintenance window")
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "hi"},
	}, ChatOptions{})
	if err == nil || !strings.Contains(err.Error(), "maintenance window") {
		t.Errorf("got %v, want the disabled reason", err)
	}
}
