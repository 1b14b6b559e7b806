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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/concierge/services/datatypes"
)

// Responder is the orchestration contract the transport layer depends
// on. Tests substitute a function fake.
type Responder interface {
	Respond(ctx context.Context, query string, history []datatypes.Message) (*Result, error)
}

// =============================================================================
// Wire Types
// =============================================================================

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	// Query is the user's utterance. Required.
	Query string `json:"query" binding:"required"`

	// ConversationID selects the session. Empty means "start a new
	// conversation"; the server mints an id and returns it.
	ConversationID string `json:"conversation_id"`

	// History, when non-nil, replaces the stored history for this turn.
	// Lets stateless clients carry their own transcript.
	History []datatypes.Message `json:"history"`
}

// ChatResponse is the POST /chat reply body.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	StructuredData any    `json:"structured_data,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers holds the HTTP handlers for the concierge surface.
type Handlers struct {
	responder Responder
	store     *SessionStore
	logger    *slog.Logger
}

// NewHandlers wires the transport layer.
func NewHandlers(responder Responder, store *SessionStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{responder: responder, store: store, logger: logger}
}

// HandleChat runs one conversational turn.
//
// # Description
//
//	Validates the body, resolves the session history (request override
//	wins over the store), runs the orchestrator, then persists
//	history + user turn + assistant turn under the conversation id.
//	Malformed bodies get 400; orchestrator errors get 500. Both use the
//	{"detail": ...} error shape.
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID))

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("rejecting malformed chat request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid request: " + err.Error()})
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	logger = logger.With(slog.String("conversation_id", conversationID))

	history := req.History
	if history == nil {
		history = h.store.History(conversationID)
	}

	result, err := h.responder.Respond(c.Request.Context(), req.Query, history)
	if err != nil {
		logger.Error("orchestration failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal error"})
		return
	}

	updated := datatypes.CloneHistory(history,
		datatypes.Message{Role: datatypes.RoleUser, Content: req.Query},
		datatypes.Message{Role: datatypes.RoleAssistant, Content: result.Response},
	)
	h.store.Replace(conversationID, updated)

	c.JSON(http.StatusOK, ChatResponse{
		Response:       result.Response,
		ConversationID: conversationID,
		StructuredData: result.StructuredData,
	})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"conversations": h.store.Len(),
	})
}

// getOrCreateRequestID returns the inbound X-Request-ID, minting one
// when absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}
