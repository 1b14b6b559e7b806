// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// chatRequest is the payload for POST /v1/concierge/chat.
type chatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// chatResponse is the reply from POST /v1/concierge/chat.
type chatResponse struct {
	Response       string          `json:"response"`
	ConversationID string          `json:"conversation_id"`
	StructuredData json.RawMessage `json:"structured_data,omitempty"`
}

// errorResponse is the server's uniform error body.
type errorResponse struct {
	Detail string `json:"detail"`
}

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dataStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// styled applies a lipgloss style only when stdout is a terminal, so
// piped output stays clean.
func styled(style lipgloss.Style, s string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return s
	}
	return style.Render(s)
}

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	showJSON, _ := cmd.Flags().GetBool("json")

	resp, err := sendChatRequest(question, "")
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Println(styled(replyStyle, resp.Response))
	if showJSON && len(resp.StructuredData) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, resp.StructuredData, "", "  "); err == nil {
			fmt.Println(styled(dataStyle, pretty.String()))
		}
	}
}

func runChatCommand(_ *cobra.Command, args []string) {
	if len(args) > 0 {
		fmt.Printf("Warning: Unexpected arguments ignored: %v\n", args)
		fmt.Println("Use 'conciergectl chat --help' to see available flags.")
	}

	fmt.Println("Connected to", getServerBaseURL())
	fmt.Println("Type your question, or 'exit' to quit.")

	conversationID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(styled(promptStyle, "> "))
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" || query == "q" {
			fmt.Println("Goodbye.")
			break
		}

		resp, err := sendChatRequest(query, conversationID)
		if err != nil {
			fmt.Println(styled(errorStyle, fmt.Sprintf("Error: %v", err)))
			continue
		}
		conversationID = resp.ConversationID

		fmt.Println(styled(replyStyle, resp.Response))
		if len(resp.StructuredData) > 0 {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, resp.StructuredData, "", "  "); err == nil {
				fmt.Println(styled(dataStyle, pretty.String()))
			}
		}
	}
}

func sendChatRequest(query, conversationID string) (*chatResponse, error) {
	payload, err := json.Marshal(chatRequest{Query: query, ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	chatURL := fmt.Sprintf("%s/v1/concierge/chat", getServerBaseURL())
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Post(chatURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("concierge server unavailable at %s: %w", chatURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != "" {
			return nil, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, apiErr.Detail)
		}
		return nil, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &parsed, nil
}
