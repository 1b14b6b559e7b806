// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command conciergectl is the terminal client for the Concierge server.
//
// Usage:
//
//	conciergectl ask "What is the weather in London?"
//	conciergectl chat
//	conciergectl --server http://remote:8080 chat
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// serverURL holds the --server flag value.
var serverURL string

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "conciergectl",
		Short: "Terminal client for the Aleutian Concierge server",
		Long: "conciergectl talks to a running Concierge server: ask one-shot questions\n" +
			"about weather or stocks, or hold an interactive conversation.",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Concierge server base URL (default $CONCIERGE_URL or http://localhost:8080)")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}
	askCmd.Flags().Bool("json", false, "Print the structured payload as JSON")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Run:   runChatCommand,
	}

	rootCmd.AddCommand(askCmd, chatCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getServerBaseURL resolves the server address: flag, then env, then the
// local default.
func getServerBaseURL() string {
	if serverURL != "" {
		return serverURL
	}
	if env := os.Getenv("CONCIERGE_URL"); env != "" {
		return env
	}
	return "http://localhost:8080"
}
