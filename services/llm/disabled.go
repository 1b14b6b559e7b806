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

	"github.com/AleutianAI/concierge/services/datatypes"
)

// DisabledClient is a Client that always fails with a fixed reason. The
// server installs it when no provider is configured, so the orchestrator
// degrades to templated replies instead of the process refusing to start.
type DisabledClient struct {
	reason string
}

// NewDisabledClient creates a DisabledClient with the given reason.
func NewDisabledClient(reason string) *DisabledClient {
	if reason == "" {
		reason = "no LLM provider configured"
	}
	return &DisabledClient{reason: reason}
}

// Chat always returns an error carrying the configured reason.
func (c *DisabledClient) Chat(_ context.Context, _ []datatypes.Message, _ ChatOptions) (string, error) {
	return "", fmt.Errorf("llm disabled: %s", c.reason)
}
