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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Name:      "tool_calls_total",
		Help:      "Data tool invocations by tool and outcome",
	}, []string{"tool", "status"})

	summarizerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Name:      "summarizer_failures_total",
		Help:      "Chat collaborator failures that degraded to a templated reply",
	}, []string{"stage"})

	turnDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "concierge",
		Name:      "turn_duration_seconds",
		Help:      "End-to-end orchestration latency per turn",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"intent"})
)

// RecordToolCall increments the tool call counter for one invocation.
// Status is one of "success", "error", "panic".
func RecordToolCall(tool, status string) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordSummarizerFailure increments the degradation counter for the
// given stage ("weather", "stock", "historical_stock", "conversational").
func RecordSummarizerFailure(stage string) {
	summarizerFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordTurnDuration observes one turn's end-to-end latency.
func RecordTurnDuration(intent string, seconds float64) {
	turnDurationSeconds.WithLabelValues(intent).Observe(seconds)
}
