// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routeDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "routing",
		Name:      "decisions_total",
		Help:      "Total routing decisions by selected intent",
	}, []string{"intent"})

	extractionMissTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "routing",
		Name:      "extraction_miss_total",
		Help:      "Total parameter extraction misses by parameter kind",
	}, []string{"param"})
)

// RecordRouteDecision increments the decision counter for an intent.
func RecordRouteDecision(intent string) {
	routeDecisionsTotal.WithLabelValues(intent).Inc()
}

// RecordExtractionMiss increments the miss counter for a parameter kind
// (symbol, location, date_range).
func RecordExtractionMiss(param string) {
	extractionMissTotal.WithLabelValues(param).Inc()
}
