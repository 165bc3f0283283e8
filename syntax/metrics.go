// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for parse operations.
var (
	parsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wiremap_syntax_parses_total",
		Help: "Total parse attempts by language and status",
	}, []string{"language", "status"})

	parseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wiremap_syntax_parse_duration_seconds",
		Help:    "Time spent parsing source files",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"language"})
)

// recordParse records one parse attempt.
func recordParse(language, status string, duration time.Duration) {
	parsesTotal.WithLabelValues(language, status).Inc()
	parseDuration.WithLabelValues(language).Observe(duration.Seconds())
}
