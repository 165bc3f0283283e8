// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("wiremap.graph")
	meter  = otel.Meter("wiremap.graph")

	buildsTotal    metric.Int64Counter
	buildDuration  metric.Float64Histogram
	droppedWirings metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics lazily creates the package instruments. Instrument
// creation failures disable recording rather than failing builds.
func initMetrics() error {
	metricsOnce.Do(func() {
		buildsTotal, metricsErr = meter.Int64Counter(
			"graph.builds",
			metric.WithDescription("Number of instance graph builds"),
		)
		if metricsErr != nil {
			return
		}

		buildDuration, metricsErr = meter.Float64Histogram(
			"graph.build.duration",
			metric.WithDescription("Instance graph build latency"),
			metric.WithUnit("s"),
		)
		if metricsErr != nil {
			return
		}

		droppedWirings, metricsErr = meter.Int64Counter(
			"graph.wirings.dropped",
			metric.WithDescription("Wiring calls dropped for unresolvable endpoints"),
		)
	})
	return metricsErr
}

// recordBuild records one build outcome with its latency.
func recordBuild(ctx context.Context, status string, duration time.Duration) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	buildsTotal.Add(ctx, 1, attrs)
	buildDuration.Record(ctx, duration.Seconds(), attrs)
}

// recordDroppedWirings records wiring drops from one build.
func recordDroppedWirings(ctx context.Context, count int) {
	if count == 0 || initMetrics() != nil {
		return
	}
	droppedWirings.Add(ctx, int64(count))
}
