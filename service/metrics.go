// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("wiremap.service")
	meter  = otel.Meter("wiremap.service")

	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	invalidations metric.Int64Counter
	getLatency    metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments on first use so importing the
// package costs nothing when no meter provider is installed.
func initMetrics() error {
	metricsOnce.Do(func() {
		cacheHits, metricsErr = meter.Int64Counter(
			"service.cache.hits",
			metric.WithDescription("Graph requests answered from cache"),
		)
		if metricsErr != nil {
			return
		}

		cacheMisses, metricsErr = meter.Int64Counter(
			"service.cache.misses",
			metric.WithDescription("Graph requests that required extraction"),
		)
		if metricsErr != nil {
			return
		}

		invalidations, metricsErr = meter.Int64Counter(
			"service.cache.invalidations",
			metric.WithDescription("Cached graphs evicted by file changes"),
		)
		if metricsErr != nil {
			return
		}

		getLatency, metricsErr = meter.Float64Histogram(
			"service.get_graph.duration",
			metric.WithDescription("GetGraph latency in seconds"),
			metric.WithUnit("s"),
		)
	})
	return metricsErr
}

func recordCacheHit(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	cacheHits.Add(ctx, 1)
}

func recordCacheMiss(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	cacheMisses.Add(ctx, 1)
}

func recordInvalidations(ctx context.Context, count int) {
	if initMetrics() != nil || count == 0 {
		return
	}
	invalidations.Add(ctx, int64(count))
}

func recordGetLatency(ctx context.Context, d time.Duration) {
	if initMetrics() != nil {
		return
	}
	getLatency.Record(ctx, d.Seconds())
}
