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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/wiremap/cmd/wiremap/config"
	"github.com/AleutianAI/wiremap/composition"
	"github.com/AleutianAI/wiremap/graph"
	"github.com/AleutianAI/wiremap/service"
	"github.com/AleutianAI/wiremap/store"
)

// newService assembles a graph service for the --project root from
// the loaded config.
func newService() (*service.Service, error) {
	cfg := config.Global
	slogger := processLogger.Slog()

	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	extractorOpts := []composition.Option{
		composition.WithExtractorLogger(slogger),
	}
	if cfg.Extraction.RootMarker != "" {
		extractorOpts = append(extractorOpts,
			composition.WithRootMarker(cfg.Extraction.RootMarker))
	}
	if cfg.Extraction.MaxFileSizeBytes > 0 {
		extractorOpts = append(extractorOpts,
			composition.WithMaxFileSize(cfg.Extraction.MaxFileSizeBytes))
	}

	storeOpts := []store.StoreOption{store.WithStoreLogger(slogger)}
	if cfg.Cache.Dir != "" {
		cacheDir, err := expandHome(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, store.WithCacheDir(cacheDir))
	}

	return service.New(absRoot,
		service.WithLogger(slogger),
		service.WithRegistry(composition.NewDefaultRegistry(extractorOpts...)),
		service.WithBuilder(graph.NewBuilder(graph.WithBuilderLogger(slogger))),
		service.WithStore(store.NewStore(absRoot, storeOpts...)),
		service.WithEagerRefreshLimit(cfg.Extraction.EagerRefreshLimit),
	)
}

// startService builds and starts the service, exiting on failure.
func startService(ctx context.Context, jsonMode bool) *service.Service {
	svc, err := newService()
	if err != nil {
		fail(jsonMode, "Failed to create graph service", err)
	}
	if err := svc.Startup(ctx); err != nil {
		fail(jsonMode, "Failed to start graph service", err)
	}
	return svc
}

// shutdownService persists the cache. Failures are logged, not fatal.
func shutdownService(ctx context.Context, svc *service.Service) {
	if err := svc.Shutdown(ctx); err != nil {
		processLogger.Warn("persisting graph cache failed", "error", err.Error())
	}
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
