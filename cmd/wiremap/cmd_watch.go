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
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/wiremap/cmd/wiremap/config"
	"github.com/AleutianAI/wiremap/pkg/ux"
	"github.com/AleutianAI/wiremap/service"
	"github.com/spf13/cobra"
)

// runWatch watches the project tree and keeps cached graphs fresh
// until interrupted.
func runWatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := startService(ctx, false)

	opts := watcherOptionsFromConfig()
	watcher, err := service.NewFileWatcher(svc.ProjectRoot(),
		func(changes []service.FileChange) {
			handleWatchBatch(ctx, svc, changes)
		}, &opts)
	if err != nil {
		fail(false, "Failed to create file watcher", err)
	}
	if err := watcher.Start(ctx); err != nil {
		fail(false, "Failed to start file watcher", err)
	}

	ux.Box("Watching", svc.ProjectRoot())
	ux.Muted("Press ctrl-c to stop.")

	<-ctx.Done()

	watcher.Stop()
	// The signal context is already canceled; persist with a fresh one.
	shutdownService(context.Background(), svc)
	fmt.Println()
	ux.Success("Watch stopped, graph cache saved.")
}

// watcherOptionsFromConfig merges the config file into the watcher
// defaults.
func watcherOptionsFromConfig() service.FileWatcherOptions {
	cfg := config.Global

	opts := service.DefaultFileWatcherOptions()
	opts.Logger = processLogger.Slog()
	if cfg.Watch.DebounceMillis > 0 {
		opts.DebounceWindow = time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
	}
	if len(cfg.Watch.Ignore) > 0 {
		opts.IgnorePatterns = cfg.Watch.Ignore
	}
	return opts
}

// handleWatchBatch feeds one debounced batch of changes into the
// service and reports the effect.
func handleWatchBatch(ctx context.Context, svc *service.Service, changes []service.FileChange) {
	files := make([]string, 0, len(changes))
	for _, change := range changes {
		files = append(files, change.Path)
	}

	summary, err := svc.HandleFileChanges(ctx, files)
	if err != nil {
		ux.Warning(fmt.Sprintf("handling %d changed file(s): %v", len(files), err))
		return
	}
	if summary.AnalyzableChanged == 0 {
		return
	}
	printChangeSummary(summary)
}
