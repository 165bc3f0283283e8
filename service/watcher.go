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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/wiremap/store"
)

// FileChange represents a file system change event.
type FileChange struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the type of change.
	Op FileOp

	// Time is when the change was detected.
	Time time.Time
}

// FileOp represents the type of file operation.
type FileOp int

const (
	// FileOpCreate indicates a file was created.
	FileOpCreate FileOp = iota

	// FileOpWrite indicates a file was modified.
	FileOpWrite

	// FileOpRemove indicates a file was deleted.
	FileOpRemove

	// FileOpRename indicates a file was renamed.
	FileOpRename
)

// String returns the string representation of the operation.
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "create"
	case FileOpWrite:
		return "write"
	case FileOpRemove:
		return "remove"
	case FileOpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileChangeHandler is called when debounced changes are ready.
type FileChangeHandler func(changes []FileChange)

// FileWatcher watches a project tree for source changes with
// debouncing.
//
// # Description
//
// Watches a directory recursively and batches changes using a
// debounce window, so a burst of editor saves produces one batch
// instead of a re-extraction per keystroke.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single
// goroutine.
type FileWatcher struct {
	root           string
	watcher        *fsnotify.Watcher
	handler        FileChangeHandler
	debounce       time.Duration
	ignorePatterns []string
	logger         *slog.Logger

	changes  chan FileChange
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// FileWatcherOptions configures the FileWatcher.
type FileWatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before
	// triggering. Default: 250ms.
	DebounceWindow time.Duration

	// IgnorePatterns name directories and file globs to skip. The
	// project's own graph cache directory is ignored by default so
	// persisting the cache never triggers re-extraction.
	IgnorePatterns []string

	// BufferSize is the size of the change buffer channel.
	// Default: 1000.
	BufferSize int

	// Logger receives watcher diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultFileWatcherOptions returns sensible defaults.
func DefaultFileWatcherOptions() FileWatcherOptions {
	return FileWatcherOptions{
		DebounceWindow: 250 * time.Millisecond,
		IgnorePatterns: []string{
			".git", "node_modules", "__pycache__", ".venv", ".idea",
			store.DefaultCacheDirName, "build", "dist", "*.swp", "*.tmp",
		},
		BufferSize: 1000,
	}
}

// NewFileWatcher creates a watcher for the given root directory. Call
// Start to begin watching; nil opts uses defaults.
func NewFileWatcher(root string, handler FileChangeHandler, opts *FileWatcherOptions) (*FileWatcher, error) {
	if opts == nil {
		defaults := DefaultFileWatcherOptions()
		opts = &defaults
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		root:           root,
		watcher:        watcher,
		handler:        handler,
		debounce:       opts.DebounceWindow,
		ignorePatterns: opts.IgnorePatterns,
		logger:         logger,
		changes:        make(chan FileChange, opts.BufferSize),
		done:           make(chan struct{}),
	}, nil
}

// Start begins watching for file changes.
//
// # Description
//
// Recursively watches the root directory and all subdirectories.
// Spawns two goroutines: an event processor converting fsnotify
// events to FileChange, and a debouncer batching changes for the
// handler. Both exit when Stop is called or the context is canceled.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the file watcher. Safe to call more than once.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *FileWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// addRecursive adds a directory and all subdirectories to the watch
// list, skipping ignored directories entirely.
func (w *FileWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// shouldIgnore checks the path's segments against the ignore
// patterns. Globs match the base name only.
func (w *FileWatcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range w.ignorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
			if segment == pattern {
				return true
			}
		}
	}

	return false
}

// processEvents converts fsnotify events to FileChange and feeds the
// debouncer.
func (w *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if w.shouldIgnore(event.Name) {
				continue
			}

			change := FileChange{
				Path: event.Name,
				Time: time.Now(),
				Op:   convertOp(event.Op),
			}

			select {
			case w.changes <- change:
			default:
				w.logger.Warn("file change buffer full, dropping event",
					slog.String("path", event.Name),
				)
			}

			// New directories need their own watch before files
			// inside them produce events.
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := w.watcher.Add(event.Name); err != nil {
					w.logger.Warn("watching new directory",
						slog.String("path", event.Name),
						slog.String("error", err.Error()),
					)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

// isDir reports whether path is an existing directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// convertOp converts fsnotify.Op to FileOp.
func convertOp(op fsnotify.Op) FileOp {
	switch {
	case op.Has(fsnotify.Create):
		return FileOpCreate
	case op.Has(fsnotify.Write):
		return FileOpWrite
	case op.Has(fsnotify.Remove):
		return FileOpRemove
	case op.Has(fsnotify.Rename):
		return FileOpRename
	default:
		return FileOpWrite
	}
}

// debounceLoop batches changes and calls the handler after the
// debounce window expires without new changes.
func (w *FileWatcher) debounceLoop(ctx context.Context) {
	var batch []FileChange
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			deduped := deduplicateChanges(batch)
			if len(deduped) > 0 && w.handler != nil {
				w.handler(deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			flush()
		}
	}
}

// deduplicateChanges keeps the most recent change per path,
// preserving first-seen order.
func deduplicateChanges(changes []FileChange) []FileChange {
	seen := make(map[string]int)
	result := make([]FileChange, 0, len(changes))

	for _, change := range changes {
		if idx, exists := seen[change.Path]; exists {
			result[idx] = change
		} else {
			seen[change.Path] = len(result)
			result = append(result, change)
		}
	}

	return result
}

// Watch starts a file watcher over the project root wired into the
// service's cache.
//
// # Description
//
// Each debounced batch is forwarded to HandleFileChanges, so edits
// invalidate stale graphs and trigger eager refresh automatically.
// The caller owns the returned watcher and should Stop it before
// Shutdown.
func (s *Service) Watch(ctx context.Context, opts *FileWatcherOptions) (*FileWatcher, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}

	if opts == nil {
		defaults := DefaultFileWatcherOptions()
		defaults.Logger = s.logger
		opts = &defaults
	}

	watcher, err := NewFileWatcher(s.projectRoot, func(changes []FileChange) {
		files := make([]string, 0, len(changes))
		for _, change := range changes {
			files = append(files, change.Path)
		}
		if _, err := s.HandleFileChanges(ctx, files); err != nil {
			s.logger.Warn("handling file changes",
				slog.String("error", err.Error()),
			)
		}
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := watcher.Start(ctx); err != nil {
		watcher.Stop()
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}

	s.logger.Info("watching project for changes",
		slog.String("root", s.projectRoot),
	)

	return watcher, nil
}
