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
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wiremap/store"
)

func TestFileOp_String(t *testing.T) {
	assert.Equal(t, "create", FileOpCreate.String())
	assert.Equal(t, "write", FileOpWrite.String())
	assert.Equal(t, "remove", FileOpRemove.String())
	assert.Equal(t, "rename", FileOpRename.String())
	assert.Equal(t, "unknown", FileOp(99).String())
}

func TestConvertOp(t *testing.T) {
	assert.Equal(t, FileOpCreate, convertOp(fsnotify.Create))
	assert.Equal(t, FileOpWrite, convertOp(fsnotify.Write))
	assert.Equal(t, FileOpRemove, convertOp(fsnotify.Remove))
	assert.Equal(t, FileOpRename, convertOp(fsnotify.Rename))
	assert.Equal(t, FileOpWrite, convertOp(fsnotify.Chmod))
}

func TestDefaultFileWatcherOptions(t *testing.T) {
	opts := DefaultFileWatcherOptions()
	assert.Equal(t, 250*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 1000, opts.BufferSize)
	assert.Contains(t, opts.IgnorePatterns, ".git")
	assert.Contains(t, opts.IgnorePatterns, "__pycache__")
	assert.Contains(t, opts.IgnorePatterns, store.DefaultCacheDirName,
		"cache writes must not feed back into the watcher")
}

func TestFileWatcher_ShouldIgnore(t *testing.T) {
	w, err := NewFileWatcher(t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer w.Stop()

	tests := []struct {
		path string
		want bool
	}{
		{"/proj/src/app.py", false},
		{"/proj/.git/HEAD", true},
		{"/proj/node_modules/pkg/index.js", true},
		{"/proj/src/__pycache__/mod.pyc", true},
		{"/proj/" + store.DefaultCacheDirName + "/instance-graphs.json", true},
		{"/proj/src/app.py.swp", true},
		{"/proj/build/out.o", true},
		{"/proj/src/builder.py", false},
		{"/proj/src/gitlab.py", false},
		{"/proj/distribution.py", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, w.shouldIgnore(tc.path), "path %s", tc.path)
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	w, err := NewFileWatcher(t.TempDir(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsWatching())

	// Starting an active watcher is a no-op.
	require.NoError(t, w.Start(ctx))

	w.Stop()
	assert.False(t, w.IsWatching())

	// Stop is safe to call again.
	w.Stop()
}

func TestDeduplicateChanges(t *testing.T) {
	base := time.Now()
	changes := []FileChange{
		{Path: "a.py", Op: FileOpCreate, Time: base},
		{Path: "b.py", Op: FileOpWrite, Time: base.Add(time.Millisecond)},
		{Path: "a.py", Op: FileOpWrite, Time: base.Add(2 * time.Millisecond)},
		{Path: "a.py", Op: FileOpRemove, Time: base.Add(3 * time.Millisecond)},
	}

	deduped := deduplicateChanges(changes)
	require.Len(t, deduped, 2)

	// First-seen order, most recent op per path.
	assert.Equal(t, "a.py", deduped[0].Path)
	assert.Equal(t, FileOpRemove, deduped[0].Op)
	assert.Equal(t, "b.py", deduped[1].Path)
	assert.Equal(t, FileOpWrite, deduped[1].Op)
}

func TestDeduplicateChanges_Empty(t *testing.T) {
	assert.Empty(t, deduplicateChanges(nil))
	assert.Empty(t, deduplicateChanges([]FileChange{}))
}

func TestService_Watch_RequiresStartup(t *testing.T) {
	svc, err := New(t.TempDir(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = svc.Watch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestService_Watch_StartsAndStops(t *testing.T) {
	svc, _ := newStartedService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := svc.Watch(ctx, nil)
	require.NoError(t, err)
	assert.True(t, w.IsWatching())
	w.Stop()
	assert.False(t, w.IsWatching())
}
