// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(id, sourceFile string) StoredInstanceGraph {
	return StoredInstanceGraph{
		ID:               id,
		ProjectPath:      "/proj",
		SourceFile:       sourceFile,
		FunctionName:     "main",
		AnalyzedAt:       time.Now().UTC(),
		SourceModifiedAt: time.Now().UTC().Add(-time.Minute),
		NodeCount:        3,
		EdgeCount:        2,
		GraphData:        json.RawMessage(`{"source_file":"` + sourceFile + `","function_name":"main","nodes":[],"edges":[]}`),
	}
}

func TestStore_DefaultPath(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	assert.Equal(t, filepath.Join(root, DefaultCacheDirName, "instance-graphs.json"), s.Path())
	assert.False(t, s.Exists())
}

func TestStore_WithCacheDir(t *testing.T) {
	root := t.TempDir()
	cacheDir := filepath.Join(root, "custom-cache")
	s := NewStore(root, WithCacheDir(cacheDir))

	assert.Equal(t, filepath.Join(cacheDir, "instance-graphs.json"), s.Path())
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	want := []StoredInstanceGraph{
		sampleEntry("id-1", "src/main.py"),
		sampleEntry("id-2", "src/app.cpp"),
	}
	require.NoError(t, s.Save(want))
	assert.True(t, s.Exists())

	got := s.Load()
	require.Len(t, got, 2)
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].SourceFile, got[i].SourceFile)
		assert.Equal(t, want[i].FunctionName, got[i].FunctionName)
		assert.Equal(t, want[i].NodeCount, got[i].NodeCount)
		assert.Equal(t, want[i].EdgeCount, got[i].EdgeCount)
		assert.True(t, got[i].AnalyzedAt.Equal(want[i].AnalyzedAt))
		assert.True(t, got[i].SourceModifiedAt.Equal(want[i].SourceModifiedAt))
		assert.JSONEq(t, string(want[i].GraphData), string(got[i].GraphData))
	}
}

func TestStore_Save_Overwrites(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.Save([]StoredInstanceGraph{
		sampleEntry("id-1", "a.py"),
		sampleEntry("id-2", "b.py"),
	}))
	require.NoError(t, s.Save([]StoredInstanceGraph{
		sampleEntry("id-3", "c.py"),
	}))

	got := s.Load()
	require.Len(t, got, 1)
	assert.Equal(t, "id-3", got[0].ID)
}

func TestStore_Save_NilGraphs(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.Save(nil))
	assert.True(t, s.Exists())
	assert.Empty(t, s.Load())
}

func TestStore_Save_NoTempLeftovers(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save([]StoredInstanceGraph{sampleEntry("id-1", "a.py")}))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"),
			"temp file %s left behind", entry.Name())
	}
}

func TestStore_Load_MissingFile(t *testing.T) {
	s := NewStore(t.TempDir())

	got := s.Load()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_Load_CorruptFile(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	assert.Empty(t, s.Load())
}

func TestStore_Load_VersionMismatch(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save([]StoredInstanceGraph{sampleEntry("id-1", "a.py")}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	patched := strings.Replace(string(data), `"version": "`+StoreVersion+`"`, `"version": "0.9"`, 1)
	require.NotEqual(t, string(data), patched)
	require.NoError(t, os.WriteFile(s.Path(), []byte(patched), 0o644))

	// Unrecognized versions load best-effort instead of discarding.
	got := s.Load()
	require.Len(t, got, 1)
	assert.Equal(t, "id-1", got[0].ID)
}

func TestStore_Load_SkipsMalformedEntries(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))

	cache := `{
		"version": "` + StoreVersion + `",
		"project_path": "/proj",
		"updated_at": "2025-06-01T00:00:00Z",
		"graphs": [
			{"id": "good", "source_file": "a.py", "function_name": "main", "graph_data": {}},
			{"id": 42, "source_file": "b.py"},
			{"id": "", "source_file": "c.py"},
			{"id": "no-source", "source_file": ""}
		]
	}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(cache), 0o644))

	got := s.Load()
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save([]StoredInstanceGraph{sampleEntry("id-1", "a.py")}))
	require.True(t, s.Exists())

	require.NoError(t, s.Delete())
	assert.False(t, s.Exists())

	// Deleting an absent cache is not an error.
	assert.NoError(t, s.Delete())
}
