// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists instance graphs to a per-project cache file.
//
// One JSON file per project root holds every cached graph. Saves are
// atomic (temp file + rename) so a reader never observes a
// half-written cache. Loads are permissive: a missing file, a parse
// failure, or an unrecognized version yields an empty result rather
// than an error, and individually malformed entries are skipped; a
// damaged cache only ever costs re-extraction, never a failed
// startup.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// StoreVersion is the cache file format version.
	StoreVersion = "1.0"

	// DefaultCacheDirName is the per-project cache directory.
	DefaultCacheDirName = ".wiremap"

	// storeFileName is the cache file inside the cache directory.
	storeFileName = "instance-graphs.json"
)

// StoredInstanceGraph is one cached graph with its freshness
// bookkeeping.
//
// The ID is the stable cache key derived from project, file, and
// function; it is unrelated to the per-build node and edge ids inside
// GraphData.
type StoredInstanceGraph struct {
	// ID is the stable cache key.
	ID string `json:"id"`

	// ProjectPath is the project root the graph belongs to.
	ProjectPath string `json:"project_path"`

	// SourceFile is the analyzed source file.
	SourceFile string `json:"source_file"`

	// FunctionName is the composition root function.
	FunctionName string `json:"function_name"`

	// AnalyzedAt is when the graph was built.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// SourceModifiedAt is the source file's modification time at
	// build, used for freshness checks.
	SourceModifiedAt time.Time `json:"source_modified_at"`

	// NodeCount and EdgeCount are denormalized for summaries, so
	// listing cached graphs never has to decode GraphData.
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`

	// DroppedWirings is the number of wiring calls dropped during the
	// build that produced GraphData.
	DroppedWirings int `json:"dropped_wirings,omitempty"`

	// GraphData is the serialized instance graph.
	GraphData json.RawMessage `json:"graph_data"`
}

// saveEnvelope is the typed on-disk shape for writing.
type saveEnvelope struct {
	Version     string                `json:"version"`
	ProjectPath string                `json:"project_path"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Graphs      []StoredInstanceGraph `json:"graphs"`
}

// loadEnvelope defers graph decoding so one malformed entry cannot
// abort the whole load.
type loadEnvelope struct {
	Version     string            `json:"version"`
	ProjectPath string            `json:"project_path"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Graphs      []json.RawMessage `json:"graphs"`
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCacheDir overrides the cache directory. By default the cache
// lives under DefaultCacheDirName inside the project root.
func WithCacheDir(dir string) StoreOption {
	return func(s *Store) {
		s.path = filepath.Join(dir, storeFileName)
	}
}

// Store is file-backed persistence for one project's instance graphs.
//
// Thread Safety:
//
//	Safe for concurrent use across processes only to the extent that
//	renames are atomic; within a process, callers serialize Save
//	against Save (the Service holds its own lock).
type Store struct {
	projectPath string
	path        string
	logger      *slog.Logger
}

// NewStore creates a store for the given project root.
func NewStore(projectPath string, opts ...StoreOption) *Store {
	s := &Store{
		projectPath: projectPath,
		path:        filepath.Join(projectPath, DefaultCacheDirName, storeFileName),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the cache file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the cache file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save writes the given graphs as the complete cache contents.
//
// Description:
//
//	Writes atomically using temp file + rename. I/O errors propagate
//	to the caller after the temp file is cleaned up, so silent data
//	loss stays visible.
func (s *Store) Save(graphs []StoredInstanceGraph) error {
	if graphs == nil {
		graphs = []StoredInstanceGraph{}
	}

	envelope := saveEnvelope{
		Version:     StoreVersion,
		ProjectPath: s.projectPath,
		UpdatedAt:   time.Now().UTC(),
		Graphs:      graphs,
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".instance-graphs-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write cache: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync cache: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("rename cache: %w", err)
	}

	success = true

	s.logger.Debug("saved instance graph cache",
		slog.String("path", s.path),
		slog.Int("graphs", len(graphs)),
	)

	return nil
}

// Load reads the cache contents.
//
// Description:
//
//	Permissive by design: a missing file, unreadable file, or parse
//	failure returns an empty list; an unrecognized version is logged
//	and loaded best-effort; entries that fail to decode or lack their
//	identity fields are skipped one by one.
func (s *Store) Load() []StoredInstanceGraph {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable instance graph cache",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return []StoredInstanceGraph{}
	}

	var envelope loadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn("corrupt instance graph cache",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return []StoredInstanceGraph{}
	}

	if envelope.Version != StoreVersion {
		s.logger.Warn("instance graph cache version mismatch, loading best-effort",
			slog.String("path", s.path),
			slog.String("got", envelope.Version),
			slog.String("want", StoreVersion),
		)
	}

	graphs := make([]StoredInstanceGraph, 0, len(envelope.Graphs))
	for i, raw := range envelope.Graphs {
		var entry StoredInstanceGraph
		if err := json.Unmarshal(raw, &entry); err != nil {
			s.logger.Warn("skipping malformed cache entry",
				slog.String("path", s.path),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		if entry.ID == "" || entry.SourceFile == "" {
			s.logger.Warn("skipping cache entry missing identity",
				slog.String("path", s.path),
				slog.Int("index", i),
			)
			continue
		}
		graphs = append(graphs, entry)
	}

	return graphs
}

// Delete removes the cache file. Missing files are not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cache: %w", err)
	}
	return nil
}
