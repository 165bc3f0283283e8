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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/wiremap/composition"
	"github.com/AleutianAI/wiremap/graph"
	"github.com/AleutianAI/wiremap/store"
)

// DefaultEagerRefreshLimit bounds how many graphs are re-extracted
// eagerly after a batch of file changes. The rest are rebuilt lazily
// on their next request.
const DefaultEagerRefreshLimit = 4

// State is the service lifecycle state.
type State int

const (
	// StateUninitialized is the state before Startup.
	StateUninitialized State = iota

	// StateStarted is the state between Startup and Shutdown.
	StateStarted

	// StateStopped is the state after Shutdown.
	StateStopped
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a Service.
type Options struct {
	// Logger receives service diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Registry supplies the extractors. Defaults to the full default
	// registry.
	Registry *composition.Registry

	// Builder converts extraction results into graphs.
	Builder *graph.Builder

	// Store persists the cache across restarts. Defaults to a store
	// under the project root.
	Store *store.Store

	// EagerRefreshLimit bounds eager re-extraction after file
	// changes. Zero disables eager refresh.
	EagerRefreshLimit int
}

// DefaultOptions returns sensible service defaults. The registry,
// builder, and store are filled in by New when left nil so they can
// share the final logger.
func DefaultOptions() Options {
	return Options{
		Logger:            slog.Default(),
		EagerRefreshLimit: DefaultEagerRefreshLimit,
	}
}

// Option is a functional option for configuring a Service.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithRegistry sets the extractor registry.
func WithRegistry(registry *composition.Registry) Option {
	return func(o *Options) {
		o.Registry = registry
	}
}

// WithBuilder sets the graph builder.
func WithBuilder(builder *graph.Builder) Option {
	return func(o *Options) {
		o.Builder = builder
	}
}

// WithStore sets the persistence store.
func WithStore(st *store.Store) Option {
	return func(o *Options) {
		o.Store = st
	}
}

// WithEagerRefreshLimit bounds eager re-extraction after file
// changes. Zero disables it.
func WithEagerRefreshLimit(limit int) Option {
	return func(o *Options) {
		o.EagerRefreshLimit = limit
	}
}

// GraphResult is the outcome of a GetGraph call.
type GraphResult struct {
	// ID is the stable graph id, usable with GetCachedGraph and as
	// the persistence key.
	ID string `json:"id"`

	// Graph is the frozen instance graph.
	Graph *graph.InstanceGraph `json:"graph"`

	// FromCache is true when the graph was served without
	// re-extraction. Callers coalesced onto an in-flight extraction
	// share the leader's result, including this flag.
	FromCache bool `json:"from_cache"`

	// DroppedWirings is the number of wiring calls dropped during the
	// build for unresolvable endpoints.
	DroppedWirings int `json:"dropped_wirings"`

	// AnalyzedAt is when the graph was built.
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// GraphSummary is a cache listing entry.
type GraphSummary struct {
	ID             string    `json:"id"`
	SourceFile     string    `json:"source_file"`
	FunctionName   string    `json:"function_name"`
	NodeCount      int       `json:"node_count"`
	EdgeCount      int       `json:"edge_count"`
	DroppedWirings int       `json:"dropped_wirings,omitempty"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// ChangeSummary reports the effect of a batch of file changes.
type ChangeSummary struct {
	// Invalidated lists the graph ids evicted from the cache.
	Invalidated []string `json:"invalidated"`

	// Refreshed lists the graph ids rebuilt eagerly.
	Refreshed []string `json:"refreshed"`

	// AnalyzableChanged counts the changed files with an analyzable
	// extension.
	AnalyzableChanged int `json:"analyzable_changed"`
}

// cacheEntry is one cached graph with its freshness bookkeeping.
type cacheEntry struct {
	id               string
	graph            *graph.InstanceGraph
	sourceFile       string
	functionName     string
	analyzedAt       time.Time
	sourceModifiedAt time.Time
	droppedWirings   int
}

// Service caches instance graphs for one project root.
//
// Thread Safety:
//
//	Safe for concurrent use. Cache reads take a read lock; mutations
//	take the write lock. Extraction for the same graph id is
//	deduplicated: concurrent requests coalesce onto a single in-flight
//	extraction and share its result, so at most one extraction per id
//	runs at a time.
type Service struct {
	projectRoot string
	registry    *composition.Registry
	builder     *graph.Builder
	store       *store.Store
	logger      *slog.Logger

	eagerRefreshLimit int

	mu    sync.RWMutex
	state State
	cache map[string]*cacheEntry

	group singleflight.Group
}

// New creates a graph service for the given project root.
func New(projectRoot string, opts ...Option) (*Service, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("project root must not be empty")
	}
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if options.Registry == nil {
		options.Registry = composition.NewDefaultRegistry(
			composition.WithExtractorLogger(logger),
		)
	}
	if options.Builder == nil {
		options.Builder = graph.NewBuilder(graph.WithBuilderLogger(logger))
	}
	if options.Store == nil {
		options.Store = store.NewStore(absRoot, store.WithStoreLogger(logger))
	}

	return &Service{
		projectRoot:       absRoot,
		registry:          options.Registry,
		builder:           options.Builder,
		store:             options.Store,
		logger:            logger,
		eagerRefreshLimit: options.EagerRefreshLimit,
		state:             StateUninitialized,
		cache:             make(map[string]*cacheEntry),
	}, nil
}

// ProjectRoot returns the absolute project root.
func (s *Service) ProjectRoot() string {
	return s.projectRoot
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SupportedExtensions returns the analyzable file extensions, sorted.
func (s *Service) SupportedExtensions() []string {
	return s.registry.Extensions()
}

// Startup loads the persisted cache and transitions to started.
//
// Description:
//
//	Idempotent; calling Startup on a started service is a no-op.
//	Every stored graph whose source file still exists is rehydrated
//	into the in-memory cache under its stored id. Stored graphs with
//	missing sources or undecodable data are skipped; a damaged cache
//	only costs re-extraction.
func (s *Service) Startup(ctx context.Context) error {
	_, span := tracer.Start(ctx, "service.startup")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStarted {
		return nil
	}

	loaded := 0
	for _, entry := range s.store.Load() {
		absPath := s.resolveStoredPath(entry.SourceFile)
		if _, err := os.Stat(absPath); err != nil {
			continue
		}

		var g graph.InstanceGraph
		if err := json.Unmarshal(entry.GraphData, &g); err != nil {
			s.logger.Warn("skipping stored graph with corrupt data",
				slog.String("id", entry.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.cache[entry.ID] = &cacheEntry{
			id:               entry.ID,
			graph:            &g,
			sourceFile:       absPath,
			functionName:     entry.FunctionName,
			analyzedAt:       entry.AnalyzedAt,
			sourceModifiedAt: entry.SourceModifiedAt,
			droppedWirings:   entry.DroppedWirings,
		}
		loaded++
	}

	s.state = StateStarted
	s.logger.Info("graph service started",
		slog.String("project", s.projectRoot),
		slog.Int("cached_graphs", loaded),
	)

	return nil
}

// Shutdown persists the cache and transitions to stopped.
//
// Description:
//
//	Idempotent; calling Shutdown on a service that is not started is
//	a no-op. The whole in-memory cache is written to the store before
//	the cache is cleared. A failed save propagates and leaves the
//	service started with its cache intact, so the caller can retry
//	without losing graphs.
func (s *Service) Shutdown(ctx context.Context) error {
	_, span := tracer.Start(ctx, "service.shutdown")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return nil
	}

	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stored := make([]store.StoredInstanceGraph, 0, len(ids))
	for _, id := range ids {
		entry := s.cache[id]
		data, err := json.Marshal(entry.graph)
		if err != nil {
			s.logger.Warn("skipping unserializable graph",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		stored = append(stored, store.StoredInstanceGraph{
			ID:               entry.id,
			ProjectPath:      s.projectRoot,
			SourceFile:       s.relToRoot(entry.sourceFile),
			FunctionName:     entry.functionName,
			AnalyzedAt:       entry.analyzedAt,
			SourceModifiedAt: entry.sourceModifiedAt,
			NodeCount:        entry.graph.NodeCount(),
			EdgeCount:        entry.graph.EdgeCount(),
			DroppedWirings:   entry.droppedWirings,
			GraphData:        data,
		})
	}

	if err := s.store.Save(stored); err != nil {
		return fmt.Errorf("persisting graph cache: %w", err)
	}

	s.cache = make(map[string]*cacheEntry)
	s.state = StateStopped
	s.logger.Info("graph service stopped",
		slog.Int("persisted_graphs", len(stored)),
	)

	return nil
}

// GetGraph returns the instance graph for a file's composition root.
//
// Description:
//
//	The cached graph is returned unchanged when it is at least as new
//	as the file's modification time; otherwise the file is
//	re-extracted and the cache entry replaced. Extraction failures
//	leave any existing cache entry undisturbed. Concurrent requests
//	for the same graph id coalesce onto one extraction.
//
// Inputs:
//
//	filePath - Source file, absolute or relative to the project root.
//	functionName - Root function; empty means the default ("main").
//	forceRefresh - Skip the freshness check and always re-extract.
//
// Errors:
//
//	ErrNotStarted - Service is not started.
//	ErrUnsupportedFile - No extractor claims the extension.
//	composition.ErrExtractorUnavailable - Parser failed to initialize.
//	composition.ErrNoCompositionRoot - Function not found in the file.
func (s *Service) GetGraph(ctx context.Context, filePath, functionName string, forceRefresh bool) (*GraphResult, error) {
	ctx, span := tracer.Start(ctx, "service.get_graph",
		trace.WithAttributes(
			attribute.String("file", filePath),
			attribute.Bool("force", forceRefresh),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		recordGetLatency(ctx, time.Since(start))
	}()

	if err := s.requireStarted(); err != nil {
		return nil, err
	}

	extractor, err := s.extractorFor(filePath)
	if err != nil {
		return nil, err
	}

	if functionName == "" {
		functionName = composition.DefaultFunctionName
	}

	absPath := s.resolvePath(filePath)
	id := s.graphID(absPath, functionName)

	if !forceRefresh {
		if result, ok := s.cachedFresh(id, absPath); ok {
			recordCacheHit(ctx)
			return result, nil
		}
	}
	recordCacheMiss(ctx)

	// Forced refreshes fly under their own key so they never coalesce
	// onto a request that may answer from cache.
	flightKey := id
	if forceRefresh {
		flightKey = id + "!force"
	}

	v, err, _ := s.group.Do(flightKey, func() (any, error) {
		if !forceRefresh {
			if result, ok := s.cachedFresh(id, absPath); ok {
				return result, nil
			}
		}
		return s.refresh(ctx, extractor, id, absPath, functionName)
	})
	if err != nil {
		return nil, err
	}
	return v.(*GraphResult), nil
}

// FindCompositionRoots lists the composition root functions in a
// file without building graphs.
func (s *Service) FindCompositionRoots(ctx context.Context, filePath string) ([]string, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}

	extractor, err := s.extractorFor(filePath)
	if err != nil {
		return nil, err
	}

	return extractor.FindCompositionRoots(ctx, s.resolvePath(filePath))
}

// InvalidateForFile evicts every cached graph built from the given
// file, returning the evicted ids sorted.
//
// Description:
//
//	A no-op for files whose extension is not analyzable and for files
//	with no cached graphs; calling it twice for the same file returns
//	an empty list the second time.
func (s *Service) InvalidateForFile(ctx context.Context, filePath string) []string {
	if !s.isAnalyzable(filePath) {
		return nil
	}
	absPath := s.resolvePath(filePath)

	s.mu.Lock()
	var invalidated []string
	for id, entry := range s.cache {
		if entry.sourceFile == absPath {
			delete(s.cache, id)
			invalidated = append(invalidated, id)
		}
	}
	s.mu.Unlock()

	sort.Strings(invalidated)

	if len(invalidated) > 0 {
		recordInvalidations(ctx, len(invalidated))
		s.logger.Debug("invalidated graphs for file",
			slog.String("file", absPath),
			slog.Int("count", len(invalidated)),
		)
	}

	return invalidated
}

// HandleFileChanges processes a batch of changed files.
//
// Description:
//
//	Changed files without an analyzable extension are ignored. Every
//	cached graph built from a changed file is invalidated; up to the
//	eager refresh limit of them are rebuilt immediately, the rest on
//	their next request.
func (s *Service) HandleFileChanges(ctx context.Context, files []string) (*ChangeSummary, error) {
	ctx, span := tracer.Start(ctx, "service.handle_file_changes",
		trace.WithAttributes(attribute.Int("changed_files", len(files))),
	)
	defer span.End()

	if err := s.requireStarted(); err != nil {
		return nil, err
	}

	summary := &ChangeSummary{
		Invalidated: []string{},
		Refreshed:   []string{},
	}

	type target struct {
		filePath     string
		functionName string
	}
	var targets []target

	for _, file := range files {
		if !s.isAnalyzable(file) {
			continue
		}
		summary.AnalyzableChanged++
		absPath := s.resolvePath(file)

		// Capture the affected roots before eviction; the eager
		// refresh needs their function names.
		s.mu.RLock()
		for _, entry := range s.cache {
			if entry.sourceFile == absPath {
				targets = append(targets, target{absPath, entry.functionName})
			}
		}
		s.mu.RUnlock()

		summary.Invalidated = append(summary.Invalidated, s.InvalidateForFile(ctx, file)...)
	}

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].filePath != targets[j].filePath {
			return targets[i].filePath < targets[j].filePath
		}
		return targets[i].functionName < targets[j].functionName
	})

	for _, t := range targets {
		if len(summary.Refreshed) >= s.eagerRefreshLimit {
			break
		}
		result, err := s.GetGraph(ctx, t.filePath, t.functionName, false)
		if err != nil {
			s.logger.Debug("eager refresh failed",
				slog.String("file", t.filePath),
				slog.String("function", t.functionName),
				slog.String("error", err.Error()),
			)
			continue
		}
		summary.Refreshed = append(summary.Refreshed, result.ID)
	}

	s.logger.Debug("handled file changes",
		slog.Int("changed", len(files)),
		slog.Int("analyzable", summary.AnalyzableChanged),
		slog.Int("invalidated", len(summary.Invalidated)),
		slog.Int("refreshed", len(summary.Refreshed)),
	)

	return summary, nil
}

// ListGraphs lists the cached graphs, sorted by source file and
// function. Never triggers extraction.
func (s *Service) ListGraphs() []GraphSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]GraphSummary, 0, len(s.cache))
	for _, entry := range s.cache {
		summaries = append(summaries, GraphSummary{
			ID:             entry.id,
			SourceFile:     s.relToRoot(entry.sourceFile),
			FunctionName:   entry.functionName,
			NodeCount:      entry.graph.NodeCount(),
			EdgeCount:      entry.graph.EdgeCount(),
			DroppedWirings: entry.droppedWirings,
			AnalyzedAt:     entry.analyzedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].SourceFile != summaries[j].SourceFile {
			return summaries[i].SourceFile < summaries[j].SourceFile
		}
		return summaries[i].FunctionName < summaries[j].FunctionName
	})

	return summaries
}

// GetCachedGraph returns a cached graph by id. Never triggers
// extraction.
func (s *Service) GetCachedGraph(id string) (*graph.InstanceGraph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[id]
	if !ok {
		return nil, false
	}
	return entry.graph, true
}

// requireStarted fails fast when the service is not started.
func (s *Service) requireStarted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateStarted {
		return fmt.Errorf("%w: state is %s", ErrNotStarted, s.state)
	}
	return nil
}

// extractorFor resolves the extractor for a file by extension.
func (s *Service) extractorFor(filePath string) (composition.Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	extractor, ok := s.registry.ByExtension(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
	if !extractor.Available() {
		return nil, fmt.Errorf("%w: %s", composition.ErrExtractorUnavailable, extractor.LanguageID())
	}
	return extractor, nil
}

// isAnalyzable reports whether any extractor claims the file's
// extension, regardless of parser availability.
func (s *Service) isAnalyzable(filePath string) bool {
	_, ok := s.registry.ByExtension(strings.ToLower(filepath.Ext(filePath)))
	return ok
}

// cachedFresh returns the cached result when the entry is at least as
// new as the file on disk.
func (s *Service) cachedFresh(id, absPath string) (*GraphResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[id]
	if !ok {
		return nil, false
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false
	}
	if info.ModTime().After(entry.sourceModifiedAt) {
		return nil, false
	}

	return &GraphResult{
		ID:             entry.id,
		Graph:          entry.graph,
		FromCache:      true,
		DroppedWirings: entry.droppedWirings,
		AnalyzedAt:     entry.analyzedAt,
	}, true
}

// refresh extracts, builds, and caches one graph. The source mtime is
// captured before parsing so a write racing the parse is seen as
// newer on the next freshness check.
func (s *Service) refresh(ctx context.Context, extractor composition.Extractor, id, absPath, functionName string) (*GraphResult, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	root, err := extractor.Extract(ctx, absPath, functionName)
	if err != nil {
		return nil, err
	}

	result, err := s.builder.Build(ctx, root)
	if err != nil {
		return nil, err
	}

	entry := &cacheEntry{
		id:               id,
		graph:            result.Graph,
		sourceFile:       absPath,
		functionName:     functionName,
		analyzedAt:       time.Now().UTC(),
		sourceModifiedAt: info.ModTime(),
		droppedWirings:   result.Stats.DroppedWirings,
	}

	s.mu.Lock()
	s.cache[id] = entry
	s.mu.Unlock()

	s.logger.Debug("refreshed instance graph",
		slog.String("file", absPath),
		slog.String("function", functionName),
		slog.Int("nodes", result.Stats.NodesCreated),
		slog.Int("edges", result.Stats.EdgesCreated),
		slog.Int("dropped", result.Stats.DroppedWirings),
		slog.Duration("took", time.Duration(result.Stats.DurationMilli)*time.Millisecond),
	)

	return &GraphResult{
		ID:             entry.id,
		Graph:          entry.graph,
		FromCache:      false,
		DroppedWirings: entry.droppedWirings,
		AnalyzedAt:     entry.analyzedAt,
	}, nil
}

// resolvePath makes a caller path absolute, interpreting relative
// paths against the project root.
func (s *Service) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filepath.Clean(filePath)
	}
	return filepath.Join(s.projectRoot, filePath)
}

// resolveStoredPath resolves a stored source path, which is kept
// relative to the project root so the cache file survives a project
// move.
func (s *Service) resolveStoredPath(stored string) string {
	if filepath.IsAbs(stored) {
		return filepath.Clean(stored)
	}
	return filepath.Join(s.projectRoot, stored)
}

// relToRoot converts an absolute path to project-relative form when
// possible.
func (s *Service) relToRoot(absPath string) string {
	rel, err := filepath.Rel(s.projectRoot, absPath)
	if err != nil {
		return absPath
	}
	return rel
}

// graphID derives the stable cache key for a file and function.
func (s *Service) graphID(absPath, functionName string) string {
	return computeGraphID(s.projectRoot, s.relToRoot(absPath), functionName)
}

// computeGraphID hashes (project root, relative path, function) into
// a stable hex id. The id survives restarts and is unrelated to the
// per-build node and edge ids.
func computeGraphID(projectRoot, relPath, functionName string) string {
	h := sha256.New()
	h.Write([]byte(filepath.ToSlash(projectRoot)))
	h.Write([]byte{0})
	h.Write([]byte(filepath.ToSlash(relPath)))
	h.Write([]byte{0})
	h.Write([]byte(functionName))
	return hex.EncodeToString(h.Sum(nil))
}
