// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package composition

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// DefaultFunctionName is assumed when Extract is called with an empty
// function name.
const DefaultFunctionName = "main"

// Extractor is the common contract implemented by each language
// family's composition-root extractor.
//
// Implementations never raise for malformed or partially matching
// syntax: every recognition step degrades to "not found" and
// extraction proceeds. Only an unreadable file or an unavailable
// grammar produces an error.
type Extractor interface {
	// LanguageID returns the language family id ("cpp", "python",
	// "typescript").
	LanguageID() string

	// Extensions returns the file extensions (with leading dot) this
	// extractor handles.
	Extensions() []string

	// Available reports whether the underlying grammar initialized.
	Available() bool

	// FindCompositionRoots returns the names of every function in the
	// file that qualifies as a composition root, in source order.
	// Pseudo-roots ("__main__", "__module__") are included when the
	// file has a script guard or meaningful top-level code.
	FindCompositionRoots(ctx context.Context, filePath string) ([]string, error)

	// Extract parses the file and extracts the composition root for
	// the named function (DefaultFunctionName when empty). Returns
	// ErrNoCompositionRoot when the function cannot be located.
	Extract(ctx context.Context, filePath, functionName string) (*CompositionRoot, error)
}

// Options configures an extractor.
type Options struct {
	// Logger receives extraction diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// RootMarker is the annotation recognized in comments preceding a
	// composition-root function. Defaults to DefaultRootMarker.
	RootMarker string

	// RootDecorator is the Python decorator name marking a function as
	// a composition root. Defaults to PythonRootDecorator.
	RootDecorator string

	// MaxFileSize bounds the size of files handed to the parser.
	// Zero means the syntax package default.
	MaxFileSize int64
}

// Option configures extraction behavior.
type Option func(*Options)

// WithExtractorLogger sets the logger.
func WithExtractorLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithRootMarker overrides the marker annotation text.
func WithRootMarker(marker string) Option {
	return func(o *Options) {
		o.RootMarker = marker
	}
}

// WithRootDecorator overrides the Python composition-root decorator
// name.
func WithRootDecorator(name string) Option {
	return func(o *Options) {
		o.RootDecorator = name
	}
}

// WithMaxFileSize bounds parsed file size in bytes.
func WithMaxFileSize(size int64) Option {
	return func(o *Options) {
		o.MaxFileSize = size
	}
}

// newOptions applies defaults then the given options.
func newOptions(opts []Option) Options {
	o := Options{
		Logger:        slog.Default(),
		RootMarker:    DefaultRootMarker,
		RootDecorator: PythonRootDecorator,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Registry holds extractors indexed by language id and file extension.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	byLanguage  map[string]Extractor
	byExtension map[string]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[string]Extractor),
		byExtension: make(map[string]Extractor),
	}
}

// NewDefaultRegistry creates a registry with the C++, Python, and
// TypeScript/JavaScript extractors registered.
func NewDefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry()
	r.Register(NewCPPExtractor(opts...))
	r.Register(NewPythonExtractor(opts...))
	r.Register(NewTypeScriptExtractor(opts...))
	return r
}

// Register adds an extractor, indexing it by language and extensions.
// Later registrations win on conflict.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[e.LanguageID()] = e
	for _, ext := range e.Extensions() {
		r.byExtension[strings.ToLower(ext)] = e
	}
}

// ByLanguage returns the extractor for a language id.
func (r *Registry) ByLanguage(language string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byLanguage[language]
	return e, ok
}

// ByExtension returns the extractor for a file extension (leading dot,
// case-insensitive).
func (r *Registry) ByExtension(ext string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byExtension[strings.ToLower(ext)]
	return e, ok
}

// Languages returns the sorted registered language ids.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Extensions returns the sorted registered file extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
