// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax wraps the tree-sitter parser behind a small
// language-neutral contract: parse bytes into a Tree, walk Nodes,
// read node text and 1-based source positions.
//
// Composition extractors depend only on this package, never on the
// parser library directly, so swapping the syntax backend touches
// nothing above this layer. Grammar availability is probed lazily and
// memoized per Adapter; a grammar that fails to initialize reports
// unavailable instead of panicking.
package syntax

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

const (
	// DefaultMaxFileSize is the maximum file size to parse (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold for logging a performance warning (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// Adapter parses source for a single language.
//
// Description:
//
//	One Adapter per language id ("cpp", "python", "typescript", "tsx",
//	"javascript"). The grammar is resolved on first use; initialization
//	failures are captured and reported through Available rather than
//	surfacing as panics.
//
// Thread Safety:
//
//	Safe for concurrent use. Parse creates a fresh parser per call;
//	the availability probe is guarded by sync.Once.
type Adapter struct {
	language    string
	grammar     func() *sitter.Language
	maxFileSize int64
	logger      *slog.Logger

	availOnce sync.Once
	availErr  error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMaxFileSize sets the maximum file size in bytes.
func WithMaxFileSize(size int64) Option {
	return func(a *Adapter) {
		a.maxFileSize = size
	}
}

// WithLogger sets the logger for adapter operations.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter creates an Adapter for the given language id.
//
// Inputs:
//
//	language - One of the ids returned by Languages().
//	opts - Optional configuration.
//
// Outputs:
//
//	*Adapter - The configured adapter.
//	error - ErrUnknownLanguage if no grammar is registered for the id.
func NewAdapter(language string, opts ...Option) (*Adapter, error) {
	grammar, ok := grammars[language]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}

	a := &Adapter{
		language:    language,
		grammar:     grammar,
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Language returns the language id this adapter parses.
func (a *Adapter) Language() string {
	return a.language
}

// Available reports whether the grammar initialized successfully.
//
// The probe runs once and is memoized; it never panics even if the
// underlying grammar binding does.
func (a *Adapter) Available() bool {
	a.availOnce.Do(a.probeGrammar)
	return a.availErr == nil
}

// probeGrammar attempts to load the grammar, converting panics from the
// C binding into an availability error.
func (a *Adapter) probeGrammar() {
	defer func() {
		if r := recover(); r != nil {
			a.availErr = fmt.Errorf("%w: %s: %v", ErrLanguageUnavailable, a.language, r)
			a.logger.Warn("grammar initialization panicked",
				slog.String("language", a.language),
				slog.Any("panic", r),
			)
		}
	}()

	if lang := a.grammar(); lang == nil {
		a.availErr = fmt.Errorf("%w: %s", ErrLanguageUnavailable, a.language)
	}
}

// Parse parses source content into a syntax tree.
//
// Description:
//
//	Validates the content (size limit, UTF-8), then runs the
//	tree-sitter parser. The returned Tree owns both the parsed tree
//	and the source bytes so Node.Text needs no extra state; callers
//	must Close it.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	content - Raw file content.
//	filePath - Path for error reporting only; the file is not read.
//
// Outputs:
//
//	*Tree - The parsed tree. Syntax errors inside the source do not
//	        fail the parse; check Tree.HasError if they matter.
//	error - Non-nil on cancellation, validation failure, grammar
//	        unavailability, or parser failure.
func (a *Adapter) Parse(ctx context.Context, content []byte, filePath string) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled: %w", err)
	}

	if int64(len(content)) > a.maxFileSize {
		return nil, &ParseError{
			FilePath: filePath,
			Language: a.language,
			Cause:    fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(content), a.maxFileSize),
		}
	}

	if int64(len(content)) > WarnFileSize {
		a.logger.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)),
		)
	}

	if !utf8.Valid(content) {
		return nil, &ParseError{
			FilePath: filePath,
			Language: a.language,
			Cause:    ErrInvalidContent,
		}
	}

	if !a.Available() {
		return nil, a.availErr
	}

	start := time.Now()

	parser := sitter.NewParser()
	parser.SetLanguage(a.grammar())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParse(a.language, "error", time.Since(start))
		return nil, &ParseError{
			FilePath: filePath,
			Language: a.language,
			Cause:    fmt.Errorf("%w: %v", ErrParseFailed, err),
		}
	}
	if tree == nil {
		recordParse(a.language, "error", time.Since(start))
		return nil, &ParseError{
			FilePath: filePath,
			Language: a.language,
			Cause:    ErrParseFailed,
		}
	}

	recordParse(a.language, "ok", time.Since(start))

	return &Tree{
		tree:     tree,
		content:  content,
		language: a.language,
	}, nil
}

// ParseFile reads and parses a file from disk.
//
// Read failures are returned wrapped so callers can distinguish an
// environment problem (I/O) from a file that merely fails validation.
func (a *Adapter) ParseFile(ctx context.Context, filePath string) (*Tree, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	return a.Parse(ctx, content, filePath)
}
