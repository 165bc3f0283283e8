// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"errors"
	"fmt"
)

// Sentinel errors for syntax adapter operations.
var (
	// ErrUnknownLanguage indicates the requested language has no grammar
	// registered in this build.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrLanguageUnavailable indicates the grammar for a known language
	// failed to initialize. Callers should check Available() before
	// parsing; this error is returned if they do not.
	ErrLanguageUnavailable = errors.New("language grammar unavailable")

	// ErrParseFailed indicates the parser could not produce a tree.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content encoding")

	// ErrFileTooLarge indicates the content exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// ParseError provides detailed context about a parsing failure.
type ParseError struct {
	// FilePath is the file that failed to parse.
	FilePath string

	// Language is the grammar that was applied.
	Language string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s as %s: %v", e.FilePath, e.Language, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
