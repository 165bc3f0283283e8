// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package service caches instance graphs per project and keeps them
// fresh against file changes.
//
// The Service owns the pipeline: extension-based extractor selection,
// extraction, graph building, an in-memory cache keyed by a stable
// graph id, and persistence of that cache across restarts through the
// store package. Callers interact with graphs only through the
// Service; they never construct extractors or builders directly.
package service

import "errors"

// Sentinel errors for service operations.
var (
	// ErrNotStarted is returned when a graph operation is attempted
	// before Startup or after Shutdown.
	ErrNotStarted = errors.New("graph service not started")

	// ErrUnsupportedFile is returned when no extractor claims the
	// file's extension.
	ErrUnsupportedFile = errors.New("unsupported file extension")
)
