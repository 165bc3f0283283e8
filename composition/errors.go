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

import "errors"

// Sentinel errors for extraction operations.
var (
	// ErrNoCompositionRoot indicates the requested function (or any
	// composition root) could not be located in the file. This is the
	// "absent" outcome, distinct from an I/O failure.
	ErrNoCompositionRoot = errors.New("no composition root found")

	// ErrExtractorUnavailable indicates the extractor's grammar failed
	// to initialize and no extraction was attempted.
	ErrExtractorUnavailable = errors.New("extractor unavailable")
)
