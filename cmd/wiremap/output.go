// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AleutianAI/wiremap/pkg/ux"
	"github.com/AleutianAI/wiremap/service"
)

// Exit codes for CLI commands.
const (
	ExitSuccess = 0 // Operation completed successfully
	ExitError   = 2 // Operation failed
)

// RootsResult holds roots command output.
type RootsResult struct {
	File  string   `json:"file"`
	Roots []string `json:"roots"`
	Count int      `json:"count"`
}

// GraphListResult holds graphs command output.
type GraphListResult struct {
	ProjectPath string                 `json:"project_path"`
	Graphs      []service.GraphSummary `json:"graphs"`
	Count       int                    `json:"count"`
}

// exitWith closes the process logger and exits. Handlers must come
// through here instead of os.Exit so file logs are flushed.
func exitWith(code int) {
	if processLogger != nil {
		_ = processLogger.Close()
	}
	os.Exit(code)
}

// fail prints the error in the appropriate format and exits.
func fail(jsonMode bool, msg string, err error) {
	outputError(jsonMode, msg, err)
	exitWith(ExitError)
}

// outputError writes an error in the appropriate format.
func outputError(jsonMode bool, msg string, err error) {
	if jsonMode {
		result := map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("%s: %v", msg, err),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
	} else {
		ux.Error(fmt.Sprintf("%s: %v", msg, err))
	}
}

// outputJSON writes structured data as JSON to stdout.
func outputJSON(data interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		exitWith(ExitError)
	}
}
