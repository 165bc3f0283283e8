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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/wiremap/graph"
	"github.com/spf13/cobra"
)

// Output formats for the extract command.
const (
	formatText = "text"
	formatJSON = "json"
	formatFlow = "flow"
)

// runExtract extracts one composition root and prints its graph.
func runExtract(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	filePath := args[0]

	format := strings.ToLower(extractFormat)
	switch format {
	case formatText, formatJSON, formatFlow:
	default:
		fail(false, "Unknown format",
			fmt.Errorf("%q is not one of text, json, flow", extractFormat))
	}
	jsonMode := format != formatText

	svc := startService(ctx, jsonMode)
	result, err := svc.GetGraph(ctx, filePath, extractFunction, extractForce)
	if err != nil {
		fail(jsonMode, "Extraction failed", err)
	}

	switch format {
	case formatJSON:
		outputJSON(result)
	case formatFlow:
		outputJSON(graph.Diagram(result.Graph))
	default:
		fmt.Print(renderGraphText(result))
	}

	// Persist so the next invocation is a cache hit.
	shutdownService(ctx, svc)
}
