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
	"time"

	"github.com/spf13/cobra"
)

// runRoots lists the composition roots in one source file.
func runRoots(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filePath := args[0]

	svc := startService(ctx, rootsJSONOutput)
	roots, err := svc.FindCompositionRoots(ctx, filePath)
	if err != nil {
		fail(rootsJSONOutput, "Failed to find composition roots", err)
	}

	if rootsJSONOutput {
		outputJSON(RootsResult{
			File:  filePath,
			Roots: roots,
			Count: len(roots),
		})
	} else {
		fmt.Print(renderRootsText(filePath, roots))
	}

	shutdownService(ctx, svc)
}
