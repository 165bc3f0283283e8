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

// runGraphs lists the cached instance graphs for the project.
func runGraphs(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := startService(ctx, graphsJSONOutput)
	summaries := svc.ListGraphs()

	if graphsJSONOutput {
		outputJSON(GraphListResult{
			ProjectPath: svc.ProjectRoot(),
			Graphs:      summaries,
			Count:       len(summaries),
		})
	} else {
		fmt.Print(renderGraphListText(svc.ProjectRoot(), summaries))
	}

	shutdownService(ctx, svc)
}
