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
	"fmt"
	"os"

	"github.com/AleutianAI/wiremap/cmd/wiremap/config"
	"github.com/AleutianAI/wiremap/pkg/logging"
	"github.com/AleutianAI/wiremap/pkg/ux"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	projectRoot string // --project root for the graph cache

	extractFunction string
	extractFormat   string
	extractForce    bool

	rootsJSONOutput  bool
	graphsJSONOutput bool

	// processLogger is built from the loaded config before any
	// subcommand runs. Subcommands reach the slog API through
	// processLogger.Slog().
	processLogger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "wiremap",
		Short: "Extract and inspect instance graphs from composition roots",
		Long: `Wiremap parses C++, Python, and TypeScript sources, finds the
functions that assemble an application (composition roots), and turns
the instances, wiring calls, and lifecycle calls found there into a
queryable instance graph.

Graphs are cached per project under .wiremap/ and refreshed when the
underlying source file changes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Styled output only when stdout is a terminal.
			ux.SetColorEnabled(isatty.IsTerminal(os.Stdout.Fd()) ||
				isatty.IsCygwinTerminal(os.Stdout.Fd()))

			if err := config.Load(); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			processLogger = logging.New(logging.Config{
				Level:   logging.ParseLevel(config.Global.Logging.Level),
				LogDir:  config.Global.Logging.Dir,
				Service: "wiremap",
				JSON:    config.Global.Logging.JSON,
			})
			return nil
		},
	}

	rootsCmd = &cobra.Command{
		Use:   "roots FILE",
		Short: "List the composition roots in a source file",
		Long: `List every function in the file that qualifies as a composition
root, in source order.

A function qualifies by its conventional name (main, create_app, ...),
by a marker annotation in a preceding comment or docstring, or as a
pseudo-root when the file has script-level wiring code.

Examples:
  wiremap roots cmd/pipeline.cpp
  wiremap roots app/factory.py --json`,
		Args: cobra.ExactArgs(1),
		Run:  runRoots, // Defined in cmd_roots.go
	}

	extractCmd = &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract the instance graph for a composition root",
		Long: `Extract the instance graph for one composition root and print it.

The graph is served from the project cache when the source file has
not changed since the last extraction; use --force to rebuild anyway.

Formats:
  text  - role-colored instance table and wiring list (default)
  json  - the full graph result for scripting
  flow  - a positioned diagram payload for rendering

Examples:
  wiremap extract cmd/pipeline.cpp
  wiremap extract app/factory.py --function create_app
  wiremap extract src/index.ts --format flow
  wiremap extract cmd/pipeline.cpp --force --format json`,
		Args: cobra.ExactArgs(1),
		Run:  runExtract, // Defined in cmd_extract.go
	}

	graphsCmd = &cobra.Command{
		Use:   "graphs",
		Short: "List the cached instance graphs for a project",
		Long: `List every instance graph cached for the project, with node and
edge counts and the time of the last analysis.

Examples:
  wiremap graphs
  wiremap graphs --project ~/src/pipeline --json`,
		Args: cobra.NoArgs,
		Run:  runGraphs, // Defined in cmd_graphs.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch a project and keep its instance graphs fresh",
		Long: `Watch the project tree for source changes and keep the cached
instance graphs fresh. Changed graphs are re-extracted eagerly up to
the configured limit; the rest rebuild lazily on their next request.

Runs until interrupted; the cache is persisted on shutdown.

Examples:
  wiremap watch
  wiremap watch --project ~/src/pipeline`,
		Args: cobra.NoArgs,
		Run:  runWatch, // Defined in cmd_watch.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", ".",
		"Project root owning the graph cache")

	rootCmd.AddCommand(rootsCmd)
	rootsCmd.Flags().BoolVar(&rootsJSONOutput, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractFunction, "function", "f", "",
		"Composition root function to extract (default: main)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "text",
		"Output format: text, json, flow")
	extractCmd.Flags().BoolVar(&extractForce, "force", false,
		"Re-extract even when the cached graph is fresh")

	rootCmd.AddCommand(graphsCmd)
	graphsCmd.Flags().BoolVar(&graphsJSONOutput, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(watchCmd)
}
