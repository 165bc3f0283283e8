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
	"strings"

	"github.com/AleutianAI/wiremap/graph"
	"github.com/AleutianAI/wiremap/pkg/ux"
	"github.com/AleutianAI/wiremap/service"
	"github.com/charmbracelet/lipgloss"
)

// roleStyle maps an instance role to its display style.
func roleStyle(role graph.InstanceRole) lipgloss.Style {
	switch role {
	case graph.RoleSource:
		return ux.Styles.Success
	case graph.RoleSink:
		return ux.Styles.Warning
	case graph.RoleProcessing:
		return ux.Styles.Subtitle
	default:
		return ux.Styles.Muted
	}
}

// shortID abbreviates a graph id for display, like a short commit
// hash.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

// creationLabel describes how an instance was created.
func creationLabel(cfg graph.NodeConfig) string {
	label := cfg.CreationPattern.String()
	if cfg.FactoryName != "" {
		label += " (" + cfg.FactoryName + ")"
	}
	return label
}

// renderRootsText renders the roots listing for one file.
func renderRootsText(filePath string, roots []string) string {
	var b strings.Builder

	b.WriteString(ux.Paint(ux.Styles.Title, "Composition roots in "+filePath))
	b.WriteString("\n\n")

	if len(roots) == 0 {
		b.WriteString("No composition roots found.\n")
		return b.String()
	}

	for _, root := range roots {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			ux.IconBullet.Render(), ux.Paint(ux.Styles.Highlight, root)))
	}
	b.WriteString(fmt.Sprintf("\n%d root(s).\n", len(roots)))
	return b.String()
}

// renderGraphText renders an extraction result as a role-colored
// instance table followed by the wiring list.
func renderGraphText(result *service.GraphResult) string {
	g := result.Graph
	var b strings.Builder

	b.WriteString(ux.Paint(ux.Styles.Title,
		fmt.Sprintf("%s :: %s", g.SourceFile, g.FunctionName)))
	b.WriteString("\n")

	served := "extracted now"
	if result.FromCache {
		served = "from cache"
	}
	summary := fmt.Sprintf("%d instance(s), %d wiring(s), %s",
		g.NodeCount(), g.EdgeCount(), served)
	if result.DroppedWirings > 0 {
		summary += fmt.Sprintf(", %d wiring(s) dropped", result.DroppedWirings)
	}
	b.WriteString(ux.Paint(ux.Styles.Muted, summary))
	b.WriteString("\n")

	if g.NodeCount() == 0 {
		b.WriteString("\nNo instances found.\n")
		return b.String()
	}

	// Column widths from content. Styling is applied after padding so
	// ANSI escapes never skew the columns.
	nameW := len("NAME")
	typeW := len("TYPE")
	createdW := len("CREATED")
	for _, node := range g.Nodes() {
		if len(node.Name) > nameW {
			nameW = len(node.Name)
		}
		if len(node.TypeSymbol) > typeW {
			typeW = len(node.TypeSymbol)
		}
		if l := len(creationLabel(node.Config)); l > createdW {
			createdW = l
		}
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %-*s  %-*s  %-10s  %-*s  %s\n",
		nameW, "NAME", typeW, "TYPE", "ROLE", createdW, "CREATED", "LINE"))
	for _, node := range g.Nodes() {
		role := ux.Paint(roleStyle(node.Role), fmt.Sprintf("%-10s", node.Role))
		b.WriteString(fmt.Sprintf("  %-*s  %-*s  %s  %-*s  %d\n",
			nameW, node.Name, typeW, node.TypeSymbol, role,
			createdW, creationLabel(node.Config), node.Location.Line))
	}

	if g.EdgeCount() > 0 {
		b.WriteString("\n")
		for _, edge := range g.Edges() {
			b.WriteString("  " + renderWiring(g, edge) + "\n")
		}
	}

	return b.String()
}

// renderWiring renders one wiring edge as "source → target  method".
func renderWiring(g *graph.InstanceGraph, edge *graph.WiringEdge) string {
	src, dst := edge.SourceID, edge.TargetID
	if node, ok := g.GetNode(edge.SourceID); ok {
		src = node.Name
	}
	if node, ok := g.GetNode(edge.TargetID); ok {
		dst = node.Name
	}
	return fmt.Sprintf("%s %s %s  %s  %s",
		src, ux.IconArrow.Render(), dst,
		ux.Paint(ux.Styles.Subtitle, edge.Method),
		ux.Paint(ux.Styles.Muted, fmt.Sprintf("(line %d)", edge.Location.Line)))
}

// renderGraphListText renders the cached graph listing for a project.
func renderGraphListText(projectPath string, summaries []service.GraphSummary) string {
	var b strings.Builder

	b.WriteString(ux.Paint(ux.Styles.Title, "Cached instance graphs"))
	b.WriteString("\n")
	b.WriteString(ux.Paint(ux.Styles.Muted, projectPath))
	b.WriteString("\n\n")

	if len(summaries) == 0 {
		b.WriteString("No cached graphs. Run 'wiremap extract <file>' to create one.\n")
		return b.String()
	}

	srcW := len("SOURCE")
	fnW := len("FUNCTION")
	for _, s := range summaries {
		if len(s.SourceFile) > srcW {
			srcW = len(s.SourceFile)
		}
		if len(s.FunctionName) > fnW {
			fnW = len(s.FunctionName)
		}
	}

	b.WriteString(fmt.Sprintf("  %-12s  %-*s  %-*s  %5s  %5s  %s\n",
		"GRAPH", srcW, "SOURCE", fnW, "FUNCTION", "NODES", "EDGES", "ANALYZED"))
	for _, s := range summaries {
		b.WriteString(fmt.Sprintf("  %-12s  %-*s  %-*s  %5d  %5d  %s\n",
			shortID(s.ID), srcW, s.SourceFile, fnW, s.FunctionName,
			s.NodeCount, s.EdgeCount,
			s.AnalyzedAt.Format("2006-01-02 15:04:05")))
	}

	b.WriteString(fmt.Sprintf("\n%d graph(s).\n", len(summaries)))
	return b.String()
}

// printChangeSummary reports one handled batch of file changes.
func printChangeSummary(summary *service.ChangeSummary) {
	ux.Info(fmt.Sprintf("%d analyzable file(s) changed", summary.AnalyzableChanged))
	for _, id := range summary.Refreshed {
		ux.Success("refreshed graph " + shortID(id))
	}
	if stale := len(summary.Invalidated) - len(summary.Refreshed); stale > 0 {
		ux.Muted(fmt.Sprintf("  %d graph(s) marked stale, rebuilt on next request", stale))
	}
}
