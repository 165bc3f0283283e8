// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

// Layout spacing in pixels.
const (
	columnSpacing = 260
	rowSpacing    = 120
)

// VisualNode is a positioned node in a diagram payload.
type VisualNode struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	TypeSymbol string       `json:"type_symbol"`
	Role       InstanceRole `json:"role"`
	Column     int          `json:"column"`
	Row        int          `json:"row"`
	X          int          `json:"x"`
	Y          int          `json:"y"`
}

// VisualEdge is a typed edge in a diagram payload.
type VisualEdge struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Method   string `json:"method"`
}

// VisualGraph is a renderable projection of an instance graph.
type VisualGraph struct {
	SourceFile   string       `json:"source_file"`
	FunctionName string       `json:"function_name"`
	Nodes        []VisualNode `json:"nodes"`
	Edges        []VisualEdge `json:"edges"`
}

// Diagram projects an instance graph into a positioned payload for
// rendering.
//
// Description:
//
//	A pure, stateless projection. Columns follow data-flow depth:
//	each node sits one column right of its deepest predecessor, so
//	sources land in column zero and every wiring edge points
//	rightward. Isolated nodes are parked in a trailing column. When
//	the graph contains a cycle no depth is defined, so all nodes
//	stack in a single column in insertion order.
func Diagram(g *InstanceGraph) *VisualGraph {
	visual := &VisualGraph{
		SourceFile:   g.SourceFile,
		FunctionName: g.FunctionName,
		Nodes:        make([]VisualNode, 0, g.NodeCount()),
		Edges:        make([]VisualEdge, 0, g.EdgeCount()),
	}

	columns := assignColumns(g)

	rows := make(map[int]int)
	for _, node := range g.Nodes() {
		column := columns[node.ID]
		row := rows[column]
		rows[column]++

		visual.Nodes = append(visual.Nodes, VisualNode{
			ID:         node.ID,
			Name:       node.Name,
			TypeSymbol: node.TypeSymbol,
			Role:       node.Role,
			Column:     column,
			Row:        row,
			X:          column * columnSpacing,
			Y:          row * rowSpacing,
		})
	}

	for _, edge := range g.Edges() {
		visual.Edges = append(visual.Edges, VisualEdge{
			ID:       edge.ID,
			SourceID: edge.SourceID,
			TargetID: edge.TargetID,
			Method:   edge.Method,
		})
	}

	return visual
}

// assignColumns computes the column for each node id by longest path
// from a source, walking nodes in topological order so predecessors
// are always resolved first. Falls back to a single column when the
// graph is cyclic.
func assignColumns(g *InstanceGraph) map[string]int {
	columns := make(map[string]int, g.NodeCount())

	order, err := g.TopologicalSort()
	if err != nil {
		for _, node := range g.Nodes() {
			columns[node.ID] = 0
		}
		return columns
	}

	maxDepth := 0
	for _, node := range order {
		depth := 0
		for _, edge := range node.Incoming {
			if d := columns[edge.SourceID] + 1; d > depth {
				depth = d
			}
		}
		columns[node.ID] = depth
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	// Isolated nodes move to a trailing column so the flow columns
	// stay uncluttered, unless nothing is connected at all.
	hasEdges := g.EdgeCount() > 0
	if hasEdges {
		for _, node := range order {
			if len(node.Incoming) == 0 && len(node.Outgoing) == 0 {
				columns[node.ID] = maxDepth + 1
			}
		}
	}

	return columns
}
