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

import (
	"encoding/json"
	"fmt"
)

// graphDocument is the wire form of an InstanceGraph: nodes and edges
// only. The name index and per-node adjacency are rebuilt on load
// rather than stored redundantly on disk.
type graphDocument struct {
	SourceFile   string          `json:"source_file"`
	FunctionName string          `json:"function_name"`
	Nodes        []*InstanceNode `json:"nodes"`
	Edges        []*WiringEdge   `json:"edges"`
}

// MarshalJSON serializes the graph to its wire form.
func (g *InstanceGraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphDocument{
		SourceFile:   g.SourceFile,
		FunctionName: g.FunctionName,
		Nodes:        g.nodes,
		Edges:        g.edges,
	})
}

// UnmarshalJSON deserializes a graph from its wire form, rebuilding
// the name index and adjacency through AddNode/AddEdge and freezing
// the result. An edge referencing a missing node fails the whole
// graph; callers treat that as a corrupt entry.
func (g *InstanceGraph) UnmarshalJSON(data []byte) error {
	var doc graphDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	rebuilt := NewInstanceGraph(doc.SourceFile, doc.FunctionName)
	for _, node := range doc.Nodes {
		if err := rebuilt.AddNode(node); err != nil {
			return fmt.Errorf("rebuilding nodes: %w", err)
		}
	}
	for _, edge := range doc.Edges {
		if err := rebuilt.AddEdge(edge); err != nil {
			return fmt.Errorf("rebuilding edges: %w", err)
		}
	}
	rebuilt.Freeze()

	*g = *rebuilt
	return nil
}
