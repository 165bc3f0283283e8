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
	"fmt"
	"time"
)

// InstanceGraph is the directed graph of instances created inside one
// composition root.
//
// Thread Safety:
//
//	InstanceGraph is NOT safe for concurrent use during building. It
//	is designed for single-writer access during build, then read-only
//	after Freeze(). After Freeze() is called, the graph can be safely
//	read from multiple goroutines, but no further modifications are
//	allowed.
//
// Lifecycle:
//
//  1. Create with NewInstanceGraph(sourceFile, functionName)
//  2. Build with AddNode() and AddEdge() calls
//  3. Call Freeze() to infer roles and finalize
//  4. Query with GetNode(), traversal methods, etc.
type InstanceGraph struct {
	// SourceFile is the file the composition root was extracted from.
	SourceFile string

	// FunctionName is the composition root function (or pseudo-root).
	FunctionName string

	// nodes holds all nodes in insertion order.
	nodes []*InstanceNode

	// nodeByID maps node ID to node.
	nodeByID map[string]*InstanceNode

	// nameToID maps instance name to node ID. When a name is declared
	// more than once, the later declaration wins, matching how the
	// variable would rebind in the source.
	nameToID map[string]string

	// edges contains all edges in insertion order.
	edges []*WiringEdge

	// state is the current lifecycle state.
	state GraphState

	// options contains configuration.
	options GraphOptions

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze()
	// was called. Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

// NewInstanceGraph creates a new empty graph for one composition root.
//
// Description:
//
//	Creates a graph in the Building state, ready to accept AddNode and
//	AddEdge calls. The graph must be frozen with Freeze() before roles
//	are meaningful.
//
// Inputs:
//
//	sourceFile - File the composition root lives in.
//	functionName - Name of the root function or pseudo-root.
//	opts - Optional configuration options.
func NewInstanceGraph(sourceFile, functionName string, opts ...GraphOption) *InstanceGraph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &InstanceGraph{
		SourceFile:   sourceFile,
		FunctionName: functionName,
		nodes:        make([]*InstanceNode, 0),
		nodeByID:     make(map[string]*InstanceNode),
		nameToID:     make(map[string]string),
		edges:        make([]*WiringEdge, 0),
		state:        GraphStateBuilding,
		options:      options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *InstanceGraph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *InstanceGraph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Freeze infers node roles and transitions the graph to read-only
// mode.
//
// Description:
//
//	Role inference runs here, once, from the finished adjacency: a
//	node with both incoming and outgoing edges is PROCESSING,
//	outgoing-only is SOURCE, incoming-only is SINK, isolated is
//	UNKNOWN. Because inference happens after all edges exist,
//	insertion order never affects the result. Freeze is idempotent;
//	repeated calls keep the first timestamp.
//
// Thread Safety:
//
//	After Freeze() returns, the graph can be safely read from
//	multiple goroutines concurrently.
func (g *InstanceGraph) Freeze() {
	if g.state == GraphStateReadOnly {
		return
	}

	for _, node := range g.nodes {
		node.Role = roleFor(len(node.Incoming), len(node.Outgoing))
	}

	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// roleFor derives a role from adjacency counts.
func roleFor(incoming, outgoing int) InstanceRole {
	switch {
	case incoming > 0 && outgoing > 0:
		return RoleProcessing
	case outgoing > 0:
		return RoleSource
	case incoming > 0:
		return RoleSink
	default:
		return RoleUnknown
	}
}

// NodeCount returns the number of nodes in the graph.
func (g *InstanceGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *InstanceGraph) EdgeCount() int {
	return len(g.edges)
}

// AddNode adds an instance node to the graph.
//
// Description:
//
//	The node's adjacency slices are reset; edges populate them via
//	AddEdge. The name index is updated so the node is reachable by
//	its instance name.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidNode - Node is nil or missing id/name
//	ErrDuplicateNode - Node with same ID already exists
//	ErrMaxNodesExceeded - Graph is at node capacity
//
// Ownership:
//
//	The graph stores the node pointer and owns its adjacency slices.
//	Callers must not mutate the node after adding it.
func (g *InstanceGraph) AddNode(node *InstanceNode) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}

	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if node.Name == "" {
		return fmt.Errorf("%w: empty name for %s", ErrInvalidNode, node.ID)
	}

	if len(g.nodes) >= g.options.MaxNodes {
		return ErrMaxNodesExceeded
	}

	if _, exists := g.nodeByID[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}

	node.Outgoing = make([]*WiringEdge, 0)
	node.Incoming = make([]*WiringEdge, 0)

	g.nodes = append(g.nodes, node)
	g.nodeByID[node.ID] = node
	g.nameToID[node.Name] = node.ID

	return nil
}

// AddEdge adds a wiring edge between two existing nodes.
//
// Description:
//
//	Both endpoints must already exist in the graph. The edge is
//	appended to the edge list and to both endpoints' adjacency in the
//	same operation, so the adjacency view is never out of step with
//	the edge list.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidEdge - Edge is nil or missing id/endpoints
//	ErrNodeNotFound - Source or target node doesn't exist
//	ErrMaxEdgesExceeded - Graph is at edge capacity
func (g *InstanceGraph) AddEdge(edge *WiringEdge) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}

	if edge == nil {
		return fmt.Errorf("%w: edge is nil", ErrInvalidEdge)
	}
	if edge.ID == "" || edge.SourceID == "" || edge.TargetID == "" {
		return fmt.Errorf("%w: missing id or endpoint", ErrInvalidEdge)
	}

	if len(g.edges) >= g.options.MaxEdges {
		return ErrMaxEdgesExceeded
	}

	source, ok := g.nodeByID[edge.SourceID]
	if !ok {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, edge.SourceID)
	}

	target, ok := g.nodeByID[edge.TargetID]
	if !ok {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, edge.TargetID)
	}

	g.edges = append(g.edges, edge)
	source.Outgoing = append(source.Outgoing, edge)
	target.Incoming = append(target.Incoming, edge)

	return nil
}

// GetNode retrieves a node by its ID.
func (g *InstanceGraph) GetNode(id string) (*InstanceNode, bool) {
	node, exists := g.nodeByID[id]
	return node, exists
}

// GetNodeByName retrieves a node by its instance name.
func (g *InstanceGraph) GetNodeByName(name string) (*InstanceNode, bool) {
	id, ok := g.nameToID[name]
	if !ok {
		return nil, false
	}
	return g.nodeByID[id], true
}

// GetOutgoingEdges returns the edges where the given node is the
// source. Returns a defensive copy.
func (g *InstanceGraph) GetOutgoingEdges(id string) []*WiringEdge {
	node, ok := g.nodeByID[id]
	if !ok || len(node.Outgoing) == 0 {
		return []*WiringEdge{}
	}
	result := make([]*WiringEdge, len(node.Outgoing))
	copy(result, node.Outgoing)
	return result
}

// GetIncomingEdges returns the edges where the given node is the
// target. Returns a defensive copy.
func (g *InstanceGraph) GetIncomingEdges(id string) []*WiringEdge {
	node, ok := g.nodeByID[id]
	if !ok || len(node.Incoming) == 0 {
		return []*WiringEdge{}
	}
	result := make([]*WiringEdge, len(node.Incoming))
	copy(result, node.Incoming)
	return result
}

// Nodes returns all nodes in insertion order. Returns a defensive
// copy of the slice; the nodes themselves are shared.
func (g *InstanceGraph) Nodes() []*InstanceNode {
	result := make([]*InstanceNode, len(g.nodes))
	copy(result, g.nodes)
	return result
}

// Edges returns all edges in insertion order. Returns a defensive
// copy of the slice; the edges themselves are shared.
func (g *InstanceGraph) Edges() []*WiringEdge {
	result := make([]*WiringEdge, len(g.edges))
	copy(result, g.edges)
	return result
}

// FindSources returns the nodes with no incoming edges, in insertion
// order.
func (g *InstanceGraph) FindSources() []*InstanceNode {
	result := make([]*InstanceNode, 0)
	for _, node := range g.nodes {
		if len(node.Incoming) == 0 {
			result = append(result, node)
		}
	}
	return result
}

// FindSinks returns the nodes with no outgoing edges, in insertion
// order.
func (g *InstanceGraph) FindSinks() []*InstanceNode {
	result := make([]*InstanceNode, 0)
	for _, node := range g.nodes {
		if len(node.Outgoing) == 0 {
			result = append(result, node)
		}
	}
	return result
}

// TopologicalSort orders the nodes so that every edge points forward.
//
// Description:
//
//	Kahn's algorithm: repeatedly emit nodes with zero remaining
//	incoming edges, decrementing their successors. Ties are broken by
//	insertion order, so the result is deterministic. On an empty
//	graph the returned order is empty with a nil error.
//
// Outputs:
//
//	[]*InstanceNode - Nodes in dependency order.
//	error - ErrCycleDetected when the graph contains a cycle; no
//	partial order is returned in that case.
func (g *InstanceGraph) TopologicalSort() ([]*InstanceNode, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		indegree[node.ID] = len(node.Incoming)
	}

	queue := make([]*InstanceNode, 0, len(g.nodes))
	for _, node := range g.nodes {
		if indegree[node.ID] == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]*InstanceNode, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, edge := range node.Outgoing {
			indegree[edge.TargetID]--
			if indegree[edge.TargetID] == 0 {
				queue = append(queue, g.nodeByID[edge.TargetID])
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrCycleDetected
	}

	return order, nil
}

// GraphStats contains statistics about the graph.
type GraphStats struct {
	// NodeCount is the total number of nodes.
	NodeCount int

	// EdgeCount is the total number of edges.
	EdgeCount int

	// NodesByRole maps each role to the count of nodes with that
	// role. Populated after Freeze().
	NodesByRole map[InstanceRole]int

	// State is the current graph state.
	State GraphState

	// BuiltAtMilli is when Freeze() was called (0 if not frozen).
	BuiltAtMilli int64
}

// Stats returns statistics about the graph.
func (g *InstanceGraph) Stats() GraphStats {
	nodesByRole := make(map[InstanceRole]int)
	for _, node := range g.nodes {
		nodesByRole[node.Role]++
	}

	return GraphStats{
		NodeCount:    len(g.nodes),
		EdgeCount:    len(g.edges),
		NodesByRole:  nodesByRole,
		State:        g.state,
		BuiltAtMilli: g.BuiltAtMilli,
	}
}
