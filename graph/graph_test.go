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
	"errors"
	"fmt"
	"testing"
)

// Helper to create a valid test node.
func makeNode(id, name string) *InstanceNode {
	return &InstanceNode{
		ID:         id,
		Name:       name,
		TypeSymbol: "TestModule",
	}
}

// Helper to create a test edge.
func makeEdge(id, sourceID, targetID string) *WiringEdge {
	return &WiringEdge{
		ID:       id,
		SourceID: sourceID,
		TargetID: targetID,
		Method:   "setNext",
	}
}

// Helper to build a frozen chain a -> b -> c.
func makeChain(t *testing.T) *InstanceGraph {
	t.Helper()
	g := NewInstanceGraph("main.cpp", "main")
	for _, name := range []string{"a", "b", "c"} {
		if err := g.AddNode(makeNode("id-"+name, name)); err != nil {
			t.Fatalf("AddNode(%s): %v", name, err)
		}
	}
	if err := g.AddEdge(makeEdge("e1", "id-a", "id-b")); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := g.AddEdge(makeEdge("e2", "id-b", "id-c")); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	g.Freeze()
	return g
}

func TestGraphState_String(t *testing.T) {
	tests := []struct {
		state    GraphState
		expected string
	}{
		{GraphStateBuilding, "building"},
		{GraphStateReadOnly, "readonly"},
		{GraphState(99), "unknown"},
	}

	for _, tc := range tests {
		if got := tc.state.String(); got != tc.expected {
			t.Errorf("GraphState(%d).String() = %q, expected %q", tc.state, got, tc.expected)
		}
	}
}

func TestInstanceRole_String(t *testing.T) {
	tests := []struct {
		role     InstanceRole
		expected string
	}{
		{RoleUnknown, "unknown"},
		{RoleSource, "source"},
		{RoleSink, "sink"},
		{RoleProcessing, "processing"},
		{InstanceRole(99), "unknown"},
	}

	for _, tc := range tests {
		if got := tc.role.String(); got != tc.expected {
			t.Errorf("InstanceRole(%d).String() = %q, expected %q", tc.role, got, tc.expected)
		}
	}

	if role, _ := ParseInstanceRole("processing"); role != RoleProcessing {
		t.Error("expected processing to parse")
	}
	if role, _ := ParseInstanceRole("bogus"); role != RoleUnknown {
		t.Error("expected unknown fallback")
	}
}

func TestNewInstanceGraph_Defaults(t *testing.T) {
	g := NewInstanceGraph("main.py", "main")

	if g.SourceFile != "main.py" {
		t.Errorf("SourceFile = %q, expected main.py", g.SourceFile)
	}
	if g.FunctionName != "main" {
		t.Errorf("FunctionName = %q, expected main", g.FunctionName)
	}
	if g.State() != GraphStateBuilding {
		t.Errorf("State = %v, expected Building", g.State())
	}
	if g.IsFrozen() {
		t.Error("new graph must not be frozen")
	}
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Error("new graph must be empty")
	}
	if g.BuiltAtMilli != 0 {
		t.Error("BuiltAtMilli must be zero before Freeze")
	}
}

func TestInstanceGraph_AddNode_Validation(t *testing.T) {
	g := NewInstanceGraph("main.py", "main")

	if err := g.AddNode(nil); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("nil node: expected ErrInvalidNode, got %v", err)
	}
	if err := g.AddNode(makeNode("", "a")); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("empty id: expected ErrInvalidNode, got %v", err)
	}
	if err := g.AddNode(makeNode("n1", "")); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("empty name: expected ErrInvalidNode, got %v", err)
	}

	if err := g.AddNode(makeNode("n1", "a")); err != nil {
		t.Fatalf("valid node: %v", err)
	}
	if err := g.AddNode(makeNode("n1", "b")); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("duplicate id: expected ErrDuplicateNode, got %v", err)
	}

	g.Freeze()
	if err := g.AddNode(makeNode("n2", "b")); !errors.Is(err, ErrGraphFrozen) {
		t.Errorf("frozen: expected ErrGraphFrozen, got %v", err)
	}
}

func TestInstanceGraph_AddNode_Capacity(t *testing.T) {
	g := NewInstanceGraph("main.py", "main", WithMaxNodes(2))

	for i := 0; i < 2; i++ {
		if err := g.AddNode(makeNode(fmt.Sprintf("n%d", i), fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("AddNode %d: %v", i, err)
		}
	}
	if err := g.AddNode(makeNode("n2", "v2")); !errors.Is(err, ErrMaxNodesExceeded) {
		t.Errorf("expected ErrMaxNodesExceeded, got %v", err)
	}
}

func TestInstanceGraph_AddEdge_Validation(t *testing.T) {
	g := NewInstanceGraph("main.py", "main")
	if err := g.AddNode(makeNode("n1", "a")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(makeNode("n2", "b")); err != nil {
		t.Fatal(err)
	}

	if err := g.AddEdge(nil); !errors.Is(err, ErrInvalidEdge) {
		t.Errorf("nil edge: expected ErrInvalidEdge, got %v", err)
	}
	if err := g.AddEdge(makeEdge("", "n1", "n2")); !errors.Is(err, ErrInvalidEdge) {
		t.Errorf("empty id: expected ErrInvalidEdge, got %v", err)
	}
	if err := g.AddEdge(makeEdge("e1", "n1", "missing")); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("missing target: expected ErrNodeNotFound, got %v", err)
	}
	if err := g.AddEdge(makeEdge("e1", "missing", "n2")); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("missing source: expected ErrNodeNotFound, got %v", err)
	}

	if err := g.AddEdge(makeEdge("e1", "n1", "n2")); err != nil {
		t.Fatalf("valid edge: %v", err)
	}

	g.Freeze()
	if err := g.AddEdge(makeEdge("e2", "n1", "n2")); !errors.Is(err, ErrGraphFrozen) {
		t.Errorf("frozen: expected ErrGraphFrozen, got %v", err)
	}
}

func TestInstanceGraph_AddEdge_Capacity(t *testing.T) {
	g := NewInstanceGraph("main.py", "main", WithMaxEdges(1))
	if err := g.AddNode(makeNode("n1", "a")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(makeNode("n2", "b")); err != nil {
		t.Fatal(err)
	}

	if err := g.AddEdge(makeEdge("e1", "n1", "n2")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(makeEdge("e2", "n2", "n1")); !errors.Is(err, ErrMaxEdgesExceeded) {
		t.Errorf("expected ErrMaxEdgesExceeded, got %v", err)
	}
}

func TestInstanceGraph_Lookups(t *testing.T) {
	g := makeChain(t)

	node, ok := g.GetNode("id-b")
	if !ok || node.Name != "b" {
		t.Errorf("GetNode(id-b) = %+v, %v", node, ok)
	}
	if _, ok := g.GetNode("missing"); ok {
		t.Error("expected miss for unknown id")
	}

	node, ok = g.GetNodeByName("c")
	if !ok || node.ID != "id-c" {
		t.Errorf("GetNodeByName(c) = %+v, %v", node, ok)
	}
	if _, ok := g.GetNodeByName("missing"); ok {
		t.Error("expected miss for unknown name")
	}
}

func TestInstanceGraph_NameRebinding(t *testing.T) {
	g := NewInstanceGraph("main.py", "main")
	if err := g.AddNode(makeNode("n1", "gen")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(makeNode("n2", "gen")); err != nil {
		t.Fatal(err)
	}

	// The later declaration wins the name, like rebinding in source.
	node, ok := g.GetNodeByName("gen")
	if !ok || node.ID != "n2" {
		t.Errorf("expected name to resolve to n2, got %+v", node)
	}

	// Both nodes remain in the graph.
	if g.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.NodeCount())
	}
}

func TestInstanceGraph_RoleInference(t *testing.T) {
	g := makeChain(t)

	tests := []struct {
		name string
		role InstanceRole
	}{
		{"a", RoleSource},
		{"b", RoleProcessing},
		{"c", RoleSink},
	}
	for _, tc := range tests {
		node, _ := g.GetNodeByName(tc.name)
		if node.Role != tc.role {
			t.Errorf("%s: expected role %v, got %v", tc.name, tc.role, node.Role)
		}
	}
}

func TestInstanceGraph_RoleInference_Isolated(t *testing.T) {
	g := NewInstanceGraph("main.py", "main")
	if err := g.AddNode(makeNode("n1", "loner")); err != nil {
		t.Fatal(err)
	}
	g.Freeze()

	node, _ := g.GetNodeByName("loner")
	if node.Role != RoleUnknown {
		t.Errorf("isolated node: expected RoleUnknown, got %v", node.Role)
	}
}

func TestInstanceGraph_Freeze_Idempotent(t *testing.T) {
	g := makeChain(t)

	if !g.IsFrozen() {
		t.Fatal("expected frozen graph")
	}
	first := g.BuiltAtMilli
	if first == 0 {
		t.Fatal("expected BuiltAtMilli to be set")
	}

	g.Freeze()
	if g.BuiltAtMilli != first {
		t.Error("second Freeze must keep the first timestamp")
	}
}

func TestInstanceGraph_Adjacency(t *testing.T) {
	g := makeChain(t)

	out := g.GetOutgoingEdges("id-a")
	if len(out) != 1 || out[0].TargetID != "id-b" {
		t.Errorf("outgoing of a: %+v", out)
	}
	in := g.GetIncomingEdges("id-c")
	if len(in) != 1 || in[0].SourceID != "id-b" {
		t.Errorf("incoming of c: %+v", in)
	}
	if len(g.GetOutgoingEdges("id-c")) != 0 {
		t.Error("expected sink to have no outgoing edges")
	}
	if len(g.GetOutgoingEdges("missing")) != 0 {
		t.Error("expected empty result for unknown id")
	}

	// The returned slice is a copy; truncating it must not affect the
	// graph.
	out = out[:0]
	if len(g.GetOutgoingEdges("id-a")) != 1 {
		t.Error("adjacency copy leaked")
	}
}

func TestInstanceGraph_SourcesAndSinks(t *testing.T) {
	g := makeChain(t)

	sources := g.FindSources()
	if len(sources) != 1 || sources[0].Name != "a" {
		t.Errorf("sources: %+v", sources)
	}
	sinks := g.FindSinks()
	if len(sinks) != 1 || sinks[0].Name != "c" {
		t.Errorf("sinks: %+v", sinks)
	}
}

func TestInstanceGraph_TopologicalSort(t *testing.T) {
	// Diamond: a -> b, a -> c, b -> d, c -> d.
	g := NewInstanceGraph("main.py", "main")
	for _, name := range []string{"a", "b", "c", "d"} {
		if err := g.AddNode(makeNode("id-"+name, name)); err != nil {
			t.Fatal(err)
		}
	}
	edges := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}}
	for i, e := range edges {
		if err := g.AddEdge(makeEdge(fmt.Sprintf("e%d", i), "id-"+e[0], "id-"+e[1])); err != nil {
			t.Fatal(err)
		}
	}
	g.Freeze()

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 nodes in order, got %d", len(order))
	}

	position := make(map[string]int)
	for i, node := range order {
		position[node.Name] = i
	}
	for _, e := range edges {
		if position[e[0]] >= position[e[1]] {
			t.Errorf("edge %s->%s violates topological order %v", e[0], e[1], position)
		}
	}

	// Ties break by insertion order.
	if order[0].Name != "a" || order[1].Name != "b" || order[2].Name != "c" {
		t.Errorf("expected deterministic order [a b c d], got %v", position)
	}
}

func TestInstanceGraph_TopologicalSort_Cycle(t *testing.T) {
	g := NewInstanceGraph("main.py", "main")
	for _, name := range []string{"a", "b"} {
		if err := g.AddNode(makeNode("id-"+name, name)); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddEdge(makeEdge("e1", "id-a", "id-b")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(makeEdge("e2", "id-b", "id-a")); err != nil {
		t.Fatal(err)
	}
	g.Freeze()

	order, err := g.TopologicalSort()
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	if order != nil {
		t.Error("expected no partial order on cycle")
	}
}

func TestInstanceGraph_TopologicalSort_Empty(t *testing.T) {
	g := NewInstanceGraph("main.py", "main")
	g.Freeze()

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected empty order, got %d nodes", len(order))
	}
}

func TestInstanceGraph_Stats(t *testing.T) {
	g := makeChain(t)

	stats := g.Stats()
	if stats.NodeCount != 3 || stats.EdgeCount != 2 {
		t.Errorf("counts: %+v", stats)
	}
	if stats.State != GraphStateReadOnly {
		t.Errorf("expected readonly state, got %v", stats.State)
	}
	if stats.NodesByRole[RoleSource] != 1 || stats.NodesByRole[RoleProcessing] != 1 || stats.NodesByRole[RoleSink] != 1 {
		t.Errorf("roles: %+v", stats.NodesByRole)
	}
	if stats.BuiltAtMilli == 0 {
		t.Error("expected BuiltAtMilli in stats")
	}
}

func TestInstanceGraph_Nodes_DefensiveCopy(t *testing.T) {
	g := makeChain(t)

	nodes := g.Nodes()
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	nodes[0] = nil
	if fresh := g.Nodes(); fresh[0] == nil {
		t.Error("Nodes() must return a copy")
	}
}

func TestInstanceGraph_Edges_DefensiveCopy(t *testing.T) {
	g := makeChain(t)

	edges := g.Edges()
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	edges[0] = nil
	if fresh := g.Edges(); fresh[0] == nil {
		t.Error("Edges() must return a copy")
	}
}
