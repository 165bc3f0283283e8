// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the instance graph built from a composition
// root: one node per created instance, one edge per resolved wiring
// call.
//
// # Identity Model
//
// Node and edge ids are freshly generated on every build and carry no
// meaning across builds. Stable identity lives one level up, at the
// cache key derived from (project root, file, function); the two must
// never be conflated.
//
// # Thread Safety
//
// InstanceGraph is NOT safe for concurrent use during building. It is
// designed for single-writer access while nodes and edges are added,
// then read-only access after Freeze(). After Freeze(), the graph can
// be safely read from multiple goroutines.
//
// # Lifecycle
//
// A typical graph lifecycle:
//  1. Create with NewInstanceGraph(sourceFile, functionName)
//  2. Build with AddNode() and AddEdge() calls
//  3. Call Freeze() to infer roles and finalize
//  4. Query with GetNode(), FindSources(), TopologicalSort(), etc.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen
	// graph. Once Freeze() is called, the graph becomes read-only and
	// no further nodes or edges can be added.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an edge references a
	// non-existent node. Both source and target nodes must exist
	// before an edge can be created.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node with an ID that
	// already exists in the graph.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrMaxNodesExceeded is returned when the graph has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph has reached its
	// configured maximum edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrInvalidNode is returned when attempting to add a nil node or
	// a node missing its id or name.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge is returned when attempting to add a nil edge or
	// an edge missing its id or endpoint ids.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrCycleDetected is returned by TopologicalSort when the graph
	// contains a cycle. No partial order is returned.
	ErrCycleDetected = errors.New("graph contains a cycle")

	// ErrInvalidRoot is returned by the builder when given a nil or
	// unvalidatable composition root.
	ErrInvalidRoot = errors.New("invalid composition root")
)
