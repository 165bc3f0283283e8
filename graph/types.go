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

	"github.com/AleutianAI/wiremap/composition"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph
	// can hold. Composition roots are small; the cap guards against
	// degenerate inputs, not scale.
	DefaultMaxNodes = 10_000

	// DefaultMaxEdges is the default maximum number of edges a graph
	// can hold.
	DefaultMaxEdges = 100_000
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting
	// AddNode/AddEdge calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen, roles are
	// inferred, and the graph is read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// InstanceRole classifies a node purely by its edge connectivity,
// never by its declared type.
type InstanceRole int

const (
	// RoleUnknown indicates an isolated node with no edges.
	RoleUnknown InstanceRole = iota

	// RoleSource indicates a node with outgoing edges only.
	RoleSource

	// RoleSink indicates a node with incoming edges only.
	RoleSink

	// RoleProcessing indicates a node with both incoming and outgoing
	// edges.
	RoleProcessing
)

// instanceRoleNames maps InstanceRole values to their string
// representations.
var instanceRoleNames = map[InstanceRole]string{
	RoleUnknown:    "unknown",
	RoleSource:     "source",
	RoleSink:       "sink",
	RoleProcessing: "processing",
}

// String returns the string representation of the InstanceRole.
func (r InstanceRole) String() string {
	if name, ok := instanceRoleNames[r]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes the role as its string name.
func (r InstanceRole) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON deserializes the role from its string name.
func (r *InstanceRole) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	role, err := ParseInstanceRole(name)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseInstanceRole converts a string name to an InstanceRole.
func ParseInstanceRole(name string) (InstanceRole, error) {
	for role, n := range instanceRoleNames {
		if n == name {
			return role, nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown instance role: %q", name)
}

// NodeConfig carries the creation details of an instance, preserved
// from extraction for display and diagnostics.
type NodeConfig struct {
	// CreationPattern is how the instance was created.
	CreationPattern composition.CreationPattern `json:"creation_pattern"`

	// FactoryName is the factory callee, when created via factory.
	FactoryName string `json:"factory_name,omitempty"`

	// IsPointer is true for pointer-owned instances.
	IsPointer bool `json:"is_pointer"`

	// PointerType is the ownership wrapper (unique_ptr, shared_ptr,
	// raw), when pointer-owned.
	PointerType string `json:"pointer_type,omitempty"`
}

// InstanceNode is one created instance in the graph.
//
// The Outgoing and Incoming adjacency slices are maintained by the
// owning InstanceGraph and are rebuilt from the edge list on load;
// they are never serialized.
type InstanceNode struct {
	// ID is the unique node identifier, freshly generated per build.
	ID string `json:"id"`

	// Name is the instance's variable name in the composition root.
	Name string `json:"name"`

	// TypeSymbol is the best-known type name for the instance.
	TypeSymbol string `json:"type_symbol"`

	// Role is derived from edge connectivity at Freeze() time.
	Role InstanceRole `json:"role"`

	// Location is where the instance is declared.
	Location composition.Location `json:"location"`

	// Args are the constructor argument expressions, verbatim.
	Args []string `json:"args,omitempty"`

	// Config carries creation details.
	Config NodeConfig `json:"config"`

	// Outgoing contains edges where this node is the source.
	Outgoing []*WiringEdge `json:"-"`

	// Incoming contains edges where this node is the target.
	Incoming []*WiringEdge `json:"-"`
}

// WiringEdge is one resolved wiring call between two instances.
type WiringEdge struct {
	// ID is the unique edge identifier, freshly generated per build.
	ID string `json:"id"`

	// SourceID is the id of the node the call was made on.
	SourceID string `json:"source_id"`

	// TargetID is the id of the node passed as the wiring target.
	TargetID string `json:"target_id"`

	// Method is the wiring method name (setNext, subscribe, ...).
	Method string `json:"method"`

	// Location is where the wiring call appears.
	Location composition.Location `json:"location"`

	// Metadata carries optional edge annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GraphOptions configures InstanceGraph behavior and limits.
type GraphOptions struct {
	// MaxNodes is the maximum number of nodes the graph can hold.
	MaxNodes int

	// MaxEdges is the maximum number of edges the graph can hold.
	MaxEdges int
}

// DefaultGraphOptions returns sensible defaults for graph
// configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// GraphOption is a functional option for configuring InstanceGraph.
type GraphOption func(*GraphOptions)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxEdges = n
	}
}
