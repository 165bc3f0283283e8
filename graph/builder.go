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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/wiremap/composition"
)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Logger receives build diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// MaxNodes is the maximum number of nodes (passed to the graph).
	MaxNodes int

	// MaxEdges is the maximum number of edges (passed to the graph).
	MaxEdges int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Logger:   slog.Default(),
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithBuilderLogger sets the logger.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = logger
	}
}

// WithBuilderMaxNodes sets the maximum number of nodes.
func WithBuilderMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithBuilderMaxEdges sets the maximum number of edges.
func WithBuilderMaxEdges(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxEdges = n
	}
}

// BuildStats contains statistics from one build.
type BuildStats struct {
	// NodesCreated is the number of nodes added to the graph.
	NodesCreated int

	// EdgesCreated is the number of edges added to the graph.
	EdgesCreated int

	// DroppedWirings is the number of wiring calls whose endpoints
	// did not both resolve to declared instances.
	DroppedWirings int

	// DurationMilli is the build duration in milliseconds.
	DurationMilli int64
}

// BuildResult is the outcome of building one composition root.
type BuildResult struct {
	// Graph is the frozen instance graph.
	Graph *InstanceGraph

	// DroppedWirings lists the wiring calls that were dropped because
	// an endpoint was not a declared instance (e.g. a parameter).
	// Dropping is silent in the graph itself; the list keeps the
	// information observable.
	DroppedWirings []composition.WiringInfo

	// Stats summarizes the build.
	Stats BuildStats
}

// Builder converts extraction results into frozen instance graphs.
//
// Thread Safety:
//
//	Safe for concurrent use; each Build call works on its own graph.
type Builder struct {
	opts BuilderOptions
}

// NewBuilder creates a graph builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder{opts: options}
}

// Build converts a composition root into a frozen instance graph.
//
// Description:
//
//	Every instance becomes a node with a fresh unique id. Every
//	wiring call whose source and target both resolve through the
//	name index becomes an edge; the rest are dropped and reported in
//	the result. Roles are inferred at freeze, after all edges exist.
//
// Errors:
//
//	ErrInvalidRoot - Root is nil or fails validation.
//	ErrMaxNodesExceeded / ErrMaxEdgesExceeded - Capacity exhausted.
func (b *Builder) Build(ctx context.Context, root *composition.CompositionRoot) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "graph.build")
	defer span.End()

	start := time.Now()

	if root == nil {
		recordBuild(ctx, "error", time.Since(start))
		return nil, fmt.Errorf("%w: nil root", ErrInvalidRoot)
	}
	if err := root.Validate(); err != nil {
		recordBuild(ctx, "error", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	span.SetAttributes(
		attribute.String("file", root.FilePath),
		attribute.String("function", root.FunctionName),
	)

	g := NewInstanceGraph(root.FilePath, root.FunctionName,
		WithMaxNodes(b.opts.MaxNodes),
		WithMaxEdges(b.opts.MaxEdges),
	)

	for i := range root.Instances {
		info := &root.Instances[i]
		node := &InstanceNode{
			ID:         uuid.NewString(),
			Name:       info.Name,
			TypeSymbol: typeSymbolFor(info),
			Location:   info.Location,
			Args:       info.ConstructorArgs,
			Config: NodeConfig{
				CreationPattern: info.CreationPattern,
				FactoryName:     info.FactoryName,
				IsPointer:       info.IsPointer,
				PointerType:     info.PointerType,
			},
		}
		if err := g.AddNode(node); err != nil {
			recordBuild(ctx, "error", time.Since(start))
			return nil, fmt.Errorf("adding node %s: %w", info.Name, err)
		}
	}

	var dropped []composition.WiringInfo
	for _, wiring := range root.Wiring {
		source, sourceOK := g.GetNodeByName(wiring.SourceInstance)
		target, targetOK := g.GetNodeByName(wiring.TargetInstance)
		if !sourceOK || !targetOK {
			dropped = append(dropped, wiring)
			continue
		}

		edge := &WiringEdge{
			ID:       uuid.NewString(),
			SourceID: source.ID,
			TargetID: target.ID,
			Method:   wiring.MethodName,
			Location: wiring.Location,
		}
		if wiring.WiringKind != "" {
			edge.Metadata = map[string]string{"wiring_kind": wiring.WiringKind}
		}
		if err := g.AddEdge(edge); err != nil {
			recordBuild(ctx, "error", time.Since(start))
			return nil, fmt.Errorf("adding edge %s -> %s: %w", wiring.SourceInstance, wiring.TargetInstance, err)
		}
	}

	g.Freeze()

	duration := time.Since(start)
	recordBuild(ctx, "ok", duration)
	recordDroppedWirings(ctx, len(dropped))

	if len(dropped) > 0 {
		b.opts.Logger.Debug("dropped unresolvable wirings",
			slog.String("file", root.FilePath),
			slog.String("function", root.FunctionName),
			slog.Int("dropped", len(dropped)),
		)
	}

	return &BuildResult{
		Graph:          g,
		DroppedWirings: dropped,
		Stats: BuildStats{
			NodesCreated:   g.NodeCount(),
			EdgesCreated:   g.EdgeCount(),
			DroppedWirings: len(dropped),
			DurationMilli:  duration.Milliseconds(),
		},
	}, nil
}

// typeSymbolFor derives the best-known type name for an instance:
// the resolved actual type, a name derived from the factory, the
// declared type unless it is an inference placeholder, and finally
// the instance name itself.
func typeSymbolFor(info *composition.InstanceInfo) string {
	if info.ActualType != "" {
		return info.ActualType
	}
	if info.FactoryName != "" {
		if derived := composition.TypeSymbolFromFactory(info.FactoryName); derived != "" {
			return derived
		}
	}
	if info.DeclaredType != "" && info.DeclaredType != "auto" {
		return info.DeclaredType
	}
	return info.Name
}
