// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package composition locates composition roots in source files and
// extracts the object instances declared there, the calls that wire
// them together, and their lifecycle calls.
//
// A composition root is the function (or script body) where a program
// instantiates and connects its top-level components. Three extractors
// cover the supported language families: C++, Python, and
// TypeScript/JavaScript. All of them share the data model in this file
// and produce an immutable CompositionRoot per (file, function) pair.
package composition

import (
	"encoding/json"
	"fmt"
)

// Location identifies a position in a source file.
//
// Line and Column are 1-based. A Location is immutable once created.
type Location struct {
	// FilePath is the path of the source file.
	FilePath string `json:"file_path"`

	// Line is the 1-based line number.
	Line int `json:"line"`

	// Column is the 1-based column number.
	Column int `json:"column"`
}

// String returns "file:line:col" for logging and error messages.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.Line, l.Column)
}

// CreationPattern classifies how an instance was constructed.
type CreationPattern int

const (
	// CreationUnknown means the construction shape was not recognized.
	CreationUnknown CreationPattern = iota

	// CreationDirect is direct construction (Type(...) or new Type()).
	CreationDirect

	// CreationFactory is construction through a factory function.
	CreationFactory

	// CreationSmartPointerUnique is std::make_unique or equivalent.
	CreationSmartPointerUnique

	// CreationSmartPointerShared is std::make_shared or equivalent.
	CreationSmartPointerShared
)

// creationPatternNames maps patterns to their wire representation.
var creationPatternNames = map[CreationPattern]string{
	CreationUnknown:            "unknown",
	CreationDirect:             "direct",
	CreationFactory:            "factory",
	CreationSmartPointerUnique: "smart_pointer_unique",
	CreationSmartPointerShared: "smart_pointer_shared",
}

// String returns the wire name of the pattern.
func (p CreationPattern) String() string {
	if name, ok := creationPatternNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes the pattern as its string name.
func (p CreationPattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON deserializes the pattern from its string name.
// Unrecognized names map to CreationUnknown.
func (p *CreationPattern) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshaling creation pattern: %w", err)
	}
	*p = ParseCreationPattern(s)
	return nil
}

// ParseCreationPattern converts a wire name to a CreationPattern.
func ParseCreationPattern(s string) CreationPattern {
	for pattern, name := range creationPatternNames {
		if name == s {
			return pattern
		}
	}
	return CreationUnknown
}

// LifecycleMethod classifies a recognized lifecycle call.
type LifecycleMethod int

const (
	// LifecycleUnknown means the method is not in the vocabulary.
	LifecycleUnknown LifecycleMethod = iota

	// LifecycleInit covers init/initialize.
	LifecycleInit

	// LifecycleStart covers start (and run in scripting languages).
	LifecycleStart

	// LifecycleStop covers stop.
	LifecycleStop

	// LifecycleShutdown covers shutdown/close/dispose/destroy.
	LifecycleShutdown

	// LifecycleConnect covers connect.
	LifecycleConnect

	// LifecycleDisconnect covers disconnect.
	LifecycleDisconnect
)

// lifecycleMethodNames maps methods to their wire representation.
var lifecycleMethodNames = map[LifecycleMethod]string{
	LifecycleUnknown:    "unknown",
	LifecycleInit:       "init",
	LifecycleStart:      "start",
	LifecycleStop:       "stop",
	LifecycleShutdown:   "shutdown",
	LifecycleConnect:    "connect",
	LifecycleDisconnect: "disconnect",
}

// String returns the wire name of the method.
func (m LifecycleMethod) String() string {
	if name, ok := lifecycleMethodNames[m]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes the method as its string name.
func (m LifecycleMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON deserializes the method from its string name.
func (m *LifecycleMethod) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshaling lifecycle method: %w", err)
	}
	*m = ParseLifecycleMethod(s)
	return nil
}

// ParseLifecycleMethod converts a wire name to a LifecycleMethod.
func ParseLifecycleMethod(s string) LifecycleMethod {
	for method, name := range lifecycleMethodNames {
		if name == s {
			return method
		}
	}
	return LifecycleUnknown
}

// InstanceInfo is one declared object instance in a composition root.
//
// Created once per recognized declaration and never mutated afterward.
type InstanceInfo struct {
	// Name is the declared variable name.
	Name string `json:"name"`

	// DeclaredType is the type written at the declaration site
	// (may be a placeholder like "auto" or empty in dynamic languages).
	DeclaredType string `json:"declared_type,omitempty"`

	// ActualType is the concrete type when it could be resolved
	// (template argument, constructor name, or derived from a factory).
	ActualType string `json:"actual_type,omitempty"`

	// Location is where the declaration appears.
	Location Location `json:"location"`

	// CreationPattern classifies the construction shape.
	CreationPattern CreationPattern `json:"creation_pattern"`

	// FactoryName is the callee name for factory construction.
	FactoryName string `json:"factory_name,omitempty"`

	// ConstructorArgs holds the source text of each argument.
	ConstructorArgs []string `json:"constructor_args,omitempty"`

	// IsPointer is true for pointer-like instances.
	IsPointer bool `json:"is_pointer"`

	// PointerType names the pointer kind ("unique_ptr", "shared_ptr").
	PointerType string `json:"pointer_type,omitempty"`
}

// WiringInfo is one recognized connection call of the shape
// source.method(target) where both endpoints are declared instances.
type WiringInfo struct {
	// SourceInstance is the receiver of the wiring call.
	SourceInstance string `json:"source_instance"`

	// TargetInstance is the instance passed as the wiring target.
	TargetInstance string `json:"target_instance"`

	// MethodName is the wiring method (setNext, connect, subscribe...).
	MethodName string `json:"method_name"`

	// Location is where the call appears.
	Location Location `json:"location"`

	// WiringKind optionally classifies the connection.
	WiringKind string `json:"wiring_kind,omitempty"`
}

// LifecycleCall is one recognized lifecycle method call.
type LifecycleCall struct {
	// Instance is the receiver of the call.
	Instance string `json:"instance"`

	// Method is the normalized lifecycle method.
	Method LifecycleMethod `json:"method"`

	// Location is where the call appears.
	Location Location `json:"location"`

	// Order is the zero-based position among all lifecycle calls in
	// the composition root, in source order. It is global across
	// instances so interleavings (e.g. reverse-order shutdown) are
	// preserved.
	Order int `json:"order"`
}

// CompositionRoot is the full extraction result for one entry function.
//
// It is immutable once returned by an extractor and owned by the caller
// until handed to the graph builder.
type CompositionRoot struct {
	// FilePath is the source file the root was extracted from.
	FilePath string `json:"file_path"`

	// FunctionName is the entry function ("main", "__main__" for a
	// Python script guard, "__module__" for top-level JS/TS code).
	FunctionName string `json:"function_name"`

	// Location is where the root begins.
	Location Location `json:"location"`

	// Instances are the declared object instances, in source order.
	Instances []InstanceInfo `json:"instances"`

	// Wiring are the recognized connection calls, in source order.
	Wiring []WiringInfo `json:"wiring"`

	// Lifecycle are the recognized lifecycle calls, in source order.
	Lifecycle []LifecycleCall `json:"lifecycle"`
}

// HasInstance reports whether an instance with the given name was
// declared in this root.
func (r *CompositionRoot) HasInstance(name string) bool {
	for i := range r.Instances {
		if r.Instances[i].Name == name {
			return true
		}
	}
	return false
}

// Instance returns the declared instance with the given name.
func (r *CompositionRoot) Instance(name string) (InstanceInfo, bool) {
	for i := range r.Instances {
		if r.Instances[i].Name == name {
			return r.Instances[i], true
		}
	}
	return InstanceInfo{}, false
}

// ValidationError describes an invalid field on an extraction result.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Validate checks structural invariants of the extraction result.
//
// Wiring endpoints are deliberately not checked against the instance
// set here: resolving (and dropping) dangling wiring is the graph
// builder's job.
func (r *CompositionRoot) Validate() error {
	if r.FilePath == "" {
		return &ValidationError{Field: "FilePath", Message: "must not be empty"}
	}
	if r.FunctionName == "" {
		return &ValidationError{Field: "FunctionName", Message: "must not be empty"}
	}
	for i := range r.Instances {
		if r.Instances[i].Name == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("Instances[%d].Name", i),
				Message: "must not be empty",
			}
		}
	}
	for i, lc := range r.Lifecycle {
		if lc.Order != i {
			return &ValidationError{
				Field:   fmt.Sprintf("Lifecycle[%d].Order", i),
				Message: fmt.Sprintf("expected %d, got %d", i, lc.Order),
			}
		}
	}
	return nil
}
