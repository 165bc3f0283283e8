// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package composition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/wiremap/syntax"
)

// PythonExtractor extracts composition roots from Python sources.
//
// Description:
//
//	Recognizes well-known root function names (main, create_app, ...),
//	functions carrying the composition-root decorator, functions whose
//	docstring or preceding comment holds the marker, plus the
//	"__main__" pseudo-root for the `if __name__ == "__main__"` guard
//	body. Instances come from assignments whose right-hand side is a
//	factory call (create_/make_/build_/..._factory) or a direct class
//	construction.
//
// Thread Safety:
//
//	Safe for concurrent use.
type PythonExtractor struct {
	opts    Options
	adapter *syntax.Adapter
}

// NewPythonExtractor creates a Python extractor.
func NewPythonExtractor(opts ...Option) *PythonExtractor {
	o := newOptions(opts)
	adapterOpts := []syntax.Option{syntax.WithLogger(o.Logger)}
	if o.MaxFileSize > 0 {
		adapterOpts = append(adapterOpts, syntax.WithMaxFileSize(o.MaxFileSize))
	}
	adapter, _ := syntax.NewAdapter(syntax.LangPython, adapterOpts...)
	return &PythonExtractor{opts: o, adapter: adapter}
}

// LanguageID returns "python".
func (e *PythonExtractor) LanguageID() string {
	return syntax.LangPython
}

// Extensions returns the Python file extensions.
func (e *PythonExtractor) Extensions() []string {
	return []string{".py", ".pyi"}
}

// Available reports whether the Python grammar initialized.
func (e *PythonExtractor) Available() bool {
	return e.adapter != nil && e.adapter.Available()
}

// FindCompositionRoots returns qualifying root names in source order.
// Function roots come first, then the "__main__" pseudo-root when the
// script guard exists.
func (e *PythonExtractor) FindCompositionRoots(ctx context.Context, filePath string) ([]string, error) {
	if !e.Available() {
		return nil, ErrExtractorUnavailable
	}

	tree, err := e.adapter.ParseFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var roots []string
	seen := make(map[string]bool)
	module := tree.Root()

	module.Walk(func(n syntax.Node) bool {
		if n.Kind() != "function_definition" {
			return true
		}
		name := n.ChildByField("name").Text()
		if name == "" || seen[name] {
			return false
		}
		if pythonRootFunctions[name] || e.hasRootDecorator(n) || e.hasMarkerComment(n) || e.hasMarkerDocstring(n) {
			roots = append(roots, name)
			seen[name] = true
		}
		return false
	})

	if guard := findMainGuard(module); guard.Valid() {
		roots = append(roots, PythonScriptRoot)
	}

	return roots, nil
}

// Extract extracts the composition root for the named function or
// pseudo-root.
func (e *PythonExtractor) Extract(ctx context.Context, filePath, functionName string) (*CompositionRoot, error) {
	if functionName == "" {
		functionName = DefaultFunctionName
	}
	if !e.Available() {
		return nil, ErrExtractorUnavailable
	}

	tree, err := e.adapter.ParseFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	module := tree.Root()

	var body syntax.Node
	loc := Location{FilePath: filePath, Line: 1, Column: 1}

	switch functionName {
	case PythonScriptRoot:
		guard := findMainGuard(module)
		if !guard.Valid() {
			return nil, fmt.Errorf("%w: no __main__ guard in %s", ErrNoCompositionRoot, filePath)
		}
		body = guard.ChildByField("consequence")
		loc.Line, loc.Column = guard.StartLine(), guard.StartColumn()

	default:
		fn := findPythonFunction(module, functionName)
		if !fn.Valid() {
			return nil, fmt.Errorf("%w: %s in %s", ErrNoCompositionRoot, functionName, filePath)
		}
		body = fn.ChildByField("body")
		loc.Line, loc.Column = fn.StartLine(), fn.StartColumn()
	}

	if !body.Valid() {
		return nil, fmt.Errorf("%w: %s in %s has no body", ErrNoCompositionRoot, functionName, filePath)
	}

	root := &CompositionRoot{
		FilePath:     filePath,
		FunctionName: functionName,
		Location:     loc,
	}

	e.extractBody(body, root)

	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("extracting %s: %w", functionName, err)
	}

	e.opts.Logger.Debug("extracted composition root",
		slog.String("file", filePath),
		slog.String("function", functionName),
		slog.Int("instances", len(root.Instances)),
		slog.Int("wiring", len(root.Wiring)),
		slog.Int("lifecycle", len(root.Lifecycle)),
	)

	return root, nil
}

// hasRootDecorator checks whether a function definition is wrapped in
// a decorated_definition carrying the composition-root decorator.
// Matches bare, called, and attribute forms of the decorator name.
func (e *PythonExtractor) hasRootDecorator(fn syntax.Node) bool {
	parent := fn.Parent()
	if parent.Kind() != "decorated_definition" {
		return false
	}
	for _, child := range parent.NamedChildren() {
		if child.Kind() != "decorator" {
			continue
		}
		text := strings.TrimPrefix(strings.TrimSpace(child.Text()), "@")
		if name, _, found := strings.Cut(text, "("); found {
			text = name
		}
		if text == e.opts.RootDecorator || strings.HasSuffix(text, "."+e.opts.RootDecorator) {
			return true
		}
	}
	return false
}

// hasMarkerComment checks comments directly above a function (or its
// decorator wrapper) for the root marker.
func (e *PythonExtractor) hasMarkerComment(fn syntax.Node) bool {
	anchor := fn
	if parent := fn.Parent(); parent.Kind() == "decorated_definition" {
		anchor = parent
	}
	fnLine := anchor.StartLine()
	for sib := anchor.PrevSibling(); sib.Valid(); sib = sib.PrevSibling() {
		if sib.Kind() != "comment" {
			return false
		}
		if fnLine-sib.EndLine() > markerScanLines {
			return false
		}
		if strings.Contains(sib.Text(), e.opts.RootMarker) {
			return true
		}
	}
	return false
}

// hasMarkerDocstring checks the function's docstring (a string
// expression leading the body) for the root marker.
func (e *PythonExtractor) hasMarkerDocstring(fn syntax.Node) bool {
	first := fn.ChildByField("body").NamedChild(0)
	if first.Kind() != "expression_statement" {
		return false
	}
	str := first.NamedChild(0)
	return str.Kind() == "string" && strings.Contains(str.Text(), e.opts.RootMarker)
}

// extractBody collects instances, wiring, and lifecycle calls from a
// block in source order, descending into nested blocks (try/if/for/
// with bodies). Instances are gathered first so wiring and lifecycle
// matching sees every assigned name regardless of statement order. A
// call matching both vocabularies (connect) records both a wiring and
// a lifecycle entry.
func (e *PythonExtractor) extractBody(body syntax.Node, root *CompositionRoot) {
	body.Walk(func(n syntax.Node) bool {
		if n.Kind() != "expression_statement" {
			return true
		}
		expr := n.NamedChild(0)
		if expr.Kind() != "assignment" {
			return true
		}
		if info, ok := e.parseAssignment(expr, root.FilePath); ok {
			root.Instances = append(root.Instances, info)
		}
		return true
	})

	known := make(map[string]bool, len(root.Instances))
	for _, inst := range root.Instances {
		known[inst.Name] = true
	}

	order := 0
	body.Walk(func(n syntax.Node) bool {
		if n.Kind() != "expression_statement" {
			return true
		}
		expr := n.NamedChild(0)
		if expr.Kind() != "call" {
			return true
		}
		receiver, method := pythonReceiverMethod(expr)
		if receiver == "" || method == "" || !known[receiver] {
			return true
		}
		loc := Location{FilePath: root.FilePath, Line: expr.StartLine(), Column: expr.StartColumn()}

		if pythonWiringMethods[method] {
			if target := resolveIdentifierTarget(expr.ChildByField("arguments"), known); target != "" {
				root.Wiring = append(root.Wiring, WiringInfo{
					SourceInstance: receiver,
					TargetInstance: target,
					MethodName:     method,
					Location:       loc,
				})
			}
		}
		if lm, ok := pythonLifecycleMethods[method]; ok {
			root.Lifecycle = append(root.Lifecycle, LifecycleCall{
				Instance: receiver,
				Method:   lm,
				Location: loc,
				Order:    order,
			})
			order++
		}
		return true
	})
}

// parseAssignment classifies one assignment statement. Only
// single-target assignments whose right-hand side is a factory call or
// a direct class construction become instances.
func (e *PythonExtractor) parseAssignment(assign syntax.Node, filePath string) (InstanceInfo, bool) {
	left := assign.ChildByField("left")
	if left.Kind() != "identifier" {
		return InstanceInfo{}, false
	}

	right := assign.ChildByField("right")
	if right.Kind() != "call" {
		return InstanceInfo{}, false
	}

	callee := pythonCalleeName(right.ChildByField("function"))
	if callee == "" {
		return InstanceInfo{}, false
	}

	info := InstanceInfo{
		Name:         left.Text(),
		DeclaredType: assign.ChildByField("type").Text(),
		Location: Location{
			FilePath: filePath,
			Line:     assign.StartLine(),
			Column:   assign.StartColumn(),
		},
		ConstructorArgs: argumentTexts(right.ChildByField("arguments")),
	}

	switch {
	case matchesAny(snakeFactoryPatterns, callee):
		info.CreationPattern = CreationFactory
		info.FactoryName = callee
	case isUpperLeading(callee):
		info.CreationPattern = CreationDirect
		info.ActualType = callee
	default:
		return InstanceInfo{}, false
	}

	return info, true
}

// pythonReceiverMethod splits a method call into its receiver variable
// and method name. Only simple receiver.method(...) shapes qualify.
func pythonReceiverMethod(call syntax.Node) (receiver, method string) {
	fn := call.ChildByField("function")
	if fn.Kind() != "attribute" {
		return "", ""
	}

	object := fn.ChildByField("object")
	if object.Kind() != "identifier" {
		return "", ""
	}

	attr := fn.ChildByField("attribute")
	if !attr.Valid() {
		return "", ""
	}

	return object.Text(), attr.Text()
}

// pythonCalleeName resolves a call's function expression to a bare
// name: identifier directly, or the final attribute of a dotted path.
func pythonCalleeName(fn syntax.Node) string {
	switch fn.Kind() {
	case "identifier":
		return fn.Text()
	case "attribute":
		return fn.ChildByField("attribute").Text()
	}
	return ""
}

// resolveIdentifierTarget returns the first argument that is a known
// instance identifier.
func resolveIdentifierTarget(args syntax.Node, known map[string]bool) string {
	for _, arg := range args.NamedChildren() {
		if arg.Kind() == "identifier" && known[arg.Text()] {
			return arg.Text()
		}
	}
	return ""
}

// findPythonFunction locates a function_definition by name anywhere in
// the module.
func findPythonFunction(module syntax.Node, name string) syntax.Node {
	var found syntax.Node
	module.Walk(func(n syntax.Node) bool {
		if found.Valid() {
			return false
		}
		if n.Kind() == "function_definition" && n.ChildByField("name").Text() == name {
			found = n
			return false
		}
		return true
	})
	return found
}

// findMainGuard locates the top-level `if __name__ == "__main__":`
// statement.
func findMainGuard(module syntax.Node) syntax.Node {
	for _, stmt := range module.NamedChildren() {
		if stmt.Kind() != "if_statement" {
			continue
		}
		cond := stmt.ChildByField("condition")
		text := cond.Text()
		if strings.Contains(text, "__name__") && strings.Contains(text, "__main__") {
			return stmt
		}
	}
	return syntax.Node{}
}
