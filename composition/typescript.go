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
	"path/filepath"
	"strings"

	"github.com/AleutianAI/wiremap/syntax"
)

// TypeScriptExtractor extracts composition roots from TypeScript and
// JavaScript sources.
//
// Description:
//
//	One extractor covers the whole family; the grammar is chosen per
//	file (.tsx uses the TSX grammar, .js/.jsx/.mjs/.cjs use the
//	JavaScript grammar, everything else plain TypeScript). Recognizes
//	well-known root function names (main, createApp, bootstrap, ...),
//	marker-annotated functions and arrow functions, plus a
//	"__module__" pseudo-root for entry files (index.ts, main.ts, ...)
//	with meaningful top-level code. Instances come from
//	new-expressions and factory calls (createX/makeX/buildX/X.create).
//
// Thread Safety:
//
//	Safe for concurrent use.
type TypeScriptExtractor struct {
	opts       Options
	typescript *syntax.Adapter
	tsx        *syntax.Adapter
	javascript *syntax.Adapter
}

// NewTypeScriptExtractor creates a TypeScript/JavaScript extractor.
func NewTypeScriptExtractor(opts ...Option) *TypeScriptExtractor {
	o := newOptions(opts)
	adapterOpts := []syntax.Option{syntax.WithLogger(o.Logger)}
	if o.MaxFileSize > 0 {
		adapterOpts = append(adapterOpts, syntax.WithMaxFileSize(o.MaxFileSize))
	}
	ts, _ := syntax.NewAdapter(syntax.LangTypeScript, adapterOpts...)
	tsx, _ := syntax.NewAdapter(syntax.LangTSX, adapterOpts...)
	js, _ := syntax.NewAdapter(syntax.LangJavaScript, adapterOpts...)
	return &TypeScriptExtractor{opts: o, typescript: ts, tsx: tsx, javascript: js}
}

// LanguageID returns "typescript".
func (e *TypeScriptExtractor) LanguageID() string {
	return syntax.LangTypeScript
}

// Extensions returns the TypeScript and JavaScript file extensions.
func (e *TypeScriptExtractor) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

// Available reports whether the primary TypeScript grammar
// initialized. Per-file grammar failures surface from Extract as
// parse errors.
func (e *TypeScriptExtractor) Available() bool {
	return e.typescript != nil && e.typescript.Available()
}

// adapterFor picks the grammar matching a file's extension.
func (e *TypeScriptExtractor) adapterFor(filePath string) *syntax.Adapter {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".tsx":
		return e.tsx
	case ".js", ".jsx", ".mjs", ".cjs":
		return e.javascript
	default:
		return e.typescript
	}
}

// FindCompositionRoots returns qualifying root names in source order.
// Entry files with module-level instance creation additionally yield
// the "__module__" pseudo-root.
func (e *TypeScriptExtractor) FindCompositionRoots(ctx context.Context, filePath string) ([]string, error) {
	if !e.Available() {
		return nil, ErrExtractorUnavailable
	}

	tree, err := e.adapterFor(filePath).ParseFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var roots []string
	seen := make(map[string]bool)
	program := tree.Root()

	program.Walk(func(n syntax.Node) bool {
		name, fn := tsFunctionAt(n)
		if !fn.Valid() {
			return true
		}
		if name == "" || seen[name] {
			return false
		}
		if typescriptRootFunctions[name] || e.hasMarkerComment(n) {
			roots = append(roots, name)
			seen[name] = true
		}
		return false
	})

	if typescriptEntryFiles[strings.ToLower(filepath.Base(filePath))] && e.hasTopLevelCode(program) {
		roots = append(roots, ModuleRoot)
	}

	return roots, nil
}

// Extract extracts the composition root for the named function, arrow
// function, or module pseudo-root.
func (e *TypeScriptExtractor) Extract(ctx context.Context, filePath, functionName string) (*CompositionRoot, error) {
	if functionName == "" {
		functionName = DefaultFunctionName
	}
	if !e.Available() {
		return nil, ErrExtractorUnavailable
	}

	tree, err := e.adapterFor(filePath).ParseFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	program := tree.Root()

	var body syntax.Node
	loc := Location{FilePath: filePath, Line: 1, Column: 1}

	if functionName == ModuleRoot {
		body = program
	} else {
		fn := findTSFunction(program, functionName)
		if !fn.Valid() {
			return nil, fmt.Errorf("%w: %s in %s", ErrNoCompositionRoot, functionName, filePath)
		}
		body = fn.ChildByField("body")
		loc.Line, loc.Column = fn.StartLine(), fn.StartColumn()
	}

	if !body.Valid() || (body.Kind() != "statement_block" && body.Kind() != "program") {
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

// hasMarkerComment checks comments directly above a declaration for
// the root marker.
func (e *TypeScriptExtractor) hasMarkerComment(decl syntax.Node) bool {
	declLine := decl.StartLine()
	for sib := decl.PrevSibling(); sib.Valid(); sib = sib.PrevSibling() {
		if sib.Kind() != "comment" {
			return false
		}
		if declLine-sib.EndLine() > markerScanLines {
			return false
		}
		if strings.Contains(sib.Text(), e.opts.RootMarker) {
			return true
		}
	}
	return false
}

// hasTopLevelCode reports whether the module has meaningful top-level
// statements: expression statements, or declarations whose initializer
// involves a call or construction. Imports, exports, and comments do
// not count.
func (e *TypeScriptExtractor) hasTopLevelCode(program syntax.Node) bool {
	for _, stmt := range program.NamedChildren() {
		switch stmt.Kind() {
		case "import_statement", "export_statement", "comment":
			continue
		case "expression_statement":
			return true
		case "lexical_declaration", "variable_declaration":
			found := false
			stmt.Walk(func(n syntax.Node) bool {
				if found {
					return false
				}
				if kind := n.Kind(); kind == "new_expression" || kind == "call_expression" {
					found = true
					return false
				}
				return true
			})
			if found {
				return true
			}
		}
	}
	return false
}

// extractBody collects instances, wiring, and lifecycle calls from a
// function body or module in source order, descending into nested
// blocks (try/if/for bodies). Export wrappers need no special casing;
// the descent reaches the declaration inside them. Instances are
// gathered first so wiring and lifecycle matching sees every declared
// name regardless of statement order. A call matching both
// vocabularies (connect) records both a wiring and a lifecycle entry.
func (e *TypeScriptExtractor) extractBody(body syntax.Node, root *CompositionRoot) {
	body.Walk(func(n syntax.Node) bool {
		switch n.Kind() {
		case "lexical_declaration", "variable_declaration":
			for _, child := range n.NamedChildren() {
				if child.Kind() != "variable_declarator" {
					continue
				}
				if info, ok := e.parseDeclarator(child, root.FilePath); ok {
					root.Instances = append(root.Instances, info)
				}
			}
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
		call := tsUnwrapAwait(n.NamedChild(0))
		if call.Kind() != "call_expression" {
			return true
		}
		receiver, method := tsReceiverMethod(call)
		if receiver == "" || method == "" || !known[receiver] {
			return true
		}
		loc := Location{FilePath: root.FilePath, Line: call.StartLine(), Column: call.StartColumn()}

		if typescriptWiringMethods[method] {
			if target := resolveIdentifierTarget(call.ChildByField("arguments"), known); target != "" {
				root.Wiring = append(root.Wiring, WiringInfo{
					SourceInstance: receiver,
					TargetInstance: target,
					MethodName:     method,
					Location:       loc,
				})
			}
		}
		if lm, ok := typescriptLifecycleMethods[method]; ok {
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

// parseDeclarator classifies one variable declarator. Declarators
// initialized by a new-expression or a factory call become instances.
func (e *TypeScriptExtractor) parseDeclarator(declarator syntax.Node, filePath string) (InstanceInfo, bool) {
	name := declarator.ChildByField("name")
	if name.Kind() != "identifier" {
		return InstanceInfo{}, false
	}

	info := InstanceInfo{
		Name:         name.Text(),
		DeclaredType: tsAnnotatedType(declarator.ChildByField("type")),
		Location: Location{
			FilePath: filePath,
			Line:     declarator.StartLine(),
			Column:   declarator.StartColumn(),
		},
	}

	value := tsUnwrapAwait(declarator.ChildByField("value"))

	switch value.Kind() {
	case "new_expression":
		ctor := tsDottedName(value.ChildByField("constructor"))
		if ctor == "" {
			return InstanceInfo{}, false
		}
		info.CreationPattern = CreationDirect
		info.ActualType = lastDottedSegment(ctor)
		info.ConstructorArgs = argumentTexts(value.ChildByField("arguments"))
		return info, true

	case "call_expression":
		callee := tsDottedName(value.ChildByField("function"))
		if callee == "" {
			return InstanceInfo{}, false
		}
		info.ConstructorArgs = argumentTexts(value.ChildByField("arguments"))

		base := lastDottedSegment(callee)
		switch {
		case matchesAny(typescriptFactoryPatterns, callee):
			info.CreationPattern = CreationFactory
			info.FactoryName = callee
		case isUpperLeading(base):
			info.CreationPattern = CreationDirect
			info.ActualType = base
		default:
			return InstanceInfo{}, false
		}
		return info, true
	}

	return InstanceInfo{}, false
}

// tsFunctionAt recognizes a named function at a node: a function
// declaration, or a const binding to an arrow function or function
// expression. Returns the name and the function node.
func tsFunctionAt(n syntax.Node) (string, syntax.Node) {
	switch n.Kind() {
	case "function_declaration":
		return n.ChildByField("name").Text(), n

	case "lexical_declaration", "variable_declaration":
		for _, child := range n.NamedChildren() {
			if child.Kind() != "variable_declarator" {
				continue
			}
			value := child.ChildByField("value")
			switch value.Kind() {
			case "arrow_function", "function_expression", "function":
				return child.ChildByField("name").Text(), value
			}
		}
	}
	return "", syntax.Node{}
}

// findTSFunction locates a named function anywhere in the program.
func findTSFunction(program syntax.Node, name string) syntax.Node {
	var found syntax.Node
	program.Walk(func(n syntax.Node) bool {
		if found.Valid() {
			return false
		}
		if fnName, fn := tsFunctionAt(n); fn.Valid() && fnName == name {
			found = fn
			return false
		}
		return true
	})
	return found
}

// tsReceiverMethod splits a method call into its receiver variable and
// method name. Only simple receiver.method(...) shapes qualify.
func tsReceiverMethod(call syntax.Node) (receiver, method string) {
	fn := call.ChildByField("function")
	if fn.Kind() != "member_expression" {
		return "", ""
	}

	object := fn.ChildByField("object")
	if object.Kind() != "identifier" {
		return "", ""
	}

	property := fn.ChildByField("property")
	if !property.Valid() {
		return "", ""
	}

	return object.Text(), property.Text()
}

// tsDottedName flattens an identifier or member expression to its
// dotted path text: Registry.create -> "Registry.create".
func tsDottedName(n syntax.Node) string {
	switch n.Kind() {
	case "identifier":
		return n.Text()
	case "member_expression":
		object := tsDottedName(n.ChildByField("object"))
		property := n.ChildByField("property").Text()
		if object == "" || property == "" {
			return ""
		}
		return object + "." + property
	}
	return ""
}

// tsUnwrapAwait strips one await wrapper from an expression.
func tsUnwrapAwait(n syntax.Node) syntax.Node {
	if n.Kind() == "await_expression" {
		return n.NamedChild(0)
	}
	return n
}

// tsAnnotatedType extracts the bare type name from a type annotation.
func tsAnnotatedType(annotation syntax.Node) string {
	if !annotation.Valid() {
		return ""
	}
	return annotation.NamedChild(0).Text()
}

// lastDottedSegment returns the final segment of a dotted path.
func lastDottedSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
