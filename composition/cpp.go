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

// CPPExtractor extracts composition roots from C++ sources.
//
// Description:
//
//	Recognizes main() and marker-annotated functions as composition
//	roots. Instances come from declarations whose initializer is a
//	smart-pointer factory (make_unique/make_shared), a factory call
//	(createX/makeX/buildX/...Factory), direct construction, or
//	new-expression. Wiring and lifecycle calls are matched against the
//	C-family vocabularies on receiver.method(...) statements.
//
// Thread Safety:
//
//	Safe for concurrent use; extraction is stateless apart from the
//	memoized grammar availability.
type CPPExtractor struct {
	opts    Options
	adapter *syntax.Adapter
}

// NewCPPExtractor creates a C++ extractor.
func NewCPPExtractor(opts ...Option) *CPPExtractor {
	o := newOptions(opts)
	adapterOpts := []syntax.Option{syntax.WithLogger(o.Logger)}
	if o.MaxFileSize > 0 {
		adapterOpts = append(adapterOpts, syntax.WithMaxFileSize(o.MaxFileSize))
	}
	// The language id is a package constant; construction cannot fail.
	adapter, _ := syntax.NewAdapter(syntax.LangCPP, adapterOpts...)
	return &CPPExtractor{opts: o, adapter: adapter}
}

// LanguageID returns "cpp".
func (e *CPPExtractor) LanguageID() string {
	return syntax.LangCPP
}

// Extensions returns the C++ file extensions.
func (e *CPPExtractor) Extensions() []string {
	return []string{".cpp", ".cc", ".cxx", ".hpp", ".h", ".hxx"}
}

// Available reports whether the C++ grammar initialized.
func (e *CPPExtractor) Available() bool {
	return e.adapter != nil && e.adapter.Available()
}

// FindCompositionRoots returns qualifying function names in source
// order: main() always qualifies; any other function qualifies when a
// marker comment precedes it.
func (e *CPPExtractor) FindCompositionRoots(ctx context.Context, filePath string) ([]string, error) {
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

	tree.Root().Walk(func(n syntax.Node) bool {
		if n.Kind() != "function_definition" {
			return true
		}
		name := cppFunctionName(n)
		if name == "" || seen[name] {
			return false
		}
		if name == "main" || e.hasMarkerComment(n) {
			roots = append(roots, name)
			seen[name] = true
		}
		return false
	})

	return roots, nil
}

// Extract extracts the composition root for the named function.
func (e *CPPExtractor) Extract(ctx context.Context, filePath, functionName string) (*CompositionRoot, error) {
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

	fn := e.findFunction(tree.Root(), functionName)
	if !fn.Valid() {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoCompositionRoot, functionName, filePath)
	}

	body := fn.ChildByField("body")
	if !body.Valid() {
		return nil, fmt.Errorf("%w: %s in %s has no body", ErrNoCompositionRoot, functionName, filePath)
	}

	root := &CompositionRoot{
		FilePath:     filePath,
		FunctionName: functionName,
		Location: Location{
			FilePath: filePath,
			Line:     fn.StartLine(),
			Column:   fn.StartColumn(),
		},
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

// findFunction locates a function_definition by name anywhere in the
// tree.
func (e *CPPExtractor) findFunction(root syntax.Node, name string) syntax.Node {
	var found syntax.Node
	root.Walk(func(n syntax.Node) bool {
		if found.Valid() {
			return false
		}
		if n.Kind() == "function_definition" && cppFunctionName(n) == name {
			found = n
			return false
		}
		return true
	})
	return found
}

// hasMarkerComment checks comments directly above a function for the
// root marker, scanning at most markerScanLines lines back.
func (e *CPPExtractor) hasMarkerComment(fn syntax.Node) bool {
	fnLine := fn.StartLine()
	for sib := fn.PrevSibling(); sib.Valid(); sib = sib.PrevSibling() {
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

// extractBody collects instances, wiring, and lifecycle calls from a
// function body in source order, descending into nested blocks
// (if/for/try bodies). Instances are gathered first so wiring and
// lifecycle matching sees every declared name regardless of statement
// order. A call matching both vocabularies (connect) records both a
// wiring and a lifecycle entry.
func (e *CPPExtractor) extractBody(body syntax.Node, root *CompositionRoot) {
	body.Walk(func(n syntax.Node) bool {
		if n.Kind() != "declaration" {
			return true
		}
		if info, ok := e.parseDeclaration(n, root.FilePath); ok {
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
		call := n.NamedChild(0)
		if call.Kind() != "call_expression" {
			return true
		}
		receiver, method := cppReceiverMethod(call)
		if receiver == "" || method == "" || !known[receiver] {
			return true
		}
		loc := Location{FilePath: root.FilePath, Line: call.StartLine(), Column: call.StartColumn()}

		if baseWiringMethods[method] {
			if target := e.resolveWiringTarget(call, known); target != "" {
				root.Wiring = append(root.Wiring, WiringInfo{
					SourceInstance: receiver,
					TargetInstance: target,
					MethodName:     method,
					Location:       loc,
				})
			}
		}
		if lm, ok := baseLifecycleMethods[method]; ok {
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

// parseDeclaration classifies one declaration statement. Declarations
// that resolve to neither a class type nor a factory call are skipped.
func (e *CPPExtractor) parseDeclaration(decl syntax.Node, filePath string) (InstanceInfo, bool) {
	typeNode := decl.ChildByField("type")
	declaredType := typeNode.Text()

	declarator := decl.ChildByField("declarator")
	if !declarator.Valid() {
		return InstanceInfo{}, false
	}

	loc := Location{FilePath: filePath, Line: decl.StartLine(), Column: decl.StartColumn()}

	switch declarator.Kind() {
	case "init_declarator":
		name := cppDeclaratorName(declarator.ChildByField("declarator"))
		if name == "" {
			return InstanceInfo{}, false
		}
		return e.classifyInitializer(name, declaredType, declarator.ChildByField("value"), loc)

	case "identifier":
		// Plain stack declaration: GeneratorModule gen;
		if typeNode.Kind() == "type_identifier" && isUpperLeading(declaredType) {
			return InstanceInfo{
				Name:            declarator.Text(),
				DeclaredType:    declaredType,
				ActualType:      declaredType,
				Location:        loc,
				CreationPattern: CreationDirect,
			}, true
		}
	}

	return InstanceInfo{}, false
}

// classifyInitializer classifies the right-hand side of an
// init_declarator.
func (e *CPPExtractor) classifyInitializer(name, declaredType string, value syntax.Node, loc Location) (InstanceInfo, bool) {
	info := InstanceInfo{
		Name:         name,
		DeclaredType: declaredType,
		Location:     loc,
	}

	switch value.Kind() {
	case "call_expression":
		callee, templateType := cppCallee(value.ChildByField("function"))
		if callee == "" {
			return InstanceInfo{}, false
		}
		info.ConstructorArgs = argumentTexts(value.ChildByField("arguments"))

		switch {
		case callee == "make_unique":
			info.CreationPattern = CreationSmartPointerUnique
			info.IsPointer = true
			info.PointerType = "unique_ptr"
			info.ActualType = templateType
		case callee == "make_shared":
			info.CreationPattern = CreationSmartPointerShared
			info.IsPointer = true
			info.PointerType = "shared_ptr"
			info.ActualType = templateType
		case matchesAny(camelFactoryPatterns, callee):
			// Factories conventionally return unique ownership.
			info.CreationPattern = CreationFactory
			info.FactoryName = callee
			info.IsPointer = true
			info.PointerType = "unique_ptr"
		case isUpperLeading(callee):
			info.CreationPattern = CreationDirect
			info.ActualType = callee
		default:
			return InstanceInfo{}, false
		}
		return info, true

	case "new_expression":
		newType := value.ChildByField("type").Text()
		if newType == "" {
			return InstanceInfo{}, false
		}
		info.CreationPattern = CreationDirect
		info.ActualType = newType
		info.IsPointer = true
		info.PointerType = "raw"
		info.ConstructorArgs = argumentTexts(value.ChildByField("arguments"))
		return info, true

	case "initializer_list":
		// Braced direct initialization: GeneratorModule gen{...};
		if isUpperLeading(declaredType) {
			info.CreationPattern = CreationDirect
			info.ActualType = declaredType
			info.ConstructorArgs = argumentTexts(value)
			return info, true
		}
	}

	return InstanceInfo{}, false
}

// resolveWiringTarget returns the first call argument that resolves to
// a known instance name, unwrapping one level of accessor call
// (target.get()), address-of, or dereference.
func (e *CPPExtractor) resolveWiringTarget(call syntax.Node, known map[string]bool) string {
	args := call.ChildByField("arguments")
	for _, arg := range args.NamedChildren() {
		if name := cppUnwrapArgument(arg); name != "" && known[name] {
			return name
		}
	}
	return ""
}

// cppUnwrapArgument reduces an argument expression to a candidate
// instance name.
func cppUnwrapArgument(arg syntax.Node) string {
	switch arg.Kind() {
	case "identifier":
		return arg.Text()

	case "call_expression":
		// Accessor form: target.get() / target->get()
		fn := arg.ChildByField("function")
		if fn.Kind() != "field_expression" {
			return ""
		}
		inner := fn.ChildByField("argument")
		if inner.Kind() == "identifier" {
			return inner.Text()
		}

	case "pointer_expression":
		// Address-of or dereference: &target / *target
		inner := arg.ChildByField("argument")
		if inner.Kind() == "identifier" {
			return inner.Text()
		}
	}
	return ""
}

// cppReceiverMethod splits a call on a member function into its
// receiver variable and method name. Returns empty strings when the
// call is not of the receiver.method(...) shape.
func cppReceiverMethod(call syntax.Node) (receiver, method string) {
	fn := call.ChildByField("function")
	if fn.Kind() != "field_expression" {
		return "", ""
	}

	arg := fn.ChildByField("argument")
	if arg.Kind() != "identifier" {
		return "", ""
	}

	field := fn.ChildByField("field")
	if !field.Valid() {
		return "", ""
	}

	return arg.Text(), field.Text()
}

// cppCallee resolves the callee of a call_expression to a base name
// and, for template functions, the first template type argument.
// Qualifiers (std::) are stripped.
func cppCallee(fn syntax.Node) (name, templateType string) {
	switch fn.Kind() {
	case "identifier":
		return fn.Text(), ""

	case "qualified_identifier":
		inner := fn.ChildByField("name")
		if inner.Valid() {
			return cppCallee(inner)
		}

	case "template_function":
		base := fn.ChildByField("name")
		if !base.Valid() {
			return "", ""
		}
		return base.Text(), cppTemplateType(fn.ChildByField("arguments"))

	case "field_expression":
		// Member factory: registry.createModule(...)
		field := fn.ChildByField("field")
		if field.Valid() {
			return field.Text(), ""
		}
	}
	return "", ""
}

// cppTemplateType extracts the first type from a template argument
// list: make_unique<GeneratorModule>(...) -> "GeneratorModule".
func cppTemplateType(args syntax.Node) string {
	if !args.Valid() {
		return ""
	}
	first := args.NamedChild(0)
	if !first.Valid() {
		return ""
	}
	if first.Kind() == "type_descriptor" {
		if t := first.ChildByField("type"); t.Valid() {
			return t.Text()
		}
	}
	return first.Text()
}

// cppDeclaratorName unwraps pointer/reference declarators down to the
// declared identifier.
func cppDeclaratorName(declarator syntax.Node) string {
	for declarator.Valid() {
		switch declarator.Kind() {
		case "identifier":
			return declarator.Text()
		case "pointer_declarator", "reference_declarator":
			declarator = declarator.ChildByField("declarator")
		default:
			return ""
		}
	}
	return ""
}

// cppFunctionName resolves the name of a function_definition,
// unwrapping declarator nesting and qualified names.
func cppFunctionName(fn syntax.Node) string {
	decl := fn.ChildByField("declarator")
	for decl.Valid() {
		switch decl.Kind() {
		case "function_declarator", "pointer_declarator", "reference_declarator":
			decl = decl.ChildByField("declarator")
		case "identifier", "field_identifier":
			return decl.Text()
		case "qualified_identifier":
			inner := decl.ChildByField("name")
			if !inner.Valid() {
				return ""
			}
			decl = inner
		default:
			return ""
		}
	}
	return ""
}

// argumentTexts returns the source text of each named child of an
// argument list.
func argumentTexts(args syntax.Node) []string {
	children := args.NamedChildren()
	if len(children) == 0 {
		return nil
	}
	texts := make([]string, 0, len(children))
	for _, child := range children {
		texts = append(texts, child.Text())
	}
	return texts
}
