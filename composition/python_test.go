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
	"errors"
	"testing"
)

// Test data: three-stage pipeline wired in main.
const pythonPipelineSource = `def main():
    generator = create_generator(100)
    stage = FilterModule(0.5)
    printer = PrinterModule()

    generator.set_next(stage)
    stage.set_next(printer)

    printer.start()
    stage.start()
    generator.start()

    generator.stop()
    stage.stop()
    printer.stop()
`

func TestPythonExtractor_Extract_ThreeStagePipeline(t *testing.T) {
	path := writeSource(t, "pipeline.py", pythonPipelineSource)
	extractor := NewPythonExtractor()

	root, err := extractor.Extract(context.Background(), path, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(root.Instances) != 3 {
		t.Fatalf("expected 3 instances, got %d: %+v", len(root.Instances), root.Instances)
	}

	generator := root.Instances[0]
	if generator.Name != "generator" {
		t.Errorf("expected instance 'generator', got %q", generator.Name)
	}
	if generator.CreationPattern != CreationFactory {
		t.Errorf("expected factory pattern, got %v", generator.CreationPattern)
	}
	if generator.FactoryName != "create_generator" {
		t.Errorf("expected factory 'create_generator', got %q", generator.FactoryName)
	}
	if len(generator.ConstructorArgs) != 1 || generator.ConstructorArgs[0] != "100" {
		t.Errorf("expected constructor args [100], got %v", generator.ConstructorArgs)
	}
	if generator.Location.Line != 2 {
		t.Errorf("expected declaration on line 2, got %d", generator.Location.Line)
	}

	stage := root.Instances[1]
	if stage.CreationPattern != CreationDirect || stage.ActualType != "FilterModule" {
		t.Errorf("expected direct FilterModule, got %+v", stage)
	}

	if len(root.Wiring) != 2 {
		t.Fatalf("expected 2 wiring calls, got %d: %+v", len(root.Wiring), root.Wiring)
	}
	if root.Wiring[0].SourceInstance != "generator" || root.Wiring[0].TargetInstance != "stage" {
		t.Errorf("expected generator->stage, got %+v", root.Wiring[0])
	}
	if root.Wiring[1].SourceInstance != "stage" || root.Wiring[1].TargetInstance != "printer" {
		t.Errorf("expected stage->printer, got %+v", root.Wiring[1])
	}

	if len(root.Lifecycle) != 6 {
		t.Fatalf("expected 6 lifecycle calls, got %d", len(root.Lifecycle))
	}
	if root.Lifecycle[0].Instance != "printer" || root.Lifecycle[0].Method != LifecycleStart {
		t.Errorf("expected printer start first, got %+v", root.Lifecycle[0])
	}
	if root.Lifecycle[5].Instance != "printer" || root.Lifecycle[5].Method != LifecycleStop {
		t.Errorf("expected printer stop last, got %+v", root.Lifecycle[5])
	}
	for i, lc := range root.Lifecycle {
		if lc.Order != i {
			t.Errorf("lifecycle %d: expected order %d, got %d", i, i, lc.Order)
		}
	}
}

func TestPythonExtractor_Extract_TypeAnnotation(t *testing.T) {
	source := `def main():
    gen: GeneratorModule = create_generator()
    gen.run()
`
	path := writeSource(t, "annotated.py", source)
	extractor := NewPythonExtractor()

	root, err := extractor.Extract(context.Background(), path, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(root.Instances))
	}

	gen := root.Instances[0]
	if gen.DeclaredType != "GeneratorModule" {
		t.Errorf("expected declared type 'GeneratorModule', got %q", gen.DeclaredType)
	}
	if gen.CreationPattern != CreationFactory {
		t.Errorf("expected factory pattern, got %v", gen.CreationPattern)
	}

	// run normalizes to start in the Python vocabulary.
	if len(root.Lifecycle) != 1 || root.Lifecycle[0].Method != LifecycleStart {
		t.Fatalf("expected one start call, got %+v", root.Lifecycle)
	}
}

func TestPythonExtractor_Extract_ScriptGuard(t *testing.T) {
	source := `def helper():
    pass

if __name__ == "__main__":
    gen = create_generator()
    printer = PrinterModule()
    gen.set_next(printer)
    gen.run()
`
	path := writeSource(t, "script.py", source)
	extractor := NewPythonExtractor()

	root, err := extractor.Extract(context.Background(), path, PythonScriptRoot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if root.FunctionName != PythonScriptRoot {
		t.Errorf("expected function %q, got %q", PythonScriptRoot, root.FunctionName)
	}
	if root.Location.Line != 4 {
		t.Errorf("expected root at line 4, got %d", root.Location.Line)
	}
	if len(root.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d: %+v", len(root.Instances), root.Instances)
	}
	if len(root.Wiring) != 1 {
		t.Fatalf("expected 1 wiring call, got %d", len(root.Wiring))
	}
	if len(root.Lifecycle) != 1 || root.Lifecycle[0].Method != LifecycleStart {
		t.Fatalf("expected one start call, got %+v", root.Lifecycle)
	}
}

func TestPythonExtractor_Extract_ScriptGuardMissing(t *testing.T) {
	path := writeSource(t, "noguard.py", "def main():\n    pass\n")
	extractor := NewPythonExtractor()

	_, err := extractor.Extract(context.Background(), path, PythonScriptRoot)
	if !errors.Is(err, ErrNoCompositionRoot) {
		t.Fatalf("expected ErrNoCompositionRoot, got %v", err)
	}
}

func TestPythonExtractor_ModuleLevelNotRoot(t *testing.T) {
	source := `import os

app = create_app()
db = DatabaseClient()
app.register(db)
app.run()
`
	path := writeSource(t, "module.py", source)
	extractor := NewPythonExtractor()

	// Module-level instance creation alone does not qualify; only
	// functions and the __main__ guard can be roots in Python.
	roots, err := extractor.FindCompositionRoots(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 0 {
		t.Fatalf("expected no roots for module-level code, got %v", roots)
	}

	if _, err := extractor.Extract(context.Background(), path, ModuleRoot); !errors.Is(err, ErrNoCompositionRoot) {
		t.Fatalf("expected ErrNoCompositionRoot, got %v", err)
	}
}

func TestPythonExtractor_FindCompositionRoots(t *testing.T) {
	source := `def main():
    gen = create_generator()

@composition_root
def build_pipeline():
    gen = create_generator()

def helper():
    pass

gen = create_generator()

if __name__ == "__main__":
    main()
`
	path := writeSource(t, "roots.py", source)
	extractor := NewPythonExtractor()

	roots, err := extractor.FindCompositionRoots(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"main", "build_pipeline", PythonScriptRoot}
	if len(roots) != len(want) {
		t.Fatalf("expected roots %v, got %v", want, roots)
	}
	for i, name := range want {
		if roots[i] != name {
			t.Errorf("root %d: expected %q, got %q", i, name, roots[i])
		}
	}
}

func TestPythonExtractor_DecoratorForms(t *testing.T) {
	tests := []struct {
		name      string
		decorator string
	}{
		{"bare", "@composition_root"},
		{"called", "@composition_root()"},
		{"dotted", "@app.composition_root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := tt.decorator + "\ndef wire_services():\n    svc = create_service()\n"
			path := writeSource(t, "decorated.py", source)
			extractor := NewPythonExtractor()

			roots, err := extractor.FindCompositionRoots(context.Background(), path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(roots) != 1 || roots[0] != "wire_services" {
				t.Errorf("expected [wire_services], got %v", roots)
			}
		})
	}
}

func TestPythonExtractor_MarkerComment(t *testing.T) {
	source := `# @composition-root
def assemble():
    gen = create_generator()
`
	path := writeSource(t, "marked.py", source)
	extractor := NewPythonExtractor()

	roots, err := extractor.FindCompositionRoots(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 1 || roots[0] != "assemble" {
		t.Errorf("expected [assemble], got %v", roots)
	}
}

func TestPythonExtractor_MarkerDocstring(t *testing.T) {
	source := `def assemble():
    """Wire the pipeline. @composition-root"""
    gen = create_generator()

def plain():
    """Just a helper."""
    pass
`
	path := writeSource(t, "docstring.py", source)
	extractor := NewPythonExtractor()

	roots, err := extractor.FindCompositionRoots(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 1 || roots[0] != "assemble" {
		t.Errorf("expected [assemble], got %v", roots)
	}
}

func TestPythonExtractor_Extract_NestedBlocks(t *testing.T) {
	source := `def main():
    source = create_source()
    try:
        engine = create_engine("spec.yaml")
        engine.set_source(source)
        engine.start()
    except RuntimeError:
        return
`
	path := writeSource(t, "nested.py", source)
	extractor := NewPythonExtractor()

	root, err := extractor.Extract(context.Background(), path, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Assignments and calls inside a try block count the same as
	// top-level ones.
	if len(root.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d: %+v", len(root.Instances), root.Instances)
	}
	if root.Instances[1].Name != "engine" || root.Instances[1].FactoryName != "create_engine" {
		t.Errorf("expected nested 'engine' instance, got %+v", root.Instances[1])
	}
	if len(root.Wiring) != 1 {
		t.Fatalf("expected 1 wiring call, got %d: %+v", len(root.Wiring), root.Wiring)
	}
	if root.Wiring[0].SourceInstance != "engine" || root.Wiring[0].TargetInstance != "source" {
		t.Errorf("expected engine->source, got %+v", root.Wiring[0])
	}
	if len(root.Lifecycle) != 1 || root.Lifecycle[0].Method != LifecycleStart {
		t.Fatalf("expected one start call, got %+v", root.Lifecycle)
	}
}

func TestPythonExtractor_Extract_ConnectRecordsWiringAndLifecycle(t *testing.T) {
	source := `def main():
    source = create_source()
    sink = create_sink()
    source.connect(sink)
`
	path := writeSource(t, "connect.py", source)
	extractor := NewPythonExtractor()

	root, err := extractor.Extract(context.Background(), path, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// connect sits in both vocabularies and records both entries.
	if len(root.Wiring) != 1 {
		t.Fatalf("expected 1 wiring call, got %d: %+v", len(root.Wiring), root.Wiring)
	}
	if root.Wiring[0].SourceInstance != "source" || root.Wiring[0].TargetInstance != "sink" {
		t.Errorf("expected source->sink, got %+v", root.Wiring[0])
	}
	if len(root.Lifecycle) != 1 {
		t.Fatalf("expected 1 lifecycle call, got %d: %+v", len(root.Lifecycle), root.Lifecycle)
	}
	if root.Lifecycle[0].Instance != "source" || root.Lifecycle[0].Method != LifecycleConnect {
		t.Errorf("expected source connect, got %+v", root.Lifecycle[0])
	}
}

func TestPythonExtractor_Extract_SkipsNonInstanceStatements(t *testing.T) {
	source := `def main():
    count = 10
    name = "pipeline"
    result = compute(count)
    gen = create_generator()
`
	path := writeSource(t, "mixed.py", source)
	extractor := NewPythonExtractor()

	root, err := extractor.Extract(context.Background(), path, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Literals and lowercase non-factory calls are not instances.
	if len(root.Instances) != 1 || root.Instances[0].Name != "gen" {
		t.Fatalf("expected only [gen], got %+v", root.Instances)
	}
}

func TestPythonExtractor_Available(t *testing.T) {
	extractor := NewPythonExtractor()
	if !extractor.Available() {
		t.Error("expected Python grammar to be available")
	}
	if extractor.LanguageID() != "python" {
		t.Errorf("expected language 'python', got %q", extractor.LanguageID())
	}
}
