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
	"regexp"
	"strings"
)

// DefaultRootMarker is the annotation recognized in a comment (or
// Python docstring) immediately preceding a composition-root function.
const DefaultRootMarker = "@composition-root"

// PythonRootDecorator is the decorator name that marks a Python
// function as a composition root.
const PythonRootDecorator = "composition_root"

// markerScanLines is how many lines above a function the marker
// comment may appear.
const markerScanLines = 10

// baseWiringMethods are the connection-call names shared by every
// language family.
var baseWiringMethods = map[string]bool{
	"setNext":      true,
	"set_next":     true,
	"connect":      true,
	"addListener":  true,
	"add_listener": true,
	"addObserver":  true,
	"add_observer": true,
	"subscribe":    true,
	"link":         true,
	"pipe":         true,
	"chain":        true,
	"attach":       true,
	"register":     true,
}

// pythonWiringMethods extends the base set with container-style wiring.
var pythonWiringMethods = mergeSets(baseWiringMethods, map[string]bool{
	"add":    true,
	"append": true,
})

// typescriptWiringMethods extends the base set with container and
// event/middleware wiring common in JS frameworks.
var typescriptWiringMethods = mergeSets(baseWiringMethods, map[string]bool{
	"add":              true,
	"addEventListener": true,
	"push":             true,
	"on":               true,
	"use":              true,
})

// baseLifecycleMethods maps call names to normalized lifecycle methods.
var baseLifecycleMethods = map[string]LifecycleMethod{
	"init":       LifecycleInit,
	"initialize": LifecycleInit,
	"start":      LifecycleStart,
	"stop":       LifecycleStop,
	"shutdown":   LifecycleShutdown,
	"connect":    LifecycleConnect,
	"disconnect": LifecycleDisconnect,
}

// pythonLifecycleMethods adds script-world conventions.
var pythonLifecycleMethods = mergeLifecycle(baseLifecycleMethods, map[string]LifecycleMethod{
	"run":   LifecycleStart,
	"close": LifecycleShutdown,
})

// typescriptLifecycleMethods adds disposal conventions.
var typescriptLifecycleMethods = mergeLifecycle(baseLifecycleMethods, map[string]LifecycleMethod{
	"dispose": LifecycleShutdown,
	"destroy": LifecycleShutdown,
})

// Factory-call recognition. C-family and JS factories use camelCase
// prefixes or a Factory suffix; Python uses snake_case prefixes.
var (
	camelFactoryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^create[A-Z]`),
		regexp.MustCompile(`^make[A-Z]`),
		regexp.MustCompile(`^build[A-Z]`),
		regexp.MustCompile(`Factory$`),
	}

	snakeFactoryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^create_`),
		regexp.MustCompile(`^make_`),
		regexp.MustCompile(`^build_`),
		regexp.MustCompile(`_factory$`),
		regexp.MustCompile(`Factory$`),
	}

	// typescriptFactoryPatterns also accepts static Type.create()
	// factories.
	typescriptFactoryPatterns = append(
		[]*regexp.Regexp{regexp.MustCompile(`\.create$`)},
		camelFactoryPatterns...,
	)
)

// factoryPrefixes are stripped from a factory name to derive a type
// symbol when nothing better is known.
var factoryPrefixes = []string{"create_", "make_", "build_", "create", "make", "build"}

// pythonRootFunctions are conventional entry-point names for Python.
var pythonRootFunctions = map[string]bool{
	"main":            true,
	"create_app":      true,
	"create_pipeline": true,
	"setup":           true,
	"configure":       true,
	"bootstrap":       true,
}

// typescriptRootFunctions are conventional entry-point names for
// TypeScript and JavaScript.
var typescriptRootFunctions = map[string]bool{
	"main":           true,
	"createApp":      true,
	"createPipeline": true,
	"setup":          true,
	"configure":      true,
	"bootstrap":      true,
	"init":           true,
	"initialize":     true,
}

// typescriptEntryFiles are filenames whose top-level code counts as a
// composition root when it contains meaningful statements.
var typescriptEntryFiles = map[string]bool{
	"index.ts": true,
	"index.js": true,
	"main.ts":  true,
	"main.js":  true,
	"app.ts":   true,
	"app.js":   true,
}

// Pseudo-root function names for script-style roots.
const (
	// PythonScriptRoot names the body of an `if __name__ == "__main__"`
	// guard.
	PythonScriptRoot = "__main__"

	// ModuleRoot names meaningful top-level code in a JS/TS entry file.
	ModuleRoot = "__module__"
)

// matchesAny reports whether the name matches any pattern in the set.
func matchesAny(patterns []*regexp.Regexp, name string) bool {
	for _, p := range patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// TypeSymbolFromFactory derives a type symbol from a factory name by
// stripping a recognized prefix: createGenerator -> Generator,
// create_generator -> Generator. Dotted static factories resolve to
// the receiver type: Registry.create -> Registry. Returns "" if
// nothing remains.
func TypeSymbolFromFactory(factoryName string) string {
	if head, tail, found := strings.Cut(factoryName, "."); found {
		if derived := TypeSymbolFromFactory(tail); derived != "" {
			return derived
		}
		return head
	}

	for _, prefix := range factoryPrefixes {
		if !strings.HasPrefix(factoryName, prefix) {
			continue
		}
		rest := strings.TrimPrefix(factoryName, prefix)
		if rest == "" {
			continue
		}
		// Snake-case factories title-case the remainder.
		if strings.HasSuffix(prefix, "_") {
			return titleCase(rest)
		}
		// Camel-case factories require the remainder to start a new
		// word; otherwise the prefix match was spurious ("creates").
		if rest[0] >= 'A' && rest[0] <= 'Z' {
			return rest
		}
	}
	return ""
}

// titleCase converts snake_case to TitleCase: printer_module ->
// PrinterModule.
func titleCase(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// isUpperLeading reports whether the name starts with an uppercase
// ASCII letter, the convention for constructors.
func isUpperLeading(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func mergeSets(base, extra map[string]bool) map[string]bool {
	merged := make(map[string]bool, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func mergeLifecycle(base, extra map[string]LifecycleMethod) map[string]LifecycleMethod {
	merged := make(map[string]LifecycleMethod, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
