// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// maxWalkDepth bounds tree traversal to prevent stack exhaustion on
// pathological inputs.
const maxWalkDepth = 512

// Tree is a parsed syntax tree bundled with its source bytes.
//
// The source is retained so Node.Text works without threading content
// through every call site. Close releases the underlying parser tree.
type Tree struct {
	tree     *sitter.Tree
	content  []byte
	language string
}

// Root returns the root node of the tree.
func (t *Tree) Root() Node {
	return Node{n: t.tree.RootNode(), src: t.content}
}

// Language returns the language id the tree was parsed as.
func (t *Tree) Language() string {
	return t.language
}

// HasError reports whether the source contained syntax errors.
// A tree with errors is still walkable; extraction degrades locally.
func (t *Tree) HasError() bool {
	root := t.tree.RootNode()
	return root != nil && root.HasError()
}

// Close releases the parse tree. The Tree must not be used afterward.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Node is a lightweight view of one syntax-tree node.
//
// The zero value is invalid; navigation methods return invalid nodes
// (Valid() == false) instead of nil pointers, so chained lookups read
// linearly without nil checks at every hop.
type Node struct {
	n   *sitter.Node
	src []byte
}

// Valid reports whether the node refers to an actual tree node.
func (n Node) Valid() bool {
	return n.n != nil
}

// Kind returns the grammar node type (e.g. "call_expression").
func (n Node) Kind() string {
	if n.n == nil {
		return ""
	}
	return n.n.Type()
}

// Text returns the exact source text the node spans.
func (n Node) Text() string {
	if n.n == nil {
		return ""
	}
	return n.n.Content(n.src)
}

// StartLine returns the 1-based line of the node's first character.
func (n Node) StartLine() int {
	if n.n == nil {
		return 0
	}
	return int(n.n.StartPoint().Row) + 1
}

// StartColumn returns the 1-based column of the node's first character.
func (n Node) StartColumn() int {
	if n.n == nil {
		return 0
	}
	return int(n.n.StartPoint().Column) + 1
}

// EndLine returns the 1-based line of the node's last character.
func (n Node) EndLine() int {
	if n.n == nil {
		return 0
	}
	return int(n.n.EndPoint().Row) + 1
}

// ChildCount returns the number of children, named or not.
func (n Node) ChildCount() int {
	if n.n == nil {
		return 0
	}
	return int(n.n.ChildCount())
}

// Child returns the i-th child (including anonymous tokens).
func (n Node) Child(i int) Node {
	if n.n == nil {
		return Node{}
	}
	return Node{n: n.n.Child(i), src: n.src}
}

// NamedChildCount returns the number of named children.
func (n Node) NamedChildCount() int {
	if n.n == nil {
		return 0
	}
	return int(n.n.NamedChildCount())
}

// NamedChild returns the i-th named child.
func (n Node) NamedChild(i int) Node {
	if n.n == nil {
		return Node{}
	}
	return Node{n: n.n.NamedChild(i), src: n.src}
}

// ChildByField returns the child bound to a grammar field name.
func (n Node) ChildByField(name string) Node {
	if n.n == nil {
		return Node{}
	}
	return Node{n: n.n.ChildByFieldName(name), src: n.src}
}

// Parent returns the parent node.
func (n Node) Parent() Node {
	if n.n == nil {
		return Node{}
	}
	return Node{n: n.n.Parent(), src: n.src}
}

// PrevSibling returns the previous sibling, anonymous tokens included.
func (n Node) PrevSibling() Node {
	if n.n == nil {
		return Node{}
	}
	return Node{n: n.n.PrevSibling(), src: n.src}
}

// NextSibling returns the next sibling, anonymous tokens included.
func (n Node) NextSibling() Node {
	if n.n == nil {
		return Node{}
	}
	return Node{n: n.n.NextSibling(), src: n.src}
}

// IsNamed reports whether the node is a named grammar node rather than
// an anonymous token.
func (n Node) IsNamed() bool {
	return n.n != nil && n.n.IsNamed()
}

// IsMissing reports whether the node was inserted by error recovery.
func (n Node) IsMissing() bool {
	return n.n != nil && n.n.IsMissing()
}

// HasError reports whether the subtree contains a syntax error.
func (n Node) HasError() bool {
	return n.n != nil && n.n.HasError()
}

// Walk visits the subtree rooted at n in depth-first source order.
//
// The visitor returns true to descend into the node's children and
// false to skip them. Traversal is iterative with an explicit stack
// and bounded by maxWalkDepth.
func (n Node) Walk(visit func(Node) bool) {
	if n.n == nil {
		return
	}

	type frame struct {
		node  Node
		depth int
	}

	stack := []frame{{node: n, depth: 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(top.node) || top.depth >= maxWalkDepth {
			continue
		}

		// Push children in reverse so they pop in source order.
		for i := top.node.ChildCount() - 1; i >= 0; i-- {
			child := top.node.Child(i)
			if child.Valid() {
				stack = append(stack, frame{node: child, depth: top.depth + 1})
			}
		}
	}
}

// NamedChildren returns all named children as a slice.
func (n Node) NamedChildren() []Node {
	count := n.NamedChildCount()
	if count == 0 {
		return nil
	}
	children := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child.Valid() {
			children = append(children, child)
		}
	}
	return children
}

// FindFirst returns the first node in the subtree (depth-first source
// order) whose kind matches, or an invalid node if none does.
func (n Node) FindFirst(kind string) Node {
	var found Node
	n.Walk(func(node Node) bool {
		if found.Valid() {
			return false
		}
		if node.Kind() == kind {
			found = node
			return false
		}
		return true
	})
	return found
}
