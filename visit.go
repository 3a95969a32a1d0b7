package overlay

import (
	"fmt"
	"strings"
)

// Visit hands ctx to every leaf of n whose representation implements
// ContextReceiver, walking fields, elements, present options, the active enum
// variant and map entries in order. Absent options and unit variants record
// ctx as well. Explicitness is not consulted.
func Visit(n Node, ctx any) {
	if n == nil {
		return
	}
	n.visit(ctx)
}

// WalkFunc is called for every node reached by Walk. Returning false skips the
// node's children.
type WalkFunc func(path string, n Node) bool

// Walk traverses n depth first. Paths join struct field names, tuple and
// element indexes, map keys and active variant names with dots. Options and
// dynamic positions are transparent: their content shares their path.
func Walk(n Node, fn WalkFunc) {
	if n == nil || fn == nil {
		return
	}
	walk("", n, fn)
}

func walk(path string, n Node, fn WalkFunc) {
	if !fn(path, n) {
		return
	}
	for _, c := range n.children() {
		next := path
		if c.segment != "" {
			next = joinPath(path, c.segment)
		}
		walk(next, c.node, fn)
	}
}

// Lookup resolves a dotted path below n.
func Lookup(n Node, path string) (Node, error) {
	current := n
	if path == "" {
		return current, nil
	}
	for _, segment := range strings.Split(path, ".") {
		current = transparent(current)
		next, ok := step(current, segment)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		current = next
	}
	return current, nil
}

// transparent unwraps present options and dynamic positions.
func transparent(n Node) Node {
	for {
		switch node := n.(type) {
		case *OptionNode:
			if node.inner == nil {
				return n
			}
			n = node.inner
		case *DynamicNode:
			n = node.inner
		default:
			return n
		}
	}
}

func step(n Node, segment string) (Node, bool) {
	switch node := n.(type) {
	case *StructNode:
		return node.FieldByName(segment)
	case *MapNode:
		return node.Get(segment)
	case *SliceNode, *ArrayNode:
		for _, c := range n.children() {
			if c.segment == segment {
				return c.node, true
			}
		}
	case *EnumNode:
		if node.variant.name != segment {
			return nil, false
		}
		if node.payload == nil {
			return node, true
		}
		return node.payload, true
	}
	return nil, false
}

func joinPath(base, segment string) string {
	if base == "" {
		return segment
	}
	return base + "." + segment
}
