package overlay

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Kind names the shape of an overlay node.
type Kind int

const (
	KindLeaf Kind = iota
	KindOption
	KindSlice
	KindArray
	KindStruct
	KindTuple
	KindMap
	KindEnum
	KindDynamic
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindOption:
		return "option"
	case KindSlice:
		return "slice"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindTuple:
		return "tuple"
	case KindMap:
		return "map"
	case KindEnum:
		return "enum"
	case KindDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Node is one position in an overlay tree. Every shape implements the same
// four operations: construction (through the builder), explicitness query,
// extraction and in-place replacement. Composite nodes compute Explicit from
// their children on every call; nothing is cached.
//
// The interface is sealed: codec and traversal hooks are unexported so only
// the shapes defined in this package can participate.
type Node interface {
	Kind() Kind
	// Type is the Go type this node mirrors.
	Type() reflect.Type
	// Explicit reports whether any significant descendant was supplied by an
	// external source.
	Explicit() bool
	// Value extracts a deep copy of the plain value, discarding explicitness.
	Value() reflect.Value
	// Replace swaps the content for v, stamping every part with explicit.
	Replace(v reflect.Value, explicit bool)

	encode(buf *bytes.Buffer, st *encodeState) error
	decode(raw json.RawMessage, st *decodeState) error
	visit(ctx any)
	children() []child
	clone() Node
}

// child pairs a node with the path segment that reaches it from its parent.
type child struct {
	segment string
	node    Node
}

// Equal reports whether two trees hold the same values with the same
// explicitness at every position.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.Type() != b.Type() {
		return false
	}
	switch left := a.(type) {
	case *LeafNode:
		right := b.(*LeafNode)
		return left.leaf.Explicit() == right.leaf.Explicit() &&
			reflect.DeepEqual(left.leaf.Value(), right.leaf.Value())
	case *OptionNode:
		right := b.(*OptionNode)
		if left.inner == nil || right.inner == nil {
			return left.inner == nil && right.inner == nil && left.absentExplicit == right.absentExplicit
		}
		return Equal(left.inner, right.inner)
	case *EnumNode:
		right := b.(*EnumNode)
		if left.variant != right.variant {
			return false
		}
		if left.variant.unit() {
			return left.marker.Explicit() == right.marker.Explicit()
		}
		return Equal(left.payload, right.payload)
	case *DynamicNode:
		return Equal(left.inner, b.(*DynamicNode).inner)
	}

	leftChildren, rightChildren := a.children(), b.children()
	if len(leftChildren) != len(rightChildren) {
		return false
	}
	for i := range leftChildren {
		if leftChildren[i].segment != rightChildren[i].segment {
			return false
		}
		if !Equal(leftChildren[i].node, rightChildren[i].node) {
			return false
		}
	}
	if s, ok := a.(*StructNode); ok {
		return reflect.DeepEqual(s.opaqueValues(), b.(*StructNode).opaqueValues())
	}
	return true
}
