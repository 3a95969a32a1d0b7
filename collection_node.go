package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// SliceNode mirrors a slice element by element. Decoding replaces the whole
// sequence.
type SliceNode struct {
	typ   reflect.Type
	elems []Node
	isNil bool
	b     *builder
}

func (b *builder) newSlice(t reflect.Type, v reflect.Value, explicit bool) *SliceNode {
	n := &SliceNode{typ: t, b: b}
	n.Replace(v, explicit)
	return n
}

func (n *SliceNode) Kind() Kind         { return KindSlice }
func (n *SliceNode) Type() reflect.Type { return n.typ }
func (n *SliceNode) Len() int           { return len(n.elems) }

// Index returns the overlay of element i.
func (n *SliceNode) Index(i int) Node { return n.elems[i] }

// Append adds v as a new element stamped with explicit.
func (n *SliceNode) Append(v reflect.Value, explicit bool) {
	n.elems = append(n.elems, n.b.build(n.typ.Elem(), cloneValue(v), explicit))
	n.isNil = false
}

func (n *SliceNode) Explicit() bool { return anyExplicit(n.elems) }

func (n *SliceNode) Value() reflect.Value {
	if n.isNil && len(n.elems) == 0 {
		return reflect.Zero(n.typ)
	}
	out := reflect.MakeSlice(n.typ, len(n.elems), len(n.elems))
	for i, elem := range n.elems {
		out.Index(i).Set(elem.Value())
	}
	return out
}

func (n *SliceNode) Replace(v reflect.Value, explicit bool) {
	v = conform(n.typ, v)
	n.isNil = v.IsNil()
	n.elems = make([]Node, v.Len())
	for i := range n.elems {
		n.elems[i] = n.b.build(n.typ.Elem(), v.Index(i), explicit)
	}
}

func (n *SliceNode) encode(buf *bytes.Buffer, st *encodeState) error {
	return encodeSequence(buf, st, n.elems)
}

func (n *SliceNode) decode(raw json.RawMessage, st *decodeState) error {
	items, err := st.array(raw, n.typ)
	if err != nil {
		return err
	}
	elemType := n.typ.Elem()
	elems := make([]Node, len(items))
	for i, item := range items {
		elem := n.b.build(elemType, n.b.defaultValue(elemType), false)
		st.push(strconv.Itoa(i))
		err := st.child(elem, item, true)
		st.pop()
		if err != nil {
			return err
		}
		elems[i] = elem
	}
	n.elems = elems
	n.isNil = false
	return nil
}

func (n *SliceNode) visit(ctx any) {
	for _, elem := range n.elems {
		elem.visit(ctx)
	}
}

func (n *SliceNode) children() []child { return indexedChildren(n.elems) }

func (n *SliceNode) clone() Node {
	return &SliceNode{typ: n.typ, elems: cloneNodes(n.elems), isNil: n.isNil, b: n.b}
}

// ArrayNode mirrors a fixed-size array.
type ArrayNode struct {
	typ   reflect.Type
	elems []Node
	b     *builder
}

func (b *builder) newArray(t reflect.Type, v reflect.Value, explicit bool) *ArrayNode {
	n := &ArrayNode{typ: t, elems: make([]Node, t.Len()), b: b}
	n.Replace(v, explicit)
	return n
}

func (n *ArrayNode) Kind() Kind         { return KindArray }
func (n *ArrayNode) Type() reflect.Type { return n.typ }
func (n *ArrayNode) Len() int           { return len(n.elems) }

// Index returns the overlay of element i.
func (n *ArrayNode) Index(i int) Node { return n.elems[i] }

func (n *ArrayNode) Explicit() bool { return anyExplicit(n.elems) }

func (n *ArrayNode) Value() reflect.Value {
	out := reflect.New(n.typ).Elem()
	for i, elem := range n.elems {
		out.Index(i).Set(elem.Value())
	}
	return out
}

func (n *ArrayNode) Replace(v reflect.Value, explicit bool) {
	v = conform(n.typ, v)
	for i := range n.elems {
		if n.elems[i] == nil {
			n.elems[i] = n.b.build(n.typ.Elem(), v.Index(i), explicit)
			continue
		}
		n.elems[i].Replace(v.Index(i), explicit)
	}
}

func (n *ArrayNode) encode(buf *bytes.Buffer, st *encodeState) error {
	return encodeSequence(buf, st, n.elems)
}

func (n *ArrayNode) decode(raw json.RawMessage, st *decodeState) error {
	items, err := st.array(raw, n.typ)
	if err != nil {
		return err
	}
	if len(items) != len(n.elems) {
		return st.fail(ErrLengthMismatch, fmt.Sprintf("expected %d elements, got %d", len(n.elems), len(items)), nil)
	}
	return decodeSequence(items, st, n.elems)
}

func (n *ArrayNode) visit(ctx any) {
	for _, elem := range n.elems {
		elem.visit(ctx)
	}
}

func (n *ArrayNode) children() []child { return indexedChildren(n.elems) }

func (n *ArrayNode) clone() Node {
	return &ArrayNode{typ: n.typ, elems: cloneNodes(n.elems), b: n.b}
}

func anyExplicit(nodes []Node) bool {
	for _, node := range nodes {
		if node.Explicit() {
			return true
		}
	}
	return false
}

func indexedChildren(nodes []Node) []child {
	out := make([]child, len(nodes))
	for i, node := range nodes {
		out[i] = child{segment: strconv.Itoa(i), node: node}
	}
	return out
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, node := range nodes {
		out[i] = node.clone()
	}
	return out
}

func encodeSequence(buf *bytes.Buffer, st *encodeState, nodes []Node) error {
	buf.WriteByte('[')
	for i, node := range nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		st.push(strconv.Itoa(i))
		err := node.encode(buf, st)
		st.pop()
		if err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func decodeSequence(items []json.RawMessage, st *decodeState, nodes []Node) error {
	for i, item := range items {
		st.push(strconv.Itoa(i))
		err := st.child(nodes[i], item, true)
		st.pop()
		if err != nil {
			return err
		}
	}
	return nil
}
