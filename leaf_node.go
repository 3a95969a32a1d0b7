package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// LeafNode wraps one primitive, or any value encoded through its own JSON
// codec, with the Leaf produced by the configured Strategy.
type LeafNode struct {
	typ  reflect.Type
	leaf Leaf
	b    *builder
}

func (b *builder) newLeaf(t reflect.Type, v reflect.Value, explicit bool) *LeafNode {
	return &LeafNode{typ: t, leaf: b.strategy.NewLeaf(leafValue(v), explicit), b: b}
}

func leafValue(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() == reflect.Interface && v.IsNil() {
		return nil
	}
	return v.Interface()
}

func (n *LeafNode) Kind() Kind         { return KindLeaf }
func (n *LeafNode) Type() reflect.Type { return n.typ }
func (n *LeafNode) Explicit() bool     { return n.leaf.Explicit() }

// Leaf returns the underlying representation.
func (n *LeafNode) Leaf() Leaf { return n.leaf }

// Interface returns the current value without copying.
func (n *LeafNode) Interface() any { return n.leaf.Value() }

// Set stores value with the given flag.
func (n *LeafNode) Set(value any, explicit bool) {
	n.Replace(reflect.ValueOf(value), explicit)
}

func (n *LeafNode) Value() reflect.Value {
	current := n.leaf.Value()
	if current == nil {
		return reflect.Zero(n.typ)
	}
	return conform(n.typ, cloneValue(reflect.ValueOf(current)))
}

func (n *LeafNode) Replace(v reflect.Value, explicit bool) {
	n.leaf.Set(leafValue(conform(n.typ, v)), explicit)
}

func (n *LeafNode) encode(buf *bytes.Buffer, st *encodeState) error {
	if !st.full && !n.leaf.Explicit() {
		buf.WriteString("null")
		return nil
	}
	data, err := json.Marshal(n.leaf.Value())
	if err != nil {
		return fmt.Errorf("overlay: encode %s: %w", st.path(), err)
	}
	buf.Write(data)
	return nil
}

func (n *LeafNode) decode(raw json.RawMessage, st *decodeState) error {
	target := reflect.New(n.typ)
	if err := st.unmarshal(raw, target.Interface()); err != nil {
		return st.fail(ErrFormatMismatch, fmt.Sprintf("cannot decode %s into %v", tokenName(raw), n.typ), err)
	}
	n.leaf.Set(leafValue(target.Elem()), true)
	return nil
}

func (n *LeafNode) visit(ctx any) {
	if receiver, ok := n.leaf.(ContextReceiver); ok {
		receiver.ReceiveContext(ctx)
	}
}

func (n *LeafNode) children() []child { return nil }

func (n *LeafNode) clone() Node {
	return &LeafNode{typ: n.typ, leaf: n.leaf.Clone(), b: n.b}
}
