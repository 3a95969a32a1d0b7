package overlay

import (
	"bytes"
	"encoding/json"
	"reflect"
)

var (
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	anyMapType = reflect.TypeOf(map[string]any(nil))
)

// DynamicNode mirrors an `any` position. The inner overlay follows the dynamic
// type of the held value: objects become maps that merge key by key on decode,
// everything else is rebuilt from the decoded value.
type DynamicNode struct {
	typ   reflect.Type
	inner Node
	b     *builder
}

func (b *builder) newDynamic(t reflect.Type, v reflect.Value, explicit bool) *DynamicNode {
	n := &DynamicNode{typ: t, b: b}
	n.Replace(v, explicit)
	return n
}

func (n *DynamicNode) Kind() Kind         { return KindDynamic }
func (n *DynamicNode) Type() reflect.Type { return n.typ }

// Elem returns the overlay of the held value.
func (n *DynamicNode) Elem() Node { return n.inner }

func (n *DynamicNode) Explicit() bool { return n.inner.Explicit() }

func (n *DynamicNode) Value() reflect.Value {
	out := reflect.New(n.typ).Elem()
	value := n.inner.Value()
	if value.IsValid() && !(value.Kind() == reflect.Interface && value.IsNil()) {
		out.Set(value)
	}
	return out
}

func (n *DynamicNode) Replace(v reflect.Value, explicit bool) {
	v = conform(n.typ, v)
	if v.IsNil() {
		n.inner = n.b.newLeaf(n.typ, v, explicit)
		return
	}
	concrete := v.Elem()
	n.inner = n.b.build(concrete.Type(), concrete, explicit)
}

func (n *DynamicNode) encode(buf *bytes.Buffer, st *encodeState) error {
	return n.inner.encode(buf, st)
}

func (n *DynamicNode) decode(raw json.RawMessage, st *decodeState) error {
	if tokenKind(raw) == '{' {
		if m, ok := n.inner.(*MapNode); ok && m.typ == anyMapType {
			return m.decode(raw, st)
		}
		m := n.b.newMap(anyMapType, reflect.MakeMap(anyMapType), false)
		if err := m.decode(raw, st); err != nil {
			return err
		}
		n.inner = m
		return nil
	}
	var value any
	if err := st.unmarshal(raw, &value); err != nil {
		return st.fail(ErrFormatMismatch, "invalid JSON value", err)
	}
	n.Replace(reflect.ValueOf(&value).Elem(), true)
	return nil
}

func (n *DynamicNode) visit(ctx any) { n.inner.visit(ctx) }

func (n *DynamicNode) children() []child {
	return []child{{node: n.inner}}
}

func (n *DynamicNode) clone() Node {
	return &DynamicNode{typ: n.typ, inner: n.inner.clone(), b: n.b}
}
