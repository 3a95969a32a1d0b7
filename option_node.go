package overlay

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// OptionNode mirrors a pointer. It is either Present, holding the overlay of
// the pointee, or Absent with its own explicitness bit.
type OptionNode struct {
	typ            reflect.Type
	inner          Node
	absentExplicit bool
	ctx            any
	b              *builder
}

func (b *builder) newOption(t reflect.Type, v reflect.Value, explicit bool) *OptionNode {
	n := &OptionNode{typ: t, b: b}
	n.Replace(v, explicit)
	return n
}

func (n *OptionNode) Kind() Kind         { return KindOption }
func (n *OptionNode) Type() reflect.Type { return n.typ }

// Present reports whether the option holds a value.
func (n *OptionNode) Present() bool { return n.inner != nil }

// Elem returns the overlay of the pointee, or nil when absent.
func (n *OptionNode) Elem() Node { return n.inner }

// SetAbsent drops the pointee and records explicit for the absence.
func (n *OptionNode) SetAbsent(explicit bool) {
	n.inner = nil
	n.absentExplicit = explicit
}

func (n *OptionNode) Explicit() bool {
	if n.inner != nil {
		return n.inner.Explicit()
	}
	return n.absentExplicit
}

func (n *OptionNode) Value() reflect.Value {
	if n.inner == nil {
		return reflect.Zero(n.typ)
	}
	ptr := reflect.New(n.typ.Elem())
	ptr.Elem().Set(n.inner.Value())
	return ptr
}

func (n *OptionNode) Replace(v reflect.Value, explicit bool) {
	v = conform(n.typ, v)
	if v.IsNil() {
		n.SetAbsent(explicit)
		return
	}
	n.absentExplicit = false
	n.inner = n.b.build(n.typ.Elem(), v.Elem(), explicit)
}

// ensure makes the option present, building an implicit default pointee when
// it was absent.
func (n *OptionNode) ensure() Node {
	if n.inner == nil {
		elem := n.typ.Elem()
		n.inner = n.b.build(elem, n.b.defaultValue(elem), false)
		n.absentExplicit = false
	}
	return n.inner
}

func (n *OptionNode) encode(buf *bytes.Buffer, st *encodeState) error {
	if n.inner == nil {
		buf.WriteString("null")
		return nil
	}
	return n.inner.encode(buf, st)
}

func (n *OptionNode) decode(raw json.RawMessage, st *decodeState) error {
	if isNull(raw) {
		n.SetAbsent(true)
		return nil
	}
	return n.ensure().decode(raw, st)
}

func (n *OptionNode) visit(ctx any) {
	if n.inner != nil {
		n.inner.visit(ctx)
		return
	}
	n.ctx = ctx
}

func (n *OptionNode) children() []child {
	if n.inner == nil {
		return nil
	}
	return []child{{node: n.inner}}
}

func (n *OptionNode) clone() Node {
	out := &OptionNode{typ: n.typ, absentExplicit: n.absentExplicit, ctx: n.ctx, b: n.b}
	if n.inner != nil {
		out.inner = n.inner.clone()
	}
	return out
}
