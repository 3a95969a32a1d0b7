package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// StructNode mirrors a struct. Named structs encode as objects keyed by their
// JSON field names; structs embedding Tuple encode as arrays. Unexported and
// `json:"-"` fields are carried in base and never overlaid.
type StructNode struct {
	typ    reflect.Type
	info   *structInfo
	fields []Node
	base   reflect.Value
	b      *builder
}

func (b *builder) newStruct(t reflect.Type, v reflect.Value, explicit bool) *StructNode {
	info := structInfoFor(t)
	n := &StructNode{typ: t, info: info, fields: make([]Node, len(info.fields)), b: b}
	n.base = cloneValue(v)
	for i, field := range info.fields {
		n.fields[i] = b.buildNode(field.typ, v.Field(field.index), explicit, field.leaf)
	}
	return n
}

func (n *StructNode) Kind() Kind {
	if n.info.tuple {
		return KindTuple
	}
	return KindStruct
}

func (n *StructNode) Type() reflect.Type { return n.typ }

// NumField returns the number of overlaid fields.
func (n *StructNode) NumField() int { return len(n.fields) }

// Field returns the overlay of the i-th overlaid field.
func (n *StructNode) Field(i int) Node { return n.fields[i] }

// FieldByName returns the overlay of the field encoded under name. Matching
// falls back to a case-insensitive comparison.
func (n *StructNode) FieldByName(name string) (Node, bool) {
	if n.info.tuple {
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(n.fields) {
			return nil, false
		}
		return n.fields[i], true
	}
	i, ok := n.info.field(name)
	if !ok {
		return nil, false
	}
	return n.fields[i], true
}

// Explicit reports whether any non-passive field is explicit.
func (n *StructNode) Explicit() bool {
	for i, field := range n.fields {
		if n.info.fields[i].passive {
			continue
		}
		if field.Explicit() {
			return true
		}
	}
	return false
}

func (n *StructNode) Value() reflect.Value {
	out := reflect.New(n.typ).Elem()
	out.Set(cloneValue(n.base))
	for i, field := range n.fields {
		out.Field(n.info.fields[i].index).Set(field.Value())
	}
	return out
}

func (n *StructNode) Replace(v reflect.Value, explicit bool) {
	v = conform(n.typ, v)
	n.base = cloneValue(v)
	for i, field := range n.fields {
		field.Replace(v.Field(n.info.fields[i].index), explicit)
	}
}

func (n *StructNode) opaqueValues() any {
	out := reflect.New(n.typ).Elem()
	out.Set(n.base)
	for _, field := range n.info.fields {
		out.Field(field.index).Set(reflect.Zero(field.typ))
	}
	return out.Interface()
}

func (n *StructNode) encode(buf *bytes.Buffer, st *encodeState) error {
	if n.info.tuple {
		return encodeSequence(buf, st, n.fields)
	}
	return n.encodeObject(buf, st, false)
}

// encodeObject writes the named fields. Implicit fields are omitted unless
// every field is requested.
func (n *StructNode) encodeObject(buf *bytes.Buffer, st *encodeState, all bool) error {
	buf.WriteByte('{')
	first := true
	for i, field := range n.fields {
		if !all && !st.full && !field.Explicit() {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		name := n.info.fields[i].name
		writeKey(buf, name)
		st.push(name)
		err := field.encode(buf, st)
		st.pop()
		if err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (n *StructNode) decode(raw json.RawMessage, st *decodeState) error {
	if n.info.tuple {
		items, err := st.array(raw, n.typ)
		if err != nil {
			return err
		}
		if len(items) != len(n.fields) {
			return st.fail(ErrLengthMismatch, fmt.Sprintf("expected %d elements, got %d", len(n.fields), len(items)), nil)
		}
		return decodeSequence(items, st, n.fields)
	}
	return n.decodeObject(raw, st, false)
}

// decodeObject applies the keys present in raw. With requireAll a missing
// field is a malformed variant payload and null fields are gaps, matching
// how a complete payload encodes implicit fields.
func (n *StructNode) decodeObject(raw json.RawMessage, st *decodeState, requireAll bool) error {
	entries, err := st.object(raw, n.typ)
	if err != nil {
		return err
	}
	seen := make([]bool, len(n.fields))
	for _, key := range sortedKeys(entries) {
		value := entries[key]
		i, ok := n.info.field(key)
		if !ok {
			if st.disallowUnknown {
				return st.fail(ErrFormatMismatch, fmt.Sprintf("unknown field %q in %v", key, n.typ), nil)
			}
			continue
		}
		seen[i] = true
		name := n.info.fields[i].name
		st.push(name)
		err := st.child(n.fields[i], value, requireAll)
		st.pop()
		if err != nil {
			return err
		}
	}
	if requireAll {
		for i, ok := range seen {
			if !ok {
				return st.fail(ErrMalformedVariant, fmt.Sprintf("missing field %q", n.info.fields[i].name), nil)
			}
		}
	}
	return nil
}

func (n *StructNode) visit(ctx any) {
	for _, field := range n.fields {
		field.visit(ctx)
	}
}

func (n *StructNode) children() []child {
	out := make([]child, len(n.fields))
	for i, field := range n.fields {
		segment := n.info.fields[i].name
		if n.info.tuple {
			segment = strconv.Itoa(i)
		}
		out[i] = child{segment: segment, node: field}
	}
	return out
}

func (n *StructNode) clone() Node {
	return &StructNode{
		typ:    n.typ,
		info:   n.info,
		fields: cloneNodes(n.fields),
		base:   cloneValue(n.base),
		b:      n.b,
	}
}
