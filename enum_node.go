package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// PayloadMode controls how named-field variant payloads are encoded and
// decoded.
type PayloadMode int

const (
	// PayloadSparse omits implicit fields when encoding and fills missing
	// fields from the variant default when decoding.
	PayloadSparse PayloadMode = iota
	// PayloadComplete encodes every field and rejects payloads missing any.
	PayloadComplete
)

// WithPayloadMode selects the variant payload mode.
func WithPayloadMode(mode PayloadMode) Option {
	return func(cfg *config) {
		cfg.payloadMode = mode
	}
}

// VariantMarker carries the explicitness of a unit variant.
type VariantMarker struct {
	explicit bool
	ctx      any
}

func (m *VariantMarker) Explicit() bool { return m.explicit }

// Set records the flag.
func (m *VariantMarker) Set(explicit bool) { m.explicit = explicit }

// ReceiveContext stores the context handed out by Visit.
func (m *VariantMarker) ReceiveContext(ctx any) { m.ctx = ctx }

// Context returns the last context received.
func (m *VariantMarker) Context() any { return m.ctx }

// EnumNode mirrors a registered enum interface. Exactly one variant is active;
// unit variants hold a marker, data variants hold the overlay of the variant
// value.
type EnumNode struct {
	typ     reflect.Type
	info    *enumInfo
	variant *variantInfo
	marker  *VariantMarker
	payload Node
	b       *builder
}

func (b *builder) newEnum(info *enumInfo, v reflect.Value, explicit bool) *EnumNode {
	n := &EnumNode{typ: info.typ, info: info, b: b}
	n.Replace(v, explicit)
	return n
}

func (n *EnumNode) Kind() Kind         { return KindEnum }
func (n *EnumNode) Type() reflect.Type { return n.typ }

// Variant returns the name of the active variant.
func (n *EnumNode) Variant() string { return n.variant.name }

// Unit reports whether the active variant carries no data.
func (n *EnumNode) Unit() bool { return n.variant.unit() }

// Marker returns the marker of a unit variant, nil otherwise.
func (n *EnumNode) Marker() *VariantMarker { return n.marker }

// Payload returns the overlay of a data variant, nil for unit variants.
func (n *EnumNode) Payload() Node { return n.payload }

func (n *EnumNode) Explicit() bool {
	if n.marker != nil {
		return n.marker.Explicit()
	}
	return n.payload.Explicit()
}

func (n *EnumNode) Value() reflect.Value {
	out := reflect.New(n.typ).Elem()
	if n.marker != nil {
		out.Set(reflect.New(n.variant.typ).Elem())
		return out
	}
	out.Set(n.payload.Value())
	return out
}

// Replace discards the active variant and builds the variant held by v. A nil
// v selects the registered default. A concrete type that was never registered
// as a variant is a programming error and panics.
func (n *EnumNode) Replace(v reflect.Value, explicit bool) {
	v = conform(n.typ, v)
	if v.IsNil() {
		v = cloneValue(n.info.def)
	}
	concrete := v.Elem()
	variant, ok := n.info.byType[concrete.Type()]
	if !ok {
		panic(fmt.Sprintf("overlay: %v is not a registered variant of %v", concrete.Type(), n.typ))
	}
	n.switchTo(variant, concrete, explicit)
}

func (n *EnumNode) switchTo(variant *variantInfo, concrete reflect.Value, explicit bool) {
	n.variant = variant
	if variant.unit() {
		n.marker = &VariantMarker{explicit: explicit}
		n.payload = nil
		return
	}
	n.marker = nil
	n.payload = n.b.build(variant.typ, concrete, explicit)
}

// reset activates variant holding its default value at implicit.
func (n *EnumNode) reset(variant *variantInfo) {
	n.switchTo(variant, n.b.variantDefault(n.info, variant), false)
}

func (n *EnumNode) encode(buf *bytes.Buffer, st *encodeState) error {
	if !st.full && !n.Explicit() {
		buf.WriteString("null")
		return nil
	}
	if n.marker != nil {
		writeString(buf, n.variant.name)
		return nil
	}
	buf.WriteByte('{')
	writeKey(buf, n.variant.name)
	st.push(n.variant.name)
	var err error
	switch n.variant.form {
	case variantNamed:
		err = n.payload.(*StructNode).encodeObject(buf, st, n.b.mode == PayloadComplete)
	case variantSingle:
		err = n.payload.(*StructNode).fields[0].encode(buf, st)
	default:
		err = n.payload.encode(buf, st)
	}
	st.pop()
	if err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func (n *EnumNode) decode(raw json.RawMessage, st *decodeState) error {
	switch tokenKind(raw) {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return st.fail(ErrFormatMismatch, "invalid variant name", err)
		}
		variant, ok := n.info.byName[name]
		if !ok {
			return st.fail(ErrUnknownVariant, fmt.Sprintf("%q is not a variant of %v", name, n.typ), nil)
		}
		if !variant.unit() {
			return st.fail(ErrMalformedVariant, fmt.Sprintf("variant %q carries data and cannot be given by name", name), nil)
		}
		n.selectUnit(variant)
		return nil
	case '{':
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return st.fail(ErrFormatMismatch, "invalid variant object", err)
		}
		if len(entries) != 1 {
			return st.fail(ErrMalformedVariant, fmt.Sprintf("expected exactly one key, got %d", len(entries)), nil)
		}
		for name, payload := range entries {
			variant, ok := n.info.byName[name]
			if !ok {
				return st.fail(ErrUnknownVariant, fmt.Sprintf("%q is not a variant of %v", name, n.typ), nil)
			}
			if variant.unit() {
				n.selectUnit(variant)
				return nil
			}
			prev := *n
			if n.variant != variant {
				n.reset(variant)
			}
			st.push(name)
			err := n.decodePayload(payload, st)
			st.pop()
			if err != nil && prev.variant != variant {
				*n = prev
			}
			return err
		}
		return nil
	default:
		return st.fail(ErrFormatMismatch, fmt.Sprintf("cannot decode %s into enum %v", tokenName(raw), n.typ), nil)
	}
}

func (n *EnumNode) selectUnit(variant *variantInfo) {
	if n.variant == variant && n.marker != nil {
		n.marker.Set(true)
		return
	}
	n.switchTo(variant, reflect.New(variant.typ).Elem(), true)
}

func (n *EnumNode) decodePayload(raw json.RawMessage, st *decodeState) error {
	switch n.variant.form {
	case variantNamed:
		if tokenKind(raw) != '{' {
			return st.fail(ErrMalformedVariant, fmt.Sprintf("variant %q expects an object payload, got %s", n.variant.name, tokenName(raw)), nil)
		}
		return n.payload.(*StructNode).decodeObject(raw, st, n.b.mode == PayloadComplete)
	case variantSingle:
		return st.child(n.payload.(*StructNode).fields[0], raw, false)
	case variantTuple:
		if tokenKind(raw) != '[' {
			return st.fail(ErrMalformedVariant, fmt.Sprintf("variant %q expects an array payload, got %s", n.variant.name, tokenName(raw)), nil)
		}
		items, err := st.array(raw, n.variant.typ)
		if err != nil {
			return err
		}
		fields := n.payload.(*StructNode).fields
		if len(items) != len(fields) {
			return st.fail(ErrMalformedVariant, fmt.Sprintf("variant %q expects %d fields, got %d", n.variant.name, len(fields), len(items)), nil)
		}
		return decodeSequence(items, st, fields)
	default:
		return st.child(n.payload, raw, false)
	}
}

func (n *EnumNode) visit(ctx any) {
	if n.marker != nil {
		n.marker.ReceiveContext(ctx)
		return
	}
	n.payload.visit(ctx)
}

func (n *EnumNode) children() []child {
	if n.payload == nil {
		return nil
	}
	return []child{{segment: n.variant.name, node: n.payload}}
}

func (n *EnumNode) clone() Node {
	out := &EnumNode{typ: n.typ, info: n.info, variant: n.variant, b: n.b}
	if n.marker != nil {
		marker := *n.marker
		out.marker = &marker
	}
	if n.payload != nil {
		out.payload = n.payload.clone()
	}
	return out
}
