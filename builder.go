package overlay

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/goliatone/go-overlay/layering"
)

// Defaulter is implemented by types whose default value is not their zero
// value. SetDefaults is called on a freshly allocated zero value.
type Defaulter interface {
	SetDefaults()
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// builder turns plain values into overlay nodes. Every node keeps the builder
// that produced it so replacements and decodes create children the same way.
type builder struct {
	strategy Strategy
	registry *EnumRegistry
	mode     PayloadMode
}

func newBuilder(cfg config) *builder {
	b := &builder{
		strategy: cfg.strategy,
		registry: cfg.registry,
		mode:     cfg.payloadMode,
	}
	if b.strategy == nil {
		b.strategy = currentStrategy()
	}
	if b.registry == nil {
		b.registry = defaultRegistry
	}
	return b
}

// Build constructs an overlay for value with every position stamped with
// explicit. The value is deep copied.
func Build(value any, explicit bool, opts ...Option) Node {
	b := newBuilder(applyOptions(opts))
	if value == nil {
		t := reflect.TypeOf((*any)(nil)).Elem()
		return b.build(t, reflect.Zero(t), explicit)
	}
	v := cloneValue(reflect.ValueOf(value))
	return b.build(v.Type(), v, explicit)
}

// BuildType constructs an implicit overlay holding the default value of t.
func BuildType(t reflect.Type, opts ...Option) Node {
	b := newBuilder(applyOptions(opts))
	return b.build(t, b.defaultValue(t), false)
}

func (b *builder) build(t reflect.Type, v reflect.Value, explicit bool) Node {
	return b.buildNode(t, v, explicit, false)
}

func (b *builder) buildNode(t reflect.Type, v reflect.Value, explicit, forceLeaf bool) Node {
	v = conform(t, v)
	if forceLeaf {
		return b.newLeaf(t, v, explicit)
	}
	if info := b.registry.lookup(t); info != nil {
		return b.newEnum(info, v, explicit)
	}
	switch {
	case t.Kind() == reflect.Interface && t.NumMethod() == 0:
		return b.newDynamic(t, v, explicit)
	case t.Kind() == reflect.Pointer:
		return b.newOption(t, v, explicit)
	case hasCodec(t):
		return b.newLeaf(t, v, explicit)
	}
	switch t.Kind() {
	case reflect.Struct:
		return b.newStruct(t, v, explicit)
	case reflect.Array:
		return b.newArray(t, v, explicit)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return b.newLeaf(t, v, explicit)
		}
		return b.newSlice(t, v, explicit)
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return b.newMap(t, v, explicit)
		}
		return b.newLeaf(t, v, explicit)
	default:
		return b.newLeaf(t, v, explicit)
	}
}

// defaultValue returns a settable default for t: the registered default for
// enums, SetDefaults for Defaulter types, the zero value otherwise.
func (b *builder) defaultValue(t reflect.Type) reflect.Value {
	if info := b.registry.lookup(t); info != nil {
		return cloneValue(info.def)
	}
	ptr := reflect.New(t)
	if defaulter, ok := ptr.Interface().(Defaulter); ok {
		defaulter.SetDefaults()
	}
	return ptr.Elem()
}

func (b *builder) variantDefault(info *enumInfo, variant *variantInfo) reflect.Value {
	if variant == info.defaultVariant() {
		return cloneValue(info.def.Elem())
	}
	return b.defaultValue(variant.typ)
}

func hasCodec(t reflect.Type) bool {
	ptr := reflect.PointerTo(t)
	return t.Implements(jsonMarshalerType) || ptr.Implements(jsonMarshalerType) ||
		t.Implements(textMarshalerType) || ptr.Implements(textMarshalerType)
}

// conform returns v as a value of type t. Invalid values become the zero value.
func conform(t reflect.Type, v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(t)
	}
	if v.Type() == t {
		return v
	}
	out := reflect.New(t).Elem()
	switch {
	case v.Type().AssignableTo(t):
		out.Set(v)
	case v.Type().ConvertibleTo(t):
		out.Set(v.Convert(t))
	default:
		panic(fmt.Sprintf("overlay: cannot use %v as %v", v.Type(), t))
	}
	return out
}

func cloneValue(v reflect.Value) reflect.Value {
	return layering.CloneValue(v)
}
