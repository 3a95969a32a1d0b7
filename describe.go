package overlay

import (
	"reflect"
	"strconv"
)

// The accessors below expose the static shape of a tree so schema generators
// can describe positions that currently hold no value.

// FieldName returns the wire name of the i-th overlaid field. Tuple fields
// are named by position.
func (n *StructNode) FieldName(i int) string {
	if n.info.tuple {
		return strconv.Itoa(i)
	}
	return n.info.fields[i].name
}

// StructField returns the Go declaration of the i-th overlaid field.
func (n *StructNode) StructField(i int) reflect.StructField {
	return n.typ.Field(n.info.fields[i].index)
}

// Passive reports whether the i-th field is excluded from explicitness.
func (n *StructNode) Passive(i int) bool { return n.info.fields[i].passive }

// Variants returns the registered variant names in registration order.
func (n *EnumNode) Variants() []string {
	names := make([]string, len(n.info.variants))
	for i, variant := range n.info.variants {
		names[i] = variant.name
	}
	return names
}

// Template returns an implicit overlay of the named variant holding its
// default value. Unit variants report a nil node.
func (n *EnumNode) Template(name string) (Node, bool) {
	variant, ok := n.info.byName[name]
	if !ok {
		return nil, false
	}
	if variant.unit() {
		return nil, true
	}
	return n.b.build(variant.typ, n.b.variantDefault(n.info, variant), false), true
}

// Template returns an implicit overlay of a default element.
func (n *SliceNode) Template() Node { return n.b.template(n.typ.Elem()) }

// Template returns an implicit overlay of a default element.
func (n *ArrayNode) Template() Node { return n.b.template(n.typ.Elem()) }

// Template returns an implicit overlay of a default entry.
func (n *MapNode) Template() Node { return n.b.template(n.typ.Elem()) }

// Template returns the present inner overlay or an implicit default one.
func (n *OptionNode) Template() Node {
	if n.inner != nil {
		return n.inner
	}
	return n.b.template(n.typ.Elem())
}

func (b *builder) template(t reflect.Type) Node {
	return b.build(t, b.defaultValue(t), false)
}
