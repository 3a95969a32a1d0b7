package overlay

import "reflect"

// Merge applies the explicit parts of src onto dst. Explicit leaves, unit
// variants and absent options overwrite; structs, arrays and maps recurse;
// slices and variant switches replace the destination wholesale. Every
// position written receives ctx through Visit semantics. Both nodes must
// mirror the same type.
func Merge(dst, src Node, ctx any) {
	if dst == nil || src == nil || dst.Type() != src.Type() {
		return
	}
	apply(dst, src, ctx)
}

func apply(dst, src Node, ctx any) {
	if !touched(src) {
		return
	}
	switch s := src.(type) {
	case *LeafNode:
		d := dst.(*LeafNode)
		d.leaf.Set(layeredValue(s.leaf.Value()), true)
		d.visit(ctx)
	case *OptionNode:
		d := dst.(*OptionNode)
		if s.inner == nil {
			d.SetAbsent(true)
			d.ctx = ctx
			return
		}
		if d.inner == nil {
			d.ensure().visit(ctx)
		}
		apply(d.inner, s.inner, ctx)
	case *StructNode:
		d := dst.(*StructNode)
		for i := range s.fields {
			apply(d.fields[i], s.fields[i], ctx)
		}
	case *ArrayNode:
		d := dst.(*ArrayNode)
		for i := range s.elems {
			apply(d.elems[i], s.elems[i], ctx)
		}
	case *MapNode:
		d := dst.(*MapNode)
		for _, key := range s.Keys() {
			entry := s.entries[key]
			if !touched(entry) {
				continue
			}
			if node, exists := d.entry(key); !exists {
				node.visit(ctx)
				d.put(key, node)
			}
			apply(d.entries[key], entry, ctx)
		}
	case *SliceNode:
		d := dst.(*SliceNode)
		elemType := d.typ.Elem()
		elems := make([]Node, len(s.elems))
		for i, elem := range s.elems {
			elems[i] = d.b.build(elemType, elem.Value(), false)
			elems[i].visit(ctx)
			apply(elems[i], elem, ctx)
		}
		d.elems = elems
		d.isNil = s.isNil
	case *EnumNode:
		d := dst.(*EnumNode)
		if d.variant != s.variant {
			d.reset(s.variant)
			d.visit(ctx)
		}
		if s.marker != nil {
			d.marker.Set(true)
			d.marker.ReceiveContext(ctx)
			return
		}
		apply(d.payload, s.payload, ctx)
	case *DynamicNode:
		d := dst.(*DynamicNode)
		dm, dok := d.inner.(*MapNode)
		sm, sok := s.inner.(*MapNode)
		if dok && sok && dm.typ == sm.typ {
			apply(dm, sm, ctx)
			return
		}
		if s.inner.Type().Kind() == reflect.Interface {
			d.inner = d.b.newLeaf(s.inner.Type(), s.inner.Value(), false)
		} else {
			d.inner = d.b.build(s.inner.Type(), s.inner.Value(), false)
		}
		d.inner.visit(ctx)
		apply(d.inner, s.inner, ctx)
	}
}

// touched reports whether any position below n is explicit, passive fields
// included.
func touched(n Node) bool {
	switch node := n.(type) {
	case *LeafNode, *OptionNode, *EnumNode:
		if node.Explicit() {
			return true
		}
	}
	for _, c := range n.children() {
		if touched(c.node) {
			return true
		}
	}
	return false
}

func layeredValue(value any) any {
	if value == nil {
		return nil
	}
	return cloneValue(reflect.ValueOf(value)).Interface()
}
