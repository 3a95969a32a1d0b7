package overlay

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
)

// MapNode mirrors a map with string keys. Entries are visited and encoded in
// sorted key order.
type MapNode struct {
	typ     reflect.Type
	entries map[string]Node
	isNil   bool
	b       *builder
}

func (b *builder) newMap(t reflect.Type, v reflect.Value, explicit bool) *MapNode {
	n := &MapNode{typ: t, b: b}
	n.Replace(v, explicit)
	return n
}

func (n *MapNode) Kind() Kind         { return KindMap }
func (n *MapNode) Type() reflect.Type { return n.typ }
func (n *MapNode) Len() int           { return len(n.entries) }

// Keys returns the entry keys in sorted order.
func (n *MapNode) Keys() []string { return sortedKeys(n.entries) }

// Get returns the overlay stored under key.
func (n *MapNode) Get(key string) (Node, bool) {
	node, ok := n.entries[key]
	return node, ok
}

// Set stores v under key stamped with explicit, replacing any previous entry.
func (n *MapNode) Set(key string, v reflect.Value, explicit bool) {
	if n.entries == nil {
		n.entries = make(map[string]Node)
	}
	n.entries[key] = n.b.build(n.typ.Elem(), cloneValue(v), explicit)
	n.isNil = false
}

// Delete removes key.
func (n *MapNode) Delete(key string) {
	delete(n.entries, key)
}

// entry returns the node under key, or a detached implicit default that
// decode stores once it succeeds.
func (n *MapNode) entry(key string) (Node, bool) {
	if node, ok := n.entries[key]; ok {
		return node, true
	}
	elem := n.typ.Elem()
	return n.b.build(elem, n.b.defaultValue(elem), false), false
}

func (n *MapNode) Explicit() bool {
	for _, node := range n.entries {
		if node.Explicit() {
			return true
		}
	}
	return false
}

func (n *MapNode) Value() reflect.Value {
	if n.isNil && len(n.entries) == 0 {
		return reflect.Zero(n.typ)
	}
	out := reflect.MakeMapWithSize(n.typ, len(n.entries))
	for key, node := range n.entries {
		out.SetMapIndex(reflect.ValueOf(key).Convert(n.typ.Key()), node.Value())
	}
	return out
}

func (n *MapNode) Replace(v reflect.Value, explicit bool) {
	v = conform(n.typ, v)
	n.isNil = v.IsNil()
	n.entries = make(map[string]Node, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		n.entries[iter.Key().String()] = n.b.build(n.typ.Elem(), iter.Value(), explicit)
	}
}

func (n *MapNode) encode(buf *bytes.Buffer, st *encodeState) error {
	buf.WriteByte('{')
	first := true
	for _, key := range n.Keys() {
		node := n.entries[key]
		if !st.full && !node.Explicit() {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeKey(buf, key)
		st.push(key)
		err := node.encode(buf, st)
		st.pop()
		if err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (n *MapNode) decode(raw json.RawMessage, st *decodeState) error {
	entries, err := st.object(raw, n.typ)
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(entries) {
		node, stored := n.entry(key)
		st.push(key)
		err := st.child(node, entries[key], false)
		st.pop()
		if err != nil {
			return err
		}
		if !stored {
			n.put(key, node)
		}
		n.isNil = false
	}
	return nil
}

func (n *MapNode) put(key string, node Node) {
	if n.entries == nil {
		n.entries = make(map[string]Node)
	}
	n.entries[key] = node
	n.isNil = false
}

func (n *MapNode) visit(ctx any) {
	for _, key := range n.Keys() {
		n.entries[key].visit(ctx)
	}
}

func (n *MapNode) children() []child {
	keys := n.Keys()
	out := make([]child, len(keys))
	for i, key := range keys {
		out[i] = child{segment: key, node: n.entries[key]}
	}
	return out
}

func (n *MapNode) clone() Node {
	out := &MapNode{typ: n.typ, isNil: n.isNil, b: n.b}
	if n.entries != nil {
		out.entries = make(map[string]Node, len(n.entries))
		for key, node := range n.entries {
			out.entries[key] = node.clone()
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
