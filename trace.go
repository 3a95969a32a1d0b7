package overlay

import (
	"encoding/json"
	"reflect"
)

// Trace captures provenance information for a given path lookup across the
// scoped layers that produced the effective value.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how a specific scope contributed to a traced path.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// ResolveWithTrace returns the merged value at path and, for every layer that
// went into the overlay (strongest first), whether that layer set it
// explicitly. Overlays not produced by Stack.Merge report a single entry for
// the configured scope.
func (o *Overlay[T]) ResolveWithTrace(path string) (any, Trace, error) {
	node, err := o.Lookup(path)
	if err != nil {
		return nil, Trace{}, err
	}
	value := interfaceOf(node.Value())
	trace := Trace{Path: path}

	if len(o.layers) == 0 {
		trace.Layers = []Provenance{{
			Scope: o.cfg.scope.clone(),
			Path:  path,
			Value: value,
			Found: touched(node),
		}}
		return value, trace, nil
	}

	trace.Layers = make([]Provenance, 0, len(o.layers))
	for _, layer := range o.layers {
		entry := Provenance{
			Scope:      layer.Scope.clone(),
			SnapshotID: layer.SnapshotID,
			Path:       path,
		}
		if layerNode, err := Lookup(layer.Root, path); err == nil && touched(layerNode) {
			entry.Found = true
			entry.Value = interfaceOf(layerNode.Value())
		}
		trace.Layers = append(trace.Layers, entry)
	}
	return value, trace, nil
}

// FlattenWithProvenance lists every leaf, unit variant and absent option of
// the overlay with its value and the source that last wrote it. Found reports
// explicitness.
func (o *Overlay[T]) FlattenWithProvenance() ([]Provenance, error) {
	var out []Provenance
	Walk(o.ensure(), func(path string, n Node) bool {
		if !isTerminalPosition(n) {
			return true
		}
		entry := Provenance{Path: path, Found: n.Explicit()}
		if source, ok := SourceOf(n); ok {
			entry.Scope = source.Scope.clone()
			entry.SnapshotID = source.SnapshotID
		}
		if enum, ok := n.(*EnumNode); ok {
			entry.Value = enum.Variant()
		} else {
			entry.Value = interfaceOf(n.Value())
		}
		out = append(out, entry)
		return true
	})
	return out, nil
}

// isTerminalPosition reports whether n carries its own explicitness bit
// instead of deriving it from children.
func isTerminalPosition(n Node) bool {
	switch node := n.(type) {
	case *LeafNode:
		return true
	case *OptionNode:
		return node.inner == nil
	case *EnumNode:
		return node.marker != nil
	}
	return false
}

func interfaceOf(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer || v.Kind() == reflect.Map || v.Kind() == reflect.Slice) && v.IsNil() {
		return nil
	}
	return v.Interface()
}
