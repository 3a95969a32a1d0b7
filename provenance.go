package overlay

import "github.com/goliatone/go-overlay/layering"

// Source identifies the layer that last wrote a leaf.
type Source struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// IsZero reports whether no layer has been recorded.
func (s Source) IsZero() bool {
	return s.Scope.isZero() && s.SnapshotID == ""
}

// SourcedLeaf is a leaf that remembers the Source handed to it during Visit.
type SourcedLeaf struct {
	value    any
	explicit bool
	source   Source
}

func (l *SourcedLeaf) Value() any     { return l.value }
func (l *SourcedLeaf) Explicit() bool { return l.explicit }

func (l *SourcedLeaf) Set(value any, explicit bool) {
	l.value = value
	l.explicit = explicit
}

func (l *SourcedLeaf) Clone() Leaf {
	return &SourcedLeaf{
		value:    layering.Clone(l.value),
		explicit: l.explicit,
		source:   Source{Scope: l.source.Scope.clone(), SnapshotID: l.source.SnapshotID},
	}
}

// Source returns the recorded source.
func (l *SourcedLeaf) Source() Source {
	return l.source
}

// ReceiveContext records ctx when it is a Source or a Scope. Other contexts
// are ignored.
func (l *SourcedLeaf) ReceiveContext(ctx any) {
	if source, ok := sourceFromContext(ctx); ok {
		l.source = source
	}
}

// ProvenanceStrategy builds SourcedLeaf values. Stack.Merge uses it so every
// leaf of the merged overlay can report which layer produced it.
var ProvenanceStrategy Strategy = StrategyFunc(func(value any, explicit bool) Leaf {
	return &SourcedLeaf{value: value, explicit: explicit}
})

// SourceOf returns the Source recorded by the leaf at n, if any. Option and
// unit-variant positions report the context they received while absent or
// selected.
func SourceOf(n Node) (Source, bool) {
	switch node := n.(type) {
	case *LeafNode:
		if sourced, ok := node.leaf.(interface{ Source() Source }); ok {
			return sourced.Source(), true
		}
	case *OptionNode:
		if node.inner == nil {
			return sourceFromContext(node.ctx)
		}
	case *EnumNode:
		if node.marker != nil {
			return sourceFromContext(node.marker.ctx)
		}
	}
	return Source{}, false
}

func sourceFromContext(ctx any) (Source, bool) {
	switch value := ctx.(type) {
	case Source:
		return value, true
	case *Source:
		if value != nil {
			return *value, true
		}
	case Scope:
		return Source{Scope: value.clone()}, true
	}
	return Source{}, false
}
