package overlay

import (
	"sync/atomic"
	"testing"
)

// auditLeaf carries a revision counter next to the value.
type auditLeaf struct {
	value    any
	explicit bool
	writes   int
	ctx      any
}

func (l *auditLeaf) Value() any     { return l.value }
func (l *auditLeaf) Explicit() bool { return l.explicit }

func (l *auditLeaf) Set(value any, explicit bool) {
	l.value = value
	l.explicit = explicit
	l.writes++
}

func (l *auditLeaf) Clone() Leaf {
	clone := *l
	return &clone
}

func (l *auditLeaf) ReceiveContext(ctx any) { l.ctx = ctx }

func auditStrategy(created *atomic.Int64) Strategy {
	return StrategyFunc(func(value any, explicit bool) Leaf {
		created.Add(1)
		return &auditLeaf{value: value, explicit: explicit}
	})
}

func leafOf(t *testing.T, root Node, path string) Leaf {
	t.Helper()
	node, err := Lookup(root, path)
	if err != nil {
		t.Fatalf("lookup %s: %v", path, err)
	}
	leaf, ok := node.(*LeafNode)
	if !ok {
		t.Fatalf("expected leaf at %s, got %T", path, node)
	}
	return leaf.Leaf()
}

func TestCustomStrategyLeaves(t *testing.T) {
	var created atomic.Int64
	o := Default[nestedConfig](WithStrategy(auditStrategy(&created)))
	if created.Load() != 2 {
		t.Fatalf("expected one leaf per field, got %d", created.Load())
	}
	if err := o.ApplyJSON([]byte(`{"count":4}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	leaf, ok := leafOf(t, o.Root(), "count").(*auditLeaf)
	if !ok {
		t.Fatalf("expected auditLeaf, got %T", leafOf(t, o.Root(), "count"))
	}
	if leaf.writes != 1 || leaf.Value() != 4 || !leaf.Explicit() {
		t.Fatalf("unexpected leaf state %+v", leaf)
	}

	o.Visit("layer-a")
	if leaf.ctx != "layer-a" {
		t.Fatalf("expected visit context to reach the leaf, got %v", leaf.ctx)
	}

	clone := o.Clone()
	cloned := leafOf(t, clone.Root(), "count").(*auditLeaf)
	cloned.Set(5, true)
	if leaf.Value() != 4 {
		t.Fatalf("expected clone leaves to be independent")
	}
}

func TestStrategySurvivesDecodeOfNewPositions(t *testing.T) {
	var created atomic.Int64
	o := Default[map[string]int](WithStrategy(auditStrategy(&created)))
	if err := o.ApplyJSON([]byte(`{"a":1,"b":2}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, key := range []string{"a", "b"} {
		if _, ok := leafOf(t, o.Root(), key).(*auditLeaf); !ok {
			t.Fatalf("expected decoded entry %s to use the configured strategy", key)
		}
	}
}

func TestSetDefaultStrategy(t *testing.T) {
	var created atomic.Int64
	previous := SetDefaultStrategy(auditStrategy(&created))
	defer SetDefaultStrategy(previous)

	o := Implicit(nestedConfig{Count: 1})
	if _, ok := leafOf(t, o.Root(), "count").(*auditLeaf); !ok {
		t.Fatalf("expected process-wide strategy to apply")
	}

	plain := Implicit(nestedConfig{}, WithStrategy(DefaultStrategy))
	if _, ok := leafOf(t, plain.Root(), "count").(*PlainLeaf); !ok {
		t.Fatalf("expected WithStrategy to override the process-wide strategy")
	}

	if restored := SetDefaultStrategy(nil); restored == nil {
		t.Fatalf("expected previous strategy to be returned")
	}
	if _, ok := leafOf(t, Implicit(nestedConfig{}).Root(), "count").(*PlainLeaf); !ok {
		t.Fatalf("expected nil to restore DefaultStrategy")
	}
}

func TestPlainLeafClone(t *testing.T) {
	leaf := NewPlainLeaf(map[string]any{"a": 1}, true)
	clone := leaf.Clone()
	clone.Value().(map[string]any)["a"] = 2
	if leaf.Value().(map[string]any)["a"] != 1 {
		t.Fatalf("expected clone to deep copy the value")
	}
	clone.Set(nil, false)
	if !leaf.Explicit() {
		t.Fatalf("expected original flag untouched")
	}
}

func TestProvenanceStrategySources(t *testing.T) {
	o := Explicit(optionConfig{}, WithStrategy(ProvenanceStrategy))
	source := Source{Scope: NewScope("org", ScopePriorityOrg), SnapshotID: "org-7"}
	o.Visit(source)

	node, err := o.Lookup("opt")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	got, ok := SourceOf(node)
	if !ok || got.Scope.Name != "org" || got.SnapshotID != "org-7" {
		t.Fatalf("expected absent option to record the source, got %+v", got)
	}

	leaf := &SourcedLeaf{}
	leaf.ReceiveContext("not a source")
	if !leaf.Source().IsZero() {
		t.Fatalf("expected unrelated contexts to be ignored")
	}
	leaf.ReceiveContext(&source)
	if leaf.Source().SnapshotID != "org-7" {
		t.Fatalf("expected pointer sources to be accepted")
	}
}
