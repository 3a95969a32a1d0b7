package overlay

import (
	"encoding/json"
	"fmt"
	"testing"
)

type traceSnapshot struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Limits map[string]int    `json:"limits"`
}

func traceLayer(t testing.TB, scope Scope, data string, snapshotID string) Layer[traceSnapshot] {
	t.Helper()
	layer, err := DecodeLayer[traceSnapshot](scope, []byte(data))
	if err != nil {
		t.Fatalf("decode layer %s: %v", scope.Name, err)
	}
	layer.SnapshotID = snapshotID
	return layer
}

func TestResolveWithTraceReturnsLayerProvenance(t *testing.T) {
	defaults := traceLayer(t, NewScope("defaults", 10),
		`{"name":"defaults","labels":{"env":"prod"},"limits":{"daily":100}}`, "defaults/1")
	user := traceLayer(t, NewScope("user", 20),
		`{"labels":{"env":"staging","team":"core"},"limits":{"daily":80}}`, "user/5")

	stack, err := NewStack(defaults, user)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	value, trace, err := merged.ResolveWithTrace("labels.env")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "staging" {
		t.Fatalf("expected user override, got %v", value)
	}
	if len(trace.Layers) != 2 {
		t.Fatalf("expected 2 provenance entries, got %d", len(trace.Layers))
	}
	if !trace.Layers[0].Found || trace.Layers[0].Scope.Name != "user" || trace.Layers[0].SnapshotID != "user/5" {
		t.Fatalf("expected first layer to be user and found, got %+v", trace.Layers[0])
	}
	if !trace.Layers[1].Found || trace.Layers[1].Value != "prod" {
		t.Fatalf("expected defaults layer to provide fallback value, got %+v", trace.Layers[1])
	}

	_, nameTrace, err := merged.ResolveWithTrace("name")
	if err != nil {
		t.Fatalf("resolve name: %v", err)
	}
	if nameTrace.Layers[0].Found || nameTrace.Layers[0].Value != nil {
		t.Fatalf("expected user layer to not set name, got %+v", nameTrace.Layers[0])
	}
	if !nameTrace.Layers[1].Found || nameTrace.Layers[1].Value != "defaults" {
		t.Fatalf("expected defaults to set name, got %+v", nameTrace.Layers[1])
	}

	if _, _, err := merged.ResolveWithTrace("labels.missing"); err == nil {
		t.Fatalf("expected unknown path to fail")
	}
}

func TestResolveWithTraceWithoutStack(t *testing.T) {
	o := Explicit(map[string]any{
		"feature": map[string]any{"enabled": true},
	}, WithScope(NewScope("tenant", ScopePriorityTenant)))
	value, trace, err := o.ResolveWithTrace("feature.enabled")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != true {
		t.Fatalf("expected true, got %v", value)
	}
	if len(trace.Layers) != 1 || !trace.Layers[0].Found || trace.Layers[0].Scope.Name != "tenant" {
		t.Fatalf("expected single synthetic layer, got %+v", trace.Layers)
	}

	implicit := Implicit(map[string]any{"feature": map[string]any{"enabled": true}})
	_, trace, err = implicit.ResolveWithTrace("feature.enabled")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if trace.Layers[0].Found {
		t.Fatalf("expected implicit value to be reported as not found")
	}
}

func TestFlattenWithProvenanceEnumeratesPaths(t *testing.T) {
	defaults := traceLayer(t, NewScope("defaults", 10), `{"limits":{"daily":100,"monthly":500}}`, "")
	user := traceLayer(t, NewScope("user", 20), `{"limits":{"daily":50}}`, "")
	stack, err := NewStack(defaults, user)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	results, err := merged.FlattenWithProvenance()
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	byPath := make(map[string]Provenance, len(results))
	for _, prov := range results {
		byPath[prov.Path] = prov
	}
	daily, ok := byPath["limits.daily"]
	if !ok || !daily.Found || daily.Scope.Name != "user" || daily.Value != 50 {
		t.Fatalf("daily limit should be attributed to user layer, got %+v (results=%+v)", daily, results)
	}
	monthly := byPath["limits.monthly"]
	if monthly.Scope.Name != "defaults" || monthly.Value != 500 {
		t.Fatalf("monthly limit should be attributed to defaults, got %+v", monthly)
	}
	name, ok := byPath["name"]
	if !ok || name.Found || name.Scope.Name != "" {
		t.Fatalf("expected untouched name without source, got %+v", name)
	}
}

func TestTraceJSONRoundTrip(t *testing.T) {
	trace := Trace{
		Path: "feature.enabled",
		Layers: []Provenance{{
			Scope:      Scope{Name: "user", Priority: ScopePriorityUser},
			SnapshotID: "user/1",
			Path:       "feature.enabled",
			Value:      true,
			Found:      true,
		}},
	}
	raw, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !json.Valid(raw) {
		t.Fatalf("expected valid json, got %s", raw)
	}
	restore, err := TraceFromJSON(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restore.Path != trace.Path || len(restore.Layers) != len(trace.Layers) {
		t.Fatalf("round trip mismatch: %+v vs %+v", restore, trace)
	}
	if restore.Layers[0].Scope.Priority != ScopePriorityUser || restore.Layers[0].SnapshotID != "user/1" {
		t.Fatalf("expected scope details to survive, got %+v", restore.Layers[0])
	}
	if _, err := TraceFromJSON([]byte(`{`)); err == nil {
		t.Fatalf("expected invalid payload to fail")
	}
}

func BenchmarkResolveWithTrace(b *testing.B) {
	layers := make([]Layer[traceSnapshot], 10)
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("layer_%d", i)
		data := fmt.Sprintf(`{"name":%q,"labels":{"env":%q},"limits":{"daily":%d,"weekly":%d}}`,
			name, name, 100-i, 700-(i*10))
		layers[i] = traceLayer(b, NewScope(name, 100-i), data, "")
	}
	stack, err := NewStack(layers...)
	if err != nil {
		b.Fatalf("stack: %v", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		b.Fatalf("merge: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := merged.ResolveWithTrace("limits.weekly"); err != nil {
			b.Fatalf("resolve: %v", err)
		}
	}
}
