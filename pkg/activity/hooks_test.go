package activity

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	recipients := []string{" a ", "b "}
	paths := []string{"features.b", "features.a", "features.b"}
	evt := Event{
		Verb:           " create ",
		ActorID:        " actor ",
		UserID:         " user ",
		TenantID:       " tenant ",
		ObjectType:     " overlay ",
		ObjectID:       " 42 ",
		Channel:        " overlay ",
		DefinitionCode: " def ",
		Recipients:     recipients,
		ExplicitPaths:  paths,
		Metadata:       meta,
	}

	got := evt.Normalize()

	if got.Verb != "create" || got.ObjectType != "overlay" || got.ObjectID != "42" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.TenantID != "tenant" || got.Channel != "overlay" || got.DefinitionCode != "def" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	if want := []string{"features.a", "features.b"}; !reflect.DeepEqual(got.ExplicitPaths, want) {
		t.Fatalf("expected sorted unique paths %v, got %v", want, got.ExplicitPaths)
	}
	if paths[0] != "features.b" {
		t.Fatalf("expected input paths untouched: %v", paths)
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
	got.Recipients[0] = "changed"
	if recipients[0] != " a " {
		t.Fatalf("expected original recipients untouched: %+v", recipients)
	}
}

func TestHooksNotifySkipsInvalidEvents(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: "update", ObjectType: " "}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if capture.Len() != 0 {
		t.Fatalf("expected no events captured, got %d", capture.Len())
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1, boom2 := errors.New("boom1"), errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(_ context.Context, _ Event) error { return boom1 }),
		nil,
		HookFunc(func(_ context.Context, _ Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: "update", ObjectType: "overlay", ObjectID: "1"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if capture.Len() != 1 {
		t.Fatalf("expected event to be captured once, got %d", capture.Len())
	}
	if got := hooks.Compact(); len(got) != 4 {
		t.Fatalf("expected nil hook dropped, got %d hooks", len(got))
	}
	if got := (Hooks{nil}).Compact(); got != nil {
		t.Fatalf("expected nil for all-nil hooks, got %v", got)
	}
}

func TestNotifyKeepsOccurredAt(t *testing.T) {
	capture := &CaptureHook{}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := Hooks{capture}.Notify(context.Background(), Event{Verb: "create", ObjectType: "overlay", ObjectID: "1", OccurredAt: at})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := capture.Events()[0].OccurredAt; !got.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", got)
	}
}

func TestTouching(t *testing.T) {
	event := Event{
		ExplicitPaths: []string{"features.dark_mode"},
		Changes:       []Change{{Path: "limits.max", Old: 1.0, New: 2.0}},
	}
	cases := []struct {
		prefixes []string
		expect   bool
	}{
		{prefixes: []string{"features"}, expect: true},
		{prefixes: []string{"features.dark_mode"}, expect: true},
		{prefixes: []string{"features.dark"}, expect: false},
		{prefixes: []string{"limits"}, expect: true},
		{prefixes: []string{"quota", "limits.max"}, expect: true},
		{prefixes: []string{"quota"}, expect: false},
		{prefixes: nil, expect: false},
	}
	for _, tc := range cases {
		if got := Touching(tc.prefixes...)(event); got != tc.expect {
			t.Fatalf("expected Touching(%v) = %v, got %v", tc.prefixes, tc.expect, got)
		}
	}
	if !event.Touches("") {
		t.Fatalf("expected empty prefix to match an event with paths")
	}
	if (Event{}).Touches("") {
		t.Fatalf("expected empty prefix to reject an event without paths")
	}
}

func TestFilterWrapsHook(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{Filter(capture, LayerEvents)}

	document := BuildDocumentUpdatedEvent(DocumentEventInput{ObjectID: "settings"})
	layer := BuildLayerAppliedEvent(DocumentEventInput{Scope: ScopeContext{Name: "tenant", SnapshotID: "snap-1"}})
	for _, event := range []Event{document, layer} {
		if err := hooks.Notify(context.Background(), event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if got := capture.Verbs(); !reflect.DeepEqual(got, []string{VerbLayerApplied}) {
		t.Fatalf("expected only the layer event, got %v", got)
	}

	capture.Reset()
	if err := Filter(capture, nil).Notify(context.Background(), document); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if capture.Len() != 1 || !DocumentEvents(capture.Events()[0]) {
		t.Fatalf("expected nil predicate to pass the document event, got %v", capture.Verbs())
	}
	if Changed(document) {
		t.Fatalf("expected event without changes to be rejected by Changed")
	}
}

func TestCaptureExplicitPaths(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	events := []Event{
		BuildLayerAppliedEvent(DocumentEventInput{Scope: ScopeContext{Name: "system", SnapshotID: "s1"}, ExplicitPaths: []string{"b", "a"}}),
		BuildDocumentUpdatedEvent(DocumentEventInput{ObjectID: "settings", ExplicitPaths: []string{}}),
	}
	for _, event := range events {
		if err := hooks.Notify(context.Background(), event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	want := map[string][]string{"system": {"a", "b"}, "settings": {}}
	if got := capture.ExplicitPaths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
