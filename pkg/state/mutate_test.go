package state_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	overlay "github.com/goliatone/go-overlay"
	"github.com/goliatone/go-overlay/pkg/activity"
	"github.com/goliatone/go-overlay/pkg/state"
)

type mutateStore[T any] struct {
	loadDoc  *overlay.Overlay[T]
	loadMeta state.Meta
	loadOK   bool
	loadErr  error

	saveCalls  int
	savedRef   state.Ref
	savedMeta  state.Meta
	savedDoc   *overlay.Overlay[T]
	saveReturn state.Meta
	saveErr    error
}

func (s *mutateStore[T]) Load(_ context.Context, ref state.Ref) (*overlay.Overlay[T], state.Meta, bool, error) {
	if s.loadErr != nil {
		return nil, state.Meta{}, false, s.loadErr
	}
	if s.loadDoc == nil {
		return nil, s.loadMeta, s.loadOK, nil
	}
	return s.loadDoc.Clone(), s.loadMeta, s.loadOK, nil
}

func (s *mutateStore[T]) Save(_ context.Context, ref state.Ref, doc *overlay.Overlay[T], meta state.Meta) (state.Meta, error) {
	s.saveCalls++
	s.savedRef = ref
	s.savedMeta = meta
	s.savedDoc = doc.Clone()
	if s.saveErr != nil {
		return state.Meta{}, s.saveErr
	}
	return s.saveReturn, nil
}

type validatingConfig struct {
	Name string `json:"name"`
}

func (c validatingConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func userRef() state.Ref {
	return state.Ref{
		Domain: "notifications",
		Scope:  overlay.NewScope("user", overlay.ScopePriorityUser, overlay.WithScopeMetadata(map[string]any{"user_id": "u42"})),
	}
}

func TestResolverMutateValidationFailureDoesNotSave(t *testing.T) {
	store := &mutateStore[validatingConfig]{
		loadDoc:    overlay.Explicit(validatingConfig{Name: "ok"}),
		loadMeta:   state.Meta{SnapshotID: "snap-1", ETag: "v1"},
		loadOK:     true,
		saveReturn: state.Meta{SnapshotID: "snap-2", ETag: "v2"},
	}

	resolver := state.Resolver[validatingConfig]{Store: store}
	_, _, err := resolver.Mutate(context.Background(), userRef(), state.Meta{ETag: "v1"}, func(doc *overlay.Overlay[validatingConfig]) error {
		doc.SetExplicit(validatingConfig{})
		return nil
	})
	if err == nil || err.Error() != "name is required" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.saveCalls != 0 {
		t.Fatalf("expected no save calls, got %d", store.saveCalls)
	}
}

func TestResolverMutatePropagatesMetaAndSnapshotID(t *testing.T) {
	store := &mutateStore[map[string]any]{
		loadDoc: overlay.Explicit(map[string]any{
			"notifications": map[string]any{
				"email": map[string]any{"enabled": false},
			},
		}),
		loadMeta:   state.Meta{SnapshotID: "snap-old", ETag: "v1"},
		loadOK:     true,
		saveReturn: state.Meta{SnapshotID: "snap-new", ETag: "v2"},
	}

	resolver := state.Resolver[map[string]any]{Store: store}
	merged, gotMeta, err := resolver.Mutate(context.Background(), userRef(), state.Meta{ETag: "v1"}, func(doc *overlay.Overlay[map[string]any]) error {
		node, err := doc.Lookup("notifications.email.enabled")
		if err != nil {
			return err
		}
		node.Replace(reflect.ValueOf(true), true)
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if gotMeta.SnapshotID != "snap-new" || gotMeta.ETag != "v2" {
		t.Fatalf("expected saved meta snap-new/v2, got %q/%q", gotMeta.SnapshotID, gotMeta.ETag)
	}

	if store.saveCalls != 1 {
		t.Fatalf("expected 1 save call, got %d", store.saveCalls)
	}
	if store.savedMeta.SnapshotID != "snap-old" || store.savedMeta.ETag != "v1" {
		t.Fatalf("expected save meta snap-old/v1, got %q/%q", store.savedMeta.SnapshotID, store.savedMeta.ETag)
	}
	saved, err := store.savedDoc.ExplicitDocument()
	if err != nil {
		t.Fatalf("explicit document: %v", err)
	}
	want := map[string]any{"notifications": map[string]any{"email": map[string]any{"enabled": true}}}
	if !reflect.DeepEqual(want, saved) {
		t.Fatalf("expected saved document %v, got %v", want, saved)
	}

	value, trace, err := merged.ResolveWithTrace("notifications.email.enabled")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if value != true {
		t.Fatalf("expected merged value true, got %v", value)
	}
	if len(trace.Layers) != 1 {
		t.Fatalf("expected 1 trace layer, got %d", len(trace.Layers))
	}
	if trace.Layers[0].SnapshotID != "snap-new" || trace.Layers[0].Scope.Name != "user" {
		t.Fatalf("expected trace snapshot=snap-new scope=user, got snapshot=%q scope=%q", trace.Layers[0].SnapshotID, trace.Layers[0].Scope.Name)
	}

	doc, err := merged.Schema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if len(doc.Scopes) != 1 {
		t.Fatalf("expected 1 schema scope, got %d", len(doc.Scopes))
	}
	if doc.Scopes[0].SnapshotID != "snap-new" || doc.Scopes[0].Name != "user" {
		t.Fatalf("expected schema snapshot=snap-new scope=user, got snapshot=%q scope=%q", doc.Scopes[0].SnapshotID, doc.Scopes[0].Name)
	}
}

func TestResolverMutateETagMismatch(t *testing.T) {
	store := &mutateStore[validatingConfig]{
		loadDoc:    overlay.Explicit(validatingConfig{Name: "ok"}),
		loadMeta:   state.Meta{SnapshotID: "snap-1", ETag: "v1"},
		loadOK:     true,
		saveReturn: state.Meta{SnapshotID: "snap-2", ETag: "v2"},
	}

	resolver := state.Resolver[validatingConfig]{Store: store}
	_, _, err := resolver.Mutate(context.Background(), userRef(), state.Meta{ETag: "v2"}, func(doc *overlay.Overlay[validatingConfig]) error {
		doc.SetExplicit(validatingConfig{Name: "still-ok"})
		return nil
	})
	if err == nil || !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
	if store.saveCalls != 0 {
		t.Fatalf("expected no save calls, got %d", store.saveCalls)
	}
}

func TestResolverMutateLoadError(t *testing.T) {
	store := &mutateStore[validatingConfig]{loadErr: errors.New("boom")}
	resolver := state.Resolver[validatingConfig]{Store: store}
	_, _, err := resolver.Mutate(context.Background(), userRef(), state.Meta{}, func(*overlay.Overlay[validatingConfig]) error {
		return nil
	})
	if err == nil || err.Error() != `state: load "notifications" for scope "user": boom` {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
}

func TestResolverMutateMissingDocumentStartsFromDefault(t *testing.T) {
	store := state.NewMemoryStore[validatingConfig]()
	capture := &activity.CaptureHook{}
	resolver := state.Resolver[validatingConfig]{Store: store, Hooks: activity.Hooks{capture}}

	merged, meta, err := resolver.Mutate(context.Background(), userRef(), state.Meta{}, func(doc *overlay.Overlay[validatingConfig]) error {
		node, err := doc.Lookup("name")
		if err != nil {
			return err
		}
		node.Replace(reflect.ValueOf("alerts"), true)
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if meta.SnapshotID == "" || meta.ETag == "" {
		t.Fatalf("expected assigned snapshot id and etag, got %+v", meta)
	}
	if got := merged.Value().Name; got != "alerts" {
		t.Fatalf("expected merged name alerts, got %q", got)
	}

	_, _, err = resolver.Mutate(context.Background(), userRef(), state.Meta{ETag: meta.ETag}, func(doc *overlay.Overlay[validatingConfig]) error {
		doc.SetExplicit(validatingConfig{Name: "digest"})
		return nil
	})
	if err != nil {
		t.Fatalf("second mutate: %v", err)
	}

	var documents []activity.Event
	for _, event := range capture.Events() {
		if activity.DocumentEvents(event) {
			documents = append(documents, event)
		}
	}
	if len(documents) != 2 || documents[0].Verb != activity.VerbDocumentCreated || documents[1].Verb != activity.VerbDocumentUpdated {
		t.Fatalf("expected created then updated events, got %v", capture.Verbs())
	}
	created, updated := documents[0], documents[1]
	if created.ObjectID != "user/u42/notifications" {
		t.Fatalf("expected object id from ref identifier, got %q", created.ObjectID)
	}
	if !reflect.DeepEqual([]string{"name"}, created.ExplicitPaths) {
		t.Fatalf("expected explicit paths [name], got %v", created.ExplicitPaths)
	}
	if want := []activity.Change{{Path: "name", New: "alerts"}}; !reflect.DeepEqual(want, created.Changes) {
		t.Fatalf("expected %v, got %v", want, created.Changes)
	}
	if want := []activity.Change{{Path: "name", Old: "alerts", New: "digest"}}; !reflect.DeepEqual(want, updated.Changes) {
		t.Fatalf("expected %v, got %v", want, updated.Changes)
	}
	if updated.Scope.Name != "user" || updated.Scope.SnapshotID == "" {
		t.Fatalf("expected user scope with snapshot, got %+v", updated.Scope)
	}
}
