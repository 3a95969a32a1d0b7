package state

import (
	"context"
	"fmt"

	overlay "github.com/goliatone/go-overlay"
	"github.com/goliatone/go-overlay/pkg/activity"
)

// Resolve loads the documents of scopes and merges them. Scopes without a
// stored document are skipped.
func (r Resolver[T]) Resolve(ctx context.Context, domain string, scopes ...overlay.Scope) (*overlay.Overlay[T], error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("state: at least one scope is required")
	}

	layers, err := r.loadLayers(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("state: no layers found for domain %q", domain)
	}
	return r.merge(ctx, layers)
}

// ResolveWithDefaults is Resolve with defaults applied as the weakest layer,
// under the reserved scope name "defaults".
func (r Resolver[T]) ResolveWithDefaults(ctx context.Context, domain string, defaults T, scopes ...overlay.Scope) (*overlay.Overlay[T], error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}

	prioritySet := make(map[int]struct{}, len(scopes)+1)
	minPriority := 0
	if len(scopes) > 0 {
		minPriority = scopes[0].Priority
	}
	for _, scope := range scopes {
		if scope.Name == "defaults" {
			return nil, fmt.Errorf("state: scope name %q is reserved", "defaults")
		}
		prioritySet[scope.Priority] = struct{}{}
		if scope.Priority < minPriority {
			minPriority = scope.Priority
		}
	}

	defaultsPriority := 0
	if len(scopes) > 0 {
		defaultsPriority = minPriority - 1
		for {
			if _, ok := prioritySet[defaultsPriority]; !ok {
				break
			}
			defaultsPriority--
		}
	}

	layers, err := r.loadLayers(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}

	defaultsScope := overlay.NewScope("defaults", defaultsPriority, overlay.WithScopeLabel("Defaults"))
	layers = append(layers, overlay.NewLayer(defaultsScope, overlay.Explicit(defaults, r.Options...)))
	return r.merge(ctx, layers)
}

// Mutate loads one document, applies fn, validates the result, saves it and
// returns the single-layer merge of the saved document. A missing document
// starts from the default of T. A non-empty meta.ETag must match the stored
// one.
func (r Resolver[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (*overlay.Overlay[T], Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	if ref.Domain == "" {
		return nil, Meta{}, fmt.Errorf("state: domain is required")
	}
	if ref.Scope.Name == "" {
		return nil, Meta{}, fmt.Errorf("state: scope name is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}

	doc, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	if !ok || doc == nil {
		doc = overlay.Default[T](r.Options...)
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	var before map[string]any
	if ok {
		if before, err = doc.ExplicitDocument(); err != nil {
			return nil, loadedMeta, fmt.Errorf("state: encode %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
		}
	}

	if err := fn(doc); err != nil {
		return nil, loadedMeta, err
	}
	if err := doc.Validate(); err != nil {
		return nil, loadedMeta, err
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	savedMeta, err := r.Store.Save(ctx, ref, doc, saveMeta)
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: save %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}

	if len(r.Hooks) > 0 {
		if err := r.notifyMutation(ctx, ref, doc, before, !ok, savedMeta); err != nil {
			return nil, savedMeta, err
		}
	}

	layer := overlay.NewLayer(ref.Scope, doc, overlay.WithSnapshotID[T](savedMeta.SnapshotID))
	merged, err := r.merge(ctx, []overlay.Layer[T]{layer})
	if err != nil {
		return nil, savedMeta, err
	}
	return merged, savedMeta, nil
}

func (r Resolver[T]) loadLayers(ctx context.Context, domain string, scopes []overlay.Scope) ([]overlay.Layer[T], error) {
	layers := make([]overlay.Layer[T], 0, len(scopes)+1)
	for _, scope := range scopes {
		doc, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Scope: scope})
		if err != nil {
			return nil, fmt.Errorf("state: load %q for scope %q: %w", domain, scope.Name, err)
		}
		if !ok {
			continue
		}
		layers = append(layers, overlay.NewLayer(scope, doc, overlay.WithSnapshotID[T](meta.SnapshotID)))
	}
	return layers, nil
}

func (r Resolver[T]) merge(ctx context.Context, layers []overlay.Layer[T]) (*overlay.Overlay[T], error) {
	stack, err := overlay.NewStack(layers...)
	if err != nil {
		return nil, fmt.Errorf("state: stack: %w", err)
	}
	opts := append([]overlay.Option{overlay.WithScopeSchema(true)}, r.Options...)
	if len(r.Hooks) > 0 {
		opts = append(opts, overlay.WithActivityHooks(r.Hooks))
		return stack.MergeContext(ctx, opts...)
	}
	return stack.Merge(opts...)
}

// notifyMutation reports the saved document with the explicit positions the
// mutation changed.
func (r Resolver[T]) notifyMutation(ctx context.Context, ref Ref, doc *overlay.Overlay[T], before map[string]any, created bool, meta Meta) error {
	after, err := doc.ExplicitDocument()
	if err != nil {
		return fmt.Errorf("state: encode %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	input := activity.DocumentEventInput{
		ObjectID:      ref.Domain,
		ExplicitPaths: doc.ExplicitPaths(),
		Changes:       activity.DiffDocuments(before, after),
		Scope:         scopeContext(ref.Scope, meta.SnapshotID),
	}
	if input.ExplicitPaths == nil {
		input.ExplicitPaths = []string{}
	}
	if id, err := ref.Identifier(); err == nil {
		input.ObjectID = id
	}
	event := activity.BuildDocumentUpdatedEvent(input)
	if created {
		event = activity.BuildDocumentCreatedEvent(input)
	}
	if err := r.Hooks.Notify(ctx, event); err != nil {
		return fmt.Errorf("state: notify %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	return nil
}

func scopeContext(scope overlay.Scope, snapshotID string) activity.ScopeContext {
	var metadata map[string]any
	if len(scope.Metadata) > 0 {
		metadata = make(map[string]any, len(scope.Metadata))
		for key, value := range scope.Metadata {
			metadata[key] = value
		}
	}
	return activity.ScopeContext{
		Name:       scope.Name,
		Label:      scope.Label,
		Priority:   scope.Priority,
		Metadata:   metadata,
		SnapshotID: snapshotID,
	}
}
