package overlay

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Scope models a named precedence bucket (system, tenant, user, etc.). Higher
// priority values represent stronger layers.
type Scope struct {
	Name     string         `json:"name"`
	Label    string         `json:"label,omitempty"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScopeOption configures metadata on Scope creation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	label    string
	metadata map[string]any
}

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.label = label
	}
}

// WithScopeMetadata attaches arbitrary metadata to the scope. The map is copied
// so the resulting Scope remains immutable even if the caller mutates their
// reference.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(cfg *scopeConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// NewScope builds a Scope with the supplied configuration. Validation is
// deferred to Stack construction so callers can assemble scopes before deciding
// precedence.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	cfg := scopeConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Scope{
		Name:     name,
		Label:    cfg.label,
		Priority: priority,
		Metadata: copyMetadata(cfg.metadata),
	}
}

func (s Scope) clone() Scope {
	return Scope{
		Name:     s.Name,
		Label:    s.Label,
		Priority: s.Priority,
		Metadata: copyMetadata(s.Metadata),
	}
}

func (s Scope) isZero() bool {
	return s.Name == "" && s.Label == "" && s.Priority == 0 && len(s.Metadata) == 0
}

// Layer pairs a scope with the overlay document captured for it. Only the
// explicit parts of the overlay contribute to a merge.
type Layer[T any] struct {
	Scope      Scope
	Overlay    *Overlay[T]
	SnapshotID string
}

// LayerOption configures optional metadata for a layer.
type LayerOption[T any] func(*Layer[T])

// WithSnapshotID sets the snapshot identifier used for auditing.
func WithSnapshotID[T any](id string) LayerOption[T] {
	return func(layer *Layer[T]) {
		layer.SnapshotID = id
	}
}

// NewLayer constructs a Layer holding a copy of overlay.
func NewLayer[T any](scope Scope, overlay *Overlay[T], opts ...LayerOption[T]) Layer[T] {
	layer := Layer[T]{
		Scope:   scope.clone(),
		Overlay: overlay.Clone(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&layer)
	}
	return layer
}

// DecodeLayer decodes data as the explicit document of a layer.
func DecodeLayer[T any](scope Scope, data []byte, opts ...Option) (Layer[T], error) {
	decoded, err := Decode[T](data, opts...)
	if err != nil {
		return Layer[T]{}, fmt.Errorf("overlay: decode layer %q: %w", scope.Name, err)
	}
	return Layer[T]{Scope: scope.clone(), Overlay: decoded}, nil
}

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("overlay: scope name must be provided")
	// ErrDuplicateScopeName indicates Stack construction received multiple
	// layers with the same scope name.
	ErrDuplicateScopeName = errors.New("overlay: scope names must be unique")
	// ErrPriorityOrder indicates Stack construction detected duplicate or
	// unsorted priorities.
	ErrPriorityOrder = errors.New("overlay: scope priorities must be strictly ordered")
	// ErrEmptyStack indicates a merge of a stack without layers.
	ErrEmptyStack = errors.New("overlay: stack must include at least one layer")
)

// Stack represents an immutable, scope-aware layering configuration ordered
// from strongest to weakest precedence.
type Stack[T any] struct {
	layers []Layer[T]
}

// NewStack validates and sorts the supplied layers so that the strongest scope
// (highest priority) is first. Layers are deep copied.
func NewStack[T any](layers ...Layer[T]) (*Stack[T], error) {
	if len(layers) == 0 {
		return &Stack[T]{}, nil
	}

	seenNames := make(map[string]struct{}, len(layers))
	copied := make([]Layer[T], len(layers))
	for i, layer := range layers {
		layer := cloneLayer(layer)
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seenNames[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		seenNames[layer.Scope.Name] = struct{}{}
		copied[i] = layer
	}

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Scope.Priority == copied[j].Scope.Priority {
			return copied[i].Scope.Name < copied[j].Scope.Name
		}
		return copied[i].Scope.Priority > copied[j].Scope.Priority
	})

	for i := 1; i < len(copied); i++ {
		if copied[i-1].Scope.Priority <= copied[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Scope.Priority)
		}
	}

	return &Stack[T]{layers: copied}, nil
}

// Layers returns a copy of the underlying layers.
func (s *Stack[T]) Layers() []Layer[T] {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer[T], len(s.layers))
	for i := range s.layers {
		out[i] = cloneLayer(s.layers[i])
	}
	return out
}

// Len returns the number of layers in the stack.
func (s *Stack[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Merge applies the layers from weakest to strongest onto the default overlay
// of T. The result uses ProvenanceStrategy unless opts select another
// strategy, so every written leaf reports its Source. Layer metadata is kept
// for ResolveWithTrace.
func (s *Stack[T]) Merge(opts ...Option) (*Overlay[T], error) {
	return s.merge(nil, opts)
}

// MergeContext is Merge that also notifies the activity hooks configured with
// WithActivityHooks once per applied layer.
func (s *Stack[T]) MergeContext(ctx context.Context, opts ...Option) (*Overlay[T], error) {
	return s.merge(ctx, opts)
}

func (s *Stack[T]) merge(ctx context.Context, opts []Option) (*Overlay[T], error) {
	if s == nil || len(s.layers) == 0 {
		return nil, ErrEmptyStack
	}
	cfg := applyOptions(append([]Option{WithStrategy(ProvenanceStrategy)}, opts...))
	merged := &Overlay[T]{cfg: cfg}
	root := merged.ensure()

	var report *layerReporter
	if ctx != nil && len(cfg.activityHooks) > 0 {
		report = newLayerReporter(typeOf[T]().String(), root)
	}

	meta := make([]layerSnapshot, len(s.layers))
	for i := len(s.layers) - 1; i >= 0; i-- {
		layer := s.layers[i]
		source := Source{Scope: layer.Scope.clone(), SnapshotID: layer.SnapshotID}
		Merge(root, layer.Overlay.Root(), source)
		meta[i] = layerSnapshot{
			Scope:      layer.Scope.clone(),
			Root:       layer.Overlay.Root().clone(),
			SnapshotID: layer.SnapshotID,
		}
		if report != nil {
			event, err := report.applied(source, layer.Overlay.Root(), root)
			if err != nil {
				return nil, fmt.Errorf("overlay: report layer %q: %w", layer.Scope.Name, err)
			}
			if err := cfg.activityHooks.Notify(ctx, event); err != nil {
				return nil, fmt.Errorf("overlay: notify layer %q: %w", layer.Scope.Name, err)
			}
		}
	}
	merged.layers = meta
	return merged, nil
}

func cloneLayer[T any](layer Layer[T]) Layer[T] {
	overlay := layer.Overlay.Clone()
	if overlay == nil {
		overlay = Default[T]()
	}
	return Layer[T]{
		Scope:      layer.Scope.clone(),
		Overlay:    overlay,
		SnapshotID: layer.SnapshotID,
	}
}

type layerSnapshot struct {
	Scope      Scope
	Root       Node
	SnapshotID string
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
