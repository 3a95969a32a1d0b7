package overlay

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/tidwall/jsonc"
)

// Overlay tracks a typed value of T together with the explicitness of every
// position inside it. The zero value behaves as Default[T]().
type Overlay[T any] struct {
	root   Node
	cfg    config
	layers []layerSnapshot
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// New builds an overlay of value with every position stamped with explicit.
// The value is deep copied. It panics when an enum position holds a concrete
// type that is not a registered variant.
func New[T any](value T, explicit bool, opts ...Option) *Overlay[T] {
	cfg := applyOptions(opts)
	b := newBuilder(cfg)
	v := cloneValue(reflect.ValueOf(&value).Elem())
	return &Overlay[T]{root: b.build(typeOf[T](), v, explicit), cfg: cfg}
}

// Implicit builds an overlay of value where nothing is explicit.
func Implicit[T any](value T, opts ...Option) *Overlay[T] {
	return New(value, false, opts...)
}

// Explicit builds an overlay of value where everything is explicit.
func Explicit[T any](value T, opts ...Option) *Overlay[T] {
	return New(value, true, opts...)
}

// Default builds the implicit overlay of T's default value.
func Default[T any](opts ...Option) *Overlay[T] {
	cfg := applyOptions(opts)
	b := newBuilder(cfg)
	t := typeOf[T]()
	return &Overlay[T]{root: b.build(t, b.defaultValue(t), false), cfg: cfg}
}

// Load builds an overlay and runs validation when T supports it.
func Load[T any](value T, explicit bool, opts ...Option) (*Overlay[T], error) {
	o := New(value, explicit, opts...)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Decode applies data onto the default overlay of T.
func Decode[T any](data []byte, opts ...Option) (*Overlay[T], error) {
	o := Default[T](opts...)
	if err := o.ApplyJSON(data); err != nil {
		return nil, err
	}
	return o, nil
}

// DecodeWithDefaults applies data onto an implicit overlay of defaults.
func DecodeWithDefaults[T any](defaults T, data []byte, opts ...Option) (*Overlay[T], error) {
	o := Implicit(defaults, opts...)
	if err := o.ApplyJSON(data); err != nil {
		return nil, err
	}
	return o, nil
}

// DecodeJSONC is Decode for documents carrying comments and trailing commas.
func DecodeJSONC[T any](data []byte, opts ...Option) (*Overlay[T], error) {
	return Decode[T](jsonc.ToJSON(data), opts...)
}

func (o *Overlay[T]) ensure() Node {
	if o.root == nil {
		b := newBuilder(o.cfg)
		t := typeOf[T]()
		o.root = b.build(t, b.defaultValue(t), false)
	}
	return o.root
}

// Root returns the overlay tree.
func (o *Overlay[T]) Root() Node {
	return o.ensure()
}

// Explicit reports whether anything in the overlay was explicitly provided.
func (o *Overlay[T]) Explicit() bool {
	return o.ensure().Explicit()
}

// Implicit is the negation of Explicit.
func (o *Overlay[T]) Implicit() bool {
	return !o.Explicit()
}

// Value extracts a deep copy of the merged value.
func (o *Overlay[T]) Value() T {
	out, _ := o.ensure().Value().Interface().(T)
	return out
}

// Replace swaps the content for value stamped with explicit.
func (o *Overlay[T]) Replace(value T, explicit bool) {
	o.ensure().Replace(cloneValue(reflect.ValueOf(&value).Elem()), explicit)
}

// SetExplicit replaces the content and marks all of it explicit.
func (o *Overlay[T]) SetExplicit(value T) { o.Replace(value, true) }

// SetImplicit replaces the content and marks all of it implicit.
func (o *Overlay[T]) SetImplicit(value T) { o.Replace(value, false) }

// Visit hands ctx to every leaf that accepts it.
func (o *Overlay[T]) Visit(ctx any) {
	Visit(o.ensure(), ctx)
}

// Lookup resolves a dotted path such as "enum_config.Bar.1".
func (o *Overlay[T]) Lookup(path string) (Node, error) {
	return Lookup(o.ensure(), path)
}

// IsExplicit reports whether the position at path is explicit. Unknown paths
// are implicit.
func (o *Overlay[T]) IsExplicit(path string) bool {
	node, err := o.Lookup(path)
	if err != nil {
		return false
	}
	return node.Explicit()
}

// Clone returns a deep copy sharing the configuration.
func (o *Overlay[T]) Clone() *Overlay[T] {
	if o == nil {
		return nil
	}
	out := &Overlay[T]{root: o.ensure().clone(), cfg: o.cfg}
	if len(o.layers) > 0 {
		out.layers = append([]layerSnapshot(nil), o.layers...)
	}
	return out
}

// Equal reports whether both overlays hold the same values with the same
// explicitness.
func (o *Overlay[T]) Equal(other *Overlay[T]) bool {
	if o == nil || other == nil {
		return o == other
	}
	return Equal(o.ensure(), other.ensure())
}

// Validate invokes the Validate method on the merged value when present.
func (o *Overlay[T]) Validate() error {
	return validateValue(o.Value())
}

// MarshalJSON encodes the explicit parts of the overlay.
func (o *Overlay[T]) MarshalJSON() ([]byte, error) {
	return Encode(o.ensure())
}

// UnmarshalJSON resets the overlay to the default of T and applies data.
func (o *Overlay[T]) UnmarshalJSON(data []byte) error {
	o.root = nil
	o.layers = nil
	return o.ApplyJSON(data)
}

// ApplyJSON decodes data onto the current tree. Keys present in data become
// explicit, everything else is left as is.
func (o *Overlay[T]) ApplyJSON(data []byte) error {
	next := o.ensure().clone()
	start := time.Now()
	err := applyDocument(next, data, o.cfg)
	if err == nil {
		o.root = next
	}
	o.decodeLogger().LogDecode(DecodeLogEvent{
		Type:     typeOf[T]().String(),
		Bytes:    len(data),
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

// Snapshot returns every position of the overlay, explicit or not, as a
// generic JSON value. Non-object roots are returned under "value".
func (o *Overlay[T]) Snapshot() (map[string]any, error) {
	data, err := EncodeFull(o.ensure())
	if err != nil {
		return nil, err
	}
	return genericDocument(data)
}

// ExplicitDocument returns only the explicit positions as a generic JSON
// value, with the same shape rules as Snapshot.
func (o *Overlay[T]) ExplicitDocument() (map[string]any, error) {
	return explicitDocument(o.ensure())
}

// ExplicitPaths lists the paths of explicit leaves, unit variants and absent
// options in traversal order.
func (o *Overlay[T]) ExplicitPaths() []string {
	return explicitPaths(o.ensure())
}

// Get returns the value at path converted to V and its explicitness.
func Get[V any, T any](o *Overlay[T], path string) (V, bool, error) {
	var zero V
	node, err := o.Lookup(path)
	if err != nil {
		return zero, false, err
	}
	value := node.Value()
	if !value.IsValid() || (value.Kind() == reflect.Interface && value.IsNil()) {
		return zero, node.Explicit(), nil
	}
	out, ok := value.Interface().(V)
	if !ok {
		return zero, false, fmt.Errorf("overlay: %s holds %v, not %v", path, value.Type(), typeOf[V]())
	}
	return out, node.Explicit(), nil
}

func explicitPaths(root Node) []string {
	var paths []string
	Walk(root, func(path string, n Node) bool {
		if !touched(n) {
			return false
		}
		if isTerminalPosition(n) && n.Explicit() {
			paths = append(paths, path)
		}
		return true
	})
	return paths
}

func genericDocument(data []byte) (map[string]any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"value": value}, nil
}

// WithEvaluator configures an evaluator on the overlay.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

func validateValue[T any](value T) error {
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	ptr := reflect.New(reflect.TypeOf(&value).Elem())
	ptr.Elem().Set(reflect.ValueOf(&value).Elem())
	if v, ok := ptr.Interface().(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
