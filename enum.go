package overlay

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	// ErrEnumNotInterface indicates RegisterEnum was called with a
	// non-interface enum type.
	ErrEnumNotInterface = errors.New("overlay: enum type must be an interface")
	// ErrVariantNotImplemented indicates a variant type, or the default value,
	// does not implement the enum interface.
	ErrVariantNotImplemented = errors.New("overlay: variant does not implement enum")
	// ErrDuplicateVariant indicates a repeated variant name or type.
	ErrDuplicateVariant = errors.New("overlay: duplicate variant")
)

// Tuple marks a struct as positional. Embed it to make the struct encode as a
// JSON array in declaration order:
//
//	type Pair struct {
//		overlay.Tuple
//		Left  int32
//		Right int64
//	}
type Tuple struct{}

var tupleType = reflect.TypeOf(Tuple{})

// VariantSpec names one concrete type of an enum.
type VariantSpec struct {
	Name string
	Type reflect.Type
}

// Variant returns the spec for variant type V registered under name.
func Variant[V any](name string) VariantSpec {
	return VariantSpec{Name: name, Type: reflect.TypeOf((*V)(nil)).Elem()}
}

type variantForm int

const (
	// variantUnit is a struct without fields, encoded as its bare name.
	variantUnit variantForm = iota
	// variantNamed is a struct with named fields, payload is an object.
	variantNamed
	// variantTuple is a positional struct with several fields, payload is an array.
	variantTuple
	// variantSingle is a positional struct with one field, payload is that field.
	variantSingle
	// variantNewtype is a non-struct type, payload is the value itself.
	variantNewtype
)

type variantInfo struct {
	name string
	typ  reflect.Type
	form variantForm
}

func (v *variantInfo) unit() bool {
	return v != nil && v.form == variantUnit
}

type enumInfo struct {
	typ      reflect.Type
	def      reflect.Value
	variants []*variantInfo
	byName   map[string]*variantInfo
	byType   map[reflect.Type]*variantInfo
}

func (e *enumInfo) defaultVariant() *variantInfo {
	return e.byType[e.def.Elem().Type()]
}

// EnumRegistry maps enum interfaces to their variants. The zero value is not
// usable; call NewEnumRegistry.
type EnumRegistry struct {
	mu    sync.RWMutex
	enums map[reflect.Type]*enumInfo
}

// NewEnumRegistry constructs an empty registry.
func NewEnumRegistry() *EnumRegistry {
	return &EnumRegistry{enums: make(map[reflect.Type]*enumInfo)}
}

var defaultRegistry = NewEnumRegistry()

// DefaultRegistry returns the process-wide registry used when no registry is
// configured with WithRegistry.
func DefaultRegistry() *EnumRegistry {
	return defaultRegistry
}

// RegisterEnum registers enum interface E in the process-wide registry with
// def as its default value.
func RegisterEnum[E any](def E, variants ...VariantSpec) error {
	return RegisterEnumIn(defaultRegistry, def, variants...)
}

// RegisterEnumIn registers enum interface E in registry.
func RegisterEnumIn[E any](registry *EnumRegistry, def E, variants ...VariantSpec) error {
	if registry == nil {
		return fmt.Errorf("overlay: enum registry is nil")
	}
	enumType := reflect.TypeOf((*E)(nil)).Elem()
	return registry.Register(enumType, reflect.ValueOf(&def).Elem(), variants...)
}

// MustRegisterEnum is RegisterEnum that panics on error. Intended for package
// init blocks.
func MustRegisterEnum[E any](def E, variants ...VariantSpec) {
	if err := RegisterEnum(def, variants...); err != nil {
		panic(err)
	}
}

// Register stores enumType with its default value and variants. Registering
// the same interface twice replaces the previous definition.
func (r *EnumRegistry) Register(enumType reflect.Type, def reflect.Value, variants ...VariantSpec) error {
	if enumType == nil || enumType.Kind() != reflect.Interface {
		return fmt.Errorf("%w: %v", ErrEnumNotInterface, enumType)
	}
	info := &enumInfo{
		typ:    enumType,
		byName: make(map[string]*variantInfo, len(variants)),
		byType: make(map[reflect.Type]*variantInfo, len(variants)),
	}
	for _, spec := range variants {
		if spec.Name == "" || spec.Type == nil {
			return fmt.Errorf("overlay: variant of %v needs a name and a type", enumType)
		}
		if !spec.Type.Implements(enumType) {
			return fmt.Errorf("%w: %v is not a %v", ErrVariantNotImplemented, spec.Type, enumType)
		}
		if _, exists := info.byName[spec.Name]; exists {
			return fmt.Errorf("%w: name %q", ErrDuplicateVariant, spec.Name)
		}
		if _, exists := info.byType[spec.Type]; exists {
			return fmt.Errorf("%w: type %v", ErrDuplicateVariant, spec.Type)
		}
		variant := &variantInfo{name: spec.Name, typ: spec.Type, form: classifyVariant(spec.Type)}
		info.variants = append(info.variants, variant)
		info.byName[spec.Name] = variant
		info.byType[spec.Type] = variant
	}

	if !def.IsValid() || def.Kind() != reflect.Interface || def.IsNil() {
		return fmt.Errorf("%w: default of %v must be a registered variant", ErrVariantNotImplemented, enumType)
	}
	if _, ok := info.byType[def.Elem().Type()]; !ok {
		return fmt.Errorf("%w: default %v is not a registered variant of %v", ErrVariantNotImplemented, def.Elem().Type(), enumType)
	}
	info.def = cloneValue(def)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enums == nil {
		r.enums = make(map[reflect.Type]*enumInfo)
	}
	r.enums[enumType] = info
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *EnumRegistry) Clone() *EnumRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &EnumRegistry{enums: make(map[reflect.Type]*enumInfo, len(r.enums))}
	for typ, info := range r.enums {
		clone.enums[typ] = info
	}
	return clone
}

// Names returns the variant names of enumType in registration order.
func (r *EnumRegistry) Names(enumType reflect.Type) []string {
	info := r.lookup(enumType)
	if info == nil {
		return nil
	}
	names := make([]string, len(info.variants))
	for i, variant := range info.variants {
		names[i] = variant.name
	}
	return names
}

// Enums returns the registered enum types sorted by name.
func (r *EnumRegistry) Enums() []reflect.Type {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, 0, len(r.enums))
	for typ := range r.enums {
		out = append(out, typ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (r *EnumRegistry) lookup(t reflect.Type) *enumInfo {
	if r == nil || t == nil || t.Kind() != reflect.Interface {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enums[t]
}

func classifyVariant(t reflect.Type) variantForm {
	if t.Kind() != reflect.Struct {
		return variantNewtype
	}
	info := structInfoFor(t)
	switch {
	case len(info.fields) == 0:
		return variantUnit
	case !info.tuple:
		return variantNamed
	case len(info.fields) == 1:
		return variantSingle
	default:
		return variantTuple
	}
}

// WithRegistry selects the enum registry consulted while building overlays.
func WithRegistry(registry *EnumRegistry) Option {
	return func(cfg *config) {
		cfg.registry = registry
	}
}
