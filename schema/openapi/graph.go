package openapi

import (
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	overlay "github.com/goliatone/go-overlay"
)

type schemaNode struct {
	Type                 string
	Format               string
	Nullable             bool
	Properties           map[string]*schemaNode
	AdditionalProperties *schemaNode
	Required             []string
	Items                *schemaNode
	PrefixItems          []*schemaNode
	MinItems             *int
	MaxItems             *int
	OneOf                []*schemaNode
	Enum                 []any
	Default              any
	Minimum              *float64
	Maximum              *float64
	ExclusiveMinimum     *float64
	ExclusiveMaximum     *float64
	MinLength            *int
	MaxLength            *int
	Pattern              string
	formgen              map[string]string
	relationships        map[string]string
	additionalMapping    map[string]any
	// title names the component this schema would publish as; it is not
	// rendered.
	title string
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Nullable {
		result["nullable"] = true
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.Minimum != nil {
		result["minimum"] = *n.Minimum
	}
	if n.Maximum != nil {
		result["maximum"] = *n.Maximum
	}
	if n.ExclusiveMinimum != nil {
		result["exclusiveMinimum"] = *n.ExclusiveMinimum
	}
	if n.ExclusiveMaximum != nil {
		result["exclusiveMaximum"] = *n.ExclusiveMaximum
	}
	if n.MinLength != nil {
		result["minLength"] = *n.MinLength
	}
	if n.MaxLength != nil {
		result["maxLength"] = *n.MaxLength
	}
	if n.MinItems != nil {
		result["minItems"] = *n.MinItems
	}
	if n.MaxItems != nil {
		result["maxItems"] = *n.MaxItems
	}
	if n.Pattern != "" {
		result["pattern"] = n.Pattern
	}
	return result
}

// render produces the schema map of n, rendering nested schemas through
// child so callers can substitute component references.
func (n *schemaNode) render(hint string, child func(*schemaNode, string) map[string]any) map[string]any {
	result := n.baseMap()

	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		names := make([]string, 0, len(n.Properties))
		for name := range n.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			props[name] = child(n.Properties[name], combineComponentName(hint, name))
		}
		result["properties"] = props
	}

	if n.AdditionalProperties != nil {
		result["additionalProperties"] = child(n.AdditionalProperties, combineComponentName(hint, "value"))
	}

	if len(n.Required) > 0 {
		names := append([]string{}, n.Required...)
		sort.Strings(names)
		result["required"] = names
	}

	if n.Items != nil {
		result["items"] = child(n.Items, combineComponentName(hint, "item"))
	}

	if len(n.PrefixItems) > 0 {
		items := make([]any, len(n.PrefixItems))
		for i, item := range n.PrefixItems {
			items[i] = child(item, combineComponentName(hint, strconv.Itoa(i)))
		}
		result["prefixItems"] = items
	}

	if len(n.OneOf) > 0 {
		alternatives := make([]any, len(n.OneOf))
		for i, alternative := range n.OneOf {
			alternatives[i] = child(alternative, combineComponentName(hint, "variant", strconv.Itoa(i)))
		}
		result["oneOf"] = alternatives
	}

	if len(n.formgen) > 0 {
		result["x-formgen"] = orderedStringMap(n.formgen)
	}

	if len(n.relationships) > 0 {
		result["x-relationships"] = orderedStringMap(n.relationships)
	}

	if len(n.additionalMapping) > 0 {
		keys := make([]string, 0, len(n.additionalMapping))
		for key := range n.additionalMapping {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			result[key] = n.additionalMapping[key]
		}
	}

	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	return n.render("", func(child *schemaNode, _ string) map[string]any {
		return child.inlineOpenAPI()
	})
}

func (n *schemaNode) ensureAdditional() map[string]any {
	if n.additionalMapping == nil {
		n.additionalMapping = map[string]any{}
	}
	return n.additionalMapping
}

func (n *schemaNode) ensureFormgen() map[string]string {
	if n.formgen == nil {
		n.formgen = map[string]string{}
	}
	return n.formgen
}

func (n *schemaNode) ensureRelationships() map[string]string {
	if n.relationships == nil {
		n.relationships = map[string]string{}
	}
	return n.relationships
}

func (n *schemaNode) Digest() string {
	payload := n.inlineOpenAPI()
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type schemaBuilder struct {
	visited      map[reflect.Type]bool
	markExplicit bool
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{
		visited: map[reflect.Type]bool{},
	}
}

// buildSchemaGraph describes the wire format of root: every object property
// is optional since sparse documents omit implicit positions, enums become
// oneOf alternatives and tuples become fixed-length arrays.
func buildSchemaGraph(root overlay.Node) (*schemaNode, error) {
	return newSchemaBuilder().graph(root)
}

func (b *schemaBuilder) graph(root overlay.Node) (*schemaNode, error) {
	if root == nil {
		return newObjectNode(), nil
	}
	node, err := b.build(root)
	if err != nil {
		return nil, err
	}
	if node.Type == "" && len(node.OneOf) == 0 {
		node.Type = "object"
	}
	if node.Type == "object" && node.Properties == nil {
		node.Properties = map[string]*schemaNode{}
	}
	return node, nil
}

// markProperty flags child as holding an explicit value. Properties of an
// object parent also become required.
func (b *schemaBuilder) markProperty(parent, child *schemaNode, name string, value overlay.Node) {
	if !b.markExplicit || value == nil || !value.Explicit() {
		return
	}
	child.ensureAdditional()["x-overlay-explicit"] = true
	if parent != nil && name != "" {
		parent.Required = append(parent.Required, name)
	}
}

func (b *schemaBuilder) build(n overlay.Node) (*schemaNode, error) {
	switch node := n.(type) {
	case nil:
		return &schemaNode{}, nil
	case *overlay.LeafNode:
		return leafSchema(node.Type()), nil
	case *overlay.OptionNode:
		child, err := b.build(node.Template())
		if err != nil {
			return nil, err
		}
		child.Nullable = true
		return child, nil
	case *overlay.DynamicNode:
		if node.Elem().Kind() == overlay.KindMap {
			return b.build(node.Elem())
		}
		return &schemaNode{}, nil
	case *overlay.StructNode:
		return b.buildStruct(node)
	case *overlay.SliceNode:
		if node.Len() > 0 {
			return b.buildSequence(node.Index(0), nil)
		}
		return b.buildSequence(node.Template(), nil)
	case *overlay.ArrayNode:
		length := node.Len()
		if length > 0 {
			return b.buildSequence(node.Index(0), &length)
		}
		return b.buildSequence(node.Template(), &length)
	case *overlay.MapNode:
		return b.buildMap(node)
	case *overlay.EnumNode:
		return b.buildEnum(node)
	default:
		return nil, fmt.Errorf("openapi: unsupported node kind %s", n.Kind())
	}
}

func leafSchema(t reflect.Type) *schemaNode {
	if t == reflect.TypeOf(time.Time{}) {
		return &schemaNode{
			Type:   "string",
			Format: "date-time",
		}
	}
	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return &schemaNode{Type: "string"}
	}
	switch t.Kind() {
	case reflect.Bool:
		return &schemaNode{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &schemaNode{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &schemaNode{Type: "number"}
	case reflect.String:
		return &schemaNode{Type: "string"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &schemaNode{
				Type:   "string",
				Format: "byte",
			}
		}
		return &schemaNode{Type: "array", Items: &schemaNode{}}
	case reflect.Interface:
		return &schemaNode{}
	case reflect.Map, reflect.Struct:
		return newObjectNode()
	default:
		return &schemaNode{
			Type:   "string",
			Format: fmt.Sprintf("go:%s", t.String()),
		}
	}
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

func (b *schemaBuilder) buildStruct(n *overlay.StructNode) (*schemaNode, error) {
	rt := n.Type()
	if b.visited[rt] {
		return newObjectNode(), nil
	}
	b.visited[rt] = true
	defer delete(b.visited, rt)

	if n.Kind() == overlay.KindTuple {
		node, err := b.buildTuple(n)
		if err == nil {
			node.title = rt.Name()
		}
		return node, err
	}

	node := newObjectNode()
	node.title = rt.Name()
	for i := 0; i < n.NumField(); i++ {
		child, err := b.build(n.Field(i))
		if err != nil {
			return nil, err
		}
		field := n.StructField(i)
		if err := applyFieldMetadata(child, field); err != nil {
			return nil, err
		}
		if n.Passive(i) {
			child.ensureAdditional()["x-overlay-passive"] = true
		}
		b.markProperty(node, child, n.FieldName(i), n.Field(i))
		node.Properties[n.FieldName(i)] = child
	}
	return node, nil
}

// buildTuple emits a fixed-length array. Implicit positions encode as null.
func (b *schemaBuilder) buildTuple(n *overlay.StructNode) (*schemaNode, error) {
	count := n.NumField()
	node := &schemaNode{
		Type:     "array",
		MinItems: &count,
		MaxItems: &count,
	}
	for i := 0; i < count; i++ {
		child, err := b.build(n.Field(i))
		if err != nil {
			return nil, err
		}
		if err := applyFieldMetadata(child, n.StructField(i)); err != nil {
			return nil, err
		}
		child.Nullable = true
		b.markProperty(nil, child, "", n.Field(i))
		node.PrefixItems = append(node.PrefixItems, child)
	}
	return node, nil
}

func (b *schemaBuilder) buildSequence(elem overlay.Node, length *int) (*schemaNode, error) {
	child, err := b.build(elem)
	if err != nil {
		return nil, err
	}
	node := &schemaNode{
		Type:  "array",
		Items: child,
	}
	if length != nil {
		child.Nullable = true
		node.MinItems = length
		node.MaxItems = length
	}
	return node, nil
}

func (b *schemaBuilder) buildMap(n *overlay.MapNode) (*schemaNode, error) {
	node := newObjectNode()
	for _, key := range n.Keys() {
		entry, _ := n.Get(key)
		child, err := b.build(entry)
		if err != nil {
			return nil, err
		}
		b.markProperty(node, child, key, entry)
		node.Properties[key] = child
	}
	if n.Type().Elem().Kind() == reflect.Interface && len(node.Properties) > 0 {
		return node, nil
	}
	additional, err := b.build(n.Template())
	if err != nil {
		return nil, err
	}
	node.AdditionalProperties = additional
	return node, nil
}

// buildEnum lists every registered variant: unit variants as string
// constants, data variants as single-key objects.
func (b *schemaBuilder) buildEnum(n *overlay.EnumNode) (*schemaNode, error) {
	node := &schemaNode{title: n.Type().Name()}
	for _, name := range n.Variants() {
		template, _ := n.Template(name)
		if template == nil {
			node.OneOf = append(node.OneOf, &schemaNode{
				Type: "string",
				Enum: []any{name},
			})
			continue
		}
		payload, err := b.buildPayload(template)
		if err != nil {
			return nil, err
		}
		alternative := newObjectNode()
		alternative.Properties[name] = payload
		alternative.Required = []string{name}
		node.OneOf = append(node.OneOf, alternative)
	}
	return node, nil
}

func (b *schemaBuilder) buildPayload(payload overlay.Node) (*schemaNode, error) {
	if tuple, ok := payload.(*overlay.StructNode); ok && tuple.Kind() == overlay.KindTuple && tuple.NumField() == 1 {
		return b.build(tuple.Field(0))
	}
	return b.build(payload)
}

func applyFieldMetadata(node *schemaNode, field reflect.StructField) error {
	baseType := field.Type
	for baseType.Kind() == reflect.Pointer {
		baseType = baseType.Elem()
	}

	if format := field.Tag.Get("format"); format != "" {
		node.Format = format
	}

	if def := field.Tag.Get("default"); def != "" {
		value, err := parseScalar(baseType, def)
		if err != nil {
			return fmt.Errorf("openapi: parse default for field %s: %w", field.Name, err)
		}
		node.Default = value
	}

	if enum := field.Tag.Get("enum"); enum != "" {
		values, err := parseEnum(baseType, enum)
		if err != nil {
			return fmt.Errorf("openapi: parse enum for field %s: %w", field.Name, err)
		}
		node.Enum = values
	}

	if err := applyNumericConstraints(node, baseType, field); err != nil {
		return err
	}

	if err := applyStringConstraints(node, baseType, field); err != nil {
		return err
	}

	if tag := field.Tag.Get("formgen"); tag != "" {
		values := parseKeyValueTag(tag)
		if len(values) > 0 {
			formgen := node.ensureFormgen()
			for key, value := range values {
				formgen[key] = value
			}
		}
	}

	if tag := field.Tag.Get("relationship"); tag != "" {
		values := parseKeyValueTag(tag)
		if len(values) > 0 {
			meta := node.ensureRelationships()
			for key, value := range values {
				meta[key] = value
			}
		}
	}

	return nil
}

func applyNumericConstraints(node *schemaNode, baseType reflect.Type, field reflect.StructField) error {
	if !isNumericKind(baseType.Kind()) {
		return nil
	}

	assign := func(target **float64, raw string) error {
		if raw == "" {
			return nil
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*target = &value
		return nil
	}

	if err := assign(&node.Minimum, field.Tag.Get("minimum")); err != nil {
		return fmt.Errorf("openapi: parse minimum for field %s: %w", field.Name, err)
	}
	if err := assign(&node.Maximum, field.Tag.Get("maximum")); err != nil {
		return fmt.Errorf("openapi: parse maximum for field %s: %w", field.Name, err)
	}
	if err := assign(&node.ExclusiveMinimum, field.Tag.Get("exclusiveMinimum")); err != nil {
		return fmt.Errorf("openapi: parse exclusiveMinimum for field %s: %w", field.Name, err)
	}
	if err := assign(&node.ExclusiveMaximum, field.Tag.Get("exclusiveMaximum")); err != nil {
		return fmt.Errorf("openapi: parse exclusiveMaximum for field %s: %w", field.Name, err)
	}

	return nil
}

func applyStringConstraints(node *schemaNode, baseType reflect.Type, field reflect.StructField) error {
	if baseType.Kind() != reflect.String {
		return nil
	}

	assign := func(target **int, raw string) error {
		if raw == "" {
			return nil
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*target = &value
		return nil
	}

	if err := assign(&node.MinLength, field.Tag.Get("minLength")); err != nil {
		return fmt.Errorf("openapi: parse minLength for field %s: %w", field.Name, err)
	}
	if err := assign(&node.MaxLength, field.Tag.Get("maxLength")); err != nil {
		return fmt.Errorf("openapi: parse maxLength for field %s: %w", field.Name, err)
	}
	if pattern := field.Tag.Get("pattern"); pattern != "" {
		node.Pattern = pattern
	}

	return nil
}

func parseScalar(t reflect.Type, raw string) (any, error) {
	switch t.Kind() {
	case reflect.Bool:
		return strconv.ParseBool(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		return value, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		value, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		return value, nil
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(raw, t.Bits())
	case reflect.String:
		return raw, nil
	default:
		// Fallback to string representation
		return raw, nil
	}
}

func parseEnum(t reflect.Type, raw string) ([]any, error) {
	parts := strings.Split(raw, ",")
	values := make([]any, 0, len(parts))
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := parseScalar(base, part)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func parseKeyValueTag(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	values := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			key = part
			value = ""
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func orderedStringMap(values map[string]string) map[string]any {
	out := make(map[string]any, len(values))
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out[key] = values[key]
	}
	return out
}
