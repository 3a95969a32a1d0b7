package overlay

import "fmt"

// FieldDescriptor describes a terminal position of an overlay: its dotted
// path, Go type, node kind and current explicitness.
type FieldDescriptor struct {
	Path     string `json:"path"`
	Type     string `json:"type"`
	Kind     string `json:"kind"`
	Explicit bool   `json:"explicit"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(root Node) (SchemaDocument, error) {
	descriptors := deriveFieldDescriptors(root)
	if descriptors == nil {
		descriptors = []FieldDescriptor{}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

func deriveFieldDescriptors(root Node) []FieldDescriptor {
	var fields []FieldDescriptor
	Walk(root, func(path string, n Node) bool {
		if path == "" && !isTerminalPosition(n) {
			return true
		}
		if isTerminalPosition(n) || emptyCollection(n) {
			fields = append(fields, FieldDescriptor{
				Path:     path,
				Type:     typeName(n),
				Kind:     n.Kind().String(),
				Explicit: n.Explicit(),
			})
		}
		return true
	})
	return fields
}

func emptyCollection(n Node) bool {
	switch node := n.(type) {
	case *SliceNode:
		return node.Len() == 0
	case *MapNode:
		return node.Len() == 0
	}
	return false
}

func typeName(n Node) string {
	if n.Type() == nil {
		return "nil"
	}
	return n.Type().String()
}

// Schema describes the overlay using the configured generator, falling back
// to DefaultSchemaGenerator. With WithScopeSchema(true) the document lists
// the scopes of the merged layers strongest first, or the configured scope
// when the overlay was not produced by a stack.
func (o *Overlay[T]) Schema() (SchemaDocument, error) {
	generator := o.cfg.schemaGenerator
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	doc, err := generator.Generate(o.ensure())
	if err != nil {
		return SchemaDocument{}, fmt.Errorf("overlay: schema generation failed: %w", err)
	}
	if o.cfg.scopeSchema {
		doc.Scopes = o.schemaScopes()
	}
	return doc, nil
}

func (o *Overlay[T]) schemaScopes() []SchemaScope {
	if len(o.layers) == 0 {
		if o.cfg.scope.isZero() {
			return nil
		}
		return []SchemaScope{schemaScopeOf(o.cfg.scope, "")}
	}
	scopes := make([]SchemaScope, 0, len(o.layers))
	for _, layer := range o.layers {
		scopes = append(scopes, schemaScopeOf(layer.Scope, layer.SnapshotID))
	}
	return scopes
}

func schemaScopeOf(scope Scope, snapshotID string) SchemaScope {
	return SchemaScope{
		Name:       scope.Name,
		Label:      scope.Label,
		Priority:   scope.Priority,
		Metadata:   copyMetadata(scope.Metadata),
		SnapshotID: snapshotID,
	}
}
