package openapi

import (
	"fmt"

	overlay "github.com/goliatone/go-overlay"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs an OpenAPI-compatible schema generator. The
// document exposes the wire format of the overlay as the request body of a
// single operation (POST /config by default).
func NewGenerator(opts ...GeneratorOption) overlay.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option returns an overlay.Option that wires the OpenAPI schema generator
// into an overlay.
func Option(opts ...GeneratorOption) overlay.Option {
	return overlay.WithSchemaGenerator(NewGenerator(opts...))
}

func (g generator) Generate(root overlay.Node) (overlay.SchemaDocument, error) {
	builder := newSchemaBuilder()
	builder.markExplicit = g.config.markExplicit
	node, err := builder.graph(root)
	if err != nil {
		return overlay.SchemaDocument{}, err
	}
	document, err := newDocumentBuilder(g.config).build(node)
	if err != nil {
		return overlay.SchemaDocument{}, fmt.Errorf("openapi: build document: %w", err)
	}
	return overlay.SchemaDocument{
		Format:   overlay.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}
