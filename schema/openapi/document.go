package openapi

import (
	"fmt"
	"sort"
	"strings"
)

// documentBuilder wraps the schema graph of an overlay in an OpenAPI document
// with a single operation whose request body is the overlay's wire format.
type documentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
}

func newDocumentBuilder(config generatorConfig) *documentBuilder {
	return &documentBuilder{config: config, registry: newComponentRegistry()}
}

func (b *documentBuilder) build(root *schemaNode) (map[string]any, error) {
	if root == nil {
		return nil, fmt.Errorf("openapi: root schema node cannot be nil")
	}

	hint := "Root"
	var body map[string]any
	if name := b.config.rootComponent; name != "" {
		hint = name
		if ref := b.registry.force(root, name); ref != "" {
			body = map[string]any{"$ref": ref}
		}
	}
	b.registry.collectChildren(root, hint)
	if body == nil {
		body = root.render(hint, b.schemaFor)
	}

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.info(),
		"paths":   b.paths(body),
	}
	if schemas := b.registry.schemas(b.schemaFor); schemas != nil {
		document["components"] = map[string]any{"schemas": schemas}
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

// schemaFor renders node, or a reference to it when it is a component.
func (b *documentBuilder) schemaFor(node *schemaNode, hint string) map[string]any {
	if node == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if ref := b.registry.ref(node); ref != "" {
		return map[string]any{"$ref": ref}
	}
	return node.render(hint, b.schemaFor)
}

func (b *documentBuilder) info() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *documentBuilder) paths(body map[string]any) map[string]any {
	operationConfig := b.config.operation
	method := strings.ToLower(operationConfig.Method)
	if method == "" {
		method = "post"
	}
	operationID := operationConfig.OperationID
	if operationID == "" {
		operationID = method + ":" + operationConfig.Path
	}

	responses := make(map[string]any, len(b.config.responses))
	for status, response := range b.config.responses {
		responses[status] = map[string]any{"description": response.Description}
	}

	operation := map[string]any{
		"operationId": operationID,
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.config.contentType: map[string]any{"schema": body},
			},
		},
		"responses": responses,
	}
	if summary := strings.TrimSpace(operationConfig.Summary); summary != "" {
		operation["summary"] = summary
	}
	return map[string]any{
		operationConfig.Path: map[string]any{method: operation},
	}
}

// validateDocument checks the parts of the document every OpenAPI consumer
// needs: version, info, and per operation an id, a request body and
// responses.
func validateDocument(document map[string]any) error {
	if document == nil {
		return fmt.Errorf("openapi: document cannot be nil")
	}
	if version, _ := document["openapi"].(string); version == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	for _, key := range []string{"title", "version"} {
		if value, _ := info[key].(string); value == "" {
			return fmt.Errorf("openapi: info.%s must be set", key)
		}
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	for _, path := range sortedKeys(paths) {
		item, _ := paths[path].(map[string]any)
		if len(item) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", path)
		}
		for _, method := range sortedKeys(item) {
			if err := validateOperation(item[method]); err != nil {
				return fmt.Errorf("openapi: operation %s %s %w", method, path, err)
			}
		}
	}
	return nil
}

func validateOperation(value any) error {
	operation, _ := value.(map[string]any)
	if operation == nil {
		return fmt.Errorf("invalid payload")
	}
	if _, ok := operation["operationId"].(string); !ok {
		return fmt.Errorf("missing operationId")
	}
	requestBody, _ := operation["requestBody"].(map[string]any)
	if requestBody == nil {
		return fmt.Errorf("missing requestBody")
	}
	if content, _ := requestBody["content"].(map[string]any); len(content) == 0 {
		return fmt.Errorf("requestBody missing content")
	}
	if _, ok := operation["responses"].(map[string]any); !ok {
		return fmt.Errorf("missing responses")
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
