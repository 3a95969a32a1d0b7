package openapi

import "strings"

type generatorConfig struct {
	openAPIVersion string
	info           openapiInfo
	operation      operationConfig
	contentType    string
	responses      map[string]responseConfig
	rootComponent  string
	markExplicit   bool
}

type openapiInfo struct {
	Title       string
	Version     string
	Description string
}

type operationConfig struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
}

type responseConfig struct {
	Description string
}

// The overlay is accepted by POST /config and answered with 204.
func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		info:           openapiInfo{Title: "Overlay Schema", Version: "1.0.0"},
		operation:      operationConfig{Path: "/config", Method: "post", OperationID: "post:/config"},
		contentType:    "application/json",
		responses:      map[string]responseConfig{"204": {Description: "OK"}},
	}
}

// GeneratorOption configures the OpenAPI generator. Empty string arguments
// keep the current value.
type GeneratorOption func(*generatorConfig)

// InfoOption configures optional fields of the info section.
type InfoOption func(*openapiInfo)

// OperationOption configures optional operation metadata.
type OperationOption func(*operationConfig)

// ResponseOption configures a response template.
type ResponseOption func(*responseConfig)

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// WithOpenAPIVersion overrides the OpenAPI version string (default: 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) { setIfNotEmpty(&cfg.openAPIVersion, version) }
}

func WithInfoDescription(description string) InfoOption {
	return func(info *openapiInfo) { info.Description = description }
}

// WithInfo sets the title and version of the info section.
func WithInfo(title, version string, opts ...InfoOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		setIfNotEmpty(&cfg.info.Title, title)
		setIfNotEmpty(&cfg.info.Version, version)
		for _, opt := range opts {
			if opt != nil {
				opt(&cfg.info)
			}
		}
	}
}

func WithOperationSummary(summary string) OperationOption {
	return func(operation *operationConfig) { operation.Summary = summary }
}

// WithOperation sets the path, method and operationId the overlay document is
// the request body of.
func WithOperation(path, method, operationID string, opts ...OperationOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		setIfNotEmpty(&cfg.operation.Path, path)
		setIfNotEmpty(&cfg.operation.Method, strings.ToLower(method))
		setIfNotEmpty(&cfg.operation.OperationID, operationID)
		for _, opt := range opts {
			if opt != nil {
				opt(&cfg.operation)
			}
		}
	}
}

// WithContentType sets the media type of the request body.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) { setIfNotEmpty(&cfg.contentType, contentType) }
}

// WithResponse adds or overrides the response for status.
func WithResponse(status, description string, opts ...ResponseOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		if status == "" {
			return
		}
		if cfg.responses == nil {
			cfg.responses = map[string]responseConfig{}
		}
		response := cfg.responses[status]
		setIfNotEmpty(&response.Description, description)
		for _, opt := range opts {
			if opt != nil {
				opt(&response)
			}
		}
		cfg.responses[status] = response
	}
}

// WithRootComponent publishes the root schema as a component under name and
// references it from the request body.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) { cfg.rootComponent = name }
}

// WithExplicitMarkers makes the schema describe the current document as well
// as its wire format. Struct fields, map entries and tuple positions holding
// explicit values carry "x-overlay-explicit": true, and explicit object
// properties are listed as required.
func WithExplicitMarkers() GeneratorOption {
	return func(cfg *generatorConfig) { cfg.markExplicit = true }
}
