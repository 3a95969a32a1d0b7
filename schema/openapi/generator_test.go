package openapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	overlay "github.com/goliatone/go-overlay"
)

func TestNewGeneratorOptions(t *testing.T) {
	custom := NewGenerator(
		WithOpenAPIVersion("3.1.0"),
		WithInfo("Custom Service", "2.0.0", WithInfoDescription("custom schema")),
		WithOperation("/settings", "PUT", "updateSettings", WithOperationSummary("Update settings")),
		WithContentType("application/x-www-form-urlencoded"),
		WithResponse("201", "Created"),
	)

	internal, ok := custom.(generator)
	if !ok {
		t.Fatalf("expected generator implementation, got %T", custom)
	}

	if got := internal.config.openAPIVersion; got != "3.1.0" {
		t.Fatalf("expected openapi version 3.1.0, got %q", got)
	}
	if got := internal.config.info.Title; got != "Custom Service" {
		t.Fatalf("expected info title Custom Service, got %q", got)
	}
	if got := internal.config.info.Version; got != "2.0.0" {
		t.Fatalf("expected info version 2.0.0, got %q", got)
	}
	if got := internal.config.info.Description; got != "custom schema" {
		t.Fatalf("expected info description custom schema, got %q", got)
	}
	if got := internal.config.operation.Path; got != "/settings" {
		t.Fatalf("expected operation path /settings, got %q", got)
	}
	if got := internal.config.operation.Method; got != "put" {
		t.Fatalf("expected method put, got %q", got)
	}
	if got := internal.config.operation.OperationID; got != "updateSettings" {
		t.Fatalf("expected operation id updateSettings, got %q", got)
	}
	if got := internal.config.operation.Summary; got != "Update settings" {
		t.Fatalf("expected operation summary Update settings, got %q", got)
	}
	if got := internal.config.contentType; got != "application/x-www-form-urlencoded" {
		t.Fatalf("expected content type application/x-www-form-urlencoded, got %q", got)
	}
	if got := internal.config.responses["201"].Description; got != "Created" {
		t.Fatalf("expected response description Created, got %q", got)
	}
	if _, exists := internal.config.responses["204"]; !exists {
		t.Fatalf("expected default 204 response to remain configured")
	}
}

func TestGeneratorFixtures(t *testing.T) {
	t.Parallel()

	cases := []string{
		"document_minimal.json",
		"document_tuple.json",
	}

	for _, name := range cases {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fx := loadFixture(t, name)
			input := fx.node(t)

			generator := NewGenerator()
			doc, err := generator.Generate(input)
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if doc.Format != overlay.SchemaFormatOpenAPI {
				t.Fatalf("expected format %q, got %q", overlay.SchemaFormatOpenAPI, doc.Format)
			}

			got, ok := doc.Document.(map[string]any)
			if !ok {
				t.Fatalf("expected schema document map[string]any, got %T", doc.Document)
			}
			assertJSONEqual(t, fx.Expect.Document, got)

			if err := validateDocument(got); err != nil {
				t.Fatalf("document %s failed validation: %v", name, err)
			}
		})
	}
}

func TestGeneratorNil(t *testing.T) {
	t.Parallel()

	generator := NewGenerator()

	doc, err := generator.Generate(nil)
	if err != nil {
		t.Fatalf("Generate(nil) returned error: %v", err)
	}
	if doc.Format != overlay.SchemaFormatOpenAPI {
		t.Fatalf("expected format %q, got %q", overlay.SchemaFormatOpenAPI, doc.Format)
	}
	schema, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	if err := validateDocument(schema); err != nil {
		t.Fatalf("nil root produced invalid document: %v", err)
	}
}

func TestGeneratorEnumAlternatives(t *testing.T) {
	t.Parallel()

	registry := overlay.NewEnumRegistry()
	if err := overlay.RegisterEnumIn[fixtureMode](registry, fixtureOff{},
		overlay.Variant[fixtureOff]("Off"),
		overlay.Variant[fixtureLevel]("Level"),
		overlay.Variant[fixtureCustom]("Custom"),
	); err != nil {
		t.Fatalf("register enum: %v", err)
	}
	root := overlay.Build(fixtureModeConfig{Mode: fixtureOff{}}, false, overlay.WithRegistry(registry))

	node, err := buildSchemaGraph(root)
	if err != nil {
		t.Fatalf("buildSchemaGraph returned error: %v", err)
	}
	schema := node.inlineOpenAPI()
	mode := schema["properties"].(map[string]any)["mode"].(map[string]any)
	alternatives, ok := mode["oneOf"].([]any)
	if !ok || len(alternatives) != 3 {
		t.Fatalf("expected three alternatives, got %v", mode["oneOf"])
	}

	off := alternatives[0].(map[string]any)
	if off["type"] != "string" || !reflect.DeepEqual(off["enum"], []any{"Off"}) {
		t.Fatalf("expected unit variant as string constant, got %v", off)
	}

	level := alternatives[1].(map[string]any)
	if !reflect.DeepEqual(level["required"], []string{"Level"}) {
		t.Fatalf("expected Level to be required, got %v", level["required"])
	}
	payload := level["properties"].(map[string]any)["Level"].(map[string]any)
	if payload["type"] != "integer" {
		t.Fatalf("expected single field payload to encode bare, got %v", payload)
	}

	custom := alternatives[2].(map[string]any)
	customPayload := custom["properties"].(map[string]any)["Custom"].(map[string]any)
	if customPayload["type"] != "object" {
		t.Fatalf("expected named payload object, got %v", customPayload)
	}
	if _, ok := customPayload["properties"].(map[string]any)["name"]; !ok {
		t.Fatalf("expected named payload to expose name, got %v", customPayload)
	}
}

func TestGeneratorMapValues(t *testing.T) {
	t.Parallel()

	type limits struct {
		Quotas map[string]int `json:"quotas"`
	}
	node, err := buildSchemaGraph(overlay.Build(limits{}, false))
	if err != nil {
		t.Fatalf("buildSchemaGraph returned error: %v", err)
	}
	schema := node.inlineOpenAPI()
	quotas := schema["properties"].(map[string]any)["quotas"].(map[string]any)
	additional, ok := quotas["additionalProperties"].(map[string]any)
	if !ok {
		t.Fatalf("expected additionalProperties, got %v", quotas)
	}
	if additional["type"] != "integer" {
		t.Fatalf("expected integer map values, got %v", additional["type"])
	}
}

func TestGeneratorConcurrentAccess(t *testing.T) {
	t.Parallel()

	generator := NewGenerator()
	input := overlay.Build(map[string]any{
		"service": map[string]any{
			"name":    "api",
			"enabled": true,
		},
	}, true)

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			doc, err := generator.Generate(input)
			if err != nil {
				t.Errorf("Generate returned error: %v", err)
				return
			}
			if doc.Document == nil {
				t.Errorf("expected document payload")
			}
		}()
	}
	wg.Wait()
}

type fixture struct {
	Sample string `json:"sample"`
	Expect struct {
		Document map[string]any `json:"document"`
	} `json:"expect"`
}

func (fx fixture) node(t *testing.T) overlay.Node {
	t.Helper()

	value, err := buildFixtureSample(fx.Sample)
	if err != nil {
		t.Fatalf("build fixture sample %q: %v", fx.Sample, err)
	}
	return overlay.Build(value, false)
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()

	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %q: %v", path, err)
	}

	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("unmarshal fixture %q: %v", path, err)
	}
	return fx
}

func assertJSONEqual(t *testing.T, want, got map[string]any) {
	t.Helper()

	wantBytes := mustMarshal(t, want)
	gotBytes := mustMarshal(t, got)

	if !bytes.Equal(wantBytes, gotBytes) {
		t.Fatalf("schema mismatch\nwant: %s\ngot:  %s", wantBytes, gotBytes)
	}
}

func mustMarshal(t *testing.T, value any) []byte {
	t.Helper()

	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return raw
}

type fixtureMode interface{ fixtureMode() }

type fixtureOff struct{}

type fixtureLevel struct {
	overlay.Tuple
	Value int
}

type fixtureCustom struct {
	Name string `json:"name"`
}

func (fixtureOff) fixtureMode()    {}
func (fixtureLevel) fixtureMode()  {}
func (fixtureCustom) fixtureMode() {}

type fixtureModeConfig struct {
	Mode fixtureMode `json:"mode"`
}

type fixtureMinimal struct {
	Enabled   bool    `json:"enabled"`
	Name      string  `json:"name"`
	Retries   int     `json:"retries"`
	Threshold float64 `json:"threshold"`
}

type fixturePoint struct {
	overlay.Tuple
	X     int
	Label string
}

type fixtureTuple struct {
	Point   fixturePoint `json:"point"`
	Limits  [3]int       `json:"limits"`
	Timeout *float64     `json:"timeout"`
}

func buildFixtureSample(name string) (any, error) {
	switch name {
	case "document_minimal":
		return fixtureMinimal{Enabled: true, Name: "service", Retries: 3, Threshold: 0.75}, nil
	case "document_tuple":
		return fixtureTuple{Point: fixturePoint{X: 1, Label: "a"}, Limits: [3]int{1, 2, 3}}, nil
	default:
		return nil, fmt.Errorf("unknown sample %q", name)
	}
}

func TestGeneratorExplicitMarkers(t *testing.T) {
	t.Parallel()

	root := overlay.Build(fixtureMinimal{}, false)
	if err := overlay.Apply(root, []byte(`{"name":"api","retries":5}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	doc, err := NewGenerator(WithExplicitMarkers()).Generate(root)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	document := doc.Document.(map[string]any)
	if err := validateDocument(document); err != nil {
		t.Fatalf("marked document failed validation: %v", err)
	}
	schema := requestSchema(t, document)
	if want := []string{"name", "retries"}; !reflect.DeepEqual(schema["required"], want) {
		t.Fatalf("expected required %v, got %v", want, schema["required"])
	}
	props := schema["properties"].(map[string]any)
	for name, want := range map[string]bool{"name": true, "retries": true, "enabled": false, "threshold": false} {
		_, marked := props[name].(map[string]any)["x-overlay-explicit"]
		if marked != want {
			t.Fatalf("expected %s marked=%v, got %v", name, want, props[name])
		}
	}

	internal := NewGenerator().(generator)
	if internal.config.markExplicit {
		t.Fatalf("expected markers off by default")
	}
}

type fixtureEndpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type fixtureRoutes struct {
	Primary  fixtureEndpoint `json:"primary"`
	Fallback fixtureEndpoint `json:"fallback"`
}

func requestSchema(t *testing.T, document map[string]any) map[string]any {
	t.Helper()

	post := document["paths"].(map[string]any)["/config"].(map[string]any)["post"].(map[string]any)
	content := post["requestBody"].(map[string]any)["content"].(map[string]any)
	return content["application/json"].(map[string]any)["schema"].(map[string]any)
}

func TestGeneratorSharedComponents(t *testing.T) {
	t.Parallel()

	endpointRef := map[string]any{"$ref": "#/components/schemas/fixtureEndpoint"}

	doc, err := NewGenerator().Generate(overlay.Build(fixtureRoutes{}, false))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	document := doc.Document.(map[string]any)
	schemas := document["components"].(map[string]any)["schemas"].(map[string]any)
	endpoint, ok := schemas["fixtureEndpoint"].(map[string]any)
	if !ok {
		t.Fatalf("expected component named after the overlay type, got %v", schemas)
	}
	if _, ok := endpoint["properties"].(map[string]any)["host"]; !ok {
		t.Fatalf("expected component to describe the endpoint, got %v", endpoint)
	}
	props := requestSchema(t, document)["properties"].(map[string]any)
	for _, name := range []string{"primary", "fallback"} {
		if !reflect.DeepEqual(props[name], endpointRef) {
			t.Fatalf("expected every use of %s to reference the component, got %v", name, props[name])
		}
	}

	doc, err = NewGenerator(WithRootComponent("Routes")).Generate(overlay.Build(fixtureRoutes{}, false))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	document = doc.Document.(map[string]any)
	if got := requestSchema(t, document); !reflect.DeepEqual(got, map[string]any{"$ref": "#/components/schemas/Routes"}) {
		t.Fatalf("expected root reference, got %v", got)
	}
	routes := document["components"].(map[string]any)["schemas"].(map[string]any)["Routes"].(map[string]any)
	if got := routes["properties"].(map[string]any)["primary"]; !reflect.DeepEqual(got, endpointRef) {
		t.Fatalf("expected root component to reference the endpoint, got %v", got)
	}
}

func TestGeneratorMarkersSplitComponents(t *testing.T) {
	t.Parallel()

	root := overlay.Build(fixtureRoutes{}, false)
	if err := overlay.Apply(root, []byte(`{"primary":{"port":8080}}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	doc, err := NewGenerator(WithExplicitMarkers()).Generate(root)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	document := doc.Document.(map[string]any)
	if components, ok := document["components"]; ok {
		t.Fatalf("expected explicit and implicit endpoints to stay separate, got %v", components)
	}
	props := requestSchema(t, document)["properties"].(map[string]any)
	primary := props["primary"].(map[string]any)
	if !reflect.DeepEqual(primary["required"], []string{"port"}) || primary["x-overlay-explicit"] != true {
		t.Fatalf("expected primary marked with port required, got %v", primary)
	}
	if _, marked := props["fallback"].(map[string]any)["x-overlay-explicit"]; marked {
		t.Fatalf("expected fallback unmarked, got %v", props["fallback"])
	}
}
