// Package openapispec validates connector API definitions. Power Platform
// custom connectors are described by Swagger 2.0 documents; OpenAPI 3.x is
// accepted too since exported definitions are often upconverted.
package openapispec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Info summarizes a validated definition.
type Info struct {
	Version    string
	Title      string
	Operations int
}

// Validate parses and validates an OpenAPI document given as JSON or YAML.
func Validate(data []byte) (*Info, error) {
	doc, err := toJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}

	var versions struct {
		Swagger string `json:"swagger"`
		OpenAPI string `json:"openapi"`
	}
	if err := json.Unmarshal(doc, &versions); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}

	switch {
	case versions.Swagger != "":
		return validateV2(doc, versions.Swagger)
	case versions.OpenAPI != "":
		return validateV3(doc, versions.OpenAPI)
	default:
		return nil, fmt.Errorf("document declares neither swagger nor openapi version")
	}
}

func validateV2(doc []byte, version string) (*Info, error) {
	if version != "2.0" {
		return nil, fmt.Errorf("unsupported swagger version %q", version)
	}

	var v2 openapi2.T
	if err := json.Unmarshal(doc, &v2); err != nil {
		return nil, fmt.Errorf("decoding swagger 2.0 document: %w", err)
	}

	// kin-openapi has no standalone v2 validator; converting surfaces
	// structural errors and the v3 validation covers the rest.
	v3, err := openapi2conv.ToV3(&v2)
	if err != nil {
		return nil, fmt.Errorf("invalid swagger 2.0 document: %w", err)
	}

	loader := openapi3.NewLoader()
	if err := v3.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid swagger 2.0 document: %w", err)
	}

	return &Info{
		Version:    "swagger " + version,
		Title:      v2.Info.Title,
		Operations: countOperations(v3),
	}, nil
}

func validateV3(doc []byte, version string) (*Info, error) {
	loader := openapi3.NewLoader()
	v3, err := loader.LoadFromData(doc)
	if err != nil {
		return nil, fmt.Errorf("decoding OpenAPI document: %w", err)
	}
	if err := v3.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	title := ""
	if v3.Info != nil {
		title = v3.Info.Title
	}
	return &Info{
		Version:    "openapi " + version,
		Title:      title,
		Operations: countOperations(v3),
	}, nil
}

func countOperations(doc *openapi3.T) int {
	count := 0
	if doc.Paths == nil {
		return 0
	}
	for _, item := range doc.Paths.Map() {
		count += len(item.Operations())
	}
	return count
}

// toJSON returns the document as JSON, converting from YAML when needed.
// JSON documents pass through untouched.
func toJSON(data []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if !json.Valid([]byte(trimmed)) {
			return nil, fmt.Errorf("malformed JSON")
		}
		return []byte(trimmed), nil
	}

	var node any
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return json.Marshal(node)
}
