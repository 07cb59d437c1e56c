package openapispec

import (
	"strings"
	"testing"
)

const validSwagger = `{
	"swagger": "2.0",
	"info": {"title": "Podio Sync", "version": "1.0"},
	"host": "api.example.test",
	"basePath": "/",
	"schemes": ["https"],
	"paths": {
		"/items": {
			"get": {
				"operationId": "ListItems",
				"responses": {"200": {"description": "OK"}}
			},
			"post": {
				"operationId": "CreateItem",
				"responses": {"201": {"description": "Created"}}
			}
		}
	}
}`

const validOpenAPI3YAML = `
openapi: "3.0.0"
info:
  title: Podio Sync
  version: "1.0"
paths:
  /items:
    get:
      operationId: ListItems
      responses:
        "200":
          description: OK
`

func TestValidateSwagger2(t *testing.T) {
	info, err := Validate([]byte(validSwagger))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if info.Version != "swagger 2.0" {
		t.Errorf("version %q, want swagger 2.0", info.Version)
	}
	if info.Title != "Podio Sync" {
		t.Errorf("title %q, want Podio Sync", info.Title)
	}
	if info.Operations != 2 {
		t.Errorf("operations = %d, want 2", info.Operations)
	}
}

func TestValidateOpenAPI3FromYAML(t *testing.T) {
	info, err := Validate([]byte(validOpenAPI3YAML))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !strings.HasPrefix(info.Version, "openapi 3.0") {
		t.Errorf("version %q, want openapi 3.0.x", info.Version)
	}
	if info.Operations != 1 {
		t.Errorf("operations = %d, want 1", info.Operations)
	}
}

func TestValidateRejectsVersionlessDocument(t *testing.T) {
	if _, err := Validate([]byte(`{"info": {"title": "x"}}`)); err == nil {
		t.Fatal("Validate accepted a document with no version declaration")
	}
}

func TestValidateRejectsMalformedInput(t *testing.T) {
	if _, err := Validate([]byte(`{not json`)); err == nil {
		t.Fatal("Validate accepted malformed input")
	}
}

func TestValidateRejectsOldSwagger(t *testing.T) {
	if _, err := Validate([]byte(`{"swagger": "1.2", "info": {"title": "x"}}`)); err == nil {
		t.Fatal("Validate accepted swagger 1.2")
	}
}
