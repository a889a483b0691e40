package http_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/civiclens/internal/adapters/http"
)

// findOpenAPIFile locates api/openapi.yaml by walking up from the test directory.
func findOpenAPIFile(t *testing.T) string {
	t.Helper()
	dir, _ := os.Getwd()

	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

func loadDocument(t *testing.T) *openapi3.T {
	t.Helper()
	data, err := os.ReadFile(findOpenAPIFile(t))
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}
	return doc
}

// TestOpenAPIDocument validates the OpenAPI document and checks it covers every route.
func TestOpenAPIDocument(t *testing.T) {
	doc := loadDocument(t)

	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/analyze",
		"/v1/issues",
		"/v1/issues/latest",
		"/v1/issues/nearby",
		"/v1/issues/{id}",
		"/api/analyze",
		"/api/issue",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	for _, schema := range []string{"AnalysisRecord", "Issue", "IssuePage", "GeoPoint", "NoOutput", "APIError", "Pagination"} {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	// The record keeps exactly its three nullable keys.
	rec := doc.Components.Schemas["AnalysisRecord"].Value
	if len(rec.Properties) != 3 || len(rec.Required) != 3 {
		t.Errorf("AnalysisRecord has %d properties, %d required", len(rec.Properties), len(rec.Required))
	}
	for name, p := range rec.Properties {
		if !p.Value.Nullable {
			t.Errorf("AnalysisRecord.%s should be nullable", name)
		}
	}

	for _, legacy := range []string{"/api/analyze", "/api/issue"} {
		item := doc.Paths.Find(legacy)
		for _, op := range item.Operations() {
			if !op.Deprecated {
				t.Errorf("%s should be marked deprecated", legacy)
			}
		}
	}

	t.Logf("OpenAPI document valid: %d paths, %d schemas", len(doc.Paths.Map()), len(doc.Components.Schemas))
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	doc := loadDocument(t)

	if doc.Info.Title != "CivicLens Issue API" {
		t.Errorf("expected title 'CivicLens Issue API', got %q", doc.Info.Title)
	}
	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}
	if doc.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(doc.Servers) == 0 {
		t.Fatal("expected at least one server")
	}
}

// TestDocsServesDocument checks /docs/openapi.yaml serves the configured file.
func TestDocsServesDocument(t *testing.T) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, &handler.Dependencies{OpenAPIPath: findOpenAPIFile(t)})

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Content-Type = %q", ct)
	}
}
