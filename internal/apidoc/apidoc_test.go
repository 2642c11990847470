package apidoc

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleDoc = `
openapi: 3.0.3
paths:
  /api/sessions:
    post: { summary: create }
    parameters: []
  /api/sessions/{sessionId}:
    get: { summary: get }
components:
  schemas:
    ErrorResponse:
      type: object
      required: [error]
      properties:
        error: { type: string }
`

func writeDoc(t *testing.T, content string) Doc {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load doc: %v", err)
	}
	return doc
}

func TestRoutesIgnoresNonMethodKeys(t *testing.T) {
	doc := writeDoc(t, sampleDoc)
	want := []Route{
		{Method: "POST", Path: "/api/sessions"},
		{Method: "GET", Path: "/api/sessions/{sessionId}"},
	}
	if got := doc.Routes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("routes = %v, want %v", got, want)
	}
}

func TestCheck(t *testing.T) {
	doc := writeDoc(t, sampleDoc)
	served := []Route{
		{Method: "POST", Path: "/api/sessions"},
		{Method: "GET", Path: "/api/sessions/{sessionId}"},
		{Method: "OPTIONS", Path: "/api/sessions"},
	}
	if err := Check(doc, served); err != nil {
		t.Fatalf("check: %v", err)
	}

	served = append(served[:1], Route{Method: "GET", Path: "/api/health"})
	err := Check(doc, served)
	if err == nil {
		t.Fatal("expected drift to be reported")
	}
	for _, want := range []string{"undocumented route GET /api/health", "documented route not served GET /api/sessions/{sessionId}"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestValidateErrorResponse(t *testing.T) {
	tests := []struct {
		name    string
		schemas string
		wantErr string
	}{
		{"missing", "    Other: { type: object }", "missing"},
		{"not object", "    ErrorResponse: { type: string }", "must be object"},
		{"not required", "    ErrorResponse: { type: object, properties: { error: { type: string } } }", "required"},
		{"wrong type", "    ErrorResponse: { type: object, required: [error], properties: { error: { type: integer } } }", "must be string"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := writeDoc(t, "components:\n  schemas:\n"+tc.schemas+"\n")
			err := doc.ValidateErrorResponse()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
		})
	}
}
