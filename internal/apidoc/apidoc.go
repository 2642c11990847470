// Package apidoc checks the published OpenAPI document against the routes
// the HTTP server actually serves.
package apidoc

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route is one method and path template, e.g. GET /api/sessions/{sessionId}.
type Route struct {
	Method string
	Path   string
}

func (r Route) String() string { return r.Method + " " + r.Path }

// Doc is the subset of an OpenAPI 3 document that is checked.
type Doc struct {
	Paths      map[string]map[string]yaml.Node `yaml:"paths"`
	Components struct {
		Schemas map[string]Schema `yaml:"schemas"`
	} `yaml:"components"`
}

type Schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]Schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *Schema           `yaml:"items"`
}

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

// Load reads and parses an OpenAPI document.
func Load(path string) (Doc, error) {
	var doc Doc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Routes lists the documented operations, sorted.
func (d Doc) Routes() []Route {
	var out []Route
	for path, ops := range d.Paths {
		for method := range ops {
			if httpMethods[strings.ToLower(method)] {
				out = append(out, Route{Method: strings.ToUpper(method), Path: path})
			}
		}
	}
	sortRoutes(out)
	return out
}

// ValidateErrorResponse checks that ErrorResponse matches the {"error": "..."}
// body every handler writes on failure.
func (d Doc) ValidateErrorResponse() error {
	s, ok := d.Components.Schemas["ErrorResponse"]
	if !ok {
		return errors.New("schema \"ErrorResponse\" missing")
	}
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	if !makeSet(s.Required)["error"] {
		return errors.New("ErrorResponse.required must include \"error\"")
	}
	if prop, ok := s.Properties["error"]; !ok || prop.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	return nil
}

// Diff reports routes served but undocumented and documented but not served.
// HEAD and OPTIONS are ignored on both sides.
func Diff(documented, served []Route) (undocumented, unserved []Route) {
	doc := routeSet(documented)
	srv := routeSet(served)
	for r := range srv {
		if !doc[r] {
			undocumented = append(undocumented, r)
		}
	}
	for r := range doc {
		if !srv[r] {
			unserved = append(unserved, r)
		}
	}
	sortRoutes(undocumented)
	sortRoutes(unserved)
	return undocumented, unserved
}

// Check validates the document and compares it with served.
func Check(doc Doc, served []Route) error {
	if err := doc.ValidateErrorResponse(); err != nil {
		return err
	}
	undocumented, unserved := Diff(doc.Routes(), served)
	var problems []string
	for _, r := range undocumented {
		problems = append(problems, "undocumented route "+r.String())
	}
	for _, r := range unserved {
		problems = append(problems, "documented route not served "+r.String())
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func routeSet(routes []Route) map[Route]bool {
	out := make(map[Route]bool, len(routes))
	for _, r := range routes {
		r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
		if r.Method == "HEAD" || r.Method == "OPTIONS" {
			continue
		}
		out[r] = true
	}
	return out
}

func sortRoutes(routes []Route) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out[item] = true
		}
	}
	return out
}
