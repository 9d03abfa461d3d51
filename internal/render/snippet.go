package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Snippet renders client code calling one endpoint
type Snippet interface {
	// Name returns the registry key (e.g., "python-requests")
	Name() string

	// Language returns the target language
	Language() string

	// Render generates the call
	Render(ep *model.Endpoint, opts Options) string
}

// SnippetRegistry holds the available snippet renderers
type SnippetRegistry struct {
	snippets map[string]Snippet
}

// NewSnippetRegistry creates a registry with all built-in snippets
func NewSnippetRegistry() *SnippetRegistry {
	r := &SnippetRegistry{snippets: make(map[string]Snippet)}

	r.Register(&FetchSnippet{})
	r.Register(&RequestsSnippet{})
	r.Register(&GoHTTPSnippet{})
	r.Register(&JavaHTTPClientSnippet{})

	return r
}

// Register adds a snippet to the registry
func (r *SnippetRegistry) Register(s Snippet) {
	r.snippets[s.Name()] = s
}

// Get returns a snippet by name, or by language when no name matches
func (r *SnippetRegistry) Get(name string) (Snippet, error) {
	if s, ok := r.snippets[name]; ok {
		return s, nil
	}
	for _, key := range r.List() {
		if s := r.snippets[key]; s.Language() == strings.ToLower(name) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("snippet not found: %s", name)
}

// List returns the registered names in sorted order
func (r *SnippetRegistry) List() []string {
	names := make([]string, 0, len(r.snippets))
	for name := range r.snippets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderAll renders every endpoint with one snippet
func RenderAll(s Snippet, endpoints []*model.Endpoint, opts Options) string {
	var sb strings.Builder
	for i, ep := range sorted(endpoints) {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(s.Render(ep, opts))
	}
	return sb.String()
}
