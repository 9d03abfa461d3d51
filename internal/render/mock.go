package render

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/QTest-hq/apimap/internal/datagen"
	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// MockPayload is a sample exchange for one endpoint
type MockPayload struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Status   int    `json:"status"`
	Request  any    `json:"request,omitempty"`
	Response any    `json:"response,omitempty"`
}

// Mock builds the request and response examples of ep
func Mock(ep *model.Endpoint) MockPayload {
	gen := datagen.NewSeeded(seedFor(ep) ^ 0x5f3759df)
	sg := datagen.NewSchemaGenerator(gen)

	m := MockPayload{Method: ep.Method, Path: ep.Path, Status: successStatus(ep)}
	if hasBody(ep) {
		m.Request = requestPayload(ep, gen)
	}
	if m.Status == http.StatusNoContent || ep.Method == http.MethodHead {
		return m
	}

	resource := responseResource(ep, m.Request)
	if ep.Method == http.MethodGet && isCollection(ep.Path) {
		m.Response = map[string]any{
			"data":  []any{sg.Generate(resource, "")},
			"total": 1,
		}
		return m
	}
	m.Response = sg.Generate(resource, "")
	return m
}

// MockAll builds payloads for every endpoint in path order
func MockAll(endpoints []*model.Endpoint) []MockPayload {
	eps := sorted(endpoints)
	out := make([]MockPayload, 0, len(eps))
	for _, ep := range eps {
		out = append(out, Mock(ep))
	}
	return out
}

// MockJSON renders MockAll as indented JSON
func MockJSON(endpoints []*model.Endpoint) ([]byte, error) {
	data, err := json.MarshalIndent(MockAll(endpoints), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mocks: %w", err)
	}
	return data, nil
}

// responseResource describes the object an endpoint returns: an id, the
// path parameters, and whatever fields the request carried.
func responseResource(ep *model.Endpoint, request any) *datagen.Schema {
	s := &datagen.Schema{
		Type:       "object",
		Properties: map[string]*datagen.Schema{"id": {Type: "string", Format: "uuid"}},
	}
	for _, name := range routepath.ParamNames(ep.Path) {
		s.Properties[name] = &datagen.Schema{Type: paramType(ep, name, model.InPath)}
	}
	if obj, ok := request.(map[string]any); ok {
		inferred := datagen.InferSchema("", obj)
		for name, prop := range inferred.Properties {
			if isSensitive(name) {
				continue
			}
			// echo the submitted value
			prop.Example = obj[name]
			s.Properties[name] = prop
		}
	}
	if ep.Method == http.MethodPost || ep.Method == http.MethodPut || ep.Method == http.MethodPatch {
		s.Properties["updated_at"] = &datagen.Schema{Type: "string", Format: "date-time"}
	}
	return s
}

func successStatus(ep *model.Endpoint) int {
	for _, r := range ep.Responses {
		if r.StatusCode >= 200 && r.StatusCode < 300 {
			return r.StatusCode
		}
	}
	switch ep.Method {
	case http.MethodPost:
		return http.StatusCreated
	case http.MethodDelete:
		return http.StatusNoContent
	}
	return http.StatusOK
}

// isCollection reports whether the path ends in a static segment
func isCollection(path string) bool {
	segs := routepath.Segments(path)
	return len(segs) > 0 && !routepath.IsParam(segs[len(segs)-1])
}

func isSensitive(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "password") || strings.Contains(n, "secret")
}

// decodeExample parses a JSON example lifted from source
func decodeExample(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
