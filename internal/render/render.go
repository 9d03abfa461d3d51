// Package render turns an endpoint inventory into documents and client
// code: OpenAPI, Postman collections, cURL commands, language snippets and
// mock payloads. Every renderer is a pure function of its input.
package render

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"sort"
	"strings"

	"github.com/QTest-hq/apimap/internal/datagen"
	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// Options carries document level settings shared by the renderers
type Options struct {
	Title       string
	Version     string
	Description string
	BaseURL     string
}

// DefaultOptions returns the settings used when a field is left empty
func DefaultOptions() Options {
	return Options{
		Title:   "Extracted API",
		Version: "1.0.0",
		BaseURL: "http://localhost:3000",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.Version == "" {
		o.Version = d.Version
	}
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o
}

// KV is an ordered name/value pair
type KV struct {
	Key   string
	Value string
}

// Sample is a concrete request for one endpoint, with placeholder values
// filled in from parameter names.
type Sample struct {
	Method    string
	Path      string // parameters substituted and escaped
	Query     []KV
	Headers   []KV
	Body      any  // JSON body, nil when the endpoint takes none
	Form      []KV // multipart fields
	Multipart bool
	PathVars  []KV
}

// URL joins base, path and query string. Query pairs keep their
// declaration order.
func (s Sample) URL(base string) string {
	u := strings.TrimRight(base, "/") + s.Path
	if len(s.Query) > 0 {
		parts := make([]string, len(s.Query))
		for i, q := range s.Query {
			parts[i] = url.QueryEscape(q.Key) + "=" + url.QueryEscape(q.Value)
		}
		u += "?" + strings.Join(parts, "&")
	}
	return u
}

// NewSample builds the placeholder request of ep. Values depend only on the
// endpoint's identity, so the same endpoint always renders the same way.
func NewSample(ep *model.Endpoint) Sample {
	gen := datagen.NewSeeded(seedFor(ep))
	s := Sample{Method: ep.Method}

	path := ep.Path
	for _, name := range routepath.ParamNames(ep.Path) {
		v := fmt.Sprint(gen.ValueFor(name, paramType(ep, name, model.InPath)))
		s.PathVars = append(s.PathVars, KV{name, v})
		path = strings.Replace(path, "{"+name+"}", url.PathEscape(v), 1)
	}
	s.Path = path

	for _, p := range ep.ParamsIn(model.InQuery) {
		s.Query = append(s.Query, KV{p.Name, fmt.Sprint(gen.ValueFor(p.Name, p.Type))})
	}

	if h, ok := authHeader(ep.AuthType()); ok {
		s.Headers = append(s.Headers, h)
	}
	for _, p := range ep.ParamsIn(model.InHeader) {
		if strings.EqualFold(p.Name, "authorization") {
			continue
		}
		s.Headers = append(s.Headers, KV{p.Name, fmt.Sprint(gen.ValueFor(p.Name, p.Type))})
	}

	if !hasBody(ep) {
		return s
	}
	if ep.RequestBody != nil && strings.HasPrefix(ep.RequestBody.ContentType, "multipart/") {
		s.Multipart = true
		for _, p := range ep.ParamsIn(model.InBody) {
			v := fmt.Sprint(gen.ValueFor(p.Name, p.Type))
			if p.Type == "file" || strings.Contains(strings.ToLower(p.Name), "file") {
				v = "@./" + p.Name + ".bin"
			}
			s.Form = append(s.Form, KV{p.Name, v})
		}
		if len(s.Form) == 0 {
			s.Form = append(s.Form, KV{"file", "@./file.bin"})
		}
		return s
	}
	s.Headers = append(s.Headers, KV{"Content-Type", "application/json"})
	s.Body = requestPayload(ep, gen)
	return s
}

// requestPayload prefers a literal example, then the body parameters
func requestPayload(ep *model.Endpoint, gen *datagen.DataGenerator) any {
	if ep.RequestBody != nil && ep.RequestBody.Example != "" {
		if v, ok := decodeExample(ep.RequestBody.Example); ok {
			return v
		}
	}
	schema := datagen.SchemaFromParams(ep.ParamsIn(model.InBody))
	return datagen.NewSchemaGenerator(gen).Generate(schema, "")
}

func hasBody(ep *model.Endpoint) bool {
	if ep.RequestBody != nil {
		return true
	}
	return len(ep.ParamsIn(model.InBody)) > 0
}

func authHeader(t model.AuthType) (KV, bool) {
	switch t {
	case model.AuthJWT, model.AuthBearer, model.AuthOAuth:
		return KV{"Authorization", "Bearer <token>"}, true
	case model.AuthBasic:
		return KV{"Authorization", "Basic <credentials>"}, true
	case model.AuthAPIKey:
		return KV{"X-API-Key", "<api-key>"}, true
	case model.AuthSession:
		return KV{"Cookie", "session=<session-id>"}, true
	}
	return KV{}, false
}

func paramType(ep *model.Endpoint, name string, in model.ParamLocation) string {
	for _, p := range ep.Parameters {
		if p.Name == name && p.In == in {
			return p.Type
		}
	}
	return "string"
}

func seedFor(ep *model.Endpoint) int64 {
	h := fnv.New64a()
	h.Write([]byte(ep.Method + " " + ep.Path))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// sorted returns endpoints ordered by path, then method, without touching
// the caller's slice.
func sorted(endpoints []*model.Endpoint) []*model.Endpoint {
	out := make([]*model.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep != nil {
			out = append(out, ep)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// summary is the short human label of an operation
func summary(ep *model.Endpoint) string {
	if ep.Description != "" {
		line, _, _ := strings.Cut(ep.Description, "\n")
		return strings.TrimSpace(line)
	}
	if ep.HandlerName != "" {
		return ep.HandlerName
	}
	return ep.String()
}
