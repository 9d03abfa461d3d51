package render

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// OpenAPIVersion is the version string written into documents
const OpenAPIVersion = "3.0.3"

var securitySchemeNames = map[model.AuthType]string{
	model.AuthJWT:     "bearerAuth",
	model.AuthBearer:  "bearerAuth",
	model.AuthOAuth:   "oauth2",
	model.AuthBasic:   "basicAuth",
	model.AuthAPIKey:  "apiKeyAuth",
	model.AuthSession: "sessionAuth",
}

// OpenAPI builds an OpenAPI 3 document with one operation per distinct
// (method, path). When two endpoints share a method and path from
// different files the first one in path order is documented.
func OpenAPI(endpoints []*model.Endpoint, opts Options) *openapi3.T {
	opts = opts.withDefaults()
	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info: &openapi3.Info{
			Title:       opts.Title,
			Version:     opts.Version,
			Description: opts.Description,
		},
		Servers: openapi3.Servers{{URL: opts.BaseURL}},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas:         openapi3.Schemas{},
			SecuritySchemes: openapi3.SecuritySchemes{},
		},
	}

	b := &openAPIBuilder{doc: doc, opIDs: make(map[string]int), tags: make(map[string]bool)}
	for _, ep := range sorted(endpoints) {
		b.add(ep)
	}
	return doc
}

// ValidateOpenAPI runs the kin-openapi structural checks. Examples are
// lifted from source comments and are not checked against their schemas.
func ValidateOpenAPI(ctx context.Context, doc *openapi3.T) error {
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return fmt.Errorf("invalid openapi document: %w", err)
	}
	return nil
}

// OpenAPIJSON renders the document as indented JSON
func OpenAPIJSON(endpoints []*model.Endpoint, opts Options) ([]byte, error) {
	data, err := json.MarshalIndent(OpenAPI(endpoints, opts), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal openapi: %w", err)
	}
	return data, nil
}

// OpenAPIYAML renders the document as YAML, keeping the JSON key order
func OpenAPIYAML(endpoints []*model.Endpoint, opts Options) ([]byte, error) {
	data, err := json.Marshal(OpenAPI(endpoints, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal openapi: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert openapi to yaml: %w", err)
	}
	blockStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal openapi yaml: %w", err)
	}
	return out, nil
}

// blockStyle clears the flow and quoting styles JSON input carries. The
// encoder still quotes scalars whose plain form would change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

type openAPIBuilder struct {
	doc   *openapi3.T
	opIDs map[string]int
	tags  map[string]bool
}

func (b *openAPIBuilder) add(ep *model.Endpoint) {
	method := strings.ToUpper(ep.Method)
	if !knownMethod(method) {
		log.Debug().Str("method", ep.Method).Str("path", ep.Path).Msg("skipping unsupported method")
		return
	}
	if item := b.doc.Paths.Value(ep.Path); item != nil && item.GetOperation(method) != nil {
		return
	}

	tag := strings.TrimPrefix(routepath.GroupPrefix(ep.Path), "/")
	if tag == "" {
		tag = "root"
	}
	if !b.tags[tag] {
		b.tags[tag] = true
		b.doc.Tags = append(b.doc.Tags, &openapi3.Tag{Name: tag})
	}

	op := openapi3.NewOperation()
	op.OperationID = b.operationID(ep)
	op.Summary = summary(ep)
	op.Description = ep.Description
	op.Tags = []string{tag}
	op.Parameters = b.parameters(ep)
	op.RequestBody = b.requestBody(ep)
	op.Responses = b.responses(ep)
	if sec := b.security(ep); sec != nil {
		op.Security = sec
	}

	b.doc.AddOperation(ep.Path, method, op)
}

func knownMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
		http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// operationID derives a camelCase id such as getUsersById, suffixed when
// two paths collapse to the same words.
func (b *openAPIBuilder) operationID(ep *model.Endpoint) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(ep.Method))
	for _, seg := range routepath.Segments(ep.Path) {
		if routepath.IsParam(seg) {
			sb.WriteString("By")
			seg = seg[1 : len(seg)-1]
		}
		for _, word := range splitWords(seg) {
			sb.WriteString(strings.ToUpper(word[:1]) + word[1:])
		}
	}
	id := sb.String()
	b.opIDs[id]++
	if n := b.opIDs[id]; n > 1 {
		id += strconv.Itoa(n)
	}
	return id
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (b *openAPIBuilder) parameters(ep *model.Endpoint) openapi3.Parameters {
	var params openapi3.Parameters

	// the template is authoritative for path parameters
	for _, name := range routepath.ParamNames(ep.Path) {
		p := openapi3.NewPathParameter(name).WithSchema(schemaFor(paramType(ep, name, model.InPath)))
		if d := paramDescription(ep, name, model.InPath); d != "" {
			p.Description = d
		}
		params = append(params, &openapi3.ParameterRef{Value: p})
	}
	for _, mp := range ep.Parameters {
		var p *openapi3.Parameter
		switch mp.In {
		case model.InQuery:
			p = openapi3.NewQueryParameter(mp.Name)
		case model.InHeader:
			if strings.EqualFold(mp.Name, "authorization") {
				continue
			}
			p = openapi3.NewHeaderParameter(mp.Name)
		default:
			continue
		}
		p.Required = mp.Required
		p.Description = mp.Description
		p.Schema = openapi3.NewSchemaRef("", schemaFor(mp.Type))
		params = append(params, &openapi3.ParameterRef{Value: p})
	}
	return params
}

func paramDescription(ep *model.Endpoint, name string, in model.ParamLocation) string {
	for _, p := range ep.Parameters {
		if p.Name == name && p.In == in {
			return p.Description
		}
	}
	return ""
}

func (b *openAPIBuilder) requestBody(ep *model.Endpoint) *openapi3.RequestBodyRef {
	if !hasBody(ep) {
		return nil
	}
	ct := "application/json"
	required := true
	ref := ""
	if ep.RequestBody != nil {
		if ep.RequestBody.ContentType != "" {
			ct = ep.RequestBody.ContentType
		}
		required = ep.RequestBody.Required
		ref = ep.RequestBody.SchemaRef
	}

	body := openapi3.NewObjectSchema()
	for _, p := range ep.ParamsIn(model.InBody) {
		prop := schemaFor(p.Type)
		if p.Type == "file" {
			prop = openapi3.NewStringSchema().WithFormat("binary")
		}
		body.WithProperty(p.Name, prop)
		if p.Required {
			body.Required = append(body.Required, p.Name)
		}
	}

	schemaRef := b.component(ref, body)
	rb := openapi3.NewRequestBody().
		WithRequired(required).
		WithContent(openapi3.NewContentWithSchemaRef(schemaRef, []string{ct}))
	if ep.RequestBody != nil && ep.RequestBody.Example != "" {
		if v, ok := decodeExample(ep.RequestBody.Example); ok {
			if mt := rb.Content.Get(ct); mt != nil {
				mt.Example = v
			}
		}
	}
	return &openapi3.RequestBodyRef{Value: rb}
}

func (b *openAPIBuilder) responses(ep *model.Endpoint) *openapi3.Responses {
	responses := openapi3.NewResponsesWithCapacity(len(ep.Responses) + 1)
	for _, r := range ep.Responses {
		desc := r.Description
		if desc == "" {
			desc = http.StatusText(r.StatusCode)
		}
		if desc == "" {
			desc = "Response"
		}
		resp := openapi3.NewResponse().WithDescription(desc)
		if r.StatusCode != http.StatusNoContent && r.ContentType != "" {
			resp.Content = openapi3.NewContentWithSchemaRef(b.component(r.SchemaRef, openapi3.NewObjectSchema()), []string{r.ContentType})
		}
		responses.Set(strconv.Itoa(r.StatusCode), &openapi3.ResponseRef{Value: resp})
	}
	if responses.Len() == 0 {
		responses.Set("default", &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Unspecified response")})
	}
	return responses
}

func (b *openAPIBuilder) security(ep *model.Endpoint) *openapi3.SecurityRequirements {
	t := ep.AuthType()
	name, ok := securitySchemeNames[t]
	if !ok {
		return nil
	}
	if _, exists := b.doc.Components.SecuritySchemes[name]; !exists {
		b.doc.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{Value: securityScheme(t)}
	}
	scopes := []string{}
	if ep.Auth != nil && t == model.AuthOAuth {
		scopes = append(scopes, ep.Auth.Roles...)
	}
	return &openapi3.SecurityRequirements{{name: scopes}}
}

func securityScheme(t model.AuthType) *openapi3.SecurityScheme {
	switch t {
	case model.AuthBasic:
		return &openapi3.SecurityScheme{Type: "http", Scheme: "basic"}
	case model.AuthAPIKey:
		return &openapi3.SecurityScheme{Type: "apiKey", In: "header", Name: "X-API-Key"}
	case model.AuthSession:
		return &openapi3.SecurityScheme{Type: "apiKey", In: "cookie", Name: "session"}
	case model.AuthOAuth:
		return &openapi3.SecurityScheme{
			Type: "oauth2",
			Flows: &openapi3.OAuthFlows{
				AuthorizationCode: &openapi3.OAuthFlow{
					AuthorizationURL: "https://example.com/oauth/authorize",
					TokenURL:         "https://example.com/oauth/token",
					Scopes:           map[string]string{"default": "Default access"},
				},
			},
		}
	case model.AuthJWT:
		return &openapi3.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
	default:
		return &openapi3.SecurityScheme{Type: "http", Scheme: "bearer"}
	}
}

var componentUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// component registers a named schema and returns a reference to it, or the
// inline schema when the name is empty.
func (b *openAPIBuilder) component(name string, schema *openapi3.Schema) *openapi3.SchemaRef {
	name = strings.Trim(componentUnsafe.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return openapi3.NewSchemaRef("", schema)
	}
	existing, ok := b.doc.Components.Schemas[name]
	if !ok {
		existing = openapi3.NewSchemaRef("", schema)
		b.doc.Components.Schemas[name] = existing
	} else if len(existing.Value.Properties) == 0 && len(schema.Properties) > 0 {
		existing.Value = schema
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, existing.Value)
}

func schemaFor(typ string) *openapi3.Schema {
	switch typ {
	case "integer":
		return openapi3.NewIntegerSchema()
	case "number":
		return openapi3.NewFloat64Schema()
	case "boolean":
		return openapi3.NewBoolSchema()
	case "array":
		return openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	case "object":
		return openapi3.NewObjectSchema()
	default:
		return openapi3.NewStringSchema()
	}
}
