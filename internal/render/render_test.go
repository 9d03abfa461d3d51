package render

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/QTest-hq/apimap/pkg/model"
)

func inventory() []*model.Endpoint {
	return []*model.Endpoint{
		{
			Method: "GET", Path: "/users", SourceFile: "routes/users.js",
			Parameters: []model.Parameter{
				{Name: "limit", Type: "integer", In: model.InQuery},
				{Name: "search", Type: "string", In: model.InQuery},
			},
			Responses: []model.Response{{StatusCode: 200, ContentType: "application/json", SchemaRef: "UserList"}},
		},
		{
			Method: "POST", Path: "/users", SourceFile: "routes/users.js", HandlerName: "createUser",
			Parameters: []model.Parameter{
				{Name: "email", Type: "string", Required: true, In: model.InBody},
				{Name: "name", Type: "string", In: model.InBody},
				{Name: "password", Type: "string", Required: true, In: model.InBody},
			},
			RequestBody: &model.RequestBody{ContentType: "application/json", SchemaRef: "CreateUserDto", Required: true},
			Responses: []model.Response{
				{StatusCode: 201, ContentType: "application/json", SchemaRef: "User"},
				{StatusCode: 400, ContentType: "application/json"},
			},
			Auth: &model.Auth{Type: model.AuthJWT},
		},
		{
			// path parameter not mined, still declared from the template
			Method: "GET", Path: "/users/{id}", SourceFile: "routes/users.js",
			Responses: []model.Response{{StatusCode: 200, ContentType: "application/json", SchemaRef: "User"}},
		},
		{
			Method: "DELETE", Path: "/users/{id}", SourceFile: "routes/users.js",
			Parameters: []model.Parameter{{Name: "id", Type: "integer", Required: true, In: model.InPath}},
			Responses:  []model.Response{{StatusCode: 204}},
			Auth:       &model.Auth{Type: model.AuthAPIKey},
		},
		{
			Method: "POST", Path: "/files/upload", SourceFile: "routes/files.js",
			Parameters: []model.Parameter{
				{Name: "avatar", Type: "file", Required: true, In: model.InBody},
				{Name: "caption", Type: "string", In: model.InBody},
			},
			RequestBody: &model.RequestBody{ContentType: "multipart/form-data", Required: true},
			Auth:        &model.Auth{Type: model.AuthBasic},
		},
		{
			Method: "GET", Path: "/", SourceFile: "app.js", Description: "Service banner",
		},
	}
}

func pairs(eps []*model.Endpoint) []string {
	var out []string
	for _, ep := range eps {
		out = append(out, ep.Method+" "+ep.Path)
	}
	sort.Strings(out)
	return out
}

func TestOpenAPI_RoundTrip(t *testing.T) {
	eps := inventory()
	data, err := OpenAPIJSON(eps, Options{Title: "Users"})
	require.NoError(t, err)

	doc, err := openapi3.NewLoader().LoadFromData(data)
	require.NoError(t, err)

	var got []string
	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			got = append(got, method+" "+path)
		}
	}
	sort.Strings(got)
	assert.Equal(t, pairs(eps), got)
}

func TestOpenAPI_Validates(t *testing.T) {
	doc := OpenAPI(inventory(), Options{})
	require.NoError(t, ValidateOpenAPI(context.Background(), doc))

	assert.Equal(t, OpenAPIVersion, doc.OpenAPI)
	assert.Equal(t, "Extracted API", doc.Info.Title)
	assert.Contains(t, doc.Components.SecuritySchemes, "bearerAuth")
	assert.Contains(t, doc.Components.SecuritySchemes, "apiKeyAuth")
	assert.Contains(t, doc.Components.SecuritySchemes, "basicAuth")
	assert.Contains(t, doc.Components.Schemas, "CreateUserDto")
	assert.Contains(t, doc.Components.Schemas, "User")
}

func TestOpenAPI_Operations(t *testing.T) {
	doc := OpenAPI(inventory(), Options{})

	get := doc.Paths.Value("/users/{id}").Get
	require.NotNil(t, get)
	assert.Equal(t, "getUsersById", get.OperationID)
	require.Len(t, get.Parameters, 1)
	assert.Equal(t, "id", get.Parameters[0].Value.Name)
	assert.Equal(t, "path", get.Parameters[0].Value.In)
	assert.True(t, get.Parameters[0].Value.Required)

	list := doc.Paths.Value("/users").Get
	require.NotNil(t, list)
	assert.Len(t, list.Parameters, 2)
	assert.Nil(t, list.Security)

	create := doc.Paths.Value("/users").Post
	require.NotNil(t, create)
	require.NotNil(t, create.RequestBody)
	media := create.RequestBody.Value.Content.Get("application/json")
	require.NotNil(t, media)
	assert.Equal(t, "#/components/schemas/CreateUserDto", media.Schema.Ref)
	assert.Equal(t, []string{"email", "password"}, media.Schema.Value.Required)
	require.NotNil(t, create.Security)
	assert.Contains(t, (*create.Security)[0], "bearerAuth")
	assert.NotNil(t, create.Responses.Value("201"))
	assert.NotNil(t, create.Responses.Value("400"))

	upload := doc.Paths.Value("/files/upload").Post
	require.NotNil(t, upload)
	assert.NotNil(t, upload.RequestBody.Value.Content.Get("multipart/form-data"))
	// no mined responses falls back to a default entry
	assert.NotNil(t, upload.Responses.Value("default"))
}

func TestOpenAPI_SameRouteTwoFiles(t *testing.T) {
	eps := []*model.Endpoint{
		{Method: "GET", Path: "/health", SourceFile: "a.js", HandlerName: "first"},
		{Method: "GET", Path: "/health", SourceFile: "b.js", HandlerName: "second"},
		{Method: "ANY", Path: "/weird", SourceFile: "c.js"},
	}
	doc := OpenAPI(eps, Options{})
	assert.Equal(t, 1, doc.Paths.Len())
	assert.Equal(t, "first", doc.Paths.Value("/health").Get.Summary)
}

func TestOpenAPI_Empty(t *testing.T) {
	doc := OpenAPI(nil, Options{})
	require.NoError(t, ValidateOpenAPI(context.Background(), doc))
	assert.Equal(t, 0, doc.Paths.Len())
}

func TestOpenAPIYAML(t *testing.T) {
	data, err := OpenAPIYAML(inventory(), Options{Version: "2.0.0"})
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "components:"), text[:min(len(text), 200)])
	assert.Contains(t, text, "\nopenapi: 3.0.3\n")
	assert.NotContains(t, text, "{\"")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "3.0.3", decoded["openapi"])
	info := decoded["info"].(map[string]any)
	assert.Equal(t, "2.0.0", info["version"])
	assert.Contains(t, decoded["paths"], "/users/{id}")
}

func TestPostman(t *testing.T) {
	eps := inventory()
	c := Postman(eps, Options{Title: "Users", BaseURL: "https://api.example.com/"})

	assert.Equal(t, PostmanSchema, c.Info.Schema)
	assert.Equal(t, "Users", c.Info.Name)
	assert.Equal(t, PostmanVariable{Key: "baseUrl", Value: "https://api.example.com"}, c.Variable[0])

	// stable across runs and input order
	reversed := make([]*model.Endpoint, len(eps))
	for i, ep := range eps {
		reversed[len(eps)-1-i] = ep
	}
	assert.Equal(t, c.Info.PostmanID, Postman(reversed, Options{Title: "Users"}).Info.PostmanID)

	require.Len(t, c.Item, 3)
	assert.Equal(t, "/", c.Item[0].Name)
	assert.Equal(t, "/files", c.Item[1].Name)
	assert.Equal(t, "/users", c.Item[2].Name)

	users := c.Item[2].Item
	require.Len(t, users, 4)
	byID := users[2].Request
	assert.Equal(t, "DELETE", byID.Method)
	assert.Equal(t, []string{"users", ":id"}, byID.URL.Path)
	require.Len(t, byID.URL.Variable, 1)
	assert.Equal(t, "id", byID.URL.Variable[0].Key)
	require.NotNil(t, byID.Auth)
	assert.Equal(t, "apikey", byID.Auth.Type)

	list := users[0].Request
	assert.Equal(t, "GET", list.Method)
	assert.True(t, strings.HasPrefix(list.URL.Raw, "{{baseUrl}}/users?limit="))
	assert.Len(t, list.URL.Query, 2)

	create := users[1].Request
	require.NotNil(t, create.Body)
	assert.Equal(t, "raw", create.Body.Mode)
	assert.Contains(t, create.Body.Raw, "\"email\"")
	assert.Equal(t, "bearer", create.Auth.Type)
	for _, h := range create.Header {
		assert.NotEqual(t, "Authorization", h.Key)
	}

	upload := c.Item[1].Item[0].Request
	require.NotNil(t, upload.Body)
	assert.Equal(t, "formdata", upload.Body.Mode)
	assert.Equal(t, "file", upload.Body.FormData[0].Type)

	data, err := PostmanJSON(eps, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"_postman_id\"")
}

func TestCurl(t *testing.T) {
	eps := inventory()

	create := Curl(eps[1], Options{})
	assert.True(t, strings.HasPrefix(create, "curl -X POST 'http://localhost:3000/users'"), create)
	assert.Contains(t, create, "-H 'Authorization: Bearer <token>'")
	assert.Contains(t, create, "-H 'Content-Type: application/json'")
	assert.Contains(t, create, "-d '{")
	assert.Contains(t, create, `"email":"`)

	list := Curl(eps[0], Options{BaseURL: "https://api.test"})
	assert.Contains(t, list, "'https://api.test/users?limit=")
	assert.Contains(t, list, "&search=")

	del := Curl(eps[3], Options{})
	assert.NotContains(t, del, "{id}")
	assert.Contains(t, del, "-H 'X-API-Key: <api-key>'")

	upload := Curl(eps[4], Options{})
	assert.Contains(t, upload, "-F 'avatar=@./avatar.bin'")
	assert.Contains(t, upload, "-F 'caption=")
	assert.Contains(t, upload, "-H 'Authorization: Basic <credentials>'")
	assert.NotContains(t, upload, "Content-Type")

	assert.Equal(t, create, Curl(eps[1], Options{}), "rendering must be deterministic")

	all := CurlAll(eps, Options{})
	assert.Equal(t, len(eps), strings.Count(all, "curl -X "))
	assert.True(t, strings.HasPrefix(all, "# GET /\n"))
}

func TestSample_URLEscapesValues(t *testing.T) {
	ep := &model.Endpoint{
		Method: "GET", Path: "/places/{address}", SourceFile: "routes/places.js",
		Parameters: []model.Parameter{
			{Name: "address", Type: "string", Required: true, In: model.InPath},
			{Name: "name", Type: "string", In: model.InQuery},
			{Name: "street", Type: "string", In: model.InQuery},
		},
	}
	s := NewSample(ep)
	require.Len(t, s.PathVars, 1)
	require.Len(t, s.Query, 2)
	require.Contains(t, s.Query[1].Value, " ", "street placeholders contain spaces")

	raw := s.URL("https://api.test")
	assert.NotContains(t, raw, " ")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/places/"+s.PathVars[0].Value, u.Path)
	assert.Equal(t, s.Query[0].Value, u.Query().Get("name"))
	assert.Equal(t, s.Query[1].Value, u.Query().Get("street"))
	assert.Less(t, strings.Index(raw, "name="), strings.Index(raw, "street="))

	assert.Contains(t, Curl(ep, Options{BaseURL: "https://api.test"}), shellQuote(raw))
}

func TestSnippets_MultipleFileFields(t *testing.T) {
	ep := &model.Endpoint{
		Method: "POST", Path: "/documents", SourceFile: "routes/documents.js",
		Parameters: []model.Parameter{
			{Name: "front", Type: "file", In: model.InBody},
			{Name: "back", Type: "file", In: model.InBody},
		},
		RequestBody: &model.RequestBody{ContentType: "multipart/form-data"},
	}

	goCode := (&GoHTTPSnippet{}).Render(ep, Options{})
	assert.Equal(t, 1, strings.Count(goCode, "part, _ := form.CreateFormFile("))
	assert.Equal(t, 1, strings.Count(goCode, "part, _ = form.CreateFormFile("))

	javaCode := (&JavaHTTPClientSnippet{}).Render(ep, Options{})
	assert.Less(t, strings.Index(javaCode, "String boundary ="), strings.Index(javaCode, "+ boundary"))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestSnippetRegistry(t *testing.T) {
	r := NewSnippetRegistry()
	assert.Equal(t, []string{"go-net-http", "java-httpclient", "javascript-fetch", "python-requests"}, r.List())

	s, err := r.Get("python")
	require.NoError(t, err)
	assert.Equal(t, "python-requests", s.Name())

	_, err = r.Get("cobol")
	assert.Error(t, err)
}

func TestSnippets(t *testing.T) {
	eps := inventory()
	create := eps[1]
	r := NewSnippetRegistry()

	tests := []struct {
		name string
		want []string
	}{
		{"javascript-fetch", []string{`fetch("http://localhost:3000/users"`, `method: "POST"`, `"Authorization": "Bearer <token>"`, "JSON.stringify("}},
		{"python-requests", []string{"import requests", `requests.post("http://localhost:3000/users", headers=headers, json=payload)`, `"email": "`}},
		{"go-net-http", []string{`http.NewRequest("POST", "http://localhost:3000/users", body)`, `req.Header.Set("Content-Type", "application/json")`}},
		{"java-httpclient", []string{`URI.create("http://localhost:3000/users")`, `.method("POST", HttpRequest.BodyPublishers.ofString(`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Get(tt.name)
			require.NoError(t, err)
			code := s.Render(create, Options{})
			for _, w := range tt.want {
				assert.Contains(t, code, w)
			}
		})
	}

	py, _ := r.Get("python-requests")
	upload := py.Render(eps[4], Options{})
	assert.Contains(t, upload, `"avatar": open("./avatar.bin", "rb")`)
	assert.Contains(t, upload, "files=files")

	all := RenderAll(py, eps, Options{})
	assert.Equal(t, len(eps), strings.Count(all, "import requests"))
}

func TestPythonLiteral(t *testing.T) {
	v := map[string]any{"b": true, "n": nil, "x": 1.5, "s": "hi", "l": []any{false}}
	got := pythonLiteral(v, "")
	assert.Equal(t, "{\n    \"b\": True,\n    \"l\": [False],\n    \"n\": None,\n    \"s\": \"hi\",\n    \"x\": 1.5,\n}", got)
}

func TestMock(t *testing.T) {
	eps := inventory()

	create := Mock(eps[1])
	assert.Equal(t, 201, create.Status)
	req, ok := create.Request.(map[string]any)
	require.True(t, ok)
	email, _ := req["email"].(string)
	assert.Contains(t, email, "@")
	resp, ok := create.Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, email, resp["email"], "response echoes submitted fields")
	assert.NotContains(t, resp, "password")
	assert.Contains(t, resp, "id")
	assert.Contains(t, resp, "updated_at")

	list := Mock(eps[0])
	assert.Equal(t, 200, list.Status)
	assert.Nil(t, list.Request)
	body := list.Response.(map[string]any)
	assert.Len(t, body["data"], 1)

	del := Mock(eps[3])
	assert.Equal(t, 204, del.Status)
	assert.Nil(t, del.Response)

	assert.Equal(t, Mock(eps[1]), create, "mocks must be deterministic")

	data, err := MockJSON(eps)
	require.NoError(t, err)
	var decoded []MockPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, len(eps))
}

func TestMock_UsesExample(t *testing.T) {
	ep := &model.Endpoint{
		Method: "PUT", Path: "/items/{id}",
		RequestBody: &model.RequestBody{ContentType: "application/json", Example: `{"qty": 3}`},
	}
	m := Mock(ep)
	assert.Equal(t, map[string]any{"qty": float64(3)}, m.Request)
	resp := m.Response.(map[string]any)
	assert.Equal(t, float64(3), resp["qty"])
	assert.Contains(t, resp, "id")
}

func TestArtifact(t *testing.T) {
	eps := inventory()
	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			data, err := Artifact(format, eps, Options{}, "python")
			require.NoError(t, err)
			assert.NotEmpty(t, data)
			if ContentType(format) == "application/json" {
				assert.True(t, json.Valid(data))
			}
		})
	}

	_, err := Artifact("snippet", eps, Options{}, "")
	assert.Error(t, err)
	_, err = Artifact("snippet", eps, Options{}, "cobol")
	assert.Error(t, err)
	_, err = Artifact("har", eps, Options{}, "")
	assert.ErrorContains(t, err, "unsupported format")
}
