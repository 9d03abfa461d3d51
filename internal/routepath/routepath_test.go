package routepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw       string
		want      string
		wantNames []string
		wantTypes []string
	}{
		{"/users/:id", "/users/{id}", []string{"id"}, []string{"string"}},
		{"/users/:id?", "/users/{id}", []string{"id"}, []string{"string"}},
		{"/users/:id(\\d+)", "/users/{id}", []string{"id"}, []string{"integer"}},
		{"/users/<id>", "/users/{id}", []string{"id"}, []string{"string"}},
		{"/users/<int:id>", "/users/{id}", []string{"id"}, []string{"integer"}},
		{"users/<slug:slug>/", "/users/{slug}", []string{"slug"}, []string{"string"}},
		{"/items/{id:\\d+}", "/items/{id}", []string{"id"}, []string{"integer"}},
		{"/items/{id:int}", "/items/{id}", []string{"id"}, []string{"integer"}},
		{"/items/{id?}", "/items/{id}", []string{"id"}, []string{"string"}},
		{"/blog/{*slug}", "/blog/{slug}", []string{"slug"}, []string{"string"}},
		{"/api/users/[id]", "/api/users/{id}", []string{"id"}, []string{"string"}},
		{"/docs/[...slug]", "/docs/{slug}", []string{"slug"}, []string{"string"}},
		{"/docs/[[...slug]]", "/docs/{slug}", []string{"slug"}, []string{"string"}},
		{"/files/*path", "/files/{path}", []string{"path"}, []string{"string"}},
		{"^users/(?P<pk>[0-9]+)/$", "/users/{pk}", []string{"pk"}, []string{"integer"}},
		{"/a//b///c/", "/a/b/c", nil, nil},
		{"", "/", nil, nil},
		{"/", "/", nil, nil},
		{"/files/:name.:ext", "/files/{name}.{ext}", []string{"name", "ext"}, []string{"string", "string"}},
		{"/orgs/{org}/repos/{repo}", "/orgs/{org}/repos/{repo}", []string{"org", "repo"}, []string{"string", "string"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, params := Normalize(tt.raw)
			assert.Equal(t, tt.want, got)

			var names, types []string
			for _, p := range params {
				names = append(names, p.Name)
				types = append(types, p.Type)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantTypes, types)
		})
	}
}

func TestNormalize_Optional(t *testing.T) {
	tests := map[string][]bool{
		"/reports/:year/:month?": {false, true},
		"/items/{id?}":           {true},
		"/items/{id:int?}":       {true},
		"/docs/[[...slug]]":      {true},
		"/docs/[...slug]":        {false},
		"/users/<int:id>":        {false},
	}
	for raw, want := range tests {
		_, params := Normalize(raw)
		var got []bool
		for _, p := range params {
			got = append(got, p.Optional)
		}
		assert.Equal(t, want, got, raw)
	}

	_, params := Normalize("/items/{id:int?}")
	assert.Equal(t, "integer", params[0].Type)
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, raw := range []string{"/users/:id", "/a/<int:b>/c/", "/x/{y:\\d+}/[z]", "/files/*rest"} {
		once := Clean(raw)
		assert.Equal(t, once, Clean(once), raw)
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/api/v1/items", Join("/api/v1", "/items"))
	assert.Equal(t, "/api/v1/items", Join("/api/v1/", "items"))
	assert.Equal(t, "/api", Join("/api", "/"))
	assert.Equal(t, "/api", Join("/api", ""))
	assert.Equal(t, "/items", Join("", "items"))
	assert.Equal(t, "/", Join("", ""))
}

func TestGroupPrefix(t *testing.T) {
	assert.Equal(t, "/users", GroupPrefix("/users/{id}"))
	assert.Equal(t, "/api", GroupPrefix("/api/users"))
	assert.Equal(t, "/users", GroupPrefix("/{tenant}/users"))
	assert.Equal(t, "/", GroupPrefix("/"))
	assert.Equal(t, "/", GroupPrefix("/{id}"))
}

func TestShapeAndParamNames(t *testing.T) {
	assert.Equal(t, "/users/{}/posts/{}", Shape("/users/{id}/posts/{postId}"))
	assert.Equal(t, []string{"id", "postId"}, ParamNames("/users/{id}/posts/{postId}"))
	assert.Nil(t, ParamNames("/health"))
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("/users/{id}", "/users/42"))
	assert.True(t, Matches("/users/{id}", "/users/42?expand=true"))
	assert.True(t, Matches("/users/{id}", "/users/:id"))
	assert.True(t, Matches("/users", "/users/"))
	assert.False(t, Matches("/users/{id}", "/users"))
	assert.False(t, Matches("/users/{id}", "/orders/1"))
}
