package canonical

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/pkg/model"
)

func ep(method, path, file string) *model.Endpoint {
	return &model.Endpoint{
		Method:     method,
		Path:       path,
		RawPath:    path,
		SourceFile: file,
		Parameters: []model.Parameter{},
		Responses:  []model.Response{},
		Middleware: []string{},
	}
}

func TestDedup_FirstWins(t *testing.T) {
	first := ep("GET", "/users/{id}", "routes.js")
	first.Parameters = append(first.Parameters, model.Parameter{Name: "id", In: model.InPath, Type: "string"})

	second := ep("GET", "/users/{id}", "routes.js")
	second.AddParameter(model.Parameter{Name: "fields", In: model.InQuery, Type: "string"})
	second.Auth = &model.Auth{Type: model.AuthJWT}

	other := ep("GET", "/users/{id}", "admin.js")

	kept, dropped := Dedup([]*model.Endpoint{first, second, other}, config.DedupDrop)
	require.Len(t, kept, 2)
	assert.Equal(t, 1, dropped)
	assert.Same(t, first, kept[0])
	assert.Same(t, other, kept[1])

	// nothing from the duplicate leaks into the survivor
	assert.Len(t, kept[0].Parameters, 1)
	assert.Nil(t, kept[0].Auth)
}

func TestDedup_AssignsStableIDs(t *testing.T) {
	a, _ := Dedup([]*model.Endpoint{ep("POST", "/orders", "a.go")}, config.DedupDrop)
	b, _ := Dedup([]*model.Endpoint{ep("POST", "/orders", "a.go")}, config.DedupDrop)
	c, _ := Dedup([]*model.Endpoint{ep("POST", "/orders", "b.go")}, config.DedupDrop)

	require.NotEmpty(t, a[0].ID)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.NotEqual(t, a[0].ID, c[0].ID)
}

func TestDedup_Merge(t *testing.T) {
	first := ep("POST", "/orders", "orders.py")
	first.AddParameter(model.Parameter{Name: "id", In: model.InQuery})
	first.AddResponse(model.Response{StatusCode: 201})

	dup := ep("POST", "/orders", "orders.py")
	dup.AddParameter(model.Parameter{Name: "id", In: model.InQuery})
	dup.AddParameter(model.Parameter{Name: "id", In: model.InHeader})
	dup.AddResponse(model.Response{StatusCode: 400})
	dup.AddResponse(model.Response{StatusCode: 201, SchemaRef: "Other"})
	dup.AddMiddleware("auth")
	dup.RequestBody = &model.RequestBody{ContentType: "application/json", SchemaRef: "Order"}
	dup.Auth = &model.Auth{Type: model.AuthBearer}
	dup.HandlerName = "create"

	kept, dropped := Dedup([]*model.Endpoint{first, dup}, config.DedupMerge)
	require.Len(t, kept, 1)
	assert.Equal(t, 1, dropped)

	got := kept[0]
	assert.Len(t, got.Parameters, 2)
	require.Len(t, got.Responses, 2)
	assert.Equal(t, 201, got.Responses[0].StatusCode)
	assert.Empty(t, got.Responses[0].SchemaRef)
	assert.Equal(t, 400, got.Responses[1].StatusCode)
	assert.Equal(t, []string{"auth"}, got.Middleware)
	require.NotNil(t, got.RequestBody)
	assert.Equal(t, "Order", got.RequestBody.SchemaRef)
	assert.Equal(t, model.AuthBearer, got.AuthType())
	assert.Equal(t, "create", got.HandlerName)
}

func TestDedup_ManyKeys(t *testing.T) {
	var eps []*model.Endpoint
	for i := 0; i < 3000; i++ {
		eps = append(eps, ep("GET", fmt.Sprintf("/r/%d", i), "big.js"))
	}
	eps = append(eps, ep("GET", "/r/7", "big.js"))

	kept, dropped := Dedup(eps, config.DedupDrop)
	assert.Len(t, kept, 3000)
	assert.Equal(t, 1, dropped)
}

func TestGroupPrefix(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/users", "/users"},
		{"/users/{id}", "/users"},
		{"/{tenant}/orders", "/orders"},
		{"/", "/"},
		{"/{id}", "/"},
		{"/api/v1/items", "/api"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, GroupPrefix(tt.path))
		})
	}
}

func TestGroup(t *testing.T) {
	eps := []*model.Endpoint{
		ep("POST", "/users", "a.js"),
		ep("GET", "/orders", "a.js"),
		ep("GET", "/users/{id}", "a.js"),
		ep("GET", "/users", "a.js"),
		ep("GET", "/", "a.js"),
	}

	groups := Group(eps)
	require.Len(t, groups, 3)
	assert.Equal(t, "/", groups[0].Prefix)
	assert.Equal(t, "/orders", groups[1].Prefix)
	assert.Equal(t, "/users", groups[2].Prefix)

	users := groups[2].Endpoints
	require.Len(t, users, 3)
	assert.Equal(t, "GET /users", users[0].String())
	assert.Equal(t, "POST /users", users[1].String())
	assert.Equal(t, "GET /users/{id}", users[2].String())
}
