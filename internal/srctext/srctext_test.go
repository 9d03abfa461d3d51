package srctext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineHelpers(t *testing.T) {
	content := "one\ntwo\nthree"
	assert.Equal(t, 1, LineAt(content, 0))
	assert.Equal(t, 2, LineAt(content, 4))
	assert.Equal(t, 3, LineAt(content, len(content)))
	assert.Equal(t, 4, LineStart(content, 6))
	assert.Equal(t, 7, LineEnd(content, 5))
	assert.Equal(t, "two", Line(content, 5))
	assert.Equal(t, "three", Line(content, 9))
}

func TestMatchingClose(t *testing.T) {
	content := `f(a, "x)", g(b), [1, 2]) tail`
	end := MatchingClose(content, 1)
	require.Greater(t, end, 0)
	assert.Equal(t, ") tail", content[end:])

	assert.Equal(t, -1, MatchingClose("f(a", 1))
	assert.Equal(t, -1, MatchingClose("abc", 0))
}

func TestCallArgs(t *testing.T) {
	content := `router.post('/orders', auth, validate({ a: 1, b: 2 }), createOrder);`
	open := len(`router.post`)
	args, end := CallArgs(content, open)

	require.Len(t, args, 4)
	assert.Equal(t, `'/orders'`, args[0])
	assert.Equal(t, "auth", args[1])
	assert.Equal(t, "validate({ a: 1, b: 2 })", args[2])
	assert.Equal(t, "createOrder", args[3])
	assert.Equal(t, ");", content[end:])
}

func TestCallArgs_Multiline(t *testing.T) {
	content := "app.get(\n  '/x',\n  (req, res) => {\n    res.json({ ok: true })\n  }\n)"
	args, end := CallArgs(content, len("app.get"))
	require.Len(t, args, 2)
	assert.Equal(t, "'/x'", args[0])
	assert.Contains(t, args[1], "res.json")
	assert.Equal(t, len(content)-1, end)
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`'/users'`, "/users", true},
		{`"/users"`, "/users", true},
		{"`/users`", "/users", true},
		{`r'^users/$'`, "^users/$", true},
		{`@"api/x"`, "api/x", true},
		{`users`, "", false},
		{`'open`, "", false},
	}
	for _, tt := range tests {
		got, ok := Unquote(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCalleeName(t *testing.T) {
	assert.Equal(t, "auth", CalleeName("auth"))
	assert.Equal(t, "rateLimit", CalleeName("rateLimit({ max: 5 })"))
	assert.Equal(t, "passport.authenticate", CalleeName("passport.authenticate('jwt')"))
	assert.Equal(t, "functionHandler", CalleeName("functionHandler"))
	assert.Equal(t, "", CalleeName("(req, res) => {}"))
	assert.Equal(t, "", CalleeName("async (req, res) => {}"))
	assert.Equal(t, "", CalleeName("function (req, res) {}"))
	assert.Equal(t, "", CalleeName("func(c *gin.Context) {}"))
	assert.Equal(t, "", CalleeName(`"literal"`))
}

func TestWindow(t *testing.T) {
	assert.Equal(t, "bc", Window("abcd", 1, 3))
	assert.Equal(t, "abcd", Window("abcd", -5, 50))
	assert.Equal(t, "", Window("abcd", 3, 1))
}
