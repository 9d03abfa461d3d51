package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/internal/testutil"
	"github.com/QTest-hq/apimap/pkg/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(&config.Config{Port: 8080, Scan: config.ScanConfig{Workers: 2, MaxFiles: 100}})
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func TestNewServer_NilConfig(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsPreflight(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodOptions, "/api/v1/extract", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestListFrameworksAndFormats(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/v1/frameworks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var fw map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fw))
	assert.Contains(t, fw["frameworks"], "express")

	rr = do(t, s, http.MethodGet, "/api/v1/formats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var formats map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &formats))
	assert.Contains(t, formats["formats"], "openapi")
	assert.Contains(t, formats["snippets"], "python-requests")
}

func TestDetect(t *testing.T) {
	s := newTestServer(t)
	root := testutil.Project(t, "express")

	rr := do(t, s, http.MethodPost, "/api/v1/detect", ExtractRequest{Path: root})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "express", resp["framework"])

	rr = do(t, s, http.MethodPost, "/api/v1/detect", ExtractRequest{Path: root, Framework: "koa"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "koa", resp["framework"])
}

func TestExtract(t *testing.T) {
	s := newTestServer(t)
	root := testutil.Project(t, "express")

	rr := do(t, s, http.MethodPost, "/api/v1/extract", ExtractRequest{Path: root})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var res model.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, root, res.Root)
	assert.Equal(t, model.FrameworkExpress, res.Framework)
	require.Len(t, res.Endpoints, 4)
	assert.Equal(t, 4, res.Stats.TotalEndpoints)
}

func TestExtract_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing path", `{}`, http.StatusBadRequest},
		{"unknown path", `{"path": "/definitely/not/here"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			s.Router().ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestRender(t *testing.T) {
	s := newTestServer(t)
	root := testutil.Project(t, "express")

	t.Run("openapi", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/api/v1/render/openapi", RenderRequest{
			ExtractRequest: ExtractRequest{Path: root},
			Title:          "Users",
		})
		require.Equal(t, http.StatusOK, rr.Code)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
		assert.Equal(t, "3.0.3", doc["openapi"])
		paths, ok := doc["paths"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, paths, "/users")
		assert.Contains(t, paths, "/users/{id}")
	})

	t.Run("curl", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/api/v1/render/curl", RenderRequest{
			ExtractRequest: ExtractRequest{Path: root},
			BaseURL:        "https://api.example.com",
		})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
		assert.Contains(t, rr.Body.String(), "curl -X GET 'https://api.example.com/users'")
	})

	t.Run("snippet", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/api/v1/render/snippet", RenderRequest{
			ExtractRequest: ExtractRequest{Path: root},
			Lang:           "python",
		})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "import requests")
	})

	t.Run("snippet without lang", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/api/v1/render/snippet", RenderRequest{
			ExtractRequest: ExtractRequest{Path: root},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown format", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/api/v1/render/har", RenderRequest{
			ExtractRequest: ExtractRequest{Path: root},
		})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
