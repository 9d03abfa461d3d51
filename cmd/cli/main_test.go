package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/internal/testutil"
	"github.com/QTest-hq/apimap/pkg/model"
)

func project(t *testing.T) string {
	t.Helper()
	return testutil.WriteTree(t, map[string]string{
		"package.json": `{"dependencies": {"express": "^4.18.2"}}`,
		"src/app.js": `const app = require('express')();

app.get('/products', listProducts);
app.post('/products', requireAuth, createProduct);
app.delete('/products/:id', requireAuth, removeProduct);
`,
	})
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "apimap dev\n", out)
}

func TestScan_JSON(t *testing.T) {
	root := project(t)

	out, err := run(t, "scan", "--dir", root, "--json")
	require.NoError(t, err)

	var res model.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, model.FrameworkExpress, res.Framework)
	assert.Len(t, res.Endpoints, 3)
}

func TestScan_OutputFile(t *testing.T) {
	root := project(t)
	dest := filepath.Join(t.TempDir(), "reports", "scan.json")

	out, err := run(t, "scan", "--dir", root, "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 endpoints")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestScan_Summary(t *testing.T) {
	root := project(t)

	out, err := run(t, "scan", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "framework: express")
	assert.Contains(t, out, "/products/{id}")
	assert.Contains(t, out, "src/app.js:")
	assert.Contains(t, out, "Summary")
}

func TestScan_EmptyDirectory(t *testing.T) {
	out, err := run(t, "scan", "--dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No endpoints found.")
}

func TestScan_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing dir", []string{"scan", "--dir", filepath.Join(t.TempDir(), "missing")}},
		{"bad dedup", []string{"scan", "--dir", t.TempDir(), "--dedup", "keep"}},
		{"bad framework", []string{"scan", "--dir", t.TempDir(), "--framework", "cobol"}},
		{"repo not a url", []string{"scan", "--repo", "./local"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestDetect(t *testing.T) {
	root := project(t)

	out, err := run(t, "detect", "--dir", root)
	require.NoError(t, err)
	assert.Equal(t, "express\n", out)

	out, err = run(t, "detect", "--dir", root, "--framework", "koa")
	require.NoError(t, err)
	assert.Equal(t, "koa\n", out)
}

func TestRender(t *testing.T) {
	root := project(t)

	t.Run("openapi", func(t *testing.T) {
		out, err := run(t, "render", "--dir", root, "--format", "openapi", "--title", "Catalog")
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		info := doc["info"].(map[string]any)
		assert.Equal(t, "Catalog", info["title"])
	})

	t.Run("curl", func(t *testing.T) {
		out, err := run(t, "render", "--dir", root, "--format", "curl", "--base-url", "https://shop.test")
		require.NoError(t, err)
		assert.Contains(t, out, "curl -X DELETE 'https://shop.test/products/")
	})

	t.Run("snippet", func(t *testing.T) {
		out, err := run(t, "render", "--dir", root, "--format", "snippet", "--lang", "go")
		require.NoError(t, err)
		assert.Contains(t, out, "http.NewRequest")
	})

	t.Run("to file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "openapi.yaml")
		out, err := run(t, "render", "--dir", root, "--format", "openapi-yaml", "-o", dest)
		require.NoError(t, err)
		assert.Contains(t, out, "Rendered 3 endpoints")
		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Contains(t, string(data), "openapi: 3.0.3")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, "render", "--dir", root, "--format", "har")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported format")
	})
}

func TestMock(t *testing.T) {
	out, err := run(t, "mock", "--dir", project(t))
	require.NoError(t, err)

	var payloads []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payloads))
	assert.Len(t, payloads, 3)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "init", "--dir", dir, "--framework", "fastapi")
	require.NoError(t, err)
	assert.Contains(t, out, "Created .apimap.yaml")

	cfg, err := config.LoadProjectConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "fastapi", cfg.Framework)

	_, err = run(t, "init", "--dir", dir)
	assert.Error(t, err)

	_, err = run(t, "init", "--dir", dir, "--force")
	assert.NoError(t, err)
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "DELETE 1, GET 3, POST 2", formatCounts(map[string]int{"GET": 3, "POST": 2, "DELETE": 1}))
	assert.Equal(t, "", formatCounts(nil))
}

func TestPrintSummary_Truncated(t *testing.T) {
	res := model.NewResult("/srv/app")
	res.Scan.Truncated = true

	var buf bytes.Buffer
	printSummary(&buf, res)
	assert.True(t, strings.Contains(buf.String(), "stopped early"))
}
