package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/internal/testutil"
	"github.com/QTest-hq/apimap/pkg/model"
)

func find(res *model.Result, method, path string) *model.Endpoint {
	for _, ep := range res.Endpoints {
		if ep.Method == method && ep.Path == path {
			return ep
		}
	}
	return nil
}

func keys(res *model.Result) []string {
	out := make([]string, 0, len(res.Endpoints))
	for _, ep := range res.Endpoints {
		out = append(out, ep.Key())
	}
	return out
}

func TestExtract_NextAppRouter(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"package.json": `{"dependencies": {"next": "14.1.0", "react": "18.2.0"}}`,
		"app/api/users/[id]/route.ts": `import { NextResponse } from 'next/server'

export async function GET(req: Request, { params }) {
  return NextResponse.json({ id: params.id })
}

export async function DELETE(req: Request) {
  return new Response(null, { status: 204 })
}
`,
	})

	res := Extract(context.Background(), root)
	assert.Equal(t, model.FrameworkNextJS, res.Framework)
	require.Len(t, res.Endpoints, 2)

	for _, method := range []string{"GET", "DELETE"} {
		ep := find(res, method, "/api/users/{id}")
		require.NotNil(t, ep, method)
		params := ep.ParamsIn(model.InPath)
		require.Len(t, params, 1)
		assert.Equal(t, "id", params[0].Name)
		assert.True(t, params[0].Required)
		assert.Equal(t, "app/api/users/[id]/route.ts", ep.SourceFile)
		assert.NotEmpty(t, ep.ID)
		assert.NotNil(t, ep.Analytics)
	}

	require.Len(t, res.Groups, 1)
	assert.Equal(t, "/api", res.Groups[0].Prefix)
	assert.Equal(t, 2, res.Stats.TotalEndpoints)
}

func TestExtract_ExpressMiddleware(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"package.json": `{"dependencies": {"express": "^4.18.2"}}`,
		"src/routes/orders.js": `const express = require('express');
const router = express.Router();

router.post('/orders', auth, validate, createOrder);

module.exports = router;
`,
	})

	res := Extract(context.Background(), root)
	assert.Equal(t, model.FrameworkExpress, res.Framework)
	require.Len(t, res.Endpoints, 1)

	ep := res.Endpoints[0]
	assert.Equal(t, "POST", ep.Method)
	assert.Equal(t, "/orders", ep.Path)
	assert.Equal(t, []string{"auth", "validate"}, ep.Middleware)
	assert.Equal(t, model.FrameworkExpress, ep.Framework)
}

func TestExtract_SpringClassPrefix(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"pom.xml": `<project><dependencies><dependency>
<groupId>org.springframework.boot</groupId>
<artifactId>spring-boot-starter-web</artifactId>
</dependency></dependencies></project>`,
		"src/main/java/com/shop/ItemController.java": `package com.shop;

@RestController
@RequestMapping("/api/v1")
public class ItemController {

    @GetMapping("/items/{id}")
    public Item get(@PathVariable Long id) {
        return service.find(id);
    }
}
`,
	})

	res := Extract(context.Background(), root)
	assert.Equal(t, model.FrameworkSpring, res.Framework)

	ep := find(res, "GET", "/api/v1/items/{id}")
	require.NotNil(t, ep)
	params := ep.ParamsIn(model.InPath)
	require.Len(t, params, 1)
	assert.Equal(t, "id", params[0].Name)
	assert.True(t, params[0].Required)
}

func TestExtract_SecurityAndSimilarity(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"package.json": `{"dependencies": {"express": "^4.18.2"}}`,
		"routes/run.js": `const router = require('express').Router();

router.get('/run', (req, res) => {
  const result = eval(req.query.code);
  res.json(result);
});
`,
		"routes/users.js": `const router = require('express').Router();

router.get('/users', listUsers);

router.get('/users/:id', getUser);
`,
	})

	res := Extract(context.Background(), root)

	run := find(res, "GET", "/run")
	require.NotNil(t, run)
	require.NotNil(t, run.Analytics)
	assert.Equal(t, 1, run.Analytics.Security.CountBySeverity(model.SeverityCritical))

	list := find(res, "GET", "/users")
	item := find(res, "GET", "/users/{id}")
	require.NotNil(t, list)
	require.NotNil(t, item)
	assert.False(t, list.Analytics.Similarity.PotentialDuplicate)
	assert.False(t, item.Analytics.Similarity.PotentialDuplicate)
}

func TestExtract_Idempotent(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"package.json": `{"dependencies": {"express": "^4.18.2"}}`,
		"a.js":         "app.get('/a', a);\napp.post('/a', a2);\n",
		"b/b.js":       "app.get('/b/:id', b);\n",
		"b/c.js":       "app.delete('/c/:id', c);\n",
	})

	e := New(Options{Workers: 3})
	first := e.Extract(context.Background(), root)
	second := e.Extract(context.Background(), root)

	require.NotEmpty(t, first.Endpoints)
	assert.Equal(t, keys(first), keys(second))
	for i := range first.Endpoints {
		assert.Equal(t, first.Endpoints[i].ID, second.Endpoints[i].ID)
	}
}

func TestExtract_UniqueKeys(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"package.json": `{"dependencies": {"express": "^4.18.2"}}`,
		"app.js":       "app.get('/a', a);\napp.get('/a', again);\napp.get('/a/', trailing);\n",
	})

	res := Extract(context.Background(), root)
	seen := map[string]bool{}
	for _, k := range keys(res) {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	assert.Len(t, res.Endpoints, 1)
	assert.Equal(t, 2, res.Scan.DuplicatesDropped)
	assert.Equal(t, 3, res.Scan.RawMatches)
}

func TestExtract_EmptyAndMissingRoots(t *testing.T) {
	for name, root := range map[string]string{
		"empty":   t.TempDir(),
		"missing": filepath.Join(t.TempDir(), "does-not-exist"),
	} {
		t.Run(name, func(t *testing.T) {
			res := Extract(context.Background(), root)
			require.NotNil(t, res)
			assert.NotNil(t, res.Endpoints)
			assert.NotNil(t, res.Groups)
			assert.Empty(t, res.Endpoints)
			assert.Equal(t, model.FrameworkUnknown, res.Framework)
			assert.Equal(t, 0, res.Stats.TotalEndpoints)
		})
	}
}

func TestExtract_ProjectConfig(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		".apimap.yaml":  "version: \"1.0\"\nframework: express\nexclude:\n  - \"legacy/**\"\n",
		"server.js":     "app.get('/kept', kept);\n",
		"legacy/old.js": "app.get('/dropped', dropped);\n",
	})

	res := Extract(context.Background(), root)
	assert.Equal(t, model.FrameworkExpress, res.Framework)
	assert.NotNil(t, find(res, "GET", "/kept"))
	assert.Nil(t, find(res, "GET", "/dropped"))
}

func TestExtract_Overrides(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"package.json": `{"dependencies": {"express": "^4.18.2"}}`,
		"one.js":       "app.get('/one', one);\n",
		"two.js":       "app.get('/two', two);\n",
	})

	e := New(Options{
		Overrides: &config.ProjectConfig{Framework: "koa"},
		MaxFiles:  1,
	})
	assert.Equal(t, model.FrameworkKoa, e.Detect(root))

	res := e.Extract(context.Background(), root)
	assert.Equal(t, model.FrameworkKoa, res.Framework)
	assert.True(t, res.Scan.Truncated)
	assert.LessOrEqual(t, res.Scan.FilesScanned, 1)
}

func TestExtract_CancelledContext(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"package.json": `{"dependencies": {"express": "^4.18.2"}}`,
		"app.js":       "app.get('/a', a);\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(Options{Timeout: time.Minute}).Extract(ctx, root)
	require.NotNil(t, res)
	assert.NotNil(t, res.Endpoints)
	assert.True(t, res.Scan.Truncated)
}

func TestFromConfig(t *testing.T) {
	opts := FromConfig(&config.Config{Scan: config.ScanConfig{Workers: 4, MaxFiles: 10, Timeout: time.Second}})
	assert.Equal(t, Options{Workers: 4, MaxFiles: 10, Timeout: time.Second}, opts)
	assert.Equal(t, Options{}, FromConfig(nil))
}

func TestExtract_FixtureProjects(t *testing.T) {
	tests := []struct {
		project   string
		framework model.Framework
		endpoints []string
	}{
		{"express", model.FrameworkExpress, []string{"GET /users", "POST /users", "GET /users/{id}", "DELETE /users/{id}"}},
		{"fastapi", model.FrameworkFastAPI, []string{"GET /users", "GET /users/{user_id}"}},
		{"spring", model.FrameworkSpring, []string{"GET /api/v1/users/{id}"}},
	}
	require.Len(t, tests, len(testutil.Projects()))

	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			res := Extract(context.Background(), testutil.Project(t, tt.project))
			assert.Equal(t, tt.framework, res.Framework)

			got := make([]string, 0, len(res.Endpoints))
			for _, ep := range res.Endpoints {
				got = append(got, ep.String())
			}
			assert.Equal(t, tt.endpoints, got)
		})
	}
}
