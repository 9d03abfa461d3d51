package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/pkg/model"
)

func newEndpoint(method, path, context string) *model.Endpoint {
	return &model.Endpoint{
		ID:         model.EndpointID(model.CanonicalKey(method, path, "app.js")),
		Method:     method,
		Path:       path,
		RawPath:    path,
		SourceFile: "app.js",
		Framework:  model.FrameworkExpress,
		Parameters: []model.Parameter{},
		Responses:  []model.Response{},
		Middleware: []string{},
		Context:    context,
	}
}

func withPathParam(ep *model.Endpoint, name string) *model.Endpoint {
	ep.AddParameter(model.Parameter{Name: name, In: model.InPath, Type: "string", Required: true})
	return ep
}

func TestSecurity_EvalIsOneCriticalIssue(t *testing.T) {
	ep := newEndpoint("GET", "/run", "const result = eval(userInput);\nres.json(result);\n")

	r := Security(ep)
	assert.Equal(t, 1, r.CountBySeverity(model.SeverityCritical))
	require.Len(t, r.Issues, 1)
	assert.Equal(t, "code-injection", r.Issues[0].Type)
	// 100 - auth 10 - rate limit 5 - validation 5 - sanitization 5 - critical 25
	assert.Equal(t, 50, r.Score)
}

func TestSecurity_Catalog(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		context string
		want    []string
	}{
		{"method call named eval is fine", "GET", "model.eval()", nil},
		{"mutating without auth", "DELETE", "res.sendStatus(204)", []string{"missing-auth"}},
		{"post without auth or rate limit", "POST", "res.status(201).json(x)", []string{"missing-auth", "missing-rate-limit"}},
		{"interpolated sql", "GET", "db.query(`SELECT * FROM users WHERE id = ${req.params.id}`)", []string{"sql-injection"}},
		{"concatenated sql", "GET", `db.query("SELECT * FROM users WHERE id = " + req.params.id)`, []string{"sql-injection"}},
		{"quoted template sql", "GET", "db.query(`SELECT * FROM users WHERE name = '${req.query.name}'`)", []string{"sql-injection"}},
		{"quoted f-string sql", "GET", `cursor.execute(f"SELECT * FROM users WHERE name = '{name}'")`, []string{"sql-injection"}},
		{"quoted concatenated sql", "GET", `db.query("SELECT * FROM users WHERE name = '" + req.query.name + "'")`, []string{"sql-injection"}},
		{"quoted ruby interpolation", "GET", `User.find_by_sql("SELECT * FROM users WHERE name = '#{params[:name]}'")`, []string{"sql-injection"}},
		{"parameterized sql", "GET", `cursor.execute("SELECT * FROM users WHERE id = %s", (id,))`, nil},
		{"secret literal", "GET", `const apiKey = "sk_test_abcdefghijklmnop";`, []string{"hardcoded-secret"}},
		{"wildcard cors", "GET", `res.setHeader('Access-Control-Allow-Origin', '*')`, []string{"wildcard-cors"}},
		{"plain http to remote host", "GET", `fetch('http://api.partner.com/data')`, []string{"insecure-http"}},
		{"plain http to localhost", "GET", `fetch('http://localhost:8080/data')`, nil},
		{"innerHTML", "GET", `el.innerHTML = req.query.name`, []string{"unsanitized-render"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Security(newEndpoint(tt.method, "/x", tt.context))
			var got []string
			for _, i := range r.Issues {
				got = append(got, i.Type)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecurity_ControlsRaiseScore(t *testing.T) {
	ep := newEndpoint("GET", "/x", "return sanitize(input)")
	ep.Auth = &model.Auth{Type: model.AuthJWT}
	ep.Validation = &model.Validation{Library: "joi", Rules: []string{}}
	limit := 10
	ep.RateLimit = &model.RateLimit{Limit: &limit}

	r := Security(ep)
	assert.True(t, r.HasAuth)
	assert.True(t, r.HasRateLimit)
	assert.True(t, r.HasInputValidation)
	assert.True(t, r.HasSanitization)
	assert.Equal(t, 100, r.Score)
}

func TestSimilarity_CollectionAndItem(t *testing.T) {
	list := newEndpoint("GET", "/users", "")
	item := withPathParam(newEndpoint("GET", "/users/{id}", ""), "id")

	s := Similarity(list, item)
	assert.GreaterOrEqual(t, s, 50)
	assert.Less(t, s, 80)

	New(DefaultConfig()).Run([]*model.Endpoint{list, item})
	require.Len(t, list.Analytics.Similarity.TopMatches, 1)
	assert.Equal(t, item.ID, list.Analytics.Similarity.TopMatches[0].EndpointID)
	assert.False(t, list.Analytics.Similarity.PotentialDuplicate)
	assert.False(t, item.Analytics.Similarity.PotentialDuplicate)
}

func TestSimilarity_Duplicates(t *testing.T) {
	a := withPathParam(newEndpoint("GET", "/orders/{id}", ""), "id")
	b := withPathParam(newEndpoint("GET", "/orders/{orderId}", ""), "orderId")
	b.SourceFile = "legacy.js"
	c := newEndpoint("POST", "/payments", "")

	assert.Equal(t, 100, Similarity(a, b))

	New(DefaultConfig()).Run([]*model.Endpoint{a, b, c})
	assert.True(t, a.Analytics.Similarity.PotentialDuplicate)
	assert.Empty(t, c.Analytics.Similarity.TopMatches)
}

func TestSimilarity_TopMatchesBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopMatches = 2
	eps := []*model.Endpoint{
		newEndpoint("GET", "/a", ""),
		newEndpoint("GET", "/a/b", ""),
		newEndpoint("GET", "/a/c", ""),
		newEndpoint("GET", "/a/d", ""),
	}
	New(cfg).Run(eps)
	assert.Len(t, eps[0].Analytics.Similarity.TopMatches, 2)
}

func TestComplexity(t *testing.T) {
	t.Run("trivial handler", func(t *testing.T) {
		r := Complexity(newEndpoint("GET", "/x", "if (a) { x() }\nif (b && c) { y() }\n"))
		assert.Equal(t, 1, r.Score)
		assert.Equal(t, 4, r.CyclomaticApprox)
		assert.Empty(t, r.Factors)
	})

	t.Run("capped at ten", func(t *testing.T) {
		ep := newEndpoint("POST", "/x", "await db.user.findMany();\nawait db.post.create({});\n"+
			"await prisma.user.update({});\nawait db.query('x');\nawait fetch('https://api.stripe.com/v1');\n")
		for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
			ep.AddParameter(model.Parameter{Name: n, In: model.InQuery})
		}
		ep.RequestBody = &model.RequestBody{ContentType: "multipart/form-data"}
		ep.Auth = &model.Auth{Type: model.AuthJWT}
		ep.AddMiddleware("a", "b", "c", "d")

		r := Complexity(ep)
		assert.Equal(t, 10, r.Score)
		assert.Contains(t, r.Factors, "4 database calls")
		assert.Contains(t, r.Factors, "external HTTP calls")
	})
}

func TestDocumentation(t *testing.T) {
	ep := newEndpoint("GET", "/orders/{id}", "res.json(order)")
	ep.Description = "Fetches an order."
	ep.Leading = "const x = 1;\n/**\n * Fetches an order.\n * @param id the order id\n * @returns the order\n * @example GET /orders/1\n */\n"

	r := Documentation(ep)
	assert.True(t, r.HasDescription)
	assert.True(t, r.HasParamDocs)
	assert.True(t, r.HasResponseDocs)
	assert.True(t, r.HasExamples)
	assert.Equal(t, 100, r.Score)

	assert.Equal(t, 0, Documentation(newEndpoint("GET", "/x", "res.json(x)")).Score)
}

func TestPerformance(t *testing.T) {
	tests := []struct {
		name    string
		context string
		latency model.Latency
		score   int
	}{
		{"no io", "res.json({ ok: true })", model.LatencyLow, 80},
		{"one query", "const rows = await db.query('x')", model.LatencyMedium, 60},
		{"file io", "const data = fs.readFileSync('a.txt')", model.LatencyMedium, 60},
		{"external call", "await fetch('https://api.example.io/x')", model.LatencyHigh, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Performance(newEndpoint("GET", "/x", tt.context))
			assert.Equal(t, tt.latency, r.Latency)
			assert.Equal(t, tt.score, r.Score)
		})
	}

	ep := newEndpoint("GET", "/items", "res.json(items)")
	ep.AddParameter(model.Parameter{Name: "page", In: model.InQuery})
	ttl := 60
	ep.Cache = &model.CacheDirective{TTLSeconds: &ttl, Strategy: "memory"}
	r := Performance(ep)
	assert.True(t, r.HasPagination)
	assert.True(t, r.HasCaching)
	assert.Equal(t, 95, r.Score)
}

func TestNaming(t *testing.T) {
	tests := []struct {
		path   string
		score  int
		issues []string
	}{
		{"/users", 100, []string{}},
		{"/api/v1/users/{id}", 100, []string{}},
		{"/getUsers", 75, []string{IssueVerbInPath, IssueCamelCase, IssueUppercase}},
		{"/user/{id}", 95, []string{IssueSingularCollect}},
		{"/user_profiles/order-items", 90, []string{IssueMixedCase}},
		{"/a/b/c/d/e/f", 90, []string{IssueDeepPath}},
		{"/reports/summary.json", 95, []string{IssueFileExtension}},
		{"/settings", 100, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r := Naming(tt.path)
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.issues, r.Issues)
		})
	}
}

func TestConsistency(t *testing.T) {
	ep := newEndpoint("GET", "/api/v2/items", "try { await save() } catch (e) { res.status(500).json({ message: e.message }) }")
	ep.AddResponse(model.Response{StatusCode: 200, ContentType: "application/json"})
	ep.AddResponse(model.Response{StatusCode: 201, ContentType: "application/xml"})

	r := Consistency(ep)
	assert.Equal(t, "mixed", r.ResponseFormat)
	assert.Equal(t, "consistent", r.ErrorHandling)
	assert.Equal(t, "path", r.VersioningStyle)

	bare := newEndpoint("GET", "/items", "try:\n    run()\nexcept Exception:\n    pass\n")
	r = Consistency(bare)
	assert.Equal(t, "unknown", r.ResponseFormat)
	assert.Equal(t, "inconsistent", r.ErrorHandling)
	assert.Equal(t, "none", r.VersioningStyle)

	header := newEndpoint("GET", "/items", "const v = req.headers['accept-version']")
	assert.Equal(t, "header", Consistency(header).VersioningStyle)

	query := newEndpoint("GET", "/items", "")
	query.AddParameter(model.Parameter{Name: "version", In: model.InQuery})
	assert.Equal(t, "query", Consistency(query).VersioningStyle)
}

func TestDependencies_ResolvesInternalCalls(t *testing.T) {
	users := withPathParam(newEndpoint("GET", "/api/users/{id}", "res.json(user)"), "id")
	orders := newEndpoint("POST", "/api/orders",
		"const user = await axios.get(`/api/users/${order.userId}`);\n"+
			"await fetch('https://api.stripe.com/v1/charges', { method: 'POST' });\n"+
			"await fetch('/api/unknown');\n")

	New(DefaultConfig()).Run([]*model.Endpoint{users, orders})

	deps := orders.Analytics.Dependencies
	assert.Equal(t, []string{"GET /api/users/{id}", "/api/unknown"}, deps.CallsEndpoints)
	assert.Equal(t, []string{"api.stripe.com"}, deps.ExternalAPIs)
	assert.Equal(t, []string{"POST /api/orders"}, users.Analytics.Dependencies.CalledByEndpoints)
	assert.Empty(t, users.Analytics.Dependencies.CallsEndpoints)
}

func TestPipeline_HealthScore(t *testing.T) {
	ep := newEndpoint("GET", "/run", "const result = eval(userInput);\nres.json(result);\n")
	ep.Description = "Runs code."

	New(DefaultConfig()).Run([]*model.Endpoint{ep})
	a := ep.Analytics
	require.NotNil(t, a)
	assert.Equal(t, 50, a.Security.Score)
	assert.Equal(t, 30, a.Documentation.Score)
	assert.Equal(t, 80, a.Performance.Score)
	assert.Equal(t, 100, a.Naming.Score)
	// 0.35*50 + 0.25*30 + 0.20*80 + 0.20*100
	assert.Equal(t, 61, a.HealthScore)
}

func TestPipeline_CustomWeights(t *testing.T) {
	ep := newEndpoint("GET", "/run", "")
	cfg := DefaultConfig()
	cfg.Weights = config.HealthWeights{Naming: 1}

	New(cfg).Run([]*model.Endpoint{ep})
	assert.Equal(t, 100, ep.Analytics.HealthScore)
}

func TestFromProject_Defaults(t *testing.T) {
	cfg := FromProject(config.AnalyticsConfig{DuplicateThreshold: 90})
	assert.Equal(t, 50, cfg.SimilarityThreshold)
	assert.Equal(t, 90, cfg.DuplicateThreshold)
	assert.Equal(t, 3, cfg.TopMatches)
	assert.InDelta(t, 0.35, cfg.Weights.Security, 1e-9)
}

func TestSummarize(t *testing.T) {
	list := newEndpoint("GET", "/users", "")
	item := withPathParam(newEndpoint("GET", "/users/{id}", "const r = eval(code);"), "id")
	item.Auth = &model.Auth{Type: model.AuthJWT}
	eps := []*model.Endpoint{list, item}

	New(DefaultConfig()).Run(eps)
	s := Summarize(eps)

	assert.Equal(t, 2, s.TotalEndpoints)
	assert.Equal(t, 2, s.ByMethod["GET"])
	assert.Equal(t, 2, s.ByFramework["express"])
	assert.Equal(t, 1, s.ByAuthType["jwt"])
	assert.Equal(t, 1, s.ByAuthType["none"])
	assert.Equal(t, 1, s.Security.IssuesBySeverity["critical"])
	assert.Equal(t, 1, s.Security.EndpointsWithIssues)
	assert.Equal(t, 1, s.Security.WithoutAuth)
	require.Len(t, s.Similarity.TopPairs, 1)
	assert.Equal(t, "GET /users", s.Similarity.TopPairs[0].A)
	assert.Equal(t, 0, s.Similarity.PotentialDuplicates)
	assert.Equal(t, 2, s.Performance.Latency["low"])
	assert.Equal(t, 2, s.Naming.Clean)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.TotalEndpoints)
	assert.NotNil(t, s.ByMethod)
	assert.NotNil(t, s.Similarity.TopPairs)
	assert.NotNil(t, s.Dependencies.MostConnected)
}
