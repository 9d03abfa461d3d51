package extractors

import (
	"path"
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

// ============================================================================
// Express / Koa
// ============================================================================

// ExpressExtractor detects Express.js and koa-router routes
type ExpressExtractor struct{ meta }

var (
	// app.get('/path', handler), router.post('/path', middleware, handler)
	expressRoute = regexp.MustCompile(`(?i)\b([\w$]*(?:app|router|api|server|routes?))\.(get|post|put|patch|delete|head|options|all)\s*\(\s*['"` + "`" + `]([/*][^'"` + "`" + `]*)['"` + "`" + `]`)

	// router.route('/users/:id').get(h).put(h)
	expressChainRoot = regexp.MustCompile(`\.route\s*\(\s*['"]([/][^'"]*)['"]\s*\)`)
	expressChainVerb = regexp.MustCompile(`^\s*\.\s*(get|post|put|patch|delete|all)\s*\(`)

	// app.use('/api', usersRouter)
	expressMount = regexp.MustCompile(`\b[\w$]+\.use\s*\(\s*['"](/[^'"]*)['"]\s*,\s*([\w$]+)\s*\)`)

	// const router = new Router({ prefix: '/api' })
	koaPrefix = regexp.MustCompile(`\b(?:const|let|var)\s+([\w$]+)\s*=\s*new\s+Router\s*\(\s*\{[^}]*prefix\s*:\s*['"]([^'"]+)['"]`)
)

// NewExpressExtractor returns the extractor
func NewExpressExtractor() *ExpressExtractor {
	return &ExpressExtractor{meta{"express", []model.Framework{model.FrameworkExpress, model.FrameworkKoa}, jsExtensions}}
}

// Scan finds fluent route registrations
func (e *ExpressExtractor) Scan(content, file string) []model.RawMatch {
	prefixes := map[string]string{}
	for _, mm := range expressMount.FindAllStringSubmatch(content, -1) {
		prefixes[mm[2]] = mm[1]
	}
	for _, mm := range koaPrefix.FindAllStringSubmatch(content, -1) {
		prefixes[mm[1]] = mm[2]
	}

	var out []model.RawMatch
	for _, loc := range expressRoute.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		receiver := content[loc[2]:loc[3]]
		method := normalizeMethod(content[loc[4]:loc[5]])
		p := routepath.Join(prefixes[receiver], content[loc[6]:loc[7]])
		out = append(out, e.match(method, p, loc[0], file))
	}

	for _, loc := range expressChainRoot.FindAllStringSubmatchIndex(content, -1) {
		p := content[loc[2]:loc[3]]
		pos := loc[1]
		for {
			v := expressChainVerb.FindStringSubmatchIndex(content[pos:])
			if v == nil {
				break
			}
			method := normalizeMethod(content[pos+v[2] : pos+v[3]])
			out = append(out, e.match(method, p, pos+v[2], file))
			open := pos + v[1] - 1
			end := srctext.MatchingClose(content, open)
			if end < 0 {
				break
			}
			pos = end + 1
		}
	}
	return out
}

// ============================================================================
// NestJS
// ============================================================================

// NestJSExtractor detects NestJS controller decorators
type NestJSExtractor struct{ meta }

var (
	nestVerb       = regexp.MustCompile(`@(Get|Post|Put|Patch|Delete|Options|Head|All)\s*\(`)
	nestController = regexp.MustCompile(`@Controller\s*\(`)
	nestClassDecl  = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+\w+`)
)

// NewNestJSExtractor returns the extractor
func NewNestJSExtractor() *NestJSExtractor {
	return &NestJSExtractor{meta{"nestjs", []model.Framework{model.FrameworkNestJS}, []string{".ts", ".js"}}}
}

// Scan combines the @Controller prefix with each handler decorator
func (e *NestJSExtractor) Scan(content, file string) []model.RawMatch {
	if !nestController.MatchString(content) && !strings.Contains(content, "@nestjs") {
		return nil
	}
	classes := classSpans(content, nestClassDecl, func(preamble, _ string) string {
		locs := nestController.FindAllStringIndex(preamble, -1)
		if len(locs) == 0 {
			return ""
		}
		args, _ := parenArgs(preamble, locs[len(locs)-1][1]-1)
		if ps, ok := namedArg(args, "path"); ok && len(ps) > 0 {
			return ps[0]
		}
		if s, ok := srctext.Unquote(args); ok {
			return s
		}
		return ""
	})

	var out []model.RawMatch
	for _, loc := range nestVerb.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		args, _ := parenArgs(content, loc[1]-1)
		method := normalizeMethod(content[loc[2]:loc[3]])
		for _, p := range annotationPaths(args) {
			out = append(out, e.match(method, routepath.Join(prefixAt(classes, loc[0]), p), loc[0], file))
		}
	}
	return out
}

// ============================================================================
// Next.js
// ============================================================================

// NextJSExtractor maps App Router route handlers and Pages Router API files
// to paths derived from their location
type NextJSExtractor struct{ meta }

var (
	nextAppRoute   = regexp.MustCompile(`(?:^|/)app/((?:.*/)?)route\.(?:ts|js|tsx|jsx|mjs)$`)
	nextPagesAPI   = regexp.MustCompile(`(?:^|/)pages/(api/.*)\.(?:ts|js|tsx|jsx)$`)
	nextExportFunc = regexp.MustCompile(`export\s+(?:async\s+)?function\s+(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\b`)
	nextExportVar  = regexp.MustCompile(`export\s+const\s+(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\s*=`)
	nextExportAs   = regexp.MustCompile(`\bas\s+(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\b`)
	nextMethodCase = regexp.MustCompile(`(?:req\.method\s*===?\s*|case\s+)['"](GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)['"]`)
	nextDefault    = regexp.MustCompile(`export\s+default\b`)
)

// NewNextJSExtractor returns the extractor
func NewNextJSExtractor() *NextJSExtractor {
	return &NextJSExtractor{meta{"nextjs", []model.Framework{model.FrameworkNextJS}, jsExtensions}}
}

// Scan derives routes from file-system conventions
func (e *NextJSExtractor) Scan(content, file string) []model.RawMatch {
	var out []model.RawMatch

	if sm := nextAppRoute.FindStringSubmatch(file); sm != nil {
		p := nextRoutePath(sm[1])
		for _, re := range []*regexp.Regexp{nextExportFunc, nextExportVar, nextExportAs} {
			for _, loc := range re.FindAllStringSubmatchIndex(content, -1) {
				out = append(out, e.match(content[loc[2]:loc[3]], p, loc[0], file))
			}
		}
		return out
	}

	if sm := nextPagesAPI.FindStringSubmatch(file); sm != nil {
		p := nextRoutePath(strings.TrimSuffix(sm[1], "/index"))
		seen := map[string]bool{}
		for _, loc := range nextMethodCase.FindAllStringSubmatchIndex(content, -1) {
			method := content[loc[2]:loc[3]]
			if seen[method] {
				continue
			}
			seen[method] = true
			out = append(out, e.match(method, p, loc[0], file))
		}
		if len(out) == 0 {
			if loc := nextDefault.FindStringIndex(content); loc != nil {
				out = append(out, e.match("GET", p, loc[0], file))
			}
		}
	}
	return out
}

// nextRoutePath drops route groups (group) and parallel slots @slot.
func nextRoutePath(dir string) string {
	var segs []string
	for _, s := range strings.Split(path.Clean("/"+dir), "/") {
		if s == "" || strings.HasPrefix(s, "@") || (strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")) {
			continue
		}
		segs = append(segs, s)
	}
	return "/" + strings.Join(segs, "/")
}

// ============================================================================
// Fastify
// ============================================================================

// FastifyExtractor detects fastify.route({...}) and shorthand declarations
type FastifyExtractor struct{ meta }

var (
	fastifyShorthand = regexp.MustCompile(`\b(fastify|instance|server|app)\.(get|post|put|patch|delete|head|options|all)\s*\(\s*['"]([/*][^'"]*)['"]`)
	fastifyRoute     = regexp.MustCompile(`\b(?:fastify|instance|server|app)\.route\s*\(\s*\{`)
	objMethod        = regexp.MustCompile(`\bmethod\s*:\s*(\[[^\]]*\]|['"][A-Za-z]+['"])`)
	objURL           = regexp.MustCompile(`\b(?:url|path)\s*:\s*['"]([^'"]*)['"]`)
)

// NewFastifyExtractor returns the extractor
func NewFastifyExtractor() *FastifyExtractor {
	return &FastifyExtractor{meta{"fastify", []model.Framework{model.FrameworkFastify}, jsExtensions}}
}

// Scan finds fastify registrations
func (e *FastifyExtractor) Scan(content, file string) []model.RawMatch {
	var out []model.RawMatch
	for _, loc := range fastifyShorthand.FindAllStringSubmatchIndex(content, -1) {
		out = append(out, e.match(normalizeMethod(content[loc[4]:loc[5]]), content[loc[6]:loc[7]], loc[0], file))
	}
	for _, loc := range fastifyRoute.FindAllStringIndex(content, -1) {
		out = append(out, routeObjects(e.meta, content, loc[1]-1, loc[0], file)...)
	}
	return out
}

// routeObjects reads {method, url|path} pairs from the object (or array of
// objects) opening at open.
func routeObjects(m meta, content string, open, offset int, file string) []model.RawMatch {
	end := srctext.MatchingClose(content, open)
	if end < 0 {
		return nil
	}
	body := content[open : end+1]

	var out []model.RawMatch
	var objects []string
	if body[0] == '[' {
		for i := 1; i < len(body); i++ {
			if body[i] != '{' {
				continue
			}
			close := srctext.MatchingClose(body, i)
			if close < 0 {
				break
			}
			objects = append(objects, body[i:close+1])
			i = close
		}
	} else {
		objects = []string{body}
	}

	for _, obj := range objects {
		mm := objMethod.FindStringSubmatch(obj)
		um := objURL.FindStringSubmatch(obj)
		if mm == nil || um == nil {
			continue
		}
		for _, method := range methodList(mm[1]) {
			out = append(out, m.match(method, um[1], offset, file))
		}
	}
	return out
}

// ============================================================================
// hapi
// ============================================================================

// HapiExtractor detects server.route({ method, path }) declarations
type HapiExtractor struct{ meta }

var hapiRoute = regexp.MustCompile(`\b\w+\.route\s*\(\s*[\[{]`)

// NewHapiExtractor returns the extractor
func NewHapiExtractor() *HapiExtractor {
	return &HapiExtractor{meta{"hapi", []model.Framework{model.FrameworkHapi}, jsExtensions}}
}

// Scan finds route config objects
func (e *HapiExtractor) Scan(content, file string) []model.RawMatch {
	var out []model.RawMatch
	for _, loc := range hapiRoute.FindAllStringIndex(content, -1) {
		out = append(out, routeObjects(e.meta, content, loc[1]-1, loc[0], file)...)
	}
	return out
}
