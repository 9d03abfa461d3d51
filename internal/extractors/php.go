package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// ============================================================================
// Laravel
// ============================================================================

// LaravelExtractor detects Route facade registrations, resource routes and
// prefixed groups
type LaravelExtractor struct{ meta }

var (
	laravelVerb     = regexp.MustCompile(`(?:Route::|\$router->)(get|post|put|patch|delete|options|any)\s*\(\s*['"]([^'"]*)['"]`)
	laravelMatch    = regexp.MustCompile(`Route::match\s*\(\s*(\[[^\]]*\])\s*,\s*['"]([^'"]*)['"]`)
	laravelResource = regexp.MustCompile(`Route::(apiResource|resource)\s*\(\s*['"]([^'"]+)['"]\s*,\s*([\w\\]+)(?:::class)?([^;]*)`)
	laravelPrefix   = regexp.MustCompile(`Route::(?:\w+\([^)]*\)->)*?prefix\s*\(\s*['"]([^'"]*)['"]\s*\)(?:->\w+\([^)]*\))*->group\s*\(`)
	laravelGroupArr = regexp.MustCompile(`Route::group\s*\(\s*\[[^\]]*?['"]prefix['"]\s*=>\s*['"]([^'"]*)['"]`)
	laravelOnly     = regexp.MustCompile(`(?:->only\s*\(|['"]only['"]\s*=>\s*)(\[[^\]]*\])`)
	laravelExcept   = regexp.MustCompile(`(?:->except\s*\(|['"]except['"]\s*=>\s*)(\[[^\]]*\])`)
)

var laravelActions = []resourceAction{
	{"index", "GET", ""}, {"create", "GET", "/create"}, {"store", "POST", ""},
	{"show", "GET", "/{id}"}, {"edit", "GET", "/{id}/edit"},
	{"update", "PUT", "/{id}"}, {"update", "PATCH", "/{id}"}, {"destroy", "DELETE", "/{id}"},
}

// NewLaravelExtractor returns the extractor
func NewLaravelExtractor() *LaravelExtractor {
	return &LaravelExtractor{meta{"laravel", []model.Framework{model.FrameworkLaravel}, phpExtensions}}
}

// Scan finds routes; files under routes/api.php carry the /api prefix the
// framework mounts them on
func (e *LaravelExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "Route::") && !strings.Contains(content, "$router->") {
		return nil
	}
	filePrefix := ""
	if strings.HasSuffix(file, "routes/api.php") {
		filePrefix = "/api"
	}
	spans := append(blockSpans(content, laravelPrefix), blockSpans(content, laravelGroupArr)...)
	prefixOf := func(offset int) string {
		return routepath.Join(filePrefix, prefixAt(spans, offset))
	}

	var out []model.RawMatch
	for _, loc := range laravelVerb.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		p := routepath.Join(prefixOf(loc[0]), content[loc[4]:loc[5]])
		out = append(out, e.match(normalizeMethod(content[loc[2]:loc[3]]), p, loc[0], file))
	}
	for _, loc := range laravelMatch.FindAllStringSubmatchIndex(content, -1) {
		p := routepath.Join(prefixOf(loc[0]), content[loc[4]:loc[5]])
		for _, method := range methodList(content[loc[2]:loc[3]]) {
			out = append(out, e.match(method, p, loc[0], file))
		}
	}
	for _, loc := range laravelResource.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		kind, name := content[loc[2]:loc[3]], content[loc[4]:loc[5]]
		controller := content[loc[6]:loc[7]]
		if i := strings.LastIndexByte(controller, '\\'); i >= 0 {
			controller = controller[i+1:]
		}
		opts := content[loc[8]:loc[9]]

		base, param := laravelResourceBase(name)
		coll := routepath.Join(prefixOf(loc[0]), base)
		for _, a := range laravelResourceActions(kind, opts) {
			p := coll + strings.ReplaceAll(a.suffix, "{id}", "{"+param+"}")
			rm := e.match(a.method, p, loc[0], file)
			rm.Handler = controller + "@" + a.name
			out = append(out, rm)
		}
	}
	return out
}

// laravelResourceBase expands nested names like photos.comments into
// photos/{photo}/comments and returns the member parameter name.
func laravelResourceBase(name string) (string, string) {
	parts := strings.Split(name, ".")
	var segs []string
	for _, p := range parts[:len(parts)-1] {
		segs = append(segs, p, "{"+singularize(p)+"}")
	}
	last := parts[len(parts)-1]
	segs = append(segs, last)
	return strings.Join(segs, "/"), singularize(last)
}

func laravelResourceActions(kind, opts string) []resourceAction {
	pick := func(re *regexp.Regexp) map[string]bool {
		mm := re.FindStringSubmatch(opts)
		if mm == nil {
			return nil
		}
		set := map[string]bool{}
		for _, s := range stringsIn(mm[1]) {
			set[s] = true
		}
		return set
	}
	only, except := pick(laravelOnly), pick(laravelExcept)

	var out []resourceAction
	for _, a := range laravelActions {
		if kind == "apiResource" && (a.name == "create" || a.name == "edit") {
			continue
		}
		if only != nil && !only[a.name] || except[a.name] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ============================================================================
// Symfony
// ============================================================================

// SymfonyExtractor detects #[Route] attributes and @Route annotations
type SymfonyExtractor struct{ meta }

var (
	symfonyRoute      = regexp.MustCompile(`(?:#\[|@)Route\s*\(`)
	symfonyClassDecl  = regexp.MustCompile(`(?m)^[ \t]*(?:(?:final|abstract|readonly)\s+)*class\s+\w+`)
	symfonyClassLevel = regexp.MustCompile(`^[\s*/\]]*(?:(?:final|abstract|readonly)\s+)*class\b`)
	symfonyMethods    = regexp.MustCompile(`methods\s*[:=]\s*(\[[^\]]*\]|\{[^}]*\}|['"][A-Za-z]+['"])`)
)

// NewSymfonyExtractor returns the extractor
func NewSymfonyExtractor() *SymfonyExtractor {
	return &SymfonyExtractor{meta{"symfony", []model.Framework{model.FrameworkSymfony}, phpExtensions}}
}

// Scan pairs method-level routes with the class-level route prefix
func (e *SymfonyExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "Route") {
		return nil
	}
	classes := classSpans(content, symfonyClassDecl, func(preamble, _ string) string {
		locs := symfonyRoute.FindAllStringIndex(preamble, -1)
		if len(locs) == 0 {
			return ""
		}
		args, _ := parenArgs(preamble, locs[len(locs)-1][1]-1)
		return annotationPaths(args)[0]
	})

	var out []model.RawMatch
	for _, loc := range symfonyRoute.FindAllStringIndex(content, -1) {
		args, after := parenArgs(content, loc[1]-1)
		if after == loc[1]-1 || symfonyClassLevel.MatchString(tail(content, after, 400)) {
			continue
		}
		methods := []string{"GET"}
		if mm := symfonyMethods.FindStringSubmatch(args); mm != nil {
			if ms := methodList(mm[1]); len(ms) > 0 {
				methods = ms
			}
		}
		p := routepath.Join(prefixAt(classes, loc[0]), annotationPaths(args)[0])
		for _, method := range methods {
			out = append(out, e.match(method, p, loc[0], file))
		}
	}
	return out
}
