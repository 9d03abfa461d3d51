package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

var rocketSegments = regexp.MustCompile(`<(\w+)\.\.>`)

// ============================================================================
// actix-web / Rocket
// ============================================================================

// RustAttributeExtractor detects #[get("/x")] route macros and actix
// .route("/x", web::get()) registrations
type RustAttributeExtractor struct{ meta }

var (
	rustVerbAttr  = regexp.MustCompile(`#\[(get|post|put|patch|delete|head|options)\s*\(\s*"([^"]*)"`)
	rustRouteAttr = regexp.MustCompile(`#\[route\s*\(\s*"([^"]*)"([^\]]*)\]`)
	rustMethodArg = regexp.MustCompile(`method\s*=\s*"(\w+)"`)
	actixRoute    = regexp.MustCompile(`\.route\s*\(\s*"([^"]*)"\s*,\s*web::(get|post|put|patch|delete|head)\s*\(\s*\)`)
	actixResource = regexp.MustCompile(`web::resource\s*\(\s*"([^"]*)"\s*\)`)
	actixVerbCall = regexp.MustCompile(`web::(get|post|put|patch|delete|head)\s*\(\s*\)`)
	actixScope    = regexp.MustCompile(`web::scope\s*\(\s*"([^"]*)"\s*\)`)
)

// NewRustAttributeExtractor returns the extractor
func NewRustAttributeExtractor() *RustAttributeExtractor {
	return &RustAttributeExtractor{meta{"rust-attribute", []model.Framework{model.FrameworkActix, model.FrameworkRocket}, rustExtensions}}
}

// Scan finds route macros and actix builder registrations
func (e *RustAttributeExtractor) Scan(content, file string) []model.RawMatch {
	fw := model.FrameworkActix
	if strings.Contains(content, "rocket") {
		fw = model.FrameworkRocket
	}

	var out []model.RawMatch
	for _, loc := range rustVerbAttr.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		p := rocketPath(content[loc[4]:loc[5]])
		out = append(out, e.matchAs(fw, content[loc[2]:loc[3]], p, loc[0], file))
	}
	for _, loc := range rustRouteAttr.FindAllStringSubmatchIndex(content, -1) {
		p := rocketPath(content[loc[2]:loc[3]])
		for _, mm := range rustMethodArg.FindAllStringSubmatch(content[loc[4]:loc[5]], -1) {
			if method := normalizeMethod(mm[1]); method != "" {
				out = append(out, e.matchAs(fw, method, p, loc[0], file))
			}
		}
	}

	if !strings.Contains(content, "web::") {
		return out
	}
	scopes := actixScopeSpans(content)
	for _, loc := range actixRoute.FindAllStringSubmatchIndex(content, -1) {
		p := routepath.Join(prefixAt(scopes, loc[0]), content[loc[2]:loc[3]])
		out = append(out, e.matchAs(model.FrameworkActix, content[loc[4]:loc[5]], p, loc[0], file))
	}
	for _, loc := range actixResource.FindAllStringSubmatchIndex(content, -1) {
		p := routepath.Join(prefixAt(scopes, loc[0]), content[loc[2]:loc[3]])
		window := tail(content, loc[1], 400)
		if next := actixResource.FindStringIndex(window); next != nil {
			window = window[:next[0]]
		}
		for _, vm := range actixVerbCall.FindAllStringSubmatch(window, -1) {
			out = append(out, e.matchAs(model.FrameworkActix, vm[1], p, loc[0], file))
		}
	}
	return out
}

// actixScopeSpans turns web::scope("/p").service(...) chains into spans
// covering the scope's builder expression.
func actixScopeSpans(content string) []span {
	var spans []span
	for _, loc := range actixScope.FindAllStringSubmatchIndex(content, -1) {
		open := strings.LastIndexByte(content[:loc[0]], '(')
		end := len(content)
		if open >= 0 {
			if close := srctext.MatchingClose(content, open); close > loc[1] {
				end = close
			}
		}
		spans = append(spans, span{start: loc[0], end: end, prefix: content[loc[2]:loc[3]]})
	}
	return spans
}

// rocketPath rewrites Rocket's multi-segment <path..> into <path>.
func rocketPath(p string) string {
	return rocketSegments.ReplaceAllString(p, "<$1>")
}

// ============================================================================
// axum
// ============================================================================

// AxumExtractor detects Router::route("/x", get(h).post(h2)) chains
type AxumExtractor struct{ meta }

var (
	axumRoute   = regexp.MustCompile(`\.route\s*\(\s*"([^"]*)"\s*,`)
	axumNest    = regexp.MustCompile(`\.nest\s*\(\s*"([^"]*)"\s*,\s*Router::new\s*\(\s*\)`)
	axumHandler = regexp.MustCompile(`(?:^|\.|routing::)\s*(get|post|put|patch|delete|head|options|any)(?:_service)?\s*\(`)
)

// NewAxumExtractor returns the extractor
func NewAxumExtractor() *AxumExtractor {
	return &AxumExtractor{meta{"axum", []model.Framework{model.FrameworkAxum}, rustExtensions}}
}

// Scan reads the method router passed to each route call
func (e *AxumExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "axum") && !strings.Contains(content, "Router::new") {
		return nil
	}
	var nests []span
	for _, loc := range axumNest.FindAllStringSubmatchIndex(content, -1) {
		open := strings.IndexByte(content[loc[0]:], '(') + loc[0]
		end := srctext.MatchingClose(content, open)
		if end < 0 {
			end = len(content)
		}
		nests = append(nests, span{start: loc[0], end: end, prefix: content[loc[2]:loc[3]]})
	}

	var out []model.RawMatch
	for _, loc := range axumRoute.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		open := strings.IndexByte(content[loc[0]:], '(') + loc[0]
		args, _ := srctext.CallArgs(content, open)
		if len(args) < 2 {
			continue
		}
		p := routepath.Join(prefixAt(nests, loc[0]), content[loc[2]:loc[3]])
		for _, hm := range axumHandler.FindAllStringSubmatch(strings.TrimSpace(args[1]), -1) {
			out = append(out, e.match(normalizeMethod(hm[1]), p, loc[0], file))
		}
	}
	return out
}
