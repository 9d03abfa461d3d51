package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

// goRouterExtractor covers the fluent Go routers that register a verb
// method on a router or group value: gin and echo (r.GET), fiber (app.Get)
// and chi (r.Get). Group variables and chi Route closures contribute
// prefixes.
type goRouterExtractor struct {
	meta
	gate   func(content string) bool
	tag    func(content string) model.Framework
	route  *regexp.Regexp // captures (receiver?, verb, path)
	group  *regexp.Regexp // captures (child, parent, path)
	blocks *regexp.Regexp // captures (prefix)
}

var (
	goUpperVerb = regexp.MustCompile(`\b(\w+)\.(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS|Any)\s*\(\s*"(/[^"]*)"`)
	goTitleVerb = regexp.MustCompile(`(?:\b(\w+)|\))\.(Get|Post|Put|Patch|Delete|Head|Options|All)\s*\(\s*"(/[^"]*)"`)
	goGroupVar  = regexp.MustCompile(`(\w+)\s*:?=\s*(\w+)\.Group\s*\(\s*"([^"]*)"`)

	chiRoute  = regexp.MustCompile(`\.Route\s*\(\s*"([^"]*)"\s*,\s*func`)
	chiMethod = regexp.MustCompile(`\.Method(?:Func)?\s*\(\s*(?:"(\w+)"|http\.Method(\w+))\s*,\s*"(/[^"]*)"`)
)

func newGinEchoExtractor() *goRouterExtractor {
	return &goRouterExtractor{
		meta: meta{"gin-echo", []model.Framework{model.FrameworkGin, model.FrameworkEcho}, goExtensions},
		gate: func(string) bool { return true },
		tag: func(content string) model.Framework {
			if strings.Contains(content, "labstack/echo") || strings.Contains(content, "echo.Context") {
				return model.FrameworkEcho
			}
			return model.FrameworkGin
		},
		route: goUpperVerb,
		group: goGroupVar,
	}
}

func newFiberExtractor() *goRouterExtractor {
	return &goRouterExtractor{
		meta: meta{"fiber", []model.Framework{model.FrameworkFiber}, goExtensions},
		gate: func(content string) bool {
			return strings.Contains(content, "fiber.") || strings.Contains(content, "gofiber")
		},
		tag:   func(string) model.Framework { return model.FrameworkFiber },
		route: goTitleVerb,
		group: goGroupVar,
	}
}

func newChiExtractor() *goRouterExtractor {
	return &goRouterExtractor{
		meta: meta{"chi", []model.Framework{model.FrameworkChi}, goExtensions},
		gate: func(content string) bool {
			return strings.Contains(content, "chi.") || strings.Contains(content, "go-chi")
		},
		tag:    func(string) model.Framework { return model.FrameworkChi },
		route:  goTitleVerb,
		blocks: chiRoute,
	}
}

// Scan finds verb registrations and resolves their prefixes
func (e *goRouterExtractor) Scan(content, file string) []model.RawMatch {
	if !e.gate(content) {
		return nil
	}
	fw := e.tag(content)

	prefixes := map[string]string{}
	if e.group != nil {
		prefixes = varPrefixes(content, e.group, nil)
	}
	var spans []span
	if e.blocks != nil {
		spans = blockSpans(content, e.blocks)
	}

	var out []model.RawMatch
	for _, loc := range e.route.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		receiver := ""
		if loc[2] >= 0 {
			receiver = content[loc[2]:loc[3]]
		}
		method := normalizeMethod(content[loc[4]:loc[5]])
		p := routepath.Join(prefixAt(spans, loc[0]), routepath.Join(prefixes[receiver], content[loc[6]:loc[7]]))
		out = append(out, e.matchAs(fw, method, p, loc[0], file))
	}

	if e.blocks != nil {
		for _, loc := range chiMethod.FindAllStringSubmatchIndex(content, -1) {
			var verb string
			if loc[2] >= 0 {
				verb = content[loc[2]:loc[3]]
			} else {
				verb = content[loc[4]:loc[5]]
			}
			method := normalizeMethod(verb)
			if method == "" {
				continue
			}
			p := routepath.Join(prefixAt(spans, loc[0]), content[loc[6]:loc[7]])
			out = append(out, e.matchAs(fw, method, p, loc[0], file))
		}
	}
	return out
}

// ============================================================================
// gorilla/mux
// ============================================================================

// GorillaExtractor detects gorilla/mux HandleFunc registrations and their
// .Methods(...) chains
type GorillaExtractor struct{ meta }

var (
	gorillaHandle       = regexp.MustCompile(`\b(\w+)\.(?:HandleFunc|Handle)\s*\(\s*"([^"]*)"`)
	gorillaSubrouter    = regexp.MustCompile(`(\w+)\s*:?=\s*(\w+)\.PathPrefix\s*\(\s*"([^"]*)"\s*\)\s*\.Subrouter\s*\(\s*\)`)
	gorillaMethodsFirst = regexp.MustCompile(`\b(\w+)\.Methods\s*\(([^)]*)\)\s*\.Path\s*\(\s*"([^"]*)"`)
	goChainCall         = regexp.MustCompile(`^\s*\.\s*(\w+)\s*\(`)
)

// NewGorillaExtractor returns the extractor
func NewGorillaExtractor() *GorillaExtractor {
	return &GorillaExtractor{meta{"gorilla", []model.Framework{model.FrameworkGorilla}, goExtensions}}
}

// Scan finds routes on mux routers and PathPrefix subrouters
func (e *GorillaExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "mux.Router") && !strings.Contains(content, "mux.NewRouter") &&
		!strings.Contains(content, "gorilla/mux") {
		return nil
	}
	prefixes := varPrefixes(content, gorillaSubrouter, nil)

	var out []model.RawMatch
	for _, loc := range gorillaHandle.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		open := strings.IndexByte(content[loc[0]:], '(') + loc[0]
		close := srctext.MatchingClose(content, open)
		methods := []string{"GET"}
		if close > 0 {
			if ms := chainedMethods(content, close+1); len(ms) > 0 {
				methods = ms
			}
		}
		p := routepath.Join(prefixes[content[loc[2]:loc[3]]], content[loc[4]:loc[5]])
		for _, method := range methods {
			out = append(out, e.match(method, p, loc[0], file))
		}
	}

	for _, loc := range gorillaMethodsFirst.FindAllStringSubmatchIndex(content, -1) {
		p := routepath.Join(prefixes[content[loc[2]:loc[3]]], content[loc[6]:loc[7]])
		for _, method := range methodList(content[loc[4]:loc[5]]) {
			out = append(out, e.match(method, p, loc[0], file))
		}
	}
	return out
}

// chainedMethods follows .Name(..).Methods(..) style chains starting at pos
// and returns the verbs of the first Methods call.
func chainedMethods(content string, pos int) []string {
	for i := 0; i < 8 && pos < len(content); i++ {
		m := goChainCall.FindStringSubmatchIndex(content[pos:])
		if m == nil {
			return nil
		}
		open := pos + m[1] - 1
		close := srctext.MatchingClose(content, open)
		if close < 0 {
			return nil
		}
		if content[pos+m[2]:pos+m[3]] == "Methods" {
			return methodList(content[open+1 : close])
		}
		pos = close + 1
	}
	return nil
}

// ============================================================================
// net/http
// ============================================================================

// NetHTTPExtractor detects ServeMux registrations including Go 1.22
// "METHOD /path" patterns
type NetHTTPExtractor struct{ meta }

var (
	netHTTPHandle  = regexp.MustCompile(`\b(\w+)\.(?:HandleFunc|Handle)\s*\(\s*"([^"]*)"`)
	netHTTPMuxVar  = regexp.MustCompile(`(\w+)\s*:?=\s*http\.NewServeMux\s*\(\s*\)`)
	netHTTPMuxType = regexp.MustCompile(`(\w+)\s+\*http\.ServeMux\b`)
	netHTTPRest    = regexp.MustCompile(`\{(\w+)\.\.\.\}`)
)

// NewNetHTTPExtractor returns the extractor
func NewNetHTTPExtractor() *NetHTTPExtractor {
	return &NetHTTPExtractor{meta{"nethttp", []model.Framework{model.FrameworkNetHTTP}, goExtensions}}
}

// Scan finds http.HandleFunc and mux.HandleFunc registrations
func (e *NetHTTPExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "http.") {
		return nil
	}
	muxes := map[string]bool{"http": true}
	for _, re := range []*regexp.Regexp{netHTTPMuxVar, netHTTPMuxType} {
		for _, mm := range re.FindAllStringSubmatch(content, -1) {
			muxes[mm[1]] = true
		}
	}

	var out []model.RawMatch
	for _, loc := range netHTTPHandle.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) || !muxes[content[loc[2]:loc[3]]] {
			continue
		}
		method, p, ok := splitServeMuxPattern(content[loc[4]:loc[5]])
		if !ok {
			continue
		}
		out = append(out, e.match(method, p, loc[0], file))
	}
	return out
}

// splitServeMuxPattern parses "[METHOD ][HOST]/PATH". Method-less patterns
// serve every verb and are reported as GET.
func splitServeMuxPattern(pattern string) (string, string, bool) {
	method := "GET"
	rest := strings.TrimSpace(pattern)
	if i := strings.IndexAny(rest, " \t"); i > 0 {
		if m := normalizeMethod(rest[:i]); m != "" {
			method = m
			rest = strings.TrimSpace(rest[i:])
		}
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", "", false
	}
	rest = rest[slash:]
	rest = strings.ReplaceAll(rest, "{$}", "")
	rest = netHTTPRest.ReplaceAllString(rest, "{$1}")
	return method, rest, true
}
