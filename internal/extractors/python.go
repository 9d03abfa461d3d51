package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	// @app.get("/items/{id}"), @router.post("/"), @bp.delete('/x')
	pyDecoratorVerb = regexp.MustCompile(`@([\w.]+)\.(get|post|put|patch|delete|head|options)\s*\(\s*[rf]?['"]([^'"]*)['"]`)
)

// pyDecoratorMatches applies receiver prefixes to shorthand verb decorators.
func pyDecoratorMatches(m meta, content, file string, prefixes map[string]string) []model.RawMatch {
	var out []model.RawMatch
	for _, loc := range pyDecoratorVerb.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		receiver := content[loc[2]:loc[3]]
		p := routepath.Join(prefixes[receiver], content[loc[6]:loc[7]])
		out = append(out, m.match(content[loc[4]:loc[5]], p, loc[0], file))
	}
	return out
}

// ============================================================================
// FastAPI
// ============================================================================

// FastAPIExtractor detects FastAPI path operation decorators
type FastAPIExtractor struct{ meta }

var (
	fastapiAPIRoute      = regexp.MustCompile(`@([\w.]+)\.api_route\s*\(`)
	fastapiRouter        = regexp.MustCompile(`(\w+)\s*=\s*APIRouter\s*\(`)
	fastapiIncludeRouter = regexp.MustCompile(`\.include_router\s*\(\s*([\w.]+)\s*,[^)]*?prefix\s*=\s*['"]([^'"]+)['"]`)
)

// NewFastAPIExtractor returns the extractor
func NewFastAPIExtractor() *FastAPIExtractor {
	return &FastAPIExtractor{meta{"fastapi", []model.Framework{model.FrameworkFastAPI}, pyExtensions}}
}

// Scan finds decorated path operations, applying APIRouter prefixes
func (e *FastAPIExtractor) Scan(content, file string) []model.RawMatch {
	prefixes := map[string]string{}
	for _, loc := range fastapiRouter.FindAllStringSubmatchIndex(content, -1) {
		args, _ := parenArgs(content, loc[1]-1)
		if ps, ok := namedArg(args, "prefix"); ok && len(ps) > 0 {
			prefixes[content[loc[2]:loc[3]]] = ps[0]
		}
	}
	for _, mm := range fastapiIncludeRouter.FindAllStringSubmatch(content, -1) {
		name := mm[1]
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		prefixes[name] = routepath.Join(mm[2], prefixes[name])
	}

	out := pyDecoratorMatches(e.meta, content, file, prefixes)
	for _, loc := range fastapiAPIRoute.FindAllStringSubmatchIndex(content, -1) {
		args, _ := parenArgs(content, loc[1]-1)
		paths := annotationPaths(args)
		methods := []string{"GET"}
		if ms, ok := namedArg(args, "methods"); ok {
			methods = methodList(strings.Join(quoteAll(ms), ","))
		}
		receiver := content[loc[2]:loc[3]]
		for _, method := range methods {
			out = append(out, e.match(method, routepath.Join(prefixes[receiver], paths[0]), loc[0], file))
		}
	}
	return out
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = `"` + s + `"`
	}
	return out
}

// ============================================================================
// Flask
// ============================================================================

// FlaskExtractor detects Flask route decorators and url rules
type FlaskExtractor struct{ meta }

var (
	flaskRoute        = regexp.MustCompile(`@([\w.]+)\.route\s*\(`)
	flaskBlueprint    = regexp.MustCompile(`(\w+)\s*=\s*Blueprint\s*\(`)
	flaskRegisterBP   = regexp.MustCompile(`\.register_blueprint\s*\(\s*([\w.]+)\s*,[^)]*?url_prefix\s*=\s*['"]([^'"]+)['"]`)
	flaskAddURLRule   = regexp.MustCompile(`\b(\w+)\.add_url_rule\s*\(`)
	flaskMethodsValue = regexp.MustCompile(`methods\s*=\s*(\[[^\]]*\]|\([^)]*\))`)
)

// NewFlaskExtractor returns the extractor
func NewFlaskExtractor() *FlaskExtractor {
	return &FlaskExtractor{meta{"flask", []model.Framework{model.FrameworkFlask}, pyExtensions}}
}

// Scan finds @app.route / @bp.route declarations with their methods
func (e *FlaskExtractor) Scan(content, file string) []model.RawMatch {
	prefixes := map[string]string{}
	for _, loc := range flaskBlueprint.FindAllStringSubmatchIndex(content, -1) {
		args, _ := parenArgs(content, loc[1]-1)
		if ps, ok := namedArg(args, "url_prefix"); ok && len(ps) > 0 {
			prefixes[content[loc[2]:loc[3]]] = ps[0]
		}
	}
	for _, mm := range flaskRegisterBP.FindAllStringSubmatch(content, -1) {
		name := mm[1]
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		prefixes[name] = routepath.Join(mm[2], prefixes[name])
	}

	out := pyDecoratorMatches(e.meta, content, file, prefixes)
	for _, re := range []*regexp.Regexp{flaskRoute, flaskAddURLRule} {
		for _, loc := range re.FindAllStringSubmatchIndex(content, -1) {
			if isCommentedOut(content, loc[0]) {
				continue
			}
			args, _ := parenArgs(content, loc[1]-1)
			paths := annotationPaths(args)
			if len(paths) == 0 || paths[0] == "" && !strings.Contains(args, `''`) && !strings.Contains(args, `""`) {
				continue
			}
			methods := []string{"GET"}
			if mm := flaskMethodsValue.FindStringSubmatch(args); mm != nil {
				if ms := methodList(mm[1]); len(ms) > 0 {
					methods = ms
				}
			}
			receiver := content[loc[2]:loc[3]]
			for _, method := range methods {
				out = append(out, e.match(method, routepath.Join(prefixes[receiver], paths[0]), loc[0], file))
			}
		}
	}
	return out
}

// ============================================================================
// Django / Django REST framework
// ============================================================================

// DjangoExtractor detects urlpatterns entries and DRF router registrations
type DjangoExtractor struct{ meta }

var (
	djangoPath          = regexp.MustCompile(`\b(re_path|path|url)\s*\(\s*r?['"]([^'"]*)['"]\s*,\s*([^,)\n]+(?:\([^)]*\))?)`)
	djangoRouterInclude = regexp.MustCompile(`\b(?:re_path|path|url)\s*\(\s*r?['"]([^'"]*)['"]\s*,\s*include\s*\(\s*(\w+)\.urls`)
	drfRegister         = regexp.MustCompile(`\b(\w+)\.register\s*\(\s*r?['"]([^'"]*)['"]\s*,\s*(\w+)`)
	drfAPIView          = regexp.MustCompile(`@api_view\s*\(\s*\[([^\]]*)\]\s*\)\s*\n(?:\s*@[^\n]*\n)*\s*(?:async\s+)?def\s+(\w+)`)
	drfAsViewDict       = regexp.MustCompile(`as_view\s*\(\s*\{([^}]*)\}`)
	drfReadOnly         = regexp.MustCompile(`class\s+(\w+)\s*\([^)]*ReadOnlyModelViewSet`)
	pyIdentTail         = regexp.MustCompile(`(\w+)\s*(?:\.as_view\b.*)?$`)
)

// NewDjangoExtractor returns the extractor
func NewDjangoExtractor() *DjangoExtractor {
	return &DjangoExtractor{meta{"django", []model.Framework{model.FrameworkDjango}, pyExtensions}}
}

type viewSetAction struct {
	method string
	detail bool
}

var viewSetActions = []viewSetAction{
	{"GET", false}, {"POST", false},
	{"GET", true}, {"PUT", true}, {"PATCH", true}, {"DELETE", true},
}

// Scan reads urls.py style route tables
func (e *DjangoExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "urlpatterns") && !drfRegister.MatchString(content) && !drfAPIView.MatchString(content) {
		return nil
	}

	apiViews := map[string][]string{}
	for _, mm := range drfAPIView.FindAllStringSubmatch(content, -1) {
		apiViews[mm[2]] = methodList(mm[1])
	}
	readOnly := map[string]bool{}
	for _, mm := range drfReadOnly.FindAllStringSubmatch(content, -1) {
		readOnly[mm[1]] = true
	}
	routerPrefix := map[string]string{}
	for _, mm := range djangoRouterInclude.FindAllStringSubmatch(content, -1) {
		routerPrefix[mm[2]] = mm[1]
	}

	var out []model.RawMatch
	for _, loc := range djangoPath.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		view := strings.TrimSpace(content[loc[6]:loc[7]])
		if strings.HasPrefix(view, "include") {
			continue
		}
		rawPath := content[loc[4]:loc[5]]
		handler := ""
		if hm := pyIdentTail.FindStringSubmatch(strings.SplitN(view, ".as_view", 2)[0]); hm != nil {
			handler = hm[1]
		}

		methods := []string{"GET"}
		if dm := drfAsViewDict.FindStringSubmatch(content[loc[6]:srctext.LineEnd(content, loc[6])]); dm != nil {
			if ms := methodList(dm[1]); len(ms) > 0 {
				methods = ms
			}
		} else if ms, ok := apiViews[handler]; ok && len(ms) > 0 {
			methods = ms
		}
		for _, method := range methods {
			rm := e.match(method, rawPath, loc[0], file)
			rm.Handler = handler
			out = append(out, rm)
		}
	}

	for _, loc := range drfRegister.FindAllStringSubmatchIndex(content, -1) {
		routerVar := content[loc[2]:loc[3]]
		prefix := routepath.Join(routerPrefix[routerVar], content[loc[4]:loc[5]])
		viewSet := content[loc[6]:loc[7]]
		for _, a := range viewSetActions {
			if readOnly[viewSet] && a.method != "GET" {
				continue
			}
			p := prefix
			if a.detail {
				p = routepath.Join(prefix, "<pk>")
			}
			rm := e.match(a.method, p, loc[0], file)
			rm.Handler = viewSet
			out = append(out, rm)
		}
	}
	return out
}
