package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// blockFrame is one open do/end block of a routing DSL. Prefixes are
// absolute so nested frames never need to look further up the stack.
type blockFrame struct {
	prefix     string
	member     string
	collection string
}

var (
	blockOpener   = regexp.MustCompile(`(?:\bdo|->)\s*(?:\|[^|]*\|)?\s*$`)
	keywordOpener = regexp.MustCompile(`^(?:if|unless|case|while|until|begin|def|class|module|for)\b`)
	blockCloser   = regexp.MustCompile(`^end\b`)
)

// walkBlocks visits every non-comment line of a do/end DSL with the frame
// stack in effect. visit returns the frame a block-opening line pushes.
func walkBlocks(content string, visit func(offset int, line string, top blockFrame) blockFrame) {
	var stack []blockFrame
	offset := 0
	for _, raw := range strings.SplitAfter(content, "\n") {
		lineOffset := offset
		offset += len(raw)
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if blockCloser.MatchString(line) {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		var top blockFrame
		if len(stack) > 0 {
			top = stack[len(stack)-1]
		}
		lead := lineOffset + strings.Index(raw, line)
		frame := visit(lead, line, top)
		opens := blockOpener.MatchString(line) || keywordOpener.MatchString(line) && !strings.Contains(line, "do:")
		if opens && !strings.HasSuffix(line, " end") {
			stack = append(stack, frame)
		}
	}
}

// resourceAction is one route generated by a resources declaration.
type resourceAction struct {
	name   string
	method string
	suffix string
}

var (
	pluralActions = []resourceAction{
		{"index", "GET", ""}, {"create", "POST", ""}, {"new", "GET", "/new"},
		{"edit", "GET", "/:id/edit"}, {"show", "GET", "/:id"},
		{"update", "PATCH", "/:id"}, {"update", "PUT", "/:id"}, {"destroy", "DELETE", "/:id"},
	}
	singularActions = []resourceAction{
		{"show", "GET", ""}, {"create", "POST", ""}, {"new", "GET", "/new"},
		{"edit", "GET", "/edit"}, {"update", "PATCH", ""}, {"update", "PUT", ""}, {"destroy", "DELETE", ""},
	}

	onlyOpt   = regexp.MustCompile(`\bonly:\s*(\[[^\]]*\]|%i\[[^\]]*\]|:\w+)`)
	exceptOpt = regexp.MustCompile(`\bexcept:\s*(\[[^\]]*\]|%i\[[^\]]*\]|:\w+)`)
	wordRe    = regexp.MustCompile(`\w+`)
)

// resourceRoutes expands a resources declaration honoring only:/except:.
// Phoenix spells destroy as delete; both names select the same action.
func resourceRoutes(actions []resourceAction, opts string) []resourceAction {
	set := func(re *regexp.Regexp) map[string]bool {
		mm := re.FindStringSubmatch(opts)
		if mm == nil {
			return nil
		}
		out := map[string]bool{}
		for _, w := range wordRe.FindAllString(mm[1], -1) {
			if w == "delete" {
				w = "destroy"
			}
			out[w] = true
		}
		return out
	}
	only, except := set(onlyOpt), set(exceptOpt)

	var out []resourceAction
	for _, a := range actions {
		if only != nil && !only[a.name] || except[a.name] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// singularize turns a collection name into its member param stem.
func singularize(name string) string {
	switch {
	case strings.HasSuffix(name, "ies"):
		return strings.TrimSuffix(name, "ies") + "y"
	case strings.HasSuffix(name, "ses"):
		return strings.TrimSuffix(name, "es")
	case strings.HasSuffix(name, "s"):
		return strings.TrimSuffix(name, "s")
	}
	return name
}

// ============================================================================
// Rails
// ============================================================================

// RailsExtractor reads config/routes.rb style DSLs
type RailsExtractor struct{ meta }

var (
	railsNamespace = regexp.MustCompile(`^namespace\s+[:'"]?(\w+)`)
	railsScope     = regexp.MustCompile(`^scope\s*\(?\s*(?:path:\s*)?['"]([^'"]*)['"]`)
	railsResources = regexp.MustCompile(`^(resources|resource)\s+:(\w+)(.*)$`)
	railsVerb      = regexp.MustCompile(`^(get|post|put|patch|delete|match)\s*\(?\s*(?:['"]([^'"]*)['"]|:(\w+))(.*)$`)
	railsRoot      = regexp.MustCompile(`^root\b(.*)$`)
	railsTo        = regexp.MustCompile(`(?:\bto:\s*|=>\s*)['"]([^'"]+)['"]`)
	railsVia       = regexp.MustCompile(`\bvia:\s*(\[[^\]]*\]|:\w+)`)
	railsOn        = regexp.MustCompile(`\bon:\s*:(member|collection)`)
)

// NewRailsExtractor returns the extractor
func NewRailsExtractor() *RailsExtractor {
	return &RailsExtractor{meta{"rails", []model.Framework{model.FrameworkRails}, rubyExtensions}}
}

// Scan walks the routing DSL keeping namespace, scope and resource prefixes
func (e *RailsExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "routes.draw") && !strings.HasSuffix(file, "routes.rb") &&
		!strings.Contains(file, "config/routes/") {
		return nil
	}

	var out []model.RawMatch
	emit := func(method, p string, offset int, handler string) {
		rm := e.match(method, p, offset, file)
		rm.Handler = handler
		out = append(out, rm)
	}

	walkBlocks(content, func(offset int, line string, top blockFrame) blockFrame {
		base := top.prefix
		child := blockFrame{prefix: base, member: top.member, collection: top.collection}

		switch {
		case railsNamespace.MatchString(line):
			p := routepath.Join(base, railsNamespace.FindStringSubmatch(line)[1])
			return blockFrame{prefix: p}

		case railsScope.MatchString(line):
			return blockFrame{prefix: routepath.Join(base, railsScope.FindStringSubmatch(line)[1])}

		case railsResources.MatchString(line):
			mm := railsResources.FindStringSubmatch(line)
			name, opts := mm[2], mm[3]
			coll := routepath.Join(base, name)
			actions := pluralActions
			if mm[1] == "resource" {
				actions = singularActions
			}
			for _, a := range resourceRoutes(actions, opts) {
				emit(a.method, coll+a.suffix, offset, name+"#"+a.name)
			}
			if mm[1] == "resource" {
				return blockFrame{prefix: coll, member: coll, collection: coll}
			}
			return blockFrame{
				prefix:     routepath.Join(coll, ":"+singularize(name)+"_id"),
				member:     routepath.Join(coll, ":id"),
				collection: coll,
			}

		case line == "member do" || strings.HasPrefix(line, "member do"):
			return blockFrame{prefix: orDefault(top.member, base), member: top.member, collection: top.collection}

		case line == "collection do" || strings.HasPrefix(line, "collection do"):
			return blockFrame{prefix: orDefault(top.collection, base), member: top.member, collection: top.collection}

		case railsVerb.MatchString(line):
			mm := railsVerb.FindStringSubmatch(line)
			rest := mm[4]
			scopeBase := base
			if on := railsOn.FindStringSubmatch(rest); on != nil {
				if on[1] == "member" {
					scopeBase = orDefault(top.member, base)
				} else {
					scopeBase = orDefault(top.collection, base)
				}
			}
			p := mm[2]
			if mm[3] != "" {
				p = mm[3]
			}
			handler := ""
			if to := railsTo.FindStringSubmatch(rest); to != nil {
				handler = to[1]
			}
			methods := []string{mm[1]}
			if mm[1] == "match" {
				methods = []string{"GET"}
				if via := railsVia.FindStringSubmatch(rest); via != nil {
					methods = nil
					for _, w := range wordRe.FindAllString(via[1], -1) {
						if m := normalizeMethod(w); m != "" {
							methods = append(methods, m)
						}
					}
				}
			}
			for _, method := range methods {
				emit(method, routepath.Join(scopeBase, p), offset, handler)
			}

		case railsRoot.MatchString(line):
			handler := ""
			if to := railsTo.FindStringSubmatch(line); to != nil {
				handler = to[1]
			} else if ss := stringsIn(line); len(ss) > 0 {
				handler = ss[0]
			}
			emit("GET", routepath.Join(base, "/"), offset, handler)
		}
		return child
	})
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ============================================================================
// Sinatra
// ============================================================================

// SinatraExtractor detects `get '/x' do` route blocks
type SinatraExtractor struct{ meta }

var sinatraRoute = regexp.MustCompile(`(?m)^[ \t]*(get|post|put|patch|delete|options|head)\s*\(?\s*['"](/[^'"]*)['"]\s*\)?[^\n]*?\bdo\b`)

// NewSinatraExtractor returns the extractor
func NewSinatraExtractor() *SinatraExtractor {
	return &SinatraExtractor{meta{"sinatra", []model.Framework{model.FrameworkSinatra}, rubyExtensions}}
}

// Scan finds route blocks
func (e *SinatraExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "inatra") {
		return nil
	}
	var out []model.RawMatch
	for _, loc := range sinatraRoute.FindAllStringSubmatchIndex(content, -1) {
		out = append(out, e.match(content[loc[2]:loc[3]], content[loc[4]:loc[5]], loc[2], file))
	}
	return out
}
