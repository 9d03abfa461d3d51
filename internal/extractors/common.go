package extractors

import (
	"regexp"
	"sort"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	jsExtensions     = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"}
	pyExtensions     = []string{".py"}
	jvmExtensions    = []string{".java", ".kt"}
	goExtensions     = []string{".go"}
	rubyExtensions   = []string{".rb"}
	phpExtensions    = []string{".php"}
	csExtensions     = []string{".cs"}
	rustExtensions   = []string{".rs"}
	elixirExtensions = []string{".ex", ".exs"}
	dartExtensions   = []string{".dart"}
)

// meta carries the static identity shared by every extractor
type meta struct {
	name       string
	frameworks []model.Framework
	exts       []string
}

func (m meta) Name() string                  { return m.name }
func (m meta) Frameworks() []model.Framework { return m.frameworks }
func (m meta) Extensions() []string          { return m.exts }

// match builds a raw match tagged with the extractor's first framework.
func (m meta) match(method, rawPath string, offset int, file string) model.RawMatch {
	fw := model.FrameworkUnknown
	if len(m.frameworks) > 0 {
		fw = m.frameworks[0]
	}
	return m.matchAs(fw, method, rawPath, offset, file)
}

func (m meta) matchAs(fw model.Framework, method, rawPath string, offset int, file string) model.RawMatch {
	return model.RawMatch{
		Method:     strings.ToUpper(method),
		RawPath:    rawPath,
		Offset:     offset,
		SourceFile: file,
		Framework:  fw,
		Extractor:  m.name,
	}
}

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// normalizeMethod upper-cases a verb and maps catch-all registrations
// (all, any, match-everything) to GET. Unknown verbs yield "".
func normalizeMethod(m string) string {
	m = strings.ToUpper(strings.TrimSpace(m))
	m = strings.TrimPrefix(m, "HTTP.METHOD")
	m = strings.TrimPrefix(m, "METHOD")
	switch m {
	case "ALL", "ANY", "*", "":
		return "GET"
	}
	if httpMethods[m] {
		return m
	}
	return ""
}

var quotedWord = regexp.MustCompile(`['"]([A-Za-z.]+)['"]|\b(?:RequestMethod|HttpMethod|Method|http)\.(?:Method)?([A-Za-z]+)\b`)

// methodList reads verbs out of a literal such as ['GET', 'POST'],
// {RequestMethod.GET, RequestMethod.POST} or "GET".
func methodList(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range quotedWord.FindAllStringSubmatch(s, -1) {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		method := normalizeMethod(v)
		if method != "" && !seen[method] {
			seen[method] = true
			out = append(out, method)
		}
	}
	return out
}

// span is a region of a file in which routes inherit a path prefix.
type span struct {
	start, end int
	prefix     string
}

// prefixAt joins the prefixes of every span enclosing offset, outermost first.
func prefixAt(spans []span, offset int) string {
	var enclosing []span
	for _, s := range spans {
		if offset > s.start && offset < s.end {
			enclosing = append(enclosing, s)
		}
	}
	sort.SliceStable(enclosing, func(i, j int) bool { return enclosing[i].start < enclosing[j].start })
	prefix := ""
	for _, s := range enclosing {
		prefix = routepath.Join(prefix, s.prefix)
	}
	if prefix == "/" {
		return ""
	}
	return prefix
}

// blockSpans finds calls whose regexp match ends at (or just before) a
// function body and records the body as a prefix span. The prefix is the
// first capture group; the body starts at the first '{' after the match.
func blockSpans(content string, re *regexp.Regexp) []span {
	var spans []span
	for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
		open := strings.IndexByte(content[m[1]:], '{')
		if open < 0 || open > 200 {
			continue
		}
		open += m[1]
		end := srctext.MatchingClose(content, open)
		if end < 0 {
			end = len(content)
		}
		spans = append(spans, span{start: open, end: end, prefix: content[m[2]:m[3]]})
	}
	return spans
}

// varPrefixes resolves group variables such as `v1 := r.Group("/v1")`.
// The regexp must capture (child, parent, path) in that order. Parents
// declared earlier contribute their own prefix.
func varPrefixes(content string, re *regexp.Regexp, roots map[string]string) map[string]string {
	prefixes := map[string]string{}
	for k, v := range roots {
		prefixes[k] = v
	}
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		child, parent, p := m[1], m[2], m[3]
		prefixes[child] = routepath.Join(prefixes[parent], p)
	}
	return prefixes
}

// classSpans returns, for every class-like declaration, the region from the
// declaration to the end of its body together with the prefix recovered by
// prefixOf from the text just before the declaration and the declaration
// itself. Nested classes yield nested spans.
func classSpans(content string, decl *regexp.Regexp, prefixOf func(preamble, decl string) string) []span {
	var spans []span
	for _, loc := range decl.FindAllStringIndex(content, -1) {
		end := len(content)
		if open := strings.IndexByte(content[loc[1]:], '{'); open >= 0 && open < 300 {
			if close := srctext.MatchingClose(content, loc[1]+open); close > 0 {
				end = close
			}
		}
		p := prefixOf(srctext.Window(content, loc[0]-400, loc[0]), content[loc[0]:loc[1]])
		spans = append(spans, span{start: loc[0], end: end, prefix: p})
	}
	return spans
}

// lastMatchGroup returns capture group 1 of the last match of re in s.
func lastMatchGroup(re *regexp.Regexp, s string) string {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1][1]
}

var stringLiteral = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'`)

// stringsIn lists the contents of every quoted literal in s.
func stringsIn(s string) []string {
	var out []string
	for _, m := range stringLiteral.FindAllStringSubmatch(s, -1) {
		if m[1] != "" || strings.HasPrefix(m[0], `"`) {
			out = append(out, m[1])
		} else {
			out = append(out, m[2])
		}
	}
	return out
}

var namedArgPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, k := range []string{"value", "path", "url", "methods", "method", "prefix", "url_prefix", "name"} {
		namedArgPatterns[k] = namedArgPattern(k)
	}
}

func namedArgPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + key + `\s*[=:]\s*(\{[^}]*\}|\[[^\]]*\]|"[^"]*"|'[^']*')`)
}

// namedArg returns the literal(s) assigned to one of keys inside an
// annotation or decorator argument list, e.g. value = "/x" or path: '/x'.
func namedArg(args string, keys ...string) ([]string, bool) {
	for _, k := range keys {
		re, ok := namedArgPatterns[k]
		if !ok {
			re = namedArgPattern(k)
		}
		if m := re.FindStringSubmatch(args); m != nil {
			return stringsIn(m[1]), true
		}
	}
	return nil, false
}

// annotationPaths returns the path literals of an annotation argument list,
// preferring value/path keys over the first positional argument.
func annotationPaths(args string) []string {
	if ps, ok := namedArg(args, "value", "path"); ok {
		return ps
	}
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return []string{""}
	}
	first := trimmed
	if strings.HasPrefix(first, "{") || strings.HasPrefix(first, "[") {
		if end := srctext.MatchingClose(first, 0); end > 0 {
			return stringsIn(first[:end+1])
		}
	}
	if s, ok := srctext.Unquote(strings.SplitN(first, ",", 2)[0]); ok {
		return []string{s}
	}
	return []string{""}
}

// parenArgs returns the raw text between the parenthesis opening at or
// after from and its match, or "" when there is none on the same line.
func parenArgs(content string, from int) (string, int) {
	i := from
	for i < len(content) && (content[i] == ' ' || content[i] == '\t') {
		i++
	}
	if i >= len(content) || content[i] != '(' {
		return "", from
	}
	end := srctext.MatchingClose(content, i)
	if end < 0 {
		return "", from
	}
	return content[i+1 : end], end + 1
}

// isCommentedOut reports whether offset sits on a line comment.
func isCommentedOut(content string, offset int) bool {
	line := strings.TrimSpace(content[srctext.LineStart(content, offset):offset])
	return strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#[") ||
		strings.HasPrefix(line, "*") || strings.HasPrefix(line, "/*")
}

// tail returns at most n bytes of content starting at from.
func tail(content string, from, n int) string {
	if from+n > len(content) {
		return content[from:]
	}
	return content[from : from+n]
}
