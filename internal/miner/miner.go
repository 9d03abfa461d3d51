// Package miner turns raw route matches into endpoints by reading the source
// around each declaration: parameters, request body, responses, auth,
// middleware, validation, rate limits, cache directives and documentation.
package miner

import (
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

// Window sizes around a declaration.
const (
	ForwardBytes  = 2048
	BackwardBytes = 500
	PreambleBytes = 400
)

// Window is the text a recognizer may read for one match.
type Window struct {
	Forward  string // from the declaration up to the next match in the file
	Backward string // before the declaration, never past the previous match's line
	Preamble string // text before the enclosing class declaration, with its header
}

// lang scopes recognizers to the idioms of one language family.
type lang string

const (
	langJS     lang = "js"
	langPython lang = "python"
	langJVM    lang = "jvm"
	langGo     lang = "go"
	langRuby   lang = "ruby"
	langPHP    lang = "php"
	langCS     lang = "csharp"
	langRust   lang = "rust"
	langElixir lang = "elixir"
	langDart   lang = "dart"
	langOther  lang = "other"
)

var extLangs = map[string]lang{
	".js": langJS, ".jsx": langJS, ".ts": langJS, ".tsx": langJS, ".mjs": langJS, ".cjs": langJS,
	".py":   langPython,
	".java": langJVM, ".kt": langJVM,
	".go":  langGo,
	".rb":  langRuby,
	".php": langPHP,
	".cs":  langCS,
	".rs":  langRust,
	".ex":  langElixir, ".exs": langElixir,
	".dart": langDart,
}

func langOf(file string) lang {
	if l, ok := extLangs[strings.ToLower(path.Ext(file))]; ok {
		return l
	}
	return langOther
}

// mineCtx is the state shared by the recognizers of one endpoint.
type mineCtx struct {
	ep      *model.Endpoint
	lang    lang
	content string
	offset  int
	win     Window

	// args are the top-level arguments of a fluent registration call such
	// as router.post('/orders', auth, createOrder); nil for annotations.
	args []string
}

// all adds the class preamble to near, for class-level guards
func (c *mineCtx) all() string {
	return c.win.Preamble + "\n" + c.near()
}

// near is the decorator block above the declaration and the forward window
func (c *mineCtx) near() string {
	return c.decorators() + "\n" + c.win.Forward
}

// decorators returns the annotation, attribute and decorator lines directly
// above the declaration. The rest of the backward window may belong to the
// previous handler's body.
func (c *mineCtx) decorators() string {
	return trailingLines(c.win.Backward, isAnnotationLine)
}

// leadingBlock is the run of comment and annotation lines directly above
// the declaration.
func leadingBlock(backward string) string {
	return trailingLines(backward, func(t string) bool {
		return isAnnotationLine(t) || isCommentLine(t)
	})
}

func trailingLines(backward string, keep func(trimmed string) bool) string {
	lines := strings.Split(backward, "\n")
	// the last element is the declaration line up to the match
	lines = lines[:len(lines)-1]
	start := len(lines)
	for i := len(lines) - 1; i >= 0 && keep(strings.TrimSpace(lines[i])); i-- {
		start = i
	}
	return strings.Join(lines[start:], "\n")
}

func isAnnotationLine(t string) bool {
	return strings.HasPrefix(t, "@") || strings.HasPrefix(t, "[") || strings.HasPrefix(t, "#[")
}

func isCommentLine(t string) bool {
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/*") || strings.HasPrefix(t, "*") ||
		(strings.HasPrefix(t, "#") && !strings.HasPrefix(t, "#["))
}

// recognizer fills one aspect of an endpoint. langs nil means every language.
type recognizer struct {
	name  string
	langs []lang
	apply func(c *mineCtx)
}

func (r recognizer) appliesTo(l lang) bool {
	if len(r.langs) == 0 {
		return true
	}
	for _, x := range r.langs {
		if x == l {
			return true
		}
	}
	return false
}

// Miner builds endpoints from raw matches
type Miner struct {
	recognizers []recognizer
}

// New returns a miner with the full recognizer set, in application order.
func New() *Miner {
	return &Miner{recognizers: []recognizer{
		{name: "handler", apply: recognizeHandler},
		{name: "description", apply: recognizeDescription},
		{name: "async", apply: recognizeAsync},
		{name: "path-params", apply: recognizePathParams},
		{name: "query-params", apply: recognizeQueryParams},
		{name: "header-params", apply: recognizeHeaderParams},
		{name: "request-body", apply: recognizeRequestBody},
		{name: "fastapi-signature", langs: []lang{langPython}, apply: recognizePythonSignature},
		{name: "responses", apply: recognizeResponses},
		{name: "middleware", apply: recognizeMiddleware},
		{name: "auth", apply: recognizeAuth},
		{name: "validation", apply: recognizeValidation},
		{name: "rate-limit", apply: recognizeRateLimit},
		{name: "cache", apply: recognizeCache},
		{name: "default-response", apply: defaultResponse},
	}}
}

// MineFile mines every match of one file. matches must be ordered by offset,
// as the extractor registry returns them.
func (m *Miner) MineFile(content string, matches []model.RawMatch) []*model.Endpoint {
	out := make([]*model.Endpoint, 0, len(matches))
	for i := range matches {
		out = append(out, m.Mine(content, matches[i], WindowAt(content, matches, i)))
	}
	return out
}

// Mine builds one endpoint from a match and its window. It never fails: a
// recognizer that panics contributes nothing.
func (m *Miner) Mine(content string, rm model.RawMatch, win Window) *model.Endpoint {
	p, params := routepath.Normalize(rm.RawPath)
	raw := rm.RawPath
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	ep := &model.Endpoint{
		Method:      strings.ToUpper(rm.Method),
		Path:        p,
		RawPath:     raw,
		SourceFile:  rm.SourceFile,
		Line:        srctext.LineAt(content, rm.Offset),
		HandlerName: rm.Handler,
		Framework:   rm.Framework,
		Parameters:  make([]model.Parameter, 0, len(params)),
		Responses:   make([]model.Response, 0, 2),
		Middleware:  make([]string, 0),
		Context:     win.Forward,
		Leading:     win.Backward,
	}
	for _, prm := range params {
		typ := prm.Type
		if t, ok := rm.PathParamTypes[prm.Name]; ok && t != "" {
			typ = t
		}
		ep.AddParameter(model.Parameter{Name: prm.Name, Type: typ, Required: !prm.Optional, In: model.InPath})
	}

	c := &mineCtx{
		ep:      ep,
		lang:    langOf(rm.SourceFile),
		content: content,
		offset:  rm.Offset,
		win:     win,
		args:    fluentArgs(content, rm.Offset),
	}
	for _, r := range m.recognizers {
		if r.appliesTo(c.lang) {
			m.apply(r, c)
		}
	}
	return ep
}

// apply runs one recognizer, restoring the endpoint if it panics.
func (m *Miner) apply(r recognizer, c *mineCtx) {
	snapshot := cloneEndpoint(c.ep)
	defer func() {
		if rec := recover(); rec != nil {
			*c.ep = *snapshot
			log.Debug().
				Str("recognizer", r.name).
				Str("file", c.ep.SourceFile).
				Int("line", c.ep.Line).
				Interface("panic", rec).
				Msg("recognizer failed")
		}
	}()
	r.apply(c)
}

func cloneEndpoint(e *model.Endpoint) *model.Endpoint {
	cp := *e
	cp.Parameters = append([]model.Parameter(nil), e.Parameters...)
	cp.Responses = append([]model.Response(nil), e.Responses...)
	cp.Middleware = append([]string(nil), e.Middleware...)
	if cp.Parameters == nil {
		cp.Parameters = make([]model.Parameter, 0)
	}
	if cp.Responses == nil {
		cp.Responses = make([]model.Response, 0)
	}
	if cp.Middleware == nil {
		cp.Middleware = make([]string, 0)
	}
	return &cp
}

var classDecl = regexp.MustCompile(`(?m)^[ \t]*(?:(?:export|default|public|private|protected|internal|abstract|final|sealed|static|partial|open|data)\s+)*class\s+\w+`)

// WindowAt computes the window of matches[i]. matches must share one file
// and be ordered by offset.
func WindowAt(content string, matches []model.RawMatch, i int) Window {
	off := matches[i].Offset
	if off > len(content) {
		off = len(content)
	}

	end := len(content)
	for j := i + 1; j < len(matches); j++ {
		if matches[j].Offset > off {
			end = matches[j].Offset
			break
		}
	}
	if end > off+ForwardBytes {
		end = off + ForwardBytes
	}

	start := off - BackwardBytes
	for j := i - 1; j >= 0; j-- {
		if matches[j].Offset < off {
			if floor := srctext.LineEnd(content, matches[j].Offset) + 1; floor > start {
				start = floor
			}
			break
		}
	}

	return Window{
		Forward:  srctext.Window(content, off, end),
		Backward: srctext.Window(content, start, off),
		Preamble: preamble(content, off),
	}
}

// preamble returns the text before the class enclosing offset, with the
// class header line, or "" when offset is not inside a class.
func preamble(content string, off int) string {
	locs := classDecl.FindAllStringIndex(srctext.Window(content, 0, off), -1)
	if len(locs) == 0 {
		return ""
	}
	loc := locs[len(locs)-1]
	if open := strings.IndexByte(srctext.Window(content, loc[1], loc[1]+300), '{'); open >= 0 {
		if close := srctext.MatchingClose(content, loc[1]+open); close > 0 && close < off {
			return ""
		}
	}
	return srctext.Window(content, loc[0]-PreambleBytes, srctext.LineEnd(content, loc[0]))
}

var (
	fluentPathArg = regexp.MustCompile(`^(?:r|f|b|@)?['"` + "`" + `]`)
	keywordArg    = regexp.MustCompile(`^\w+\s*(?:=[^=>]|:[^:])`)
)

// fluentArgs returns the arguments of the registration call starting at
// offset when it is a call whose first argument is a string literal, as in
// app.get('/x', auth, handler). Decorators and attributes yield nil.
func fluentArgs(content string, offset int) []string {
	line := srctext.Window(content, offset, srctext.LineEnd(content, offset))
	trimmed := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "#[") || strings.HasPrefix(trimmed, "[") {
		return nil
	}
	open := strings.IndexByte(line, '(')
	if open < 0 {
		return nil
	}
	args, _ := srctext.CallArgs(content, offset+open)
	if len(args) < 2 || !fluentPathArg.MatchString(args[0]) {
		return nil
	}
	return args
}

// middleArgs are the fluent arguments between the path and the handler,
// with keyword and option arguments removed.
func (c *mineCtx) middleArgs() []string {
	if len(c.args) < 3 {
		return nil
	}
	var out []string
	for _, a := range c.args[1 : len(c.args)-1] {
		if keywordArg.MatchString(a) || strings.HasPrefix(a, "{") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// lineBefore is the declaration line up to offset.
func (c *mineCtx) lineBefore() string {
	return srctext.Window(c.content, srctext.LineStart(c.content, c.offset), c.offset)
}

// head returns the first n bytes of the forward window.
func (c *mineCtx) head(n int) string {
	return srctext.Window(c.win.Forward, 0, n)
}

func addUnique(list []string, items ...string) []string {
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		dup := false
		for _, x := range list {
			if x == it {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, it)
		}
	}
	return list
}

// quotedItems returns the quoted strings or bare :symbols of a list literal.
var quotedItem = regexp.MustCompile(`['"]([^'"]+)['"]|:(\w+)`)

func quotedItems(s string) []string {
	var out []string
	for _, m := range quotedItem.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else {
			out = append(out, m[2])
		}
	}
	return out
}
