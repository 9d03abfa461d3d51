package miner

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	laravelAction = regexp.MustCompile(`^\[\s*\\?([\w\\]+)::class\s*,\s*['"](\w+)['"]\s*\]$`)
	actixTo       = regexp.MustCompile(`\.to\s*\(\s*([\w:]+)\s*\)`)

	axumMethodHandler = regexp.MustCompile(`(?:^|\.|routing::)\s*(get|post|put|patch|delete|head|options|any)\s*\(\s*([\w:]+)`)

	// declaration patterns, tried in order on the forward window
	funcDecls = map[lang][]*regexp.Regexp{
		langPython: {regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+(\w+)`)},
		langJS: {
			regexp.MustCompile(`\bfunction\s*\*?\s*(\w+)\s*\(`),
			regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:const|let)\s+(\w+)\s*=\s*(?:async\s*)?\(`),
			regexp.MustCompile(`(?m)^\s*(?:(?:public|private|protected|static|async)\s+)*(\w+)\s*\(`),
		},
		langJVM: {
			regexp.MustCompile(`(?m)^\s*(?:(?:public|private|protected|static|final|suspend|override)\s+)*fun\s+(\w+)\s*\(`),
			regexp.MustCompile(`(?m)^\s*(?:(?:public|private|protected|static|final|synchronized)\s+)*[\w<>\[\]?, ]+?\s+(\w+)\s*\(`),
		},
		langCS:   {regexp.MustCompile(`(?m)^\s*(?:(?:public|private|protected|internal|static|async|virtual|override)\s+)+[\w<>\[\]?, ]+?\s+(\w+)\s*\(`)},
		langRust: {regexp.MustCompile(`\bfn\s+(\w+)`)},
		langPHP:  {regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`)},
		langGo:   {regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s*)?(\w+)\s*\(`)},
		langDart: {
			regexp.MustCompile(`(?m)^\s*(?:Future<\w+>|Response|FutureOr<\w+>)\s+(\w+)\s*\(`),
		},
	}
)

// recognizeHandler names the handler: an extractor supplied name wins, then
// the last argument of a fluent registration, then the next declared
// function after an annotation.
func recognizeHandler(c *mineCtx) {
	if c.ep.HandlerName != "" {
		return
	}
	if len(c.args) >= 2 {
		c.ep.HandlerName = handlerFromArg(c, lastPositional(c.args[1:]))
		return
	}
	for _, re := range funcDecls[c.lang] {
		if m := re.FindStringSubmatch(c.win.Forward); m != nil && !isKeyword(m[1]) {
			c.ep.HandlerName = m[1]
			return
		}
	}
}

func lastPositional(args []string) string {
	for i := len(args) - 1; i >= 0; i-- {
		if !keywordArg.MatchString(args[i]) {
			return args[i]
		}
	}
	return ""
}

func handlerFromArg(c *mineCtx, arg string) string {
	arg = strings.TrimSpace(arg)
	if m := laravelAction.FindStringSubmatch(arg); m != nil {
		parts := strings.Split(m[1], `\`)
		return parts[len(parts)-1] + "@" + m[2]
	}
	if s, ok := srctext.Unquote(arg); ok {
		return s
	}
	if c.ep.Framework == model.FrameworkAxum {
		for _, m := range axumMethodHandler.FindAllStringSubmatch(arg, -1) {
			if strings.EqualFold(m[1], c.ep.Method) {
				return m[2]
			}
		}
		return ""
	}
	if m := actixTo.FindStringSubmatch(arg); m != nil {
		return m[1]
	}
	return srctext.CalleeName(arg)
}

var keywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true, "catch": true,
	"new": true, "await": true, "function": true, "class": true, "else": true,
}

func isKeyword(s string) bool { return keywords[s] }

var (
	summaryAnnotations = []*regexp.Regexp{
		regexp.MustCompile(`@Operation\s*\([^)]*?\bsummary\s*=\s*"([^"]+)"`),
		regexp.MustCompile(`@ApiOperation\s*\(\s*(?:value\s*=\s*)?"([^"]+)"`),
		regexp.MustCompile(`@ApiOperation\s*\(\s*\{[^}]*?summary:\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`\b(?:summary|description)\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`\.(?:WithSummary|WithDescription)\s*\(\s*"([^"]+)"`),
		regexp.MustCompile(`@doc\s+"([^"]+)"`),
		regexp.MustCompile(`\bdesc\s+['"]([^'"]+)['"]`),
	}
	docstring      = regexp.MustCompile(`(?s)\bdef\s+\w+\s*\(.*?\)[^:]*:\s*(?:"""|''')(.*?)(?:"""|''')`)
	xmlSummary     = regexp.MustCompile(`</?summary>`)
	commentMarkers = regexp.MustCompile(`^\s*(?:/\*\*?|\*/|\*|///?|#+)\s?`)
)

// recognizeDescription reads a summary annotation, a Python docstring or
// the comment block immediately above the declaration.
func recognizeDescription(c *mineCtx) {
	head := c.decorators() + "\n" + c.head(600)
	for _, re := range summaryAnnotations {
		if m := re.FindStringSubmatch(head); m != nil {
			c.ep.Description = strings.TrimSpace(m[1])
			return
		}
	}
	if c.lang == langPython {
		if m := docstring.FindStringSubmatch(c.head(1200)); m != nil {
			c.ep.Description = firstParagraph(m[1])
			return
		}
	}
	c.ep.Description = leadingComment(c.win.Backward)
}

// leadingComment returns the comment block ending right above the
// declaration, skipping decorator and attribute lines in between.
func leadingComment(backward string) string {
	lines := strings.Split(backward, "\n")
	// the last element is the declaration line up to the match
	lines = lines[:len(lines)-1]

	var block []string
	inBlock := false
	for i := len(lines) - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		switch {
		case t == "" && len(block) == 0 && !inBlock:
			return ""
		case strings.HasSuffix(t, "*/"):
			inBlock = true
			block = append(block, t)
			if strings.HasPrefix(t, "/*") {
				inBlock = false
			}
		case inBlock:
			block = append(block, t)
			if strings.HasPrefix(t, "/*") {
				inBlock = false
			}
		case strings.HasPrefix(t, "//") || (strings.HasPrefix(t, "#") && !strings.HasPrefix(t, "#[")):
			block = append(block, t)
		case len(block) == 0 && (strings.HasPrefix(t, "@") || strings.HasPrefix(t, "[") || strings.HasPrefix(t, "#[")):
			continue
		default:
			i = -1
		}
	}

	var text []string
	for i := len(block) - 1; i >= 0; i-- {
		l := strings.TrimSpace(commentMarkers.ReplaceAllString(block[i], ""))
		l = strings.TrimSpace(xmlSummary.ReplaceAllString(strings.TrimSuffix(l, "*/"), ""))
		if l == "" || strings.HasPrefix(l, "@") || strings.HasPrefix(l, "<") {
			continue
		}
		text = append(text, l)
	}
	return strings.Join(text, " ")
}

func firstParagraph(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n\n"); i >= 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}

var asyncCue = regexp.MustCompile(`\basync\b|\bawait\b|\bTask<|\bCompletableFuture<|\bMono<|\bFlux<|\bFuture<|\bsuspend\s+fun\b|\bDeferredResult<`)

// recognizeAsync flags handlers declared async or returning a future type.
func recognizeAsync(c *mineCtx) {
	c.ep.IsAsync = asyncCue.MatchString(c.head(400))
}
