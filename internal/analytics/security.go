package analytics

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Deductions from a perfect security score.
const (
	missingAuthPenalty         = 10
	missingRateLimitPenalty    = 5
	missingValidationPenalty   = 5
	missingSanitizationPenalty = 5
)

var severityPenalty = map[model.Severity]int{
	model.SeverityCritical: 25,
	model.SeverityHigh:     15,
	model.SeverityMedium:   10,
	model.SeverityLow:      5,
}

var sanitizePattern = regexp.MustCompile(`(?i)\b(?:sanitize\w*|escape(?:html|string)?\w*|DOMPurify|xss\w*|bleach|strip_tags|htmlspecialchars|html\.EscapeString|template\.HTMLEscape\w*|Jsoup\.clean|HtmlEncoder|validator\.escape|mongo-sanitize|hpp)\b`)

// sqlStatement matches the head of a SELECT, INSERT, UPDATE or DELETE inside
// a literal delimited by quote.
func sqlStatement(quote string) string {
	return `(?:SELECT\s[^` + quote + `\n]*?\bFROM\b|INSERT\s+INTO\b|UPDATE\s+\w+\s+SET\b|DELETE\s+FROM\b)`
}

// interpolatedSQL builds one set of patterns per string delimiter so that
// the other quote kinds may appear inside the literal, as in
// "WHERE name = '${name}'".
func interpolatedSQL() []string {
	var patterns []string
	for _, q := range []string{`\x22`, `\x27`, `\x60`} {
		head := q + `\s*` + sqlStatement(q) + `[^` + q + `\n]*`
		patterns = append(patterns,
			`(?i)`+head+`(?:\$\{|#\{|\{\w*\})`,
			`(?i)\bf`+head+`\{`,
		)
		if q != `\x60` {
			patterns = append(patterns, `(?i)`+head+q+`\s*(?:\+|\.|%)\s*[\w(]`)
		}
	}
	return append(patterns, `(?i)\b(?:Sprintf|format)\s*\(\s*["']\s*`+sqlStatement(`"'`))
}

// contentRule flags an issue when any of its patterns matches the handler.
type contentRule struct {
	issue    string
	severity model.Severity
	message  string
	match    func(string) bool
}

func anyOf(patterns ...string) func(string) bool {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return func(s string) bool {
		for _, re := range res {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}
}

func anyOf2(patterns ...string) func(string) bool {
	res := make([]*regexp2.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp2.MustCompile(p, regexp2.None)
	}
	return func(s string) bool {
		for _, re := range res {
			if ok, err := re.MatchString(s); err == nil && ok {
				return true
			}
		}
		return false
	}
}

var contentRules = []contentRule{
	{
		issue:    "sql-injection",
		severity: model.SeverityCritical,
		message:  "SQL statement built by string interpolation",
		match:    anyOf(interpolatedSQL()...),
	},
	{
		issue:    "code-injection",
		severity: model.SeverityCritical,
		message:  "dynamic code evaluation",
		match: anyOf2(
			`(?<![.\w$])eval\s*\(`,
			`\bnew\s+Function\s*\(`,
			`(?<![.\w$])Function\s*\(\s*['"\x60]`,
			`\binstance_eval\b|\bclass_eval\b`,
		),
	},
	{
		issue:    "hardcoded-secret",
		severity: model.SeverityCritical,
		message:  "secret-shaped literal in handler source",
		match: anyOf(
			`(?i)\b(?:password|passwd|pwd|secret|api[_-]?key|access[_-]?token|auth[_-]?token|private[_-]?key|client[_-]?secret)\w*["']?\s*[:=]\s*["'][^"'\s]{8,}["']`,
			`\bAKIA[0-9A-Z]{16}\b`,
			`\b(?:sk|rk)_live_[0-9a-zA-Z]{16,}\b`,
			`\bgh[pousr]_[0-9A-Za-z]{30,}\b`,
			`-----BEGIN (?:RSA |EC )?PRIVATE KEY-----`,
		),
	},
	{
		issue:    "wildcard-cors",
		severity: model.SeverityMedium,
		message:  "CORS allows any origin",
		match: anyOf(
			`(?i)Access-Control-Allow-Origin["']?\s*[,:=]\s*["']\*["']`,
			`\borigin\s*:\s*["']\*["']`,
			`\bAllowOrigins?\s*[:=(]\s*(?:\[\]string\s*\{\s*)?"\*"`,
			`\ballow_origins\s*=\s*\[\s*["']\*["']`,
			`\bcors\s*\(\s*\)`,
			`(?m)@CrossOrigin\s*(?:\(\s*(?:origins\s*=\s*)?"\*"\s*\))?\s*$`,
			`\bAllowAnyOrigin\s*\(`,
		),
	},
	{
		issue:    "insecure-http",
		severity: model.SeverityLow,
		message:  "plain HTTP URL to a non-local host",
		match: anyOf2(
			`http://(?!localhost\b|127\.0\.0\.1\b|0\.0\.0\.0\b|\[::1\]|www\.w3\.org\b)[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
		),
	},
	{
		issue:    "unsanitized-render",
		severity: model.SeverityHigh,
		message:  "raw HTML rendered without sanitization",
		match: anyOf(
			`\.innerHTML\s*=`,
			`\bdangerouslySetInnerHTML\b`,
			`\.html_safe\b`,
			`\|\s*safe\b`,
			`\{!!`,
			`\bmark_safe\s*\(`,
			`\btemplate\.HTML\s*\(`,
			`\bv-html\b`,
			`\bHtml\.Raw\s*\(`,
		),
	},
}

// Security reports the controls present on an endpoint, the catalog issues
// found in its handler and a 0-100 score.
func Security(ep *model.Endpoint) model.SecurityReport {
	text := body(ep)
	r := model.SecurityReport{
		Issues:             []model.SecurityIssue{},
		HasAuth:            ep.AuthType() != model.AuthNone,
		HasRateLimit:       ep.RateLimit != nil,
		HasInputValidation: ep.Validation != nil,
		HasSanitization:    sanitizePattern.MatchString(text) || sanitizePattern.MatchString(strings.Join(ep.Middleware, " ")),
	}

	if !r.HasAuth && ep.IsMutating() {
		r.Issues = append(r.Issues, model.SecurityIssue{
			Type:     "missing-auth",
			Severity: model.SeverityHigh,
			Message:  ep.Method + " endpoint has no authentication",
		})
	}
	if !r.HasRateLimit && ep.Method == "POST" {
		r.Issues = append(r.Issues, model.SecurityIssue{
			Type:     "missing-rate-limit",
			Severity: model.SeverityMedium,
			Message:  "POST endpoint has no rate limit",
		})
	}
	for _, rule := range contentRules {
		if rule.match(text) {
			r.Issues = append(r.Issues, model.SecurityIssue{Type: rule.issue, Severity: rule.severity, Message: rule.message})
		}
	}

	score := 100
	if !r.HasAuth {
		score -= missingAuthPenalty
	}
	if !r.HasRateLimit {
		score -= missingRateLimitPenalty
	}
	if !r.HasInputValidation {
		score -= missingValidationPenalty
	}
	if !r.HasSanitization {
		score -= missingSanitizationPenalty
	}
	for _, issue := range r.Issues {
		score -= severityPenalty[issue.Severity]
	}
	r.Score = clamp(score, 0, 100)
	return r
}
