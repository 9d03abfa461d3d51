package analytics

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Naming issue identifiers and their deductions.
const (
	IssueVerbInPath      = "verb-in-path"
	IssueMixedCase       = "mixed-case-styles"
	IssueCamelCase       = "camel-case-segment"
	IssueUppercase       = "uppercase-letters"
	IssueFileExtension   = "file-extension"
	IssueDeepPath        = "deep-path"
	IssueSingularCollect = "singular-collection"
)

var namingPenalty = map[string]int{
	IssueVerbInPath:      15,
	IssueMixedCase:       10,
	IssueCamelCase:       5,
	IssueUppercase:       5,
	IssueFileExtension:   5,
	IssueDeepPath:        10,
	IssueSingularCollect: 5,
}

var (
	pathVerbs = []string{
		"get", "create", "update", "delete", "remove", "add", "fetch", "list", "edit", "set",
		"save", "insert", "modify", "destroy", "make", "do", "retrieve", "find",
	}
	camelSegment  = regexp.MustCompile(`^[a-z]+[A-Z]`)
	fileExtension = regexp.MustCompile(`\.(?:json|xml|html?|php|aspx?|jsp|cgi|txt|csv)$`)
	versionSeg    = regexp.MustCompile(`^v\d+(?:\.\d+)?$`)

	uncountable = map[string]bool{
		"api": true, "data": true, "info": true, "media": true, "auth": true, "search": true,
		"health": true, "metadata": true, "feedback": true, "content": true, "me": true,
		"admin": true, "login": true, "logout": true, "config": true, "staff": true, "software": true,
	}
)

// Naming scores a normalized path from 100 down, one fixed deduction per
// kind of issue.
func Naming(path string) model.NamingReport {
	segs := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	var issues []string
	flag := func(issue string) {
		for _, i := range issues {
			if i == issue {
				return
			}
		}
		issues = append(issues, issue)
	}

	styles := map[string]bool{}
	for i, seg := range segs {
		if isParamSegment(seg) {
			continue
		}
		if startsWithVerb(seg) {
			flag(IssueVerbInPath)
		}
		if style := caseStyle(seg); style != "" {
			styles[style] = true
		}
		if camelSegment.MatchString(seg) {
			flag(IssueCamelCase)
		}
		if strings.ToLower(seg) != seg {
			flag(IssueUppercase)
		}
		if i == len(segs)-1 && fileExtension.MatchString(seg) {
			flag(IssueFileExtension)
		}
		if i+1 < len(segs) && isParamSegment(segs[i+1]) && isSingular(seg) {
			flag(IssueSingularCollect)
		}
	}
	if len(styles) > 1 {
		flag(IssueMixedCase)
	}
	if len(segs) > 5 {
		flag(IssueDeepPath)
	}

	score := 100
	for _, i := range issues {
		score -= namingPenalty[i]
	}
	if issues == nil {
		issues = []string{}
	}
	return model.NamingReport{Score: clamp(score, 0, 100), Issues: issues}
}

func isParamSegment(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

// startsWithVerb matches "create", "create-user", "createUser" and
// "create_user" but not "creator" or "settings".
func startsWithVerb(seg string) bool {
	for _, v := range pathVerbs {
		if !strings.HasPrefix(strings.ToLower(seg), v) {
			continue
		}
		rest := seg[len(v):]
		if rest == "" || rest[0] == '-' || rest[0] == '_' || (rest[0] >= 'A' && rest[0] <= 'Z') {
			return true
		}
	}
	return false
}

func caseStyle(seg string) string {
	switch {
	case strings.Contains(seg, "-"):
		return "kebab"
	case strings.Contains(seg, "_"):
		return "snake"
	case strings.ToLower(seg) != seg:
		return "camel"
	}
	return ""
}

func isSingular(seg string) bool {
	s := strings.ToLower(seg)
	if uncountable[s] || versionSeg.MatchString(s) {
		return false
	}
	return !strings.HasSuffix(s, "s")
}
