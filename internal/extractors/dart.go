package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// ShelfExtractor detects shelf_router registrations, @Route annotations and
// dart_frog file-system routes
type ShelfExtractor struct{ meta }

var (
	shelfVerb       = regexp.MustCompile(`(?:\b(\w+)|\.)\.(get|post|put|patch|delete|head|options|all)\s*\(\s*r?['"](/[^'"]*)['"]`)
	shelfAnnotation = regexp.MustCompile(`@Route\.(get|post|put|patch|delete|head|options|all)\s*\(\s*r?['"]([^'"]*)['"]`)
	shelfRouteCtor  = regexp.MustCompile(`@Route\s*\(\s*['"](\w+)['"]\s*,\s*r?['"]([^'"]*)['"]`)
	shelfRegexParam = regexp.MustCompile(`<(\w+)\|[^>]*>`)
	frogRoutesFile  = regexp.MustCompile(`(?:^|/)routes/(.*)\.dart$`)
	frogMethodCase  = regexp.MustCompile(`case\s+HttpMethod\.(get|post|put|patch|delete|head|options)\b`)
	frogOnRequest   = regexp.MustCompile(`\bonRequest\s*\(`)
)

// NewShelfExtractor returns the extractor
func NewShelfExtractor() *ShelfExtractor {
	return &ShelfExtractor{meta{"shelf", []model.Framework{model.FrameworkShelf}, dartExtensions}}
}

// Scan finds routes
func (e *ShelfExtractor) Scan(content, file string) []model.RawMatch {
	var out []model.RawMatch

	if strings.Contains(content, "shelf") || strings.Contains(content, "Router(") {
		for _, loc := range shelfVerb.FindAllStringSubmatchIndex(content, -1) {
			if isCommentedOut(content, loc[0]) {
				continue
			}
			p := shelfRegexParam.ReplaceAllString(content[loc[6]:loc[7]], "<$1>")
			out = append(out, e.match(normalizeMethod(content[loc[4]:loc[5]]), p, loc[0], file))
		}
		for _, re := range []*regexp.Regexp{shelfAnnotation, shelfRouteCtor} {
			for _, loc := range re.FindAllStringSubmatchIndex(content, -1) {
				method := normalizeMethod(content[loc[2]:loc[3]])
				if method == "" {
					continue
				}
				p := shelfRegexParam.ReplaceAllString(content[loc[4]:loc[5]], "<$1>")
				out = append(out, e.match(method, p, loc[0], file))
			}
		}
	}

	if fm := frogRoutesFile.FindStringSubmatch(file); fm != nil && strings.Contains(content, "dart_frog") {
		rel := strings.TrimSuffix(fm[1], "/index")
		if rel == "index" {
			rel = ""
		}
		p := "/" + rel
		cases := frogMethodCase.FindAllStringSubmatchIndex(content, -1)
		for _, loc := range cases {
			out = append(out, e.match(content[loc[2]:loc[3]], p, loc[0], file))
		}
		if len(cases) == 0 {
			if loc := frogOnRequest.FindStringIndex(content); loc != nil {
				out = append(out, e.match("GET", p, loc[0], file))
			}
		}
	}
	return out
}
