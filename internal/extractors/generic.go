package extractors

import (
	"regexp"

	"github.com/QTest-hq/apimap/pkg/model"
)

// RouteTableExtractor recognizes declarative route tables: object or map
// literals carrying a method and a path in either key order. It is bound to
// no framework and runs on every file the walker selects.
type RouteTableExtractor struct{ meta }

var (
	tableMethodFirst = regexp.MustCompile(`\{[^{}]*?['"]?\b(?i:method)['"]?\s*(?::|=>|=)\s*['"]([A-Za-z]+)['"][^{}]*?['"]?\b(?i:path|url|route)['"]?\s*(?::|=>|=)\s*['"](/[^'"]*)['"]`)
	tablePathFirst   = regexp.MustCompile(`\{[^{}]*?['"]?\b(?i:path|url|route)['"]?\s*(?::|=>|=)\s*['"](/[^'"]*)['"][^{}]*?['"]?\b(?i:method)['"]?\s*(?::|=>|=)\s*['"]([A-Za-z]+)['"]`)
)

// NewRouteTableExtractor returns the extractor
func NewRouteTableExtractor() *RouteTableExtractor {
	return &RouteTableExtractor{meta{name: "route-table"}}
}

// Scan finds {method, path} literals
func (e *RouteTableExtractor) Scan(content, file string) []model.RawMatch {
	var out []model.RawMatch
	add := func(method, p string, offset int) {
		if m := normalizeMethod(method); m != "" {
			out = append(out, e.match(m, p, offset, file))
		}
	}
	for _, loc := range tableMethodFirst.FindAllStringSubmatchIndex(content, -1) {
		add(content[loc[2]:loc[3]], content[loc[4]:loc[5]], loc[0])
	}
	for _, loc := range tablePathFirst.FindAllStringSubmatchIndex(content, -1) {
		add(content[loc[4]:loc[5]], content[loc[2]:loc[3]], loc[0])
	}
	return out
}
