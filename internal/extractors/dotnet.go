package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// ASPNetExtractor detects attribute-routed controllers and minimal API
// MapGet/MapPost registrations
type ASPNetExtractor struct{ meta }

var (
	csClassDecl  = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|internal|private|protected|sealed|abstract|static|partial)\s+)*class\s+(\w+)`)
	csRouteAttr  = regexp.MustCompile(`\bRoute\s*\(\s*(?:template:\s*)?"([^"]*)"`)
	csVerbAttr   = regexp.MustCompile(`\[\s*Http(Get|Post|Put|Patch|Delete|Head|Options)\b(?:\s*\(\s*(?:template:\s*)?"([^"]*)")?`)
	csMethodName = regexp.MustCompile(`\b(\w+)\s*\(`)
	csMapVerb    = regexp.MustCompile(`\b(\w+)\.Map(Get|Post|Put|Patch|Delete)\s*\(\s*"([^"]*)"`)
	csMapGroup   = regexp.MustCompile(`(\w+)\s*=\s*(\w+)\.MapGroup\s*\(\s*"([^"]*)"`)
)

// NewASPNetExtractor returns the extractor
func NewASPNetExtractor() *ASPNetExtractor {
	return &ASPNetExtractor{meta{"aspnet", []model.Framework{model.FrameworkASPNet}, csExtensions}}
}

// Scan finds controller actions and minimal API endpoints
func (e *ASPNetExtractor) Scan(content, file string) []model.RawMatch {
	var out []model.RawMatch

	if strings.Contains(content, "[Http") || strings.Contains(content, "Route(") {
		classes := classSpans(content, csClassDecl, func(preamble, decl string) string {
			p := lastMatchGroup(csRouteAttr, preamble)
			name := csClassDecl.FindStringSubmatch(decl)[1]
			return strings.ReplaceAll(p, "[controller]", strings.TrimSuffix(name, "Controller"))
		})

		for _, loc := range csVerbAttr.FindAllStringSubmatchIndex(content, -1) {
			if isCommentedOut(content, loc[0]) {
				continue
			}
			block, end := annotationBlock(content, loc[0], "[")
			template := ""
			if loc[4] >= 0 {
				template = content[loc[4]:loc[5]]
			} else if rm := csRouteAttr.FindStringSubmatch(block); rm != nil {
				template = rm[1]
			}

			var p string
			switch {
			case strings.HasPrefix(template, "~/"):
				p = routepath.Join("", template[1:])
			case strings.HasPrefix(template, "/"):
				p = template
			default:
				p = routepath.Join(prefixAt(classes, loc[0]), template)
			}
			if strings.Contains(p, "[action]") {
				if mm := csMethodName.FindStringSubmatch(tail(content, end, 300)); mm != nil {
					p = strings.ReplaceAll(p, "[action]", mm[1])
				}
			}
			out = append(out, e.match(content[loc[2]:loc[3]], p, loc[0], file))
		}
	}

	if strings.Contains(content, ".Map") {
		groups := varPrefixes(content, csMapGroup, nil)
		for _, loc := range csMapVerb.FindAllStringSubmatchIndex(content, -1) {
			if isCommentedOut(content, loc[0]) {
				continue
			}
			p := routepath.Join(groups[content[loc[2]:loc[3]]], content[loc[6]:loc[7]])
			out = append(out, e.match(content[loc[4]:loc[5]], p, loc[0], file))
		}
	}
	return out
}
