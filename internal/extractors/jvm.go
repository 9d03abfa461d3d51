package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	jvmClassDecl = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|abstract|final|open|internal|data|static|sealed)\s+)*(?:class|interface|object)\s+\w+`)

	// annotations followed by a class declaration rather than a method
	jvmClassLevel = regexp.MustCompile(`^\s*(?:@\w+(?:\s*\([^)]*\))?\s*)*(?:(?:public|private|protected|abstract|final|open|internal|data|static)\s+)*(?:class|interface|object)\b`)
)

// isClassLevel reports whether the annotation ending at end decorates a class.
func isClassLevel(content string, end int) bool {
	return jvmClassLevel.MatchString(tail(content, end, 400))
}

// ============================================================================
// Spring
// ============================================================================

// SpringExtractor detects Spring MVC / WebFlux mapping annotations
type SpringExtractor struct{ meta }

var (
	springMapping      = regexp.MustCompile(`@(Get|Post|Put|Patch|Delete|Request)Mapping\b`)
	springClassMapping = regexp.MustCompile(`@RequestMapping\b`)
	springMethodArg    = regexp.MustCompile(`method\s*=\s*(\{[^}]*\}|\[[^\]]*\]|[\w.]+)`)
)

// NewSpringExtractor returns the extractor
func NewSpringExtractor() *SpringExtractor {
	return &SpringExtractor{meta{"spring", []model.Framework{model.FrameworkSpring}, jvmExtensions}}
}

// Scan finds method mappings and prefixes them with the class-level
// @RequestMapping of the enclosing class
func (e *SpringExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "Mapping") {
		return nil
	}
	classes := classSpans(content, jvmClassDecl, func(preamble, _ string) string {
		locs := springClassMapping.FindAllStringIndex(preamble, -1)
		if len(locs) == 0 {
			return ""
		}
		args, _ := parenArgs(preamble, locs[len(locs)-1][1])
		return annotationPaths(args)[0]
	})

	var out []model.RawMatch
	for _, loc := range springMapping.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) {
			continue
		}
		args, after := parenArgs(content, loc[1])
		if isClassLevel(content, after) {
			continue
		}

		kind := content[loc[2]:loc[3]]
		methods := []string{strings.ToUpper(kind)}
		if kind == "Request" {
			methods = []string{"GET"}
			if mm := springMethodArg.FindStringSubmatch(args); mm != nil {
				if ms := methodList(mm[1]); len(ms) > 0 {
					methods = ms
				}
			}
		}

		prefix := prefixAt(classes, loc[0])
		for _, p := range annotationPaths(args) {
			for _, method := range methods {
				out = append(out, e.match(method, routepath.Join(prefix, p), loc[0], file))
			}
		}
	}
	return out
}

// ============================================================================
// JAX-RS / Jakarta REST
// ============================================================================

// JAXRSExtractor detects @Path resources with @GET/@POST designators
type JAXRSExtractor struct{ meta }

var (
	jaxrsVerb = regexp.MustCompile(`@(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\b`)
	jaxrsPath = regexp.MustCompile(`@Path\s*\(\s*(?:value\s*=\s*)?"([^"]*)"\s*\)`)
)

// NewJAXRSExtractor returns the extractor
func NewJAXRSExtractor() *JAXRSExtractor {
	return &JAXRSExtractor{meta{"jaxrs", []model.Framework{model.FrameworkJAXRS}, jvmExtensions}}
}

// Scan pairs each HTTP designator with the @Path in its annotation block
func (e *JAXRSExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "@Path") {
		return nil
	}
	classes := classSpans(content, jvmClassDecl, func(preamble, _ string) string {
		return lastMatchGroup(jaxrsPath, preamble)
	})

	var out []model.RawMatch
	for _, loc := range jaxrsVerb.FindAllStringSubmatchIndex(content, -1) {
		if isCommentedOut(content, loc[0]) || strings.HasPrefix(strings.TrimSpace(content[loc[1]:]), "(") {
			continue
		}
		block, _ := annotationBlock(content, loc[0], "@")
		methodPath := ""
		if pm := jaxrsPath.FindStringSubmatch(block); pm != nil {
			methodPath = pm[1]
		}
		p := routepath.Join(prefixAt(classes, loc[0]), methodPath)
		out = append(out, e.match(content[loc[2]:loc[3]], p, loc[0], file))
	}
	return out
}

// annotationBlock returns the run of annotation lines around offset: the
// contiguous lines starting with lead above and below the line holding it,
// and the offset where the block ends.
func annotationBlock(content string, offset int, lead string) (string, int) {
	start := srctext.LineStart(content, offset)
	for start > 0 {
		prev := srctext.LineStart(content, start-1)
		if !strings.HasPrefix(strings.TrimSpace(content[prev:start]), lead) {
			break
		}
		start = prev
	}
	end := srctext.LineEnd(content, offset)
	for end < len(content) {
		next := srctext.LineEnd(content, end+1)
		if !strings.HasPrefix(strings.TrimSpace(content[end+1:next]), lead) {
			break
		}
		end = next
	}
	return content[start:end], end
}
