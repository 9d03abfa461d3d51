package extractors

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// PhoenixExtractor reads Phoenix router scopes, verb macros and resources
type PhoenixExtractor struct{ meta }

var (
	phoenixScope     = regexp.MustCompile(`^scope\s*\(?\s*(?:path:\s*)?"([^"]*)"`)
	phoenixVerb      = regexp.MustCompile(`^(get|post|put|patch|delete|options|head)\s*\(?\s*"([^"]*)"\s*,\s*([\w.]+)\s*,\s*:(\w+)`)
	phoenixResources = regexp.MustCompile(`^resources\s*\(?\s*"([^"]*)"\s*,\s*([\w.]+)(.*)$`)
)

// NewPhoenixExtractor returns the extractor
func NewPhoenixExtractor() *PhoenixExtractor {
	return &PhoenixExtractor{meta{"phoenix", []model.Framework{model.FrameworkPhoenix}, elixirExtensions}}
}

// Scan walks router do/end blocks
func (e *PhoenixExtractor) Scan(content, file string) []model.RawMatch {
	if !strings.Contains(content, "Phoenix.Router") && !strings.Contains(content, ":router") {
		return nil
	}

	var out []model.RawMatch
	walkBlocks(content, func(offset int, line string, top blockFrame) blockFrame {
		base := top.prefix
		switch {
		case phoenixScope.MatchString(line):
			return blockFrame{prefix: routepath.Join(base, phoenixScope.FindStringSubmatch(line)[1])}

		case phoenixVerb.MatchString(line):
			mm := phoenixVerb.FindStringSubmatch(line)
			rm := e.match(mm[1], routepath.Join(base, mm[2]), offset, file)
			rm.Handler = mm[3] + "." + mm[4]
			out = append(out, rm)

		case phoenixResources.MatchString(line):
			mm := phoenixResources.FindStringSubmatch(line)
			coll := routepath.Join(base, mm[1])
			actions := pluralActions
			if strings.Contains(mm[3], "singleton: true") {
				actions = singularActions
			}
			for _, a := range resourceRoutes(actions, mm[3]) {
				name := a.name
				if name == "destroy" {
					name = "delete"
				}
				rm := e.match(a.method, coll+a.suffix, offset, file)
				rm.Handler = mm[2] + "." + name
				out = append(out, rm)
			}
			stem := singularize(strings.Trim(mm[1], "/"))
			if i := strings.LastIndexByte(stem, '/'); i >= 0 {
				stem = stem[i+1:]
			}
			return blockFrame{prefix: routepath.Join(coll, ":"+stem+"_id")}
		}
		return blockFrame{prefix: base}
	})
	return out
}
