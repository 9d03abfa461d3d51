package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Similarity returns a 0-100 resemblance score of two endpoints:
// half path-segment Jaccard, 0.3 for the same method and 0.2 for the ratio
// of their parameter counts.
func Similarity(a, b *model.Endpoint) int {
	score := 0.5*jaccard(pathTokens(a.Path), pathTokens(b.Path)) +
		0.2*paramRatio(len(a.Parameters), len(b.Parameters))
	if a.Method == b.Method {
		score += 0.3
	}
	return int(math.Round(score * 100))
}

// pathTokens splits a path into its segments, with every parameter folded
// to the same token.
func pathTokens(path string) map[string]bool {
	tokens := map[string]bool{}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if isParamSegment(seg) {
			seg = "{}"
		}
		tokens[strings.ToLower(seg)] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func paramRatio(x, y int) float64 {
	lo, hi := x, y
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi < 1 {
		hi = 1
	}
	return float64(lo) / float64(hi)
}

// similarity fills the top matches of every endpoint and flags potential
// duplicates.
func (p *Pipeline) similarity(endpoints []*model.Endpoint) {
	for i, ep := range endpoints {
		var matches []model.SimilarityMatch
		for j, other := range endpoints {
			if i == j {
				continue
			}
			s := Similarity(ep, other)
			if s < p.cfg.SimilarityThreshold {
				continue
			}
			matches = append(matches, model.SimilarityMatch{
				EndpointID: other.ID,
				Method:     other.Method,
				Path:       other.Path,
				Score:      s,
			})
		}
		sort.SliceStable(matches, func(a, b int) bool {
			if matches[a].Score != matches[b].Score {
				return matches[a].Score > matches[b].Score
			}
			if matches[a].Path != matches[b].Path {
				return matches[a].Path < matches[b].Path
			}
			return matches[a].Method < matches[b].Method
		})
		if len(matches) > p.cfg.TopMatches {
			matches = matches[:p.cfg.TopMatches]
		}
		if matches == nil {
			matches = []model.SimilarityMatch{}
		}
		ep.Analytics.Similarity = model.SimilarityReport{
			TopMatches:         matches,
			PotentialDuplicate: len(matches) > 0 && matches[0].Score >= p.cfg.DuplicateThreshold,
		}
	}
}
