// Package analytics scores canonical endpoints: complexity, security,
// documentation, performance, naming, consistency, similarity, dependency
// edges and an overall health score.
package analytics

import (
	"math"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/pkg/model"
)

// Config holds the tunable thresholds and health weights.
type Config struct {
	SimilarityThreshold int
	DuplicateThreshold  int
	TopMatches          int
	Weights             config.HealthWeights
}

// DefaultConfig returns the stock thresholds (50/80/top 3) and weights.
func DefaultConfig() Config {
	return FromProject(config.DefaultProjectConfig().Analytics)
}

// FromProject builds a Config from the analytics section of a project file,
// falling back to defaults for unset values.
func FromProject(a config.AnalyticsConfig) Config {
	return Config{
		SimilarityThreshold: a.SimilarityThreshold,
		DuplicateThreshold:  a.DuplicateThreshold,
		TopMatches:          a.TopMatches,
		Weights:             a.Weights,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 50
	}
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = 80
	}
	if c.TopMatches <= 0 {
		c.TopMatches = 3
	}
	if c.Weights == (config.HealthWeights{}) {
		c.Weights = config.HealthWeights{Security: 0.35, Documentation: 0.25, Performance: 0.20, Naming: 0.20}
	}
	return c
}

// Pipeline runs every pass over a canonical endpoint set.
type Pipeline struct {
	cfg Config
}

// New creates a pipeline with the given config.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg.withDefaults()}
}

// Run attaches an Analytics record to every endpoint. Per-endpoint passes
// run first, then the set-wide similarity and dependency passes, then the
// health score.
func (p *Pipeline) Run(endpoints []*model.Endpoint) {
	for _, ep := range endpoints {
		ep.Analytics = p.analyzeOne(ep)
	}

	p.similarity(endpoints)
	resolveDependencies(endpoints)

	for _, ep := range endpoints {
		ep.Analytics.HealthScore = p.health(ep.Analytics)
	}
}

// analyzeOne runs the per-endpoint passes. A pass that panics leaves its
// section at the zero value.
func (p *Pipeline) analyzeOne(ep *model.Endpoint) *model.Analytics {
	a := &model.Analytics{
		Complexity:   model.ComplexityReport{Factors: []string{}},
		Security:     model.SecurityReport{Issues: []model.SecurityIssue{}},
		Naming:       model.NamingReport{Issues: []string{}},
		Similarity:   model.SimilarityReport{TopMatches: []model.SimilarityMatch{}},
		Dependencies: emptyDependencies(),
		Consistency:  model.ConsistencyReport{ResponseFormat: "unknown", ErrorHandling: "unknown", VersioningStyle: "none"},
		Performance:  model.PerformanceReport{Latency: model.LatencyLow},
	}

	guard(ep, "complexity", func() { a.Complexity = Complexity(ep) })
	guard(ep, "security", func() { a.Security = Security(ep) })
	guard(ep, "documentation", func() { a.Documentation = Documentation(ep) })
	guard(ep, "performance", func() { a.Performance = Performance(ep) })
	guard(ep, "naming", func() { a.Naming = Naming(ep.Path) })
	guard(ep, "consistency", func() { a.Consistency = Consistency(ep) })
	guard(ep, "dependencies", func() { a.Dependencies = Dependencies(ep) })
	return a
}

func guard(ep *model.Endpoint, pass string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("pass", pass).Str("endpoint", ep.String()).Interface("panic", r).Msg("analytics pass failed")
		}
	}()
	fn()
}

// health combines the sub-scores with the configured weights.
func (p *Pipeline) health(a *model.Analytics) int {
	w := p.cfg.Weights
	score := w.Security*float64(a.Security.Score) +
		w.Documentation*float64(a.Documentation.Score) +
		w.Performance*float64(a.Performance.Score) +
		w.Naming*float64(a.Naming.Score)
	return clamp(int(math.Round(score)), 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func count(re *regexp.Regexp, text string) int {
	return len(re.FindAllStringIndex(text, -1))
}

// body is the handler text the content passes read.
func body(ep *model.Endpoint) string {
	return ep.Context
}

// docBlock returns the comment and annotation lines directly above the
// declaration.
func docBlock(ep *model.Endpoint) string {
	lines := strings.Split(ep.Leading, "\n")
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		if t == "" || !isDocLine(t) {
			break
		}
		start = i
	}
	return strings.Join(lines[start:], "\n")
}

func isDocLine(t string) bool {
	for _, p := range []string{"//", "#", "/*", "*", "@", "[", `"""`, "'''", "--"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
