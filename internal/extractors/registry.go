// Package extractors provides the per-(language, framework) route
// declaration recognizers. Each extractor is a pure function of a file's
// content; overlapping extractors are expected to fire on the same text and
// their duplicates are resolved by the canonicalizer, not here.
package extractors

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Extractor recognizes one route-declaration idiom
type Extractor interface {
	Name() string
	Frameworks() []model.Framework
	// Extensions lists the file extensions the extractor reads; nil means
	// any file selected by another extractor.
	Extensions() []string
	Scan(content, path string) []model.RawMatch
}

// Registry holds all available extractors in registration order
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a new registry with all built-in extractors
func NewRegistry() *Registry {
	r := &Registry{
		extractors: make([]Extractor, 0, 32),
	}

	// Node
	r.Register(NewNextJSExtractor())
	r.Register(NewNestJSExtractor())
	r.Register(NewExpressExtractor())
	r.Register(NewFastifyExtractor())
	r.Register(NewHapiExtractor())

	// Python
	r.Register(NewFastAPIExtractor())
	r.Register(NewFlaskExtractor())
	r.Register(NewDjangoExtractor())

	// JVM
	r.Register(NewSpringExtractor())
	r.Register(NewJAXRSExtractor())

	// Go
	r.Register(newGinEchoExtractor())
	r.Register(newFiberExtractor())
	r.Register(newChiExtractor())
	r.Register(NewGorillaExtractor())
	r.Register(NewNetHTTPExtractor())

	// Ruby
	r.Register(NewRailsExtractor())
	r.Register(NewSinatraExtractor())

	// PHP
	r.Register(NewLaravelExtractor())
	r.Register(NewSymfonyExtractor())

	// .NET
	r.Register(NewASPNetExtractor())

	// Rust
	r.Register(NewRustAttributeExtractor())
	r.Register(NewAxumExtractor())

	// Elixir
	r.Register(NewPhoenixExtractor())

	// Dart
	r.Register(NewShelfExtractor())

	// Generic route tables, part of every set
	r.Register(NewRouteTableExtractor())

	return r
}

// Register adds an extractor to the registry
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// All returns every registered extractor
func (r *Registry) All() []Extractor {
	return r.extractors
}

// Get returns an extractor by name
func (r *Registry) Get(name string) (Extractor, error) {
	for _, e := range r.extractors {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("extractor not found: %s", name)
}

// ForFramework returns the extractors bound to fw plus every generic one,
// in registration order. Unknown frameworks select all extractors.
func (r *Registry) ForFramework(fw model.Framework) []Extractor {
	if fw == "" || fw == model.FrameworkUnknown {
		return r.All()
	}
	var set []Extractor
	for _, e := range r.extractors {
		if isGeneric(e) || supports(e, fw) {
			set = append(set, e)
		}
	}
	if len(set) == 0 || allGeneric(set) {
		return r.All()
	}
	return set
}

// Extensions returns the union of file extensions read by a set, sorted.
func Extensions(set []Extractor) []string {
	seen := map[string]bool{}
	for _, e := range set {
		for _, ext := range e.Extensions() {
			seen[ext] = true
		}
	}
	out := make([]string, 0, len(seen))
	for ext := range seen {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Run applies every extractor of the set that reads this file's extension.
// A panicking extractor only loses its own contribution. Matches are
// ordered by byte offset, ties broken by position in the set.
func Run(set []Extractor, content, relPath string) []model.RawMatch {
	ext := strings.ToLower(path.Ext(relPath))
	var out []model.RawMatch
	for _, e := range set {
		if !accepts(e, ext) {
			continue
		}
		out = append(out, safeScan(e, content, relPath)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

func safeScan(e Extractor, content, relPath string) (matches []model.RawMatch) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Debug().Str("extractor", e.Name()).Str("file", relPath).Interface("panic", rec).Msg("extractor failed")
			matches = nil
		}
	}()
	return e.Scan(content, relPath)
}

func accepts(e Extractor, ext string) bool {
	exts := e.Extensions()
	if exts == nil {
		return true
	}
	for _, x := range exts {
		if x == ext {
			return true
		}
	}
	return false
}

func supports(e Extractor, fw model.Framework) bool {
	for _, f := range e.Frameworks() {
		if f == fw {
			return true
		}
	}
	return false
}

func isGeneric(e Extractor) bool {
	return len(e.Frameworks()) == 0
}

func allGeneric(set []Extractor) bool {
	for _, e := range set {
		if !isGeneric(e) {
			return false
		}
	}
	return true
}
