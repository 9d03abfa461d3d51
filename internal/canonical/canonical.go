// Package canonical reduces mined endpoints to one entry per identity key
// and groups the survivors by their leading path segment.
package canonical

import (
	"sort"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

const fpRate = 0.001

// seenSet answers "have we kept this key" with a bloom filter in front of an
// exact index, so a false positive never drops an endpoint.
type seenSet struct {
	filter *bloom.BloomFilter
	index  map[string]int
}

func newSeenSet(estimated int) *seenSet {
	if estimated < 1000 {
		estimated = 1000
	}
	return &seenSet{
		filter: bloom.NewWithEstimates(uint(estimated), fpRate),
		index:  make(map[string]int, estimated),
	}
}

// lookup returns the position of the kept endpoint for key, or -1.
func (s *seenSet) lookup(key string) int {
	if !s.filter.TestString(key) {
		return -1
	}
	if i, ok := s.index[key]; ok {
		return i
	}
	return -1
}

func (s *seenSet) add(key string, pos int) {
	s.filter.AddString(key)
	s.index[key] = pos
}

// Dedup keeps the first endpoint of every canonical key in scan order and
// assigns stable IDs. Under the merge policy later duplicates enrich the
// kept endpoint instead of vanishing. It returns the survivors and the
// number of endpoints folded away.
func Dedup(endpoints []*model.Endpoint, policy string) ([]*model.Endpoint, int) {
	seen := newSeenSet(len(endpoints))
	kept := make([]*model.Endpoint, 0, len(endpoints))
	dropped := 0

	for _, ep := range endpoints {
		if ep == nil {
			continue
		}
		key := ep.Key()
		if i := seen.lookup(key); i >= 0 {
			if policy == config.DedupMerge {
				Merge(kept[i], ep)
			}
			dropped++
			continue
		}
		ep.ID = model.EndpointID(key)
		seen.add(key, len(kept))
		kept = append(kept, ep)
	}
	return kept, dropped
}

// Merge folds the details of dup into dst. Parameters merge per name and
// location, responses per status; single-valued details are only filled
// when dst has none.
func Merge(dst, dup *model.Endpoint) {
	for _, p := range dup.Parameters {
		dst.AddParameter(p)
	}
	for _, r := range dup.Responses {
		dst.AddResponse(r)
	}
	sort.SliceStable(dst.Responses, func(i, j int) bool {
		return dst.Responses[i].StatusCode < dst.Responses[j].StatusCode
	})
	dst.AddMiddleware(dup.Middleware...)

	if dst.RequestBody == nil {
		dst.RequestBody = dup.RequestBody
	}
	if dst.Auth == nil {
		dst.Auth = dup.Auth
	}
	if dst.Validation == nil {
		dst.Validation = dup.Validation
	}
	if dst.RateLimit == nil {
		dst.RateLimit = dup.RateLimit
	}
	if dst.Cache == nil {
		dst.Cache = dup.Cache
	}
	if dst.Description == "" {
		dst.Description = dup.Description
	}
	if dst.HandlerName == "" {
		dst.HandlerName = dup.HandlerName
	}
	dst.IsAsync = dst.IsAsync || dup.IsAsync
}

// GroupPrefix is the grouping key of a path: "/" plus its first
// non-parameter segment, or "/" for root-level paths.
func GroupPrefix(path string) string {
	return routepath.GroupPrefix(path)
}

// Group buckets endpoints by GroupPrefix. Groups are ordered by prefix and
// the endpoints inside each by path, then method.
func Group(endpoints []*model.Endpoint) []model.Group {
	byPrefix := make(map[string][]*model.Endpoint)
	for _, ep := range endpoints {
		p := GroupPrefix(ep.Path)
		byPrefix[p] = append(byPrefix[p], ep)
	}

	groups := make([]model.Group, 0, len(byPrefix))
	for prefix, eps := range byPrefix {
		sort.SliceStable(eps, func(i, j int) bool {
			if eps[i].Path != eps[j].Path {
				return eps[i].Path < eps[j].Path
			}
			return eps[i].Method < eps[j].Method
		})
		groups = append(groups, model.Group{Prefix: prefix, Endpoints: eps})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Prefix < groups[j].Prefix })
	return groups
}
