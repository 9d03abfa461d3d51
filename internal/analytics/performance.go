package analytics

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	cacheCue       = regexp.MustCompile(`(?i)Cache-Control|\bETag\b|Last-Modified|\bredis\w*\.\w+|\bmemcache\w*|\blru\w*|\bcache\.(?:get|set|put|remember|fetch)\b|@Cacheable\b|@cache_page\b|\bcacheManager\b`)
	compressionCue = regexp.MustCompile(`(?i)\bcompression\s*\(|\bgzip\b|\bbrotli\b|\bdeflate\b|GZipMiddleware|Content-Encoding|\bCompress\w*|ResponseCompression`)
	paginationCue  = regexp.MustCompile(`(?i)\bpaginat\w*|\bPageable\b|\bPageRequest\b|\.skip\s*\(|\.limit\s*\(|\.offset\s*\(|\bLIMIT\s+(?:\d+|\?|\$\d)|\bOFFSET\b|\btake\s*:|\bskip\s*:|\bper_page\b|\bpageSize\b|\bpage_size\b|\bcursor\s*[:=]`)
	fileIOCue      = regexp.MustCompile(`\bfs\.\w+|\breadFile\w*|\bwriteFile\w*|\bcreate(?:Read|Write)Stream\b|\bwith\s+open\s*\(|\bos\.(?:Open|OpenFile|ReadFile|WriteFile|Create)\b|\bioutil\.\w+|\bFile\.(?:read|write|open)\w*|\bFiles\.\w+|\bFile(?:Input|Output)Stream\b|\bsend_file\b|\bsendFile\b|\bFileResponse\b|\bstd::fs::\w+|\bFile::open\b`)
)

var paginationParams = map[string]bool{
	"page": true, "limit": true, "offset": true, "cursor": true, "per_page": true, "perpage": true,
	"pagesize": true, "page_size": true, "size": true, "skip": true, "take": true, "after": true, "before": true,
}

// Performance flags caching, compression and pagination, estimates handler
// latency and scores the result from 0 to 100.
func Performance(ep *model.Endpoint) model.PerformanceReport {
	text := body(ep)
	mw := strings.Join(ep.Middleware, " ")

	r := model.PerformanceReport{
		HasCaching:     ep.Cache != nil || cacheCue.MatchString(text),
		HasCompression: compressionCue.MatchString(text) || compressionCue.MatchString(mw),
		HasPagination:  paginationCue.MatchString(text),
		Latency:        estimateLatency(text),
	}
	for _, p := range ep.ParamsIn(model.InQuery) {
		if paginationParams[strings.ToLower(p.Name)] {
			r.HasPagination = true
		}
	}

	switch r.Latency {
	case model.LatencyHigh:
		r.Score = 30
	case model.LatencyMedium:
		r.Score = 60
	default:
		r.Score = 80
	}
	if r.HasCaching {
		r.Score += 10
	}
	if r.HasCompression {
		r.Score += 5
	}
	if r.HasPagination {
		r.Score += 5
	}
	r.Score = clamp(r.Score, 0, 100)
	return r
}

func estimateLatency(text string) model.Latency {
	db := dbCalls(text)
	switch {
	case externalCalls(text) > 0:
		return model.LatencyHigh
	case db > 3:
		return model.LatencyHigh
	case db > 0:
		return model.LatencyMedium
	case fileIOCue.MatchString(text):
		return model.LatencyMedium
	}
	return model.LatencyLow
}
