package engine

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/apimap/internal/analytics"
	"github.com/QTest-hq/apimap/internal/canonical"
	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/internal/detector"
	"github.com/QTest-hq/apimap/internal/extractors"
	"github.com/QTest-hq/apimap/internal/miner"
	"github.com/QTest-hq/apimap/internal/walker"
	"github.com/QTest-hq/apimap/pkg/model"
)

// Options configures an extraction run
type Options struct {
	// Project replaces the .apimap.yaml found under the root when set
	Project *config.ProjectConfig

	// Overrides are merged over the project settings (CLI flags)
	Overrides *config.ProjectConfig

	// Workers bounds concurrent file reads, zero uses GOMAXPROCS
	Workers int

	// MaxFiles caps the project's own file ceiling when positive
	MaxFiles int

	// Timeout bounds the whole run, zero disables it
	Timeout time.Duration
}

// FromConfig takes the process-wide scan limits
func FromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Workers:  cfg.Scan.Workers,
		MaxFiles: cfg.Scan.MaxFiles,
		Timeout:  cfg.Scan.Timeout,
	}
}

// Engine runs the extraction pipeline: detect, walk, extract, mine,
// canonicalize, analyze.
type Engine struct {
	opts     Options
	registry *extractors.Registry
	miner    *miner.Miner
}

// New creates an engine
func New(opts Options) *Engine {
	return &Engine{
		opts:     opts,
		registry: extractors.NewRegistry(),
		miner:    miner.New(),
	}
}

// Extract scans root with default options
func Extract(ctx context.Context, root string) *model.Result {
	return New(Options{}).Extract(ctx, root)
}

// Project resolves the settings used for root
func (e *Engine) Project(root string) *config.ProjectConfig {
	pc := e.opts.Project
	if pc == nil {
		loaded, err := config.LoadProjectConfig(root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("ignoring unreadable project config")
			loaded = config.DefaultProjectConfig()
		}
		pc = loaded
	} else {
		cp := *pc
		pc = &cp
	}
	pc.Merge(e.opts.Overrides)

	if e.opts.MaxFiles > 0 && (pc.Scan.MaxFiles <= 0 || e.opts.MaxFiles < pc.Scan.MaxFiles) {
		pc.Scan.MaxFiles = e.opts.MaxFiles
	}
	return pc
}

// Detect reports the framework Extract would use for root
func (e *Engine) Detect(root string) model.Framework {
	return detector.DetectWithOverride(root, e.Project(root).Framework)
}

// Extract scans root and returns the canonical endpoints with analytics.
// It never fails: an unreadable root yields an empty result, and a
// timeout returns what was gathered with Scan.Truncated set.
func (e *Engine) Extract(ctx context.Context, root string) (res *model.Result) {
	start := time.Now()
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	res = model.NewResult(root)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("root", root).Msg("extraction aborted")
		}
		res.Scan.Duration = time.Since(start)
	}()

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	pc := e.Project(root)
	fw := detector.DetectWithOverride(root, pc.Framework)
	res.Framework = fw

	set := e.registry.ForFramework(fw)
	w := walker.New(walker.Options{
		Framework:     fw,
		Extensions:    extractors.Extensions(set),
		Include:       pc.Include,
		Exclude:       pc.Exclude,
		MaxDepth:      pc.Scan.MaxDepth,
		MaxFiles:      pc.Scan.MaxFiles,
		MaxFileBytes:  pc.Scan.MaxFileBytes,
		CacheCapacity: pc.Scan.CacheCapacity,
	})

	files, rep := w.Walk(ctx, root)
	scan := walker.Scan(ctx, w, files, e.opts.Workers, func(f walker.File, content string) []*model.Endpoint {
		matches := extractors.Run(set, content, f.RelPath)
		for i := range matches {
			if matches[i].Framework == model.FrameworkUnknown {
				matches[i].Framework = fw
			}
		}
		return e.miner.MineFile(content, matches)
	})

	kept, dropped := canonical.Dedup(scan.Items, pc.Dedup)
	analytics.New(analytics.FromProject(pc.Analytics)).Run(kept)

	res.Endpoints = kept
	res.Groups = canonical.Group(kept)
	res.Stats = analytics.Summarize(kept)

	cache := w.Cache().Stats()
	res.Scan = model.ScanInfo{
		FilesVisited:      rep.Visited,
		FilesScanned:      scan.Scanned,
		FilesSkipped:      rep.Skipped + scan.Failed,
		RawMatches:        len(scan.Items),
		DuplicatesDropped: dropped,
		CacheHits:         cache.Hits,
		CacheMisses:       cache.Misses,
		Truncated:         rep.Truncated || ctx.Err() != nil,
	}

	log.Debug().
		Str("root", root).
		Str("framework", string(fw)).
		Int("files", scan.Scanned).
		Int("endpoints", len(kept)).
		Int("duplicates", dropped).
		Msg("extraction finished")

	return res
}
