// Package walker discovers the source files of a project and reads them
// through a bounded content cache.
package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Defaults for the traversal ceilings
const (
	DefaultMaxDepth     = 8
	DefaultMaxFiles     = 5000
	DefaultMaxFileBytes = 1 << 20
)

// Options configures a Walker
type Options struct {
	Framework     model.Framework
	Extensions    []string // lower-case, with the leading dot; empty accepts all
	Include       []string // doublestar globs; empty includes everything
	Exclude       []string // doublestar globs
	MaxDepth      int
	MaxFiles      int
	MaxFileBytes  int64
	CacheCapacity int
}

// File is one discovered source file
type File struct {
	Path    string // absolute
	RelPath string // slash separated, relative to the root
	Size    int64
	ModTime time.Time
}

// Report summarizes a traversal
type Report struct {
	Visited   int  // regular files seen
	Skipped   int  // files rejected by a filter or a ceiling
	Truncated bool // the file ceiling or the context stopped discovery
}

// Walker performs depth-first discovery under a root
type Walker struct {
	opts  Options
	skip  map[string]bool
	exts  map[string]bool
	cache *ContentCache
}

// New creates a walker; zero option values take the defaults
func New(opts Options) *Walker {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Walker{
		opts:  opts,
		skip:  SkipDirs(opts.Framework),
		exts:  exts,
		cache: NewContentCache(opts.CacheCapacity),
	}
}

// Cache returns the walker's content cache
func (w *Walker) Cache() *ContentCache {
	return w.cache
}

// Walk lists the matching files under root in lexical depth-first order.
// Unreadable directories are skipped. Hitting the file ceiling or a done
// context stops discovery and returns what was gathered.
func (w *Walker) Walk(ctx context.Context, root string) ([]File, Report) {
	var files []File
	var rep Report

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		log.Debug().Str("root", root).Msg("root is not a readable directory")
		return []File{}, rep
	}

	var visit func(dir string, depth int) bool
	visit = func(dir string, depth int) bool {
		if ctx.Err() != nil {
			rep.Truncated = true
			return false
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Debug().Err(err).Str("dir", dir).Msg("skipping unreadable directory")
			return true
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			rel, _ := filepath.Rel(root, full)
			rel = filepath.ToSlash(rel)

			if entry.IsDir() {
				if w.skip[entry.Name()] || depth+1 > w.opts.MaxDepth {
					continue
				}
				if !visit(full, depth+1) {
					return false
				}
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			rep.Visited++
			if !w.wanted(rel) {
				rep.Skipped++
				continue
			}
			fi, err := entry.Info()
			if err != nil {
				rep.Skipped++
				continue
			}
			if fi.Size() > w.opts.MaxFileBytes {
				log.Debug().Str("file", rel).Int64("size", fi.Size()).Msg("skipping oversized file")
				rep.Skipped++
				continue
			}
			if len(files) >= w.opts.MaxFiles {
				rep.Truncated = true
				return false
			}
			files = append(files, File{Path: full, RelPath: rel, Size: fi.Size(), ModTime: fi.ModTime()})
		}
		return true
	}
	visit(root, 0)

	if files == nil {
		files = []File{}
	}
	return files, rep
}

// wanted applies the extension filter and the include/exclude globs
func (w *Walker) wanted(rel string) bool {
	if len(w.exts) > 0 && !w.exts[strings.ToLower(filepath.Ext(rel))] {
		return false
	}
	if len(w.opts.Include) > 0 && !matchAny(w.opts.Include, rel) {
		return false
	}
	return !matchAny(w.opts.Exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, rel)
		if err != nil {
			log.Debug().Err(err).Str("pattern", p).Msg("invalid glob")
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Read returns the content of f, served from the cache when the file's
// modification time is unchanged
func (w *Walker) Read(f File) (string, error) {
	if content, ok := w.cache.Get(f.Path, f.ModTime); ok {
		return content, nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	content := string(data)
	w.cache.Set(f.Path, f.ModTime, content)
	return content, nil
}
