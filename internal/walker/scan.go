package walker

import (
	"context"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ScanFunc processes the content of one file
type ScanFunc[T any] func(f File, content string) []T

// ScanResult is the outcome of a concurrent scan
type ScanResult[T any] struct {
	Items   []T
	Scanned int // files read and processed
	Failed  int // files not read, unreadable or cut off by the context
}

// Scan reads every file and applies fn with at most workers goroutines.
// Results are flattened in the order of files, whatever order the workers
// finish in. Unreadable files are skipped; a done context stops the
// remaining files from starting.
func Scan[T any](ctx context.Context, w *Walker, files []File, workers int, fn ScanFunc[T]) ScanResult[T] {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	perFile := make([][]T, len(files))
	read := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			content, err := w.Read(f)
			if err != nil {
				log.Debug().Err(err).Str("file", f.RelPath).Msg("skipping unreadable file")
				return nil
			}
			read[i] = true
			perFile[i] = fn(f, content)
			return nil
		})
	}
	_ = g.Wait()

	res := ScanResult[T]{Items: make([]T, 0)}
	for i := range files {
		if !read[i] {
			res.Failed++
			continue
		}
		res.Scanned++
		res.Items = append(res.Items, perFile[i]...)
	}
	return res
}
