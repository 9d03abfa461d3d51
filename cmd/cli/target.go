package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/internal/engine"
	"github.com/QTest-hq/apimap/internal/source"
	"github.com/QTest-hq/apimap/pkg/model"
)

// targetFlags selects what to scan and how
type targetFlags struct {
	dir       string
	repo      string
	framework string
	include   []string
	exclude   []string
	dedup     string
	maxFiles  int
	workers   int
	timeout   time.Duration
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "dir", "d", ".", "Directory to scan")
	cmd.Flags().StringVarP(&f.repo, "repo", "r", "", "Git repository URL to clone and scan (append #branch for a branch)")
	cmd.Flags().StringVarP(&f.framework, "framework", "f", "", "Framework override, skips detection")
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "Glob of files to include (repeatable)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Glob of files to exclude (repeatable)")
	cmd.Flags().StringVar(&f.dedup, "dedup", "", "Duplicate policy: drop or merge")
	cmd.Flags().IntVar(&f.maxFiles, "max-files", 0, "Ceiling on files scanned")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent file readers (default from APIMAP_WORKERS)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Wall-clock limit for the scan")
}

func (f *targetFlags) target() string {
	if f.repo != "" {
		return f.repo
	}
	return f.dir
}

func (f *targetFlags) validate() error {
	switch f.dedup {
	case "", config.DedupDrop, config.DedupMerge:
	default:
		return fmt.Errorf("invalid --dedup %q: use %s or %s", f.dedup, config.DedupDrop, config.DedupMerge)
	}
	if f.framework != "" {
		if _, ok := model.ParseFramework(f.framework); !ok {
			return fmt.Errorf("unknown framework %q", f.framework)
		}
	}
	if f.repo != "" && !source.IsRemote(f.repo) {
		return fmt.Errorf("--repo expects a git URL, got %q", f.repo)
	}
	return nil
}

func (f *targetFlags) engine() (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	opts := engine.FromConfig(cfg)
	if f.workers > 0 {
		opts.Workers = f.workers
	}
	if f.maxFiles > 0 {
		opts.MaxFiles = f.maxFiles
	}
	if f.timeout > 0 {
		opts.Timeout = f.timeout
	}
	opts.Overrides = &config.ProjectConfig{
		Framework: f.framework,
		Include:   f.include,
		Exclude:   f.exclude,
		Dedup:     f.dedup,
	}
	return engine.New(opts), nil
}

// resolve returns the local directory for the target and a release func
// that removes any clone.
func (f *targetFlags) resolve(ctx context.Context) (string, func(), error) {
	if err := f.validate(); err != nil {
		return "", nil, err
	}
	fetcher := source.NewFetcher("", os.Getenv("APIMAP_GIT_TOKEN"))
	root, release, err := fetcher.Resolve(ctx, f.target())
	if err != nil {
		return "", nil, err
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return root, release, nil
}

// extract resolves the target and runs the engine over it
func (f *targetFlags) extract(ctx context.Context) (*model.Result, error) {
	root, release, err := f.resolve(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	eng, err := f.engine()
	if err != nil {
		return nil, err
	}
	res := eng.Extract(ctx, root)
	if f.repo != "" {
		res.Root = f.repo
	}
	return res, nil
}

// writeOutput writes data to path, or to the command's stdout when path
// is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
