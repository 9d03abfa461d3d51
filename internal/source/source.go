// Package source turns a scan target into a local directory, cloning
// remote git repositories when needed.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rs/zerolog/log"
)

// Repo is a parsed remote repository reference
type Repo struct {
	URL      string // as given
	CloneURL string
	Name     string
	Branch   string // empty selects the remote default
	Local    bool   // file:// URL
}

// Checkout is a cloned working tree. Close removes it.
type Checkout struct {
	Path      string
	CommitSHA string
	Branch    string

	cleanup func() error
}

// Close deletes the checkout; it is safe to call more than once
func (c *Checkout) Close() error {
	if c == nil || c.cleanup == nil {
		return nil
	}
	err := c.cleanup()
	c.cleanup = nil
	return err
}

// IsRemote reports whether target names a repository rather than a directory
func IsRemote(target string) bool {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "file://", "git@"} {
		if strings.HasPrefix(target, prefix) {
			return true
		}
	}
	return false
}

// ParseURL parses a clone URL. A "#branch" suffix selects a branch.
func ParseURL(raw string) (*Repo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty repository URL")
	}

	repo := &Repo{URL: raw}
	target := raw
	if i := strings.LastIndex(target, "#"); i >= 0 {
		repo.Branch = target[i+1:]
		target = target[:i]
	}

	// git@host:owner/repo.git
	if strings.HasPrefix(target, "git@") {
		parts := strings.SplitN(target, ":", 2)
		if len(parts) != 2 || strings.Trim(parts[1], "/") == "" {
			return nil, fmt.Errorf("invalid SSH URL format: %s", raw)
		}
		repo.CloneURL = target
		repo.Name = repoName(parts[1])
		return repo, nil
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	switch parsed.Scheme {
	case "https", "http", "ssh", "git":
		if parsed.Host == "" || strings.Trim(parsed.Path, "/") == "" {
			return nil, fmt.Errorf("invalid repo path: %s", raw)
		}
	case "file":
		if parsed.Path == "" {
			return nil, fmt.Errorf("invalid repo path: %s", raw)
		}
		repo.Local = true
	default:
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	repo.CloneURL = target
	repo.Name = repoName(parsed.Path)
	return repo, nil
}

func repoName(p string) string {
	return strings.TrimSuffix(path.Base(strings.TrimRight(p, "/")), ".git")
}

// Fetcher clones repositories into temporary directories
type Fetcher struct {
	baseDir string
	token   string
}

// NewFetcher creates a fetcher; an empty baseDir uses the system temp dir
// and a non-empty token authenticates HTTPS clones.
func NewFetcher(baseDir, token string) *Fetcher {
	return &Fetcher{baseDir: baseDir, token: token}
}

// Fetch clones the repository at raw. Remote clones are shallow. The
// caller owns the checkout and must Close it.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (*Checkout, error) {
	repo, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(f.baseDir, "apimap-"+repo.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout directory: %w", err)
	}
	checkout := &Checkout{
		Path:    dir,
		cleanup: func() error { return os.RemoveAll(dir) },
	}

	log.Info().
		Str("url", repo.CloneURL).
		Str("path", dir).
		Msg("cloning repository")

	opts := &git.CloneOptions{URL: repo.CloneURL}
	if !repo.Local {
		opts.Depth = 1
	}
	if f.token != "" && strings.HasPrefix(repo.CloneURL, "https://") {
		opts.Auth = &http.BasicAuth{
			Username: "git",
			Password: f.token,
		}
	}
	if repo.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
		opts.SingleBranch = true
	}

	cloned, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		checkout.Close()
		return nil, fmt.Errorf("failed to clone %s: %w", repo.CloneURL, err)
	}

	head, err := cloned.Head()
	if err != nil {
		checkout.Close()
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	checkout.CommitSHA = head.Hash().String()
	checkout.Branch = head.Name().Short()

	log.Info().
		Str("commit", checkout.CommitSHA[:8]).
		Str("branch", checkout.Branch).
		Msg("clone complete")

	return checkout, nil
}

// Resolve returns a directory to scan for target. Local directories are
// returned as they are with a no-op release; repository URLs are cloned
// and released by deleting the clone.
func (f *Fetcher) Resolve(ctx context.Context, target string) (string, func(), error) {
	if !IsRemote(target) {
		info, err := os.Stat(target)
		if err != nil {
			return "", nil, fmt.Errorf("failed to open %s: %w", target, err)
		}
		if !info.IsDir() {
			return "", nil, fmt.Errorf("%s is not a directory", target)
		}
		return target, func() {}, nil
	}

	checkout, err := f.Fetch(ctx, target)
	if err != nil {
		return "", nil, err
	}
	release := func() {
		if err := checkout.Close(); err != nil {
			log.Warn().Err(err).Str("path", checkout.Path).Msg("failed to remove checkout")
		}
	}
	return checkout.Path, release, nil
}
