package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/apimap/internal/testutil"
)

func TestIsRemote(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"https://github.com/acme/shop", true},
		{"git@github.com:acme/shop.git", true},
		{"ssh://git@host/acme/shop.git", true},
		{"file:///srv/repos/shop.git", true},
		{"./shop", false},
		{"/home/dev/shop", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRemote(tt.target), tt.target)
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		clone  string
		repo   string
		branch string
		local  bool
	}{
		{"https", "https://github.com/acme/shop", "https://github.com/acme/shop", "shop", "", false},
		{"git suffix", "https://gitlab.com/acme/shop.git", "https://gitlab.com/acme/shop.git", "shop", "", false},
		{"trailing slash", "https://github.com/acme/shop/", "https://github.com/acme/shop/", "shop", "", false},
		{"branch", "https://github.com/acme/shop#develop", "https://github.com/acme/shop", "shop", "develop", false},
		{"ssh", "git@github.com:acme/shop.git", "git@github.com:acme/shop.git", "shop", "", false},
		{"file", "file:///srv/repos/shop.git", "file:///srv/repos/shop.git", "shop", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := ParseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, repo.URL)
			assert.Equal(t, tt.clone, repo.CloneURL)
			assert.Equal(t, tt.repo, repo.Name)
			assert.Equal(t, tt.branch, repo.Branch)
			assert.Equal(t, tt.local, repo.Local)
		})
	}
}

func TestParseURL_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"git@github.com",
		"https://github.com",
		"ftp://example.com/acme/shop",
	} {
		_, err := ParseURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestResolve_LocalDirectory(t *testing.T) {
	dir := t.TempDir()
	f := NewFetcher("", "")

	got, release, err := f.Resolve(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	release()
	assert.DirExists(t, dir)
}

func TestResolve_Errors(t *testing.T) {
	f := NewFetcher("", "")

	_, _, err := f.Resolve(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(file, []byte("app.get('/', h)"), 0644))
	_, _, err = f.Resolve(context.Background(), file)
	assert.Error(t, err)
}

func TestCheckout_CloseTwice(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	c := &Checkout{Path: dir, cleanup: func() error { calls++; return nil }}
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, calls)

	var nilCheckout *Checkout
	assert.NoError(t, nilCheckout.Close())
}

func TestFetch_LocalRepository(t *testing.T) {
	testutil.RequireGit(t)
	origin := testutil.InitRepo(t, map[string]string{
		"package.json":  `{"dependencies": {"express": "^4.18.2"}}`,
		"routes/api.js": "router.get('/health', ok);\n",
	})

	f := NewFetcher(t.TempDir(), "")
	path, release, err := f.Resolve(context.Background(), "file://"+origin)
	require.NoError(t, err)

	assert.NotEqual(t, origin, path)
	assert.FileExists(t, filepath.Join(path, "routes", "api.js"))

	release()
	assert.NoDirExists(t, path)
}

func TestFetch_CloneFailureCleansUp(t *testing.T) {
	base := t.TempDir()
	f := NewFetcher(base, "")

	_, err := f.Fetch(context.Background(), "file://"+filepath.Join(t.TempDir(), "nothing-here"))
	require.Error(t, err)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
