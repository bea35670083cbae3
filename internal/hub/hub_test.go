// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hub

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/concept-base/internal/httputil"
	"github.com/pdiddy/concept-base/pkg/types"
)

func init() {
	// Keep retry backoff out of test runtime.
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

const testRepo = "conceptnet/conceptnet-sqlite"

const sampleManifestJSON = `{
  "id": "conceptnet/conceptnet-sqlite",
  "sha": "3f2a9c41d8b7",
  "siblings": [
    {"rfilename": "README.md"},
    {"rfilename": "assertions-00.csv.gz"},
    {"rfilename": "assertions-01.csv.gz"},
    {"rfilename": "missing.csv.gz"}
  ]
}`

// hubServer mocks the dataset API: manifest requests under /api/datasets/
// and file contents under resolve URLs. missing.csv.gz is listed in the
// manifest but 404s on download.
type hubServer struct {
	*httptest.Server

	mu          sync.Mutex
	auths       []string
	resolves    int
	rateLimited int
}

func newHubServer(t *testing.T) *hubServer {
	t.Helper()
	hs := &hubServer{}
	hs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hs.mu.Lock()
		hs.auths = append(hs.auths, r.Header.Get("Authorization"))
		hs.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/api/datasets/absent/"):
			http.NotFound(w, r)

		case strings.HasPrefix(r.URL.Path, "/api/datasets/"):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, sampleManifestJSON)

		case strings.Contains(r.URL.Path, "/resolve/"):
			hs.mu.Lock()
			hs.resolves++
			limited := hs.rateLimited > 0
			if limited {
				hs.rateLimited--
			}
			hs.mu.Unlock()

			if limited {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			if path.Base(r.URL.Path) == "missing.csv.gz" {
				http.NotFound(w, r)
				return
			}
			fmt.Fprintf(w, "dump-bytes:%s", path.Base(r.URL.Path))

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(hs.Close)
	return hs
}

func testClient(hs *hubServer, token string) *Client {
	return New(types.HubConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "concept-base-test/0.1",
		},
		BaseURL: hs.URL,
		Token:   token,
	}, nil)
}

func TestManifest(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")

	m, err := c.Manifest(context.Background(), testRepo)
	require.NoError(t, err)

	assert.Equal(t, "conceptnet/conceptnet-sqlite", m.ID)
	assert.Equal(t, "3f2a9c41d8b7", m.SHA)
	assert.Equal(t, []string{
		"README.md", "assertions-00.csv.gz", "assertions-01.csv.gz", "missing.csv.gz",
	}, m.Files)
}

func TestManifestNotFound(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")

	_, err := c.Manifest(context.Background(), "absent/nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFetch(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")
	cacheDir := t.TempDir()
	var buf bytes.Buffer

	dest, skipped, err := c.Fetch(context.Background(), testRepo, "assertions-00.csv.gz", cacheDir, false, &buf)
	require.NoError(t, err)
	assert.False(t, skipped)

	want := filepath.Join(cacheDir, "datasets", testRepo, "assertions-00.csv.gz")
	assert.Equal(t, want, dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "dump-bytes:assertions-00.csv.gz", string(data))
	assert.Contains(t, buf.String(), "downloading: assertions-00.csv.gz")

	// No temp files may survive the download.
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(dest), ".fetch-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFetchSkipsExisting(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")
	cacheDir := t.TempDir()
	ctx := context.Background()

	dest, _, err := c.Fetch(ctx, testRepo, "assertions-00.csv.gz", cacheDir, false, &bytes.Buffer{})
	require.NoError(t, err)

	// Mark the file so a skip is distinguishable from a re-download.
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))

	var buf bytes.Buffer
	_, skipped, err := c.Fetch(ctx, testRepo, "assertions-00.csv.gz", cacheDir, false, &buf)
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Contains(t, buf.String(), "skipped: assertions-00.csv.gz")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "stale", string(data))
}

func TestFetchForceRedownloads(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")
	cacheDir := t.TempDir()
	ctx := context.Background()

	dest, _, err := c.Fetch(ctx, testRepo, "assertions-00.csv.gz", cacheDir, false, &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))

	_, skipped, err := c.Fetch(ctx, testRepo, "assertions-00.csv.gz", cacheDir, true, &bytes.Buffer{})
	require.NoError(t, err)
	assert.False(t, skipped)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "dump-bytes:assertions-00.csv.gz", string(data))
}

func TestFetchMissingFile(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")

	_, _, err := c.Fetch(context.Background(), testRepo, "missing.csv.gz", t.TempDir(), false, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchRetriesRateLimit(t *testing.T) {
	hs := newHubServer(t)
	hs.rateLimited = 1
	c := testClient(hs, "")

	dest, skipped, err := c.Fetch(context.Background(), testRepo, "assertions-00.csv.gz", t.TempDir(), false, &bytes.Buffer{})
	require.NoError(t, err)
	assert.False(t, skipped)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "dump-bytes:assertions-00.csv.gz", string(data))

	hs.mu.Lock()
	defer hs.mu.Unlock()
	assert.Equal(t, 2, hs.resolves)
}

func TestFetchAll(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")
	cacheDir := t.TempDir()
	var buf bytes.Buffer

	result, err := c.FetchAll(context.Background(), testRepo, "", cacheDir, false, &buf)
	require.NoError(t, err)

	// Default pattern takes the three .csv.gz entries; README is ignored
	// and the 404 entry fails without aborting the rest.
	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.True(t, result.HasFailures())
	assert.Len(t, result.Paths, 2)

	for _, name := range []string{"assertions-00.csv.gz", "assertions-01.csv.gz"} {
		_, err := os.Stat(filepath.Join(cacheDir, "datasets", testRepo, name))
		assert.NoError(t, err, name)
	}

	output := buf.String()
	assert.Contains(t, output, "failed:  missing.csv.gz")
	assert.Contains(t, output, "fetch summary: 2 downloaded, 0 skipped, 1 failed (total: 3)")
}

func TestFetchAllSecondRunSkips(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")
	cacheDir := t.TempDir()
	ctx := context.Background()

	_, err := c.FetchAll(ctx, testRepo, "assertions-*.csv.gz", cacheDir, false, &bytes.Buffer{})
	require.NoError(t, err)

	result, err := c.FetchAll(ctx, testRepo, "assertions-*.csv.gz", cacheDir, false, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Downloaded)
	assert.Equal(t, 2, result.Skipped)
	assert.False(t, result.HasFailures())
}

func TestFetchAllNoMatches(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")

	_, err := c.FetchAll(context.Background(), testRepo, "*.zip", t.TempDir(), false, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files matching")
}

func TestFetchAllBadPattern(t *testing.T) {
	hs := newHubServer(t)
	c := testClient(hs, "")

	_, err := c.FetchAll(context.Background(), testRepo, "[", t.TempDir(), false, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad file pattern")
}

func TestTokenHeader(t *testing.T) {
	hs := newHubServer(t)

	_, err := testClient(hs, "hub-secret").Manifest(context.Background(), testRepo)
	require.NoError(t, err)

	hs.mu.Lock()
	auths := append([]string(nil), hs.auths...)
	hs.mu.Unlock()
	require.NotEmpty(t, auths)
	assert.Equal(t, "Bearer hub-secret", auths[0])

	hs2 := newHubServer(t)
	_, err = testClient(hs2, "").Manifest(context.Background(), testRepo)
	require.NoError(t, err)

	hs2.mu.Lock()
	defer hs2.mu.Unlock()
	require.NotEmpty(t, hs2.auths)
	assert.Empty(t, hs2.auths[0])
}
