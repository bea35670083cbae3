// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hub downloads hosted dataset files into the local cache. It
// speaks the Hugging Face dataset API: a manifest request lists a
// repository's files, and resolve URLs serve their contents.
package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/pdiddy/concept-base/internal/httputil"
	"github.com/pdiddy/concept-base/pkg/types"
)

const (
	defaultBaseURL  = "https://huggingface.co"
	defaultRevision = "main"
	datasetsDir     = "datasets"
)

// DefaultDataset is the hub repository holding prebuilt ConceptNet
// assertion dumps.
const DefaultDataset = "conceptnet-sqlite"

// DefaultPattern selects the assertion dump files from a dataset manifest.
const DefaultPattern = "*.csv.gz"

// Client fetches dataset files from a hub endpoint.
type Client struct {
	cfg    types.HubConfig
	client *http.Client
	logger *zap.Logger
}

// New builds a hub client. Zero-value config fields fall back to the
// public hub endpoint at its main revision.
func New(cfg types.HubConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Revision == "" {
		cfg.Revision = defaultRevision
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Manifest is a dataset repository's file listing at one revision.
type Manifest struct {
	ID    string
	SHA   string
	Files []string
}

// Dataset API JSON structures.
type datasetInfo struct {
	ID       string    `json:"id"`
	SHA      string    `json:"sha"`
	Siblings []sibling `json:"siblings"`
}

type sibling struct {
	RFilename string `json:"rfilename"`
}

// Manifest lists the files of a dataset repository.
func (c *Client) Manifest(ctx context.Context, repo string) (Manifest, error) {
	apiURL := fmt.Sprintf("%s/api/datasets/%s/revision/%s", c.cfg.BaseURL, repo, c.cfg.Revision)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Manifest{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 0)
	if err != nil {
		return Manifest{}, fmt.Errorf("dataset API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Manifest{}, fmt.Errorf("dataset %s not found at revision %s", repo, c.cfg.Revision)
	}
	if resp.StatusCode != http.StatusOK {
		return Manifest{}, fmt.Errorf("dataset API returned HTTP %d for %s", resp.StatusCode, repo)
	}

	var info datasetInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Manifest{}, fmt.Errorf("parsing dataset manifest: %w", err)
	}

	m := Manifest{ID: info.ID, SHA: info.SHA}
	for _, s := range info.Siblings {
		m.Files = append(m.Files, s.RFilename)
	}
	return m, nil
}

// Fetch downloads one dataset file to <cacheDir>/datasets/<repo>/<file>,
// skipping files already present unless force is set. The skipped return
// value reports whether the download was skipped.
func (c *Client) Fetch(ctx context.Context, repo, file, cacheDir string, force bool, w io.Writer) (dest string, skipped bool, err error) {
	dest = filepath.Join(cacheDir, datasetsDir, repo, filepath.FromSlash(file))

	if !force {
		if _, err := os.Stat(dest); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", file)
			return dest, true, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", false, fmt.Errorf("creating dataset directory: %w", err)
	}

	fileURL := fmt.Sprintf("%s/datasets/%s/resolve/%s/%s", c.cfg.BaseURL, repo, c.cfg.Revision, file)
	fmt.Fprintf(w, "downloading: %s\n", file)
	if err := c.download(ctx, fileURL, dest); err != nil {
		return "", false, fmt.Errorf("downloading %s: %w", file, err)
	}

	c.logger.Debug("fetched dataset file",
		zap.String("repo", repo),
		zap.String("file", file))
	return dest, false, nil
}

// FetchResult holds the outcome of a batch fetch run.
type FetchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Paths      []string
}

// Total returns the number of manifest files processed.
func (r FetchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any downloads failed.
func (r FetchResult) HasFailures() bool {
	return r.Failed > 0
}

// FetchAll downloads every manifest file matching pattern, printing
// per-file status and continuing after individual failures. Patterns
// without a slash match against file base names. Matching nothing is an
// error.
func (c *Client) FetchAll(ctx context.Context, repo, pattern, cacheDir string, force bool, w io.Writer) (FetchResult, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := path.Match(pattern, "probe"); err != nil {
		return FetchResult{}, fmt.Errorf("bad file pattern %q: %w", pattern, err)
	}

	manifest, err := c.Manifest(ctx, repo)
	if err != nil {
		return FetchResult{}, err
	}

	var result FetchResult
	for _, file := range manifest.Files {
		name := file
		if !strings.Contains(pattern, "/") {
			name = path.Base(file)
		}
		if matched, _ := path.Match(pattern, name); !matched {
			continue
		}

		dest, skipped, err := c.Fetch(ctx, repo, file, cacheDir, force, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", file, err)
			result.Failed++
			continue
		}
		if skipped {
			result.Skipped++
		} else {
			result.Downloaded++
		}
		result.Paths = append(result.Paths, dest)
	}

	if result.Total() == 0 {
		return result, fmt.Errorf("no files matching %q in dataset %s", pattern, repo)
	}

	fmt.Fprintf(w, "\nfetch summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// download fetches url to destPath using a temporary file so a partial
// download never lands at the final name.
func (c *Client) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}
