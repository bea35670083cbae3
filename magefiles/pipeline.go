//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline defaults. The knowledge base name matches what the docs use in
// their examples; override by running the CLI directly.
const (
	defaultDataset = "conceptnet-sqlite"
	defaultKBName  = "conceptnet"
)

// Fetch downloads the default assertion dump dataset into the local cache.
func Fetch() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "fetch", defaultDataset)
}

// Load builds the default knowledge base from every cached dump file.
func Load() error {
	mg.Deps(Build)
	pattern := filepath.Join(datasetsDir(), defaultDataset, "*.csv.gz")
	dumps, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(dumps) == 0 {
		return fmt.Errorf("no dump files under %s (run mage fetch first)", pattern)
	}
	args := append([]string{"load", "--name", defaultKBName}, dumps...)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Index derives the traversal indexes and vocabulary for the default
// knowledge base.
func Index() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "index", "--name", defaultKBName)
}

func datasetsDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".concept-base", "datasets")
	}
	return filepath.Join(dir, "concept-base", "datasets")
}
