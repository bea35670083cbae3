// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package loader parses ConceptNet assertion dumps: tab-separated rows of
// edge URI, relation URI, start URI, end URI, and JSON metadata, optionally
// gzip-compressed. It validates and normalizes rows and applies language
// and weight filters before handing assertions to the store layer.
package loader

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/concept-base/pkg/types"
)

// Row is one parsed dump row: the assertion plus its endpoints resolved
// into concept form so downstream consumers never re-parse URIs.
type Row struct {
	Assertion    types.Assertion
	Relation     types.Relation
	StartConcept types.Concept
	EndConcept   types.Concept
}

// Stats counts what happened to the rows of one dump.
type Stats struct {
	Lines     int `json:"lines" yaml:"lines"`
	Kept      int `json:"kept" yaml:"kept"`
	Filtered  int `json:"filtered" yaml:"filtered"`
	Malformed int `json:"malformed" yaml:"malformed"`
}

// metadata is the JSON fifth column of a dump row.
type metadata struct {
	Weight      float64        `json:"weight"`
	Dataset     string         `json:"dataset"`
	License     string         `json:"license"`
	Sources     []types.Source `json:"sources"`
	SurfaceText string         `json:"surfaceText"`
}

// malformedAbortAfter is the row count after which a majority-malformed
// input is rejected as not being an assertion dump at all.
const malformedAbortAfter = 100

// lines in real dumps run long once metadata carries many sources.
const maxLineBytes = 1 << 20

// Loader streams assertion rows through a filter.
type Loader struct {
	Filter  Filter
	Workers int

	logger *zap.Logger
}

// New returns a Loader for the given ingestion settings. A nil logger
// disables diagnostics.
func New(cfg types.LoadConfig, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Loader{
		Filter:  NewFilter(cfg.Languages, cfg.MinWeight),
		Workers: workers,
		logger:  logger,
	}
}

// ParseRow parses one tab-separated dump line. The metadata column may be
// empty; its weight defaults to 1.0 when absent.
func ParseRow(line string) (Row, error) {
	fields := strings.SplitN(line, "\t", 5)
	if len(fields) < 5 {
		return Row{}, fmt.Errorf("expected 5 tab-separated fields, got %d", len(fields))
	}
	if !strings.HasPrefix(fields[0], "/a/") {
		return Row{}, fmt.Errorf("assertion URI %q does not start with /a/", fields[0])
	}

	relName, err := types.ParseRelationURI(fields[1])
	if err != nil {
		return Row{}, err
	}
	start, err := types.ParseConceptURI(fields[2])
	if err != nil {
		return Row{}, fmt.Errorf("start: %w", err)
	}
	end, err := types.ParseConceptURI(fields[3])
	if err != nil {
		return Row{}, fmt.Errorf("end: %w", err)
	}

	md := metadata{Weight: 1.0}
	if meta := strings.TrimSpace(fields[4]); meta != "" {
		if err := json.Unmarshal([]byte(meta), &md); err != nil {
			return Row{}, fmt.Errorf("decoding metadata: %w", err)
		}
	}

	return Row{
		Assertion: types.Assertion{
			URI:         fields[0],
			Relation:    types.RelationURIFor(relName),
			Start:       start.String(),
			End:         end.String(),
			Weight:      md.Weight,
			Dataset:     md.Dataset,
			License:     md.License,
			Sources:     md.Sources,
			SurfaceText: md.SurfaceText,
		},
		Relation: types.Relation{
			URI:       types.RelationURIFor(relName),
			Label:     relName,
			Symmetric: types.IsSymmetricRelation(relName),
		},
		StartConcept: types.Concept{
			URI:      start.String(),
			Language: start.Language,
			Label:    types.NormalizeLabel(start.Label()),
			Sense:    start.Sense,
		},
		EndConcept: types.Concept{
			URI:      end.String(),
			Language: end.Language,
			Label:    types.NormalizeLabel(end.Label()),
			Sense:    end.Sense,
		},
	}, nil
}

// Rows streams r line by line, calling fn for every row that parses and
// passes the filter. Malformed rows are counted and skipped unless they
// make up the majority of the input, which aborts with a format error.
func (l *Loader) Rows(ctx context.Context, r io.Reader, fn func(Row) error) (Stats, error) {
	var stats Stats
	scanner := newLineScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		row, err := ParseRow(line)
		if err != nil {
			stats.Malformed++
			l.logger.Debug("skipping malformed row",
				zap.Int("line", stats.Lines), zap.Error(err))
			if err := stats.checkMalformed(); err != nil {
				return stats, err
			}
			continue
		}
		if !l.Filter.Keep(row) {
			stats.Filtered++
			continue
		}
		stats.Kept++
		if err := fn(row); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading dump: %w", err)
	}
	return stats, nil
}

// ParallelRows parses with l.Workers goroutines. fn is always called from
// a single goroutine, so consumers need no locking; row order follows
// parse completion, not input order. The first error cancels the run.
func (l *Loader) ParallelRows(ctx context.Context, r io.Reader, fn func(Row) error) (Stats, error) {
	if l.Workers <= 1 {
		return l.Rows(ctx, r, fn)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		row Row
		err error
	}

	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan string, l.Workers*4)
	results := make(chan result, l.Workers*4)

	g.Go(func() error {
		defer close(lines)
		scanner := newLineScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			select {
			case lines <- line:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading dump: %w", err)
		}
		return nil
	})

	var workers sync.WaitGroup
	for i := 0; i < l.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for line := range lines {
				row, err := ParseRow(line)
				select {
				case results <- result{row: row, err: err}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	var stats Stats
	var consumeErr error
	for res := range results {
		if consumeErr != nil {
			continue // drain so workers can finish
		}
		stats.Lines++
		if res.err != nil {
			stats.Malformed++
			l.logger.Debug("skipping malformed row", zap.Error(res.err))
			if err := stats.checkMalformed(); err != nil {
				consumeErr = err
				cancel()
			}
			continue
		}
		if !l.Filter.Keep(res.row) {
			stats.Filtered++
			continue
		}
		stats.Kept++
		if err := fn(res.row); err != nil {
			consumeErr = err
			cancel()
		}
	}

	// cancel fires before g.Wait only when consumeErr is set, so any
	// group error seen here is genuine: a reader failure or a cancellation
	// of the caller's context.
	if err := g.Wait(); err != nil && consumeErr == nil {
		return stats, err
	}
	return stats, consumeErr
}

// File streams one dump file, decompressing transparently when the name
// ends in .gz.
func (l *Loader) File(ctx context.Context, path string, fn func(Row) error) (Stats, error) {
	r, err := OpenDump(path)
	if err != nil {
		return Stats{}, err
	}
	defer r.Close()

	if l.Workers > 1 {
		return l.ParallelRows(ctx, r, fn)
	}
	return l.Rows(ctx, r, fn)
}

func (s *Stats) checkMalformed() error {
	if s.Lines >= malformedAbortAfter && s.Malformed*2 > s.Lines {
		return fmt.Errorf("input does not look like an assertion dump: %d of %d rows malformed",
			s.Malformed, s.Lines)
	}
	return nil
}

// OpenDump opens a dump file for reading, wrapping gzip when the filename
// says so.
func OpenDump(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip dump %s: %w", path, err)
	}
	return &gzipReadCloser{Reader: zr, file: f}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return scanner
}
