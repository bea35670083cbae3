// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package loader

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/concept-base/pkg/types"
)

func dumpLine(uri, rel, start, end, meta string) string {
	return strings.Join([]string{uri, rel, start, end, meta}, "\t")
}

var validLine = dumpLine(
	"/a/[/r/IsA/,/c/en/dog/,/c/en/animal/]",
	"/r/IsA",
	"/c/en/dog",
	"/c/en/animal",
	`{"weight": 2.0, "dataset": "/d/wordnet/3.1", "license": "cc:by/4.0", "sources": [{"contributor": "/s/resource/wordnet/rdf/3.1"}], "surfaceText": "[[a dog]] is [[an animal]]"}`,
)

func TestParseRow(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Row
		wantErr string
	}{
		{
			name: "full metadata",
			line: validLine,
			want: Row{
				Assertion: types.Assertion{
					URI:         "/a/[/r/IsA/,/c/en/dog/,/c/en/animal/]",
					Relation:    "/r/IsA",
					Start:       "/c/en/dog",
					End:         "/c/en/animal",
					Weight:      2.0,
					Dataset:     "/d/wordnet/3.1",
					License:     "cc:by/4.0",
					Sources:     []types.Source{{Contributor: "/s/resource/wordnet/rdf/3.1"}},
					SurfaceText: "[[a dog]] is [[an animal]]",
				},
				Relation: types.Relation{URI: "/r/IsA", Label: "IsA"},
				StartConcept: types.Concept{
					URI: "/c/en/dog", Language: "en", Label: "dog",
				},
				EndConcept: types.Concept{
					URI: "/c/en/animal", Language: "en", Label: "animal",
				},
			},
		},
		{
			name: "empty metadata defaults weight",
			line: dumpLine("/a/[x]", "/r/RelatedTo", "/c/en/sea_turtle", "/c/en/ocean", ""),
			want: Row{
				Assertion: types.Assertion{
					URI:      "/a/[x]",
					Relation: "/r/RelatedTo",
					Start:    "/c/en/sea_turtle",
					End:      "/c/en/ocean",
					Weight:   1.0,
				},
				Relation: types.Relation{URI: "/r/RelatedTo", Label: "RelatedTo", Symmetric: true},
				StartConcept: types.Concept{
					URI: "/c/en/sea_turtle", Language: "en", Label: "sea turtle",
				},
				EndConcept: types.Concept{
					URI: "/c/en/ocean", Language: "en", Label: "ocean",
				},
			},
		},
		{
			name: "sense segment carried on the concept",
			line: dumpLine("/a/[y]", "/r/IsA", "/c/en/dog/n", "/c/en/animal", `{"weight": 1.0}`),
			want: Row{
				Assertion: types.Assertion{
					URI: "/a/[y]", Relation: "/r/IsA",
					Start: "/c/en/dog/n", End: "/c/en/animal", Weight: 1.0,
				},
				Relation: types.Relation{URI: "/r/IsA", Label: "IsA"},
				StartConcept: types.Concept{
					URI: "/c/en/dog/n", Language: "en", Label: "dog", Sense: "n",
				},
				EndConcept: types.Concept{
					URI: "/c/en/animal", Language: "en", Label: "animal",
				},
			},
		},
		{
			name:    "too few fields",
			line:    "/a/[x]\t/r/IsA\t/c/en/dog",
			wantErr: "expected 5 tab-separated fields",
		},
		{
			name:    "wrong assertion prefix",
			line:    dumpLine("/c/en/dog", "/r/IsA", "/c/en/dog", "/c/en/animal", "{}"),
			wantErr: "does not start with /a/",
		},
		{
			name:    "bad relation URI",
			line:    dumpLine("/a/[x]", "IsA", "/c/en/dog", "/c/en/animal", "{}"),
			wantErr: "relation URI",
		},
		{
			name:    "bad start URI",
			line:    dumpLine("/a/[x]", "/r/IsA", "/x/en/dog", "/c/en/animal", "{}"),
			wantErr: "start:",
		},
		{
			name:    "bad end URI",
			line:    dumpLine("/a/[x]", "/r/IsA", "/c/en/dog", "/c/en", "{}"),
			wantErr: "end:",
		},
		{
			name:    "unparseable metadata",
			line:    dumpLine("/a/[x]", "/r/IsA", "/c/en/dog", "/c/en/animal", "{not json"),
			wantErr: "decoding metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRow(tt.line)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseRow() error = nil, want containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ParseRow() error = %q, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRow() error = %v", err)
			}
			assertRowEqual(t, got, tt.want)
		})
	}
}

func assertRowEqual(t *testing.T, got, want Row) {
	t.Helper()
	if got.Assertion.URI != want.Assertion.URI ||
		got.Assertion.Relation != want.Assertion.Relation ||
		got.Assertion.Start != want.Assertion.Start ||
		got.Assertion.End != want.Assertion.End ||
		got.Assertion.Weight != want.Assertion.Weight ||
		got.Assertion.Dataset != want.Assertion.Dataset ||
		got.Assertion.License != want.Assertion.License ||
		got.Assertion.SurfaceText != want.Assertion.SurfaceText {
		t.Errorf("assertion = %+v, want %+v", got.Assertion, want.Assertion)
	}
	if len(got.Assertion.Sources) != len(want.Assertion.Sources) {
		t.Errorf("sources = %+v, want %+v", got.Assertion.Sources, want.Assertion.Sources)
	} else {
		for i := range want.Assertion.Sources {
			if got.Assertion.Sources[i] != want.Assertion.Sources[i] {
				t.Errorf("source[%d] = %+v, want %+v", i, got.Assertion.Sources[i], want.Assertion.Sources[i])
			}
		}
	}
	if got.Relation != want.Relation {
		t.Errorf("relation = %+v, want %+v", got.Relation, want.Relation)
	}
	if got.StartConcept != want.StartConcept {
		t.Errorf("start concept = %+v, want %+v", got.StartConcept, want.StartConcept)
	}
	if got.EndConcept != want.EndConcept {
		t.Errorf("end concept = %+v, want %+v", got.EndConcept, want.EndConcept)
	}
}

func TestFilterKeep(t *testing.T) {
	row := func(lang1, lang2 string, weight float64) Row {
		return Row{
			Assertion:    types.Assertion{Weight: weight},
			StartConcept: types.Concept{Language: lang1},
			EndConcept:   types.Concept{Language: lang2},
		}
	}

	tests := []struct {
		name      string
		languages []string
		minWeight float64
		row       Row
		want      bool
	}{
		{name: "no filter keeps everything", row: row("en", "fr", 0.1), want: true},
		{name: "weight below floor", minWeight: 1.0, row: row("en", "en", 0.5), want: false},
		{name: "weight at floor", minWeight: 1.0, row: row("en", "en", 1.0), want: true},
		{name: "both endpoints in list", languages: []string{"en", "fr"}, row: row("en", "fr", 1), want: true},
		{name: "start endpoint outside list", languages: []string{"en"}, row: row("ja", "en", 1), want: false},
		{name: "end endpoint outside list", languages: []string{"en"}, row: row("en", "ja", 1), want: false},
		{name: "list entries normalized", languages: []string{" EN "}, row: row("en", "en", 1), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.languages, tt.minWeight)
			if got := f.Keep(tt.row); got != tt.want {
				t.Errorf("Keep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRows(t *testing.T) {
	input := strings.Join([]string{
		validLine,
		"",
		"garbage line with no tabs",
		dumpLine("/a/[z]", "/r/PartOf", "/c/en/wheel", "/c/en/car", `{"weight": 1.5}`),
		dumpLine("/a/[w]", "/r/IsA", "/c/ja/inu", "/c/ja/doubutsu", `{"weight": 1.0}`),
	}, "\n")

	l := New(types.LoadConfig{Languages: []string{"en"}}, nil)

	var got []string
	stats, err := l.Rows(context.Background(), strings.NewReader(input), func(r Row) error {
		got = append(got, r.Assertion.URI)
		return nil
	})
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}

	want := Stats{Lines: 4, Kept: 2, Filtered: 1, Malformed: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(got) != 2 || got[0] != "/a/[/r/IsA/,/c/en/dog/,/c/en/animal/]" || got[1] != "/a/[z]" {
		t.Errorf("kept rows = %v", got)
	}
}

func TestRowsConsumerError(t *testing.T) {
	errBoom := errors.New("boom")
	l := New(types.LoadConfig{}, nil)

	_, err := l.Rows(context.Background(), strings.NewReader(validLine), func(Row) error {
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("Rows() error = %v, want %v", err, errBoom)
	}
}

func TestRowsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := New(types.LoadConfig{}, nil)
	_, err := l.Rows(ctx, strings.NewReader(validLine), func(Row) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Rows() error = %v, want context.Canceled", err)
	}
}

func TestRowsMostlyMalformedAborts(t *testing.T) {
	var lines []string
	for i := 0; i < 150; i++ {
		lines = append(lines, fmt.Sprintf("malformed line %d", i))
	}

	l := New(types.LoadConfig{}, nil)
	stats, err := l.Rows(context.Background(), strings.NewReader(strings.Join(lines, "\n")), func(Row) error {
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "does not look like an assertion dump") {
		t.Fatalf("Rows() error = %v, want format error", err)
	}
	if stats.Lines != malformedAbortAfter {
		t.Errorf("aborted after %d lines, want %d", stats.Lines, malformedAbortAfter)
	}
}

func TestParallelRowsMatchesSequential(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, dumpLine(
			fmt.Sprintf("/a/[n%d]", i),
			"/r/RelatedTo",
			fmt.Sprintf("/c/en/term_%d", i),
			"/c/en/anchor",
			fmt.Sprintf(`{"weight": %d.5}`, i%3),
		))
	}
	lines = append(lines, "not a dump row", "also not a dump row")
	input := strings.Join(lines, "\n")

	cfg := types.LoadConfig{MinWeight: 1.0, Workers: 4}

	seq := New(types.LoadConfig{MinWeight: 1.0}, nil)
	seqStats, err := seq.Rows(context.Background(), strings.NewReader(input), func(Row) error { return nil })
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}

	par := New(cfg, nil)
	got := make(map[string]bool)
	parStats, err := par.ParallelRows(context.Background(), strings.NewReader(input), func(r Row) error {
		got[r.Assertion.URI] = true
		return nil
	})
	if err != nil {
		t.Fatalf("ParallelRows() error = %v", err)
	}

	if parStats != seqStats {
		t.Errorf("parallel stats = %+v, want %+v", parStats, seqStats)
	}
	if len(got) != parStats.Kept {
		t.Errorf("distinct kept rows = %d, want %d", len(got), parStats.Kept)
	}
}

func TestParallelRowsConsumerError(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, dumpLine(
			fmt.Sprintf("/a/[n%d]", i), "/r/IsA",
			"/c/en/dog", "/c/en/animal", `{"weight": 1.0}`,
		))
	}
	errBoom := errors.New("boom")

	l := New(types.LoadConfig{Workers: 4}, nil)
	_, err := l.ParallelRows(context.Background(), strings.NewReader(strings.Join(lines, "\n")), func(Row) error {
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("ParallelRows() error = %v, want %v", err, errBoom)
	}
}

func TestFileReadsGzip(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "dump.csv")
	if err := os.WriteFile(plain, []byte(validLine+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	gzPath := filepath.Join(dir, "dump.csv.gz")
	f, err := os.Create(gzPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(validLine + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	l := New(types.LoadConfig{Workers: 1}, nil)
	for _, path := range []string{plain, gzPath} {
		var kept int
		stats, err := l.File(context.Background(), path, func(Row) error {
			kept++
			return nil
		})
		if err != nil {
			t.Fatalf("File(%s) error = %v", path, err)
		}
		if kept != 1 || stats.Kept != 1 {
			t.Errorf("File(%s) kept %d rows, stats %+v", path, kept, stats)
		}
	}
}

func TestFileMissing(t *testing.T) {
	l := New(types.LoadConfig{}, nil)
	_, err := l.File(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), func(Row) error {
		return nil
	})
	if err == nil {
		t.Fatal("File() error = nil for missing file")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.LoadConfig
		wantErr string
	}{
		{name: "valid", cfg: types.LoadConfig{Identifier: "conceptnet", Version: "5.7.0"}},
		{name: "underscore start", cfg: types.LoadConfig{Identifier: "_cn"}},
		{name: "digits after first", cfg: types.LoadConfig{Identifier: "cn57"}},
		{name: "missing identifier", cfg: types.LoadConfig{}, wantErr: "identifier is required"},
		{name: "leading digit", cfg: types.LoadConfig{Identifier: "5cn"}, wantErr: "must start with"},
		{name: "dash", cfg: types.LoadConfig{Identifier: "concept-net"}, wantErr: "must start with"},
		{name: "space", cfg: types.LoadConfig{Identifier: "concept net"}, wantErr: "must start with"},
		{name: "slash in version", cfg: types.LoadConfig{Identifier: "cn", Version: "1/2"}, wantErr: "path separators"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateConfig() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestKBName(t *testing.T) {
	got := KBName(types.LoadConfig{Identifier: "conceptnet", Version: "5.7.0"})
	if got != "conceptnet/conceptnet-v5.7.0" {
		t.Errorf("KBName() = %q", got)
	}

	got = KBName(types.LoadConfig{Identifier: "cn"})
	if got != "cn/cn-v0.0.1" {
		t.Errorf("KBName() with default version = %q", got)
	}
}
