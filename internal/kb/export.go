// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/knakk/rdf"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/concept-base/pkg/types"
)

// ExportOptions filter what gets exported.
type ExportOptions struct {
	// Relation restricts the export to one relation, by name or URI.
	Relation string

	// Language keeps assertions whose endpoints are both in the language.
	Language string

	// MinWeight drops assertions lighter than the threshold.
	MinWeight float64

	// Limit caps the number of exported assertions. Zero means all, up to
	// the export ceiling.
	Limit int
}

// ExportEntry holds one assertion with endpoint labels for export.
type ExportEntry struct {
	URI           string         `json:"uri" yaml:"uri"`
	Relation      string         `json:"relation" yaml:"relation"`
	Start         string         `json:"start" yaml:"start"`
	StartLabel    string         `json:"start_label" yaml:"start_label"`
	StartLanguage string         `json:"start_language" yaml:"start_language"`
	End           string         `json:"end" yaml:"end"`
	EndLabel      string         `json:"end_label" yaml:"end_label"`
	EndLanguage   string         `json:"end_language" yaml:"end_language"`
	Weight        float64        `json:"weight" yaml:"weight"`
	Dataset       string         `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	License       string         `json:"license,omitempty" yaml:"license,omitempty"`
	Sources       []types.Source `json:"sources,omitempty" yaml:"sources,omitempty"`
	SurfaceText   string         `json:"surface_text,omitempty" yaml:"surface_text,omitempty"`
}

const exportLimit = 1000000

// defaultNamespace anchors exported IRIs when the knowledge base records
// no namespace of its own.
const defaultNamespace = "http://conceptnet.io"

// DefaultExportPath returns the conventional export file beside the
// database for a format ("yaml", "json", "nt").
func (s *Store) DefaultExportPath(format string) string {
	return s.stem() + "-export." + format
}

// ExportYAML writes filtered assertions to path as YAML.
func (s *Store) ExportYAML(ctx context.Context, opts ExportOptions, path string) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes filtered assertions to path as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, opts ExportOptions, path string) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportNTriples streams filtered assertions to path as N-Triples. IRIs
// are anchored at the knowledge base's namespace from kb_meta, falling
// back to the ConceptNet namespace.
func (s *Store) ExportNTriples(ctx context.Context, opts ExportOptions, path string) error {
	namespace, err := s.MetaValue(ctx, MetaNamespace)
	if err != nil {
		return err
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	namespace = strings.TrimSuffix(namespace, "/")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	enc := rdf.NewTripleEncoder(f, rdf.NTriples)

	rows, err := s.exportRows(ctx, opts)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanExportEntry(rows)
		if err != nil {
			return err
		}

		subj, err := rdf.NewIRI(namespace + entry.Start)
		if err != nil {
			return fmt.Errorf("building subject IRI for %s: %w", entry.Start, err)
		}
		pred, err := rdf.NewIRI(namespace + entry.Relation)
		if err != nil {
			return fmt.Errorf("building predicate IRI for %s: %w", entry.Relation, err)
		}
		obj, err := rdf.NewIRI(namespace + entry.End)
		if err != nil {
			return fmt.Errorf("building object IRI for %s: %w", entry.End, err)
		}

		if err := enc.Encode(rdf.Triple{Subj: subj, Pred: pred, Obj: obj}); err != nil {
			return fmt.Errorf("encoding triple: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	return f.Close()
}

func (s *Store) exportEntries(ctx context.Context, opts ExportOptions) ([]ExportEntry, error) {
	rows, err := s.exportRows(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ExportEntry
	for rows.Next() {
		entry, err := scanExportEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) exportRows(ctx context.Context, opts ExportOptions) (*sql.Rows, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT e.uri, r.uri, ns.uri, ns.label, ns.language,
			ne.uri, ne.label, ne.language, e.weight,
			e.dataset, e.license, e.sources, e.surface_text
		FROM edges e
		JOIN relations r ON r.id = e.rel_id
		JOIN nodes ns ON ns.id = e.start_id
		JOIN nodes ne ON ne.id = e.end_id
		WHERE 1=1`)

	if opts.Relation != "" {
		qb.WriteString(` AND r.uri = ?`)
		args = append(args, types.RelationURIFor(opts.Relation))
	}
	if opts.Language != "" {
		qb.WriteString(` AND ns.language = ? AND ne.language = ?`)
		args = append(args, opts.Language, opts.Language)
	}
	if opts.MinWeight > 0 {
		qb.WriteString(` AND e.weight >= ?`)
		args = append(args, opts.MinWeight)
	}

	limit := opts.Limit
	if limit <= 0 || limit > exportLimit {
		limit = exportLimit
	}
	qb.WriteString(` ORDER BY e.id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	return rows, nil
}

func scanExportEntry(rows *sql.Rows) (ExportEntry, error) {
	var (
		entry   ExportEntry
		dataset sql.NullString
		license sql.NullString
		sources sql.NullString
		surface sql.NullString
	)
	if err := rows.Scan(
		&entry.URI, &entry.Relation,
		&entry.Start, &entry.StartLabel, &entry.StartLanguage,
		&entry.End, &entry.EndLabel, &entry.EndLanguage, &entry.Weight,
		&dataset, &license, &sources, &surface,
	); err != nil {
		return entry, fmt.Errorf("scanning export row: %w", err)
	}
	if dataset.Valid {
		entry.Dataset = dataset.String
	}
	if license.Valid {
		entry.License = license.String
	}
	if sources.Valid {
		json.Unmarshal([]byte(sources.String), &entry.Sources)
	}
	if surface.Valid {
		entry.SurfaceText = surface.String
	}
	return entry, nil
}
