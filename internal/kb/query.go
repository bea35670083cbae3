// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pdiddy/concept-base/pkg/types"
)

// Direction selects which way assertions run relative to the queried
// concept.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// NeighborOptions holds parameters for neighbor queries.
type NeighborOptions struct {
	// Concept is a concept URI ("/c/en/dog") or a bare label ("dog").
	Concept string

	// Relation restricts results to one relation, by name or URI.
	Relation string

	// Language resolves bare labels and defaults to all languages.
	Language string

	// Direction defaults to both. Assertions under a symmetric relation
	// match regardless of direction.
	Direction Direction

	// MinWeight drops assertions lighter than the threshold.
	MinWeight float64

	// Limit caps result count. Zero uses the store default.
	Limit int
}

// IsEmpty reports whether the query names no concept.
func (o NeighborOptions) IsEmpty() bool {
	return strings.TrimSpace(o.Concept) == ""
}

// Neighbor is one assertion adjacent to the queried concept, with the far
// endpoint resolved.
type Neighbor struct {
	Assertion types.Assertion `json:"assertion" yaml:"assertion"`
	Node      types.Concept   `json:"node" yaml:"node"`
	Direction Direction       `json:"direction" yaml:"direction"`
}

// Neighbors returns the assertions adjacent to a concept, ordered by
// weight descending. Outgoing means the concept is the assertion's start;
// symmetric relations match in either direction.
func (s *Store) Neighbors(ctx context.Context, opts NeighborOptions) ([]Neighbor, error) {
	if opts.IsEmpty() {
		return nil, fmt.Errorf("neighbor query requires a concept URI or label")
	}

	dir := opts.Direction
	if dir == "" {
		dir = DirectionBoth
	}
	switch dir {
	case DirectionOut, DirectionIn, DirectionBoth:
	default:
		return nil, fmt.Errorf("direction %q must be out, in, or both", opts.Direction)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.maxResults
	}

	ids, err := s.resolveConceptIDs(ctx, opts.Concept, opts.Language)
	if err != nil {
		return nil, err
	}

	var relID int64
	if opts.Relation != "" {
		if relID, err = s.resolveRelationID(ctx, opts.Relation); err != nil {
			return nil, err
		}
	}

	var (
		qb   strings.Builder
		args []any
	)

	// Forward side: the concept is the assertion's start. Gated to
	// symmetric relations when only incoming assertions were asked for.
	writeNeighborSelect(&qb, &args, neighborSide{
		ids:           ids,
		forward:       true,
		relID:         relID,
		minWeight:     opts.MinWeight,
		symmetricOnly: dir == DirectionIn,
	})
	qb.WriteString(` UNION ALL `)
	writeNeighborSelect(&qb, &args, neighborSide{
		ids:           ids,
		forward:       false,
		relID:         relID,
		minWeight:     opts.MinWeight,
		symmetricOnly: dir == DirectionOut,
	})
	qb.WriteString(` ORDER BY weight DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors: %w", err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var (
			n         Neighbor
			dataset   sql.NullString
			license   sql.NullString
			sources   sql.NullString
			surface   sql.NullString
			direction string
		)
		if err := rows.Scan(
			&n.Assertion.ID, &n.Assertion.URI, &n.Assertion.Relation,
			&n.Assertion.Start, &n.Assertion.End, &n.Assertion.Weight,
			&dataset, &license, &sources, &surface,
			&n.Node.ID, &n.Node.URI, &n.Node.Language, &n.Node.Label, &n.Node.Sense,
			&direction,
		); err != nil {
			return nil, fmt.Errorf("scanning neighbor: %w", err)
		}
		applyNullable(&n.Assertion, dataset, license, sources, surface)
		n.Direction = Direction(direction)
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// neighborSide describes one half of the neighbor UNION.
type neighborSide struct {
	ids           []int64
	forward       bool
	relID         int64
	minWeight     float64
	symmetricOnly bool
}

func writeNeighborSelect(qb *strings.Builder, args *[]any, side neighborSide) {
	far, anchor, direction := "ne", "e.start_id", "out"
	if !side.forward {
		far, anchor, direction = "ns", "e.end_id", "in"
	}

	fmt.Fprintf(qb,
		`SELECT e.id, e.uri, r.uri, ns.uri, ne.uri, e.weight AS weight,
			e.dataset, e.license, e.sources, e.surface_text,
			%[1]s.id, %[1]s.uri, %[1]s.language, %[1]s.label, COALESCE(%[1]s.sense, ''),
			'%[2]s' AS direction
		FROM edges e
		JOIN relations r ON r.id = e.rel_id
		JOIN nodes ns ON ns.id = e.start_id
		JOIN nodes ne ON ne.id = e.end_id
		WHERE %[3]s IN (%[4]s)`,
		far, direction, anchor, placeholders(len(side.ids)))
	for _, id := range side.ids {
		*args = append(*args, id)
	}

	if side.relID != 0 {
		qb.WriteString(` AND e.rel_id = ?`)
		*args = append(*args, side.relID)
	}
	if side.minWeight > 0 {
		qb.WriteString(` AND e.weight >= ?`)
		*args = append(*args, side.minWeight)
	}
	if side.symmetricOnly {
		qb.WriteString(` AND r.symmetric = 1`)
	}
}

// LookupOptions holds parameters for concept search.
type LookupOptions struct {
	// Query is a concept URI, or free text matched against labels.
	Query string

	// Language restricts matches to one language.
	Language string

	// Prefix matches labels starting with the query instead of equal to it.
	Prefix bool

	// Search runs a full-text match over labels instead of exact lookup.
	Search bool

	// Limit caps result count. Zero uses the store default.
	Limit int
}

// IsEmpty reports whether there is nothing to look up.
func (o LookupOptions) IsEmpty() bool {
	return strings.TrimSpace(o.Query) == ""
}

// Lookup finds concepts by URI, exact label, label prefix, or full-text
// match. Prefix lookups are served from the label index when one has been
// built and no language filter applies; otherwise they fall back to SQL.
func (s *Store) Lookup(ctx context.Context, opts LookupOptions) ([]types.Concept, error) {
	if opts.IsEmpty() {
		return nil, fmt.Errorf("lookup requires a concept URI or query text")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.maxResults
	}
	query := strings.TrimSpace(opts.Query)

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT n.id, n.uri, n.language, n.label, COALESCE(n.sense, '')
		FROM nodes n`)

	switch {
	case strings.HasPrefix(query, "/c/"):
		// A URI names the concept and all of its senses.
		qb.WriteString(` WHERE (n.uri = ? OR (n.uri >= ? AND n.uri < ?))`)
		args = append(args, query, query+"/", query+"0")

	case opts.Search:
		qb.Reset()
		qb.WriteString(`SELECT n.id, n.uri, n.language, n.label, COALESCE(n.sense, '')
			FROM nodes_fts
			JOIN nodes n ON n.id = nodes_fts.rowid
			WHERE nodes_fts MATCH ?`)
		args = append(args, query)

	case opts.Prefix:
		label := labelForm(query)
		if opts.Language == "" {
			if concepts, ok, err := s.lookupIndexedPrefix(ctx, label, limit); err != nil {
				return nil, err
			} else if ok {
				return concepts, nil
			}
		}
		qb.WriteString(` WHERE n.label LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(label)+"%")

	default:
		qb.WriteString(` WHERE n.label = ?`)
		args = append(args, labelForm(query))
	}

	if opts.Language != "" {
		qb.WriteString(` AND n.language = ?`)
		args = append(args, opts.Language)
	}
	if opts.Search {
		qb.WriteString(` ORDER BY nodes_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY n.label, n.language, n.id`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("looking up concepts: %w", err)
	}
	defer rows.Close()
	return scanConcepts(rows)
}

// AssertionsBetween returns every assertion connecting two concepts in
// either direction, ordered by weight descending.
func (s *Store) AssertionsBetween(ctx context.Context, a, b, language string) ([]types.Assertion, error) {
	aIDs, err := s.resolveConceptIDs(ctx, a, language)
	if err != nil {
		return nil, err
	}
	bIDs, err := s.resolveConceptIDs(ctx, b, language)
	if err != nil {
		return nil, err
	}

	var args []any
	appendIDs := func(ids []int64) {
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query := fmt.Sprintf(
		`SELECT e.id, e.uri, r.uri, ns.uri, ne.uri, e.weight,
			e.dataset, e.license, e.sources, e.surface_text
		FROM edges e
		JOIN relations r ON r.id = e.rel_id
		JOIN nodes ns ON ns.id = e.start_id
		JOIN nodes ne ON ne.id = e.end_id
		WHERE (e.start_id IN (%[1]s) AND e.end_id IN (%[2]s))
		   OR (e.start_id IN (%[2]s) AND e.end_id IN (%[1]s))
		ORDER BY e.weight DESC`,
		placeholders(len(aIDs)), placeholders(len(bIDs)))
	appendIDs(aIDs)
	appendIDs(bIDs)
	appendIDs(bIDs)
	appendIDs(aIDs)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying assertions between concepts: %w", err)
	}
	defer rows.Close()

	var assertions []types.Assertion
	for rows.Next() {
		var (
			a       types.Assertion
			dataset sql.NullString
			license sql.NullString
			sources sql.NullString
			surface sql.NullString
		)
		if err := rows.Scan(
			&a.ID, &a.URI, &a.Relation, &a.Start, &a.End, &a.Weight,
			&dataset, &license, &sources, &surface,
		); err != nil {
			return nil, fmt.Errorf("scanning assertion: %w", err)
		}
		applyNullable(&a, dataset, license, sources, surface)
		assertions = append(assertions, a)
	}
	return assertions, rows.Err()
}

// Degree returns how many assertions point out of and into a concept. It
// reads the triple index when one is frozen, falling back to SQL counts.
func (s *Store) Degree(ctx context.Context, concept, language string) (out, in int, err error) {
	ids, err := s.resolveConceptIDs(ctx, concept, language)
	if err != nil {
		return 0, 0, err
	}

	if out, in, ok := s.degreeFromIndex(ids); ok {
		return out, in, nil
	}

	query := fmt.Sprintf(
		`SELECT
			(SELECT count(*) FROM edges WHERE start_id IN (%[1]s)),
			(SELECT count(*) FROM edges WHERE end_id IN (%[1]s))`,
		placeholders(len(ids)))
	var args []any
	for i := 0; i < 2; i++ {
		for _, id := range ids {
			args = append(args, id)
		}
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&out, &in); err != nil {
		return 0, 0, fmt.Errorf("counting assertion degree: %w", err)
	}
	return out, in, nil
}

// resolveConceptIDs maps a concept reference to node IDs. URIs match
// exactly plus their sense extensions; bare labels match after
// normalization, optionally restricted to a language. An unknown concept
// is an error naming it.
func (s *Store) resolveConceptIDs(ctx context.Context, concept, language string) ([]int64, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return nil, fmt.Errorf("concept is required")
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT id FROM nodes`)
	if strings.HasPrefix(concept, "/c/") {
		qb.WriteString(` WHERE (uri = ? OR (uri >= ? AND uri < ?))`)
		args = append(args, concept, concept+"/", concept+"0")
	} else {
		qb.WriteString(` WHERE label = ?`)
		args = append(args, labelForm(concept))
	}
	if language != "" {
		qb.WriteString(` AND language = ?`)
		args = append(args, language)
	}
	qb.WriteString(` ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("resolving concept: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning concept id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("concept %q not found", concept)
	}
	return ids, nil
}

func (s *Store) resolveRelationID(ctx context.Context, relation string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM relations WHERE uri = ?`,
		types.RelationURIFor(relation),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("relation %q not found", relation)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving relation: %w", err)
	}
	return id, nil
}

func scanConcepts(rows *sql.Rows) ([]types.Concept, error) {
	var concepts []types.Concept
	for rows.Next() {
		var c types.Concept
		if err := rows.Scan(&c.ID, &c.URI, &c.Language, &c.Label, &c.Sense); err != nil {
			return nil, fmt.Errorf("scanning concept: %w", err)
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

func applyNullable(a *types.Assertion, dataset, license, sources, surface sql.NullString) {
	if dataset.Valid {
		a.Dataset = dataset.String
	}
	if license.Valid {
		a.License = license.String
	}
	if sources.Valid {
		json.Unmarshal([]byte(sources.String), &a.Sources)
	}
	if surface.Valid {
		a.SurfaceText = surface.String
	}
}

// labelForm normalizes free text to the stored label form.
func labelForm(text string) string {
	return types.NormalizeLabel(text)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
