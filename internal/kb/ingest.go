// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/pdiddy/concept-base/internal/loader"
	"github.com/pdiddy/concept-base/pkg/types"
)

// LoadSummary holds counts from a bulk load run.
type LoadSummary struct {
	Files      int
	Assertions int
	Nodes      int
	Relations  int
	Deduped    int
	Filtered   int
	Malformed  int
}

// Total returns the number of dump rows processed.
func (s LoadSummary) Total() int {
	return s.Assertions + s.Deduped + s.Filtered + s.Malformed
}

// LoadAssertions bulk-loads assertion dumps into the knowledge base.
// Nodes and relations are created on first sight and cached by URI;
// assertions deduplicate on their edge URI. Rows are committed in batches,
// and a failed commit aborts the load. Per-file status lines go to w.
func (s *Store) LoadAssertions(ctx context.Context, ld *loader.Loader, cfg types.LoadConfig, paths []string, w io.Writer) (LoadSummary, error) {
	var summary LoadSummary

	ing, err := s.newIngester(ctx)
	if err != nil {
		return summary, err
	}

	for _, path := range paths {
		select {
		case <-ctx.Done():
			ing.rollback()
			return summary, ctx.Err()
		default:
		}

		fmt.Fprintf(w, "loading %s\n", path)
		stats, err := ld.File(ctx, path, ing.add)
		if err != nil {
			ing.rollback()
			return summary, fmt.Errorf("loading %s: %w", path, err)
		}

		summary.Files++
		summary.Filtered += stats.Filtered
		summary.Malformed += stats.Malformed
		fmt.Fprintf(w, "  %d rows: %d kept, %d filtered, %d malformed\n",
			stats.Lines, stats.Kept, stats.Filtered, stats.Malformed)
	}

	if err := ing.finish(); err != nil {
		return summary, err
	}
	summary.Assertions = ing.inserted
	summary.Nodes = ing.nodesCreated
	summary.Relations = ing.relsCreated
	summary.Deduped = ing.deduped

	version := cfg.Version
	if version == "" {
		version = loader.DefaultVersion
	}
	meta := map[string]string{
		MetaIdentifier: cfg.Identifier,
		MetaVersion:    version,
		MetaLoadedAt:   timestamp(time.Now()),
	}
	if cfg.Namespace != "" {
		meta[MetaNamespace] = cfg.Namespace
	}
	for key, value := range meta {
		if err := s.SetMeta(ctx, key, value); err != nil {
			return summary, err
		}
	}

	s.logger.Info("load complete",
		zap.String("kb", s.name),
		zap.Int("assertions", summary.Assertions),
		zap.Int("nodes", summary.Nodes),
		zap.Int("deduped", summary.Deduped))

	fmt.Fprintf(w, "\nloaded: %d assertions, %d nodes, %d relations (%d duplicate, %d filtered, %d malformed)\n",
		summary.Assertions, summary.Nodes, summary.Relations,
		summary.Deduped, summary.Filtered, summary.Malformed)

	return summary, nil
}

// ingester carries the transaction, prepared statements, and URI → ID
// caches across one load run. Statements are re-prepared after every
// batch commit because they belong to the transaction.
type ingester struct {
	s   *Store
	ctx context.Context

	tx         *sql.Tx
	insertNode *sql.Stmt
	insertRel  *sql.Stmt
	insertEdge *sql.Stmt

	nodeIDs map[string]int64
	relIDs  map[string]int64

	pending      int
	inserted     int
	deduped      int
	nodesCreated int
	relsCreated  int
}

func (s *Store) newIngester(ctx context.Context) (*ingester, error) {
	ing := &ingester{
		s:       s,
		ctx:     ctx,
		nodeIDs: make(map[string]int64),
		relIDs:  make(map[string]int64),
	}
	if err := ing.begin(); err != nil {
		return nil, err
	}
	return ing, nil
}

func (ing *ingester) begin() error {
	tx, err := ing.s.db.BeginTx(ing.ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	ing.tx = tx

	if ing.insertNode, err = tx.PrepareContext(ing.ctx,
		`INSERT OR IGNORE INTO nodes (uri, language, label, sense) VALUES (?, ?, ?, ?)`); err != nil {
		return fmt.Errorf("preparing node insert: %w", err)
	}
	if ing.insertRel, err = tx.PrepareContext(ing.ctx,
		`INSERT OR IGNORE INTO relations (uri, label, symmetric) VALUES (?, ?, ?)`); err != nil {
		return fmt.Errorf("preparing relation insert: %w", err)
	}
	if ing.insertEdge, err = tx.PrepareContext(ing.ctx,
		`INSERT OR IGNORE INTO edges (uri, rel_id, start_id, end_id, weight, dataset, license, sources, surface_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return fmt.Errorf("preparing edge insert: %w", err)
	}
	return nil
}

// add ingests one parsed row. It is the loader callback, so it runs on a
// single goroutine even under parallel parsing.
func (ing *ingester) add(row loader.Row) error {
	startID, err := ing.nodeID(row.StartConcept)
	if err != nil {
		return err
	}
	endID, err := ing.nodeID(row.EndConcept)
	if err != nil {
		return err
	}
	relID, err := ing.relID(row.Relation)
	if err != nil {
		return err
	}

	var sourcesJSON string
	if len(row.Assertion.Sources) > 0 {
		data, err := json.Marshal(row.Assertion.Sources)
		if err != nil {
			return fmt.Errorf("encoding sources for %s: %w", row.Assertion.URI, err)
		}
		sourcesJSON = string(data)
	}

	res, err := ing.insertEdge.ExecContext(ing.ctx,
		row.Assertion.URI, relID, startID, endID, row.Assertion.Weight,
		nullString(row.Assertion.Dataset), nullString(row.Assertion.License),
		nullString(sourcesJSON), nullString(row.Assertion.SurfaceText),
	)
	if err != nil {
		return fmt.Errorf("inserting assertion %s: %w", row.Assertion.URI, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking assertion insert: %w", err)
	}
	if affected == 0 {
		ing.deduped++
	} else {
		ing.inserted++
	}

	ing.pending++
	if ing.pending >= ing.s.batchSize {
		if err := ing.commit(); err != nil {
			return err
		}
		return ing.begin()
	}
	return nil
}

// nodeID returns the node's ID, inserting it on first sight.
func (ing *ingester) nodeID(c types.Concept) (int64, error) {
	if id, ok := ing.nodeIDs[c.URI]; ok {
		return id, nil
	}

	res, err := ing.insertNode.ExecContext(ing.ctx,
		c.URI, c.Language, c.Label, nullString(c.Sense))
	if err != nil {
		return 0, fmt.Errorf("inserting node %s: %w", c.URI, err)
	}

	var id int64
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking node insert: %w", err)
	}
	if affected > 0 {
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("reading node id: %w", err)
		}
		ing.nodesCreated++
	} else {
		err = ing.tx.QueryRowContext(ing.ctx,
			`SELECT id FROM nodes WHERE uri = ?`, c.URI).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("resolving node %s: %w", c.URI, err)
		}
	}

	ing.nodeIDs[c.URI] = id
	return id, nil
}

// relID returns the relation's ID, inserting it on first sight.
func (ing *ingester) relID(r types.Relation) (int64, error) {
	if id, ok := ing.relIDs[r.URI]; ok {
		return id, nil
	}

	res, err := ing.insertRel.ExecContext(ing.ctx, r.URI, r.Label, r.Symmetric)
	if err != nil {
		return 0, fmt.Errorf("inserting relation %s: %w", r.URI, err)
	}

	var id int64
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking relation insert: %w", err)
	}
	if affected > 0 {
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("reading relation id: %w", err)
		}
		ing.relsCreated++
	} else {
		err = ing.tx.QueryRowContext(ing.ctx,
			`SELECT id FROM relations WHERE uri = ?`, r.URI).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("resolving relation %s: %w", r.URI, err)
		}
	}

	ing.relIDs[r.URI] = id
	return id, nil
}

func (ing *ingester) closeStmts() {
	for _, stmt := range []*sql.Stmt{ing.insertNode, ing.insertRel, ing.insertEdge} {
		if stmt != nil {
			stmt.Close()
		}
	}
	ing.insertNode, ing.insertRel, ing.insertEdge = nil, nil, nil
}

func (ing *ingester) commit() error {
	ing.closeStmts()
	if err := ing.tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	ing.pending = 0
	return nil
}

// finish commits whatever the last batch holds.
func (ing *ingester) finish() error {
	return ing.commit()
}

func (ing *ingester) rollback() {
	ing.closeStmts()
	ing.tx.Rollback()
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
