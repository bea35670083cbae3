// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vocab derives a vocabulary database from a knowledge base: one
// row per (term, language) with its node count and frequency share. The
// database is built once beside the knowledge base and reused until
// removed.
package vocab

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/concept-base/internal/kb"
	"github.com/pdiddy/concept-base/pkg/types"
)

const buildBatch = 10000

// Entry is one vocabulary row.
type Entry struct {
	Term      string  `json:"term" yaml:"term"`
	Language  string  `json:"language" yaml:"language"`
	NodeCount int     `json:"node_count" yaml:"node_count"`
	Freq      float64 `json:"freq" yaml:"freq"`
}

// Build derives the vocabulary database from the store's nodes. It
// assembles the database under a temporary name and moves it into place
// atomically; an existing vocabulary is returned without rebuilding.
func Build(ctx context.Context, store *kb.Store, w io.Writer) (string, error) {
	path := store.VocabPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "vocabulary up to date\n")
		return path, nil
	}

	tmp := path + ".tmp"
	os.Remove(tmp)

	db, err := sql.Open("sqlite3", tmp)
	if err != nil {
		return "", fmt.Errorf("creating vocabulary database: %w", err)
	}
	defer func() {
		db.Close()
		os.Remove(tmp)
	}()

	statements := []string{
		`CREATE TABLE terms (
			term TEXT NOT NULL,
			language TEXT NOT NULL,
			node_count INTEGER NOT NULL DEFAULT 0,
			freq REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (term, language)
		)`,
		`CREATE TABLE vocab_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("creating vocabulary schema: %w", err)
		}
	}

	total, terms, err := countTerms(ctx, db, store)
	if err != nil {
		return "", err
	}

	// Frequencies are shares of the node total, fixed up in one pass.
	if total > 0 {
		if _, err := db.ExecContext(ctx,
			`UPDATE terms SET freq = CAST(node_count AS REAL) / ?`, total); err != nil {
			return "", fmt.Errorf("computing frequencies: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO vocab_meta (key, value) VALUES ('total_nodes', ?), ('kb', ?)`,
		fmt.Sprint(total), store.Name()); err != nil {
		return "", fmt.Errorf("writing vocabulary meta: %w", err)
	}

	if err := db.Close(); err != nil {
		return "", fmt.Errorf("closing vocabulary database: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("moving vocabulary into place: %w", err)
	}

	fmt.Fprintf(w, "vocabulary built: %d terms from %d nodes\n", terms, total)
	return path, nil
}

func countTerms(ctx context.Context, db *sql.DB, store *kb.Store) (total, terms int, err error) {
	const insertTerm = `INSERT INTO terms (term, language, node_count) VALUES (?, ?, 1)
		 ON CONFLICT(term, language) DO UPDATE SET node_count = node_count + 1`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning vocabulary transaction: %w", err)
	}
	// tx is reassigned at every batch boundary; roll back whichever one is
	// open when an error unwinds.
	defer func() { tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertTerm)
	if err != nil {
		return 0, 0, fmt.Errorf("preparing term insert: %w", err)
	}

	pending := 0
	err = store.IterNodes(ctx, func(c types.Concept) error {
		if _, err := stmt.ExecContext(ctx, c.Label, c.Language); err != nil {
			return fmt.Errorf("counting term %q: %w", c.Label, err)
		}
		total++
		pending++
		if pending >= buildBatch {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("committing vocabulary batch: %w", err)
			}
			pending = 0
			if tx, err = db.BeginTx(ctx, nil); err != nil {
				return fmt.Errorf("beginning vocabulary transaction: %w", err)
			}
			if stmt, err = tx.PrepareContext(ctx, insertTerm); err != nil {
				return fmt.Errorf("preparing term insert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing vocabulary: %w", err)
	}

	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM terms`).Scan(&terms); err != nil {
		return 0, 0, fmt.Errorf("counting terms: %w", err)
	}
	return total, terms, nil
}

// DB reads a built vocabulary database.
type DB struct {
	db *sql.DB
}

// Open opens an existing vocabulary database.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("vocabulary database %s not found", path)
		}
		return nil, fmt.Errorf("checking vocabulary database: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Lookup returns the vocabulary entry for a term. The term is normalized
// the way node labels are.
func (d *DB) Lookup(ctx context.Context, term, language string) (Entry, error) {
	e := Entry{Term: types.NormalizeLabel(term), Language: language}
	err := d.db.QueryRowContext(ctx,
		`SELECT node_count, freq FROM terms WHERE term = ? AND language = ?`,
		e.Term, language,
	).Scan(&e.NodeCount, &e.Freq)
	if err == sql.ErrNoRows {
		return e, fmt.Errorf("term %q not in vocabulary", e.Term)
	}
	if err != nil {
		return e, fmt.Errorf("looking up term: %w", err)
	}
	return e, nil
}

// Top returns the n most frequent terms, optionally within one language.
func (d *DB) Top(ctx context.Context, n int, language string) ([]Entry, error) {
	query := `SELECT term, language, node_count, freq FROM terms`
	var args []any
	if language != "" {
		query += ` WHERE language = ?`
		args = append(args, language)
	}
	query += ` ORDER BY node_count DESC, term LIMIT ?`
	args = append(args, n)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying top terms: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Term, &e.Language, &e.NodeCount, &e.Freq); err != nil {
			return nil, fmt.Errorf("scanning vocabulary entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TotalNodes returns the node total recorded at build time.
func (d *DB) TotalNodes(ctx context.Context) (int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT CAST(value AS INTEGER) FROM vocab_meta WHERE key = 'total_nodes'`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("reading vocabulary total: %w", err)
	}
	return total, nil
}
