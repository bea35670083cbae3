// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package kb persists ConceptNet-style knowledge bases in SQLite and
// answers graph queries over them. Each knowledge base is one database
// file under the cache directory, with optional sorted key-value indexes
// built beside it for traversal and prefix lookups.
package kb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/concept-base/pkg/types"
)

const (
	kbDir           = "kb"
	dbSuffix        = ".db"
	tripleSuffix    = "-index"
	nodeIndexSuffix = ".node.db"
	vocabSuffix     = "-vocab.db"
	lockSuffix      = ".lock"
)

// kb_meta keys written at load time.
const (
	MetaIdentifier = "identifier"
	MetaVersion    = "version"
	MetaNamespace  = "namespace"
	MetaLoadedAt   = "loaded_at"
)

// Store manages one knowledge base SQLite database.
type Store struct {
	db         *sql.DB
	name       string
	path       string
	maxResults int
	batchSize  int
	logger     *zap.Logger
}

// Path returns the database file for a named knowledge base under the
// cache directory. Names may contain a slash ("cn/cn-v5.7.0"), which
// becomes a subdirectory.
func Path(cacheDir, name string) string {
	return filepath.Join(cacheDir, kbDir, name+dbSuffix)
}

// Open opens an existing knowledge base. It fails when the database file
// does not exist; use Create to start a new one.
func Open(cfg types.StoreConfig, name string, logger *zap.Logger) (*Store, error) {
	path := Path(cfg.CacheDir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("knowledge base %s not found (no database at %s)", name, path)
		}
		return nil, fmt.Errorf("checking knowledge base: %w", err)
	}
	return open(cfg, name, path, logger)
}

// Create opens the knowledge base, creating the database file and schema
// when missing.
func Create(cfg types.StoreConfig, name string, logger *zap.Logger) (*Store, error) {
	path := Path(cfg.CacheDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating knowledge base directory: %w", err)
	}
	return open(cfg, name, path, logger)
}

func open(cfg types.StoreConfig, name, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	s := &Store{
		db:         db,
		name:       name,
		path:       path,
		maxResults: maxResults,
		batchSize:  batchSize,
		logger:     logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name returns the knowledge base name.
func (s *Store) Name() string {
	return s.name
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// stem is the database path without its .db suffix; sibling artifacts
// derive from it.
func (s *Store) stem() string {
	return strings.TrimSuffix(s.path, dbSuffix)
}

// TripleIndexPath returns the directory of the triple index built beside
// the database.
func (s *Store) TripleIndexPath() string {
	return s.stem() + tripleSuffix
}

// NodeIndexPath returns the directory of the label index built beside the
// database.
func (s *Store) NodeIndexPath() string {
	return s.path + nodeIndexSuffix
}

// VocabPath returns the vocabulary database built beside the database.
func (s *Store) VocabPath() string {
	return s.stem() + vocabSuffix
}

func (s *Store) lockPath() string {
	return s.stem() + lockSuffix
}

// Cleanup closes the store and removes the database together with every
// derived artifact. Missing files are not an error.
func (s *Store) Cleanup() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	paths := []string{
		s.path, s.path + "-wal", s.path + "-shm",
		s.NodeIndexPath(), s.TripleIndexPath(),
		s.VocabPath(), s.VocabPath() + ".tmp",
		s.lockPath(),
	}
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uri TEXT NOT NULL UNIQUE,
			language TEXT NOT NULL,
			label TEXT NOT NULL,
			sense TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_language_label ON nodes(language, label)`,
		`CREATE TABLE IF NOT EXISTS relations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uri TEXT NOT NULL UNIQUE,
			label TEXT NOT NULL,
			symmetric INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uri TEXT NOT NULL UNIQUE,
			rel_id INTEGER NOT NULL REFERENCES relations(id),
			start_id INTEGER NOT NULL REFERENCES nodes(id),
			end_id INTEGER NOT NULL REFERENCES nodes(id),
			weight REAL NOT NULL DEFAULT 1.0,
			dataset TEXT,
			license TEXT,
			sources TEXT,
			surface_text TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_start ON edges(start_id, rel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_end ON edges(end_id, rel_id)`,
		`CREATE TABLE IF NOT EXISTS kb_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='nodes_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE nodes_fts USING fts5(label, content=nodes, content_rowid=id)`,
			`CREATE TRIGGER nodes_ai AFTER INSERT ON nodes BEGIN
				INSERT INTO nodes_fts(rowid, label) VALUES (new.id, new.label);
			END`,
			`CREATE TRIGGER nodes_ad AFTER DELETE ON nodes BEGIN
				INSERT INTO nodes_fts(nodes_fts, rowid, label) VALUES('delete', old.id, old.label);
			END`,
			`CREATE TRIGGER nodes_au AFTER UPDATE ON nodes BEGIN
				INSERT INTO nodes_fts(nodes_fts, rowid, label) VALUES('delete', old.id, old.label);
				INSERT INTO nodes_fts(rowid, label) VALUES (new.id, new.label);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SetMeta stores one kb_meta entry, replacing any previous value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting meta %s: %w", key, err)
	}
	return nil
}

// MetaValue returns one kb_meta entry, or "" when unset.
func (s *Store) MetaValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kb_meta WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading meta %s: %w", key, err)
	}
	return value, nil
}

// NumNodes returns the node count.
func (s *Store) NumNodes(ctx context.Context) (int, error) {
	return s.count(ctx, "nodes")
}

// NumEdges returns the assertion count.
func (s *Store) NumEdges(ctx context.Context) (int, error) {
	return s.count(ctx, "edges")
}

// NumRelations returns the relation count.
func (s *Store) NumRelations(ctx context.Context) (int, error) {
	return s.count(ctx, "relations")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// IterNodes streams every node to fn in id order. fn returning an error
// stops the iteration.
func (s *Store) IterNodes(ctx context.Context, fn func(types.Concept) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, uri, language, label, COALESCE(sense, '') FROM nodes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("iterating nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c types.Concept
		if err := rows.Scan(&c.ID, &c.URI, &c.Language, &c.Label, &c.Sense); err != nil {
			return fmt.Errorf("scanning node: %w", err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Stats summarizes the knowledge base and its derived artifacts.
type Stats struct {
	Name        string            `json:"name" yaml:"name"`
	Path        string            `json:"path" yaml:"path"`
	Nodes       int               `json:"nodes" yaml:"nodes"`
	Edges       int               `json:"edges" yaml:"edges"`
	Relations   int               `json:"relations" yaml:"relations"`
	Languages   map[string]int    `json:"languages,omitempty" yaml:"languages,omitempty"`
	Meta        map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	TripleIndex bool              `json:"triple_index" yaml:"triple_index"`
	NodeIndex   bool              `json:"node_index" yaml:"node_index"`
	Vocab       bool              `json:"vocab" yaml:"vocab"`
}

// Stats collects counts, the per-language node breakdown, metadata, and
// the status of the derived indexes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Name: s.name, Path: s.path}

	var err error
	if st.Nodes, err = s.NumNodes(ctx); err != nil {
		return st, err
	}
	if st.Edges, err = s.NumEdges(ctx); err != nil {
		return st, err
	}
	if st.Relations, err = s.NumRelations(ctx); err != nil {
		return st, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT language, count(*) FROM nodes GROUP BY language`)
	if err != nil {
		return st, fmt.Errorf("counting languages: %w", err)
	}
	defer rows.Close()
	st.Languages = make(map[string]int)
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return st, fmt.Errorf("scanning language count: %w", err)
		}
		st.Languages[lang] = n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	metaRows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kb_meta ORDER BY key`)
	if err != nil {
		return st, fmt.Errorf("reading meta: %w", err)
	}
	defer metaRows.Close()
	st.Meta = make(map[string]string)
	for metaRows.Next() {
		var k, v string
		if err := metaRows.Scan(&k, &v); err != nil {
			return st, fmt.Errorf("scanning meta: %w", err)
		}
		st.Meta[k] = v
	}
	if err := metaRows.Err(); err != nil {
		return st, err
	}

	st.TripleIndex = s.tripleIndexReady()
	st.NodeIndex = s.nodeIndexReady()
	if _, err := os.Stat(s.VocabPath()); err == nil {
		st.Vocab = true
	}

	return st, nil
}

// timestamp renders load times the way kb_meta stores them.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
