// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package triplet maintains sorted key-value indexes beside a knowledge
// base: a TripletStore for edge traversal and a NodeIndex for label
// lookups. Both are LevelDB databases whose key order makes prefix scans
// answer "neighbors of X" and "labels starting with Y" without touching
// the relational store.
package triplet

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Triple is one directed edge in index form: numeric node and relation IDs
// assigned by the relational store, plus the edge weight.
type Triple struct {
	Start  int64
	Rel    int64
	End    int64
	Weight float64
}

// Key layout. Forward keys order by (start, rel, end), reverse keys by
// (end, rel, start); IDs are big-endian so byte order equals numeric order.
const (
	prefixForward = 'f'
	prefixReverse = 'r'
)

// frozenKey marks an index as complete. Builds are skipped while it is set.
var frozenKey = []byte("!frozen")

// Store is a LevelDB-backed triple index supporting forward and reverse
// prefix scans over (start, rel, end) edge triples.
type Store struct {
	db   *leveldb.DB
	path string
}

// Open opens or creates the triple index at path (a directory).
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening triple index %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenReadOnly opens an existing triple index for reads. It fails when the
// index has not been built.
func OpenReadOnly(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
	if err != nil {
		return nil, fmt.Errorf("opening triple index %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the index directory.
func (s *Store) Path() string {
	return s.path
}

// Add writes a batch of triples under both key orders.
func (s *Store) Add(triples []Triple) error {
	batch := new(leveldb.Batch)
	for _, t := range triples {
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, math.Float64bits(t.Weight))
		batch.Put(tripleKey(prefixForward, t.Start, t.Rel, t.End), val)
		batch.Put(tripleKey(prefixReverse, t.End, t.Rel, t.Start), val)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("writing triple batch: %w", err)
	}
	return nil
}

// Forward returns triples whose start node is start. A nonzero rel narrows
// the scan to that relation.
func (s *Store) Forward(start, rel int64) ([]Triple, error) {
	return s.scan(prefixForward, start, rel)
}

// Reverse returns triples whose end node is end, ordered the same way.
// A nonzero rel narrows the scan to that relation.
func (s *Store) Reverse(end, rel int64) ([]Triple, error) {
	return s.scan(prefixReverse, end, rel)
}

func (s *Store) scan(dir byte, node, rel int64) ([]Triple, error) {
	prefix := make([]byte, 0, 17)
	prefix = append(prefix, dir)
	prefix = appendID(prefix, node)
	if rel != 0 {
		prefix = appendID(prefix, rel)
	}

	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var triples []Triple
	for iter.Next() {
		t, err := decodeTriple(dir, iter.Key(), iter.Value())
		if err != nil {
			return nil, err
		}
		triples = append(triples, t)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scanning triple index: %w", err)
	}
	return triples, nil
}

// Frozen reports whether the index has been marked complete.
func (s *Store) Frozen() (bool, error) {
	ok, err := s.db.Has(frozenKey, nil)
	if err != nil {
		return false, fmt.Errorf("reading frozen marker: %w", err)
	}
	return ok, nil
}

// SetFrozen sets or clears the completion marker.
func (s *Store) SetFrozen(frozen bool) error {
	var err error
	if frozen {
		err = s.db.Put(frozenKey, []byte{1}, nil)
	} else {
		err = s.db.Delete(frozenKey, nil)
	}
	if err != nil {
		return fmt.Errorf("updating frozen marker: %w", err)
	}
	return nil
}

func tripleKey(dir byte, a, b, c int64) []byte {
	key := make([]byte, 0, 25)
	key = append(key, dir)
	key = appendID(key, a)
	key = appendID(key, b)
	key = appendID(key, c)
	return key
}

func appendID(b []byte, id int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return append(b, buf[:]...)
}

func decodeTriple(dir byte, key, val []byte) (Triple, error) {
	if len(key) != 25 {
		return Triple{}, fmt.Errorf("malformed triple key of length %d", len(key))
	}
	a := int64(binary.BigEndian.Uint64(key[1:9]))
	rel := int64(binary.BigEndian.Uint64(key[9:17]))
	b := int64(binary.BigEndian.Uint64(key[17:25]))

	t := Triple{Rel: rel}
	if dir == prefixForward {
		t.Start, t.End = a, b
	} else {
		t.End, t.Start = a, b
	}
	if len(val) == 8 {
		t.Weight = math.Float64frombits(binary.BigEndian.Uint64(val))
	}
	return t, nil
}
