// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triplet

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// NodeIndex maps node labels to node IDs. Labels are stored lowercased
// with a NUL separator before the ID, so an exact lookup and a label
// prefix scan are both single iterator ranges.
type NodeIndex struct {
	db   *leveldb.DB
	path string
}

// Posting is one label → node ID entry returned by a prefix scan.
type Posting struct {
	Label string
	ID    int64
}

const prefixLabel = 'l'

// OpenNodeIndex opens or creates the label index at path (a directory).
func OpenNodeIndex(path string) (*NodeIndex, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening node index %s: %w", path, err)
	}
	return &NodeIndex{db: db, path: path}, nil
}

// OpenNodeIndexReadOnly opens an existing label index for reads. It fails
// when the index has not been built.
func OpenNodeIndexReadOnly(path string) (*NodeIndex, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
	if err != nil {
		return nil, fmt.Errorf("opening node index %s: %w", path, err)
	}
	return &NodeIndex{db: db, path: path}, nil
}

// Close releases the underlying database.
func (n *NodeIndex) Close() error {
	return n.db.Close()
}

// Path returns the index directory.
func (n *NodeIndex) Path() string {
	return n.path
}

// Put records a batch of postings.
func (n *NodeIndex) Put(postings []Posting) error {
	batch := new(leveldb.Batch)
	for _, p := range postings {
		batch.Put(labelKey(p.Label, p.ID), nil)
	}
	if err := n.db.Write(batch, nil); err != nil {
		return fmt.Errorf("writing label batch: %w", err)
	}
	return nil
}

// IDs returns the node IDs recorded for an exact label.
func (n *NodeIndex) IDs(label string) ([]int64, error) {
	prefix := append(labelPrefix(label), 0x00)
	iter := n.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var ids []int64
	for iter.Next() {
		p, err := decodePosting(iter.Key())
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scanning node index: %w", err)
	}
	return ids, nil
}

// ScanPrefix returns postings whose label starts with prefix, in label
// order. A limit of zero or less means no limit.
func (n *NodeIndex) ScanPrefix(prefix string, limit int) ([]Posting, error) {
	iter := n.db.NewIterator(util.BytesPrefix(labelPrefix(prefix)), nil)
	defer iter.Release()

	var postings []Posting
	for iter.Next() {
		p, err := decodePosting(iter.Key())
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
		if limit > 0 && len(postings) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scanning node index: %w", err)
	}
	return postings, nil
}

// Frozen reports whether the index has been marked complete.
func (n *NodeIndex) Frozen() (bool, error) {
	ok, err := n.db.Has(frozenKey, nil)
	if err != nil {
		return false, fmt.Errorf("reading frozen marker: %w", err)
	}
	return ok, nil
}

// SetFrozen sets or clears the completion marker.
func (n *NodeIndex) SetFrozen(frozen bool) error {
	var err error
	if frozen {
		err = n.db.Put(frozenKey, []byte{1}, nil)
	} else {
		err = n.db.Delete(frozenKey, nil)
	}
	if err != nil {
		return fmt.Errorf("updating frozen marker: %w", err)
	}
	return nil
}

func labelPrefix(label string) []byte {
	key := make([]byte, 0, len(label)+1)
	key = append(key, prefixLabel)
	return append(key, label...)
}

func labelKey(label string, id int64) []byte {
	key := labelPrefix(label)
	key = append(key, 0x00)
	return appendID(key, id)
}

func decodePosting(key []byte) (Posting, error) {
	// The ID is always the trailing 8 bytes; the separator sits just
	// before it. Raw ID bytes may contain NUL, so never search for it.
	sep := len(key) - 9
	if sep < 1 || key[0] != prefixLabel || key[sep] != 0x00 {
		return Posting{}, fmt.Errorf("malformed label key of length %d", len(key))
	}
	return Posting{
		Label: string(key[1:sep]),
		ID:    int64(binary.BigEndian.Uint64(key[sep+1:])),
	}, nil
}
