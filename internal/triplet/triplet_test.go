// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triplet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreForwardAndReverse(t *testing.T) {
	s := openStore(t)

	triples := []Triple{
		{Start: 1, Rel: 10, End: 2, Weight: 1.0},
		{Start: 1, Rel: 10, End: 3, Weight: 2.5},
		{Start: 1, Rel: 20, End: 2, Weight: 0.5},
		{Start: 4, Rel: 10, End: 2, Weight: 1.0},
	}
	require.NoError(t, s.Add(triples))

	// Forward scans order by relation then end node.
	got, err := s.Forward(1, 0)
	require.NoError(t, err)
	assert.Equal(t, []Triple{
		{Start: 1, Rel: 10, End: 2, Weight: 1.0},
		{Start: 1, Rel: 10, End: 3, Weight: 2.5},
		{Start: 1, Rel: 20, End: 2, Weight: 0.5},
	}, got)

	got, err = s.Forward(1, 20)
	require.NoError(t, err)
	assert.Equal(t, []Triple{{Start: 1, Rel: 20, End: 2, Weight: 0.5}}, got)

	got, err = s.Reverse(2, 0)
	require.NoError(t, err)
	assert.Equal(t, []Triple{
		{Start: 1, Rel: 10, End: 2, Weight: 1.0},
		{Start: 4, Rel: 10, End: 2, Weight: 1.0},
		{Start: 1, Rel: 20, End: 2, Weight: 0.5},
	}, got)

	got, err = s.Reverse(2, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStoreScanUnknownNode(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Add([]Triple{{Start: 1, Rel: 1, End: 2, Weight: 1}}))

	got, err := s.Forward(99, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Reverse(99, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Add([]Triple{{Start: 7, Rel: 3, End: 8, Weight: 4.0}}))
	require.NoError(t, s.SetFrozen(true))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	frozen, err := s.Frozen()
	require.NoError(t, err)
	assert.True(t, frozen)

	got, err := s.Forward(7, 0)
	require.NoError(t, err)
	assert.Equal(t, []Triple{{Start: 7, Rel: 3, End: 8, Weight: 4.0}}, got)
}

func TestStoreFrozenToggle(t *testing.T) {
	s := openStore(t)

	frozen, err := s.Frozen()
	require.NoError(t, err)
	assert.False(t, frozen, "new index should not be frozen")

	require.NoError(t, s.SetFrozen(true))
	frozen, err = s.Frozen()
	require.NoError(t, err)
	assert.True(t, frozen)

	require.NoError(t, s.SetFrozen(false))
	frozen, err = s.Frozen()
	require.NoError(t, err)
	assert.False(t, frozen)
}

func openNodeIndex(t *testing.T) *NodeIndex {
	t.Helper()
	n, err := OpenNodeIndex(filepath.Join(t.TempDir(), "nodes"))
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func TestNodeIndexExactLookup(t *testing.T) {
	n := openNodeIndex(t)

	require.NoError(t, n.Put([]Posting{
		{Label: "cat", ID: 1},
		{Label: "cat", ID: 2},
		{Label: "cattle", ID: 3},
		{Label: "dog", ID: 4},
	}))

	// Exact lookup must not leak labels that merely extend the query.
	ids, err := n.IDs("cat")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = n.IDs("cattle")
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)

	ids, err = n.IDs("horse")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNodeIndexScanPrefix(t *testing.T) {
	n := openNodeIndex(t)

	require.NoError(t, n.Put([]Posting{
		{Label: "sea", ID: 1},
		{Label: "sea otter", ID: 2},
		{Label: "sea turtle", ID: 3},
		{Label: "seal", ID: 4},
		{Label: "shark", ID: 5},
	}))

	got, err := n.ScanPrefix("sea", 0)
	require.NoError(t, err)
	assert.Equal(t, []Posting{
		{Label: "sea", ID: 1},
		{Label: "sea otter", ID: 2},
		{Label: "sea turtle", ID: 3},
		{Label: "seal", ID: 4},
	}, got)

	got, err = n.ScanPrefix("sea", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = n.ScanPrefix("zebra", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNodeIndexFrozen(t *testing.T) {
	n := openNodeIndex(t)

	frozen, err := n.Frozen()
	require.NoError(t, err)
	assert.False(t, frozen)

	require.NoError(t, n.SetFrozen(true))
	frozen, err = n.Frozen()
	require.NoError(t, err)
	assert.True(t, frozen)

	// The marker must not surface as a posting.
	got, err := n.ScanPrefix("", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
