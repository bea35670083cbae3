// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kb

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/pdiddy/concept-base/internal/triplet"
	"github.com/pdiddy/concept-base/pkg/types"
)

// indexBatch is the number of entries written per LevelDB batch.
const indexBatch = 10000

// BuildTripleIndex streams every assertion into the LevelDB triple index
// beside the database, then freezes it. A frozen index is left alone
// unless rebuild is set. Only one build may run at a time per knowledge
// base.
func (s *Store) BuildTripleIndex(ctx context.Context, w io.Writer, rebuild bool) error {
	lock, err := s.acquireBuildLock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if rebuild {
		if err := os.RemoveAll(s.TripleIndexPath()); err != nil {
			return fmt.Errorf("removing triple index: %w", err)
		}
	}

	ts, err := triplet.Open(s.TripleIndexPath())
	if err != nil {
		return err
	}
	defer ts.Close()

	if frozen, err := ts.Frozen(); err != nil {
		return err
	} else if frozen {
		fmt.Fprintf(w, "triple index up to date\n")
		return nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT start_id, rel_id, end_id, weight FROM edges ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading edges: %w", err)
	}
	defer rows.Close()

	var (
		batch = make([]triplet.Triple, 0, indexBatch)
		total int
	)
	for rows.Next() {
		var t triplet.Triple
		if err := rows.Scan(&t.Start, &t.Rel, &t.End, &t.Weight); err != nil {
			return fmt.Errorf("scanning edge: %w", err)
		}
		batch = append(batch, t)
		if len(batch) == indexBatch {
			if err := ts.Add(batch); err != nil {
				return err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := ts.Add(batch); err != nil {
			return err
		}
		total += len(batch)
	}

	if err := ts.SetFrozen(true); err != nil {
		return err
	}

	s.logger.Info("triple index built", zap.String("kb", s.name), zap.Int("triples", total))
	fmt.Fprintf(w, "indexed %d assertions\n", total)
	return nil
}

// BuildNodeIndex streams every node label into the LevelDB label index
// beside the database, then freezes it. Semantics match BuildTripleIndex.
func (s *Store) BuildNodeIndex(ctx context.Context, w io.Writer, rebuild bool) error {
	lock, err := s.acquireBuildLock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if rebuild {
		if err := os.RemoveAll(s.NodeIndexPath()); err != nil {
			return fmt.Errorf("removing node index: %w", err)
		}
	}

	ni, err := triplet.OpenNodeIndex(s.NodeIndexPath())
	if err != nil {
		return err
	}
	defer ni.Close()

	if frozen, err := ni.Frozen(); err != nil {
		return err
	} else if frozen {
		fmt.Fprintf(w, "node index up to date\n")
		return nil
	}

	var (
		batch = make([]triplet.Posting, 0, indexBatch)
		total int
	)
	err = s.IterNodes(ctx, func(c types.Concept) error {
		batch = append(batch, triplet.Posting{Label: c.Label, ID: c.ID})
		if len(batch) == indexBatch {
			if err := ni.Put(batch); err != nil {
				return err
			}
			total += len(batch)
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := ni.Put(batch); err != nil {
			return err
		}
		total += len(batch)
	}

	if err := ni.SetFrozen(true); err != nil {
		return err
	}

	s.logger.Info("node index built", zap.String("kb", s.name), zap.Int("labels", total))
	fmt.Fprintf(w, "indexed %d node labels\n", total)
	return nil
}

// acquireBuildLock takes the per-knowledge-base build lock without
// blocking. A held lock means another build is running.
func (s *Store) acquireBuildLock() (*flock.Flock, error) {
	fl := flock.New(s.lockPath())
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking index build: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another index build is in progress for %s", s.name)
	}
	return fl, nil
}

func (s *Store) tripleIndexReady() bool {
	ts, err := triplet.OpenReadOnly(s.TripleIndexPath())
	if err != nil {
		return false
	}
	defer ts.Close()
	frozen, err := ts.Frozen()
	return err == nil && frozen
}

func (s *Store) nodeIndexReady() bool {
	ni, err := triplet.OpenNodeIndexReadOnly(s.NodeIndexPath())
	if err != nil {
		return false
	}
	defer ni.Close()
	frozen, err := ni.Frozen()
	return err == nil && frozen
}

// degreeFromIndex counts a concept's assertions from the frozen triple
// index. ok is false when no usable index exists.
func (s *Store) degreeFromIndex(ids []int64) (out, in int, ok bool) {
	ts, err := triplet.OpenReadOnly(s.TripleIndexPath())
	if err != nil {
		return 0, 0, false
	}
	defer ts.Close()

	if frozen, err := ts.Frozen(); err != nil || !frozen {
		return 0, 0, false
	}

	for _, id := range ids {
		fw, err := ts.Forward(id, 0)
		if err != nil {
			return 0, 0, false
		}
		rv, err := ts.Reverse(id, 0)
		if err != nil {
			return 0, 0, false
		}
		out += len(fw)
		in += len(rv)
	}
	return out, in, true
}

// lookupIndexedPrefix serves a label prefix lookup from the frozen label
// index, hydrating matches from SQLite. ok is false when no usable index
// exists, which sends the caller down the SQL path.
func (s *Store) lookupIndexedPrefix(ctx context.Context, label string, limit int) ([]types.Concept, bool, error) {
	ni, err := triplet.OpenNodeIndexReadOnly(s.NodeIndexPath())
	if err != nil {
		return nil, false, nil
	}
	defer ni.Close()

	if frozen, err := ni.Frozen(); err != nil || !frozen {
		return nil, false, nil
	}

	postings, err := ni.ScanPrefix(label, limit)
	if err != nil {
		return nil, false, fmt.Errorf("scanning label index: %w", err)
	}
	if len(postings) == 0 {
		return nil, true, nil
	}

	args := make([]any, len(postings))
	for i, p := range postings {
		args[i] = p.ID
	}
	query := fmt.Sprintf(
		`SELECT id, uri, language, label, COALESCE(sense, '')
		FROM nodes WHERE id IN (%s)
		ORDER BY label, language, id`,
		placeholders(len(postings)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("hydrating label index matches: %w", err)
	}
	defer rows.Close()

	concepts, err := scanConcepts(rows)
	if err != nil {
		return nil, false, err
	}
	return concepts, true, nil
}
