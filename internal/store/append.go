package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
)

// Append records a delta and its facts in one transaction.
//
// Appending the same (engine, window, facts) twice is a no-op that returns
// the delta recorded first. Rows are never updated or deleted.
func (s *Store) Append(ctx context.Context, engine string, window int64, facts *rdf.Graph) (Delta, error) {
	d := Delta{
		ID:        ir.DeltaID(engine, window, facts.NTriples()),
		Engine:    engine,
		Window:    window,
		Facts:     facts.Clone(),
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Delta{}, fmt.Errorf("append delta: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	existing, err := s.lookupSeq(ctx, tx, d.ID)
	if err != nil {
		return Delta{}, err
	}
	if existing != 0 {
		d.Seq = existing
		return d, nil
	}

	err = tx.QueryRowContext(ctx, s.dialect.rebind(`
		INSERT INTO deltas (id, engine, window_seq, size, engine_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING seq
	`),
		d.ID,
		d.Engine,
		d.Window,
		facts.Len(),
		ir.EngineVersion,
		d.CreatedAt.Format(time.RFC3339Nano),
	).Scan(&d.Seq)
	if err != nil {
		return Delta{}, fmt.Errorf("append delta: insert: %w", err)
	}

	insertFact := s.dialect.rebind(`
		INSERT INTO delta_facts (delta_seq, ordinal, subject, predicate, object)
		VALUES (?, ?, ?, ?, ?)
	`)
	for i, t := range facts.Triples() {
		if _, err := tx.ExecContext(ctx, insertFact, d.Seq, i, t.S.String(), t.P.String(), t.O.String()); err != nil {
			return Delta{}, fmt.Errorf("append delta: insert fact %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Delta{}, fmt.Errorf("append delta: commit: %w", err)
	}
	return d, nil
}

func (s *Store) lookupSeq(ctx context.Context, tx *sql.Tx, id string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT seq FROM deltas WHERE id = ?`), id).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("append delta: lookup: %w", err)
	}
	return seq, nil
}
