package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/provstream/internal/rdf"
)

// Size returns the number of distinct facts in the store. A fact appended
// by several deltas counts once, matching the set semantics of the union.
func (s *Store) Size(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT DISTINCT subject, predicate, object FROM delta_facts
		) AS f
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store size: %w", err)
	}
	return n, nil
}

// Facts returns the union of every appended delta.
func (s *Store) Facts(ctx context.Context) (*rdf.Graph, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT subject, predicate, object FROM delta_facts
	`)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	g := rdf.NewGraph()
	for rows.Next() {
		var subj, pred, obj string
		if err := rows.Scan(&subj, &pred, &obj); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		t, err := decodeTriple(subj, pred, obj)
		if err != nil {
			return nil, err
		}
		g.Add(t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return g, nil
}

// Deltas returns deltas ordered by seq ASC, with their facts. An empty
// engine name returns every delta.
func (s *Store) Deltas(ctx context.Context, engine string) ([]Delta, error) {
	query := `
		SELECT seq, id, engine, window_seq, created_at
		FROM deltas
		WHERE (? = '' OR engine = ?)
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), engine, engine)
	if err != nil {
		return nil, fmt.Errorf("query deltas: %w", err)
	}
	defer rows.Close()

	deltas := []Delta{}
	index := map[int64]int{}
	for rows.Next() {
		var d Delta
		var created string
		if err := rows.Scan(&d.Seq, &d.ID, &d.Engine, &d.Window, &created); err != nil {
			return nil, fmt.Errorf("scan delta: %w", err)
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at of delta %d: %w", d.Seq, err)
		}
		d.Facts = rdf.NewGraph()
		index[d.Seq] = len(deltas)
		deltas = append(deltas, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deltas: %w", err)
	}
	rows.Close()

	if err := s.loadDeltaFacts(ctx, engine, deltas, index); err != nil {
		return nil, err
	}
	return deltas, nil
}

func (s *Store) loadDeltaFacts(ctx context.Context, engine string, deltas []Delta, index map[int64]int) error {
	if len(deltas) == 0 {
		return nil
	}
	query := `
		SELECT f.delta_seq, f.subject, f.predicate, f.object
		FROM delta_facts f
		JOIN deltas d ON d.seq = f.delta_seq
		WHERE (? = '' OR d.engine = ?)
		ORDER BY f.delta_seq ASC, f.ordinal ASC
	`
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), engine, engine)
	if err != nil {
		return fmt.Errorf("query delta facts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var subj, pred, obj string
		if err := rows.Scan(&seq, &subj, &pred, &obj); err != nil {
			return fmt.Errorf("scan delta fact: %w", err)
		}
		i, ok := index[seq]
		if !ok {
			// Appended after the delta listing was read.
			continue
		}
		t, err := decodeTriple(subj, pred, obj)
		if err != nil {
			return err
		}
		deltas[i].Facts.Add(t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate delta facts: %w", err)
	}
	return nil
}

// decodeTriple parses the N-Triples term columns written by Append.
func decodeTriple(subj, pred, obj string) (rdf.Triple, error) {
	var terms [3]rdf.Term
	for i, col := range []string{subj, pred, obj} {
		t, err := rdf.ParseNode(col)
		if err != nil {
			return rdf.Triple{}, fmt.Errorf("decode stored term %q: %w", col, err)
		}
		terms[i] = t
	}
	return rdf.NewTriple(terms[0], terms[1], terms[2]), nil
}
