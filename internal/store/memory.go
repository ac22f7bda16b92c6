package store

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
)

// Memory is an in-process provenance store. Appends are serialized by a
// mutex; the accumulated graph only grows.
type Memory struct {
	mu     sync.Mutex
	deltas []Delta
	ids    map[string]int64
	facts  *rdf.Graph
	now    func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		ids:   make(map[string]int64),
		facts: rdf.NewGraph(),
		now:   time.Now,
	}
}

// Append records a delta. Same idempotency rule as Store.Append.
func (m *Memory) Append(_ context.Context, engine string, window int64, facts *rdf.Graph) (Delta, error) {
	d := Delta{
		ID:     ir.DeltaID(engine, window, facts.NTriples()),
		Engine: engine,
		Window: window,
		Facts:  facts.Clone(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq, ok := m.ids[d.ID]; ok {
		return m.deltas[seq-1], nil
	}
	d.Seq = int64(len(m.deltas)) + 1
	d.CreatedAt = m.now().UTC()
	m.deltas = append(m.deltas, d)
	m.ids[d.ID] = d.Seq
	m.facts.AddGraph(d.Facts)
	return d, nil
}

// Size returns the number of distinct facts appended.
func (m *Memory) Size(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facts.Len(), nil
}

// Facts returns a copy of the accumulated graph.
func (m *Memory) Facts(context.Context) (*rdf.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facts.Clone(), nil
}

// Deltas lists deltas in append order.
func (m *Memory) Deltas(_ context.Context, engine string) ([]Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Delta{}
	for _, d := range m.deltas {
		if engine != "" && d.Engine != engine {
			continue
		}
		d.Facts = d.Facts.Clone()
		out = append(out, d)
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
