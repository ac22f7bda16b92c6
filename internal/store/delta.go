package store

import (
	"context"
	"time"

	"github.com/roach88/provstream/internal/rdf"
)

// Delta is one appended inference result.
type Delta struct {
	// ID is content-addressed: see ir.DeltaID.
	ID string `json:"id"`

	// Seq is the store-wide append order, starting at 1.
	Seq int64 `json:"seq"`

	// Engine names the inference engine instance that produced the delta.
	Engine string `json:"engine"`

	// Window is the engine-local window sequence number.
	Window int64 `json:"window"`

	Facts     *rdf.Graph `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
}

// Appender is the write side of the persistent provenance store. Appends
// from several engine instances may run concurrently.
type Appender interface {
	Append(ctx context.Context, engine string, window int64, facts *rdf.Graph) (Delta, error)
}

// Reader is the inspection side of the store.
type Reader interface {
	// Size is the number of distinct facts ever appended.
	Size(ctx context.Context) (int, error)

	// Facts returns the union of every appended delta.
	Facts(ctx context.Context) (*rdf.Graph, error)

	// Deltas lists deltas in append order. An empty engine lists all.
	Deltas(ctx context.Context, engine string) ([]Delta, error)
}

// Provenance is a complete store.
type Provenance interface {
	Appender
	Reader
	Close() error
}

var (
	_ Provenance = (*Store)(nil)
	_ Provenance = (*Memory)(nil)
)
