// Package publisher turns fact graph snapshots into the timestamped
// quadruples a windowed evaluator consumes.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
)

// Sink receives quadruples for one input stream. The windowed evaluator
// and NATSSink both implement it.
type Sink interface {
	Publish(streamID, subject, predicate, object string, timestampMillis int64) error
}

// Publisher emits snapshots onto one stream of a Sink.
type Publisher struct {
	stream string
	sink   Sink
}

// New creates a publisher writing to stream on sink.
func New(stream string, sink Sink) *Publisher {
	return &Publisher{stream: stream, sink: sink}
}

// Stream returns the target stream ID.
func (p *Publisher) Stream() string { return p.stream }

// Publish emits one quadruple per fact of g, all stamped with ts, in the
// graph's sorted triple order.
//
// The whole snapshot is checked before anything is emitted: a blank node
// in subject or object position has no quadruple form, and the call fails
// with an InternalError naming the graph. Sink failures stop emission and
// are returned as is; quadruples already emitted stay emitted.
func (p *Publisher) Publish(ctx context.Context, name string, g *rdf.Graph, ts time.Time) error {
	quads, err := Quadruples(name, g, ts)
	if err != nil {
		return err
	}
	for i, q := range quads {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
		if err := p.sink.Publish(p.stream, q.Subject, q.Predicate, q.Object, q.TimestampMillis); err != nil {
			return fmt.Errorf("publish %s fact %d of %d: %w", name, i+1, len(quads), err)
		}
	}
	slog.Debug("snapshot published",
		"graph", name,
		"stream", p.stream,
		"facts", len(quads),
		"timestamp_ms", ts.UnixMilli(),
	)
	return nil
}

// Quadruples converts g to quadruples without emitting them. Subjects and
// predicates are bare IRIs; IRI objects are bare and literal objects keep
// their N-Triples form so the datatype survives the evaluator.
func Quadruples(name string, g *rdf.Graph, ts time.Time) ([]ir.Quadruple, error) {
	triples := g.Triples()
	quads := make([]ir.Quadruple, 0, len(triples))
	millis := ts.UnixMilli()
	for _, t := range triples {
		if t.O.IsBlank() {
			return nil, ir.InternalError(fmt.Sprintf("graph %s has an anonymous object in %s", name, t), nil)
		}
		if t.S.IsBlank() {
			return nil, ir.InternalError(fmt.Sprintf("graph %s has an anonymous subject in %s", name, t), nil)
		}
		quads = append(quads, ir.Quadruple{
			Subject:         t.S.Value,
			Predicate:       t.P.Value,
			Object:          objectText(t.O),
			TimestampMillis: millis,
		})
	}
	return quads, nil
}

func objectText(o rdf.Term) string {
	if o.IsIRI() {
		return o.Value
	}
	return o.String()
}
