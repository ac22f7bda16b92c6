// Package window is an in-process windowed continuous-query evaluator.
//
// Producers publish timestamped quadruples onto registered streams. Each
// registered query reads one stream through a sliding event-time window of
// RANGE length that advances by STEP. Windows are aligned to multiples of
// STEP since the Unix epoch and cover [end-RANGE, end).
//
// A window closes when a quadruple with a timestamp at or past its end
// arrives on the stream, or on Flush. The query is then evaluated over the
// window's facts and, when the result is not empty, subscribers receive the
// result table. Subscribers are called one at a time, in window order, on
// the evaluator's delivery goroutine.
package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/rules"
)

// ErrClosed is returned by operations on a closed evaluator.
var ErrClosed = errors.New("evaluator closed")

// Handle identifies a registered query.
type Handle int

// Callback receives the result table of one window.
type Callback func(ir.Table)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithErrorHandler receives windows rejected during evaluation. The default
// logs them.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Evaluator) {
		e.onError = fn
	}
}

// WithDeliveryBuffer sets how many closed windows may wait for delivery
// before Publish blocks.
//
// Default: 64.
func WithDeliveryBuffer(n int) Option {
	return func(e *Evaluator) {
		e.buffer = n
	}
}

type delivery struct {
	query string
	table ir.Table
	subs  []Callback
	done  chan struct{} // flush barrier when non-nil
}

type timedTriple struct {
	triple rdf.Triple
	millis int64
}

type query struct {
	spec      QuerySpec
	parsed    *rules.Query
	construct bool
	subs      []Callback

	rangeMs int64
	stepMs  int64
	nextEnd int64 // 0 until the first quadruple
	buf     []timedTriple
	late    int
}

// Evaluator is the in-process evaluator. Safe for concurrent use.
type Evaluator struct {
	mu      sync.Mutex
	streams map[string]bool
	queries []*query
	closed  bool

	buffer     int
	onError    func(error)
	deliveries chan delivery
	wg         sync.WaitGroup
}

// New starts an evaluator and its delivery goroutine. Close stops it.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		streams: make(map[string]bool),
		buffer:  64,
		onError: func(err error) {
			slog.Error("window rejected", "error", err)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.deliveries = make(chan delivery, e.buffer)
	e.wg.Add(1)
	go e.deliver()
	return e
}

func (e *Evaluator) deliver() {
	defer e.wg.Done()
	for d := range e.deliveries {
		if d.done != nil {
			close(d.done)
			continue
		}
		for _, cb := range d.subs {
			cb(d.table)
		}
		slog.Debug("window delivered", "query", d.query, "rows", d.table.Len(), "subscribers", len(d.subs))
	}
}

// RegisterStream makes streamID available to publishers and queries.
// Registering a stream twice is a no-op.
func (e *Evaluator) RegisterStream(streamID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.streams[streamID] = true
	return nil
}

// RegisterQuery registers a query written with a REGISTER QUERY header and
// a FROM STREAM <iri> [RANGE d STEP d] clause. isConstruct must match the
// query form.
func (e *Evaluator) RegisterQuery(text string, isConstruct bool) (Handle, error) {
	return e.Register(QuerySpec{Text: text}, isConstruct)
}

// Register registers a query declared by spec. Header values in the text
// take precedence over spec fields.
func (e *Evaluator) Register(spec QuerySpec, isConstruct bool) (Handle, error) {
	spec, parsed, err := parseSpec(spec)
	if err != nil {
		return 0, err
	}
	if (parsed.Form == rules.FormConstruct) != isConstruct {
		return 0, ir.ConfigurationError(fmt.Sprintf("query %s: construct flag %t does not match the query form", spec.Name, isConstruct), nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	if !e.streams[spec.Stream] {
		return 0, ir.ConfigurationError(fmt.Sprintf("query %s reads unregistered stream %s", spec.Name, spec.Stream), nil)
	}
	e.queries = append(e.queries, &query{
		spec:      spec,
		parsed:    parsed,
		construct: isConstruct,
		rangeMs:   spec.Range.Milliseconds(),
		stepMs:    spec.Step.Milliseconds(),
	})
	h := Handle(len(e.queries))
	slog.Debug("query registered",
		"query", spec.Name,
		"handle", int(h),
		"stream", spec.Stream,
		"range", spec.Range,
		"step", spec.Step,
	)
	return h, nil
}

// Subscribe adds cb to the subscribers of handle's query.
func (e *Evaluator) Subscribe(h Handle, cb Callback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, err := e.lookup(h)
	if err != nil {
		return err
	}
	q.subs = append(q.subs, cb)
	return nil
}

func (e *Evaluator) lookup(h Handle) (*query, error) {
	if h < 1 || int(h) > len(e.queries) {
		return nil, ir.ConfigurationError(fmt.Sprintf("unknown query handle %d", h), nil)
	}
	return e.queries[h-1], nil
}

// Publish adds one quadruple to streamID. Windows the timestamp closes are
// evaluated before the quadruple is buffered. Blocks while the delivery
// buffer is full. Implements publisher.Sink.
func (e *Evaluator) Publish(streamID, subject, predicate, object string, timestampMillis int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if !e.streams[streamID] {
		return ir.InputError(fmt.Sprintf("publish to unregistered stream %s", streamID), nil)
	}

	t := rdf.NewTriple(rdf.IRI(subject), rdf.IRI(predicate), rdf.ParseObject(object))
	for _, q := range e.queries {
		if q.spec.Stream != streamID {
			continue
		}
		if q.nextEnd == 0 {
			q.nextEnd = q.alignedEnd(timestampMillis)
		}
		for q.nextEnd <= timestampMillis {
			e.close(q)
			if len(q.buf) == 0 && q.nextEnd <= timestampMillis {
				// Skip the empty stretch.
				q.nextEnd = q.alignedEnd(timestampMillis)
			}
		}
		if timestampMillis < q.nextEnd-q.rangeMs {
			q.late++
			slog.Debug("late quadruple dropped", "query", q.spec.Name, "timestamp_ms", timestampMillis)
			continue
		}
		q.buf = append(q.buf, timedTriple{triple: t, millis: timestampMillis})
	}
	return nil
}

// alignedEnd returns the end of the first window that contains ms.
func (q *query) alignedEnd(ms int64) int64 {
	end := (ms/q.stepMs + 1) * q.stepMs
	if ms < 0 && ms%q.stepMs != 0 {
		end -= q.stepMs
	}
	return end
}

// close evaluates the window ending at q.nextEnd, advances it by one step
// and evicts facts that no later window covers. Caller holds mu.
func (e *Evaluator) close(q *query) {
	end := q.nextEnd
	start := end - q.rangeMs

	g := rdf.NewGraph()
	for _, tt := range q.buf {
		if tt.millis >= start && tt.millis < end {
			g.Add(tt.triple)
		}
	}

	q.nextEnd += q.stepMs
	keepFrom := q.nextEnd - q.rangeMs
	kept := q.buf[:0]
	for _, tt := range q.buf {
		if tt.millis >= keepFrom {
			kept = append(kept, tt)
		}
	}
	q.buf = kept

	if g.Len() == 0 {
		return
	}
	table, err := q.evaluate(g, end)
	if err != nil {
		e.onError(err)
		return
	}
	if table.Len() == 0 || len(q.subs) == 0 {
		return
	}
	e.deliveries <- delivery{
		query: q.spec.Name,
		table: table,
		subs:  append([]Callback(nil), q.subs...),
	}
}

// evaluate runs the query over one window. Results containing blank nodes
// are rejected: they cannot be named in a result table.
func (q *query) evaluate(g *rdf.Graph, end int64) (ir.Table, error) {
	var table ir.Table
	source := fmt.Sprintf("%s window ending %s", q.spec.Name, time.UnixMilli(end).UTC().Format(time.RFC3339))

	if q.construct {
		for _, t := range rules.Construct(q.parsed, g).Triples() {
			if t.S.IsBlank() || t.O.IsBlank() {
				return ir.Table{}, ir.InternalError(fmt.Sprintf("graph %s has an anonymous node in %s", source, t), nil)
			}
			table.Rows = append(table.Rows, ir.Row{t.S.Value, t.P.Value, cell(t.O)})
		}
		return table, nil
	}

	_, rows := rules.Select(q.parsed, g)
	for _, terms := range rows {
		row := make(ir.Row, len(terms))
		for i, t := range terms {
			if t.IsBlank() {
				return ir.Table{}, ir.InternalError(fmt.Sprintf("graph %s has an anonymous node %s", source, t), nil)
			}
			row[i] = cell(t)
		}
		table.Rows = append(table.Rows, row)
	}
	sort.SliceStable(table.Rows, func(i, j int) bool {
		return lessRow(table.Rows[i], table.Rows[j])
	})
	return table, nil
}

// cell renders a term the way the inference engine reads it back: IRIs
// bare, literals in N-Triples form, unbound as empty.
func cell(t rdf.Term) string {
	switch {
	case t.IsZero():
		return ""
	case t.IsIRI():
		return t.Value
	}
	return t.String()
}

func lessRow(a, b ir.Row) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Flush closes every window still holding facts and waits until all
// resulting tables have been delivered.
func (e *Evaluator) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	for _, q := range e.queries {
		for len(q.buf) > 0 {
			e.close(q)
		}
	}
	done := make(chan struct{})
	e.deliveries <- delivery{done: done}
	e.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Late returns how many quadruples handle's query dropped for arriving
// after their window closed.
func (e *Evaluator) Late(h Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, err := e.lookup(h)
	if err != nil {
		return 0
	}
	return q.late
}

// Close stops the evaluator after pending deliveries finish. Open windows
// are discarded; call Flush first to deliver them.
func (e *Evaluator) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.deliveries)
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}
