package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/rdfs"
	"github.com/roach88/provstream/internal/store"
)

// Engine is one provenance inference instance: a schema, a rule set, a
// working graph and the previously inferred snapshot.
//
// Thread-safety model:
//   - OnWindow(): safe from any goroutine; windows are processed one at a
//     time under the instance's critical section
//   - Deliver(): safe from any goroutine; blocks while the queue is full
//   - Run(): must be called from exactly one goroutine
//
// INVARIANTS:
//   - coldstart runs at most once per instance
//   - the provenance store only grows
//   - Failed is terminal
type Engine struct {
	name      string
	id        string
	appender  store.Appender
	metrics   *Metrics
	retention Retention
	clock     *Clock
	queue     *windowQueue
	queueSize int
	idGen     IDGenerator

	mu       sync.Mutex
	state    State
	failure  error
	working  *rdfs.InfGraph
	previous *rdf.Graph
	registry RuleRegistry
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records the instance's metrics into m. A nil m disables
// metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRetention sets how much asserted history the working graph keeps.
//
// Default: RetainAll.
func WithRetention(r Retention) Option {
	return func(e *Engine) {
		e.retention = r
	}
}

// WithQueueSize sets the capacity of the Deliver queue.
//
// Default: 16 windows (DefaultQueueSize).
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		e.queueSize = n
	}
}

// WithIDGenerator sets the generator for the instance ID.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.idGen = g
	}
}

// WithClock sets the window clock, e.g. to continue numbering after a
// restart.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an engine named name that appends its deltas to appender.
// The instance starts Uninitialized; LoadSchema must run before the first
// window.
func New(name string, appender store.Appender, opts ...Option) *Engine {
	e := &Engine{
		name:      name,
		appender:  appender,
		clock:     NewClock(),
		queueSize: DefaultQueueSize,
		idGen:     UUIDv7Generator{},
		state:     StateUninitialized,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.id = e.idGen.Generate()
	e.queue = newWindowQueue(e.queueSize)
	return e
}

// Name returns the engine name used for store records and log lines.
func (e *Engine) Name() string { return e.name }

// ID returns the instance ID.
func (e *Engine) ID() string { return e.id }

// LoadSchema parses schemaText (Turtle) and combines it with an empty base
// graph under RDFS entailment to form the working graph.
//
// Must be called exactly once, before the first window. A second call is
// an InternalError and leaves the instance untouched; malformed schema text
// is a ConfigurationError and fails the instance.
func (e *Engine) LoadSchema(schemaText string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateFailed:
		return e.failedError()
	case StateUninitialized:
	default:
		return ir.InternalError(fmt.Sprintf("schema for engine %s is already loaded", e.name), nil)
	}

	schema, err := rdf.ParseTurtle(schemaText)
	if err != nil {
		return e.fail(ir.ConfigurationError(fmt.Sprintf("malformed schema for engine %s", e.name), err))
	}
	e.working = rdfs.NewInfGraph(schema)
	e.state = StateColdstartPending

	slog.Debug("schema loaded",
		"engine", e.name,
		"instance", e.id,
		"schema_triples", schema.Len(),
		"entailed", e.working.Len(),
	)
	return nil
}

// AddRule appends ruleText to the sequence of the named stage ("coldstart"
// or "warm", any case). The text is not parsed until it runs.
func (e *Engine) AddRule(stageName, ruleText string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	stage, err := e.registry.Add(stageName, ruleText)
	if err != nil {
		return err
	}
	slog.Debug("rule registered",
		"engine", e.name,
		"stage", stage,
		"position", e.registry.Len(stage),
	)
	return nil
}

// Rules returns the registered rule texts of stage in registration order.
func (e *Engine) Rules(stage ir.Stage) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Rules(stage)
}

// OnWindow processes one window result table: its rows are converted to
// facts, added to the working graph, and inference runs.
//
// Windows are processed strictly one at a time per instance; a concurrent
// call blocks until the running one finishes. Any error returned is fatal
// and leaves the instance Failed.
func (e *Engine) OnWindow(ctx context.Context, table ir.Table) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateFailed:
		return e.failedError()
	case StateUninitialized:
		return e.fail(ir.InternalError(fmt.Sprintf("window delivered to engine %s before its schema was loaded", e.name), nil))
	}

	window := e.clock.Next()
	facts, err := convertTable(table)
	if err != nil {
		return e.fail(err)
	}

	if e.retention == RetainLatestWindow {
		e.working.Reset()
	}
	e.working.AddGraph(facts)

	if err := e.infer(ctx, window); err != nil {
		return e.fail(err)
	}
	return nil
}

// infer runs the stage for the current state against a provisional graph
// seeded with the working graph's closure, and appends what the rules
// derived beyond it.
//
//	provisional = closure (+ previous snapshot when warm)
//	run stage rules on provisional
//	delta = provisional - closure (- previous snapshot when warm)
//
// A non-empty delta becomes the new snapshot and is appended. An empty
// delta is an error on coldstart only.
func (e *Engine) infer(ctx context.Context, window int64) error {
	start := time.Now()
	stage := ir.StageColdstart
	if e.previous != nil {
		stage = ir.StageWarm
	}

	provisional := rdf.NewGraph()
	baseline := provisional.Len()
	provisional.AddGraph(e.working.All())
	if stage == ir.StageWarm {
		provisional.AddGraph(e.previous)
	}

	res, err := e.registry.execute(e.name, stage, provisional)
	if err != nil {
		return err
	}

	provisional.RemoveGraph(e.working.All())
	if stage == ir.StageWarm {
		provisional.RemoveGraph(e.previous)
	}

	e.metrics.recordWindow(e.name, stage)
	e.metrics.observeInfer(e.name, time.Since(start))

	if provisional.Len() <= baseline {
		if stage == ir.StageColdstart {
			return ir.ConfigurationError(fmt.Sprintf("coldstart for %s did not infer anything", e.name), nil)
		}
		e.metrics.recordDelta(e.name, 0)
		slog.Debug("window inferred nothing",
			"engine", e.name,
			"instance", e.id,
			"window", window,
			"stage", stage,
			"solutions", res.Solutions,
		)
		return nil
	}

	delta, err := e.appender.Append(ctx, e.name, window, provisional)
	if err != nil {
		return ir.InternalError(fmt.Sprintf("append delta of engine %s window %d", e.name, window), err)
	}
	e.previous = provisional
	e.state = StateWarm
	e.metrics.recordDelta(e.name, provisional.Len())

	attrs := []any{
		"engine", e.name,
		"instance", e.id,
		"window", window,
		"stage", stage,
		"state", e.state,
		"delta", provisional.Len(),
		"delta_id", delta.ID,
		"seq", delta.Seq,
	}
	if r, ok := e.appender.(store.Reader); ok {
		if n, err := r.Size(ctx); err == nil {
			attrs = append(attrs, "store_size", n)
		}
	}
	slog.Info("window inferred", attrs...)
	return nil
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error that failed the instance, or nil.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

// Snapshot returns a copy of the previously inferred facts, or nil before
// the first successful inference.
func (e *Engine) Snapshot() *rdf.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.previous == nil {
		return nil
	}
	return e.previous.Clone()
}

// Working returns a copy of the asserted facts of the working graph, or
// nil before the schema is loaded.
func (e *Engine) Working() *rdf.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.working == nil {
		return nil
	}
	return e.working.Base().Clone()
}

// Deliver enqueues a window for Run. Blocks while the queue is full, until
// space frees or ctx is done. Returns ErrQueueClosed (wrapping the failure
// cause, if any) once the engine has stopped.
func (e *Engine) Deliver(ctx context.Context, table ir.Table) error {
	if err := e.queue.Enqueue(ctx, table); err != nil {
		if errors.Is(err, ErrQueueClosed) {
			if cause := e.Err(); cause != nil {
				return fmt.Errorf("%w: %w", err, cause)
			}
		}
		return err
	}
	e.metrics.setQueueDepth(e.name, e.queue.Len())
	return nil
}

// Callback returns a function suitable for an evaluator subscription. Each
// call delivers one window and blocks under backpressure; delivery errors
// are logged because the evaluator has nowhere to report them.
func (e *Engine) Callback() func(ir.Table) {
	return func(t ir.Table) {
		if err := e.Deliver(context.Background(), t); err != nil {
			slog.Error("window delivery failed",
				"engine", e.name,
				"instance", e.id,
				"rows", t.Len(),
				"error", err,
			)
		}
	}
}

// QueueLen returns the number of windows waiting for Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run processes delivered windows in FIFO order, one at a time.
// Blocks until ctx is cancelled, Stop is called (after draining what was
// already queued), or a window fails. A failure is returned and stops the
// queue.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "engine", e.name, "instance", e.id)

	for {
		table, ok := e.queue.TryDequeue()
		if ok {
			e.metrics.setQueueDepth(e.name, e.queue.Len())
			if err := e.OnWindow(ctx, table); err != nil {
				e.queue.Close()
				slog.Error("engine failed",
					"engine", e.name,
					"instance", e.id,
					"kind", ir.KindOf(err),
					"error", err,
				)
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping", "engine", e.name, "reason", "context cancelled")
			return ctx.Err()
		case _, open := <-e.queue.Wait():
			if !open && e.queue.Len() == 0 {
				slog.Info("engine stopping", "engine", e.name, "reason", "stopped")
				return nil
			}
		}
	}
}

// Stop closes the delivery queue. Run drains queued windows and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// fail moves the instance to Failed and returns err. Caller holds mu.
func (e *Engine) fail(err error) error {
	e.state = StateFailed
	e.failure = err
	e.metrics.recordError(e.name, err)
	return err
}

func (e *Engine) failedError() error {
	return fmt.Errorf("engine %s has failed: %w", e.name, e.failure)
}

// convertTable turns evaluator rows into facts. Column 0 names the subject
// and column 1 the predicate; column 2 is parsed as a typed literal when
// possible and otherwise taken as a resource. Extra columns are ignored.
// Blank nodes are rejected in every position.
func convertTable(table ir.Table) (*rdf.Graph, error) {
	g := rdf.NewGraph()
	for i, row := range table.Rows {
		if len(row) < 3 {
			return nil, ir.InternalError(fmt.Sprintf("problem converting row %d %q: want 3 columns, have %d", i, []string(row), len(row)), nil)
		}
		s, err := resource(row[0])
		if err != nil {
			return nil, err
		}
		p, err := resource(row[1])
		if err != nil {
			return nil, err
		}
		if !p.IsIRI() {
			return nil, ir.InternalError(fmt.Sprintf("problem converting %q: predicate must be an IRI", row[1]), nil)
		}
		o := rdf.ParseObject(row[2])
		if o.IsBlank() {
			return nil, ir.InternalError(fmt.Sprintf("problem converting %q: anonymous objects are not allowed", row[2]), nil)
		}
		g.Add(rdf.NewTriple(s, p, o))
	}
	return g, nil
}

// resource names a resource by its N-Triples form or by the raw text.
func resource(text string) (rdf.Term, error) {
	if t, err := rdf.ParseNode(text); err == nil && t.IsResource() {
		if t.IsBlank() {
			return rdf.Term{}, ir.InternalError(fmt.Sprintf("problem converting %q: anonymous resources are not allowed", text), nil)
		}
		return t, nil
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t\r\n<>\"{}") {
		return rdf.Term{}, ir.InternalError(fmt.Sprintf("problem converting %q: not a resource", text), nil)
	}
	return rdf.IRI(trimmed), nil
}
