package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/provstream/internal/engine"
	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/store"
	"github.com/roach88/provstream/internal/testutil"
)

// Harness executes one scenario against one engine.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	prefixes rdf.Prefixes
	name     string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fixed instance ID
// and a logical clock starting at window 1, so identical scenarios produce
// identical results. Engine failures are recorded in the result; the
// returned error is reserved for the harness itself failing.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	retention, _ := engine.ParseRetention(scenario.Retention)
	eng := engine.New(scenario.Name, st,
		engine.WithRetention(retention),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.InstanceID)),
		engine.WithClock(engine.NewClock()),
	)

	h := &Harness{
		store:    st,
		engine:   eng,
		prefixes: scenarioPrefixes(scenario),
		name:     scenario.Name,
	}

	result := NewResult()
	if err := h.setup(scenario); err != nil {
		result.Final.SetupError = string(ir.KindOf(err))
	}

	for i, step := range scenario.Windows {
		event, err := h.window(ctx, int64(i+1), step)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i+1, err)
		}
		result.Trace = append(result.Trace, event)
		checkExpect(result, event, step.Expect)
	}

	if err := h.final(ctx, &result.Final); err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, h.prefixes) {
		result.AddError(msg)
	}
	return result, nil
}

// setup loads the schema and registers the rules. The first failure stops
// setup; the engine is then Failed or still Uninitialized and every window
// reports it.
func (h *Harness) setup(s *Scenario) error {
	if err := h.engine.LoadSchema(s.Schema); err != nil {
		return err
	}
	for _, text := range s.Rules.Coldstart {
		if err := h.engine.AddRule(ir.StageColdstart.String(), text); err != nil {
			return err
		}
	}
	for _, text := range s.Rules.Warm {
		if err := h.engine.AddRule(ir.StageWarm.String(), text); err != nil {
			return err
		}
	}
	return nil
}

// window delivers one table and records what happened. The error return is
// for store failures; engine errors land in the event.
func (h *Harness) window(ctx context.Context, seq int64, step WindowStep) (TraceEvent, error) {
	event := TraceEvent{Seq: seq, Rows: len(step.Rows)}
	switch h.engine.State() {
	case engine.StateColdstartPending:
		event.Stage = ir.StageColdstart.String()
	case engine.StateWarm:
		event.Stage = ir.StageWarm.String()
	}

	before, err := h.store.Deltas(ctx, h.name)
	if err != nil {
		return event, err
	}

	table := ir.Table{Rows: make([]ir.Row, len(step.Rows))}
	for i, row := range step.Rows {
		cells := make(ir.Row, len(row))
		for j, cell := range row {
			cells[j] = expandCell(h.prefixes, cell)
		}
		table.Rows[i] = cells
	}

	if err := h.engine.OnWindow(ctx, table); err != nil {
		event.Error = string(ir.KindOf(err))
	}
	event.State = h.engine.State().String()

	after, err := h.store.Deltas(ctx, h.name)
	if err != nil {
		return event, err
	}
	if len(after) > len(before) {
		event.Delta = lines(after[len(after)-1].Facts)
	}
	return event, nil
}

func (h *Harness) final(ctx context.Context, fs *FinalState) error {
	fs.State = h.engine.State().String()
	if snap := h.engine.Snapshot(); snap != nil {
		fs.Snapshot = snap.Len()
	}

	size, err := h.store.Size(ctx)
	if err != nil {
		return err
	}
	fs.StoreSize = size

	deltas, err := h.store.Deltas(ctx, h.name)
	if err != nil {
		return err
	}
	fs.Deltas = len(deltas)

	facts, err := h.store.Facts(ctx)
	if err != nil {
		return err
	}
	fs.Facts = lines(facts)
	return nil
}

func checkExpect(result *Result, event TraceEvent, expect *ExpectClause) {
	if expect == nil {
		return
	}
	if expect.Error != event.Error {
		if event.Error == "" {
			result.AddError(fmt.Sprintf("window %d: expected error %s, window succeeded", event.Seq, expect.Error))
		} else {
			result.AddError(fmt.Sprintf("window %d: expected error %q, got %s", event.Seq, expect.Error, event.Error))
		}
	}
	if expect.State != "" && expect.State != event.State {
		result.AddError(fmt.Sprintf("window %d: expected state %s, got %s", event.Seq, expect.State, event.State))
	}
	if expect.Delta != nil && *expect.Delta != len(event.Delta) {
		result.AddError(fmt.Sprintf("window %d: expected delta of %d facts, got %d", event.Seq, *expect.Delta, len(event.Delta)))
	}
}

func scenarioPrefixes(s *Scenario) rdf.Prefixes {
	p := rdf.NewPrefixes()
	for k, v := range s.Prefixes {
		p[k] = v
	}
	return p
}

// expandCell turns a prefixed name with a known prefix into a bare IRI.
// Anything else is returned unchanged.
func expandCell(p rdf.Prefixes, cell string) string {
	c := strings.TrimSpace(cell)
	if c == "" || strings.ContainsAny(c[:1], `<"_`) {
		return cell
	}
	i := strings.IndexByte(c, ':')
	if i <= 0 {
		return cell
	}
	if _, ok := p[c[:i]]; !ok {
		return cell
	}
	iri, err := p.Expand(c)
	if err != nil {
		return cell
	}
	return iri
}

// factTriple builds the triple a row of cells becomes inside the engine.
func factTriple(p rdf.Prefixes, cells []string) (rdf.Triple, error) {
	if len(cells) != 3 {
		return rdf.Triple{}, fmt.Errorf("want 3 cells, have %d", len(cells))
	}
	s, err := resourceTerm(expandCell(p, cells[0]))
	if err != nil {
		return rdf.Triple{}, err
	}
	pred, err := resourceTerm(expandCell(p, cells[1]))
	if err != nil {
		return rdf.Triple{}, err
	}
	return rdf.NewTriple(s, pred, rdf.ParseObject(expandCell(p, cells[2]))), nil
}

func resourceTerm(text string) (rdf.Term, error) {
	if t, err := rdf.ParseNode(text); err == nil && t.IsResource() {
		return t, nil
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t\r\n<>\"{}") {
		return rdf.Term{}, fmt.Errorf("%q is not a resource", text)
	}
	return rdf.IRI(trimmed), nil
}

func lines(g *rdf.Graph) []string {
	triples := g.Triples()
	out := make([]string, len(triples))
	for i, t := range triples {
		out[i] = t.String()
	}
	return out
}
