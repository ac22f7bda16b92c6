package window

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provstream/internal/engine"
	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/publisher"
	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/store"
	"github.com/roach88/provstream/internal/testutil"
)

const stream = "http://foodsafety/ssn"

const tumbling = `
REGISTER QUERY temperature AS
PREFIX fs: <http://foodsafety/ns#>
CONSTRUCT { ?r fs:temperature ?t }
FROM STREAM <http://foodsafety/ssn> [RANGE 10s STEP 10s]
WHERE { ?r fs:temperature ?t }
`

// collector records delivered tables.
type collector struct {
	mu     sync.Mutex
	tables []ir.Table
}

func (c *collector) callback(t ir.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = append(c.tables, t)
}

func (c *collector) got() []ir.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ir.Table(nil), c.tables...)
}

func setup(t *testing.T, text string, construct bool, opts ...Option) (*Evaluator, Handle, *collector) {
	t.Helper()
	ev := New(opts...)
	t.Cleanup(func() { ev.Close() })
	require.NoError(t, ev.RegisterStream(stream))
	h, err := ev.RegisterQuery(text, construct)
	require.NoError(t, err)
	c := &collector{}
	require.NoError(t, ev.Subscribe(h, c.callback))
	return ev, h, c
}

func temperature(t *testing.T, ev *Evaluator, id string, v float64, ms int64) {
	t.Helper()
	require.NoError(t, ev.Publish(stream, testutil.ReadingIRI(id), testutil.NS+"temperature", rdf.Double(v).String(), ms))
}

func subjects(table ir.Table) []string {
	var out []string
	for _, r := range table.Rows {
		out = append(out, r[0])
	}
	return out
}

func TestEvaluator_TumblingWindows(t *testing.T) {
	ev, _, c := setup(t, tumbling, true)

	temperature(t, ev, "R1", 70, 1000)
	temperature(t, ev, "R2", 20, 5000)
	temperature(t, ev, "R3", 30, 12000) // closes [0s, 10s)
	require.NoError(t, ev.Flush(context.Background()))

	tables := c.got()
	require.Len(t, tables, 2)
	assert.Equal(t, []string{testutil.ReadingIRI("R1"), testutil.ReadingIRI("R2")}, subjects(tables[0]))
	assert.Equal(t, []string{testutil.ReadingIRI("R3")}, subjects(tables[1]))

	row := tables[0].Rows[0]
	assert.Equal(t, testutil.NS+"temperature", row[1])
	assert.Equal(t, `"70"^^<http://www.w3.org/2001/XMLSchema#double>`, row[2])
}

func TestEvaluator_SlidingWindows(t *testing.T) {
	text := `
REGISTER QUERY sliding AS
PREFIX fs: <http://foodsafety/ns#>
CONSTRUCT { ?r fs:temperature ?t }
FROM STREAM <http://foodsafety/ssn> [RANGE 10s STEP 5s]
WHERE { ?r fs:temperature ?t }
`
	ev, _, c := setup(t, text, true)

	temperature(t, ev, "R1", 70, 1000)
	temperature(t, ev, "R2", 20, 7000) // closes [-5s, 5s)
	require.NoError(t, ev.Flush(context.Background()))

	tables := c.got()
	require.Len(t, tables, 3)
	assert.Equal(t, []string{testutil.ReadingIRI("R1")}, subjects(tables[0]))
	assert.Equal(t, []string{testutil.ReadingIRI("R1"), testutil.ReadingIRI("R2")}, subjects(tables[1]))
	assert.Equal(t, []string{testutil.ReadingIRI("R2")}, subjects(tables[2]))
}

func TestEvaluator_EmptyWindowsNotDelivered(t *testing.T) {
	ev, _, c := setup(t, tumbling, true)

	temperature(t, ev, "R1", 70, 1000)
	temperature(t, ev, "R2", 20, 55000) // skips four empty windows
	require.NoError(t, ev.Publish(stream, testutil.ReadingIRI("R3"), testutil.NS+"probe", "http://x/probe", 56000))
	require.NoError(t, ev.Flush(context.Background()))

	tables := c.got()
	require.Len(t, tables, 2)
	assert.Equal(t, []string{testutil.ReadingIRI("R2")}, subjects(tables[1]))
}

func TestEvaluator_NoMatchNotDelivered(t *testing.T) {
	ev, _, c := setup(t, tumbling, true)
	require.NoError(t, ev.Publish(stream, testutil.ReadingIRI("R1"), testutil.NS+"probe", "http://x/probe", 1000))
	require.NoError(t, ev.Flush(context.Background()))
	assert.Empty(t, c.got())
}

func TestEvaluator_LateQuadrupleDropped(t *testing.T) {
	ev, h, c := setup(t, tumbling, true)

	temperature(t, ev, "R1", 70, 15000)
	temperature(t, ev, "R0", 70, 3000)
	require.NoError(t, ev.Flush(context.Background()))

	assert.Equal(t, 1, ev.Late(h))
	tables := c.got()
	require.Len(t, tables, 1)
	assert.Equal(t, []string{testutil.ReadingIRI("R1")}, subjects(tables[0]))
}

func TestEvaluator_BlankResultRejected(t *testing.T) {
	text := `
REGISTER QUERY blanks AS
PREFIX fs: <http://foodsafety/ns#>
CONSTRUCT { ?r fs:flag _:b }
FROM STREAM <http://foodsafety/ssn> [RANGE 10s STEP 10s]
WHERE { ?r fs:temperature ?t }
`
	var mu sync.Mutex
	var errs []error
	ev, _, c := setup(t, text, true, WithErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}))

	temperature(t, ev, "R1", 70, 1000)
	require.NoError(t, ev.Flush(context.Background()))

	assert.Empty(t, c.got(), "a window with anonymous nodes must not reach subscribers")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
	assert.True(t, ir.IsKind(errs[0], ir.KindInternal), "got %v", errs[0])
	assert.Contains(t, errs[0].Error(), "blanks")
}

func TestEvaluator_SelectQuery(t *testing.T) {
	text := `
REGISTER QUERY hot AS
PREFIX fs: <http://foodsafety/ns#>
SELECT ?r ?t
FROM STREAM <http://foodsafety/ssn> [RANGE 10s STEP 10s]
WHERE { ?r fs:temperature ?t FILTER(?t > 60) }
`
	ev, _, c := setup(t, text, false)
	temperature(t, ev, "R2", 90, 2000)
	temperature(t, ev, "R1", 70, 1000)
	temperature(t, ev, "R3", 10, 3000)
	require.NoError(t, ev.Flush(context.Background()))

	tables := c.got()
	require.Len(t, tables, 1)
	assert.Equal(t, []string{testutil.ReadingIRI("R1"), testutil.ReadingIRI("R2")}, subjects(tables[0]))
	assert.Len(t, tables[0].Rows[0], 2)
}

func TestEvaluator_RegisterProgrammatic(t *testing.T) {
	ev := New()
	defer ev.Close()
	require.NoError(t, ev.RegisterStream(stream))

	h, err := ev.Register(QuerySpec{
		Name:   "temperature",
		Stream: stream,
		Range:  time.Hour,
		Step:   30 * time.Minute,
		Text:   `CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }`,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, Handle(1), h)
}

func TestEvaluator_RegistrationErrors(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		construct bool
		kind      ir.Kind
	}{
		{"construct flag mismatch", tumbling, false, ir.KindConfiguration},
		{"unregistered stream", `REGISTER QUERY q AS CONSTRUCT { ?s ?p ?o } FROM STREAM <http://other> [RANGE 1s STEP 1s] WHERE { ?s ?p ?o }`, true, ir.KindConfiguration},
		{"no stream", `CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }`, true, ir.KindConfiguration},
		{"no window", `REGISTER QUERY q AS CONSTRUCT { ?s ?p ?o } FROM STREAM <http://foodsafety/ssn> WHERE { ?s ?p ?o }`, true, ir.KindConfiguration},
		{"bad range", `REGISTER QUERY q AS CONSTRUCT { ?s ?p ?o } FROM STREAM <http://foodsafety/ssn> [RANGE 1x STEP 1s] WHERE { ?s ?p ?o }`, true, ir.KindConfiguration},
		{"step exceeds range", `REGISTER QUERY q AS CONSTRUCT { ?s ?p ?o } FROM STREAM <http://foodsafety/ssn> [RANGE 1s STEP 2s] WHERE { ?s ?p ?o }`, true, ir.KindConfiguration},
		{"malformed query", `REGISTER QUERY q AS CONSTRUCT { ?s ?p } FROM STREAM <http://foodsafety/ssn> [RANGE 1s STEP 1s] WHERE { ?s ?p ?o }`, true, ir.KindQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := New()
			defer ev.Close()
			require.NoError(t, ev.RegisterStream(stream))
			_, err := ev.RegisterQuery(tt.text, tt.construct)
			require.Error(t, err)
			assert.True(t, ir.IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestEvaluator_PublishErrors(t *testing.T) {
	ev := New()
	err := ev.Publish("http://nowhere", "http://x/a", "http://x/p", "1", 0)
	assert.True(t, ir.IsKind(err, ir.KindInput), "got %v", err)

	assert.Error(t, ev.Subscribe(Handle(7), func(ir.Table) {}))

	require.NoError(t, ev.Close())
	require.NoError(t, ev.Close())
	assert.ErrorIs(t, ev.Publish(stream, "http://x/a", "http://x/p", "1", 0), ErrClosed)
	assert.ErrorIs(t, ev.Flush(context.Background()), ErrClosed)
}

func TestParseSpec_Header(t *testing.T) {
	spec, err := ParseSpec(QuerySpec{Text: tumbling})
	require.NoError(t, err)
	assert.Equal(t, "temperature", spec.Name)
	assert.Equal(t, stream, spec.Stream)
	assert.Equal(t, 10*time.Second, spec.Range)
	assert.Equal(t, 10*time.Second, spec.Step)
}

func TestIngest_NATSMessage(t *testing.T) {
	ev, _, c := setup(t, tumbling, true)

	data, err := json.Marshal(publisher.Message{
		Stream: stream,
		Quadruple: ir.Quadruple{
			Subject:         testutil.ReadingIRI("R1"),
			Predicate:       testutil.NS + "temperature",
			Object:          rdf.Double(70).String(),
			TimestampMillis: 1000,
		},
	})
	require.NoError(t, err)

	natsHandler(ev)(&nats.Msg{Subject: "facts", Data: data})
	natsHandler(ev)(&nats.Msg{Subject: "facts", Data: []byte("{not json")})
	assert.True(t, ir.IsKind(ingest(ev, []byte("nope")), ir.KindInput))

	require.NoError(t, ev.Flush(context.Background()))
	require.Len(t, c.got(), 1)
}

// End to end: publisher -> evaluator -> engine -> store.
func TestPipeline_PublisherToStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	e := engine.New("temperature", st)
	require.NoError(t, e.LoadSchema(testutil.Schema))
	require.NoError(t, e.AddRule("coldstart", testutil.HotRule))
	require.NoError(t, e.AddRule("warm", testutil.HotRule))

	ev, h, _ := setup(t, tumbling, true)
	require.NoError(t, ev.Subscribe(h, e.Callback()))

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	pub := publisher.New(stream, ev)
	for i, reading := range []struct {
		id   string
		temp float64
	}{{"R1", 70}, {"R2", 20}, {"R3", 95}} {
		g := rdf.NewGraph(rdf.NewTriple(
			rdf.IRI(testutil.ReadingIRI(reading.id)),
			rdf.IRI(testutil.NS+"temperature"),
			rdf.Double(reading.temp),
		))
		ts := time.UnixMilli(int64(i) * 10000)
		require.NoError(t, pub.Publish(ctx, reading.id, g, ts))
	}
	require.NoError(t, ev.Flush(ctx))
	e.Stop()
	require.NoError(t, <-runErr)

	facts, err := st.Facts(ctx)
	require.NoError(t, err)
	assert.True(t, facts.Has(testutil.Classified("R1", "Hot")))
	assert.True(t, facts.Has(testutil.Classified("R3", "Hot")))
	assert.False(t, facts.Has(testutil.Classified("R2", "Hot")))
	assert.Equal(t, engine.StateWarm, e.State())
}
