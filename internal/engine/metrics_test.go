package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/store"
	fixtures "github.com/roach88/provstream/internal/testutil"
)

func TestNewMetrics_NilRegistry(t *testing.T) {
	m := NewMetrics(nil)
	assert.Nil(t, m)

	// Every method tolerates a nil receiver.
	m.recordWindow("e", ir.StageWarm)
	m.recordDelta("e", 3)
	m.recordError("e", ir.InternalError("x", nil))
	m.observeInfer("e", time.Millisecond)
	m.setQueueDepth("e", 2)
}

func TestMetrics_RecordedByEngine(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	require.NotNil(t, m)

	e := newTestEngine(t, store.NewMemory(), []string{fixtures.FrozenRule}, WithMetrics(m))
	require.NoError(t, e.OnWindow(ctx, fixtures.Reading("R1", 70)))
	require.NoError(t, e.OnWindow(ctx, fixtures.Reading("R2", 10)))
	require.NoError(t, e.OnWindow(ctx, fixtures.Reading("R3", -8)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.windowsTotal.WithLabelValues("temperature", "coldstart")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.windowsTotal.WithLabelValues("temperature", "warm")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inferredFacts.WithLabelValues("temperature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emptyDeltas.WithLabelValues("temperature")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.inferDuration))

	// A failing instance counts its error by kind.
	bad := New("broken", store.NewMemory(), WithMetrics(m))
	require.Error(t, bad.OnWindow(ctx, fixtures.Reading("R1", 70)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("broken", string(ir.KindInternal))))
}

func TestMetrics_QueueDepth(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	e := newTestEngine(t, store.NewMemory(), nil, WithMetrics(m), WithQueueSize(4))

	require.NoError(t, e.Deliver(context.Background(), fixtures.Reading("R1", 70)))
	require.NoError(t, e.Deliver(context.Background(), fixtures.Reading("R2", 70)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("temperature")))
}
