package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/provstream/internal/ir"
)

// Metrics holds the Prometheus collectors for every engine instance in a
// process. Create it once per registry and share it; each series is
// labelled with the engine name.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	windowsTotal  *prometheus.CounterVec
	inferredFacts *prometheus.CounterVec
	emptyDeltas   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	inferDuration *prometheus.HistogramVec
	queueDepth    *prometheus.GaugeVec
}

// NewMetrics creates and registers engine metrics. Returns nil when reg is
// nil, which disables metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		windowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provstream",
			Subsystem: "engine",
			Name:      "windows_total",
			Help:      "Windows processed, by inference stage",
		}, []string{"engine", "stage"}),

		inferredFacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provstream",
			Subsystem: "engine",
			Name:      "inferred_facts_total",
			Help:      "Facts appended to the provenance store",
		}, []string{"engine"}),

		emptyDeltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provstream",
			Subsystem: "engine",
			Name:      "empty_deltas_total",
			Help:      "Warm windows that inferred nothing new",
		}, []string{"engine"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provstream",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Fatal engine errors, by error kind",
		}, []string{"engine", "kind"}),

		inferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "provstream",
			Subsystem: "engine",
			Name:      "infer_duration_seconds",
			Help:      "Time spent in one inference pass",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
		}, []string{"engine"}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "provstream",
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Windows waiting in the delivery queue",
		}, []string{"engine"}),
	}

	reg.MustRegister(
		m.windowsTotal,
		m.inferredFacts,
		m.emptyDeltas,
		m.errorsTotal,
		m.inferDuration,
		m.queueDepth,
	)
	return m
}

func (m *Metrics) recordWindow(engine string, stage ir.Stage) {
	if m == nil {
		return
	}
	m.windowsTotal.WithLabelValues(engine, stage.String()).Inc()
}

func (m *Metrics) recordDelta(engine string, size int) {
	if m == nil {
		return
	}
	if size == 0 {
		m.emptyDeltas.WithLabelValues(engine).Inc()
		return
	}
	m.inferredFacts.WithLabelValues(engine).Add(float64(size))
}

func (m *Metrics) recordError(engine string, err error) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(engine, string(ir.KindOf(err))).Inc()
}

func (m *Metrics) observeInfer(engine string, d time.Duration) {
	if m == nil {
		return
	}
	m.inferDuration.WithLabelValues(engine).Observe(d.Seconds())
}

func (m *Metrics) setQueueDepth(engine string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(engine).Set(float64(n))
}
