package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StreamMetrics defines metrics operations needed by the stream client.
type StreamMetrics interface {
	// Connection metrics.
	IncConnectAttempts()
	IncConnects()
	IncDisconnects(reason string)
	SetState(state string)

	// Frame metrics.
	IncFramesReceived(msgType string)
	IncFrameErrors(kind string)
	TrackFrame(f func() error) error
}

// ModelMetrics defines metrics operations fed by the model store.
type ModelMetrics interface {
	SetTasksRetained(n int)
}

// Metrics is the Prometheus implementation of StreamMetrics and ModelMetrics.
type Metrics struct {
	// Connection metrics.
	ConnectAttempts prometheus.Counter
	Connects        prometheus.Counter
	Disconnects     *prometheus.CounterVec
	State           *prometheus.GaugeVec

	// Frame metrics.
	FramesReceived *prometheus.CounterVec
	FrameErrors    *prometheus.CounterVec
	FrameDuration  prometheus.Histogram

	// Model metrics.
	TasksRetained prometheus.Gauge

	states []string
}

// Ensure Metrics implements both interfaces.
var _ StreamMetrics = (*Metrics)(nil)
var _ ModelMetrics = (*Metrics)(nil)

// Interface implementation methods.
func (m *Metrics) IncConnectAttempts()              { m.ConnectAttempts.Inc() }
func (m *Metrics) IncConnects()                     { m.Connects.Inc() }
func (m *Metrics) IncDisconnects(reason string)     { m.Disconnects.WithLabelValues(reason).Inc() }
func (m *Metrics) IncFramesReceived(msgType string) { m.FramesReceived.WithLabelValues(msgType).Inc() }
func (m *Metrics) IncFrameErrors(kind string)       { m.FrameErrors.WithLabelValues(kind).Inc() }
func (m *Metrics) SetTasksRetained(n int)           { m.TasksRetained.Set(float64(n)) }

// SetState marks state as the current stream state. Every other known state
// label is reset to zero.
func (m *Metrics) SetState(state string) {
	for _, s := range m.states {
		if s != state {
			m.State.WithLabelValues(s).Set(0)
		}
	}
	m.State.WithLabelValues(state).Set(1)
}

// TrackFrame tracks the duration of handling one frame.
func (m *Metrics) TrackFrame(f func() error) error {
	start := time.Now()
	err := f()
	m.FrameDuration.Observe(time.Since(start).Seconds())
	return err
}

// New creates a Metrics instance registered with reg. states lists the
// stream state labels so the state gauge exposes all of them from the start.
func New(namespace string, reg prometheus.Registerer, states ...string) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		ConnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connect_attempts_total",
			Help:      "Total number of connection attempts to the event feed",
		}),
		Connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connects_total",
			Help:      "Total number of connections that received their initial snapshot",
		}),
		Disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "disconnects_total",
			Help:      "Total number of disconnects by reason",
		}, []string{"reason"}),
		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "Current stream state (1 for the active state label)",
		}, []string{"state"}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_received_total",
			Help:      "Total number of frames received by message type",
		}, []string{"type"}),
		FrameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frame_errors_total",
			Help:      "Total number of frames dropped by error kind",
		}, []string{"kind"}),
		FrameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frame_handle_seconds",
			Help:      "Time taken to decode and apply a frame",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		TasksRetained: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "tasks_retained",
			Help:      "Number of tasks currently held by the model store",
		}),
		states: states,
	}
	for _, s := range states {
		m.State.WithLabelValues(s).Set(0)
	}
	return m
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
