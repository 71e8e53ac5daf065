package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flexifi/poolwatch/internal/model"
)

const namespace = "poolwatch"

// Metrics holds every collector the watcher exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	Value         *prometheus.GaugeVec
	Ratio         *prometheus.GaugeVec
	LastBlock     *prometheus.GaugeVec
	StreamClients prometheus.Gauge

	WriterRows      prometheus.Counter
	WriterConflicts prometheus.Counter
	WriterFlushes   prometheus.Counter
	WriterErrors    prometheus.Counter
	BufferDepth     prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Subscription state transitions by watch and phase.",
		}, []string{"watch", "phase"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed states by watch and error kind.",
		}, []string{"watch", "kind"}),
		Value: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "value",
			Help:      "Latest derived display value.",
		}, []string{"watch"}),
		Ratio: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ratio_percent",
			Help:      "Latest progress ratio in percent.",
		}, []string{"watch"}),
		LastBlock: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_block",
			Help:      "Block of the latest ready reading.",
		}, []string{"watch"}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected websocket stream clients.",
		}),
		WriterRows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "rows_total",
			Help:      "Readings inserted into history.",
		}),
		WriterConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "conflicts_total",
			Help:      "Readings skipped because they were already stored.",
		}),
		WriterFlushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "flushes_total",
			Help:      "Successful batch flushes.",
		}),
		WriterErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "errors_total",
			Help:      "Failed batch flushes.",
		}),
		BufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "buffer_depth",
			Help:      "Readings waiting to be written.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveState records a subscription transition.
func (m *Metrics) ObserveState(watch string, st model.FetchState) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(watch, string(st.Phase)).Inc()
	switch st.Phase {
	case model.PhaseReady:
		m.Value.WithLabelValues(watch).Set(st.Metric.Value)
		m.Ratio.WithLabelValues(watch).Set(st.Metric.Ratio)
		if st.Block > 0 {
			m.LastBlock.WithLabelValues(watch).Set(float64(st.Block))
		}
	case model.PhaseFailed:
		m.Failures.WithLabelValues(watch, string(st.Err.Kind)).Inc()
	}
}

// ObserveFlush records one writer flush.
func (m *Metrics) ObserveFlush(rows, conflicts int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WriterErrors.Inc()
		return
	}
	m.WriterFlushes.Inc()
	m.WriterRows.Add(float64(rows - conflicts))
	m.WriterConflicts.Add(float64(conflicts))
}

// SetBufferDepth records the writer queue length.
func (m *Metrics) SetBufferDepth(n int) {
	if m == nil {
		return
	}
	m.BufferDepth.Set(float64(n))
}

// ClientConnected adjusts the stream client gauge by delta.
func (m *Metrics) ClientConnected(delta int) {
	if m == nil {
		return
	}
	m.StreamClients.Add(float64(delta))
}

// ObserveRequest records a finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
