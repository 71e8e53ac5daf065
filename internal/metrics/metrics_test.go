package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flexifi/poolwatch/internal/model"
)

func TestObserveState(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveState("pool", model.LoadingState())
	m.ObserveState("pool", model.ReadyState(model.DerivedMetric{Value: 30, Ratio: 60}, 12))
	m.ObserveState("pool", model.FailedState(model.ErrorInfo{Kind: model.SourceUnavailable, Message: "down"}))

	if got := testutil.ToFloat64(m.Ratio.WithLabelValues("pool")); got != 60 {
		t.Errorf("ratio = %v, want 60", got)
	}
	if got := testutil.ToFloat64(m.Value.WithLabelValues("pool")); got != 30 {
		t.Errorf("value = %v, want 30", got)
	}
	if got := testutil.ToFloat64(m.LastBlock.WithLabelValues("pool")); got != 12 {
		t.Errorf("last block = %v, want 12", got)
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("pool", "source_unavailable")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("pool", "loading")); got != 1 {
		t.Errorf("loading transitions = %v, want 1", got)
	}
}

func TestObserveFlush(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFlush(10, 2, nil)
	m.ObserveFlush(5, 0, errors.New("db down"))

	if got := testutil.ToFloat64(m.WriterRows); got != 8 {
		t.Errorf("rows = %v, want 8", got)
	}
	if got := testutil.ToFloat64(m.WriterConflicts); got != 2 {
		t.Errorf("conflicts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.WriterErrors); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WriterFlushes); got != 1 {
		t.Errorf("flushes = %v, want 1", got)
	}
}

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRequest("GET", "/api/v1/watches/{name}", 404, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/watches/{name}", "404")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveState("pool", model.IdleState())
	m.ObserveFlush(1, 0, nil)
	m.ClientConnected(1)
	m.SetBufferDepth(3)
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
}
