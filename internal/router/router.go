// Package router fans subscription state out to the rest of the watcher.
//
// Every transition updates the watch registry, is published to stream
// clients and recorded in metrics. Ready transitions are also queued as
// readings for the history writer.
package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flexifi/poolwatch/internal/buffer"
	"github.com/flexifi/poolwatch/internal/metrics"
	"github.com/flexifi/poolwatch/internal/model"
	"github.com/flexifi/poolwatch/internal/watch"
)

// Publisher receives rendered state, e.g. the stream hub.
type Publisher interface {
	Publish(watch string, st model.FetchState)
}

// Router routes state transitions from the poller to their consumers.
// It implements poller.StateHandler.
type Router struct {
	cfg      RouterConfig
	logger   *slog.Logger
	registry *watch.Registry
	pub      Publisher
	metrics  *metrics.Metrics

	// Input from the poller's forwarding goroutines
	input *buffer.Growable[StateEvent]

	// Output to the history writer
	history *buffer.Growable[model.Reading]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats RouterStats
}

// NewRouter creates a Router. pub and m may be nil.
func NewRouter(cfg RouterConfig, registry *watch.Registry, pub Publisher, m *metrics.Metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		pub:      pub,
		metrics:  m,
		input:    buffer.New[StateEvent](cfg.InputBufferSize),
		history:  buffer.New[model.Reading](cfg.HistoryBufferSize),
	}
}

// HandleState queues a transition for routing. It never blocks.
func (r *Router) HandleState(name string, st model.FetchState) {
	r.input.Send(StateEvent{Watch: name, State: st, ReceivedAt: time.Now()})
}

// History returns the buffer of Ready readings for the history writer.
func (r *Router) History() *buffer.Growable[model.Reading] {
	return r.history
}

// Start begins routing.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("state router started",
		"input_buffer", r.cfg.InputBufferSize,
		"history_buffer", r.cfg.HistoryBufferSize,
	)
	return nil
}

// Stop routes what is already queued, then stops.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info("stopping state router")

	r.input.Close()
	if r.cancel != nil {
		r.cancel()
	}

	// Wait for goroutine to finish
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("state router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("state router stop timed out")
		return ctx.Err()
	}
}

// Stats returns current router statistics.
func (r *Router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// routeLoop consumes the input buffer until it is closed and drained.
func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		ev, ok := r.input.Receive()
		if !ok {
			return
		}
		r.route(ev)
	}
}

// route delivers one event. Events for a watch are handled in order.
func (r *Router) route(ev StateEvent) {
	r.mu.Lock()
	r.stats.Received++
	r.mu.Unlock()

	if r.registry != nil {
		if _, err := r.registry.Update(ev.Watch, ev.State); err != nil {
			if errors.Is(err, watch.ErrUnknownWatch) {
				r.mu.Lock()
				r.stats.UnknownWatch++
				r.mu.Unlock()
			}
			r.logger.Warn("dropping state for unregistered watch", "watch", ev.Watch)
			return
		}
	}

	if r.pub != nil {
		r.pub.Publish(ev.Watch, ev.State)
	}
	r.metrics.ObserveState(ev.Watch, ev.State)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Routed++

	switch ev.State.Phase {
	case model.PhaseReady:
		r.stats.Ready++
		if r.cfg.DisableHistory {
			return
		}
		r.history.Send(model.Reading{
			ID:         uuid.New(),
			Watch:      ev.Watch,
			Block:      ev.State.Block,
			Raw:        ev.State.Raw,
			Value:      ev.State.Metric.Value,
			Ratio:      ev.State.Metric.Ratio,
			ObservedAt: ev.State.At,
		})
		r.stats.HistoryQueued++
	case model.PhaseFailed:
		r.stats.Failed++
		r.logger.Warn("watch failed", "watch", ev.Watch, "kind", ev.State.Err.Kind, "message", ev.State.Err.Message)
	}
}
