package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flexifi/poolwatch/internal/buffer"
	"github.com/flexifi/poolwatch/internal/metric"
	"github.com/flexifi/poolwatch/internal/model"
)

// Change is a notification that the watched value may have changed.
type Change struct {
	Block uint64 // block number, 0 for interval ticks
	Err   error  // non-nil when the notification feed failed
}

// Source is a read-only on-chain quantity.
type Source interface {
	// Read returns the current value.
	Read(ctx context.Context) (model.RawReading, error)

	// Changes notifies on every new block or interval tick until ctx is done.
	// The channel is closed when the feed stops.
	Changes(ctx context.Context) (<-chan Change, error)
}

// PollConfig holds per-subscription options.
type PollConfig struct {
	Metric      metric.Config
	Watch       bool          // re-read on every change; false = one-shot
	ReadTimeout time.Duration // per-read timeout, 0 = none
}

// DefaultPollConfig returns maxValue=100, watch=true.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Metric:      metric.DefaultConfig(),
		Watch:       true,
		ReadTimeout: 10 * time.Second,
	}
}

// Option configures a Subscription.
type Option func(*Subscription)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subscription) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStateBuffer sets the initial capacity of the state sequence buffer.
func WithStateBuffer(n int) Option {
	return func(s *Subscription) {
		s.bufferSize = n
	}
}

// ErrFeedClosed is reported when a change feed stops while still subscribed.
var ErrFeedClosed = errors.New("change feed closed")

// Subscription is the handle returned by Subscribe. Each subscription owns
// its own state, goroutine and change feed.
type Subscription struct {
	id         uuid.UUID
	src        Source
	cfg        PollConfig
	logger     *slog.Logger
	bufferSize int

	mu       sync.Mutex
	state    model.FetchState
	released bool
	states   *buffer.Growable[model.FetchState]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe validates cfg, moves the new handle from Idle to Loading and
// starts reading src in the background. Invalid configuration fails fast
// with an error wrapping model.ErrInvalidConfig.
func Subscribe(ctx context.Context, src Source, cfg PollConfig, opts ...Option) (*Subscription, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is required", model.ErrInvalidConfig)
	}
	if err := cfg.Metric.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout < 0 {
		return nil, fmt.Errorf("%w: read_timeout must be >= 0", model.ErrInvalidConfig)
	}

	s := &Subscription{
		id:         uuid.New(),
		src:        src,
		cfg:        cfg,
		logger:     slog.Default(),
		bufferSize: 8,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("subscription", s.id)
	s.states = buffer.New[model.FetchState](s.bufferSize)
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.transition(model.IdleState())
	s.transition(model.LoadingState())

	go s.run()

	return s, nil
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// State returns the most recent state.
func (s *Subscription) State() model.FetchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Released reports whether Release has been called.
func (s *Subscription) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Next blocks for the next transition. It returns false once the
// subscription is released and every transition recorded before the
// release has been consumed.
func (s *Subscription) Next() (model.FetchState, bool) {
	return s.states.Receive()
}

// TryNext returns the next transition without blocking.
func (s *Subscription) TryNext() (model.FetchState, bool) {
	return s.states.TryReceive()
}

// Done is closed when the background goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Release stops notifications and frees the change feed. It is idempotent
// and safe from any state; once it returns no further transition is recorded.
func (s *Subscription) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.state = model.IdleState()
	s.mu.Unlock()

	s.cancel()
	s.states.Close()
	s.logger.Debug("subscription released")
}

// run is the subscription's single goroutine. Reads and transitions are
// serialized here, so transitions follow notification order.
func (s *Subscription) run() {
	defer close(s.done)

	var changes <-chan Change
	if s.cfg.Watch {
		ch, err := s.src.Changes(s.ctx)
		if err != nil {
			s.fail(err)
			return
		}
		changes = ch
	}

	if !s.refresh(0) || !s.cfg.Watch {
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			s.Release()
			return
		case c, ok := <-changes:
			if !ok {
				if s.ctx.Err() == nil {
					s.fail(ErrFeedClosed)
				}
				return
			}
			c = latest(changes, c)
			if c.Err != nil {
				s.fail(c.Err)
				return
			}
			if !s.refresh(c.Block) {
				return
			}
		}
	}
}

// refresh reads the source and records Ready or Failed. Returns false when
// the subscription should stop.
func (s *Subscription) refresh(block uint64) bool {
	ctx := s.ctx
	if s.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.cfg.ReadTimeout)
		defer cancel()
	}

	raw, err := s.src.Read(ctx)
	if err != nil {
		s.fail(err)
		return false
	}

	m, err := metric.Derive(raw, s.cfg.Metric)
	if err != nil {
		s.fail(err)
		return false
	}
	if raw.IsNull() {
		s.logger.Warn("undecodable reading coerced to zero", "raw", raw.Text, "block", block)
	}

	st := model.ReadyState(m, block)
	st.Raw = raw.String()
	return s.transition(st)
}

func (s *Subscription) fail(err error) {
	if s.ctx.Err() != nil {
		// The owner cancelled the parent context; that is a release, not a failure.
		s.Release()
		return
	}
	info := model.ClassifyError(err)
	if s.transition(model.FailedState(info)) {
		s.logger.Warn("subscription failed", "kind", info.Kind, "error", err)
	}
}

// transition records st unless the subscription has been released.
func (s *Subscription) transition(st model.FetchState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return false
	}
	s.state = st
	s.states.Send(st)
	return true
}

// latest drains already-queued changes so only the newest one is read.
// An error anywhere in the backlog wins.
func latest(ch <-chan Change, c Change) Change {
	for {
		select {
		case next, ok := <-ch:
			if !ok {
				return c
			}
			if c.Err == nil {
				c = next
			}
		default:
			return c
		}
	}
}
