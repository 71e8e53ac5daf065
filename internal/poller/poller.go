package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flexifi/poolwatch/internal/model"
)

// Watch is a named source to keep subscribed.
type Watch struct {
	Name   string
	Source Source
	Config PollConfig
}

// StateHandler receives every transition of every watch.
type StateHandler interface {
	HandleState(watch string, state model.FetchState)
}

// StateHandlerFunc is a function adapter for StateHandler.
type StateHandlerFunc func(watch string, state model.FetchState)

func (f StateHandlerFunc) HandleState(watch string, state model.FetchState) {
	f(watch, state)
}

// Poller keeps one subscription per watch and forwards transitions.
type Poller struct {
	watches map[string]Watch
	order   []string
	handler StateHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	subs map[string]*Subscription

	locks map[string]*watchLock
}

// watchLock serializes work on one watch. resub orders Resubscribe calls;
// deliver is held while a transition is handed to the handler, so a
// released subscription never delivers after its replacement starts.
type watchLock struct {
	resub   sync.Mutex
	deliver sync.Mutex
}

// New creates a Poller. Watch names must be unique.
func New(watches []Watch, handler StateHandler, logger *slog.Logger) (*Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		watches: make(map[string]Watch, len(watches)),
		handler: handler,
		logger:  logger,
		subs:    make(map[string]*Subscription, len(watches)),
		locks:   make(map[string]*watchLock, len(watches)),
	}
	for _, w := range watches {
		if _, dup := p.watches[w.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate watch %q", model.ErrInvalidConfig, w.Name)
		}
		p.watches[w.Name] = w
		p.locks[w.Name] = &watchLock{}
		p.order = append(p.order, w.Name)
	}
	return p, nil
}

// Start subscribes every watch. A configuration error on any watch aborts
// Start and releases the subscriptions made so far.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for _, name := range p.order {
		if err := p.subscribe(name); err != nil {
			p.releaseAll()
			return fmt.Errorf("subscribe %s: %w", name, err)
		}
	}

	p.logger.Info("poller started", "watches", len(p.order))
	return nil
}

// Stop releases every subscription and waits for forwarding to finish.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.releaseAll()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resubscribe releases the current subscription for name and starts a new
// one. This is how callers recover from a Failed state.
func (p *Poller) Resubscribe(name string) error {
	if _, ok := p.watches[name]; !ok {
		return fmt.Errorf("unknown watch %q", name)
	}
	if p.ctx == nil || p.ctx.Err() != nil {
		return fmt.Errorf("poller not running")
	}

	lock := p.locks[name]
	lock.resub.Lock()
	defer lock.resub.Unlock()

	p.mu.Lock()
	old := p.subs[name]
	p.mu.Unlock()
	if old != nil {
		lock.deliver.Lock()
		old.Release()
		lock.deliver.Unlock()
	}

	p.logger.Info("resubscribing watch", "watch", name)
	return p.subscribe(name)
}

// Subscription returns the active subscription for name.
func (p *Poller) Subscription(name string) (*Subscription, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.subs[name]
	return s, ok
}

// Names returns watch names in configuration order.
func (p *Poller) Names() []string {
	return append([]string(nil), p.order...)
}

func (p *Poller) subscribe(name string) error {
	w := p.watches[name]
	sub, err := Subscribe(p.ctx, w.Source, w.Config, WithLogger(p.logger.With("watch", name)))
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.subs[name] = sub
	p.mu.Unlock()

	p.wg.Add(1)
	go p.forward(name, sub)
	return nil
}

// forward hands transitions to the handler until the subscription is
// released. Transitions still queued on a released subscription are stale
// and dropped.
func (p *Poller) forward(name string, sub *Subscription) {
	defer p.wg.Done()

	lock := p.locks[name]
	for {
		st, ok := sub.Next()
		if !ok {
			return
		}
		if !p.deliver(lock, name, sub, st) {
			return
		}
	}
}

func (p *Poller) deliver(lock *watchLock, name string, sub *Subscription, st model.FetchState) bool {
	lock.deliver.Lock()
	defer lock.deliver.Unlock()

	if sub.Released() {
		return false
	}
	if p.handler != nil {
		p.handler.HandleState(name, st)
	}
	return true
}

func (p *Poller) releaseAll() {
	p.mu.Lock()
	subs := make([]*Subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		s.Release()
	}
}
