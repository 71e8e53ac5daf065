package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flexifi/poolwatch/internal/stream"
)

// FollowerStats provides statistics about a Follower.
type FollowerStats struct {
	Connected  bool
	Received   int64
	Dropped    int64
	Malformed  int64
	Reconnects int64
}

// Follower keeps a stream connection open and decodes its frames.
type Follower struct {
	cfg    FollowerConfig
	logger *slog.Logger

	newClient func(ClientConfig, *slog.Logger) Client

	updates chan Update

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	client Client

	received   atomic.Int64
	dropped    atomic.Int64
	malformed  atomic.Int64
	reconnects atomic.Int64
}

// NewFollower creates a Follower for cfg.Client.URL.
func NewFollower(cfg FollowerConfig, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultFollowerConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = cfg.ReconnectBaseWait
	}
	return &Follower{
		cfg:       cfg,
		logger:    logger,
		newClient: NewClient,
		updates:   make(chan Update, cfg.BufferSize),
	}
}

// Start dials the stream. The first connection must succeed; later drops
// are retried in the background until Stop.
func (f *Follower) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	c := f.newClient(f.cfg.Client, f.logger)
	if err := c.Connect(f.ctx); err != nil {
		f.cancel()
		return fmt.Errorf("connect stream: %w", err)
	}
	f.setClient(c)

	f.wg.Add(1)
	go f.readLoop(c)

	f.logger.Info("following stream", "url", f.cfg.Client.URL)
	return nil
}

// Stop closes the connection and waits for background goroutines.
// Updates is closed once Stop returns.
func (f *Follower) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}

	f.mu.Lock()
	if f.client != nil {
		f.client.Close()
	}
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		f.logger.Warn("shutdown timeout, forcing close")
		return ctx.Err()
	}

	close(f.updates)
	return nil
}

// Updates returns decoded stream frames.
func (f *Follower) Updates() <-chan Update {
	return f.updates
}

// Stats returns current statistics.
func (f *Follower) Stats() FollowerStats {
	f.mu.Lock()
	connected := f.client != nil && f.client.IsConnected()
	f.mu.Unlock()

	return FollowerStats{
		Connected:  connected,
		Received:   f.received.Load(),
		Dropped:    f.dropped.Load(),
		Malformed:  f.malformed.Load(),
		Reconnects: f.reconnects.Load(),
	}
}

func (f *Follower) setClient(c Client) {
	f.mu.Lock()
	f.client = c
	f.mu.Unlock()
}

func (f *Follower) readLoop(c Client) {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			c.Close()
			return

		case err := <-c.Errors():
			f.logger.Warn("stream error", "error", err)
			// Frames read before the error are still queued.
			c.Close()
			for msg := range c.Messages() {
				f.deliver(msg)
			}
			if f.ctx.Err() != nil {
				return
			}
			f.wg.Add(1)
			go f.reconnect(c)
			return

		case msg, ok := <-c.Messages():
			if !ok {
				if f.ctx.Err() != nil {
					return
				}
				f.wg.Add(1)
				go f.reconnect(c)
				return
			}
			f.deliver(msg)
		}
	}
}

func (f *Follower) deliver(msg TimestampedMessage) {
	var m stream.Message
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		f.malformed.Add(1)
		f.logger.Debug("malformed frame", "error", err)
		return
	}
	f.received.Add(1)

	u := Update{Topic: m.Topic, View: m.Data, ReceivedAt: msg.ReceivedAt}
	select {
	case f.updates <- u:
	case <-f.ctx.Done():
	default:
		f.dropped.Add(1)
		f.logger.Warn("update buffer full, dropping", "topic", m.Topic)
	}
}

// reconnect replaces old with a fresh client, backing off exponentially.
func (f *Follower) reconnect(old Client) {
	defer f.wg.Done()

	old.Close()

	wait := f.cfg.ReconnectBaseWait
	maxWait := f.cfg.ReconnectMaxWait

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-time.After(wait):
		}

		f.logger.Info("attempting reconnection", "url", f.cfg.Client.URL)

		c := f.newClient(f.cfg.Client, f.logger)
		if err := c.Connect(f.ctx); err != nil {
			f.logger.Warn("reconnection failed", "error", err, "retry_in", wait)

			wait *= 2
			if wait > maxWait {
				wait = maxWait
			}
			continue
		}

		if f.ctx.Err() != nil {
			c.Close()
			return
		}
		f.setClient(c)
		f.reconnects.Add(1)
		f.logger.Info("reconnected", "url", f.cfg.Client.URL)

		f.wg.Add(1)
		go f.readLoop(c)
		return
	}
}
