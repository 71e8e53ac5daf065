package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flexifi/poolwatch/internal/buffer"
	"github.com/flexifi/poolwatch/internal/database"
	"github.com/flexifi/poolwatch/internal/metrics"
	"github.com/flexifi/poolwatch/internal/model"
)

// ReadingWriter consumes readings from the router buffer and writes them to
// the history store.
type ReadingWriter struct {
	cfg    WriterConfig
	logger *slog.Logger
	prom   *metrics.Metrics
	input  *buffer.Growable[model.Reading]
	store  database.Store

	// Batching
	batch       []model.Reading
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewReadingWriter creates a new ReadingWriter. prom may be nil.
func NewReadingWriter(
	cfg WriterConfig,
	input *buffer.Growable[model.Reading],
	store database.Store,
	prom *metrics.Metrics,
	logger *slog.Logger,
) *ReadingWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &ReadingWriter{
		cfg:    cfg,
		input:  input,
		store:  store,
		prom:   prom,
		logger: logger,
		batch:  make([]model.Reading, 0, cfg.BatchSize),
	}
}

// Start begins consuming readings and writing them to the store.
func (w *ReadingWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("reading writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts the writer down, writing whatever is still queued.
func (w *ReadingWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping reading writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("reading writer stopped")
	case <-ctx.Done():
		w.logger.Warn("reading writer stop timed out")
	}

	// Final drain and flush
	for _, r := range w.input.DrainTo(0) {
		w.append(r)
	}
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *ReadingWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *ReadingWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			r, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			if w.append(r) {
				w.flush(w.ctx)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *ReadingWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// append adds r to the batch and reports whether the batch is full.
func (w *ReadingWriter) append(r model.Reading) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, r)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current batch to the store. A failed batch is dropped.
func (w *ReadingWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]model.Reading, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	w.prom.SetBufferDepth(w.input.Len())
	start := time.Now()

	conflicts, err := w.store.InsertReadings(ctx, batch)
	w.prom.ObserveFlush(len(batch), conflicts, err)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed readings",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}
