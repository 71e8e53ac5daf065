package router

import (
	"time"

	"github.com/flexifi/poolwatch/internal/model"
)

// RouterConfig holds configuration for the state router.
type RouterConfig struct {
	InputBufferSize   int // Default: 256
	HistoryBufferSize int // Default: 1000

	// DisableHistory skips queueing readings when nothing drains History.
	DisableHistory bool
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		InputBufferSize:   256,
		HistoryBufferSize: 1000,
	}
}

// StateEvent is one transition of one watch.
type StateEvent struct {
	Watch      string
	State      model.FetchState
	ReceivedAt time.Time
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	Received      int64
	Routed        int64
	Ready         int64
	Failed        int64
	UnknownWatch  int64
	HistoryQueued int64
}
