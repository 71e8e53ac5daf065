package connection

import (
	"errors"
	"time"

	"github.com/flexifi/poolwatch/internal/stream"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Update is a decoded stream frame.
type Update struct {
	Topic      string
	View       stream.View
	ReceivedAt time.Time
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // e.g. ws://localhost:8080/ws/pool
	Origin       string        // Origin header; empty sends none
	PingTimeout  time.Duration // Max time without ping before considering connection stale
	WriteTimeout time.Duration // Write deadline for control frames
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults. The server pings every
// 54s, so PingTimeout leaves room for one missed ping.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// FollowerConfig configures a Follower.
type FollowerConfig struct {
	Client            ClientConfig
	ReconnectBaseWait time.Duration // Base wait time for reconnection
	ReconnectMaxWait  time.Duration // Max wait time for reconnection
	BufferSize        int           // Buffer size for the Updates channel
}

// DefaultFollowerConfig returns sensible defaults.
func DefaultFollowerConfig() FollowerConfig {
	return FollowerConfig{
		Client:            DefaultClientConfig(),
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  30 * time.Second,
		BufferSize:        256,
	}
}
