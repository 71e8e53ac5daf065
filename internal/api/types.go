package api

import (
	"github.com/flexifi/poolwatch/internal/model"
	"github.com/flexifi/poolwatch/internal/stream"
	"github.com/flexifi/poolwatch/internal/version"
	"github.com/flexifi/poolwatch/internal/watch"
)

// Health is the /health response.
type Health struct {
	Status  string        `json:"status"` // "ok" or "degraded"
	Build   version.Build `json:"build"`
	Watches int           `json:"watches"`
	Storage string        `json:"storage"` // "ok", "down" or "disabled"
}

// Watch is a configured watch with its current view.
type Watch struct {
	watch.Info
	View stream.View `json:"view"`
}

// WatchList is the /api/v1/watches response.
type WatchList struct {
	Watches []Watch `json:"watches"`
}

// History is the /api/v1/watches/{name}/history response, newest first.
type History struct {
	Watch    string          `json:"watch"`
	Readings []model.Reading `json:"readings"`
}

// Resubscribed is the resubscribe response.
type Resubscribed struct {
	Watch          string `json:"watch"`
	SubscriptionID string `json:"subscription_id"`
}

// ErrorResponse is the body of every 4xx/5xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
