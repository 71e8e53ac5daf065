package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flexifi/poolwatch/internal/api"
	"github.com/flexifi/poolwatch/internal/model"
	"github.com/flexifi/poolwatch/internal/stream"
	"github.com/flexifi/poolwatch/internal/version"
	"github.com/flexifi/poolwatch/internal/watch"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	h := api.Health{
		Status:  "ok",
		Build:   version.Get(),
		Watches: s.deps.Registry.Len(),
		Storage: "disabled",
	}

	status := http.StatusOK
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			s.logger.Warn("storage ping failed", "error", err)
			h.Status = "degraded"
			h.Storage = "down"
			status = http.StatusServiceUnavailable
		} else {
			h.Storage = "ok"
		}
	}
	writeJSON(w, status, h)
}

func (s *Server) listWatches(w http.ResponseWriter, r *http.Request) {
	entries := s.deps.Registry.List()
	out := api.WatchList{Watches: make([]api.Watch, 0, len(entries))}
	for _, e := range entries {
		out.Watches = append(out.Watches, toWatch(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getWatch(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toWatch(e))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "history storage is disabled")
		return
	}

	limit := s.cfg.HistoryLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be a positive integer, got %q", q))
			return
		}
		limit = min(n, s.cfg.HistoryLimit)
	}

	readings, err := s.deps.Store.ListReadings(r.Context(), e.Name, limit)
	if err != nil {
		s.logger.Error("list readings failed", "watch", e.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, api.History{Watch: e.Name, Readings: readings})
}

func (s *Server) resubscribe(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.deps.Poller == nil {
		writeError(w, http.StatusServiceUnavailable, "poller is not running")
		return
	}

	if err := s.deps.Poller.Resubscribe(e.Name); err != nil {
		s.logger.Warn("resubscribe failed", "watch", e.Name, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	resp := api.Resubscribed{Watch: e.Name}
	if sub, ok := s.deps.Poller.Subscription(e.Name); ok {
		resp.SubscriptionID = sub.ID().String()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) {
	p := s.deps.Portfolio
	if p.Holdings == nil {
		p.Holdings = []model.Holding{}
	}
	if p.Transactions == nil {
		p.Transactions = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) serveWatchWS(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.deps.Hub.ServeWS(e.Name)(w, r)
}

// lookup resolves {name} or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (watch.Entry, bool) {
	name := chi.URLParam(r, "name")
	e, ok := s.deps.Registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w %q", watch.ErrUnknownWatch, name).Error())
		return watch.Entry{}, false
	}
	return e, true
}

func toWatch(e watch.Entry) api.Watch {
	return api.Watch{Info: e.Info, View: stream.NewView(e.Name, e.State)}
}
