package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flexifi/poolwatch/internal/config"
	"github.com/flexifi/poolwatch/internal/database"
	"github.com/flexifi/poolwatch/internal/metrics"
	"github.com/flexifi/poolwatch/internal/model"
	"github.com/flexifi/poolwatch/internal/poller"
	"github.com/flexifi/poolwatch/internal/stream"
	"github.com/flexifi/poolwatch/internal/watch"
)

// maxHistoryLimit caps ?limit= regardless of configuration.
const maxHistoryLimit = 1000

// Resubscriber restarts the subscription behind a watch.
type Resubscriber interface {
	Resubscribe(name string) error
	Subscription(name string) (*poller.Subscription, bool)
}

// Deps are the components the handlers read from.
type Deps struct {
	Registry  *watch.Registry
	Hub       *stream.Hub
	Poller    Resubscriber
	Store     database.Store // nil when history storage is disabled
	Portfolio model.Portfolio
	Gatherer  prometheus.Gatherer // nil disables the metrics route
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Server is the watcher HTTP surface.
type Server struct {
	cfg    config.ServerConfig
	path   string // metrics path
	deps   Deps
	logger *slog.Logger
	router chi.Router
}

// New creates a Server with all routes and middleware configured.
func New(cfg config.ServerConfig, metricsPath string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = config.DefaultHistoryLimit
	}
	cfg.HistoryLimit = min(cfg.HistoryLimit, maxHistoryLimit)
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	s := &Server{cfg: cfg, path: metricsPath, deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(logger, deps.Metrics))
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(chimw.Recoverer)
	s.router = r
	s.routes()

	return s
}

func (s *Server) routes() {
	r := s.router

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/watches", s.listWatches)
		r.Get("/watches/{name}", s.getWatch)
		r.Get("/watches/{name}/history", s.history)
		r.Post("/watches/{name}/resubscribe", s.resubscribe)
		r.Get("/portfolio", s.portfolio)
	})

	if s.deps.Hub != nil {
		r.Get("/ws", s.deps.Hub.ServeWS(stream.AllTopics))
		r.Get("/ws/{name}", s.serveWatchWS)
	}

	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, s.path, promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
