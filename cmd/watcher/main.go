package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flexifi/poolwatch/internal/chain"
	"github.com/flexifi/poolwatch/internal/config"
	"github.com/flexifi/poolwatch/internal/database"
	"github.com/flexifi/poolwatch/internal/metrics"
	"github.com/flexifi/poolwatch/internal/poller"
	"github.com/flexifi/poolwatch/internal/router"
	"github.com/flexifi/poolwatch/internal/server"
	"github.com/flexifi/poolwatch/internal/stream"
	"github.com/flexifi/poolwatch/internal/version"
	"github.com/flexifi/poolwatch/internal/watch"
	"github.com/flexifi/poolwatch/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/watcher.local.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
		os.Exit(2)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting watcher",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"rpc_url", cfg.Chain.RPCURL,
		"watches", len(cfg.Watches),
		"storage", cfg.Storage.Driver,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("watcher failed", "error", err)
		os.Exit(1)
	}
	logger.Info("watcher stopped")
}

func run(ctx context.Context, cfg *config.WatcherConfig, logger *slog.Logger) error {
	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	logger.Info("chain connected", "chain_id", chainID)

	registry := watch.NewRegistry()
	watches, err := buildWatches(cfg, client, registry, logger)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	hub := stream.NewHub(cfg.Server.AllowedOrigins, m, logger)
	hub.Start()
	defer hub.Stop()

	var store database.Store
	switch s, err := database.Open(ctx, cfg.Storage); {
	case errors.Is(err, database.ErrNoStorage):
		logger.Info("reading history disabled")
	case err != nil:
		return fmt.Errorf("open storage: %w", err)
	default:
		store = s
		defer store.Close()
		logger.Info("reading history enabled", "driver", cfg.Storage.Driver)
	}

	routerCfg := router.DefaultRouterConfig()
	routerCfg.HistoryBufferSize = cfg.Writers.BufferSize
	routerCfg.DisableHistory = store == nil
	rtr := router.NewRouter(routerCfg, registry, hub, m, logger)
	if err := rtr.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	var w *writer.ReadingWriter
	if store != nil {
		w = writer.NewReadingWriter(writer.WriterConfig{
			BatchSize:     cfg.Writers.BatchSize,
			FlushInterval: cfg.Writers.FlushInterval,
		}, rtr.History(), store, m, logger)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start writer: %w", err)
		}
	}

	p, err := poller.New(watches, rtr, logger)
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	srv := server.New(cfg.Server, cfg.Metrics.Path, server.Deps{
		Registry:  registry,
		Hub:       hub,
		Poller:    p,
		Store:     store,
		Portfolio: cfg.Portfolio,
		Gatherer:  promReg,
		Metrics:   m,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	logger.Info("watcher running",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.Server.Addr,
		"watches", p.Names(),
	)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = <-errCh
	case runErr = <-errCh:
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Producers first so the writer sees every reading before its final flush.
	p.Stop(shutdownCtx)
	rtr.Stop(shutdownCtx)
	if w != nil {
		w.Stop(shutdownCtx)
		stats := w.Stats()
		logger.Info("writer stopped", "inserts", stats.Inserts, "conflicts", stats.Conflicts, "errors", stats.Errors)
	}
	return runErr
}

// buildWatches resolves each configured watch to a contract reader and
// registers it.
func buildWatches(cfg *config.WatcherConfig, backend chain.Backend, registry *watch.Registry, logger *slog.Logger) ([]poller.Watch, error) {
	watches := make([]poller.Watch, 0, len(cfg.Watches))
	for _, wc := range cfg.Watches {
		address, contractABI, err := resolveContract(cfg.Chain, wc)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", wc.Name, err)
		}

		reader, err := chain.NewContractReader(backend, address, contractABI, wc.Function,
			chain.WithPollInterval(cfg.Chain.PollInterval),
			chain.WithLogger(logger.With("watch", wc.Name)),
		)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", wc.Name, err)
		}

		if err := registry.Register(watch.Info{
			Name:     wc.Name,
			Address:  address.Hex(),
			Function: wc.Function,
			Metric:   wc.MetricConfig(),
		}); err != nil {
			return nil, err
		}

		watches = append(watches, poller.Watch{
			Name:   wc.Name,
			Source: reader,
			Config: wc.PollConfig(cfg.Chain.Timeout),
		})
		logger.Info("watch configured", "watch", wc.Name, "address", address.Hex(), "function", wc.Function)
	}
	return watches, nil
}

func resolveContract(cc config.ChainConfig, wc config.WatchConfig) (common.Address, abi.ABI, error) {
	if wc.Contract != "" {
		d, err := chain.LoadDeployment(cc.DeploymentsDir, cc.Network, wc.Contract)
		if err != nil {
			return common.Address{}, abi.ABI{}, err
		}
		return d.Address, d.ABI, nil
	}

	parsed, err := chain.ViewABI(wc.Function)
	if err != nil {
		return common.Address{}, abi.ABI{}, err
	}
	return common.HexToAddress(wc.Address), parsed, nil
}
