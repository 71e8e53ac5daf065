// streamtail follows a watcher's live stream and prints each update.
// Usage: go run ./cmd/streamtail -server http://localhost:8080 -watch pool
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flexifi/poolwatch/internal/api"
	"github.com/flexifi/poolwatch/internal/connection"
	"github.com/flexifi/poolwatch/internal/model"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "watcher base URL")
	watchName := flag.String("watch", "", "watch to follow (default: all)")
	history := flag.Int("history", 0, "print this many stored readings before following")
	verbose := flag.Bool("verbose", false, "print full update JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	client := api.NewClient(*serverURL, api.WithLogger(logger))

	health, err := client.Health(ctx)
	if err != nil {
		logger.Error("watcher unreachable", "server", *serverURL, "error", err)
		os.Exit(1)
	}
	logger.Info("connected to watcher",
		"version", health.Build.Version,
		"watches", health.Watches,
		"storage", health.Storage,
	)

	if *history > 0 {
		if err := printHistory(ctx, client, *watchName, *history); err != nil {
			logger.Warn("history unavailable", "error", err)
		}
	}

	wsURL, err := streamURL(*serverURL, *watchName)
	if err != nil {
		logger.Error("invalid server URL", "error", err)
		os.Exit(1)
	}

	cfg := connection.DefaultFollowerConfig()
	cfg.Client.URL = wsURL
	follower := connection.NewFollower(cfg, logger)
	if err := follower.Start(ctx); err != nil {
		logger.Error("failed to follow stream", "url", wsURL, "error", err)
		os.Exit(1)
	}

	statsTicker := time.NewTicker(time.Minute)
	defer statsTicker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case u, ok := <-follower.Updates():
			if !ok {
				break loop
			}
			printUpdate(u, *verbose)
		case <-statsTicker.C:
			s := follower.Stats()
			logger.Info("stream stats",
				"connected", s.Connected,
				"received", s.Received,
				"dropped", s.Dropped,
				"reconnects", s.Reconnects,
			)
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	follower.Stop(stopCtx)
}

// streamURL maps http(s)://host to ws(s)://host/ws[/name].
func streamURL(base, name string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	if name != "" {
		u.Path += "/" + url.PathEscape(name)
	}
	return u.String(), nil
}

func printHistory(ctx context.Context, client *api.Client, name string, limit int) error {
	names := []string{name}
	if name == "" {
		watches, err := client.Watches(ctx)
		if err != nil {
			return err
		}
		names = names[:0]
		for _, w := range watches {
			names = append(names, w.Name)
		}
	}

	for _, n := range names {
		readings, err := client.History(ctx, n, limit)
		if err != nil {
			return fmt.Errorf("%s: %w", n, err)
		}
		// Oldest first so the stream continues the listing.
		for i := len(readings) - 1; i >= 0; i-- {
			r := readings[i]
			fmt.Printf("%s %-12s history  value=%-12s width=%.0f%% block=%d\n",
				r.ObservedAt.Local().Format(time.TimeOnly), r.Watch,
				model.DerivedMetric{Value: r.Value, Ratio: r.Ratio}.Display(), r.Ratio, r.Block)
		}
	}
	return nil
}

func printUpdate(u connection.Update, verbose bool) {
	if verbose {
		data, _ := json.Marshal(u.View)
		fmt.Printf("%s %s\n", u.ReceivedAt.Format(time.TimeOnly), data)
		return
	}

	v := u.View
	switch v.Status {
	case model.PhaseReady:
		fmt.Printf("%s %-12s %-8s value=%-12s width=%-5s block=%d\n",
			u.ReceivedAt.Format(time.TimeOnly), v.Watch, v.Status, v.Value, v.Width, v.Block)
	case model.PhaseFailed:
		kind, msg := "", ""
		if v.Error != nil {
			kind, msg = string(v.Error.Kind), v.Error.Message
		}
		fmt.Printf("%s %-12s %-8s %s: %s\n",
			u.ReceivedAt.Format(time.TimeOnly), v.Watch, v.Status, kind, msg)
	default:
		fmt.Printf("%s %-12s %s\n", u.ReceivedAt.Format(time.TimeOnly), v.Watch, v.Status)
	}
}
