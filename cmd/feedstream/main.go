package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kazunetakeda25/feedstream/internal/cache"
	"github.com/kazunetakeda25/feedstream/internal/config"
	"github.com/kazunetakeda25/feedstream/internal/engine"
	"github.com/kazunetakeda25/feedstream/internal/metrics"
	"github.com/kazunetakeda25/feedstream/internal/provider"
	"github.com/kazunetakeda25/feedstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedstream.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedstream",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.Endpoint.WSURL,
		"cache_backend", cfg.Cache.Backend,
		"feeds", len(cfg.Feeds),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Set up the response cache
	store, err := buildCache(ctx, cfg.Cache, logger)
	if err != nil {
		logger.Error("failed to set up cache", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Metrics registry and reporter
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reporter := metrics.NewReporter(registry, logger.With("component", "metrics"))

	metricsServer := metrics.NewServer(registry, cfg.Metrics.Port, cfg.Metrics.Path)

	// Build the engine
	engineCfg := engine.Config{
		SubscriptionTTL:             cfg.Engine.SubscriptionTTL,
		SubscriptionUnresponsiveTTL: cfg.Engine.SubscriptionUnresponsiveTTL,
		CacheTTL:                    cfg.Cache.EntryTTL,
		QueueSize:                   cfg.Engine.QueueSize,
		EventBufferSize:             cfg.Engine.EventBufferSize,
		SocketBufferSize:            cfg.Engine.SocketBufferSize,
		PingTimeout:                 cfg.Endpoint.PingTimeout,
		WriteTimeout:                cfg.Endpoint.WriteTimeout,
		ReconnectEnabled:            cfg.Reconnect.Enabled,
		ReconnectBaseDelay:          cfg.Reconnect.BaseDelay,
		ReconnectMaxDelay:           cfg.Reconnect.MaxDelay,
	}

	eng := engine.New(engineCfg, store, logger.With("component", "engine"),
		engine.WithObserver(reporter),
	)

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	// Subscribe configured feeds
	handler := provider.NewFeedHandler(provider.ConnectionInfo{
		URL:    cfg.Endpoint.WSURL,
		APIKey: cfg.Endpoint.APIKey,
	})
	for _, f := range cfg.Feeds {
		input := provider.PairInput{Base: f.Base, Quote: f.Quote}
		if err := eng.Subscribe(handler, input); err != nil {
			logger.Error("failed to subscribe feed", "feed_id", input.CacheKey(), "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Drain engine events for operator visibility; the metrics reporter
	// already sees everything as an observer.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-eng.Events():
				if !ok {
					return nil
				}
				logger.Debug("engine event",
					"type", ev.Type,
					"conn_key", ev.ConnKey,
					"sub_key", ev.SubKey,
					"feed_id", ev.FeedID,
				)
			}
		}
	})

	logger.Info("feedstream running", "instance_id", cfg.Instance.ID)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Warn("engine stop", "error", err)
	}
	metricsServer.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("feedstream stopped")
}

// buildCache creates the configured cache backend.
func buildCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, err
		}
		logger.Info("redis cache connected", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		return cache.NewRedis(client, "feedstream"), nil

	default:
		logger.Info("using local in-process cache")
		return cache.NewLocal(), nil
	}
}
