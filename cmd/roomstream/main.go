// Package main implements the entry point for the roomstream service:
// an RFID door-telemetry pipeline that consumes hotel device events over
// MQTT, maintains live room state, and serves it over WebSocket and HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/coastalgrand/roomstream/broadcast"
	"github.com/coastalgrand/roomstream/cache"
	"github.com/coastalgrand/roomstream/component"
	"github.com/coastalgrand/roomstream/config"
	"github.com/coastalgrand/roomstream/engine"
	"github.com/coastalgrand/roomstream/gateway"
	"github.com/coastalgrand/roomstream/ingress"
	"github.com/coastalgrand/roomstream/metric"
	"github.com/coastalgrand/roomstream/store"
	"github.com/coastalgrand/roomstream/store/memstore"
	"github.com/coastalgrand/roomstream/store/mongostore"
	"github.com/coastalgrand/roomstream/telemetry"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "roomstream"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting roomstream",
		"version", Version,
		"build_time", BuildTime,
		"environment", cfg.App.Environment,
		"store", cfg.Store.Type,
		"cache", cfg.Cache.Type)

	ctx := context.Background()

	deps := &component.Dependencies{
		MetricsRegistry: metric.NewMetricsRegistry(),
		Logger:          logger,
	}

	stores, closeStore, err := setupStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rooms, closeCache, err := setupCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	components, err := buildComponents(cfg, stores, rooms, deps)
	if err != nil {
		return err
	}

	return runWithSignalHandling(ctx, components, cfg.App.ShutdownTimeout)
}

// loadConfig loads environment configuration and applies CLI overrides.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	var envFiles []string
	if cliCfg.EnvFile != "" {
		envFiles = append(envFiles, cliCfg.EnvFile)
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.LogLevel != "" {
		cfg.App.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.App.LogFormat = cliCfg.LogFormat
	}
	return cfg, nil
}

// setupStores connects the configured persistence backend and seeds the
// hotel catalog. The returned closer disconnects mongo when in use.
func setupStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Stores, func(), error) {
	var stores store.Stores
	closer := func() {}

	switch cfg.Store.Type {
	case "mongo":
		ms, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Store.MongoURI,
			Database: cfg.Store.MongoDatabase,
		}, logger)
		if err != nil {
			return store.Stores{}, nil, fmt.Errorf("connect mongo: %w", err)
		}
		stores = ms.Stores()
		closer = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ms.Close(closeCtx); err != nil {
				slog.Error("mongo disconnect failed", "error", err)
			}
		}
	default:
		stores = memstore.New().Stores()
	}

	if cfg.Store.Seed {
		if err := store.Seed(ctx, stores, logger); err != nil {
			closer()
			return store.Stores{}, nil, fmt.Errorf("seed store: %w", err)
		}
	}

	return stores, closer, nil
}

// setupCache builds the room-list cache over the configured backend.
func setupCache(ctx context.Context, cfg *config.Config) (*gateway.RoomCache, func(), error) {
	var backend cache.Cache

	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		backend = rc
	default:
		backend = cache.NewMemoryCache()
	}

	closer := func() {
		if err := backend.Close(); err != nil {
			slog.Error("cache close failed", "error", err)
		}
	}
	return gateway.NewRoomCache(backend, cfg.Cache.TTL), closer, nil
}

// buildComponents wires the full pipeline: broadcaster, processing
// pipeline, MQTT ingress adapters, and the HTTP gateway. Order matters:
// components start in slice order and stop in reverse.
func buildComponents(
	cfg *config.Config,
	stores store.Stores,
	rooms *gateway.RoomCache,
	deps *component.Dependencies,
) ([]component.LifecycleComponent, error) {
	broadcaster, err := broadcast.NewBroadcaster(broadcast.Config{
		Addr: cfg.Broadcast.Addr,
		Path: cfg.Broadcast.Path,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("create broadcaster: %w", err)
	}

	normalizer := telemetry.NewNormalizer(cfg.Ingress.BrokerHost())

	pipeline, err := engine.NewPipeline(engine.PipelineConfig{
		Workers:   cfg.Pipeline.Workers,
		QueueSize: cfg.Pipeline.QueueSize,
	}, stores, broadcaster, normalizer, deps,
		engine.WithRoomCacheInvalidator(rooms))
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	components := []component.LifecycleComponent{broadcaster, pipeline}
	watched := []component.Discoverable{broadcaster, pipeline}

	// Embedded broker for development, so devices on the LAN can publish
	// without a cloud broker.
	if cfg.App.IsDevelopment() && !cfg.Ingress.LocalDisabled {
		local, err := ingress.NewLocal(ingress.LocalConfig{
			Addr: cfg.Ingress.LocalAddr,
		}, pipeline.Submit, deps)
		if err != nil {
			return nil, fmt.Errorf("create local ingress: %w", err)
		}
		components = append(components, local)
		watched = append(watched, local)
	}

	remote, err := ingress.NewRemote(ingress.RemoteConfig{
		BrokerURL: cfg.Ingress.BrokerURL,
		ClientID:  cfg.Ingress.ClientID,
	}, pipeline.Submit, deps)
	if err != nil {
		return nil, fmt.Errorf("create remote ingress: %w", err)
	}
	components = append(components, remote)
	watched = append(watched, remote)

	server, err := gateway.NewServer(gateway.Config{
		Addr:         cfg.Gateway.Addr,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
	}, stores, rooms, watched, deps)
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}
	components = append(components, server)

	return components, nil
}

// runWithSignalHandling starts every component, waits for SIGINT or
// SIGTERM, then stops them in reverse order.
func runWithSignalHandling(ctx context.Context, components []component.LifecycleComponent, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	started := make([]component.LifecycleComponent, 0, len(components))
	for _, c := range components {
		name := c.Meta().Name
		if err := c.Initialize(); err != nil {
			stopAll(started, shutdownTimeout)
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		if err := c.Start(signalCtx); err != nil {
			stopAll(started, shutdownTimeout)
			return fmt.Errorf("start %s: %w", name, err)
		}
		started = append(started, c)
		slog.Info("component started", "name", name)
	}

	slog.Info("roomstream started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	stopAll(started, shutdownTimeout)
	slog.Info("roomstream shutdown complete")
	return nil
}

// stopAll stops components in reverse start order. Failures are logged,
// not propagated: every component gets its stop attempt.
func stopAll(components []component.LifecycleComponent, timeout time.Duration) {
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.Stop(timeout); err != nil {
			slog.Error("component stop failed", "name", c.Meta().Name, "error", err)
		}
	}
}
