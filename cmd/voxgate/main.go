// voxgate is the real-time notification gateway for long-running
// speech-synthesis jobs: it holds client WebSocket connections open,
// routes task lifecycle events to the client that requested them, and
// runs the synthesis worker pool.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/connection"
	"github.com/voxgate/voxgate/internal/logging"
	"github.com/voxgate/voxgate/internal/protocol"
	"github.com/voxgate/voxgate/internal/router"
	"github.com/voxgate/voxgate/internal/server"
	"github.com/voxgate/voxgate/internal/store"
	"github.com/voxgate/voxgate/internal/synth"
	"github.com/voxgate/voxgate/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty = defaults)")
	envPath := flag.String("env", "", "path to .env file (empty = ./.env if present)")
	flag.Parse()

	// .env before config load so ${VAR} interpolation has values
	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			slog.Error("failed to load env file", "path", *envPath, "error", err)
			os.Exit(1)
		}
	} else {
		godotenv.Load()
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadAndValidate(*configPath)
	} else {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLogs, err := logging.New(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closeLogs()
	slog.SetDefault(logger)

	logger.Info("starting voxgate",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("voxgate failed", "error", err)
		os.Exit(1)
	}

	logger.Info("voxgate stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
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

	files := store.New(cfg.Storage, logger)
	if err := files.EnsureDirs(); err != nil {
		return err
	}

	registry := connection.NewRegistry(connection.Config{
		MaxConnections: cfg.Gateway.MaxConnections,
	}, logger)

	monitor := connection.NewMonitor(connection.MonitorConfig{
		SweepInterval:    cfg.Gateway.HeartbeatSweepInterval,
		HeartbeatTimeout: cfg.Gateway.HeartbeatTimeout,
		ProbeAfter:       cfg.Gateway.ProbeAfter,
	}, registry, logger)

	tasks := router.New(registry, logger)

	bridge := router.NewBridge(router.BridgeConfig{
		HandoffTimeout: cfg.Gateway.BridgeHandoffTimeout,
		BufferSize:     cfg.Gateway.BridgeBuffer,
	}, tasks, logger)

	engine := synth.NewEngine(synth.DefaultEngineConfig())
	pool := synth.NewPool(synth.PoolConfig{
		Workers:   cfg.Synth.Workers,
		QueueSize: cfg.Synth.QueueSize,
	}, engine, tasks, bridge, logger)

	srv := server.New(cfg.Server, cfg.Gateway.SendTimeout, registry, tasks, pool, files, logger)

	if err := bridge.Start(ctx); err != nil {
		return err
	}
	if err := pool.Start(ctx); err != nil {
		return err
	}
	if err := monitor.Start(ctx); err != nil {
		return err
	}

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-runCtx.Done()
		shutdown(srv, monitor, pool, bridge, registry, logger)
		return nil
	})

	logger.Info("voxgate running",
		"addr", cfg.Server.Host,
		"port", cfg.Server.Port,
		"max_connections", cfg.Gateway.MaxConnections,
	)

	return g.Wait()
}

// shutdown stops the components in dependency order: sweep first, then
// the workers and bridge, then every live connection, then the listener.
func shutdown(
	srv *server.Server,
	monitor *connection.Monitor,
	pool *synth.Pool,
	bridge *router.Bridge,
	registry *connection.Registry,
	logger *slog.Logger,
) {
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := monitor.Stop(shutdownCtx); err != nil {
		logger.Warn("monitor stop", "error", err)
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		logger.Warn("pool stop", "error", err)
	}
	if err := bridge.Stop(shutdownCtx); err != nil {
		logger.Warn("bridge stop", "error", err)
	}

	// Tell connected clients they are about to lose the channel, then
	// close every connection.
	if notice, err := protocol.NewStatus(false, 0).Encode(); err == nil {
		registry.Broadcast(notice)
	}
	registry.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
}
