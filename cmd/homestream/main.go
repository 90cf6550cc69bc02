// Package main implements the homestream discovery bridge. It connects to a
// NATS broker, runs a discovery session over the configuration topic tree
// and logs every component it finds.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/c360/homestream/component"
	"github.com/c360/homestream/config"
	"github.com/c360/homestream/discovery"
	"github.com/c360/homestream/metric"
	"github.com/c360/homestream/topic"
	"github.com/c360/homestream/transport"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "homestream"
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

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting homestream discovery bridge",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"broker", cfg.NATS.URL,
		"topic_prefix", cfg.Discovery.TopicPrefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := metric.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry, logger)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(context.Background()); err != nil {
				slog.Warn("Metrics server shutdown failed", "error", err)
			}
		}()
	}

	conn, err := transport.NewConn(cfg.NATS.URL,
		transport.WithName(cfg.NATS.Name),
		transport.WithLogger(logger),
		transport.WithMetrics(metrics),
		transport.WithMaxReconnects(cfg.NATS.MaxReconnects),
		transport.WithReconnectWait(cfg.NATS.ReconnectWait.Std()),
		transport.WithTimeout(cfg.NATS.Timeout.Std()),
		transport.WithDrainTimeout(cfg.NATS.DrainTimeout.Std()),
	)
	if err != nil {
		return fmt.Errorf("configure broker connection: %w", err)
	}
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer func() {
		if err := conn.Close(context.Background()); err != nil {
			slog.Warn("Broker connection close failed", "error", err)
		}
	}()

	return runDiscovery(ctx, cfg, conn, metrics)
}

// runDiscovery runs one discovery session to completion, stopping it early
// on SIGINT or SIGTERM.
func runDiscovery(ctx context.Context, cfg *config.Config, conn transport.Connection, metrics *metric.Metrics) error {
	session := discovery.NewSession(cfg.Platform.ID, component.DefaultRegistry(),
		discovery.WithLogger(slog.Default()),
		discovery.WithMetrics(metrics),
	)

	observer := discovery.ObserverFunc(func(id topic.ID, c component.Component) {
		meta := c.Meta()
		slog.Info("Component discovered",
			"kind", meta.Kind,
			"name", meta.Name,
			"unique_id", meta.UniqueID,
			"topic", id.String())
	})

	spec := topic.ID{
		Prefix:    cfg.Discovery.TopicPrefix,
		Component: cfg.Discovery.Component,
	}

	completion, err := session.Start(conn, cfg.Discovery.Duration.Std(), spec, observer)
	if err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received, stopping discovery")
			session.Stop()
		case <-completion.Done():
		}
		return nil
	})
	g.Go(func() error {
		err := completion.Await(context.Background())
		switch {
		case err == nil:
			slog.Info("Discovery window closed")
			return nil
		case stderrors.Is(err, discovery.ErrStopped):
			slog.Info("Discovery stopped")
			return nil
		default:
			return fmt.Errorf("discovery failed: %w", err)
		}
	})
	return g.Wait()
}

// loadConfiguration reads the config file when one was given and falls back
// to defaults (plus environment overrides) otherwise.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	if cliCfg.ConfigPath == "" {
		cfg := config.Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("default config invalid: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
