package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/easternanemone/daqstreams/config"
	"github.com/easternanemone/daqstreams/drivers"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/manager"
	"github.com/easternanemone/daqstreams/measurement"
	"github.com/easternanemone/daqstreams/metric"
)

// newRunCmd creates the run subcommand: bring up every configured
// instrument and serve until interrupted.
func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the acquisition daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "daq.yaml", "path to configuration file")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	registry := instrument.NewRegistry()
	if err := drivers.RegisterAll(registry); err != nil {
		return err
	}

	metricsRegistry := metric.NewRegistry()
	mgr := manager.New(registry, cfg.DistributorSettings(), logger,
		manager.WithMetrics(metricsRegistry.Core()),
		manager.WithShutdownTimeout(cfg.Manager.ShutdownTimeout.Std()),
		manager.WithCommandTimeout(cfg.Manager.CommandTimeout.Std()),
		manager.WithRespawn(cfg.Manager.RespawnMax, cfg.Manager.RespawnDelay.Std()),
	)

	spawned := 0
	for _, ic := range cfg.Instruments {
		if !ic.IsEnabled() {
			logger.Info("instrument disabled, skipping", "instrument", ic.ID)
			continue
		}
		params, err := ic.ParamsJSON()
		if err != nil {
			return err
		}
		err = mgr.Spawn(manager.SpawnSpec{
			ID:      ic.ID,
			Type:    ic.Type,
			Adapter: ic.Adapter.Kind,
			Conn:    ic.ConnConfig(),
			Params:  params,
		})
		if err != nil {
			logger.Error("spawn failed", "instrument", ic.ID, "error", err)
			return err
		}
		spawned++
	}
	logger.Info("daemon started", "instruments", spawned, "version", version)

	// Keep recent measurements around for the shutdown summary and any
	// diagnostics that join after startup.
	history := measurement.NewHistory(64)
	go history.Run(mgr.Subscribe("daqd-history"))

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		go func() {
			logger.Info("metrics endpoint listening", "address", metricsServer.Address())
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	for _, snap := range mgr.DistributorMetrics() {
		logger.Info("subscriber delivery",
			"subscriber", snap.Subscriber, "sent", snap.TotalSent, "dropped", snap.TotalDropped)
	}
	for _, channel := range history.Channels() {
		if last, ok := history.Latest(channel); ok {
			logger.Info("last measurement", "channel", channel, "at", last.Time())
		}
	}

	results := mgr.ShutdownAll(context.Background())
	failed := 0
	for id, err := range results {
		if err != nil {
			logger.Error("instrument shutdown failed", "instrument", id, "error", err)
			failed++
		}
	}
	if metricsServer != nil {
		_ = metricsServer.Stop()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instruments failed to shut down cleanly", failed, len(results))
	}
	logger.Info("daemon stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
