// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/proxypanel/internal/config"
	"github.com/tomtom215/proxypanel/internal/logging"
	"github.com/tomtom215/proxypanel/internal/supervisor"
	"github.com/tomtom215/proxypanel/internal/supervisor/services"
	"github.com/tomtom215/proxypanel/internal/tokenstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("panel_api", cfg.API.URL).
		Str("token_store", cfg.Storage.Backend).
		Bool("portal", cfg.Portal.Enabled).
		Bool("logtail", cfg.LogTail.Enabled).
		Msg("Starting ProxyPanel")

	backend, closeBackend, err := tokenstore.Open(tokenstore.BackendType(cfg.Storage.Backend), cfg.Storage.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open token store")
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logging.Error().Err(err).Msg("Error closing token store")
		}
	}()

	app, err := newApp(cfg, backend)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize application")
		return
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}

	// Background layer
	if cfg.LogTail.Enabled {
		tree.AddBackgroundService(app.tailer)
		logging.Info().Msg("Log tail added to supervisor tree")
	}
	if cfg.Dashboard.StatsRefreshSchedule != "" {
		refresh, err := services.NewCronService("stats-refresh", cfg.Dashboard.StatsRefreshSchedule, 30*time.Second, app.refreshStatistics)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to schedule statistics refresh")
			return
		}
		tree.AddBackgroundService(refresh)
	}

	// API layer
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.API.Timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	watchConfig()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	logging.Info().Msg("ProxyPanel stopped")
}

// watchConfig applies log level changes from the config file.
func watchConfig() {
	path := config.ConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid configuration change")
			return
		}
		logging.SetLevelString(cfg.Logging.Level)
		logging.Info().Str("level", cfg.Logging.Level).Msg("Configuration reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}
