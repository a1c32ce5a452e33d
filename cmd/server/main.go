// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// The server command runs bugcatch as a standalone telemetry service: the
// ingestion and release endpoints on the configured address, plus Prometheus
// metrics on /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/bugcatch/internal/api"
	"github.com/tomtom215/bugcatch/internal/config"
	"github.com/tomtom215/bugcatch/internal/logging"
	"github.com/tomtom215/bugcatch/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mountCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	router, err := api.Mount(mountCtx, cfg)
	cancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to mount API")
	}

	metrics.RecordAppInfo(api.Version)

	mux := buildMux(cfg.API.BaseURL, router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", server.Addr).
			Str("version", api.Version).
			Msg("Server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("Server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Server shutdown error")
	}
	if err := router.Close(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Closing router failed")
	}

	logging.Info().Msg("Application stopped gracefully")
	os.Exit(0)
}

// buildMux mounts the telemetry router under the configured base URL, with
// Prometheus metrics always at the top-level /metrics path.
func buildMux(baseURL string, router http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	base := strings.Trim(baseURL, "/")
	if base == "" {
		mux.Handle("/", router)
		return mux
	}
	prefix := "/" + base
	mux.Handle(prefix+"/", http.StripPrefix(prefix, router))
	return mux
}
