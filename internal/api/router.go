// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package api mounts the HTTP surface: the rate-limited ingestion endpoints,
// the token-gated release endpoints, and the root status route. The router is
// an http.Handler, so a host application can mount it under its own mux as
// easily as the standalone server does.
package api

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/bugcatch/internal/cache"
	"github.com/tomtom215/bugcatch/internal/config"
	"github.com/tomtom215/bugcatch/internal/database"
	"github.com/tomtom215/bugcatch/internal/device"
	"github.com/tomtom215/bugcatch/internal/logging"
	"github.com/tomtom215/bugcatch/internal/middleware"
	"github.com/tomtom215/bugcatch/internal/pipeline"
)

// Version is reported by the root status route.
const Version = "2.0.0"

// Router is the mounted HTTP surface plus the collaborators a host
// application or test needs to reach: the ingestion pipeline for draining and
// the store for shutdown.
type Router struct {
	chi.Router

	cfg      *config.Config
	store    database.Store
	cache    *cache.Cache
	pipe     *pipeline.Pipeline
	resolver device.GeoResolver
}

// Mount connects to MongoDB, prepares the collections and indexes, and
// returns the ready router. Connection or preparation failure is returned to
// the caller; a half-mounted ingestion surface that silently drops data is
// worse than failing the startup.
func Mount(ctx context.Context, cfg *config.Config) (*Router, error) {
	store := database.NewMongo(cfg.MongoDB.URI, cfg.MongoDB.Database)

	var resolver device.GeoResolver
	if cfg.GeoIP.Database != "" {
		mm, err := device.OpenMaxMind(cfg.GeoIP.Database)
		if err != nil {
			return nil, fmt.Errorf("mount: %w", err)
		}
		resolver = mm
	}

	router, err := MountWithStore(ctx, cfg, store, resolver)
	if err != nil {
		if resolver != nil {
			resolver.Close() //nolint:errcheck
		}
		return nil, err
	}
	return router, nil
}

// MountWithStore mounts the router over an existing store. Used by tests and
// by hosts embedding the service with their own gateway.
func MountWithStore(ctx context.Context, cfg *config.Config, store database.Store, resolver device.GeoResolver) (*Router, error) {
	if err := store.EnsureCollections(ctx, database.RequiredCollections...); err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	for _, collection := range []string{database.CollectionUsers, database.CollectionEvents} {
		if err := store.EnsureUniqueIndex(ctx, collection, "uid"); err != nil {
			return nil, fmt.Errorf("mount: %w", err)
		}
	}

	normalizer := device.NewNormalizer(resolver)
	router := &Router{
		cfg:      cfg,
		store:    store,
		cache:    cache.New(cfg.Cache.TTL),
		pipe:     pipeline.New(store, normalizer),
		resolver: resolver,
	}
	router.Router = router.routes()

	logging.Info().
		Str("component", "api").
		Str("version", Version).
		Msg("Router mounted")
	return router, nil
}

// Pipeline exposes the ingestion pipeline so hosts can drain it on shutdown.
func (router *Router) Pipeline() *pipeline.Pipeline {
	return router.pipe
}

// Close drains in-flight ingestion and releases the store and the geo
// resolver.
func (router *Router) Close(ctx context.Context) error {
	router.pipe.Wait()
	if router.resolver != nil {
		if err := router.resolver.Close(); err != nil {
			logging.Err(err).Str("component", "api").Msg("Closing geo resolver failed")
		}
	}
	return router.store.Close(ctx)
}

// routes assembles the middleware chain and the route tree.
func (router *Router) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.API.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Token"},
		MaxAge:         86400,
	}))

	r.Get("/", router.handleRoot)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(
			router.cfg.API.RateLimit.Max,
			router.cfg.API.RateLimit.Window,
		))
		r.Post("/catch/event", router.handleCatchEvent)
		r.Post("/catch/vitals", router.handleCatchVitals)
	})

	// The release surface only exists when a token is configured; there is
	// no unauthenticated read access.
	if router.cfg.API.Token != "" {
		r.Group(func(r chi.Router) {
			r.Use(router.verifyToken)
			r.Get("/release/report", router.handleReport)
			r.Get("/release/incidents", router.handleIncidents)
			r.Get("/release/vitals", router.handleVitals)
		})
	}

	return r
}
