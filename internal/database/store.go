// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package database provides the store gateway: collection-oriented CRUD plus
// pipeline aggregation over the backing document store.
//
// Two implementations exist: Mongo (production, long-lived connection
// established once and reused for the process lifetime) and Memory (tests and
// embedded demo use). Both enforce the same dedup contract: InsertUnique is a
// read-then-write optimization, and the unique index on uid is the
// authoritative backstop - a uniqueness violation on insert is silent success,
// not an error.
package database

import (
	"context"

	"github.com/tomtom215/bugcatch/internal/aggregators"
	"github.com/tomtom215/bugcatch/internal/models"
)

// Collection names used by the service.
const (
	CollectionUsers     = "users"
	CollectionEvents    = "events"
	CollectionIncidents = "incidents"
	CollectionWebVitals = "web-vitals"
)

// RequiredCollections lists every collection the service creates at mount.
var RequiredCollections = []string{
	CollectionUsers,
	CollectionEvents,
	CollectionIncidents,
	CollectionWebVitals,
}

// Store is the gateway the pipeline and the read endpoints operate through.
type Store interface {
	// EnsureCollections idempotently creates any missing collection. Safe
	// under concurrent callers; duplicate creation is a no-op.
	EnsureCollections(ctx context.Context, names ...string) error

	// EnsureUniqueIndex idempotently creates a unique index on field.
	EnsureUniqueIndex(ctx context.Context, collection, field string) error

	// Insert appends doc unconditionally.
	Insert(ctx context.Context, collection string, doc interface{}) error

	// InsertUnique inserts doc unless a document with the given uid already
	// exists. The check-then-act race window is closed by the unique index.
	InsertUnique(ctx context.Context, collection, uid string, doc interface{}) error

	// FindAll returns every document in the collection.
	FindAll(ctx context.Context, collection string) ([]aggregators.Document, error)

	// AggregateEvents evaluates the events rollup.
	AggregateEvents(ctx context.Context) (models.EventsRollup, error)

	// AggregateIncidents evaluates the incidents rollup (without the by-mode
	// breakdowns, which callers compose via AggregateMode).
	AggregateIncidents(ctx context.Context) (models.IncidentsRollup, error)

	// AggregateMode evaluates the by-mode incidents count.
	AggregateMode(ctx context.Context, mode string) (models.ModeRollup, error)

	// AggregateWebVitals evaluates the web-vitals rollup.
	AggregateWebVitals(ctx context.Context) (models.WebVitalsRollup, error)

	// Close releases the backing connection.
	Close(ctx context.Context) error
}
