// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/bugcatch/internal/aggregators"
	"github.com/tomtom215/bugcatch/internal/logging"
	"github.com/tomtom215/bugcatch/internal/metrics"
	"github.com/tomtom215/bugcatch/internal/models"
)

// Mongo is the MongoDB-backed store gateway.
//
// The client is established lazily on first use and reused for the remainder
// of the process lifetime; concurrent first callers share a single connect
// attempt through sync.Once. A failed connect is sticky: the mount fails
// rather than every request re-dialing.
type Mongo struct {
	uri      string
	database string

	connectOnce sync.Once
	connectErr  error
	client      *mongo.Client
	db          *mongo.Database
}

// compile-time interface check
var _ Store = (*Mongo)(nil)

// NewMongo creates an unconnected gateway. Connect (or any operation) dials.
func NewMongo(uri, database string) *Mongo {
	return &Mongo{uri: uri, database: database}
}

// Connect establishes the long-lived client. Idempotent; every store
// operation calls it, so explicit use is only needed to fail fast at mount.
func (m *Mongo) Connect(ctx context.Context) error {
	m.connectOnce.Do(func() {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
		if err != nil {
			m.connectErr = fmt.Errorf("mongodb connect: %w", err)
			return
		}
		if err := client.Ping(ctx, nil); err != nil {
			m.connectErr = fmt.Errorf("mongodb ping: %w", err)
			return
		}
		m.client = client
		m.db = client.Database(m.database)
		logging.Info().
			Str("component", "database").
			Str("database", m.database).
			Msg("Connected to MongoDB")
	})
	return m.connectErr
}

// EnsureCollections creates any collection absent from the database.
// Duplicate creation from concurrent callers is tolerated as a no-op.
func (m *Mongo) EnsureCollections(ctx context.Context, names ...string) error {
	if err := m.Connect(ctx); err != nil {
		return err
	}

	existing, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	for _, name := range names {
		if present[name] {
			continue
		}
		if err := m.db.CreateCollection(ctx, name); err != nil {
			// NamespaceExists: another caller created it between the list
			// and the create.
			if cmdErr, ok := err.(mongo.CommandError); ok && cmdErr.Code == 48 {
				continue
			}
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		logging.Debug().
			Str("component", "database").
			Str("collection", name).
			Msg("Collection created")
	}
	return nil
}

// EnsureUniqueIndex creates a unique index on field. Index creation is
// idempotent in MongoDB; repeating the identical definition is a no-op.
func (m *Mongo) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if err := m.Connect(ctx); err != nil {
		return err
	}

	_, err := m.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create unique index on %s.%s: %w", collection, field, err)
	}
	return nil
}

// Insert appends doc unconditionally.
func (m *Mongo) Insert(ctx context.Context, collection string, doc interface{}) error {
	if err := m.Connect(ctx); err != nil {
		return err
	}

	start := time.Now()
	_, err := m.db.Collection(collection).InsertOne(ctx, doc)
	metrics.RecordStoreOperation("insert", collection, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	logging.Debug().
		Str("component", "database").
		Str("collection", collection).
		Msg("Document added")
	return nil
}

// InsertUnique inserts doc unless a document with the given uid exists.
// The read-then-write avoids index-violation round trips under low
// contention; the unique index remains the correctness backstop, so a
// duplicate-key error from the insert is treated as already-exists.
func (m *Mongo) InsertUnique(ctx context.Context, collection, uid string, doc interface{}) error {
	if err := m.Connect(ctx); err != nil {
		return err
	}

	coll := m.db.Collection(collection)
	err := coll.FindOne(ctx, bson.D{{Key: "uid", Value: uid}}).Err()
	if err == nil {
		metrics.RecordDuplicateSkipped(collection)
		return nil
	}
	if err != mongo.ErrNoDocuments {
		return fmt.Errorf("lookup uid in %s: %w", collection, err)
	}

	start := time.Now()
	_, err = coll.InsertOne(ctx, doc)
	metrics.RecordStoreOperation("insert_unique", collection, time.Since(start), err)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			metrics.RecordDuplicateSkipped(collection)
			return nil
		}
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

// FindAll returns every document in the collection.
func (m *Mongo) FindAll(ctx context.Context, collection string) ([]aggregators.Document, error) {
	if err := m.Connect(ctx); err != nil {
		return nil, err
	}

	cursor, err := m.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	var docs []aggregators.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s documents: %w", collection, err)
	}
	return docs, nil
}

// AggregateEvents evaluates the events rollup pipeline.
func (m *Mongo) AggregateEvents(ctx context.Context) (models.EventsRollup, error) {
	var rollup models.EventsRollup
	err := m.aggregateOne(ctx, CollectionEvents, aggregators.Events(), &rollup)
	return rollup, err
}

// AggregateIncidents evaluates the incidents rollup pipeline.
func (m *Mongo) AggregateIncidents(ctx context.Context) (models.IncidentsRollup, error) {
	var rollup models.IncidentsRollup
	err := m.aggregateOne(ctx, CollectionIncidents, aggregators.Incidents(), &rollup)
	return rollup, err
}

// AggregateMode evaluates the by-mode incidents pipeline.
func (m *Mongo) AggregateMode(ctx context.Context, mode string) (models.ModeRollup, error) {
	var rollup models.ModeRollup
	err := m.aggregateOne(ctx, CollectionIncidents, aggregators.ModeEvent(mode), &rollup)
	return rollup, err
}

// AggregateWebVitals evaluates the web-vitals rollup pipeline.
func (m *Mongo) AggregateWebVitals(ctx context.Context) (models.WebVitalsRollup, error) {
	var rollup models.WebVitalsRollup
	err := m.aggregateOne(ctx, CollectionWebVitals, aggregators.WebVitals(), &rollup)
	return rollup, err
}

// aggregateOne runs a pipeline expected to emit at most one document and
// decodes it into out. No document (empty collection) leaves out zero-valued,
// the defined sentinel for empty rollups.
func (m *Mongo) aggregateOne(ctx context.Context, collection string, pipeline mongo.Pipeline, out interface{}) error {
	if err := m.Connect(ctx); err != nil {
		return err
	}

	cursor, err := m.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		return cursor.Err()
	}
	if err := cursor.Decode(out); err != nil {
		return fmt.Errorf("decode %s rollup: %w", collection, err)
	}
	return nil
}

// Close disconnects the client. Safe to call before the first connect.
func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
