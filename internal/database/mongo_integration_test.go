// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

//go:build integration

package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tomtom215/bugcatch/internal/aggregators"
	"github.com/tomtom215/bugcatch/internal/models"
	"github.com/tomtom215/bugcatch/internal/testinfra"
)

var (
	mongoOnce      sync.Once
	mongoContainer *testinfra.MongoContainer
	mongoErr       error
)

// sharedMongoURI starts one mongod for the whole package; tests isolate
// through per-test database names.
func sharedMongoURI(t *testing.T) string {
	t.Helper()
	testinfra.SkipIfNoDocker(t)

	mongoOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()
		mongoContainer, mongoErr = testinfra.NewMongoContainer(ctx)
	})
	if mongoErr != nil {
		t.Fatalf("Starting mongo container: %v", mongoErr)
	}
	return mongoContainer.URI
}

func newMongoTestStore(t *testing.T) *Mongo {
	t.Helper()
	uri := sharedMongoURI(t)

	store := NewMongo(uri, fmt.Sprintf("bugcatch_test_%d", time.Now().UnixNano()))
	ctx := context.Background()
	if err := store.EnsureCollections(ctx, RequiredCollections...); err != nil {
		t.Fatalf("EnsureCollections: %v", err)
	}
	for _, collection := range []string{CollectionUsers, CollectionEvents} {
		if err := store.EnsureUniqueIndex(ctx, collection, "uid"); err != nil {
			t.Fatalf("EnsureUniqueIndex(%s): %v", collection, err)
		}
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store.db.Drop(ctx) //nolint:errcheck
		store.Close(ctx)   //nolint:errcheck
	})
	return store
}

func TestMongoInsertUniqueDeduplicates(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	user := models.User{UID: "abc123", IPAddress: "MTI3LjAuMC4x"}
	for i := 0; i < 3; i++ {
		if err := store.InsertUnique(ctx, CollectionUsers, user.UID, user); err != nil {
			t.Fatalf("InsertUnique: %v", err)
		}
	}

	users, err := store.FindAll(ctx, CollectionUsers)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("Expected exactly one user document, got %d", len(users))
	}
}

func TestMongoUniqueIndexBackstop(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	event := models.Event{UID: "ev1", Type: "error"}
	if err := store.Insert(ctx, CollectionEvents, event); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// The unconditional insert path surfaces the index violation; InsertUnique
	// must swallow it as already-exists.
	err := store.Insert(ctx, CollectionEvents, event)
	if err == nil {
		t.Fatal("Expected duplicate-key error from unconditional insert")
	}
	if !mongo.IsDuplicateKeyError(err) {
		t.Errorf("Expected a duplicate-key error, got %v", err)
	}
	if err := store.InsertUnique(ctx, CollectionEvents, event.UID, event); err != nil {
		t.Errorf("Expected silent success for duplicate uid, got %v", err)
	}

	events, err := store.FindAll(ctx, CollectionEvents)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected the index to hold one document, got %d", len(events))
	}
}

func TestMongoEnsureCollectionsIdempotent(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	if err := store.EnsureCollections(ctx, RequiredCollections...); err != nil {
		t.Fatalf("Repeated EnsureCollections: %v", err)
	}

	// Concurrent callers race the list-then-create window; NamespaceExists
	// from the loser must be tolerated.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.EnsureCollections(ctx, "racing-collection"); err != nil {
				t.Errorf("Concurrent EnsureCollections: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestMongoAggregatesEmptyCollections(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	events, err := store.AggregateEvents(ctx)
	if err != nil || events.Total != 0 {
		t.Errorf("AggregateEvents: expected zero rollup, got %+v (err %v)", events, err)
	}
	incidents, err := store.AggregateIncidents(ctx)
	if err != nil || incidents.Total != 0 {
		t.Errorf("AggregateIncidents: expected zero rollup, got %+v (err %v)", incidents, err)
	}
	mode, err := store.AggregateMode(ctx, "error")
	if err != nil || mode.Total != 0 {
		t.Errorf("AggregateMode: expected zero rollup, got %+v (err %v)", mode, err)
	}
	vitals, err := store.AggregateWebVitals(ctx)
	if err != nil || vitals.Count != 0 {
		t.Errorf("AggregateWebVitals: expected zero rollup, got %+v (err %v)", vitals, err)
	}
}

func TestMongoAggregateIncidentsMatchesEvaluator(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	// Two types tied at the same count pin the tie-break: count descending
	// with _id ascending, $first/$last.
	for _, incident := range []models.Incident{
		{UserUID: "u1", EventUID: "e1", EventType: "alpha"},
		{UserUID: "u1", EventUID: "e1", EventType: "alpha"},
		{UserUID: "u1", EventUID: "e2", EventType: "beta"},
		{UserUID: "u1", EventUID: "e2", EventType: "beta"},
	} {
		if err := store.Insert(ctx, CollectionIncidents, incident); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	rollup, err := store.AggregateIncidents(ctx)
	if err != nil {
		t.Fatalf("AggregateIncidents: %v", err)
	}
	if rollup.Total != 4 {
		t.Errorf("Expected total 4, got %d", rollup.Total)
	}
	if rollup.MostCommon != "alpha" || rollup.LeastCommon != "beta" {
		t.Errorf("Expected tie-break alpha/beta, got %s/%s", rollup.MostCommon, rollup.LeastCommon)
	}

	docs, err := store.FindAll(ctx, CollectionIncidents)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	evaluated := aggregators.EvaluateIncidents(docs)
	if evaluated.Total != rollup.Total ||
		evaluated.MostCommon != rollup.MostCommon ||
		evaluated.LeastCommon != rollup.LeastCommon {
		t.Errorf("Evaluator diverges from pipeline: %+v vs %+v", evaluated, rollup)
	}
}

func TestMongoAggregateModeAndWebVitals(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	for _, incident := range []models.Incident{
		{UserUID: "u1", EventUID: "e1", EventType: "error"},
		{UserUID: "u1", EventUID: "e1", EventType: "error"},
		{UserUID: "u1", EventUID: "e2", EventType: "click"},
	} {
		if err := store.Insert(ctx, CollectionIncidents, incident); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	errorsMode, err := store.AggregateMode(ctx, "error")
	if err != nil || errorsMode.Total != 2 {
		t.Errorf("Expected 2 error incidents, got %+v (err %v)", errorsMode, err)
	}
	eventsMode, err := store.AggregateMode(ctx, aggregators.ModeEvents)
	if err != nil || eventsMode.Total != 1 {
		t.Errorf("Expected 1 non-error incident, got %+v (err %v)", eventsMode, err)
	}

	for _, ttfb := range []float64{100, 300} {
		record := models.WebVitalsRecord{
			UserUID: "u1",
			Data:    map[string]interface{}{"ttfb": ttfb},
		}
		if err := store.Insert(ctx, CollectionWebVitals, record); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	vitals, err := store.AggregateWebVitals(ctx)
	if err != nil {
		t.Fatalf("AggregateWebVitals: %v", err)
	}
	if vitals.Count != 2 {
		t.Errorf("Expected count 2, got %d", vitals.Count)
	}
	if vitals.TTFB.Avg != 200 || vitals.TTFB.Max != 300 || vitals.TTFB.Min != 100 {
		t.Errorf("Unexpected ttfb stats: %+v", vitals.TTFB)
	}
}
