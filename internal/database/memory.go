// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bugcatch/internal/aggregators"
	"github.com/tomtom215/bugcatch/internal/models"
)

// Memory is an in-memory store gateway with the same dedup contract as Mongo.
// It backs tests and embedded demo deployments that have no MongoDB at hand;
// rollups are evaluated by the aggregators package instead of server-side
// pipelines.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]aggregators.Document
	uniqueField map[string]string
	uniqueSeen  map[string]map[string]bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]aggregators.Document),
		uniqueField: make(map[string]string),
		uniqueSeen:  make(map[string]map[string]bool),
	}
}

// EnsureCollections creates any missing collection.
func (m *Memory) EnsureCollections(_ context.Context, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		if _, ok := m.collections[name]; !ok {
			m.collections[name] = nil
		}
	}
	return nil
}

// EnsureUniqueIndex registers a unique constraint on field for the collection.
func (m *Memory) EnsureUniqueIndex(_ context.Context, collection, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uniqueField[collection] = field
	if m.uniqueSeen[collection] == nil {
		seen := make(map[string]bool)
		for _, doc := range m.collections[collection] {
			if value, ok := doc[field].(string); ok {
				seen[value] = true
			}
		}
		m.uniqueSeen[collection] = seen
	}
	return nil
}

// Insert appends doc. A unique-constraint violation is silent success,
// matching the index-backstop semantics of the Mongo gateway.
func (m *Memory) Insert(_ context.Context, collection string, doc interface{}) error {
	normalized, err := normalize(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if field, ok := m.uniqueField[collection]; ok {
		if value, ok := normalized[field].(string); ok {
			if m.uniqueSeen[collection][value] {
				return nil
			}
			m.uniqueSeen[collection][value] = true
		}
	}
	m.collections[collection] = append(m.collections[collection], normalized)
	return nil
}

// InsertUnique inserts doc unless a document with the given uid exists.
func (m *Memory) InsertUnique(ctx context.Context, collection, uid string, doc interface{}) error {
	m.mu.RLock()
	exists := false
	if seen, ok := m.uniqueSeen[collection]; ok {
		exists = seen[uid]
	} else {
		for _, existing := range m.collections[collection] {
			if existing["uid"] == uid {
				exists = true
				break
			}
		}
	}
	m.mu.RUnlock()

	if exists {
		return nil
	}
	return m.Insert(ctx, collection, doc)
}

// FindAll returns a copy of the collection's documents.
func (m *Memory) FindAll(_ context.Context, collection string) ([]aggregators.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]aggregators.Document, len(m.collections[collection]))
	copy(docs, m.collections[collection])
	return docs, nil
}

// AggregateEvents evaluates the events rollup in Go.
func (m *Memory) AggregateEvents(ctx context.Context) (models.EventsRollup, error) {
	docs, err := m.FindAll(ctx, CollectionEvents)
	if err != nil {
		return models.EventsRollup{}, err
	}
	return aggregators.EvaluateEvents(docs), nil
}

// AggregateIncidents evaluates the incidents rollup in Go.
func (m *Memory) AggregateIncidents(ctx context.Context) (models.IncidentsRollup, error) {
	docs, err := m.FindAll(ctx, CollectionIncidents)
	if err != nil {
		return models.IncidentsRollup{}, err
	}
	return aggregators.EvaluateIncidents(docs), nil
}

// AggregateMode evaluates the by-mode incidents count in Go.
func (m *Memory) AggregateMode(ctx context.Context, mode string) (models.ModeRollup, error) {
	docs, err := m.FindAll(ctx, CollectionIncidents)
	if err != nil {
		return models.ModeRollup{}, err
	}
	return aggregators.EvaluateMode(docs, mode), nil
}

// AggregateWebVitals evaluates the web-vitals rollup in Go.
func (m *Memory) AggregateWebVitals(ctx context.Context) (models.WebVitalsRollup, error) {
	docs, err := m.FindAll(ctx, CollectionWebVitals)
	if err != nil {
		return models.WebVitalsRollup{}, err
	}
	return aggregators.EvaluateWebVitals(docs), nil
}

// Close is a no-op.
func (m *Memory) Close(context.Context) error {
	return nil
}

// normalize converts a typed document into the map form FindAll returns,
// using a JSON round trip so nested structures become plain maps.
func normalize(doc interface{}) (aggregators.Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	var normalized aggregators.Document
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	return normalized, nil
}
