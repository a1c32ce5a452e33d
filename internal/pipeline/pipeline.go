// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package pipeline runs the ingestion path that persists a caught event or
// web-vitals report after the HTTP handler has already acknowledged it.
//
// Ingestion is fire-and-forget: the pipeline derives the deduplicated user and
// event identities, upserts them, and appends a fresh occurrence document.
// Failures are logged and dropped, never retried and never surfaced to the
// client that triggered them.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bugcatch/internal/database"
	"github.com/tomtom215/bugcatch/internal/device"
	"github.com/tomtom215/bugcatch/internal/identity"
	"github.com/tomtom215/bugcatch/internal/logging"
	"github.com/tomtom215/bugcatch/internal/metrics"
	"github.com/tomtom215/bugcatch/internal/models"
)

// persistTimeout bounds a single detached ingestion run. The HTTP client is
// long gone by the time this fires; it only keeps a wedged store from pinning
// goroutines forever.
const persistTimeout = 30 * time.Second

// RequestContext carries the per-request fields the handlers capture before
// detaching. *http.Request must not escape into the detached goroutine, so
// the handler snapshots what the pipeline needs.
type RequestContext struct {
	// IP is the client address with any port already stripped.
	IP string

	// UserAgent is the raw User-Agent header.
	UserAgent string
}

// Pipeline persists caught telemetry through the store gateway.
type Pipeline struct {
	store      database.Store
	normalizer *device.Normalizer
	wg         sync.WaitGroup
}

// New creates a pipeline over the given store. A nil normalizer gets the
// default one without geolocation.
func New(store database.Store, normalizer *device.Normalizer) *Pipeline {
	if normalizer == nil {
		normalizer = device.NewNormalizer(nil)
	}
	return &Pipeline{store: store, normalizer: normalizer}
}

// CatchEvent persists an event report in a detached goroutine and returns
// immediately.
func (p *Pipeline) CatchEvent(rc RequestContext, req models.CatchEventRequest) {
	p.detach("event", func(ctx context.Context) error {
		return p.persistEvent(ctx, rc, req)
	})
}

// CatchVitals persists a web-vitals report in a detached goroutine and
// returns immediately.
func (p *Pipeline) CatchVitals(rc RequestContext, req models.CatchVitalsRequest) {
	p.detach("vitals", func(ctx context.Context) error {
		return p.persistVitals(ctx, rc, req)
	})
}

// Wait blocks until every detached ingestion run has finished. Used by
// graceful shutdown and by tests asserting on persisted state.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// detach runs fn on its own goroutine with a fresh bounded context. A panic
// in fn loses that one report, not the process.
func (p *Pipeline) detach(kind string, fn func(ctx context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.Error().
					Str("component", "pipeline").
					Str("kind", kind).
					Interface("panic", r).
					Msg("Ingestion panicked, report dropped")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		start := time.Now()
		err := fn(ctx)
		metrics.RecordIngest(kind, time.Since(start), err)
		if err != nil {
			logging.Err(err).
				Str("component", "pipeline").
				Str("kind", kind).
				Msg("Ingestion failed, report dropped")
		}
	}()
}

// persistEvent writes the user, the event, and a fresh incident occurrence.
func (p *Pipeline) persistEvent(ctx context.Context, rc RequestContext, req models.CatchEventRequest) error {
	userUID, err := p.upsertUser(ctx, rc.IP)
	if err != nil {
		return err
	}

	eventUID := identity.EventUID(req.Type, req.Data)
	event := models.Event{
		UID:  eventUID,
		Type: req.Type,
		Data: decodePayload(req.Data),
	}
	if err := p.store.InsertUnique(ctx, database.CollectionEvents, eventUID, event); err != nil {
		return err
	}

	now := time.Now().UTC()
	incident := models.Incident{
		UserUID:   userUID,
		EventUID:  eventUID,
		EventType: req.Type,
		Release:   req.Release,
		Location:  req.Location,
		Device:    p.normalizer.Normalize(rc.UserAgent, req.Device),
		Data:      decodePayload(req.IncidentData),
		Timestamp: now.UnixMilli(),
		Time:      now.Format(time.RFC1123),
	}
	return p.store.Insert(ctx, database.CollectionIncidents, incident)
}

// persistVitals writes the user and a fresh web-vitals occurrence.
func (p *Pipeline) persistVitals(ctx context.Context, rc RequestContext, req models.CatchVitalsRequest) error {
	userUID, err := p.upsertUser(ctx, rc.IP)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	record := models.WebVitalsRecord{
		UserUID:   userUID,
		Release:   req.Release,
		Device:    p.normalizer.Normalize(rc.UserAgent, req.Device),
		Data:      decodePayload(req.Data),
		Timestamp: now.UnixMilli(),
		Time:      now.Format(time.RFC1123),
	}
	return p.store.Insert(ctx, database.CollectionWebVitals, record)
}

// upsertUser derives the content-addressed user identity and inserts it if
// unseen. The raw IP is obfuscated before it touches the hash or storage.
func (p *Pipeline) upsertUser(ctx context.Context, ip string) (string, error) {
	obfuscated := identity.ObfuscateIP(ip)
	geo := p.normalizer.Geo(ip)
	uid := identity.UserUID(obfuscated, geo)

	user := models.User{
		UID:       uid,
		IPAddress: obfuscated,
		GeoIP:     geo,
	}
	if err := p.store.InsertUnique(ctx, database.CollectionUsers, uid, user); err != nil {
		return "", err
	}
	return uid, nil
}

// decodePayload turns a raw JSON payload into the structure the store
// persists. Payloads that fail to decode are stored as their raw string so a
// malformed-but-validated report is still kept. Empty payloads store nothing.
func decodePayload(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	return decoded
}
