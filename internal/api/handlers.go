// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bugcatch/internal/aggregators"
	"github.com/tomtom215/bugcatch/internal/database"
	"github.com/tomtom215/bugcatch/internal/logging"
	"github.com/tomtom215/bugcatch/internal/metrics"
	"github.com/tomtom215/bugcatch/internal/models"
	"github.com/tomtom215/bugcatch/internal/pipeline"
	"github.com/tomtom215/bugcatch/internal/validation"
)

// Cache keys are query identities, shared by every caller of the same query.
const (
	cacheKeyReportEvents    = "report/events"
	cacheKeyReportIncidents = "report/incidents"
	cacheKeyReportErrors    = "report/incidents/errors"
	cacheKeyReportNonErrors = "report/incidents/events"
	cacheKeyReportVitals    = "report/web-vitals"
	cacheKeyUsers           = "collection/users"
	cacheKeyEvents          = "collection/events"
	cacheKeyIncidents       = "collection/incidents"
	cacheKeyVitals          = "collection/web-vitals"
)

// handleRoot reports liveness and the running version.
func (router *Router) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"bug-catch": "Hello, World",
		"version":   Version,
	})
}

// handleCatchEvent accepts an event report, acknowledges it immediately, and
// hands it to the detached ingestion pipeline.
func (router *Router) handleCatchEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CatchEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordRejected("event")
		respondError(w, http.StatusBadRequest, "invalid or missing post data")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		metrics.RecordRejected("event")
		logging.Debug().
			Str("component", "api").
			Str("reason", verr.Error()).
			Msg("Rejected event report")
		respondError(w, http.StatusBadRequest, "invalid or missing post data")
		return
	}

	rc := requestContext(r)
	respondJSON(w, http.StatusOK, models.StatusResponse{Status: "200 OK"})
	router.pipe.CatchEvent(rc, req)
}

// handleCatchVitals accepts a web-vitals report the same way.
func (router *Router) handleCatchVitals(w http.ResponseWriter, r *http.Request) {
	var req models.CatchVitalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordRejected("vitals")
		respondError(w, http.StatusBadRequest, "invalid or missing post data")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		metrics.RecordRejected("vitals")
		logging.Debug().
			Str("component", "api").
			Str("reason", verr.Error()).
			Msg("Rejected vitals report")
		respondError(w, http.StatusBadRequest, "invalid or missing post data")
		return
	}

	rc := requestContext(r)
	respondJSON(w, http.StatusOK, models.StatusResponse{Status: "200 OK"})
	router.pipe.CatchVitals(rc, req)
}

// handleReport composes the full statistical report from the cached rollups.
func (router *Router) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, err := router.cache.GetOrCompute(cacheKeyReportEvents, func() (interface{}, error) {
		return router.store.AggregateEvents(ctx)
	})
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	incidents, err := router.cache.GetOrCompute(cacheKeyReportIncidents, func() (interface{}, error) {
		return router.store.AggregateIncidents(ctx)
	})
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	errorsMode, err := router.cache.GetOrCompute(cacheKeyReportErrors, func() (interface{}, error) {
		return router.store.AggregateMode(ctx, "error")
	})
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	eventsMode, err := router.cache.GetOrCompute(cacheKeyReportNonErrors, func() (interface{}, error) {
		return router.store.AggregateMode(ctx, aggregators.ModeEvents)
	})
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	vitals, err := router.cache.GetOrCompute(cacheKeyReportVitals, func() (interface{}, error) {
		return router.store.AggregateWebVitals(ctx)
	})
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	users, err := router.cachedCollection(r, cacheKeyUsers, database.CollectionUsers)
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	incidentsRollup := incidents.(models.IncidentsRollup)
	errorsRollup := errorsMode.(models.ModeRollup)
	nonErrorsRollup := eventsMode.(models.ModeRollup)
	incidentsRollup.Errors = &errorsRollup
	incidentsRollup.Events = &nonErrorsRollup

	respondJSON(w, http.StatusOK, models.Report{
		Users:     models.UsersRollup{Total: int64(len(users))},
		Events:    events.(models.EventsRollup),
		Incidents: incidentsRollup,
		Vitals:    vitals.(models.WebVitalsRollup),
	})
}

// handleIncidents returns the raw incident occurrences with the event and
// user documents they reference, cached.
func (router *Router) handleIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := router.cachedCollection(r, cacheKeyIncidents, database.CollectionIncidents)
	if err != nil {
		respondServerError(w, r, err)
		return
	}
	events, err := router.cachedCollection(r, cacheKeyEvents, database.CollectionEvents)
	if err != nil {
		respondServerError(w, r, err)
		return
	}
	users, err := router.cachedCollection(r, cacheKeyUsers, database.CollectionUsers)
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": incidents,
		"events":    events,
		"users":     users,
	})
}

// handleVitals returns the raw web-vitals records plus the user documents,
// cached.
func (router *Router) handleVitals(w http.ResponseWriter, r *http.Request) {
	vitals, err := router.cachedCollection(r, cacheKeyVitals, database.CollectionWebVitals)
	if err != nil {
		respondServerError(w, r, err)
		return
	}
	users, err := router.cachedCollection(r, cacheKeyUsers, database.CollectionUsers)
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"webVitals": vitals,
		"users":     users,
	})
}

// cachedCollection serves a full-collection read through the result cache.
func (router *Router) cachedCollection(r *http.Request, key, collection string) ([]aggregators.Document, error) {
	docs, err := router.cache.GetOrCompute(key, func() (interface{}, error) {
		return router.store.FindAll(r.Context(), collection)
	})
	if err != nil {
		return nil, err
	}
	return docs.([]aggregators.Document), nil
}

// requestContext snapshots the request fields the detached pipeline needs.
func requestContext(r *http.Request) pipeline.RequestContext {
	return pipeline.RequestContext{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// clientIP resolves the reporting client's address: the first hop of
// X-Forwarded-For when a proxy supplied one, the peer address otherwise.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
