// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bugcatch/internal/config"
	"github.com/tomtom215/bugcatch/internal/database"
	"github.com/tomtom215/bugcatch/internal/models"
)

const testToken = "test-token"

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			Token: testToken,
			RateLimit: config.RateLimitConfig{
				Max:    1000,
				Window: time.Minute,
			},
			CORSOrigins: []string{"*"},
		},
		Cache: config.CacheConfig{TTL: time.Minute},
	}
}

func mountTestRouter(t *testing.T, cfg *config.Config) (*Router, *database.Memory) {
	t.Helper()
	store := database.NewMemory()
	router, err := MountWithStore(context.Background(), cfg, store, nil)
	if err != nil {
		t.Fatalf("MountWithStore: %v", err)
	}
	return router, store
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("Decoding response body: %v", err)
	}
}

func TestRootRoute(t *testing.T) {
	router, _ := mountTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["bug-catch"] != "Hello, World" {
		t.Errorf("Expected greeting body, got %v", body)
	}
	if body["version"] != Version {
		t.Errorf("Expected version %s, got %s", Version, body["version"])
	}
}

func TestCatchEventEndToEnd(t *testing.T) {
	router, store := mountTestRouter(t, testConfig())

	payload := `{"type":"error","data":{"message":"boom"},"release":"1.2.0","location":"https://example.com/"}`
	req := httptest.NewRequest(http.MethodPost, "/catch/event", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:51312"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected immediate 200 ack, got %d", rec.Code)
	}
	var ack models.StatusResponse
	decodeBody(t, rec, &ack)
	if ack.Status != "200 OK" {
		t.Errorf("Expected ack status, got %q", ack.Status)
	}

	router.Pipeline().Wait()
	ctx := context.Background()

	users, _ := store.FindAll(ctx, database.CollectionUsers)
	events, _ := store.FindAll(ctx, database.CollectionEvents)
	incidents, _ := store.FindAll(ctx, database.CollectionIncidents)
	if len(users) != 1 || len(events) != 1 || len(incidents) != 1 {
		t.Errorf("Expected 1 user, 1 event, 1 incident; got %d/%d/%d",
			len(users), len(events), len(incidents))
	}
}

func TestCatchEventRejectsInvalidBody(t *testing.T) {
	router, store := mountTestRouter(t, testConfig())

	for _, payload := range []string{
		`{"data":{"message":"boom"}}`, // missing type
		`{"type":"error"}`,            // missing data
		`{not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/catch/event", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Payload %q: expected 400, got %d", payload, rec.Code)
		}
		var body models.ErrorResponse
		decodeBody(t, rec, &body)
		if body.Msg != "invalid or missing post data" {
			t.Errorf("Payload %q: expected rejection message, got %q", payload, body.Msg)
		}
	}

	router.Pipeline().Wait()
	incidents, _ := store.FindAll(context.Background(), database.CollectionIncidents)
	if len(incidents) != 0 {
		t.Errorf("Expected nothing persisted for rejected reports, got %d incidents", len(incidents))
	}
}

func TestCatchVitalsEndToEnd(t *testing.T) {
	router, store := mountTestRouter(t, testConfig())

	payload := `{"data":{"ttfb":120,"lcp":1800},"release":"1.2.0"}`
	req := httptest.NewRequest(http.MethodPost, "/catch/vitals", strings.NewReader(payload))
	req.RemoteAddr = "198.51.100.4:40000"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 ack, got %d", rec.Code)
	}

	router.Pipeline().Wait()
	vitals, _ := store.FindAll(context.Background(), database.CollectionWebVitals)
	if len(vitals) != 1 {
		t.Errorf("Expected one vitals record, got %d", len(vitals))
	}
}

func TestReleaseEndpointsRequireToken(t *testing.T) {
	router, _ := mountTestRouter(t, testConfig())

	for _, path := range []string{"/release/report", "/release/incidents", "/release/vitals"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without token, got %d", path, rec.Code)
		}
		var body models.ErrorResponse
		decodeBody(t, rec, &body)
		if body.Msg != "unauthorized" {
			t.Errorf("%s: expected unauthorized message, got %q", path, body.Msg)
		}

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Token", "wrong-token")
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 with wrong token, got %d", path, rec.Code)
		}
	}
}

func TestReleaseTokenAccepted(t *testing.T) {
	router, _ := mountTestRouter(t, testConfig())

	// Token header
	req := httptest.NewRequest(http.MethodGet, "/release/incidents", nil)
	req.Header.Set("Token", testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Token header: expected 200, got %d", rec.Code)
	}

	// Bearer authorization
	req = httptest.NewRequest(http.MethodGet, "/release/incidents", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Bearer header: expected 200, got %d", rec.Code)
	}

	// JSON body
	req = httptest.NewRequest(http.MethodGet, "/release/incidents",
		strings.NewReader(`{"token":"`+testToken+`"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Body token: expected 200, got %d", rec.Code)
	}
}

func TestReleaseRoutesAbsentWithoutConfiguredToken(t *testing.T) {
	cfg := testConfig()
	cfg.API.Token = ""
	router, _ := mountTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/release/report", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when no token is configured, got %d", rec.Code)
	}
}

func TestReleaseReport(t *testing.T) {
	router, store := mountTestRouter(t, testConfig())
	ctx := context.Background()

	for _, event := range []models.Event{
		{UID: "e1", Type: "error"},
		{UID: "e2", Type: "click"},
	} {
		if err := store.Insert(ctx, database.CollectionEvents, event); err != nil {
			t.Fatalf("Insert event: %v", err)
		}
	}
	for _, incident := range []models.Incident{
		{UserUID: "u1", EventUID: "e1", EventType: "error"},
		{UserUID: "u1", EventUID: "e1", EventType: "error"},
		{UserUID: "u1", EventUID: "e2", EventType: "click"},
	} {
		if err := store.Insert(ctx, database.CollectionIncidents, incident); err != nil {
			t.Fatalf("Insert incident: %v", err)
		}
	}
	if err := store.Insert(ctx, database.CollectionUsers, models.User{UID: "u1"}); err != nil {
		t.Fatalf("Insert user: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/release/report", nil)
	req.Header.Set("Token", testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var report models.Report
	decodeBody(t, rec, &report)

	if report.Users.Total != 1 {
		t.Errorf("Expected 1 user, got %d", report.Users.Total)
	}
	if report.Events.Total != 2 || report.Events.TotalErrors != 1 || report.Events.TotalCustom != 1 {
		t.Errorf("Unexpected events rollup: %+v", report.Events)
	}
	if report.Incidents.Total != 3 {
		t.Errorf("Expected 3 incidents, got %d", report.Incidents.Total)
	}
	if report.Incidents.MostCommon != "error" || report.Incidents.LeastCommon != "click" {
		t.Errorf("Unexpected frequency fields: %+v", report.Incidents)
	}
	if report.Incidents.Errors == nil || report.Incidents.Errors.Total != 2 {
		t.Errorf("Expected errors mode total 2, got %+v", report.Incidents.Errors)
	}
	if report.Incidents.Events == nil || report.Incidents.Events.Total != 1 {
		t.Errorf("Expected events mode total 1, got %+v", report.Incidents.Events)
	}
}

func TestReleaseIncidentsWireShape(t *testing.T) {
	router, store := mountTestRouter(t, testConfig())
	ctx := context.Background()

	if err := store.Insert(ctx, database.CollectionIncidents,
		models.Incident{UserUID: "u1", EventUID: "e1", EventType: "error"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, database.CollectionEvents,
		models.Event{UID: "e1", Type: "error"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, database.CollectionUsers, models.User{UID: "u1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/release/incidents", nil)
	req.Header.Set("Token", testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string][]map[string]interface{}
	decodeBody(t, rec, &body)
	if len(body["incidents"]) != 1 || len(body["events"]) != 1 || len(body["users"]) != 1 {
		t.Errorf("Expected incidents/events/users arrays, got keys %v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/release/vitals", nil)
	req.Header.Set("Token", testToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	decodeBody(t, rec, &body)
	if _, ok := body["webVitals"]; !ok {
		t.Error("Expected webVitals key in vitals response")
	}
	if len(body["users"]) != 1 {
		t.Errorf("Expected users array alongside vitals, got %v", body["users"])
	}
}

func TestReleaseReportIsCached(t *testing.T) {
	router, store := mountTestRouter(t, testConfig())
	ctx := context.Background()

	if err := store.Insert(ctx, database.CollectionUsers, models.User{UID: "u1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	get := func() models.Report {
		req := httptest.NewRequest(http.MethodGet, "/release/report", nil)
		req.Header.Set("Token", testToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var report models.Report
		decodeBody(t, rec, &report)
		return report
	}

	if total := get().Users.Total; total != 1 {
		t.Fatalf("Expected 1 user before write, got %d", total)
	}

	// A write inside the TTL window is invisible to readers.
	if err := store.Insert(ctx, database.CollectionUsers, models.User{UID: "u2"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if total := get().Users.Total; total != 1 {
		t.Errorf("Expected cached total 1 inside TTL window, got %d", total)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/catch/event", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if ip := clientIP(req); ip != "203.0.113.9" {
		t.Errorf("Expected first forwarded hop, got %s", ip)
	}

	req.Header.Del("X-Forwarded-For")
	if ip := clientIP(req); ip != "10.0.0.1" {
		t.Errorf("Expected peer host without port, got %s", ip)
	}
}
