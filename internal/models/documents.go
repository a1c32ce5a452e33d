// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package models defines the stored document types, rollup documents, and
// HTTP request/response shapes shared across the bugcatch packages.
//
// All stored documents carry bson tags matching the field names used by the
// original bug-catch collections, so a Go deployment can read and extend a
// database produced by the Node.js library.
package models

import "github.com/goccy/go-json"

// GeoInfo is a best-effort geolocation record. Absent fields stay empty and
// are omitted from storage.
type GeoInfo struct {
	Country string `json:"country,omitempty" bson:"country,omitempty"`
	Region  string `json:"region,omitempty" bson:"region,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
}

// User is a deduplicated visitor identity. UID is the sha1 hex digest of the
// obfuscated IP address plus the canonicalized geolocation record; at most one
// User document exists per UID. Created once, never mutated.
type User struct {
	UID       string  `json:"uid" bson:"uid"`
	IPAddress string  `json:"ip_address" bson:"ip_address"`
	GeoIP     GeoInfo `json:"geoip" bson:"geoip"`
}

// Event is deduplicated event content. UID is the sha1 hex digest of the type
// plus the canonicalized payload, so recurring errors with identical payloads
// collapse into a single document.
type Event struct {
	UID  string      `json:"uid" bson:"uid"`
	Type string      `json:"type" bson:"type"`
	Data interface{} `json:"data" bson:"data"`
}

// NameVersion holds a parsed browser or OS identification.
type NameVersion struct {
	Name    string `json:"name,omitempty" bson:"name,omitempty"`
	Version string `json:"version,omitempty" bson:"version,omitempty"`
}

// DeviceInfo is the normalized device context attached to every occurrence.
// Device is the device class: desktop, mobile, tablet or unknown.
type DeviceInfo struct {
	Device  string      `json:"device" bson:"device"`
	OS      NameVersion `json:"os,omitempty" bson:"os,omitempty"`
	Browser NameVersion `json:"browser,omitempty" bson:"browser,omitempty"`
}

// Incident records one occurrence of an event by a user. Incidents reference
// User and Event documents through uid fields only; there is no enforced
// referential integrity. Every occurrence is a fresh document, never deduped.
type Incident struct {
	UserUID   string      `json:"user_uid" bson:"user_uid"`
	EventUID  string      `json:"event_uid" bson:"event_uid"`
	EventType string      `json:"event_type" bson:"event_type"`
	Release   string      `json:"release,omitempty" bson:"release,omitempty"`
	Location  string      `json:"location,omitempty" bson:"location,omitempty"`
	Device    DeviceInfo  `json:"device" bson:"device"`
	Data      interface{} `json:"incidentData,omitempty" bson:"incidentData,omitempty"`
	Timestamp int64       `json:"timestamp" bson:"timestamp"`
	Time      string      `json:"time" bson:"time"`
}

// WebVitalsRecord records one web-vitals measurement report. Data is the
// opaque metrics payload produced by the browser SDK (ttfb, fp, fcp, fid,
// lcp, cls, tbt, navigatorInformation). Always inserted fresh.
type WebVitalsRecord struct {
	UserUID   string      `json:"user_uid" bson:"user_uid"`
	Release   string      `json:"release,omitempty" bson:"release,omitempty"`
	Device    DeviceInfo  `json:"device" bson:"device"`
	Data      interface{} `json:"data" bson:"data"`
	Timestamp int64       `json:"timestamp" bson:"timestamp"`
	Time      string      `json:"time" bson:"time"`
}

// DeviceOverride carries caller-supplied device fields from the request body.
// Non-empty fields take precedence over inferred values (shallow override).
type DeviceOverride struct {
	Device  string       `json:"device,omitempty"`
	OS      *NameVersion `json:"os,omitempty"`
	Browser *NameVersion `json:"browser,omitempty"`
}

// CatchEventRequest is the POST /catch/event body. Data is opaque: the server
// never inspects its structure beyond hashing and storage.
type CatchEventRequest struct {
	Type         string          `json:"type" validate:"required"`
	Data         json.RawMessage `json:"data" validate:"required"`
	Release      string          `json:"release,omitempty"`
	Location     string          `json:"location,omitempty"`
	IncidentData json.RawMessage `json:"incidentData,omitempty"`
	Device       *DeviceOverride `json:"device,omitempty"`
}

// CatchVitalsRequest is the POST /catch/vitals body.
type CatchVitalsRequest struct {
	Data    json.RawMessage `json:"data" validate:"required"`
	Release string          `json:"release,omitempty"`
	Device  *DeviceOverride `json:"device,omitempty"`
}
