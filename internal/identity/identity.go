// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package identity derives content-addressed identifiers for users and
// events.
//
// Identifiers are sha1 hex digests over canonicalized input, so identical
// logical content always yields the same uid across process restarts and
// across field orderings. SHA-1 is retained for compatibility with uids
// already stored by existing bug-catch deployments; it is content addressing,
// not collision hardening.
package identity

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bugcatch/internal/models"
)

// Digest returns the sha1 hex digest of the concatenated parts.
func Digest(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Canonical returns a deterministic JSON serialization of v. Map keys are
// sorted by the encoder, so logically identical payloads serialize
// identically regardless of the field order the client sent.
//
// Raw JSON payloads are decoded and re-encoded to strip formatting and key
// order. Payloads that fail to decode (or re-encode) still produce a stable
// result: the raw bytes are used as-is.
func Canonical(v interface{}) string {
	if raw, ok := v.(json.RawMessage); ok {
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return string(raw)
		}
		v = decoded
	}
	out, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}

// ObfuscateIP returns the base64 form of an IP address. The raw address never
// reaches storage or the hash input.
func ObfuscateIP(ip string) string {
	return base64.StdEncoding.EncodeToString([]byte(ip))
}

// UserUID derives a user identity from the obfuscated IP address and the
// geolocation record: sha1(obfuscatedIP + canonicalJSON(geo)).
func UserUID(obfuscatedIP string, geo models.GeoInfo) string {
	return Digest(obfuscatedIP, Canonical(geo))
}

// EventUID derives an event identity from its type and payload:
// sha1(type + canonicalJSON(data)).
func EventUID(eventType string, data json.RawMessage) string {
	return Digest(eventType, Canonical(data))
}
