// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package device normalizes request context into the canonical device-info
// record attached to every stored occurrence.
//
// Inference never fails: fields that cannot be derived default to "unknown"
// or are omitted. Caller-supplied device fields from the request body take
// precedence over inferred values (shallow override).
package device

import (
	"github.com/mileusna/useragent"

	"github.com/tomtom215/bugcatch/internal/models"
)

// Unknown is the fallback device class for unclassifiable user agents.
const Unknown = "unknown"

// Normalizer produces device-info records from raw request context.
// It is a pure function of its inputs; the geo resolver is the only
// collaborator and is consulted separately via Geo.
type Normalizer struct {
	geo GeoResolver
}

// NewNormalizer creates a normalizer. A nil resolver disables geolocation;
// every lookup then yields an empty record.
func NewNormalizer(geo GeoResolver) *Normalizer {
	if geo == nil {
		geo = NoopResolver{}
	}
	return &Normalizer{geo: geo}
}

// Normalize parses the User-Agent header into a device-info record and
// applies the caller's shallow override.
func (n *Normalizer) Normalize(userAgent string, override *models.DeviceOverride) models.DeviceInfo {
	info := models.DeviceInfo{Device: Unknown}

	if userAgent != "" {
		ua := useragent.Parse(userAgent)
		info.Device = classOf(ua)
		info.Browser = models.NameVersion{Name: ua.Name, Version: ua.Version}
		info.OS = models.NameVersion{Name: ua.OS, Version: ua.OSVersion}
	}

	if override != nil {
		if override.Device != "" {
			info.Device = override.Device
		}
		if override.OS != nil {
			info.OS = *override.OS
		}
		if override.Browser != nil {
			info.Browser = *override.Browser
		}
	}

	return info
}

// Geo resolves the client IP to a best-effort geolocation record.
func (n *Normalizer) Geo(ip string) models.GeoInfo {
	return n.geo.Lookup(ip)
}

// classOf maps a parsed user agent to one of the device classes the
// web-vitals rollup breaks down by: desktop, mobile, tablet or unknown.
func classOf(ua useragent.UserAgent) string {
	switch {
	case ua.Tablet:
		return "tablet"
	case ua.Mobile:
		return "mobile"
	case ua.Desktop:
		return "desktop"
	default:
		return Unknown
	}
}
