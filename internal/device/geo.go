// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package device

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/tomtom215/bugcatch/internal/models"
)

// GeoResolver maps a client IP address to a best-effort geolocation record.
// Implementations must not fail: unresolvable addresses yield an empty
// record.
type GeoResolver interface {
	Lookup(ip string) models.GeoInfo
	Close() error
}

// NoopResolver is the resolver used when no GeoIP database is configured.
type NoopResolver struct{}

// Lookup always returns an empty record.
func (NoopResolver) Lookup(string) models.GeoInfo { return models.GeoInfo{} }

// Close is a no-op.
func (NoopResolver) Close() error { return nil }

// MaxMindResolver resolves addresses against a local MaxMind GeoIP2/GeoLite2
// City database, the Go counterpart of the geoip-lite lookups the original
// bug-catch performed.
type MaxMindResolver struct {
	reader *geoip2.Reader
}

var _ GeoResolver = (*MaxMindResolver)(nil)

// OpenMaxMind opens the .mmdb file at path.
func OpenMaxMind(path string) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

// Lookup resolves ip to country/region/city. Absent fields stay empty.
func (r *MaxMindResolver) Lookup(ip string) models.GeoInfo {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return models.GeoInfo{}
	}

	record, err := r.reader.City(parsed)
	if err != nil {
		return models.GeoInfo{}
	}

	info := models.GeoInfo{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].IsoCode
	}
	return info
}

// Close releases the database reader.
func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}
