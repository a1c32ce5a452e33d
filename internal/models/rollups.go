// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package models

// EventsRollup summarizes the events collection. TotalErrors counts documents
// with type "error"; TotalCustom counts everything else.
type EventsRollup struct {
	Total       int64 `json:"total" bson:"total"`
	TotalErrors int64 `json:"total_errors" bson:"total_errors"`
	TotalCustom int64 `json:"total_custom" bson:"total_custom"`
}

// ModeRollup is an incidents count filtered by a mode string: mode "events"
// matches every non-error incident, any other mode matches event_type exactly.
type ModeRollup struct {
	Total int64 `json:"total" bson:"total"`
}

// IncidentsRollup summarizes the incidents collection: total occurrence count
// and the most/least frequent event types, plus the by-mode breakdowns the
// report endpoint attaches.
type IncidentsRollup struct {
	Total       int64       `json:"total" bson:"total"`
	MostCommon  string      `json:"most_common,omitempty" bson:"most_common,omitempty"`
	LeastCommon string      `json:"least_common,omitempty" bson:"least_common,omitempty"`
	Errors      *ModeRollup `json:"errors,omitempty" bson:"-"`
	Events      *ModeRollup `json:"events,omitempty" bson:"-"`
}

// MetricStats holds avg/max/min for one numeric metric family across all
// documents in the web-vitals collection.
type MetricStats struct {
	Avg float64 `json:"avg" bson:"avg"`
	Max float64 `json:"max" bson:"max"`
	Min float64 `json:"min" bson:"min"`
}

// DeviceClassBreakdown counts web-vitals reports per device class. Other is
// defined as total minus the three known classes, so unclassifiable devices
// are never dropped from the percentages.
type DeviceClassBreakdown struct {
	Desktop        int64   `json:"desktop" bson:"desktop"`
	Mobile         int64   `json:"mobile" bson:"mobile"`
	Tablet         int64   `json:"tablet" bson:"tablet"`
	Other          int64   `json:"other" bson:"other"`
	DesktopPercent float64 `json:"desktopPercent" bson:"desktopPercent"`
	MobilePercent  float64 `json:"mobilePercent" bson:"mobilePercent"`
	TabletPercent  float64 `json:"tabletPercent" bson:"tabletPercent"`
	OtherPercent   float64 `json:"otherPercent" bson:"otherPercent"`
}

// DeviceRollup groups the device-centric web-vitals statistics.
type DeviceRollup struct {
	Device                          DeviceClassBreakdown `json:"device" bson:"device"`
	CPUCores                        MetricStats          `json:"cpuCores" bson:"cpuCores"`
	Memory                          MetricStats          `json:"memory" bson:"memory"`
	ServiceWorkerUnsupportedPercent float64              `json:"serviceWorkerUnsupportedPercent" bson:"serviceWorkerUnsupportedPercent"`
	LowEndDevicesPercent            float64              `json:"lowEndDevicesPercent" bson:"lowEndDevicesPercent"`
	LowEndExperiencesPercent        float64              `json:"lowEndExperiencesPercent" bson:"lowEndExperiencesPercent"`
}

// WebVitalsRollup summarizes the web-vitals collection. When Count is zero
// every percentage and stat field is zero-valued rather than an error.
type WebVitalsRollup struct {
	Count  int64        `json:"count" bson:"count"`
	Device DeviceRollup `json:"device" bson:"device"`
	TTFB   MetricStats  `json:"ttfb" bson:"ttfb"`
	FP     MetricStats  `json:"fp" bson:"fp"`
	FCP    MetricStats  `json:"fcp" bson:"fcp"`
	FID    MetricStats  `json:"fid" bson:"fid"`
	LCP    MetricStats  `json:"lcp" bson:"lcp"`
	CLS    MetricStats  `json:"cls" bson:"cls"`
	TBT    MetricStats  `json:"tbt" bson:"tbt"`
}

// UsersRollup holds the user statistics section of the report.
type UsersRollup struct {
	Total int64 `json:"total"`
}

// Report is the GET /release/report response body.
type Report struct {
	Users     UsersRollup     `json:"users"`
	Events    EventsRollup    `json:"events"`
	Incidents IncidentsRollup `json:"incidents"`
	Vitals    WebVitalsRollup `json:"vitals"`
}

// StatusResponse is the immediate ingestion acknowledgment body.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body for 4xx/5xx responses. Status is set only on
// server errors, mirroring the original wire format.
type ErrorResponse struct {
	Status string `json:"status,omitempty"`
	Msg    string `json:"msg"`
}
