// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package aggregators

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/bugcatch/internal/models"
)

// Document is a stored document in map form, as returned by FindAll.
type Document = map[string]interface{}

// EvaluateEvents computes the events rollup over a document slice.
func EvaluateEvents(docs []Document) models.EventsRollup {
	var rollup models.EventsRollup
	for _, doc := range docs {
		rollup.Total++
		if str(doc, "type") == "error" {
			rollup.TotalErrors++
		} else {
			rollup.TotalCustom++
		}
	}
	return rollup
}

// EvaluateIncidents computes the incidents rollup: total count plus the most
// and least frequent event types. The pipeline sorts count descending with _id
// ascending and takes $first/$last, so among tied counts the lexicographically
// smaller type wins most_common and the larger one wins least_common; the
// evaluator resolves ties the same way.
func EvaluateIncidents(docs []Document) models.IncidentsRollup {
	rollup := models.IncidentsRollup{Total: int64(len(docs))}
	counts := make(map[string]int64)
	for _, doc := range docs {
		counts[str(doc, "event_type")]++
	}
	for eventType, count := range counts {
		if rollup.MostCommon == "" ||
			count > counts[rollup.MostCommon] ||
			(count == counts[rollup.MostCommon] && eventType < rollup.MostCommon) {
			rollup.MostCommon = eventType
		}
		if rollup.LeastCommon == "" ||
			count < counts[rollup.LeastCommon] ||
			(count == counts[rollup.LeastCommon] && eventType > rollup.LeastCommon) {
			rollup.LeastCommon = eventType
		}
	}
	return rollup
}

// EvaluateMode computes the by-mode incidents count. Mode "events" counts
// every non-error incident; any other mode counts exact event_type matches.
func EvaluateMode(docs []Document, mode string) models.ModeRollup {
	var rollup models.ModeRollup
	for _, doc := range docs {
		eventType := str(doc, "event_type")
		if mode == ModeEvents {
			if eventType != "error" {
				rollup.Total++
			}
		} else if eventType == mode {
			rollup.Total++
		}
	}
	return rollup
}

// EvaluateWebVitals computes the web-vitals rollup over a document slice.
// An empty slice yields a zero-valued rollup: Count 0 and every percentage 0,
// never a division error.
func EvaluateWebVitals(docs []Document) models.WebVitalsRollup {
	var rollup models.WebVitalsRollup
	total := int64(len(docs))
	rollup.Count = total
	if total == 0 {
		return rollup
	}

	var memory, cores, ttfb, fp, fcp, fid, lcp, cls, tbt statAcc
	var swUnsupported, lowEndDevice, lowEndExperience int64
	var desktop, mobile, tablet int64

	for _, doc := range docs {
		memory.observe(doc, "data.navigatorInformation.deviceMemory")
		cores.observe(doc, "data.navigatorInformation.hardwareConcurrency")
		ttfb.observe(doc, "data.ttfb")
		fp.observe(doc, "data.fp")
		fcp.observe(doc, "data.fcp")
		fid.observe(doc, "data.fid")
		lcp.observe(doc, "data.lcp")
		cls.observe(doc, "data.cls")
		tbt.observe(doc, "data.tbt")

		if str(doc, "data.navigatorInformation.serviceWorkerStatus") == "unsupported" {
			swUnsupported++
		}
		if boolean(doc, "data.navigatorInformation.isLowEndDevice") {
			lowEndDevice++
		}
		if boolean(doc, "data.navigatorInformation.isLowEndExperience") {
			lowEndExperience++
		}

		switch str(doc, "device.device") {
		case "desktop":
			desktop++
		case "mobile":
			mobile++
		case "tablet":
			tablet++
		}
	}

	other := total - (desktop + mobile + tablet)
	rollup.Device = models.DeviceRollup{
		Device: models.DeviceClassBreakdown{
			Desktop:        desktop,
			Mobile:         mobile,
			Tablet:         tablet,
			Other:          other,
			DesktopPercent: pct(desktop, total),
			MobilePercent:  pct(mobile, total),
			TabletPercent:  pct(tablet, total),
			OtherPercent:   pct(other, total),
		},
		CPUCores:                        cores.stats(),
		Memory:                          memory.stats(),
		ServiceWorkerUnsupportedPercent: pct(swUnsupported, total),
		LowEndDevicesPercent:            pct(lowEndDevice, total),
		LowEndExperiencesPercent:        pct(lowEndExperience, total),
	}
	rollup.TTFB = ttfb.stats()
	rollup.FP = fp.stats()
	rollup.FCP = fcp.stats()
	rollup.FID = fid.stats()
	rollup.LCP = lcp.stats()
	rollup.CLS = cls.stats()
	rollup.TBT = tbt.stats()
	return rollup
}

// statAcc accumulates avg/max/min the way $avg/$max/$min do: missing and
// non-numeric values are skipped, not treated as zero.
type statAcc struct {
	count int64
	sum   float64
	max   float64
	min   float64
}

func (a *statAcc) observe(doc Document, path string) {
	value, ok := numeric(doc, path)
	if !ok {
		return
	}
	if a.count == 0 || value > a.max {
		a.max = value
	}
	if a.count == 0 || value < a.min {
		a.min = value
	}
	a.count++
	a.sum += value
}

func (a *statAcc) stats() models.MetricStats {
	if a.count == 0 {
		return models.MetricStats{}
	}
	return models.MetricStats{
		Avg: a.sum / float64(a.count),
		Max: a.max,
		Min: a.min,
	}
}

func pct(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// lookup resolves a dotted path against nested document maps. Documents that
// round-tripped through the BSON decoder carry nested bson.M values.
func lookup(doc Document, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = doc
	for _, part := range parts {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case bson.M:
		return m, true
	default:
		return nil, false
	}
}

func str(doc Document, path string) string {
	value, ok := lookup(doc, path)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

func boolean(doc Document, path string) bool {
	value, ok := lookup(doc, path)
	if !ok {
		return false
	}
	b, _ := value.(bool)
	return b
}

// numeric coerces the BSON and JSON number representations a decoded document
// can hold.
func numeric(doc Document, path string) (float64, bool) {
	value, ok := lookup(doc, path)
	if !ok {
		return 0, false
	}
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
