// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package aggregators defines the declarative rollup specifications for the
// events, incidents and web-vitals collections.
//
// Each rollup exists in two forms with identical semantics: a MongoDB
// aggregation pipeline (evaluated server-side by the store gateway) and a Go
// evaluator over plain document maps (used by the in-memory store and by
// tests). A rollup is a pure function of the collection's full contents; there
// is no time windowing.
package aggregators

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ModeEvents is the mode string that selects every non-error incident.
const ModeEvents = "events"

// Events returns the events-collection rollup pipeline: total count, count of
// type "error", count of everything else.
func Events() mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "events"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "total_errors", Value: condSum(eq("$type", "error"), 1, 0)},
			{Key: "total_custom", Value: condSum(eq("$type", "error"), 0, 1)},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "total", Value: "$total"},
			{Key: "total_errors", Value: "$total_errors"},
			{Key: "total_custom", Value: "$total_custom"},
		}}},
	}
}

// Incidents returns the incidents-collection rollup pipeline: total occurrence
// count plus the most and least frequent event types.
func Incidents() mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$event_type"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "count", Value: -1},
			{Key: "_id", Value: 1},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "incidents"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$count"}}},
			{Key: "most_common", Value: bson.D{{Key: "$first", Value: "$_id"}}},
			{Key: "least_common", Value: bson.D{{Key: "$last", Value: "$_id"}}},
		}}},
	}
}

// ModeEvent returns the by-mode incidents pipeline. Mode "events" matches
// every incident whose event_type is not "error"; any other mode matches
// event_type exactly. An empty collection (or no match) yields no document;
// the gateway translates that into a zero rollup.
func ModeEvent(mode string) mongo.Pipeline {
	var match bson.D
	if mode == ModeEvents {
		match = bson.D{{Key: "event_type", Value: bson.D{{Key: "$ne", Value: "error"}}}}
	} else {
		match = bson.D{{Key: "event_type", Value: mode}}
	}
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$count", Value: "total"}},
	}
}

// WebVitals returns the web-vitals rollup pipeline: avg/max/min for each
// numeric metric family, true-percentages for the boolean flag families, and
// the device-class breakdown with counts and percentages.
//
// Divisions by $total only execute when the $group stage emitted a document,
// which requires at least one input document, so total is never zero at that
// point.
func WebVitals() mongo.Pipeline {
	group := bson.D{
		{Key: "_id", Value: "insights"},
		{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		{Key: "serviceWorker_unsupported", Value: condSum(
			eq("$data.navigatorInformation.serviceWorkerStatus", "unsupported"), 1, 0)},
		{Key: "isLowEndDevice_true", Value: condSum(
			eq("$data.navigatorInformation.isLowEndDevice", true), 1, 0)},
		{Key: "isLowEndExperience_true", Value: condSum(
			eq("$data.navigatorInformation.isLowEndExperience", true), 1, 0)},
		{Key: "device_desktop", Value: condSum(eq("$device.device", "desktop"), 1, 0)},
		{Key: "device_mobile", Value: condSum(eq("$device.device", "mobile"), 1, 0)},
		{Key: "device_tablet", Value: condSum(eq("$device.device", "tablet"), 1, 0)},
		{Key: "device_known", Value: condSum(bson.D{{Key: "$or", Value: bson.A{
			eq("$device.device", "desktop"),
			eq("$device.device", "mobile"),
			eq("$device.device", "tablet"),
		}}}, 1, 0)},
	}
	group = append(group, statFields("deviceMemory", "$data.navigatorInformation.deviceMemory")...)
	group = append(group, statFields("deviceCPUCores", "$data.navigatorInformation.hardwareConcurrency")...)
	for _, metric := range []string{"ttfb", "fp", "fcp", "fid", "lcp", "cls", "tbt"} {
		group = append(group, statFields(metric, "$data."+metric)...)
	}

	project := bson.D{
		{Key: "count", Value: "$total"},
		{Key: "device", Value: bson.D{
			{Key: "device", Value: bson.D{
				{Key: "desktop", Value: "$device_desktop"},
				{Key: "mobile", Value: "$device_mobile"},
				{Key: "tablet", Value: "$device_tablet"},
				{Key: "other", Value: bson.D{{Key: "$subtract", Value: bson.A{"$total", "$device_known"}}}},
				{Key: "desktopPercent", Value: percent("$device_desktop")},
				{Key: "mobilePercent", Value: percent("$device_mobile")},
				{Key: "tabletPercent", Value: percent("$device_tablet")},
				{Key: "otherPercent", Value: percent(bson.D{{Key: "$subtract", Value: bson.A{"$total", "$device_known"}}})},
			}},
			{Key: "cpuCores", Value: statProjection("deviceCPUCores")},
			{Key: "memory", Value: statProjection("deviceMemory")},
			{Key: "serviceWorkerUnsupportedPercent", Value: percent("$serviceWorker_unsupported")},
			{Key: "lowEndDevicesPercent", Value: percent("$isLowEndDevice_true")},
			{Key: "lowEndExperiencesPercent", Value: percent("$isLowEndExperience_true")},
		}},
	}
	for _, metric := range []string{"ttfb", "fp", "fcp", "fid", "lcp", "cls", "tbt"} {
		project = append(project, bson.E{Key: metric, Value: statProjection(metric)})
	}

	return mongo.Pipeline{
		bson.D{{Key: "$group", Value: group}},
		bson.D{{Key: "$project", Value: project}},
	}
}

// eq builds an $eq comparison expression.
func eq(path string, value interface{}) bson.D {
	return bson.D{{Key: "$eq", Value: bson.A{path, value}}}
}

// condSum builds a conditional counter: {$sum: {$cond: [cond, ifTrue, ifFalse]}}.
func condSum(cond interface{}, ifTrue, ifFalse int) bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{
		{Key: "$cond", Value: bson.A{cond, ifTrue, ifFalse}},
	}}}
}

// statFields builds the avg/max/min accumulators for one metric family.
func statFields(name, path string) bson.D {
	return bson.D{
		{Key: name + "_avg", Value: bson.D{{Key: "$avg", Value: path}}},
		{Key: name + "_max", Value: bson.D{{Key: "$max", Value: path}}},
		{Key: name + "_min", Value: bson.D{{Key: "$min", Value: path}}},
	}
}

// statProjection re-shapes accumulated stats into {avg, max, min}.
func statProjection(name string) bson.D {
	return bson.D{
		{Key: "avg", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + name + "_avg", 0}}}},
		{Key: "max", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + name + "_max", 0}}}},
		{Key: "min", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + name + "_min", 0}}}},
	}
}

// percent builds (value / $total) * 100.
func percent(value interface{}) bson.D {
	return bson.D{{Key: "$multiply", Value: bson.A{
		bson.D{{Key: "$divide", Value: bson.A{value, "$total"}}},
		100,
	}}}
}
