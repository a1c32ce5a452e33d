// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package testinfra provides container-backed infrastructure for integration
// tests, built on testcontainers-go.
//
// # MongoDB Container
//
// MongoContainer runs a real mongod so the Mongo store gateway can be tested
// against the database it ships with, not just the in-memory reimplementation:
//
//	func TestStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    mongo, err := testinfra.NewMongoContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer mongo.Terminate(ctx)
//
//	    store := database.NewMongo(mongo.URI, "bugcatch_test")
//	    // ...
//	}
//
// Tests in this package and its consumers carry the integration build tag and
// skip gracefully when Docker is unavailable. The first run downloads the
// container image; subsequent runs use the cache.
package testinfra
