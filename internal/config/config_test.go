// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithRequiredEnv(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MongoDB.Database != "bug-catch" {
		t.Errorf("Expected default database bug-catch, got %s", cfg.MongoDB.Database)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Expected default cache TTL 10m, got %s", cfg.Cache.TTL)
	}
	if cfg.API.RateLimit.Max != 100 {
		t.Errorf("Expected default rate limit 100, got %d", cfg.API.RateLimit.Max)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Expected default port 3000, got %d", cfg.Server.Port)
	}
}

func TestLoadFailsWithoutMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")

	if _, err := Load(); err == nil {
		t.Fatal("Expected validation failure without mongodb.uri")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("API_TOKEN", "secret-token")
	t.Setenv("RATE_LIMIT_MAX", "250")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Token != "secret-token" {
		t.Errorf("Expected token from env, got %q", cfg.API.Token)
	}
	if cfg.API.RateLimit.Max != 250 {
		t.Errorf("Expected rate limit 250, got %d", cfg.API.RateLimit.Max)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug log level, got %s", cfg.Logging.Level)
	}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("Expected comma-split CORS origins, got %v", cfg.API.CORSOrigins)
	}
}

func TestConfigFileLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("mongodb:\n  uri: mongodb://filehost:27017\n  database: telemetry\ncache:\n  ttl: 2m\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MongoDB.URI != "mongodb://filehost:27017" {
		t.Errorf("Expected URI from file, got %s", cfg.MongoDB.URI)
	}
	if cfg.MongoDB.Database != "telemetry" {
		t.Errorf("Expected database from file, got %s", cfg.MongoDB.Database)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("Expected TTL 2m from file, got %s", cfg.Cache.TTL)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("mongodb:\n  uri: mongodb://filehost:27017\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("MONGODB_URI", "mongodb://envhost:27017")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MongoDB.URI != "mongodb://envhost:27017" {
		t.Errorf("Expected env to beat file, got %s", cfg.MongoDB.URI)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.MongoDB.URI = "mongodb://localhost:27017"
		return cfg
	}

	cfg := base()
	cfg.API.RateLimit.Max = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected rejection of zero rate limit")
	}

	cfg = base()
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("Expected rejection of out-of-range port")
	}

	cfg = base()
	cfg.MongoDB.Database = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected rejection of empty database name")
	}
}
