// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

// Package config loads the service configuration using Koanf v2 with layered
// sources: built-in defaults, an optional YAML file, then environment
// variables. Precedence: ENV > File > Defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bugcatch/config.yaml",
	"/etc/bugcatch/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the root configuration for the service.
type Config struct {
	API     APIConfig     `koanf:"api"`
	MongoDB MongoDBConfig `koanf:"mongodb"`
	Cache   CacheConfig   `koanf:"cache"`
	GeoIP   GeoIPConfig   `koanf:"geoip"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// APIConfig configures the mounted router.
type APIConfig struct {
	// Token gates the /release read endpoints. Empty disables them.
	Token string `koanf:"token"`

	// BaseURL is the path prefix the router is mounted under.
	BaseURL string `koanf:"base_url"`

	RateLimit   RateLimitConfig `koanf:"rate_limit"`
	CORSOrigins []string        `koanf:"cors_origins"`
}

// RateLimitConfig bounds the per-IP request rate on the ingestion endpoints.
type RateLimitConfig struct {
	Max    int           `koanf:"max"`
	Window time.Duration `koanf:"window"`
}

// MongoDBConfig locates the backing document store.
type MongoDBConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

// CacheConfig configures the rollup result cache.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// GeoIPConfig locates the optional MaxMind City database. Empty disables
// geolocation; user identities then hash over an empty geo record.
type GeoIPConfig struct {
	Database string `koanf:"database"`
}

// ServerConfig configures the standalone HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Applied first, then
// overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Token:   "",
			BaseURL: "/",
			RateLimit: RateLimitConfig{
				Max:    100,
				Window: 1 * time.Minute,
			},
			CORSOrigins: []string{"*"},
		},
		MongoDB: MongoDBConfig{
			URI:      "",
			Database: "bug-catch",
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		GeoIP: GeoIPConfig{
			Database: "",
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3000,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env vars arrive as strings; split known slice fields on commas.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	if c.MongoDB.URI == "" {
		return errors.New("mongodb.uri is required")
	}
	if c.MongoDB.Database == "" {
		return errors.New("mongodb.database is required")
	}
	if c.API.RateLimit.Max <= 0 {
		return fmt.Errorf("api.rate_limit.max must be positive, got %d", c.API.RateLimit.Max)
	}
	if c.API.RateLimit.Window <= 0 {
		return fmt.Errorf("api.rate_limit.window must be positive, got %s", c.API.RateLimit.Window)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	return nil
}

// findConfigFile searches for a config file, env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when supplied through the environment.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment variables never
// pollute the config.
//
// Examples:
//   - API_TOKEN -> api.token
//   - MONGODB_URI -> mongodb.uri
//   - RATE_LIMIT_MAX -> api.rate_limit.max
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// API mappings
		"api_token":         "api.token",
		"api_base_url":      "api.base_url",
		"rate_limit_max":    "api.rate_limit.max",
		"rate_limit_window": "api.rate_limit.window",
		"cors_origins":      "api.cors_origins",

		// MongoDB mappings
		"mongodb_uri":      "mongodb.uri",
		"mongodb_database": "mongodb.database",

		// Cache mappings
		"cache_ttl": "cache.ttl",

		// GeoIP mappings
		"geoip_database": "geoip.database",

		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
