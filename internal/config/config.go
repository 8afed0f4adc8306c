// SPDX-License-Identifier: MIT

// Package config loads gateway configuration from the environment with
// precedence ENV > defaults. All knobs use the HLSGATE_ prefix.
package config

import (
	"fmt"
	"strings"
	"time"
)

// AppConfig holds the full runtime configuration of the gateway.
type AppConfig struct {
	// HTTP
	ListenAddr    string // API listen address
	MetricsAddr   string // separate metrics listener; empty serves /metrics on the API mux
	PublicBaseURL string // external origin for generated URLs; empty derives from the request

	// Logging
	LogLevel   string
	LogService string
	LogPretty  bool // console output for local runs; JSON otherwise

	// Object storage (S3-compatible)
	StorageEndpoint  string // e.g. https://objects.internal:9000
	StorageBucket    string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string

	// Signing
	SignTTL         time.Duration // validity of presigned segment URLs
	SignBucketSize  time.Duration // cache convergence window for signed URLs
	SignConcurrency int           // parallel signing fan-out per request
	SignBatchCap    int           // hard cap on keys per signing batch

	// Catalog (quality-ladder metadata)
	CatalogPath string // sqlite database path

	// Shared key-value state
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Playback tokens
	TokenBackend string // redis | badger | memory
	TokenTTL     time.Duration
	BadgerPath   string

	// Session gate (optional)
	GatewayPassword string // empty disables the session gate entirely
	SessionTTL      time.Duration
}

// Load builds an AppConfig from environment variables and defaults.
func Load() AppConfig {
	return AppConfig{
		ListenAddr:    ParseString("HLSGATE_LISTEN", ":8080"),
		MetricsAddr:   ParseString("HLSGATE_METRICS_ADDR", ""),
		PublicBaseURL: strings.TrimRight(ParseString("HLSGATE_PUBLIC_URL", ""), "/"),

		LogLevel:   ParseString("HLSGATE_LOG_LEVEL", "info"),
		LogService: ParseString("HLSGATE_LOG_SERVICE", "hlsgate"),
		LogPretty:  ParseBool("HLSGATE_LOG_PRETTY", false),

		StorageEndpoint:  strings.TrimRight(ParseString("HLSGATE_STORAGE_ENDPOINT", ""), "/"),
		StorageBucket:    ParseString("HLSGATE_STORAGE_BUCKET", "media"),
		StorageRegion:    ParseString("HLSGATE_STORAGE_REGION", "us-east-1"),
		StorageAccessKey: ParseString("HLSGATE_STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: ParseString("HLSGATE_STORAGE_SECRET_KEY", ""),

		SignTTL:         ParseDuration("HLSGATE_SIGN_TTL", 4*time.Hour),
		SignBucketSize:  ParseDuration("HLSGATE_SIGN_BUCKET", 4*time.Hour),
		SignConcurrency: ParseInt("HLSGATE_SIGN_CONCURRENCY", 16),
		SignBatchCap:    ParseInt("HLSGATE_SIGN_BATCH_CAP", 512),

		CatalogPath: ParseString("HLSGATE_CATALOG_PATH", "catalog.db"),

		RedisAddr:     ParseString("HLSGATE_REDIS_ADDR", ""),
		RedisPassword: ParseString("HLSGATE_REDIS_PASSWORD", ""),
		RedisDB:       ParseInt("HLSGATE_REDIS_DB", 0),

		TokenBackend: ParseString("HLSGATE_TOKEN_BACKEND", "memory"),
		TokenTTL:     ParseDuration("HLSGATE_TOKEN_TTL", 6*time.Hour),
		BadgerPath:   ParseString("HLSGATE_BADGER_PATH", "tokens"),

		GatewayPassword: ParseString("HLSGATE_PASSWORD", ""),
		SessionTTL:      ParseDuration("HLSGATE_SESSION_TTL", 24*time.Hour),
	}
}

// Validate fails fast on configuration that cannot serve requests.
func (c AppConfig) Validate() error {
	if c.StorageEndpoint == "" {
		return fmt.Errorf("HLSGATE_STORAGE_ENDPOINT is required")
	}
	if !strings.HasPrefix(c.StorageEndpoint, "http://") && !strings.HasPrefix(c.StorageEndpoint, "https://") {
		return fmt.Errorf("HLSGATE_STORAGE_ENDPOINT must be an http(s) URL, got %q", c.StorageEndpoint)
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("HLSGATE_STORAGE_BUCKET is required")
	}
	if c.StorageAccessKey == "" || c.StorageSecretKey == "" {
		return fmt.Errorf("HLSGATE_STORAGE_ACCESS_KEY and HLSGATE_STORAGE_SECRET_KEY are required")
	}
	switch c.TokenBackend {
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("HLSGATE_TOKEN_BACKEND=redis requires HLSGATE_REDIS_ADDR")
		}
	case "badger", "memory":
	default:
		return fmt.Errorf("unknown token backend %q (want redis, badger or memory)", c.TokenBackend)
	}
	if c.SignTTL <= 0 || c.SignBucketSize <= 0 {
		return fmt.Errorf("signing TTL and bucket size must be positive")
	}
	if c.SignTTL < c.SignBucketSize {
		return fmt.Errorf("HLSGATE_SIGN_TTL must be at least HLSGATE_SIGN_BUCKET, got %s < %s", c.SignTTL, c.SignBucketSize)
	}
	if c.SignConcurrency < 1 {
		return fmt.Errorf("HLSGATE_SIGN_CONCURRENCY must be at least 1")
	}
	if c.SignBatchCap < 1 {
		return fmt.Errorf("HLSGATE_SIGN_BATCH_CAP must be at least 1")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("HLSGATE_TOKEN_TTL must be positive")
	}
	return nil
}
