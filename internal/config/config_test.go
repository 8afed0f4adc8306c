// SPDX-License-Identifier: MIT

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() AppConfig {
	c := Load()
	c.StorageEndpoint = "https://objects.internal:9000"
	c.StorageAccessKey = "AKIDEXAMPLE"
	c.StorageSecretKey = "secret"
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := Load()

	if c.ListenAddr != ":8080" {
		t.Errorf("unexpected listen addr %q", c.ListenAddr)
	}
	if c.StorageBucket != "media" || c.StorageRegion != "us-east-1" {
		t.Errorf("unexpected storage defaults %q %q", c.StorageBucket, c.StorageRegion)
	}
	if c.SignTTL != 4*time.Hour || c.SignBucketSize != 4*time.Hour {
		t.Errorf("unexpected signing defaults ttl=%s bucket=%s", c.SignTTL, c.SignBucketSize)
	}
	if c.SignConcurrency != 16 || c.SignBatchCap != 512 {
		t.Errorf("unexpected fan-out defaults %d %d", c.SignConcurrency, c.SignBatchCap)
	}
	if c.TokenBackend != "memory" || c.TokenTTL != 6*time.Hour {
		t.Errorf("unexpected token defaults %q %s", c.TokenBackend, c.TokenTTL)
	}
	if c.GatewayPassword != "" {
		t.Error("gate must default to open")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HLSGATE_LISTEN", ":9090")
	t.Setenv("HLSGATE_SIGN_TTL", "2h")
	t.Setenv("HLSGATE_SIGN_CONCURRENCY", "4")
	t.Setenv("HLSGATE_PUBLIC_URL", "https://gallery.example/")
	t.Setenv("HLSGATE_STORAGE_ENDPOINT", "https://objects.internal:9000/")
	t.Setenv("HLSGATE_LOG_PRETTY", "true")

	c := Load()
	if c.ListenAddr != ":9090" {
		t.Errorf("unexpected listen addr %q", c.ListenAddr)
	}
	if c.SignTTL != 2*time.Hour {
		t.Errorf("unexpected sign TTL %s", c.SignTTL)
	}
	if c.SignConcurrency != 4 {
		t.Errorf("unexpected concurrency %d", c.SignConcurrency)
	}
	if strings.HasSuffix(c.PublicBaseURL, "/") || strings.HasSuffix(c.StorageEndpoint, "/") {
		t.Error("trailing slashes must be trimmed from URLs")
	}
	if !c.LogPretty {
		t.Error("expected pretty logging enabled")
	}
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("HLSGATE_SIGN_CONCURRENCY", "lots")
	t.Setenv("HLSGATE_SIGN_TTL", "soon")
	t.Setenv("HLSGATE_LOG_PRETTY", "maybe")

	c := Load()
	if c.SignConcurrency != 16 {
		t.Errorf("invalid int must fall back to default, got %d", c.SignConcurrency)
	}
	if c.SignTTL != 4*time.Hour {
		t.Errorf("invalid duration must fall back to default, got %s", c.SignTTL)
	}
	if c.LogPretty {
		t.Error("invalid bool must fall back to default")
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"missing endpoint", func(c *AppConfig) { c.StorageEndpoint = "" }},
		{"non-http endpoint", func(c *AppConfig) { c.StorageEndpoint = "ftp://objects" }},
		{"missing bucket", func(c *AppConfig) { c.StorageBucket = "" }},
		{"missing credentials", func(c *AppConfig) { c.StorageAccessKey = "" }},
		{"unknown token backend", func(c *AppConfig) { c.TokenBackend = "dynamo" }},
		{"redis backend without addr", func(c *AppConfig) { c.TokenBackend = "redis" }},
		{"zero sign ttl", func(c *AppConfig) { c.SignTTL = 0 }},
		{"ttl below bucket", func(c *AppConfig) { c.SignTTL = time.Hour; c.SignBucketSize = 2 * time.Hour }},
		{"zero concurrency", func(c *AppConfig) { c.SignConcurrency = 0 }},
		{"zero batch cap", func(c *AppConfig) { c.SignBatchCap = 0 }},
		{"zero token ttl", func(c *AppConfig) { c.TokenTTL = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
