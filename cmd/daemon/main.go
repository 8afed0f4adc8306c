// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/open-gallery/hlsgate/internal/api"
	"github.com/open-gallery/hlsgate/internal/auth"
	"github.com/open-gallery/hlsgate/internal/catalog"
	"github.com/open-gallery/hlsgate/internal/config"
	hlog "github.com/open-gallery/hlsgate/internal/log"
	"github.com/open-gallery/hlsgate/internal/sign"
	"github.com/open-gallery/hlsgate/internal/signcache"
	"github.com/open-gallery/hlsgate/internal/storage"
	"github.com/open-gallery/hlsgate/internal/token"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

// Janitor cadences for the in-process backends. Redis and badger expire
// entries natively; badger still needs periodic value-log GC.
const (
	janitorInterval  = 15 * time.Minute
	badgerGCInterval = 10 * time.Minute
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg := config.Load()

	hlog.Configure(hlog.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.LogService,
		Version: version,
	})
	logger := hlog.WithComponent("daemon")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Str("event", "config.invalid").Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared KV. Redis is optional for single-node runs; every shared
	// concern degrades to its in-process backend without it.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connection failed")
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	} else {
		logger.Warn().Msg("no redis configured; signed-URL cache, sessions and auth version are process-local")
	}

	signer, err := sign.New(cfg.StorageEndpoint, cfg.StorageBucket, cfg.StorageRegion, sign.Credentials{
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("signer setup failed")
	}

	var urlKV signcache.KV
	if redisClient != nil {
		urlKV = signcache.NewRedisKV(redisClient)
	} else {
		kv := signcache.NewMemoryKV()
		go kv.Janitor(ctx, janitorInterval)
		urlKV = kv
	}
	urls := signcache.New(urlKV, signer, cfg.SignTTL, cfg.SignBucketSize, cfg.SignConcurrency, hlog.WithComponent("signcache"))

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("catalog open failed")
	}
	defer func() { _ = cat.Close() }()

	tokenStore, err := token.Open(cfg.TokenBackend, token.Options{
		Redis:      redisClient,
		BadgerPath: cfg.BadgerPath,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.TokenBackend).Msg("token store open failed")
	}
	defer func() { _ = tokenStore.Close() }()
	switch ts := tokenStore.(type) {
	case *token.MemoryStore:
		go ts.Janitor(ctx, janitorInterval)
	case *token.BadgerStore:
		go ts.RunGC(ctx, badgerGCInterval)
	}
	tokens := token.NewService(tokenStore, cfg.TokenTTL)

	var (
		sessions auth.SessionStore
		versions auth.Versions
	)
	if redisClient != nil {
		sessions = auth.NewRedisSessions(redisClient)
		versions = auth.NewRedisVersions(redisClient)
	} else {
		ms := auth.NewMemorySessions()
		go ms.Janitor(ctx, janitorInterval)
		sessions = ms
		versions = auth.NewMemoryVersions()
	}
	gate := auth.NewGate(cfg.GatewayPassword, sessions, versions, cfg.SessionTTL)

	server := api.New(cfg, api.Deps{
		Gate:     gate,
		Versions: versions,
		Tokens:   tokens,
		Ladder:   cat,
		Store:    storage.New(signer, nil),
		URLs:     urls,
	})

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("addr", cfg.ListenAddr).
		Str("storage", cfg.StorageEndpoint).
		Str("bucket", cfg.StorageBucket).
		Str("token_backend", cfg.TokenBackend).
		Bool("session_gate", gate.Configured()).
		Msg("starting hlsgate")
	if !gate.Configured() {
		logger.Warn().Str("security", "weak").Msg("no gateway password set; playback token issuance is open")
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info().Msg("server exiting")
}
