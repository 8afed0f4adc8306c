// SPDX-License-Identifier: MIT

// Package api is the HTTP-facing delivery gateway: it routes playlist,
// casting and session requests, and ties the manifest rewriter, signer
// caches and token service together.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/open-gallery/hlsgate/internal/auth"
	"github.com/open-gallery/hlsgate/internal/config"
	"github.com/open-gallery/hlsgate/internal/log"
	"github.com/open-gallery/hlsgate/internal/signcache"
	"github.com/open-gallery/hlsgate/internal/storage"
	"github.com/open-gallery/hlsgate/internal/token"
)

// Storage fetches immutable objects from the object store.
type Storage interface {
	Fetch(ctx context.Context, storageKey string) (*storage.Object, error)
}

// Ladder resolves the quality levels recorded for a video at encode time.
type Ladder interface {
	Levels(ctx context.Context, videoID string) ([]string, error)
}

// Deps carries the collaborators the gateway dispatches to.
type Deps struct {
	Gate     *auth.Gate
	Versions auth.Versions
	Tokens   *token.Service
	Ladder   Ladder
	Store    Storage
	URLs     *signcache.Cache
}

// Server is the delivery gateway HTTP server.
type Server struct {
	cfg      config.AppConfig
	gate     *auth.Gate
	versions auth.Versions
	tokens   *token.Service
	ladder   Ladder
	store    Storage
	urls     *signcache.Cache
}

// New creates the gateway server.
func New(cfg config.AppConfig, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		gate:     deps.Gate,
		versions: deps.Versions,
		tokens:   deps.Tokens,
		ladder:   deps.Ladder,
		store:    deps.Store,
		urls:     deps.URLs,
	}
}

// Handler builds the chi router with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(log.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.cfg.MetricsAddr == "" {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/hls/playlist", s.handlePlaylist)

		// Issuance is the only write-ish endpoint reachable without a
		// session in open deployments, so it carries a per-IP limit.
		r.With(httprate.LimitByIP(30, time.Minute)).
			Post("/generate-airplay-url", s.handleGenerateAirplayURL)

		r.Get("/airplay/{token}/{file}", s.handleAirplayFile)

		r.Post("/auth/session", s.handleSessionLogin)
		r.Post("/auth/invalidate", s.handleAuthInvalidate)
	})

	return r
}
