// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/open-gallery/hlsgate/internal/catalog"
	"github.com/open-gallery/hlsgate/internal/log"
	"github.com/open-gallery/hlsgate/internal/manifest"
	"github.com/open-gallery/hlsgate/internal/metrics"
	"github.com/open-gallery/hlsgate/internal/token"
)

// handleGenerateAirplayURL mints a playback token for a casting session:
// POST /api/generate-airplay-url {"videoId": "..."}.
//
// The token is the credential for its whole lifetime; the casting device
// never sees the session cookie that authorised issuance.
func (s *Server) handleGenerateAirplayURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.gate.Check(ctx, r) {
		writeUnauthorized(w)
		return
	}

	var req struct {
		VideoID string `json:"videoId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VideoID == "" {
		writeBadRequest(w, "missing videoId")
		return
	}

	if _, err := s.ladder.Levels(ctx, req.VideoID); err != nil {
		if errors.Is(err, catalog.ErrUnknownVideo) {
			writeNotFound(w)
			return
		}
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Str("video_id", req.VideoID).Msg("ladder lookup failed")
		writeInternal(w)
		return
	}

	tok, err := s.tokens.Issue(ctx, req.VideoID, s.gate.Configured())
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Str("video_id", req.VideoID).Msg("token issue failed")
		writeInternal(w)
		return
	}

	logger := log.WithComponentFromContext(ctx, "api")

	logger.Info().
		Str("event", "airplay.issue").
		Str("video_id", req.VideoID).
		Msg("issued playback token")

	writeJSON(w, http.StatusOK, map[string]string{
		"airplayUrl": s.origin(r) + "/api/airplay/" + tok + "/" + masterName,
	})
}

// origin returns the external base URL for generated links.
func (s *Server) origin(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// handleAirplayFile serves the credential-free manifest tree for a casting
// session: GET /api/airplay/{token}/{file}. The token is validated on every
// request; manifests come back fully self-contained, with every reference
// kept inside the same token scope.
func (s *Server) handleAirplayFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tok := chi.URLParam(r, "token")
	file := chi.URLParam(r, "file")

	rec, err := s.tokens.Validate(ctx, tok)
	if err != nil {
		if errors.Is(err, token.ErrInvalid) {
			writeTokenRejection(w)
			return
		}
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("token store read failed")
		writeInternal(w)
		return
	}

	levels, err := s.ladder.Levels(ctx, rec.VideoID)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownVideo) {
			writeNotFound(w)
			return
		}
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Str("video_id", rec.VideoID).Msg("ladder lookup failed")
		writeInternal(w)
		return
	}

	switch classifyFile(file, levels) {
	case fileMaster, fileVariant:
		s.serveTokenManifest(w, r, tok, rec.VideoID, file)
	case fileSegment:
		s.serveSegment(w, r, rec.VideoID, file)
	default:
		writeBadRequest(w, "unsupported file name")
	}
}

// serveTokenManifest rewrites a manifest with token-relative URLs so the
// playback device needs no other credential.
func (s *Server) serveTokenManifest(w http.ResponseWriter, r *http.Request, tok, videoID, file string) {
	ctx := r.Context()
	start := time.Now()

	obj, err := s.store.Fetch(ctx, storageKey(videoID, file))
	if err != nil {
		s.respondFetchError(w, ctx, err, videoID, file)
		return
	}

	body, err := manifest.Parse(string(obj.Body)).Rewrite(func(ref string) (string, error) {
		return "/api/airplay/" + tok + "/" + ref, nil
	})
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Str("video_id", videoID).Str("file", file).Msg("manifest rewrite failed")
		writeInternal(w)
		return
	}
	metrics.ObserveRewrite("token", time.Since(start))

	writeManifest(w, obj.ETag, body)
}

// serveSegment streams raw segment bytes with immutable-content caching.
func (s *Server) serveSegment(w http.ResponseWriter, r *http.Request, videoID, file string) {
	ctx := r.Context()

	obj, err := s.store.Fetch(ctx, storageKey(videoID, file))
	if err != nil {
		s.respondFetchError(w, ctx, err, videoID, file)
		return
	}

	contentType := obj.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeSegment
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", segmentCacheControl)
	if obj.ETag != "" {
		w.Header().Set("ETag", obj.ETag)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Body)
}
