// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/open-gallery/hlsgate/internal/auth"
	"github.com/open-gallery/hlsgate/internal/log"
)

// handleSessionLogin exchanges the gateway password for an HttpOnly session
// cookie: POST /api/auth/session {"password": "..."}.
func (s *Server) handleSessionLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.gate.Configured() {
		// Open deployment: nothing to log in to.
		w.WriteHeader(http.StatusOK)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeBadRequest(w, "missing password")
		return
	}

	id, err := s.gate.Login(ctx, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadPassword) {
			writeUnauthorized(w)
			return
		}
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("session login failed")
		writeInternal(w)
		return
	}

	logger := log.WithComponentFromContext(ctx, "api")

	logger.Info().
		Str("event", "session.create").
		Str("remote_addr", r.RemoteAddr).
		Msg("issuing session cookie")

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
	})
	w.WriteHeader(http.StatusOK)
}

// handleAuthInvalidate bumps the shared credential epoch, revoking every
// previously issued session in one administrative action. Playback tokens
// are untouched.
func (s *Server) handleAuthInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.gate.Check(ctx, r) {
		writeUnauthorized(w)
		return
	}

	version, err := s.versions.Bump(ctx)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("auth version bump failed")
		writeInternal(w)
		return
	}

	logger := log.WithComponentFromContext(ctx, "api")

	logger.Warn().
		Str("event", "auth.invalidate").
		Int64("version", version).
		Msg("all session credentials invalidated")

	writeJSON(w, http.StatusOK, map[string]int64{"version": version})
}
