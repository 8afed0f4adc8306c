// SPDX-License-Identifier: MIT

// Package auth implements the optional session gate in front of token
// issuance and the browser playlist path, plus the shared credential epoch
// used to revoke every session at once.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"time"
)

// SessionCookie is the name of the HttpOnly session cookie.
const SessionCookie = "hlsgate_session"

// ErrBadPassword is returned by Login on a failed password check.
var ErrBadPassword = errors.New("invalid password")

// Session is the state bound to a session credential at issuance.
type Session struct {
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore persists sessions with TTL expiry.
type SessionStore interface {
	Put(ctx context.Context, id string, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, bool, error)
}

// Gate checks whether a caller may mint playback tokens or read signed
// playlists. With no password configured the deployment is open and every
// check passes; with one configured the gate is fail-closed.
type Gate struct {
	password string
	sessions SessionStore
	versions Versions
	ttl      time.Duration
}

// NewGate creates a Gate. An empty password disables the gate.
func NewGate(password string, sessions SessionStore, versions Versions, ttl time.Duration) *Gate {
	return &Gate{password: password, sessions: sessions, versions: versions, ttl: ttl}
}

// Configured reports whether a password gate is active.
func (g *Gate) Configured() bool {
	return g.password != ""
}

// Login validates the password in constant time and issues a session bound
// to the current credential epoch. The returned value goes into the session
// cookie.
func (g *Gate) Login(ctx context.Context, password string) (string, error) {
	if !g.Configured() {
		return "", ErrBadPassword
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) != 1 {
		return "", ErrBadPassword
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := base64.RawURLEncoding.EncodeToString(buf)

	version, err := g.versions.Current(ctx)
	if err != nil {
		return "", err
	}
	s := Session{Version: version, CreatedAt: time.Now().UTC()}
	if err := g.sessions.Put(ctx, id, s, g.ttl); err != nil {
		return "", err
	}
	return id, nil
}

// Check reports whether r carries a live session whose embedded epoch still
// matches the shared current one. With no gate configured it always passes.
func (g *Gate) Check(ctx context.Context, r *http.Request) bool {
	if !g.Configured() {
		return true
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return false
	}
	s, ok, err := g.sessions.Get(ctx, c.Value)
	if err != nil || !ok {
		return false
	}
	current, err := g.versions.Current(ctx)
	if err != nil {
		return false
	}
	return s.Version == current
}
