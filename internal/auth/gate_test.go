// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testGate(password string) *Gate {
	return NewGate(password, NewMemorySessions(), NewMemoryVersions(), time.Hour)
}

func requestWithCookie(value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/hls/playlist", nil)
	if value != "" {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: value})
	}
	return r
}

func TestOpenDeploymentPassesAllChecks(t *testing.T) {
	g := testGate("")
	if g.Configured() {
		t.Fatal("gate with no password must report unconfigured")
	}
	if !g.Check(context.Background(), requestWithCookie("")) {
		t.Error("open deployment must pass checks without credentials")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	g := testGate("hunter2")
	if _, err := g.Login(context.Background(), "wrong"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
}

func TestLoginOnOpenGateFails(t *testing.T) {
	g := testGate("")
	if _, err := g.Login(context.Background(), "anything"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword on open gate, got %v", err)
	}
}

func TestConfiguredGateIsFailClosed(t *testing.T) {
	g := testGate("hunter2")
	ctx := context.Background()

	if g.Check(ctx, requestWithCookie("")) {
		t.Error("missing cookie must fail")
	}
	if g.Check(ctx, requestWithCookie("forged-session")) {
		t.Error("unknown session must fail")
	}
}

func TestLoginThenCheck(t *testing.T) {
	g := testGate("hunter2")
	ctx := context.Background()

	id, err := g.Login(ctx, "hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a session id")
	}
	if !g.Check(ctx, requestWithCookie(id)) {
		t.Error("fresh session must pass")
	}
}

func TestVersionBumpInvalidatesAllSessions(t *testing.T) {
	versions := NewMemoryVersions()
	g := NewGate("hunter2", NewMemorySessions(), versions, time.Hour)
	ctx := context.Background()

	a, err := g.Login(ctx, "hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	b, err := g.Login(ctx, "hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := versions.Bump(ctx); err != nil {
		t.Fatalf("bump failed: %v", err)
	}

	if g.Check(ctx, requestWithCookie(a)) || g.Check(ctx, requestWithCookie(b)) {
		t.Error("all sessions must be invalid after a version bump")
	}

	// Fresh logins embed the new epoch and pass again.
	c, err := g.Login(ctx, "hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !g.Check(ctx, requestWithCookie(c)) {
		t.Error("post-bump session must pass")
	}
}

func TestMemorySessionsSweep(t *testing.T) {
	sessions := NewMemorySessions()
	ctx := context.Background()

	if err := sessions.Put(ctx, "old", Session{Version: 1}, time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := sessions.Put(ctx, "live", Session{Version: 1}, time.Hour); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	sessions.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	// Expired reads delete in place; the sweep reclaims sessions nobody
	// presents again.
	if _, ok, err := sessions.Get(ctx, "old"); err != nil || ok {
		t.Fatalf("expected expired session miss, got ok=%v err=%v", ok, err)
	}
	sessions.Sweep()

	sessions.mu.RLock()
	n := len(sessions.entries)
	_, live := sessions.entries["live"]
	sessions.mu.RUnlock()
	if n != 1 || !live {
		t.Errorf("expected only the live session to survive, got %d entries (live=%v)", n, live)
	}
}

func TestSessionExpiry(t *testing.T) {
	sessions := NewMemorySessions()
	g := NewGate("hunter2", sessions, NewMemoryVersions(), time.Minute)
	ctx := context.Background()

	id, err := g.Login(ctx, "hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	sessions.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if g.Check(ctx, requestWithCookie(id)) {
		t.Error("expired session must fail")
	}
}
