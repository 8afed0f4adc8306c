// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisVersions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	v := NewRedisVersions(client)
	ctx := context.Background()

	cur, err := v.Current(ctx)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if cur != 0 {
		t.Errorf("expected epoch 0 before any bump, got %d", cur)
	}

	bumped, err := v.Bump(ctx)
	if err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	if bumped != 1 {
		t.Errorf("expected epoch 1 after bump, got %d", bumped)
	}

	cur, err = v.Current(ctx)
	if err != nil || cur != 1 {
		t.Errorf("expected current epoch 1, got %d err=%v", cur, err)
	}
}

func TestRedisSessionsRoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisSessions(client)
	ctx := context.Background()

	sess := Session{Version: 3, CreatedAt: time.Now().UTC()}
	if err := s.Put(ctx, "sid", sess, time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, ok, err := s.Get(ctx, "sid")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Version != 3 {
		t.Errorf("unexpected session %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, err := s.Get(ctx, "sid"); err != nil || ok {
		t.Errorf("expected expired session to be absent, got ok=%v err=%v", ok, err)
	}
}
