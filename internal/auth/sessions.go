// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "sess:"

// RedisSessions keeps sessions in the shared KV.
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions wraps an existing Redis client.
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (s *RedisSessions) Put(ctx context.Context, id string, sess Session, ttl time.Duration) error {
	buf, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionPrefix+id, buf, ttl).Err()
}

func (s *RedisSessions) Get(ctx context.Context, id string) (Session, bool, error) {
	val, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if err == redis.Nil {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	var sess Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

// MemorySessions is a process-local session store.
type MemorySessions struct {
	mu      sync.RWMutex
	entries map[string]memSession
	now     func() time.Time
}

type memSession struct {
	sess   Session
	expiry time.Time
}

// NewMemorySessions creates an empty MemorySessions.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		entries: make(map[string]memSession),
		now:     time.Now,
	}
}

func (s *MemorySessions) Put(_ context.Context, id string, sess Session, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[id] = memSession{sess: sess, expiry: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemorySessions) Get(_ context.Context, id string) (Session, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false, nil
	}
	if s.now().After(e.expiry) {
		s.mu.Lock()
		if cur, ok := s.entries[id]; ok && s.now().After(cur.expiry) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return Session{}, false, nil
	}
	return e.sess, true, nil
}

// Sweep drops every expired session.
func (s *MemorySessions) Sweep() {
	now := s.now()
	s.mu.Lock()
	for id, e := range s.entries {
		if now.After(e.expiry) {
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
}

// Janitor sweeps on a fixed cadence until ctx is cancelled.
func (s *MemorySessions) Janitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
