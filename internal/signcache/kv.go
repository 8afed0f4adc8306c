// SPDX-License-Identifier: MIT

package signcache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the minimal key-value contract the URL cache needs. Entries expire
// via TTL in the underlying store; an expired entry is indistinguishable
// from an absent one.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisKV backs the cache with a shared Redis instance so all gateway
// replicas converge on the same signed URLs.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// MemoryKV is a process-local KV for single-node deployments and tests.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	value  string
	expiry time.Time
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if m.now().After(e.expiry) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry since the read.
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expiry) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = memEntry{value: value, expiry: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Sweep drops every expired entry. Reads already drop the entries they
// touch; the sweep reclaims entries nothing reads again, such as cache keys
// from rolled-over time buckets.
func (m *MemoryKV) Sweep() {
	now := m.now()
	m.mu.Lock()
	for k, e := range m.entries {
		if now.After(e.expiry) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

// Janitor sweeps on a fixed cadence until ctx is cancelled.
func (m *MemoryKV) Janitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
