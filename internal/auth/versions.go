// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

const versionKey = "auth:version"

// Versions tracks the shared session-credential epoch. Every session embeds
// the epoch current at issuance; bumping the epoch invalidates all prior
// sessions at once without touching playback tokens.
type Versions interface {
	Current(ctx context.Context) (int64, error)
	Bump(ctx context.Context) (int64, error)
}

// RedisVersions stores the epoch in the shared KV so a bump applies across
// all gateway replicas.
type RedisVersions struct {
	client *redis.Client
}

// NewRedisVersions wraps an existing Redis client.
func NewRedisVersions(client *redis.Client) *RedisVersions {
	return &RedisVersions{client: client}
}

func (v *RedisVersions) Current(ctx context.Context) (int64, error) {
	val, err := v.client.Get(ctx, versionKey).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (v *RedisVersions) Bump(ctx context.Context) (int64, error) {
	return v.client.Incr(ctx, versionKey).Result()
}

// MemoryVersions is a process-local epoch for single-node runs and tests.
type MemoryVersions struct {
	mu      sync.Mutex
	current int64
}

// NewMemoryVersions starts at epoch zero.
func NewMemoryVersions() *MemoryVersions {
	return &MemoryVersions{}
}

func (v *MemoryVersions) Current(context.Context) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, nil
}

func (v *MemoryVersions) Bump(context.Context) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current++
	return v.current, nil
}
