// SPDX-License-Identifier: MIT

package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

// Store persists token records with TTL expiry. Records are append-only:
// Put writes once at issuance, Get reads, and expiry is the store's job.
type Store interface {
	Put(ctx context.Context, id string, rec Record, ttl time.Duration) error
	Get(ctx context.Context, id string) (Record, bool, error)
	Close() error
}

// Open creates a Store for the configured backend.
func Open(backend string, opts Options) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis token backend requires a client")
		}
		return NewRedisStore(opts.Redis), nil
	case "badger":
		return OpenBadgerStore(opts.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown token store backend: %s", backend)
	}
}

// Options carries backend-specific wiring for Open.
type Options struct {
	Redis      *redis.Client
	BadgerPath string
}

const keyPrefix = "ptoken:"

// RedisStore keeps tokens in a shared Redis so every gateway replica can
// validate tokens issued by any other.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, id string, rec Record, ttl time.Duration) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+id, buf, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *RedisStore) Close() error { return nil }

// BadgerStore keeps tokens in an embedded badger database for single-node
// deployments. Entry TTL rides on badger's native expiry.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the badger database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Put(_ context.Context, id string, rec Record, ttl time.Duration) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+id), buf).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (Record, bool, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// RunGC reclaims value-log space left behind by expired entries on a fixed
// cadence until ctx is cancelled. Badger reports ErrNoRewrite when there is
// nothing left to collect; that ends the inner pass, not the loop.
func (s *BadgerStore) RunGC(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

func (s *BadgerStore) Close() error { return s.db.Close() }

// MemoryStore is a process-local store for tests and dev runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memRecord
	now     func() time.Time
}

type memRecord struct {
	rec    Record
	expiry time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memRecord),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, id string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[id] = memRecord{rec: rec, expiry: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false, nil
	}
	if s.now().After(e.expiry) {
		s.mu.Lock()
		if cur, ok := s.entries[id]; ok && s.now().After(cur.expiry) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return Record{}, false, nil
	}
	return e.rec, true, nil
}

// Sweep drops every expired token record. Single-use tokens are mostly
// never read again after the casting session ends, so expiry-on-read alone
// would leak them.
func (s *MemoryStore) Sweep() {
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
func (s *MemoryStore) Janitor(ctx context.Context, every time.Duration) {
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

func (s *MemoryStore) Close() error { return nil }
