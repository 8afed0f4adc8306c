// SPDX-License-Identifier: MIT

// Package signcache caches presigned URLs keyed by (storage key, time
// bucket) so near-simultaneous requests for the same object converge on one
// entry instead of each minting a distinct, equally valid URL.
//
// The cache is eventually consistent: two concurrent misses may both sign
// and both write. Both URLs are valid, so last write wins and no locking is
// needed.
package signcache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/open-gallery/hlsgate/internal/metrics"
	"github.com/open-gallery/hlsgate/internal/sign"
)

const keyPrefix = "surl:"

// Cache resolves storage keys to presigned URLs through a TTL-bounded KV.
type Cache struct {
	kv     KV
	signer *sign.Signer
	ttl    time.Duration // validity of freshly signed URLs
	bucket time.Duration // convergence window
	limit  int           // parallel signing fan-out
	logger zerolog.Logger

	now func() time.Time
}

// New creates a Cache. ttl must be at least bucket so that entries served
// late in a bucket still carry useful validity; config validation enforces
// that relation at startup.
func New(kv KV, signer *sign.Signer, ttl, bucket time.Duration, limit int, logger zerolog.Logger) *Cache {
	return &Cache{
		kv:     kv,
		signer: signer,
		ttl:    ttl,
		bucket: bucket,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

// cacheKey derives the (storageKey, bucket) cache key. The bucket index is a
// coarse slot of wall-clock time, so every request inside one slot maps to
// the same entry.
func (c *Cache) cacheKey(storageKey string) string {
	slot := c.now().Unix() / int64(c.bucket.Seconds())
	return keyPrefix + strconv.FormatInt(slot, 10) + ":" + storageKey
}

// GetOrSign returns a cached URL for storageKey or signs a new one and
// writes it back. KV read failures degrade to signing, never to a request
// failure.
func (c *Cache) GetOrSign(ctx context.Context, storageKey string) (string, error) {
	ck := c.cacheKey(storageKey)

	url, ok, err := c.kv.Get(ctx, ck)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", storageKey).Msg("url cache read failed")
	}
	if ok {
		metrics.IncSignedURL(true)
		return url, nil
	}

	url, err = c.signer.Presign(storageKey, c.ttl)
	if err != nil {
		return "", err
	}
	metrics.IncSignedURL(false)

	// Entry lifetime equals URL validity, so an entry can never outlive
	// the authorisation it carries.
	if err := c.kv.Set(ctx, ck, url, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", storageKey).Msg("url cache write failed")
	}
	return url, nil
}

// SignMany resolves all keys, reading and signing in parallel with bounded
// fan-out. The result maps every input key; the first hard error aborts.
func (c *Cache) SignMany(ctx context.Context, storageKeys []string) (map[string]string, error) {
	out := make(map[string]string, len(storageKeys))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for _, key := range storageKeys {
		g.Go(func() error {
			url, err := c.GetOrSign(ctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = url
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
