// SPDX-License-Identifier: MIT

package signcache

import (
	"context"

	"github.com/open-gallery/hlsgate/internal/metrics"
)

// Batch collects storage keys up to a hard capacity and signs them in one
// bounded parallel flush. It replaces implicit fill-then-warn heuristics
// with an explicit cap: Add reports when the batch is full and Flush is the
// only way to drain it.
type Batch struct {
	cache *Cache
	cap   int
	keys  []string
	seen  map[string]struct{}
}

// NewBatch creates a Batch with the given hard capacity.
func (c *Cache) NewBatch(capacity int) *Batch {
	return &Batch{
		cache: c,
		cap:   capacity,
		seen:  make(map[string]struct{}),
	}
}

// Add queues a key for the next Flush. Duplicates are absorbed. It returns
// false once the batch is at capacity, leaving the key unqueued.
func (b *Batch) Add(storageKey string) bool {
	if _, dup := b.seen[storageKey]; dup {
		return true
	}
	if len(b.keys) >= b.cap {
		return false
	}
	b.seen[storageKey] = struct{}{}
	b.keys = append(b.keys, storageKey)
	return true
}

// Len reports the number of queued keys.
func (b *Batch) Len() int {
	return len(b.keys)
}

// Flush signs every queued key and resets the batch.
func (b *Batch) Flush(ctx context.Context) (map[string]string, error) {
	if len(b.keys) == 0 {
		return map[string]string{}, nil
	}
	metrics.SignBatchSize.Observe(float64(len(b.keys)))
	urls, err := b.cache.SignMany(ctx, b.keys)
	b.keys = b.keys[:0]
	b.seen = make(map[string]struct{})
	if err != nil {
		return nil, err
	}
	return urls, nil
}
