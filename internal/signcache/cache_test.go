// SPDX-License-Identifier: MIT

package signcache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/open-gallery/hlsgate/internal/sign"
)

func testSigner(t *testing.T) *sign.Signer {
	t.Helper()
	s, err := sign.New("https://objects.example:9000", "media", "us-east-1", sign.Credentials{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("signer setup failed: %v", err)
	}
	return s
}

func testCache(t *testing.T, kv KV) *Cache {
	t.Helper()
	return New(kv, testSigner(t), 6*time.Hour, 4*time.Hour, 8, zerolog.Nop())
}

func TestGetOrSignCachesWithinBucket(t *testing.T) {
	c := testCache(t, NewMemoryKV())
	ctx := context.Background()

	first, err := c.GetOrSign(ctx, "clip.mov/720p_0.ts")
	if err != nil {
		t.Fatalf("first sign failed: %v", err)
	}
	second, err := c.GetOrSign(ctx, "clip.mov/720p_0.ts")
	if err != nil {
		t.Fatalf("second sign failed: %v", err)
	}
	if first != second {
		t.Error("expected a cache hit to return the identical URL")
	}
	if !strings.Contains(first, "X-Amz-Signature=") {
		t.Errorf("cached value is not a signed URL: %q", first)
	}
}

// countingKV records writes so tests can observe re-signing.
type countingKV struct {
	KV
	sets int
}

func (c *countingKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.sets++
	return c.KV.Set(ctx, key, value, ttl)
}

func TestGetOrSignNewBucketResigns(t *testing.T) {
	mem := NewMemoryKV()
	kv := &countingKV{KV: mem}
	c := testCache(t, kv)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 0, 30, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	mem.now = c.now

	if _, err := c.GetOrSign(ctx, "clip.mov/720p_0.ts"); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := c.GetOrSign(ctx, "clip.mov/720p_0.ts"); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if kv.sets != 1 {
		t.Fatalf("expected 1 write within a bucket, got %d", kv.sets)
	}

	// Same storage key, next 4h slot: the old entry must not be served.
	c.now = func() time.Time { return base.Add(4 * time.Hour) }
	mem.now = c.now

	if _, err := c.GetOrSign(ctx, "clip.mov/720p_0.ts"); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if kv.sets != 2 {
		t.Errorf("expected a fresh signing write in a new bucket, got %d writes", kv.sets)
	}
}

func TestGetOrSignPropagatesBadKey(t *testing.T) {
	c := testCache(t, NewMemoryKV())
	if _, err := c.GetOrSign(context.Background(), "../escape.ts"); err == nil {
		t.Fatal("expected malformed key to fail")
	}
}

func TestSignManyResolvesAllKeys(t *testing.T) {
	c := testCache(t, NewMemoryKV())
	ctx := context.Background()

	keys := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		keys = append(keys, "clip.mov/720p_"+string(rune('a'+i%26))+".ts")
	}
	urls, err := c.SignMany(ctx, keys)
	if err != nil {
		t.Fatalf("SignMany failed: %v", err)
	}
	for _, key := range keys {
		u, ok := urls[key]
		if !ok {
			t.Fatalf("missing URL for %q", key)
		}
		if !strings.Contains(u, "X-Amz-Signature=") {
			t.Errorf("unsigned URL for %q: %q", key, u)
		}
	}
}

func TestRedisKVRoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := NewRedisKV(client)
	ctx := context.Background()

	if err := kv.Set(ctx, "surl:1:clip.mov/720p_0.ts", "https://signed.example/a", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	val, ok, err := kv.Get(ctx, "surl:1:clip.mov/720p_0.ts")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if val != "https://signed.example/a" {
		t.Errorf("unexpected value %q", val)
	}

	// Expired entries are indistinguishable from absent ones.
	mr.FastForward(2 * time.Minute)
	_, ok, err = kv.Get(ctx, "surl:1:clip.mov/720p_0.ts")
	if err != nil {
		t.Fatalf("get after expiry failed: %v", err)
	}
	if ok {
		t.Error("expected entry to be expired")
	}
}

func TestBatchCapAndFlush(t *testing.T) {
	c := testCache(t, NewMemoryKV())
	b := c.NewBatch(2)

	if !b.Add("clip.mov/720p_0.ts") || !b.Add("clip.mov/720p_1.ts") {
		t.Fatal("adds within capacity should succeed")
	}
	if b.Add("clip.mov/720p_2.ts") {
		t.Error("add beyond capacity should report full")
	}
	if !b.Add("clip.mov/720p_0.ts") {
		t.Error("duplicate of a queued key should be absorbed even when full")
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 queued keys, got %d", b.Len())
	}

	urls, err := b.Flush(context.Background())
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 URLs, got %d", len(urls))
	}
	if b.Len() != 0 {
		t.Error("flush should reset the batch")
	}
	if !b.Add("clip.mov/720p_2.ts") {
		t.Error("batch should accept keys again after flush")
	}
}

func TestBatchFlushEmpty(t *testing.T) {
	c := testCache(t, NewMemoryKV())
	urls, err := c.NewBatch(4).Flush(context.Background())
	if err != nil {
		t.Fatalf("empty flush failed: %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("expected no URLs, got %d", len(urls))
	}
}
