// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-gallery/hlsgate/internal/auth"
	"github.com/open-gallery/hlsgate/internal/catalog"
	"github.com/open-gallery/hlsgate/internal/config"
	"github.com/open-gallery/hlsgate/internal/sign"
	"github.com/open-gallery/hlsgate/internal/signcache"
	"github.com/open-gallery/hlsgate/internal/storage"
	"github.com/open-gallery/hlsgate/internal/token"
)

// stubLadder serves quality ladders from a fixed map.
type stubLadder map[string][]string

func (l stubLadder) Levels(_ context.Context, videoID string) ([]string, error) {
	levels, ok := l[videoID]
	if !ok {
		return nil, catalog.ErrUnknownVideo
	}
	return levels, nil
}

// stubStorage serves objects from a fixed map keyed by storage key.
type stubStorage map[string]*storage.Object

func (s stubStorage) Fetch(_ context.Context, storageKey string) (*storage.Object, error) {
	obj, ok := s[storageKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return obj, nil
}

const testMaster = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720
720p.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=854x480
480p.m3u8
`

const testVariant = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:4
#EXTINF:4.000000,
720p_0.ts
#EXTINF:4.000000,
720p_1.ts
#EXT-X-ENDLIST
`

type testEnv struct {
	server *Server
	mux    http.Handler
	tokens *token.Service
	store  *token.MemoryStore
	gate   *auth.Gate
}

type envOption func(*config.AppConfig)

func withPassword(pw string) envOption {
	return func(c *config.AppConfig) { c.GatewayPassword = pw }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := config.AppConfig{
		PublicBaseURL:   "https://gallery.example",
		SignTTL:         6 * time.Hour,
		SignBucketSize:  4 * time.Hour,
		SignConcurrency: 8,
		SignBatchCap:    512,
		TokenTTL:        6 * time.Hour,
		SessionTTL:      time.Hour,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	signer, err := sign.New("https://objects.example:9000", "media", "us-east-1", sign.Credentials{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("signer setup failed: %v", err)
	}
	urls := signcache.New(signcache.NewMemoryKV(), signer, cfg.SignTTL, cfg.SignBucketSize, cfg.SignConcurrency, zerolog.Nop())

	tokenStore := token.NewMemoryStore()
	tokens := token.NewService(tokenStore, cfg.TokenTTL)

	versions := auth.NewMemoryVersions()
	gate := auth.NewGate(cfg.GatewayPassword, auth.NewMemorySessions(), versions, cfg.SessionTTL)

	srv := New(cfg, Deps{
		Gate:     gate,
		Versions: versions,
		Tokens:   tokens,
		Ladder: stubLadder{
			"clip.mov": {"720p", "480p"},
			"odd.mov":  {"540p", "360p"},
		},
		Store: stubStorage{
			"clip.mov/master.m3u8": {Body: []byte(testMaster), ETag: `"m1"`},
			"clip.mov/720p.m3u8":   {Body: []byte(testVariant), ETag: `"v1"`},
			"clip.mov/720p_0.ts":   {Body: []byte("segment-bytes"), ETag: `"s1"`, ContentType: "video/MP2T"},
		},
		URLs: urls,
	})

	return &testEnv{
		server: srv,
		mux:    srv.Handler(),
		tokens: tokens,
		store:  tokenStore,
		gate:   gate,
	}
}
