// SPDX-License-Identifier: MIT

// Package token issues and validates single-use playback tokens for casting
// sessions. A token is an opaque credential scoping an unauthenticated
// client to one video's manifest tree; it is never renewed, never mutated,
// and ages out via store TTL.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/open-gallery/hlsgate/internal/metrics"
)

// ErrInvalid is returned for any token the store cannot produce a live
// record for. Never-issued and expired tokens are deliberately
// indistinguishable to deny enumeration oracles.
var ErrInvalid = errors.New("invalid or expired token")

// Record is the immutable state bound to a token at issuance.
type Record struct {
	VideoID       string    `json:"videoId"`
	CreatedAt     time.Time `json:"createdAt"`
	Authenticated bool      `json:"authenticated"`
}

// Service issues and validates tokens against a TTL store.
type Service struct {
	store Store
	ttl   time.Duration
}

// NewService creates a Service issuing tokens valid for ttl.
func NewService(store Store, ttl time.Duration) *Service {
	return &Service{store: store, ttl: ttl}
}

// Issue mints a fresh token bound to videoID. The identifier is 32 bytes of
// CSPRNG output, never derived from videoID, so tokens for the same video
// share no derivable relationship.
func (s *Service) Issue(ctx context.Context, videoID string, authenticated bool) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := base64.RawURLEncoding.EncodeToString(buf)

	rec := Record{
		VideoID:       videoID,
		CreatedAt:     time.Now().UTC(),
		Authenticated: authenticated,
	}
	if err := s.store.Put(ctx, id, rec, s.ttl); err != nil {
		return "", err
	}
	metrics.TokenIssuedTotal.Inc()
	return id, nil
}

// Validate resolves a token to its record in a single store read. Any miss
// maps to ErrInvalid; store transport failures surface as-is.
func (s *Service) Validate(ctx context.Context, id string) (Record, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		metrics.IncTokenValidation(false)
		return Record{}, ErrInvalid
	}
	metrics.IncTokenValidation(true)
	return rec, nil
}
