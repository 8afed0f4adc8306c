// SPDX-License-Identifier: MIT

// Package storage fetches immutable objects (manifests, segments) from the
// S3-compatible object store. Reads are single idempotent round trips; a
// miss is terminal for the request and never retried.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/open-gallery/hlsgate/internal/metrics"
	"github.com/open-gallery/hlsgate/internal/sign"
)

// ErrNotFound marks an absent storage object.
var ErrNotFound = errors.New("storage object not found")

// fetchTTL bounds the validity of the internal presigned GET. The URL lives
// only for the duration of one request.
const fetchTTL = time.Minute

// Object is one fetched storage object.
type Object struct {
	Body        []byte
	ETag        string
	ContentType string
}

// Client reads objects through short-lived presigned URLs.
type Client struct {
	signer *sign.Signer
	http   *http.Client
}

// New creates a Client. httpClient may be nil for a sane default.
func New(signer *sign.Signer, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{signer: signer, http: httpClient}
}

// Fetch retrieves the object at storageKey.
func (c *Client) Fetch(ctx context.Context, storageKey string) (*Object, error) {
	url, err := c.signer.Presign(storageKey, fetchTTL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.StorageFetchTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.StorageFetchTotal.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		metrics.StorageFetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("storage returned %d for %s", resp.StatusCode, storageKey)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.StorageFetchTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.StorageFetchTotal.WithLabelValues("ok").Inc()

	return &Object{
		Body:        body,
		ETag:        resp.Header.Get("ETag"),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
