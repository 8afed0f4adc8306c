// SPDX-License-Identifier: MIT

// Package sign produces time-boxed, SigV4-style presigned URLs for object
// storage keys using a symmetric HMAC chain.
//
// The first three links of the chain depend only on (secret, date, region,
// service), so the derived signing key is stable for a UTC calendar day and
// cached; only the final per-URL HMAC is computed per object. For an
// N-segment manifest that is 4+N HMACs instead of 4N.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	algorithm  = "AWS4-HMAC-SHA256"
	service    = "s3"
	dateFormat = "20060102"
	timeFormat = "20060102T150405Z"
)

// ErrBadKey is returned for storage keys that are rejected before any
// cryptographic work: empty, absolute, traversing, or containing control
// bytes.
var ErrBadKey = errors.New("malformed storage key")

// Credentials holds the symmetric signing material.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Signer presigns GET requests against one bucket of an S3-compatible
// endpoint. It is a pure function of its inputs plus cached key material
// and is safe for concurrent use.
type Signer struct {
	endpoint string // scheme://host[:port], no trailing slash
	host     string
	bucket   string
	region   string
	creds    Credentials

	keys *keyCache

	// now is injected in tests.
	now func() time.Time
}

// New creates a Signer. endpoint must be an http(s) URL without a path.
func New(endpoint, bucket, region string, creds Credentials) (*Signer, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid storage endpoint %q", endpoint)
	}
	return &Signer{
		endpoint: strings.TrimRight(endpoint, "/"),
		host:     u.Host,
		bucket:   bucket,
		region:   region,
		creds:    creds,
		keys:     newKeyCache(),
		now:      time.Now,
	}, nil
}

// ValidateKey rejects malformed storage keys. Existence is not checked.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrBadKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrBadKey
		}
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x20 || key[i] == 0x7f {
			return ErrBadKey
		}
	}
	return nil
}

// Presign returns a URL authorising a GET of storageKey for ttl.
func (s *Signer) Presign(storageKey string, ttl time.Duration) (string, error) {
	if err := ValidateKey(storageKey); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("non-positive ttl %v", ttl)
	}

	t := s.now().UTC()
	date := t.Format(dateFormat)
	scope := date + "/" + s.region + "/" + service + "/aws4_request"

	canonicalPath := "/" + s.bucket + "/" + escapePath(storageKey)

	q := url.Values{}
	q.Set("X-Amz-Algorithm", algorithm)
	q.Set("X-Amz-Credential", s.creds.AccessKey+"/"+scope)
	q.Set("X-Amz-Date", t.Format(timeFormat))
	q.Set("X-Amz-Expires", strconv.Itoa(int(ttl.Seconds())))
	q.Set("X-Amz-SignedHeaders", "host")
	canonicalQuery := q.Encode()

	canonicalRequest := strings.Join([]string{
		"GET",
		canonicalPath,
		canonicalQuery,
		"host:" + s.host,
		"",
		"host",
		"UNSIGNED-PAYLOAD",
	}, "\n")

	stringToSign := strings.Join([]string{
		algorithm,
		t.Format(timeFormat),
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := s.keys.get(date, func() []byte {
		return deriveKey(s.creds.SecretKey, date, s.region)
	})
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	return s.endpoint + canonicalPath + "?" + canonicalQuery + "&X-Amz-Signature=" + signature, nil
}

// deriveKey computes the four-step HMAC chain tying the key to the calendar
// day: HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), service), "aws4_request").
func deriveKey(secret, date, region string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(date))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte(service))
	return hmacSHA256(k, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// escapePath encodes each path segment per the SigV4 canonical URI rules.
func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(url.QueryEscape(p), "+", "%20")
	}
	return strings.Join(parts, "/")
}
