// SPDX-License-Identifier: MIT

// Package metrics exposes prometheus instrumentation for the delivery
// gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignedURLTotal tracks signed-URL resolutions by cache outcome.
	SignedURLTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_signed_url_total",
		Help: "Signed URL resolutions by cache outcome",
	}, []string{"cache"})

	// SignBatchSize observes how many keys each manifest signing batch carries.
	SignBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hlsgate_sign_batch_size",
		Help:    "Keys per signing batch flush",
		Buckets: []float64{1, 4, 16, 64, 128, 256, 512},
	})

	// TokenIssuedTotal counts issued playback tokens.
	TokenIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsgate_tokens_issued_total",
		Help: "Playback tokens issued",
	})

	// TokenValidationTotal counts token validations by result.
	TokenValidationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_token_validations_total",
		Help: "Playback token validations by result",
	}, []string{"result"})

	// ManifestRewriteDuration observes end-to-end manifest rewrite latency.
	ManifestRewriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hlsgate_manifest_rewrite_duration_seconds",
		Help:    "Time to fetch, sign and rewrite a manifest",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"mode"})

	// StorageFetchTotal counts object-store fetches by outcome.
	StorageFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_storage_fetch_total",
		Help: "Object store fetches by outcome",
	}, []string{"result"})
)

// IncSignedURL records one signed-URL resolution.
func IncSignedURL(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	SignedURLTotal.WithLabelValues(outcome).Inc()
}

// IncTokenValidation records a token validation outcome.
func IncTokenValidation(valid bool) {
	TokenValidationTotal.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// ObserveRewrite records manifest rewrite latency for the given mode
// ("signed" or "token").
func ObserveRewrite(mode string, d time.Duration) {
	ManifestRewriteDuration.WithLabelValues(mode).Observe(d.Seconds())
}
