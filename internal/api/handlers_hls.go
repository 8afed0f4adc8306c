// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/open-gallery/hlsgate/internal/catalog"
	"github.com/open-gallery/hlsgate/internal/log"
	"github.com/open-gallery/hlsgate/internal/manifest"
	"github.com/open-gallery/hlsgate/internal/metrics"
	"github.com/open-gallery/hlsgate/internal/storage"
)

const (
	contentTypePlaylist = "application/vnd.apple.mpegurl"
	contentTypeSegment  = "video/MP2T"

	// Segments are content-immutable once produced, so intermediaries may
	// hold them for 30 days. Manifests carry time-boxed URLs and must
	// never be cached.
	segmentCacheControl  = "public, max-age=2592000"
	manifestCacheControl = "no-cache"
)

// handlePlaylist serves rewritten playlists for the authenticated browser
// path: GET /api/hls/playlist?key={videoId}[&file={name}.m3u8].
//
// Master playlists reference the gateway itself for each variant so variant
// segments get signed on fetch; variant playlists reference presigned
// storage URLs directly.
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.gate.Check(ctx, r) {
		writeUnauthorized(w)
		return
	}

	videoID := r.URL.Query().Get("key")
	if videoID == "" {
		writeBadRequest(w, "missing key parameter")
		return
	}
	file := r.URL.Query().Get("file")
	if file == "" {
		file = masterName
	}

	levels, err := s.ladder.Levels(ctx, videoID)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownVideo) {
			writeNotFound(w)
			return
		}
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Str("video_id", videoID).Msg("ladder lookup failed")
		writeInternal(w)
		return
	}

	kind := classifyFile(file, levels)
	if kind != fileMaster && kind != fileVariant {
		writeBadRequest(w, "unsupported playlist name")
		return
	}

	start := time.Now()
	obj, err := s.store.Fetch(ctx, storageKey(videoID, file))
	if err != nil {
		s.respondFetchError(w, ctx, err, videoID, file)
		return
	}

	pl := manifest.Parse(string(obj.Body))

	var body string
	if kind == fileMaster {
		body, err = s.rewriteMaster(ctx, pl, videoID, levels)
	} else {
		body, err = s.rewriteVariant(ctx, pl, videoID)
	}
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Str("video_id", videoID).Str("file", file).Msg("manifest rewrite failed")
		writeInternal(w)
		return
	}
	metrics.ObserveRewrite("signed", time.Since(start))

	writeManifest(w, obj.ETag, body)
}

// rewriteMaster points nested playlist references back at the gateway and
// signs any stray non-playlist reference (some encoders put I-frame or audio
// media directly in the master).
func (s *Server) rewriteMaster(ctx context.Context, pl *manifest.Playlist, videoID string, levels []string) (string, error) {
	var toSign []string
	for _, ref := range pl.References() {
		if !strings.HasSuffix(ref, ".m3u8") {
			toSign = append(toSign, storageKey(videoID, ref))
		}
	}
	signed, err := s.signAll(ctx, toSign)
	if err != nil {
		return "", err
	}

	return pl.Rewrite(func(ref string) (string, error) {
		if strings.HasSuffix(ref, ".m3u8") {
			level := strings.TrimSuffix(ref, ".m3u8")
			if !inLadder(level, levels) && ref != masterName {
				// Reference outside the recorded ladder; keep the
				// gateway shape, the nested fetch will 400.
				logger := log.WithComponentFromContext(ctx, "api")
				logger.Warn().
					Str("video_id", videoID).
					Str("ref", ref).
					Msg("master references level missing from ladder")
			}
			return "/api/hls/playlist?key=" + url.QueryEscape(videoID) + "&file=" + url.QueryEscape(ref), nil
		}
		return signed[storageKey(videoID, ref)], nil
	})
}

// rewriteVariant replaces every segment reference with a presigned storage
// URL, signing the whole manifest as one bounded batch.
func (s *Server) rewriteVariant(ctx context.Context, pl *manifest.Playlist, videoID string) (string, error) {
	refs := pl.References()
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = storageKey(videoID, ref)
	}
	signed, err := s.signAll(ctx, keys)
	if err != nil {
		return "", err
	}
	return pl.Rewrite(func(ref string) (string, error) {
		return signed[storageKey(videoID, ref)], nil
	})
}

// signAll signs keys through batches capped at the configured size. A
// manifest larger than one batch flushes and continues; the cap bounds
// per-flush fan-out, not manifest size.
func (s *Server) signAll(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	batch := s.urls.NewBatch(s.cfg.SignBatchCap)
	for _, key := range keys {
		if batch.Add(key) {
			continue
		}
		urls, err := batch.Flush(ctx)
		if err != nil {
			return nil, err
		}
		for k, u := range urls {
			out[k] = u
		}
		batch.Add(key)
	}
	urls, err := batch.Flush(ctx)
	if err != nil {
		return nil, err
	}
	for k, u := range urls {
		out[k] = u
	}
	return out, nil
}

// respondFetchError maps storage errors onto the gateway error taxonomy.
func (s *Server) respondFetchError(w http.ResponseWriter, ctx context.Context, err error, videoID, file string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w)
		return
	}
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Error().Err(err).Str("video_id", videoID).Str("file", file).Msg("storage fetch failed")
	writeInternal(w)
}

// writeManifest writes a rewritten playlist with protocol-correct headers.
func writeManifest(w http.ResponseWriter, etag, body string) {
	w.Header().Set("Content-Type", contentTypePlaylist)
	w.Header().Set("Cache-Control", manifestCacheControl)
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
