// SPDX-License-Identifier: MIT

package api

import (
	"strings"
)

// fileKind classifies the {file} element of a delivery path.
type fileKind int

const (
	fileInvalid fileKind = iota
	fileMaster           // master.m3u8
	fileVariant          // {level}.m3u8 with level in the ladder
	fileSegment          // {level}_{n}.ts with level in the ladder
)

// masterName is the storage name of every video's master playlist.
const masterName = "master.m3u8"

// classifyFile validates file against the video's quality ladder. The path
// shape is fixed: exactly master.m3u8, {level}.m3u8 or {level}_{n}.ts.
// Anything else, including unknown levels and extensions, is invalid.
func classifyFile(file string, levels []string) fileKind {
	switch {
	case file == masterName:
		return fileMaster
	case strings.HasSuffix(file, ".m3u8"):
		level := strings.TrimSuffix(file, ".m3u8")
		if inLadder(level, levels) {
			return fileVariant
		}
	case strings.HasSuffix(file, ".ts"):
		base := strings.TrimSuffix(file, ".ts")
		level, n, ok := strings.Cut(base, "_")
		if ok && inLadder(level, levels) && isDigits(n) {
			return fileSegment
		}
	}
	return fileInvalid
}

func inLadder(level string, levels []string) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// storageKey joins a video ID and a file name into the object-store key.
func storageKey(videoID, file string) string {
	return videoID + "/" + file
}
