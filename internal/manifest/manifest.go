// SPDX-License-Identifier: MIT

// Package manifest models HLS playlists as an ordered list of classified
// lines and rewrites URI references without disturbing anything else.
//
// Rewriting works at line granularity, never by substring search: a comment
// that happens to contain "segment0.ts" must survive byte-for-byte. Strict
// M3U8 parsers on playback devices also care about blank lines and the
// terminal newline, so String is an exact inverse of Parse.
package manifest

import "strings"

// Kind classifies a single playlist line.
type Kind int

const (
	// Blank is an empty line, preserved verbatim.
	Blank Kind = iota
	// Tag is any line starting with '#': directives and comments alike.
	// Tags are never rewritten.
	Tag
	// Reference is a URI line pointing at a variant playlist or a media
	// segment. Only Reference lines are rewritten.
	Reference
)

// Line is one playlist line with its classification.
type Line struct {
	Kind Kind
	Text string
}

// Playlist is an ordered, lossless representation of a manifest.
type Playlist struct {
	Lines []Line

	// trailingNewline records whether the source ended with '\n' so that
	// String round-trips byte-exactly.
	trailingNewline bool
}

// Parse splits raw manifest text into classified lines.
func Parse(text string) *Playlist {
	p := &Playlist{}
	if text == "" {
		return p
	}
	body := text
	if strings.HasSuffix(body, "\n") {
		p.trailingNewline = true
		body = body[:len(body)-1]
	}
	raw := strings.Split(body, "\n")
	p.Lines = make([]Line, 0, len(raw))
	for _, l := range raw {
		p.Lines = append(p.Lines, Line{Kind: classify(l), Text: l})
	}
	return p
}

// classify decides a line's kind from its start token only.
func classify(line string) Kind {
	trimmed := strings.TrimSuffix(line, "\r")
	switch {
	case strings.TrimSpace(trimmed) == "":
		return Blank
	case strings.HasPrefix(trimmed, "#"):
		return Tag
	default:
		return Reference
	}
}

// References returns the URI text of every Reference line, in order.
// A trailing '\r' from CRLF input is not part of the URI.
func (p *Playlist) References() []string {
	var refs []string
	for _, l := range p.Lines {
		if l.Kind == Reference {
			refs = append(refs, strings.TrimSuffix(l.Text, "\r"))
		}
	}
	return refs
}

// Rewrite returns the manifest text with every Reference line replaced by
// resolve(uri). Line count and order are preserved exactly; Blank and Tag
// lines are copied verbatim. The first resolve error aborts the rewrite.
func (p *Playlist) Rewrite(resolve func(uri string) (string, error)) (string, error) {
	var b strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if l.Kind != Reference {
			b.WriteString(l.Text)
			continue
		}
		uri := strings.TrimSuffix(l.Text, "\r")
		resolved, err := resolve(uri)
		if err != nil {
			return "", err
		}
		b.WriteString(resolved)
	}
	if p.trailingNewline {
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// String reassembles the playlist byte-exactly.
func (p *Playlist) String() string {
	var b strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Text)
	}
	if p.trailingNewline {
		b.WriteByte('\n')
	}
	return b.String()
}
