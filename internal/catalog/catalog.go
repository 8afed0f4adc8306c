// SPDX-License-Identifier: MIT

// Package catalog resolves the quality ladder recorded for each video at
// encode time. The ladder is an immutable fact: it is returned exactly as
// stored, including non-standard heights such as 540p. The gateway never
// snaps a native rendition to a neighbouring standard level.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrUnknownVideo is returned when no ladder is recorded for a video ID.
var ErrUnknownVideo = errors.New("unknown video")

// Catalog reads quality ladders from the metadata store.
type Catalog struct {
	db *sql.DB
}

// Open opens the sqlite metadata database at path and ensures the schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	video_id TEXT PRIMARY KEY,
	levels   TEXT NOT NULL
);`

// Levels returns the ordered quality ladder for videoID, verbatim as
// recorded at encode time.
func (c *Catalog) Levels(ctx context.Context, videoID string) ([]string, error) {
	var csv string
	err := c.db.QueryRowContext(ctx,
		`SELECT levels FROM videos WHERE video_id = ?`, videoID).Scan(&csv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownVideo
	}
	if err != nil {
		return nil, err
	}
	var levels []string
	for _, l := range strings.Split(csv, ",") {
		if l = strings.TrimSpace(l); l != "" {
			levels = append(levels, l)
		}
	}
	if len(levels) == 0 {
		return nil, ErrUnknownVideo
	}
	return levels, nil
}

// Record stores the ladder for videoID. The encode pipeline is the writer;
// the gateway itself only reads, but tests and backfills use this.
func (c *Catalog) Record(ctx context.Context, videoID string, levels []string) error {
	if len(levels) == 0 {
		return fmt.Errorf("empty ladder for %s", videoID)
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO videos (video_id, levels) VALUES (?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET levels = excluded.levels`,
		videoID, strings.Join(levels, ","))
	return err
}

// Close releases the database handle.
func (c *Catalog) Close() error { return c.db.Close() }
