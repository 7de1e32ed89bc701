// Package history keeps a journal of completed downloads in SQLite.
// It is an audit trail; the downloads directory stays the source of truth
// for which files exist.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"clipdeck/internal/media"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	format_id     TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	filename      TEXT NOT NULL,
	segment_start INTEGER,
	segment_end   INTEGER,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS downloads_created_at ON downloads(created_at);
`

// Store is a SQLite-backed journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a completed download. It satisfies download.Recorder.
func (s *Store) Record(ctx context.Context, req media.DownloadRequest, res *media.DownloadResult) error {
	var start, end sql.NullInt64
	if a, b, ok := req.Segment(); ok {
		start = sql.NullInt64{Int64: int64(a), Valid: true}
		end = sql.NullInt64{Int64: int64(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (id, url, format_id, title, filename, segment_start, segment_end, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, req.URL, req.FormatID, req.Title, res.Filename, start, end, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording download: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]media.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, format_id, title, filename, segment_start, segment_end, created_at
		 FROM downloads ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	entries := []media.HistoryEntry{}
	for rows.Next() {
		var (
			e          media.HistoryEntry
			start, end sql.NullInt64
			created    int64
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.FormatID, &e.Title, &e.Filename, &start, &end, &created); err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		if start.Valid && end.Valid {
			a, b := int(start.Int64), int(end.Int64)
			e.SegmentStart, e.SegmentEnd = &a, &b
		}
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}
