package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lvcoi/shorts-collector/internal/collector"
)

// ShortRecord represents a row in the shorts table.
type ShortRecord struct {
	ID             int64
	Channel        string
	VideoID        string
	Title          string
	Views          int64
	Likes          int64
	ReleaseDate    string
	VideoURL       string
	Transcript     string
	TranscriptTier string
	CollectedAt    time.Time
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS shorts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    channel         TEXT NOT NULL DEFAULT '',
    video_id        TEXT NOT NULL UNIQUE,
    title           TEXT NOT NULL DEFAULT '',
    views           INTEGER NOT NULL DEFAULT 0,
    likes           INTEGER NOT NULL DEFAULT 0,
    release_date    TEXT NOT NULL DEFAULT '',
    video_url       TEXT NOT NULL DEFAULT '',
    transcript      TEXT NOT NULL DEFAULT '',
    transcript_tier TEXT NOT NULL DEFAULT 'none',
    collected_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_shorts_channel ON shorts(channel);
CREATE INDEX IF NOT EXISTS idx_shorts_release_date ON shorts(release_date);
CREATE INDEX IF NOT EXISTS idx_shorts_collected_at ON shorts(collected_at);
`

// DB wraps an SQLite connection for the shorts catalog.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}

	// SQLite pragmas for performance and reliability
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if _, err := sqlDB.Exec(createTableSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: sqlDB}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// UpsertShort inserts or updates a record by video_id and returns the row
// ID. Re-collecting a channel refreshes counts, transcript and the
// collected_at stamp.
func (d *DB) UpsertShort(record ShortRecord) (int64, error) {
	if d == nil || d.db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO shorts (
			channel, video_id, title, views, likes,
			release_date, video_url, transcript, transcript_tier
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			channel=excluded.channel, title=excluded.title,
			views=excluded.views, likes=excluded.likes,
			release_date=excluded.release_date, video_url=excluded.video_url,
			transcript=excluded.transcript, transcript_tier=excluded.transcript_tier,
			collected_at=datetime('now')
	`,
		record.Channel, record.VideoID, record.Title, record.Views, record.Likes,
		record.ReleaseDate, record.VideoURL, record.Transcript, record.TranscriptTier,
	)
	if err != nil {
		return 0, fmt.Errorf("upserting shorts record: %w", err)
	}

	// LastInsertId is unreliable for ON CONFLICT DO UPDATE; query the actual row ID.
	var id int64
	if err := d.db.QueryRow("SELECT id FROM shorts WHERE video_id = ?", record.VideoID).Scan(&id); err != nil {
		return 0, fmt.Errorf("querying upserted shorts id: %w", err)
	}
	return id, nil
}

// SaveRun persists everything a finished collection produced. The tier of
// videos without a transcript record is stored as none.
func (d *DB) SaveRun(ctx context.Context, result *collector.RunResult) error {
	if result == nil {
		return nil
	}
	for _, rec := range result.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		tier := string(collector.TierNone)
		if t, ok := result.Transcripts[rec.VideoID]; ok && t.Tier != "" {
			tier = string(t.Tier)
		}
		row := ShortRecord{
			Channel:        result.Channel,
			VideoID:        rec.VideoID,
			Title:          rec.Title,
			Views:          rec.Views,
			Likes:          rec.Likes,
			ReleaseDate:    rec.ReleaseDate,
			VideoURL:       rec.VideoURL,
			Transcript:     rec.Transcript,
			TranscriptTier: tier,
		}
		if _, err := d.UpsertShort(row); err != nil {
			return err
		}
	}
	return nil
}

// ListShorts returns records ordered by release date descending, newest
// collections first within the same date. Empty channel means all.
func (d *DB) ListShorts(channel string, limit, offset int) ([]ShortRecord, error) {
	if d == nil || d.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, channel, video_id, title, views, likes,
			release_date, video_url, transcript, transcript_tier, collected_at
		FROM shorts
	`
	args := []any{}
	if channel != "" {
		query += " WHERE channel = ?"
		args = append(args, channel)
	}
	query += " ORDER BY release_date DESC, collected_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying shorts: %w", err)
	}
	defer rows.Close()

	var records []ShortRecord
	for rows.Next() {
		var r ShortRecord
		if err := rows.Scan(
			&r.ID, &r.Channel, &r.VideoID, &r.Title, &r.Views, &r.Likes,
			&r.ReleaseDate, &r.VideoURL, &r.Transcript, &r.TranscriptTier, &r.CollectedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning shorts row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetShort returns the record for one video, with found reporting whether
// the catalog has it.
func (d *DB) GetShort(videoID string) (ShortRecord, bool, error) {
	if d == nil || d.db == nil {
		return ShortRecord{}, false, fmt.Errorf("database not initialized")
	}

	var r ShortRecord
	err := d.db.QueryRow(`
		SELECT id, channel, video_id, title, views, likes,
			release_date, video_url, transcript, transcript_tier, collected_at
		FROM shorts WHERE video_id = ?
	`, videoID).Scan(
		&r.ID, &r.Channel, &r.VideoID, &r.Title, &r.Views, &r.Likes,
		&r.ReleaseDate, &r.VideoURL, &r.Transcript, &r.TranscriptTier, &r.CollectedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ShortRecord{}, false, nil
	}
	if err != nil {
		return ShortRecord{}, false, fmt.Errorf("querying shorts record: %w", err)
	}
	return r, true, nil
}

// Channels returns the distinct channels in the catalog with their record
// counts, most populous first.
func (d *DB) Channels() (map[string]int, error) {
	if d == nil || d.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := d.db.Query("SELECT channel, COUNT(*) FROM shorts GROUP BY channel")
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var channel string
		var count int
		if err := rows.Scan(&channel, &count); err != nil {
			return nil, fmt.Errorf("scanning channel row: %w", err)
		}
		counts[channel] = count
	}
	return counts, rows.Err()
}

// Count returns the total number of shorts records.
func (d *DB) Count() (int, error) {
	if d == nil || d.db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM shorts").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting shorts: %w", err)
	}
	return count, nil
}
