package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

// SQLiteStore serves timeline queries from a local activity archive.
// Layout mirrors the capture service's screenshots table: one row per
// observation, thumbnails stored inline as blobs.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(databasePath string) (*SQLiteStore, error) {
	// WAL + busy timeout to avoid "database is locked" while the capture
	// process is still appending.
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: databasePath}, nil
}

func createSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS screenshots (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at_ms INTEGER NOT NULL,
		image_path    TEXT,
		app_name      TEXT,
		window_title  TEXT,
		process_icon  TEXT,
		process_path  TEXT,
		mime_type     TEXT,
		thumbnail     BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_screenshots_created_at
		ON screenshots(created_at_ms);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Path returns the archive file path, used by the viewer's change watcher.
func (s *SQLiteStore) Path() string {
	return s.path
}

// QueryTimeline returns all records in [startMs, endMs], ascending.
func (s *SQLiteStore) QueryTimeline(ctx context.Context, startMs, endMs int64) ([]model.EventRecord, error) {
	return s.QueryTimelineLimited(ctx, startMs, endMs, 0)
}

// QueryTimelineLimited caps the result at maxRecords when maxRecords > 0.
func (s *SQLiteStore) QueryTimelineLimited(ctx context.Context, startMs, endMs int64, maxRecords int) ([]model.EventRecord, error) {
	query := `SELECT id, created_at_ms, image_path, app_name, window_title,
	                 process_icon, process_path
	          FROM screenshots
	          WHERE created_at_ms BETWEEN ? AND ?
	          ORDER BY created_at_ms ASC`
	args := []any{startMs, endMs}
	if maxRecords > 0 {
		query += " LIMIT ?"
		args = append(args, maxRecords)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var records []model.EventRecord
	for rows.Next() {
		var r model.EventRecord
		var imagePath, appName, windowTitle, processIcon, processPath sql.NullString
		if err := rows.Scan(&r.ID, &r.Timestamp, &imagePath, &appName,
			&windowTitle, &processIcon, &processPath); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.ImagePath = imagePath.String
		r.AppName = appName.String
		r.WindowTitle = windowTitle.String
		r.ProcessIcon = processIcon.String
		r.ProcessPath = processPath.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// FetchThumbnail resolves a thumbnail by identity key: "id:<n>" looks up
// the row id, "img:<path>" the image path. Missing rows and rows without a
// stored blob both report ErrNotFound.
func (s *SQLiteStore) FetchThumbnail(ctx context.Context, key string) (model.Thumbnail, error) {
	var row *sql.Row
	switch {
	case strings.HasPrefix(key, "id:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(key, "id:"), 10, 64)
		if err != nil {
			return model.Thumbnail{}, fmt.Errorf("bad thumbnail key %q: %w", key, err)
		}
		row = s.db.QueryRowContext(ctx,
			`SELECT mime_type, thumbnail FROM screenshots WHERE id = ?`, id)
	case strings.HasPrefix(key, "img:"):
		row = s.db.QueryRowContext(ctx,
			`SELECT mime_type, thumbnail FROM screenshots WHERE image_path = ?`,
			strings.TrimPrefix(key, "img:"))
	default:
		return model.Thumbnail{}, ErrNotFound
	}

	var mimeType sql.NullString
	var blob []byte
	if err := row.Scan(&mimeType, &blob); err != nil {
		if err == sql.ErrNoRows {
			return model.Thumbnail{}, ErrNotFound
		}
		return model.Thumbnail{}, fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	if len(blob) == 0 {
		return model.Thumbnail{}, ErrNotFound
	}

	mt := mimeType.String
	if mt == "" {
		mt = "image/png"
	}
	return model.Thumbnail{
		MimeType: mt,
		Data:     base64.StdEncoding.EncodeToString(blob),
	}, nil
}

// Insert adds one observation with an optional thumbnail blob. Used by the
// capture ingest path and tests.
func (s *SQLiteStore) Insert(r model.EventRecord, mimeType string, thumbnail []byte) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO screenshots
		 (created_at_ms, image_path, app_name, window_title, process_icon, process_path, mime_type, thumbnail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp, r.ImagePath, r.AppName, r.WindowTitle, r.ProcessIcon, r.ProcessPath,
		mimeType, thumbnail)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
