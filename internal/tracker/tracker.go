// Package tracker persists per-file processing state in SQLite. It is
// the single source of truth for what was last processed and with what
// content; the vector index owns what is currently searchable.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned when no tracking record exists for a file.
	ErrNotFound = errors.New("not found")
)

const (
	// busyTimeout keeps concurrent file workers from failing on a
	// momentarily locked database.
	busyTimeout = 30 * time.Second

	// Writes are additionally retried a bounded number of times before
	// surfacing as a file-level error.
	writeRetries    = 3
	writeRetryDelay = 200 * time.Millisecond
)

// Record is the tracking state of one source file.
type Record struct {
	FilePath     string
	LastModified time.Time
	ContentHash  string
	DataSource   string
	ProcessedAt  time.Time
	ChunkCount   int
}

// Stats summarizes the tracking table for the status command.
type Stats struct {
	TotalFiles    int
	TotalChunks   int
	BySource      map[string]int
	LastProcessed time.Time
}

// Store is a SQLite-backed tracking store. All operations are atomic at
// single-record granularity; concurrent file workers are serialized by
// SQLite itself.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS document_tracking (
    file_path TEXT PRIMARY KEY,
    last_modified INTEGER,
    content_hash TEXT,
    data_source TEXT,
    processed_at INTEGER,
    chunk_count INTEGER
);
`

// Open opens (creating if needed) the tracking database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create tracking dir: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracking db: %w", err)
	}

	// WAL mode for concurrent file workers, single writer connection.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tracking table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the tracking record for a file, or ErrNotFound.
func (s *Store) Get(ctx context.Context, filePath string) (*Record, error) {
	query := `
		SELECT file_path, last_modified, content_hash, data_source, processed_at, chunk_count
		FROM document_tracking
		WHERE file_path = ?
	`
	var (
		rec          Record
		lastModified int64
		processedAt  int64
	)
	err := s.db.QueryRowContext(ctx, query, filePath).Scan(
		&rec.FilePath, &lastModified, &rec.ContentHash,
		&rec.DataSource, &processedAt, &rec.ChunkCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tracking record: %w", err)
	}
	rec.LastModified = time.Unix(0, lastModified)
	rec.ProcessedAt = time.Unix(0, processedAt)
	return &rec, nil
}

// Upsert inserts or replaces the record for rec.FilePath. A busy store
// is retried with a bounded wait before the error surfaces.
func (s *Store) Upsert(ctx context.Context, rec *Record) error {
	query := `
		INSERT OR REPLACE INTO document_tracking
		(file_path, last_modified, content_hash, data_source, processed_at, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	var lastErr error
	for attempt := 0; attempt < writeRetries; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query,
			rec.FilePath, rec.LastModified.UnixNano(), rec.ContentHash,
			rec.DataSource, rec.ProcessedAt.UnixNano(), rec.ChunkCount,
		)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(writeRetryDelay):
		}
	}
	return fmt.Errorf("upsert tracking record: %w", lastErr)
}

// Delete removes the record for a file. Deleting an untracked file is
// not an error.
func (s *Store) Delete(ctx context.Context, filePath string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM document_tracking WHERE file_path = ?", filePath); err != nil {
		return fmt.Errorf("delete tracking record: %w", err)
	}
	return nil
}

// ListPaths returns every tracked file path.
func (s *Store) ListPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT file_path FROM document_tracking")
	if err != nil {
		return nil, fmt.Errorf("list tracked paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// List returns tracked records ordered by most recently processed,
// optionally filtered by data source.
func (s *Store) List(ctx context.Context, dataSource string) ([]*Record, error) {
	query := `
		SELECT file_path, last_modified, content_hash, data_source, processed_at, chunk_count
		FROM document_tracking
	`
	var args []any
	if dataSource != "" {
		query += " WHERE data_source = ?"
		args = append(args, dataSource)
	}
	query += " ORDER BY processed_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracking records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		var (
			rec          Record
			lastModified int64
			processedAt  int64
		)
		if err := rows.Scan(&rec.FilePath, &lastModified, &rec.ContentHash,
			&rec.DataSource, &processedAt, &rec.ChunkCount); err != nil {
			return nil, err
		}
		rec.LastModified = time.Unix(0, lastModified)
		rec.ProcessedAt = time.Unix(0, processedAt)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Stats aggregates the tracking table.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{BySource: make(map[string]int)}

	var lastProcessed sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(chunk_count), 0), MAX(processed_at)
		FROM document_tracking
	`).Scan(&stats.TotalFiles, &stats.TotalChunks, &lastProcessed)
	if err != nil {
		return nil, fmt.Errorf("tracking stats: %w", err)
	}
	if lastProcessed.Valid {
		stats.LastProcessed = time.Unix(0, lastProcessed.Int64)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT data_source, COUNT(*) FROM document_tracking GROUP BY data_source
	`)
	if err != nil {
		return nil, fmt.Errorf("tracking stats by source: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		stats.BySource[source] = count
	}
	return stats, rows.Err()
}

// Clear wipes all tracking state, forcing full reprocessing next run.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM document_tracking"); err != nil {
		return fmt.Errorf("clear tracking: %w", err)
	}
	return nil
}
