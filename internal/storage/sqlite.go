// Package storage keeps transport-side bookkeeping of uploaded log
// files in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Storage handles database operations
type Storage struct {
	db *sql.DB
}

// Upload records one log file received through the transport.
type Upload struct {
	ID           int64
	Path         string
	OriginalName string
	ChatID       int64
	SizeBytes    int64
	UploadedAt   time.Time
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when the database is locked
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1)
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused
	connMaxLifetime = 30 * time.Minute
)

// currentSchemaVersion is the latest schema version. Increment when
// adding new migrations.
const currentSchemaVersion = 1

// New creates a new storage instance
func New(dbPath string) (*Storage, error) {
	// 0700: the database may reference file paths users uploaded
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The busy-timeout pragma prevents "database is locked" errors by waiting
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// RecordUpload inserts one upload row and sets its ID.
func (s *Storage) RecordUpload(u *Upload) error {
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now()
	}

	result, err := s.db.Exec(`
		INSERT INTO uploads (path, original_name, chat_id, size_bytes, uploaded_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.Path, u.OriginalName, u.ChatID, u.SizeBytes, u.UploadedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get upload ID: %w", err)
	}
	u.ID = id
	return nil
}

// RecentUploads returns the newest uploads first, at most limit rows.
func (s *Storage) RecentUploads(limit int) ([]*Upload, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, path, original_name, chat_id, size_bytes, uploaded_at
		FROM uploads
		ORDER BY uploaded_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			log.Printf("storage: failed to close database rows: %v", err)
		}
	}(rows)

	var uploads []*Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate uploads: %w", err)
	}
	return uploads, nil
}

// CleanupOldUploads deletes upload rows older than the given number of
// days and returns how many were removed. The files themselves are
// left in place.
func (s *Storage) CleanupOldUploads(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	result, err := s.db.Exec(`DELETE FROM uploads WHERE uploaded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old uploads: %w", err)
	}
	return result.RowsAffected()
}

// initSchema creates the database schema if it doesn't exist
func (s *Storage) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	version := s.getSchemaVersion()
	if err := s.migrateSchema(version); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	if err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		return 0
	}
	return version
}

func (s *Storage) setSchemaVersion(version int) error {
	// Delete existing and insert new (simpler than upsert for single row)
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return nil
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	log.Printf("storage: migrating schema from version %d to %d", currentVersion, currentSchemaVersion)

	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

// migrateV1 creates the uploads table
func (s *Storage) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		original_name TEXT NOT NULL,
		chat_id INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		uploaded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploaded_at ON uploads(uploaded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// scanUpload scans a database row into an Upload struct
func scanUpload(rows *sql.Rows) (*Upload, error) {
	var (
		u          Upload
		uploadedAt string
	)
	if err := rows.Scan(&u.ID, &u.Path, &u.OriginalName, &u.ChatID, &u.SizeBytes, &uploadedAt); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	u.UploadedAt = ts
	return &u, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
