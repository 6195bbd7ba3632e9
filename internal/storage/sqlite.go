package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newsdigest/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements VersionedStore backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ VersionedStore = (*SQLite)(nil)

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the object stored under key, or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, key string) (*Object, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, body, content_type, version, updated_at FROM objects WHERE key = ?`, key,
	)
	var obj Object
	var updated string
	err := row.Scan(&obj.Key, &obj.Body, &obj.ContentType, &obj.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan object: %w", err)
	}
	obj.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &obj, nil
}

// Put writes body under key, replacing any previous value.
func (s *SQLite) Put(ctx context.Context, key string, body []byte, contentType string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO objects (key, body, content_type, version, updated_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   body = excluded.body,
		   content_type = excluded.content_type,
		   version = objects.version + 1,
		   updated_at = excluded.updated_at`,
		key, body, contentType, now,
	)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PutIfVersion writes body under key only if the stored version matches.
func (s *SQLite) PutIfVersion(ctx context.Context, key string, body []byte, contentType string, version int64) error {
	now := time.Now().UTC().Format(timeLayout)

	var res sql.Result
	var err error
	if version == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO objects (key, body, content_type, version, updated_at)
			 VALUES (?, ?, ?, 1, ?)
			 ON CONFLICT(key) DO NOTHING`,
			key, body, contentType, now,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE objects SET body = ?, content_type = ?, version = version + 1, updated_at = ?
			 WHERE key = ? AND version = ?`,
			body, contentType, now, key, version,
		)
	}
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s expected version %d", ErrVersionConflict, key, version)
	}
	return nil
}
