// Package storage defines the object store interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"
)

// Content types written by the pipeline.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

var (
	// ErrNotFound is returned by Get when no object exists under the key.
	ErrNotFound = errors.New("object not found")
	// ErrVersionConflict is returned by PutIfVersion when the stored version
	// differs from the expected one.
	ErrVersionConflict = errors.New("object version conflict")
)

// Object is a stored value together with its metadata.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
	// Version starts at 1 and increases on every write. Zero means absent.
	Version   int64
	UpdatedAt time.Time
}

// Store is a key-value object store.
type Store interface {
	Get(ctx context.Context, key string) (*Object, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Close() error
}

// VersionedStore is implemented by backends that support conditional writes.
type VersionedStore interface {
	Store
	// PutIfVersion writes only if the current version equals version.
	// A version of 0 requires that the key does not exist yet.
	PutIfVersion(ctx context.Context, key string, body []byte, contentType string, version int64) error
}
