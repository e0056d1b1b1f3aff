// Package storage implements durable storage backends for the desktop shell.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Load when nothing is stored under a key.
	ErrNotFound = errors.New("storage: key not found")

	// ErrQuotaExceeded is returned by Save when a quota-limited backend is full.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// Backend defines the interface for storage backends.
// Values are opaque serialized blobs addressed by key.
type Backend interface {
	// Save persists data under key, replacing any previous value.
	Save(key string, data []byte) error

	// Load retrieves the data stored under key.
	Load(key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys lists every stored key.
	Keys() ([]string, error)

	// Clear removes all data.
	Clear() error

	// Close closes the storage backend.
	Close() error
}

// Options selects and configures a backend for Open.
type Options struct {
	Type string // "memory", "file", "sqlite", "postgresql"
	Path string
	URL  string
}

// Open creates the backend described by opts.
func Open(opts Options) (Backend, error) {
	switch opts.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file":
		return NewFileStorage(opts.Path)
	case "sqlite":
		return NewSQLiteStorage(opts.Path)
	case "postgres", "postgresql":
		return NewPostgresStorage(opts.URL)
	default:
		return nil, fmt.Errorf("unknown storage type %q", opts.Type)
	}
}
