// Package store provides the key/value persistence layer for codex.
// Every backend stores opaque byte values (JSON documents) under string keys,
// the way a browser's local storage would.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Well-known keys.
const (
	KeyProjects = "codex_projects"
	KeySettings = "codex_settings"
	KeyAPIKey   = "gemini_api_key"
	chatPrefix  = "codex_chat_"
)

// ChatKey returns the key holding a project's chat history.
func ChatKey(projectID string) string {
	return chatPrefix + projectID
}

// ErrNotFound is returned by Get when a key is absent.
var ErrNotFound = errors.New("key not found")

// Store is a key/value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Open creates a store for the named backend. path is ignored by the memory backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "", "file":
		return NewFileStore(path)
	case "sqlite":
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}
