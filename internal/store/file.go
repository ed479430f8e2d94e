package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"codex/internal/logging"
)

// FileStore keeps every key in one JSON object file. Values are stored as
// strings, mirroring browser local storage. Writes replace the file atomically.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	data     map[string]string
	lastHash [32]byte
}

// NewFileStore opens (or creates on first write) the JSON file at path.
func NewFileStore(path string) (*FileStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewFileStore")
	defer timer.Stop()

	if path == "" {
		return nil, fmt.Errorf("file store path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logging.StoreError("Failed to create directory for %s: %v", path, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	s := &FileStore{path: path, data: make(map[string]string)}
	if err := s.load(); err != nil {
		return nil, err
	}
	logging.Store("FileStore opened at %s (%d keys)", path, len(s.data))
	return s, nil
}

// load reads the file into memory. Caller must not hold mu.
func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read store: %w", err)
	}
	data := make(map[string]string)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("failed to parse store %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.data = data
	s.lastHash = sha256.Sum256(raw)
	s.mu.Unlock()
	return nil
}

// flush writes the map to a temp file and renames it into place. Caller holds mu.
func (s *FileStore) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".storage-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	s.lastHash = sha256.Sum256(raw)
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.data[key]
	s.data[key] = string(value)
	if err := s.flush(); err != nil {
		if existed {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		logging.StoreError("Set %s failed: %v", key, err)
		return err
	}
	logging.StoreDebug("Set %s (%d bytes)", key, len(value))
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.data[key]
	if !existed {
		return nil
	}
	delete(s.data, key)
	if err := s.flush(); err != nil {
		s.data[key] = prev
		return err
	}
	logging.StoreDebug("Deleted %s", key)
	return nil
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Watch reloads the store when another process rewrites the file and then calls
// onChange. Writes made through this store are ignored. Blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic renames replace the inode the file watch would hold.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}
	logging.Store("Watching %s for external changes", s.path)

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if s.changedExternally() {
				if err := s.load(); err != nil {
					logging.StoreWarn("Reload after external change failed: %v", err)
					continue
				}
				logging.Store("Store reloaded after external change")
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.StoreWarn("Watcher error: %v", err)
		}
	}
}

func (s *FileStore) changedExternally() bool {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(raw)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sum != s.lastHash
}
