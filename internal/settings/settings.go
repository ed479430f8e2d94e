// Package settings persists editor preferences and the assistant's API key.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"codex/internal/logging"
	"codex/internal/store"
)

// Themes accepted by Validate.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid settings")

// Settings are the editor preferences.
type Settings struct {
	Theme       string `json:"theme"`
	FontSize    int    `json:"fontSize"`
	TabSize     int    `json:"tabSize"`
	WordWrap    bool   `json:"wordWrap"`
	LineNumbers bool   `json:"lineNumbers"`
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Settings {
	return Settings{
		Theme:       ThemeDark,
		FontSize:    14,
		TabSize:     4,
		WordWrap:    true,
		LineNumbers: true,
	}
}

// Validate checks every field's range.
func (s Settings) Validate() error {
	if s.Theme != ThemeDark && s.Theme != ThemeLight {
		return fmt.Errorf("%w: invalid theme %q: must be %s or %s", ErrInvalid, s.Theme, ThemeDark, ThemeLight)
	}
	if s.FontSize < 8 || s.FontSize > 72 {
		return fmt.Errorf("%w: invalid font size %d: must be between 8 and 72", ErrInvalid, s.FontSize)
	}
	if s.TabSize < 1 || s.TabSize > 8 {
		return fmt.Errorf("%w: invalid tab size %d: must be between 1 and 8", ErrInvalid, s.TabSize)
	}
	return nil
}

// Manager loads and saves Settings under store.KeySettings.
type Manager struct {
	st store.Store
	mu sync.Mutex
}

// NewManager creates a settings manager over st.
func NewManager(st store.Store) *Manager {
	return &Manager{st: st}
}

// Load returns the stored settings merged over Defaults. Unreadable values
// fall back to the defaults.
func (m *Manager) Load(ctx context.Context) (Settings, error) {
	s := Defaults()
	data, err := m.st.Get(ctx, store.KeySettings)
	if errors.Is(err, store.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		logging.StoreWarn("Stored settings are not valid JSON, using defaults: %v", err)
		return Defaults(), nil
	}
	return s, nil
}

// Save validates and stores s.
func (m *Manager) Save(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := m.st.Set(ctx, store.KeySettings, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Update applies a partial JSON document over the current settings and saves
// the result.
func (m *Manager) Update(ctx context.Context, patch []byte) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.Load(ctx)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(patch, &s); err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := m.Save(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// Reset stores the defaults.
func (m *Manager) Reset(ctx context.Context) (Settings, error) {
	s := Defaults()
	return s, m.Save(ctx, s)
}

// =============================================================================
// API KEY
// =============================================================================

// ErrEmptyAPIKey is returned when saving a blank key.
var ErrEmptyAPIKey = errors.New("please enter a valid API key")

// KeyStore holds the Gemini API key under store.KeyAPIKey.
type KeyStore struct {
	st store.Store
}

// NewKeyStore creates a key store over st.
func NewKeyStore(st store.Store) *KeyStore {
	return &KeyStore{st: st}
}

// Get returns the stored key, or "" when none is stored.
func (k *KeyStore) Get(ctx context.Context) (string, error) {
	data, err := k.st.Get(ctx, store.KeyAPIKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load API key: %w", err)
	}
	return string(data), nil
}

// Set stores key after trimming it. A blank key is rejected.
func (k *KeyStore) Set(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyAPIKey
	}
	if err := k.st.Set(ctx, store.KeyAPIKey, []byte(key)); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}
	return nil
}

// Delete forgets the stored key.
func (k *KeyStore) Delete(ctx context.Context) error {
	err := k.st.Delete(ctx, store.KeyAPIKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete API key: %w", err)
	}
	return nil
}

// Mask hides all but the last four characters of key.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
