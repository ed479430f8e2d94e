package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all codex configuration.
type Config struct {
	Name    string `yaml:"name" toml:"name"`
	DataDir string `yaml:"data_dir" toml:"data_dir"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm" toml:"llm"`

	// Key/value storage backend
	Storage StorageConfig `yaml:"storage" toml:"storage"`

	// Assistant behaviour
	Assistant AssistantConfig `yaml:"assistant" toml:"assistant"`

	// Codebase index
	Index IndexConfig `yaml:"index" toml:"index"`

	// HTTP server and preview relay
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Preview PreviewConfig `yaml:"preview" toml:"preview"`

	// Scheduled snapshots
	Backup BackupConfig `yaml:"backup" toml:"backup"`

	// Logging
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// StorageConfig selects the key/value store.
type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // file, sqlite, memory
	Path    string `yaml:"path" toml:"path"`       // relative to data_dir
}

// AssistantConfig configures chat sessions.
type AssistantConfig struct {
	Mode          string `yaml:"mode" toml:"mode"` // agent, ask
	HistoryWindow int    `yaml:"history_window" toml:"history_window"`
	MaxStored     int    `yaml:"max_stored_messages" toml:"max_stored_messages"`
	AtomicActions bool   `yaml:"atomic_actions" toml:"atomic_actions"`
}

// IndexConfig configures the codebase index.
type IndexConfig struct {
	Workers      int `yaml:"workers" toml:"workers"`
	RelatedLimit int `yaml:"related_limit" toml:"related_limit"`
	MinOverlap   int `yaml:"min_overlap" toml:"min_overlap"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr" toml:"addr"`
	ReadTimeout    string   `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout   string   `yaml:"write_timeout" toml:"write_timeout"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// PreviewConfig configures the preview console relay.
type PreviewConfig struct {
	ConsoleBuffer int  `yaml:"console_buffer" toml:"console_buffer"`
	LiveReload    bool `yaml:"live_reload" toml:"live_reload"`
}

// BackupConfig configures scheduled snapshots of the project store.
type BackupConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Schedule string `yaml:"schedule" toml:"schedule"`
	Dir      string `yaml:"dir" toml:"dir"` // relative to data_dir
	Keep     int    `yaml:"keep" toml:"keep"`
}

// DefaultDataDir returns ~/.codex, or .codex when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codex"
	}
	return filepath.Join(home, ".codex")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codex",
		DataDir: DefaultDataDir(),

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			BaseURL:  DefaultGeminiBaseURL,
			Timeout:  "120s",
		},

		Storage: StorageConfig{
			Backend: "file",
			Path:    "storage.json",
		},

		Assistant: AssistantConfig{
			Mode:          "agent",
			HistoryWindow: 10,
			MaxStored:     200,
		},

		Index: IndexConfig{
			Workers:      4,
			RelatedLimit: 5,
			MinOverlap:   5,
		},

		Server: ServerConfig{
			Addr:         "127.0.0.1:8420",
			ReadTimeout:  "30s",
			WriteTimeout: "180s",
		},

		Preview: PreviewConfig{
			ConsoleBuffer: 500,
			LiveReload:    true,
		},

		Backup: BackupConfig{
			Enabled:  false,
			Schedule: "@every 30m",
			Dir:      "backups",
			Keep:     10,
		},

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load loads configuration from a YAML or TOML file (chosen by extension).
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration as YAML or TOML (chosen by extension).
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.OpenAIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
	}
	if provider := os.Getenv("CODEX_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if dir := os.Getenv("CODEX_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if backend := os.Getenv("CODEX_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if addr := os.Getenv("CODEX_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// resolve joins p onto the data directory unless it is already absolute.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// StoragePath returns the absolute location of the key/value store.
func (c *Config) StoragePath() string {
	return c.resolve(c.Storage.Path)
}

// BackupDir returns the absolute snapshot directory.
func (c *Config) BackupDir() string {
	return c.resolve(c.Backup.Dir)
}

// LogsDir returns the directory for categorized logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetReadTimeout returns the HTTP read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWriteTimeout returns the HTTP write timeout as a duration.
func (c *Config) GetWriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.WriteTimeout)
	if err != nil {
		return 180 * time.Second
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"gemini", "genai", "openai"}

// ValidBackends lists all supported storage backends.
var ValidBackends = []string{"file", "sqlite", "memory"}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Validate validates the configuration. A missing API key is not an error:
// the assistant prompts for one on first use.
func (c *Config) Validate() error {
	if !contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if !contains(ValidBackends, c.Storage.Backend) {
		return fmt.Errorf("invalid storage backend: %s (valid: %v)", c.Storage.Backend, ValidBackends)
	}
	if c.Assistant.Mode != "agent" && c.Assistant.Mode != "ask" {
		return fmt.Errorf("invalid assistant mode: %s (valid: agent, ask)", c.Assistant.Mode)
	}
	if c.Assistant.HistoryWindow <= 0 {
		return fmt.Errorf("assistant.history_window must be positive")
	}
	if c.Backup.Enabled && c.Backup.Keep <= 0 {
		return fmt.Errorf("backup.keep must be positive when backups are enabled")
	}
	return nil
}
