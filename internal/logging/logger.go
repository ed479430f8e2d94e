// Package logging provides config-driven categorized file-based logging for codex.
// Logs are written to <data-dir>/logs/ with separate files per category.
// Logging is controlled by Config.DebugMode - when false, no logs are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Boot/initialization
	CategoryStore     Category = "store"     // Key/value storage backends
	CategoryProject   Category = "project"   // Project manager, import/export
	CategoryWorkspace Category = "workspace" // File tree mutations
	CategoryIndex     Category = "index"     // Codebase index
	CategoryAgent     Category = "agent"     // Agent action parsing and execution
	CategoryAssistant Category = "assistant" // Chat sessions
	CategoryAPI       Category = "api"       // LLM API calls
	CategoryPreview   Category = "preview"   // Preview builder and console relay
	CategoryServer    Category = "server"    // HTTP server
	CategoryBackup    Category = "backup"    // Scheduled snapshots
)

// Config mirrors config.LoggingConfig to avoid circular imports.
type Config struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// Logger wraps a zap logger bound to one category file.
type Logger struct {
	category Category
	logger   *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	config    Config
	configMu  sync.RWMutex
	logLevel  = zapcore.InfoLevel
)

// Initialize sets up the logging directory.
// Should be called once at startup; a disabled config makes every logger a no-op.
func Initialize(dir string, cfg Config) error {
	if dir == "" {
		return fmt.Errorf("logs directory required")
	}

	CloseAll()

	configMu.Lock()
	config = cfg
	logLevel = parseLevel(cfg.Level)
	logsDir = dir
	configMu.Unlock()

	if !cfg.DebugMode {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== codex logging initialized ===")
	boot.Info("Logs directory: %s", dir)
	boot.Info("Log level: %s", logLevel)
	if len(cfg.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	configMu.RLock()
	dir, jsonFormat, level := logsDir, config.JSONFormat, logLevel
	configMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   newFileCore(file, jsonFormat, level).Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

func newFileCore(file *os.File, jsonFormat bool, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"

	var enc zapcore.Encoder
	if jsonFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(file), level))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Errorf(format, args...)
}

// With returns a child logger carrying structured key-value fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.logger == nil {
		return l
	}
	return &Logger{category: l.category, logger: l.logger.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.logger != nil {
			_ = l.logger.Sync()
		}
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	closeAudit()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func Project(format string, args ...interface{})      { Get(CategoryProject).Info(format, args...) }
func ProjectDebug(format string, args ...interface{}) { Get(CategoryProject).Debug(format, args...) }
func ProjectError(format string, args ...interface{}) { Get(CategoryProject).Error(format, args...) }

func Workspace(format string, args ...interface{})      { Get(CategoryWorkspace).Info(format, args...) }
func WorkspaceDebug(format string, args ...interface{}) { Get(CategoryWorkspace).Debug(format, args...) }

func Index(format string, args ...interface{})      { Get(CategoryIndex).Info(format, args...) }
func IndexDebug(format string, args ...interface{}) { Get(CategoryIndex).Debug(format, args...) }
func IndexWarn(format string, args ...interface{})  { Get(CategoryIndex).Warn(format, args...) }

func Agent(format string, args ...interface{})      { Get(CategoryAgent).Info(format, args...) }
func AgentDebug(format string, args ...interface{}) { Get(CategoryAgent).Debug(format, args...) }
func AgentWarn(format string, args ...interface{})  { Get(CategoryAgent).Warn(format, args...) }
func AgentError(format string, args ...interface{}) { Get(CategoryAgent).Error(format, args...) }

func Assistant(format string, args ...interface{})      { Get(CategoryAssistant).Info(format, args...) }
func AssistantDebug(format string, args ...interface{}) { Get(CategoryAssistant).Debug(format, args...) }
func AssistantError(format string, args ...interface{}) { Get(CategoryAssistant).Error(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

func Preview(format string, args ...interface{})      { Get(CategoryPreview).Info(format, args...) }
func PreviewDebug(format string, args ...interface{}) { Get(CategoryPreview).Debug(format, args...) }

func Server(format string, args ...interface{})      { Get(CategoryServer).Info(format, args...) }
func ServerDebug(format string, args ...interface{}) { Get(CategoryServer).Debug(format, args...) }
func ServerWarn(format string, args ...interface{})  { Get(CategoryServer).Warn(format, args...) }

func Backup(format string, args ...interface{})      { Get(CategoryBackup).Info(format, args...) }
func BackupError(format string, args ...interface{}) { Get(CategoryBackup).Error(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
