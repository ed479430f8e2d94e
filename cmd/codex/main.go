// Package main provides the codex CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codex/internal/config"
	"codex/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string

	// Logger
	logger *zap.Logger

	// cfg is loaded by PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codex",
	Short: "codex - local code editor shell with an AI agent",
	Long: `codex keeps HTML/CSS/JS projects in local key/value storage, serves a
live preview of them, and lets a Gemini (or OpenAI-compatible) assistant create,
update, move and delete files through ACTION/PARAMS/REASONING replies.

Run "codex serve" for the HTTP API and preview, or "codex chat <project>" for
the terminal chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		if err := logging.Initialize(cfg.LogsDir(), cfg.Logging.ToLogging()); err != nil {
			logger.Warn("Categorized logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func defaultConfigPath() string {
	return filepath.Join(config.DefaultDataDir(), "config.yaml")
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = defaultConfigPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		c.DataDir = dataDir
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or TOML, default ~/.codex/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides config and CODEX_DATA_DIR)")

	rootCmd.AddCommand(
		serveCmd,
		chatCmd,
		askCmd,
		projectsCmd,
		filesCmd,
		searchCmd,
		openCmd,
		previewCmd,
		keyCmd,
		settingsCmd,
		backupCmd,
		configCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
