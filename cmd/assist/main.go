package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ChamsBouzaiene/assist/internal/config"
	"github.com/ChamsBouzaiene/assist/internal/factory"
)

var (
	// Global flags
	verbose   bool
	projectID string
	configDir string

	logger *zap.Logger
	mgr    *config.Manager
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "assist",
	Short: "Conversational project assistant",
	Long: `assist keeps a conversation about a project and turns it into tracked
work items and durable notes.

Talk freely; say "add this as a task" to turn an idea into a work item,
"mark <title> as done" to move one along, and /end to close the session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if configDir != "" {
			mgr = config.NewManagerAt(configDir)
		} else {
			var err error
			if mgr, err = config.NewManager(); err != nil {
				return err
			}
		}
		var err error
		if cfg, err = mgr.Load(); err != nil {
			return err
		}

		logger, err = buildLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func buildLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	// Logs go to stderr so the conversation on stdout stays readable.
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func openRuntime(ctx context.Context) (*factory.Runtime, error) {
	if projectID == "" {
		return nil, fmt.Errorf("--project is required")
	}
	return factory.Build(ctx, mgr, cfg, logger)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", "", "Project identifier")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (default: <user config dir>/assist)")

	rootCmd.AddCommand(chatCmd, endCmd, itemsCmd, notesCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
