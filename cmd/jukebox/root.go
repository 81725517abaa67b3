package main

import (
	"fmt"
	"os"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:           "jukebox",
	Short:         "Jukebox is a Discord music bot.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, "dotenv files to load (default .env)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
