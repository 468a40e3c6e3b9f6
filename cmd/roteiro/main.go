package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roteiro-ai/roteiro/pkg/config"
	"github.com/roteiro-ai/roteiro/pkg/logging"
)

var version = "dev"

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roteiro",
		Short:         "Roteiro: PQT-U dispensation assistant gateway",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}

			var err error
			cfg, err = config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}

			logger, err = logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default roteiro.yaml if present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newClassifyCmd(),
		newPersonasCmd(),
		newCacheCmd(),
		newLimitsCmd(),
		newStatsCmd(),
		newAuditCmd(),
		newMCPCmd(),
	)
	return root
}

// resolveConfigPath returns the --config value, or roteiro.yaml when it
// exists, or "" to run on defaults and environment overrides.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat("roteiro.yaml"); err == nil {
		return "roteiro.yaml"
	}
	return ""
}
