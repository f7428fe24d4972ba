/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/statecodec/pkg/api"
	"github.com/ssargent/statecodec/pkg/checkpoint"
	"github.com/ssargent/statecodec/pkg/config"
	"github.com/ssargent/statecodec/pkg/di"
	"github.com/ssargent/statecodec/pkg/observability"
)

var (
	container *di.Container
	appConfig *config.Config
	logger    = zap.NewNop()
)

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "statecodec",
	Short: "statecodec - schema-evolving state checkpoints",
	Long: `statecodec inspects and serves checkpoints written by the statecodec
record codec: configuration snapshots plus the state they encoded.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		l, err := observability.SetupLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		appConfig = cfg
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.GetDefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory for the checkpoint store (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// resolveConfig loads the config file when there is one and applies flag
// overrides. A missing file is only an error when --config was given.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	switch {
	case config.ConfigExists(path):
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case cmd.Flags().Changed("config"):
		return nil, fmt.Errorf("config file does not exist: %s", path)
	default:
		cfg = config.DefaultConfig()
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func storeFactory() checkpoint.StoreFactory {
	if container == nil {
		return checkpoint.NewStoreFactory()
	}
	return container.GetStoreFactory()
}

func serverFactory() api.ServerFactory {
	if container == nil {
		return api.NewServerFactory()
	}
	return container.GetServerFactory()
}

// openStore opens the configured checkpoint store. Callers close it.
func openStore(metrics *checkpoint.Metrics) (*checkpoint.Store, error) {
	store, err := storeFactory().OpenStore(checkpoint.Config{
		DataDir: appConfig.DataDir,
		Sync:    appConfig.Sync,
		Metrics: metrics,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return store, nil
}

func parseID(arg string) (ksuid.KSUID, error) {
	id, err := ksuid.Parse(arg)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("invalid checkpoint id %q: %w", arg, err)
	}
	return id, nil
}
