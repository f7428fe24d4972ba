/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/statecodec/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with a generated API key",
	Long: `Write a configuration file for statecodec with a freshly generated API key
for the admin server, and create the data directory.

Examples:
  statecodec init
  statecodec init --config=./statecodec.yaml --data-dir=./data --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		return runInit(cmd.OutOrStdout(), path, dataDir, force)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
}

func runInit(out io.Writer, path, dataDir string, force bool) error {
	if config.ConfigExists(path) && !force {
		fmt.Fprintf(out, "Configuration already exists at %s. Use --force to overwrite it.\n", path)
		return nil
	}

	cfg, err := config.BootstrapConfig(path, dataDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	fmt.Fprintf(out, "Wrote configuration to %s\n", path)
	fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)
	fmt.Fprintf(out, "API key: %s\n", cfg.API.APIKey)
	fmt.Fprintf(out, "\nStart the admin server with:\n  statecodec serve --config=%s\n", path)
	return nil
}
