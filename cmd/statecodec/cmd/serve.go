/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ssargent/statecodec/pkg/api"
	"github.com/ssargent/statecodec/pkg/checkpoint"
	"github.com/ssargent/statecodec/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API server",
	Long: `Start the statecodec admin API server. It lists and describes stored
checkpoints, deletes them, and exposes Prometheus metrics at /metrics.

Requests under /api/v1 must carry the X-API-Key header with the key from the
configuration file (see 'statecodec init').

Examples:
  statecodec serve
  statecodec serve --port=9301 --bind=0.0.0.0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverConfig, err := serverConfigFrom(cmd, appConfig.API)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		store, err := openStore(checkpoint.NewMetrics(reg))
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		starter := serverFactory().CreateServerStarter()
		return starter.StartServer(ctx, store, serverConfig, logger, reg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().String("bind", "", "Address to bind to (overrides config)")
}

func serverConfigFrom(cmd *cobra.Command, cfg config.API) (api.ServerConfig, error) {
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("bind") {
		cfg.Bind, _ = cmd.Flags().GetString("bind")
	}
	if cfg.APIKey == "" || cfg.APIKey == "auto" {
		return api.ServerConfig{}, fmt.Errorf("no API key configured; run 'statecodec init' first")
	}
	return api.ServerConfig{
		Bind:        cfg.Bind,
		Port:        cfg.Port,
		APIKey:      cfg.APIKey,
		CORSOrigins: cfg.CORSOrigins,
	}, nil
}
