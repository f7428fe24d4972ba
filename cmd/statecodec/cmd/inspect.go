/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ssargent/statecodec/pkg/checkpoint"
	"github.com/ssargent/statecodec/pkg/codec"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <id>",
	Short: "Show a checkpoint and its configuration snapshot",
	Long: `Show a checkpoint's metadata and the configuration snapshot it was saved
with: the field table in wire order and both subclass tiers.

Record types are not known to the CLI, so delegate references stored in the
snapshot are not rebuilt. The snapshot tree itself is always complete.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		store, err := openStore(nil)
		if err != nil {
			return err
		}
		defer store.Close()

		info, err := store.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		snap, err := store.LoadSnapshot(cmd.Context(), id, codec.NopLoader)
		if err != nil {
			return err
		}
		printInspect(cmd.OutOrStdout(), info, snap)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func printInspect(out io.Writer, info checkpoint.Info, snap codec.Snapshot) {
	fmt.Fprintf(out, "ID:            %s\n", info.ID)
	fmt.Fprintf(out, "Name:          %s\n", info.Name)
	fmt.Fprintf(out, "Created:       %s (%s)\n", info.Created.Format(time.RFC3339), humanize.Time(info.Created))
	fmt.Fprintf(out, "Type:          %s\n", info.Type)
	fmt.Fprintf(out, "Records:       %s\n", humanize.Comma(int64(info.Records)))
	if len(info.Registrations) > 0 {
		fmt.Fprintf(out, "Registrations: %s\n", strings.Join(info.Registrations, ", "))
	}
	fmt.Fprintf(out, "\n%s", codec.Describe(snap))
}
