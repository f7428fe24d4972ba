/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Check the integrity of a checkpoint",
	Long: `Check the CRC of every stored frame of a checkpoint, that its snapshot
can be read, and that the number of state records matches its metadata.`,
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

		n, err := store.Verify(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("checkpoint %s failed verification: %w", id, err)
		}
		cmd.Printf("Checkpoint %s is intact (%d records)\n", id, n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
