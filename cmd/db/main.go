// cmd/db is blkwalk-db: a small inspector for the on-disk UTXO-DB a
// --utxo-db pipeline run leaves behind, in the style of the teacher's own
// cmd/db database-explorer cobra tree, adapted from dbpebble's many
// silent-payment key types down to blkwalk's outpoint->TxOut entries.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "0.0.0"

	dbPath      string
	sampleLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db",
		"",
		"Path to the pebble UTXO-DB directory (required)",
	)
	_ = rootCmd.MarkPersistentFlagRequired("db")

	sampleCmd.Flags().IntVar(
		&sampleLimit,
		"limit",
		20,
		"Maximum number of entries to print",
	)
}

var rootCmd = &cobra.Command{
	Use:     "blkwalk-db",
	Short:   "Inspector for blkwalk's on-disk UTXO-DB",
	Version: Version,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show entry count and pebble metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		explorer, err := NewExplorer(dbPath)
		if err != nil {
			return err
		}
		defer explorer.Close()
		return explorer.PrintInfo()
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print a sample of raw entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		explorer, err := NewExplorer(dbPath)
		if err != nil {
			return err
		}
		defer explorer.Close()
		return explorer.PrintSample(sampleLimit)
	},
}

func main() {
	rootCmd.AddCommand(infoCmd, sampleCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
