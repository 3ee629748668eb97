// cmd/blkwalk is the primary entry point: a cobra "run" command that wires
// a Config from flags/env, drives internal/pipeline.Pipeline, and frames
// every resulting stream.BlockExtra onto stdout in the spec.md §6 pipe
// format for a downstream process to consume. Grounded on the teacher's
// cmd/blindbit-oracle main.go for the interrupt/errChan shutdown shape and
// cmd/db main.go for the cobra flag wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/setavenger/blindbit-lib/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blkwalk/blkwalk/internal/config"
	"github.com/blkwalk/blkwalk/internal/pipeline"
	"github.com/blkwalk/blkwalk/internal/stream"
)

var (
	Version = "0.0.0"

	blocksDir     string
	network       string
	maxReorg      uint32
	skipPrevout   bool
	utxoDBPath    string
	startAtHeight uint32
	stopAtHeight  uint32
	channelsSize  int
	logLevel      string
)

func init() {
	runCmd.Flags().StringVar(&blocksDir, "blocks-dir", "", "Directory containing blocksNNNNN.dat files (required)")
	runCmd.Flags().StringVar(&network, "network", "", "Bitcoin network: mainnet, testnet, signet, regtest (required)")
	runCmd.Flags().Uint32Var(&maxReorg, "max-reorg", 0, "Blocks to withhold from the tip as a reorg safety margin (0 = use the network default)")
	runCmd.Flags().BoolVar(&skipPrevout, "skip-prevout", false, "Skip prevout resolution; OutpointValues is left empty on every block")
	runCmd.Flags().StringVar(&utxoDBPath, "utxo-db", "", "Use a two-phase on-disk UTXO store at this path instead of the default in-memory one")
	runCmd.Flags().Uint32Var(&startAtHeight, "start-at-height", 0, "Suppress output for heights below this one")
	runCmd.Flags().Uint32Var(&stopAtHeight, "stop-at-height", 0, "Stop emitting after this height (0 = no limit)")
	runCmd.Flags().IntVar(&channelsSize, "channels-size", config.DefaultChannelsSize, "Buffer size for the pipeline's inter-stage channels")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (overrides BLKWALK_LOG_LEVEL): trace, debug, info, warn, error")
	_ = runCmd.MarkFlagRequired("blocks-dir")
	_ = runCmd.MarkFlagRequired("network")
}

var rootCmd = &cobra.Command{
	Use:     "blkwalk",
	Short:   "Reorg-tolerant, height-ordered, prevout-joined Bitcoin block reader",
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Walk a blocks directory and emit framed BlockExtra records on stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.BindEnv()
		level := logLevel
		if level == "" {
			level = viper.GetString("log_level")
		}
		config.SetLogLevel(level)

		cfg := &config.Config{
			BlocksDir:     blocksDir,
			Network:       network,
			SkipPrevout:   skipPrevout,
			UTXODBPath:    utxoDBPath,
			StartAtHeight: startAtHeight,
			ChannelsSize:  channelsSize,
		}
		if maxReorg != 0 {
			cfg.MaxReorg = &maxReorg
		}
		if stopAtHeight != 0 {
			cfg.StopAtHeight = &stopAtHeight
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		logging.L.Info().Str("blocks_dir", cfg.BlocksDir).Str("network", cfg.Network).Msg("starting pipeline")

		it := pipeline.New(cfg).Run(ctx)
		out := cmd.OutOrStdout()
		count := 0
		for {
			be, ok, err := it()
			if err != nil {
				return fmt.Errorf("pipeline: %w", err)
			}
			if !ok {
				break
			}
			if err := stream.WriteBlockExtra(out, be); err != nil {
				return fmt.Errorf("writing block %d to stdout: %w", be.Height, err)
			}
			count++
		}

		logging.L.Info().Int("blocks_emitted", count).Msg("pipeline finished")
		return nil
	},
}

func main() {
	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
