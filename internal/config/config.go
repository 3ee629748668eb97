// Package config is blkwalk's CLI-facing configuration layer: a Config
// struct populated by cobra flags (with viper env-var backing for
// logging), validated once up front the way the teacher's
// internal/config.LoadConfigs validates its own settings before anything
// downstream runs.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/setavenger/blindbit-lib/logging"
	"github.com/spf13/viper"

	"github.com/blkwalk/blkwalk/internal/chainparams"
	"github.com/blkwalk/blkwalk/internal/errs"
)

// Config holds everything internal/pipeline needs to run once, per
// spec.md §6's CLI surface.
type Config struct {
	BlocksDir string
	Network   string

	// MaxReorg is nil when the caller wants the per-network default
	// (chainparams.Params.DefaultMaxReorg); an explicit value of 0 is a
	// configuration error, not "no safety margin".
	MaxReorg *uint32

	SkipPrevout bool
	UTXODBPath  string

	StartAtHeight uint32
	StopAtHeight  *uint32

	ChannelsSize int
}

// DefaultChannelsSize mirrors the teacher's headroom-multiplier sizing of
// its own inter-stage channels (config.MaxParallelRequests*20-style),
// scaled down since blkwalk's stages are CPU-bound rather than RPC-bound.
const DefaultChannelsSize = 256

// Params resolves c.Network into its chainparams.Params and c.MaxReorg
// into a concrete value, applying the per-network default when unset.
func (c *Config) Params() (chainparams.Params, uint32, error) {
	p, err := chainparams.ByName(c.Network)
	if err != nil {
		return chainparams.Params{}, 0, &errs.ConfigError{Field: "network", Reason: err.Error()}
	}
	maxReorg := p.DefaultMaxReorg
	if c.MaxReorg != nil {
		maxReorg = *c.MaxReorg
	}
	return p, maxReorg, nil
}

// Validate checks c for the invalid combinations spec.md §7/SPEC_FULL §6
// call out: an unknown network, a non-existent blocks directory,
// --utxo-db with --skip-prevout (mutually pointless, rejected the way the
// teacher's config.go rejects TweaksCutThroughWithDust && TweaksOnly), and
// an explicit zero --max-reorg.
func (c *Config) Validate() error {
	if c.BlocksDir == "" {
		return &errs.ConfigError{Field: "blocks-dir", Reason: "must be set"}
	}
	info, err := os.Stat(c.BlocksDir)
	if err != nil || !info.IsDir() {
		return &errs.ConfigError{Field: "blocks-dir", Reason: fmt.Sprintf("not a readable directory: %s", c.BlocksDir)}
	}

	if _, err := chainparams.ByName(c.Network); err != nil {
		return &errs.ConfigError{Field: "network", Reason: err.Error()}
	}

	if c.MaxReorg != nil && *c.MaxReorg == 0 {
		return &errs.ConfigError{Field: "max-reorg", Reason: "must be positive; omit the flag to use the network default"}
	}

	if c.UTXODBPath != "" && c.SkipPrevout {
		return &errs.ConfigError{Field: "utxo-db", Reason: "mutually pointless with --skip-prevout"}
	}

	if c.ChannelsSize <= 0 {
		return &errs.ConfigError{Field: "channels-size", Reason: "must be positive"}
	}

	if c.StopAtHeight != nil && *c.StopAtHeight < c.StartAtHeight {
		return &errs.ConfigError{Field: "stop-at-height", Reason: "must be >= start-at-height"}
	}

	return nil
}

// SetLogLevel applies level (one of zerolog's level names, read from
// --log-level or the BLKWALK_LOG_LEVEL environment variable per spec.md
// §6) via logging.SetLogLevel, the teacher's own
// internal/config.LoadConfigs pattern.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		logging.L.Warn().Str("level", level).Msg("unknown log level, defaulting to info")
		lvl = zerolog.InfoLevel
	}
	logging.SetLogLevel(lvl)
}

// BindEnv wires BLKWALK_LOG_LEVEL into viper the way the teacher binds
// LOG_LEVEL, so cmd/blkwalk can read it with viper.GetString("log_level")
// as a fallback when --log-level is not passed.
func BindEnv() {
	viper.SetDefault("log_level", "info")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("BLKWALK")
	_ = viper.BindEnv("log_level", "BLKWALK_LOG_LEVEL")
}
