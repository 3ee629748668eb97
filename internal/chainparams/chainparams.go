// Package chainparams resolves the --network CLI flag into the magic bytes,
// genesis hash, and default reorg safety margin blkwalk needs to walk a
// blocks directory for a given Bitcoin network.
package chainparams

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Params bundles the per-network constants blockfile and chainbuilder need.
type Params struct {
	Name string

	// Magic is the 4-byte record marker blockfile.Scan looks for in
	// blocks*.dat files, in wire order (same bytes chaincfg uses for p2p
	// message framing).
	Magic [4]byte

	// Genesis is the network's height-0 block hash. chainbuilder's
	// backward walk must terminate here.
	Genesis chainhash.Hash

	// DefaultMaxReorg is the safety margin applied when --max-reorg is
	// not given on the CLI.
	DefaultMaxReorg uint32
}

var (
	Mainnet = Params{
		Name:            "mainnet",
		Magic:           wireMagic(chaincfg.MainNetParams.Net),
		Genesis:         *chaincfg.MainNetParams.GenesisHash,
		DefaultMaxReorg: 6,
	}
	Testnet3 = Params{
		Name:            "testnet",
		Magic:           wireMagic(chaincfg.TestNet3Params.Net),
		Genesis:         *chaincfg.TestNet3Params.GenesisHash,
		DefaultMaxReorg: 40,
	}
	Signet = Params{
		Name:            "signet",
		Magic:           wireMagic(chaincfg.SigNetParams.Net),
		Genesis:         *chaincfg.SigNetParams.GenesisHash,
		DefaultMaxReorg: 6,
	}
	Regtest = Params{
		Name:            "regtest",
		Magic:           wireMagic(chaincfg.RegressionNetParams.Net),
		Genesis:         *chaincfg.RegressionNetParams.GenesisHash,
		DefaultMaxReorg: 1,
	}
)

// wireMagic turns btcd's wire.BitcoinNet (the little-endian uint32 Bitcoin
// Core also uses to frame blocks*.dat records) into the 4 bytes that appear
// at the start of every record.
func wireMagic(net wire.BitcoinNet) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(net))
	return b
}

// ByName resolves the --network flag value to its Params.
func ByName(name string) (Params, error) {
	switch name {
	case "mainnet", "main":
		return Mainnet, nil
	case "testnet", "testnet3":
		return Testnet3, nil
	case "signet":
		return Signet, nil
	case "regtest", "regression":
		return Regtest, nil
	default:
		return Params{}, fmt.Errorf("chainparams: unknown network %q", name)
	}
}
