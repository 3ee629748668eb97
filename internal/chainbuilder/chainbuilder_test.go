package chainbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blkwalk/blkwalk/internal/blockfile"
	"github.com/blkwalk/blkwalk/internal/blocktest"
)

func TestBuildLinearChain(t *testing.T) {
	chain := blocktest.NewChain([4]byte{})
	genesis := chain.AddGenesis(blocktest.CoinbaseTx(0, blocktest.TxOut(1, []byte{0x51})))
	b1 := chain.Extend(genesis, blocktest.CoinbaseTx(1, blocktest.TxOut(1, []byte{0x51})))
	chain.Extend(b1, blocktest.CoinbaseTx(2, blocktest.TxOut(1, []byte{0x51})))

	in := make(chan blockfile.Record, 8)
	for _, blk := range chain.Blocks {
		in <- blockfile.Record{Hash: blk.Header.BlockHash(), PrevHash: blk.Header.PrevBlock}
	}
	close(in)

	out := make(chan blockfile.Record, 8)
	err := Build(in, chain.Genesis, 0, out)
	require.NoError(t, err)

	var got []blockfile.Record
	for rec := range out {
		got = append(got, rec)
	}
	require.Len(t, got, 3)
	for i, rec := range got {
		require.NotNil(t, rec.Height)
		require.Equal(t, uint32(i), *rec.Height)
	}
}

func TestBuildShallowReorg(t *testing.T) {
	// parent at height 0, one branch goes to height 4 (canonical), the
	// other stops at height 1 (side chain), same tiebreak irrelevant
	// since lengths differ.
	chain := blocktest.NewChain([4]byte{})
	genesis := chain.AddGenesis(blocktest.CoinbaseTx(0, blocktest.TxOut(1, []byte{0x51})))

	canon1 := chain.Extend(genesis, blocktest.CoinbaseTx(1, blocktest.TxOut(1, []byte{0x51})))
	canon2 := chain.Extend(canon1, blocktest.CoinbaseTx(2, blocktest.TxOut(1, []byte{0x51})))
	canon3 := chain.Extend(canon2, blocktest.CoinbaseTx(3, blocktest.TxOut(1, []byte{0x51})))
	chain.Extend(canon3, blocktest.CoinbaseTx(4, blocktest.TxOut(1, []byte{0x51})))

	// side chain rooted at genesis, one block deep.
	chain.Extend(genesis, blocktest.CoinbaseTx(5, blocktest.TxOut(1, []byte{0x51})))

	in := make(chan blockfile.Record, 8)
	for _, blk := range chain.Blocks {
		in <- blockfile.Record{Hash: blk.Header.BlockHash(), PrevHash: blk.Header.PrevBlock}
	}
	close(in)

	out := make(chan blockfile.Record, 8)
	err := Build(in, chain.Genesis, 0, out)
	require.NoError(t, err)

	var got []blockfile.Record
	for rec := range out {
		got = append(got, rec)
	}
	require.Len(t, got, 5, "canonical chain has 5 blocks (height 0..4); side chain block excluded")
}

func TestBuildMaxReorgWithholdsTip(t *testing.T) {
	chain := blocktest.NewChain([4]byte{})
	genesis := chain.AddGenesis(blocktest.CoinbaseTx(0, blocktest.TxOut(1, []byte{0x51})))
	b1 := chain.Extend(genesis, blocktest.CoinbaseTx(1, blocktest.TxOut(1, []byte{0x51})))
	chain.Extend(b1, blocktest.CoinbaseTx(2, blocktest.TxOut(1, []byte{0x51})))

	in := make(chan blockfile.Record, 8)
	for _, blk := range chain.Blocks {
		in <- blockfile.Record{Hash: blk.Header.BlockHash(), PrevHash: blk.Header.PrevBlock}
	}
	close(in)

	out := make(chan blockfile.Record, 8)
	err := Build(in, chain.Genesis, 1, out) // tip height 2, margin 1 -> emit heights 0,1 only
	require.NoError(t, err)

	var got []blockfile.Record
	for rec := range out {
		got = append(got, rec)
	}
	require.Len(t, got, 2)
}

func TestBuildDuplicateAcrossFilesEmittedOnce(t *testing.T) {
	chain := blocktest.NewChain([4]byte{})
	genesis := chain.AddGenesis(blocktest.CoinbaseTx(0, blocktest.TxOut(1, []byte{0x51})))

	in := make(chan blockfile.Record, 8)
	rec := blockfile.Record{Hash: genesis.Header.BlockHash(), PrevHash: genesis.Header.PrevBlock}
	in <- rec
	in <- rec // duplicate, as if seen in a second file
	close(in)

	out := make(chan blockfile.Record, 8)
	err := Build(in, chain.Genesis, 0, out)
	require.NoError(t, err)

	var got []blockfile.Record
	for r := range out {
		got = append(got, r)
	}
	require.Len(t, got, 1)
}

func TestBuildGenesisUnreachableIsChainError(t *testing.T) {
	chain := blocktest.NewChain([4]byte{})
	genesis := chain.AddGenesis(blocktest.CoinbaseTx(0, blocktest.TxOut(1, []byte{0x51})))
	_ = genesis

	in := make(chan blockfile.Record, 1)
	in <- blockfile.Record{Hash: [32]byte{0xAA}, PrevHash: [32]byte{0xBB}} // floating, never reaches configured genesis
	close(in)

	out := make(chan blockfile.Record, 1)
	err := Build(in, chain.Genesis, 0, out)
	require.Error(t, err)
}
