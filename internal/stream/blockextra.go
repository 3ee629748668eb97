// Package stream implements the Iterator facade and BlockExtra, the fully
// enriched type a consumer ultimately sees: a parsed block, its height,
// and every prevout its inputs spend.
package stream

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/blkwalk/blkwalk/internal/txutil"
)

// BlockExtra is spec.md's BlockExtra: the fully parsed block plus
// everything a consumer needs to compute fees or verify scripts without a
// second pass.
type BlockExtra struct {
	Block     *wire.MsgBlock
	Height    uint32
	BlockHash chainhash.Hash
	Size      uint32
	TxHashes  []chainhash.Hash

	// OutpointValues maps every OutPoint this block's non-coinbase inputs
	// spend to the TxOut it refers to. Empty when the pipeline runs with
	// --skip-prevout.
	OutpointValues map[wire.OutPoint]wire.TxOut

	// NextBlockHash is the canonical child's hash, known once that child
	// has itself been scanned; nil for the current tip of the emitted
	// stream.
	NextBlockHash *chainhash.Hash
}

// TxFee returns input_total - output_total for tx, or false if tx is the
// coinbase or any of its prevouts are missing from OutpointValues (which
// only happens when the pipeline ran with --skip-prevout).
func (b *BlockExtra) TxFee(tx *wire.MsgTx) (int64, bool) {
	if txutil.IsCoinBase(tx) {
		return 0, false
	}
	var inTotal int64
	for _, in := range tx.TxIn {
		out, ok := b.OutpointValues[in.PreviousOutPoint]
		if !ok {
			return 0, false
		}
		inTotal += out.Value
	}
	var outTotal int64
	for _, out := range tx.TxOut {
		outTotal += out.Value
	}
	return inTotal - outTotal, true
}

// Fee sums TxFee over every non-coinbase transaction in the block. Returns
// false if any transaction's fee could not be computed.
func (b *BlockExtra) Fee() (int64, bool) {
	var total int64
	for _, tx := range b.Block.Transactions {
		if txutil.IsCoinBase(tx) {
			continue
		}
		fee, ok := b.TxFee(tx)
		if !ok {
			return 0, false
		}
		total += fee
	}
	return total, true
}

// AverageFee returns Fee() divided by the number of non-coinbase
// transactions in the block.
func (b *BlockExtra) AverageFee() (float64, bool) {
	total, ok := b.Fee()
	if !ok {
		return 0, false
	}
	n := len(b.Block.Transactions) - 1 // exclude coinbase
	if n <= 0 {
		return 0, false
	}
	return float64(total) / float64(n), true
}

// BaseReward is the block subsidy at Height: 50 BTC (in satoshis), halved
// every 210,000 blocks, exactly as original_source's
// block_extra.rs::base_reward.
func BaseReward(height uint32) int64 {
	const initialSubsidy = 50 * 100_000_000
	halvings := height / 210_000
	if halvings >= 64 {
		return 0
	}
	return initialSubsidy >> halvings
}
