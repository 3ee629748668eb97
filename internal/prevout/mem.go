package prevout

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/blkwalk/blkwalk/internal/errs"
	"github.com/blkwalk/blkwalk/internal/stream"
	"github.com/blkwalk/blkwalk/internal/txutil"
)

// MemJoiner is the in-memory PrevoutJoiner: a single map of every live
// output, exactly as spec.md §4.4 describes (no truncated-key optimization
// — the original Rust TruncMap micro-optimization is out of scope for this
// port, see DESIGN.md). Fastest mode; memory is O(live UTXO set).
type MemJoiner struct {
	live map[wire.OutPoint]wire.TxOut
}

func NewMemJoiner() *MemJoiner {
	return &MemJoiner{live: make(map[wire.OutPoint]wire.TxOut)}
}

// Join resolves be's inputs against the live set and inserts its outputs.
// Per transaction: resolve inputs first, then add outputs — a transaction
// can spend an output created earlier in the same block, but consensus
// guarantees it never spends one created later, so per-tx ordering alone
// is sufficient (spec.md §4.4).
func (j *MemJoiner) Join(be *stream.BlockExtra) error {
	if be.OutpointValues == nil {
		be.OutpointValues = make(map[wire.OutPoint]wire.TxOut, len(be.Block.Transactions))
	}

	for _, tx := range be.Block.Transactions {
		if !txutil.IsCoinBase(tx) {
			for i, in := range tx.TxIn {
				out, ok := j.live[in.PreviousOutPoint]
				if !ok {
					return &errs.PrevoutMissing{
						SpendingTxid: tx.TxHash(),
						InputIndex:   i,
						Missing:      in.PreviousOutPoint,
					}
				}
				be.OutpointValues[in.PreviousOutPoint] = out
				delete(j.live, in.PreviousOutPoint)
			}
		}

		txid := tx.TxHash()
		for i, out := range tx.TxOut {
			j.live[wire.OutPoint{Hash: txid, Index: uint32(i)}] = *out
		}
	}

	return nil
}

func (j *MemJoiner) Close() error { return nil }

// Len reports the number of currently-live (unspent) outputs, exposed for
// the same periodic-progress logging the teacher's indexer routines use to
// report working-set size.
func (j *MemJoiner) Len() int { return len(j.live) }
