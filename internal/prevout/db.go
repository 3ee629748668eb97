package prevout

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/blkwalk/blkwalk/internal/errs"
	"github.com/blkwalk/blkwalk/internal/prevout/pebblestore"
	"github.com/blkwalk/blkwalk/internal/stream"
	"github.com/blkwalk/blkwalk/internal/txutil"
)

// DBJoiner is the two-phase on-disk PrevoutJoiner of spec.md §4.4. Pass 1
// streams the ordered chain once; for each block it resolves every
// non-coinbase input's prevout (same-block spends against an in-block map,
// cross-block spends against the store, deleting the entry once read so
// the store only ever holds still-live outputs) and persists the block's
// resolved prevout list under a key derived from its height. Pass 2
// re-streams the same ordered chain and reads that per-height list straight
// back, in the same order it iterates the block's inputs — it never
// queries the store by outpoint, because by the time pass 2 runs, every
// spent output pass 1 resolved has already been deleted from it.
//
// This mirrors the original Rust implementation (utxo/db.rs), which
// resolves and persists a block's prevouts in the very same pass that
// deletes them, rather than deleting first and hoping a later pass can
// still find what it just removed.
//
// internal/pipeline drives the two passes over a single buffered,
// height-ordered slice of records from one run of blockfile through
// reorder: it calls Pass1 on every block first, then Join on every block.
type DBJoiner struct {
	store *pebblestore.Store
}

func NewDBJoiner(store *pebblestore.Store) *DBJoiner {
	return &DBJoiner{store: store}
}

// Pass1 resolves be's prevouts, persists them under be.Height, writes the
// outputs be's transactions create, and deletes the ones consumed from the
// store. It flushes its own batch before returning: the next call to Pass1
// may need to Get an output this call just wrote, and Get does not see an
// uncommitted batch.
func (j *DBJoiner) Pass1(be *stream.BlockExtra) error {
	blockOutputs := make(map[wire.OutPoint]wire.TxOut)
	for _, tx := range be.Block.Transactions {
		txid := tx.TxHash()
		for i, out := range tx.TxOut {
			blockOutputs[wire.OutPoint{Hash: txid, Index: uint32(i)}] = *out
		}
	}

	var prevouts []wire.TxOut
	for _, tx := range be.Block.Transactions {
		if txutil.IsCoinBase(tx) {
			continue
		}
		for i, in := range tx.TxIn {
			if out, ok := blockOutputs[in.PreviousOutPoint]; ok {
				delete(blockOutputs, in.PreviousOutPoint)
				prevouts = append(prevouts, out)
				continue
			}

			out, ok, err := j.store.Get(in.PreviousOutPoint)
			if err != nil {
				return err
			}
			if !ok {
				return &errs.PrevoutMissing{
					SpendingTxid: tx.TxHash(),
					InputIndex:   i,
					Missing:      in.PreviousOutPoint,
				}
			}
			if err := j.store.DeleteOutput(in.PreviousOutPoint); err != nil {
				return err
			}
			prevouts = append(prevouts, out)
		}
	}

	for op, out := range blockOutputs {
		if err := j.store.PutOutput(op, out); err != nil {
			return err
		}
	}
	if err := j.store.PutPrevouts(be.Height, prevouts); err != nil {
		return err
	}
	return j.store.Flush()
}

// Join implements Joiner by treating a single call as pass 2: reading back
// the prevout list Pass1 persisted for be.Height and attaching its entries
// to be's inputs in the same order Pass1 resolved them. Callers running
// the two-phase mode must have already driven the entire ordered stream
// through Pass1 before any Join call.
func (j *DBJoiner) Join(be *stream.BlockExtra) error {
	if be.OutpointValues == nil {
		be.OutpointValues = make(map[wire.OutPoint]wire.TxOut, len(be.Block.Transactions))
	}

	prevouts, ok, err := j.store.GetPrevouts(be.Height)
	if err != nil {
		return err
	}

	idx := 0
	for _, tx := range be.Block.Transactions {
		if txutil.IsCoinBase(tx) {
			continue
		}
		for i, in := range tx.TxIn {
			if !ok || idx >= len(prevouts) {
				return &errs.PrevoutMissing{
					SpendingTxid: tx.TxHash(),
					InputIndex:   i,
					Missing:      in.PreviousOutPoint,
				}
			}
			be.OutpointValues[in.PreviousOutPoint] = prevouts[idx]
			idx++
		}
	}
	return nil
}

// FlushPass1 commits any still-pending pass-1 writes. Pass1 already
// flushes per block, so this is a cheap no-op in the common case; it
// remains the explicit barrier callers are expected to invoke once the
// whole ordered stream has been driven through Pass1.
func (j *DBJoiner) FlushPass1() error {
	return j.store.Flush()
}

func (j *DBJoiner) Close() error {
	return j.store.Close()
}
