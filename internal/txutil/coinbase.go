// Package txutil holds the small pieces of transaction inspection logic
// shared by prevout and stream, grounded on btcd's own
// blockchain.IsCoinBaseTx (github.com/btcsuite/btcd/blockchain/validate.go)
// reimplemented against wire types directly rather than importing the
// whole consensus-validation package for one check.
package txutil

import (
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// IsCoinBase reports whether tx is a coinbase: exactly one input whose
// previous outpoint has a max-value index and a zero hash.
func IsCoinBase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prevOut := &tx.TxIn[0].PreviousOutPoint
	return prevOut.Index == math.MaxUint32 && prevOut.Hash == chainhash.Hash{}
}
