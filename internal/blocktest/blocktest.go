// Package blocktest builds small synthetic chains and writes them out as
// blocks*.dat files, the way the teacher's src/testhelpers package builds
// fixtures without touching a live node. It plays the same role for
// blkwalk's own domain: every stage from blockfile through prevout is
// exercised against chains built here instead of a real blocks directory.
package blocktest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Chain accumulates a sequence of synthetic blocks in the order they are
// built, independent of the order they will later be written to disk.
type Chain struct {
	Magic   [4]byte
	Genesis chainhash.Hash
	Blocks  []*wire.MsgBlock
}

func NewChain(magic [4]byte) *Chain {
	return &Chain{Magic: magic}
}

// nonceCounter keeps successive headers within a Chain from hashing to the
// same value when timestamps collide (time.Unix truncation in tests).
var nonceCounter uint32

func header(prev chainhash.Hash) wire.BlockHeader {
	nonceCounter++
	return wire.BlockHeader{
		Version:    1,
		PrevBlock:  prev,
		MerkleRoot: chainhash.Hash{}, // not validated by blkwalk
		Timestamp:  time.Unix(1231006505+int64(nonceCounter), 0),
		Bits:       0x207fffff,
		Nonce:      nonceCounter,
	}
}

// AddGenesis appends the height-0 block and records its hash as the
// chain's genesis, the value chainbuilder's backward walk must terminate
// at.
func (c *Chain) AddGenesis(txs ...*wire.MsgTx) *wire.MsgBlock {
	blk := wire.NewMsgBlock(&wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: chainhash.Hash{},
		Timestamp:  time.Unix(1231006505, 0),
		Bits:       0x207fffff,
		Nonce:      0,
	})
	for _, tx := range txs {
		blk.AddTransaction(tx)
	}
	c.Genesis = blk.Header.BlockHash()
	c.Blocks = append(c.Blocks, blk)
	return blk
}

// Extend appends a new block whose PrevBlock is parent's hash.
func (c *Chain) Extend(parent *wire.MsgBlock, txs ...*wire.MsgTx) *wire.MsgBlock {
	h := header(parent.Header.BlockHash())
	blk := wire.NewMsgBlock(&h)
	for _, tx := range txs {
		blk.AddTransaction(tx)
	}
	c.Blocks = append(c.Blocks, blk)
	return blk
}

// CoinbaseTx builds a minimal valid coinbase: one input with a
// max-value-index zero-hash previous outpoint, and the given outputs.
func CoinbaseTx(extraNonce uint32, outs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	sigScript := []byte{byte(extraNonce), byte(extraNonce >> 8), byte(extraNonce >> 16), byte(extraNonce >> 24)}
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: math.MaxUint32}, sigScript, nil))
	for _, o := range outs {
		tx.AddTxOut(o)
	}
	return tx
}

// SpendTx builds a transaction spending outputs at (prevTxid, prevIndex)
// pairs and creating the given outputs.
func SpendTx(spends []wire.OutPoint, outs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, op := range spends {
		op := op
		tx.AddTxIn(wire.NewTxIn(&op, []byte{0x51}, nil))
	}
	for _, o := range outs {
		tx.AddTxOut(o)
	}
	return tx
}

// TxOut is a convenience constructor matching wire.NewTxOut's signature so
// callers can avoid importing wire directly in simple fixtures.
func TxOut(value int64, pkScript []byte) *wire.TxOut {
	return wire.NewTxOut(value, pkScript)
}

// WriteBlocksDat serializes blocks in the given order into a single
// magic/length-framed file at dir/name, the format blockfile.Scan expects.
func WriteBlocksDat(dir, name string, magic [4]byte, blocks []*wire.MsgBlock) (string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, blk := range blocks {
		raw, err := serializeBlock(blk)
		if err != nil {
			return "", fmt.Errorf("blocktest: serialize block: %w", err)
		}
		if _, err := f.Write(magic[:]); err != nil {
			return "", err
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(raw)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return "", err
		}
		if _, err := f.Write(raw); err != nil {
			return "", err
		}
	}
	return path, nil
}

func serializeBlock(blk *wire.MsgBlock) ([]byte, error) {
	var buf bytes.Buffer
	if err := blk.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
