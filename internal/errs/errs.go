// Package errs defines the error taxonomy blkwalk surfaces to callers:
// IOError, DecodeError, ChainError, PrevoutMissing, ReorderGap and
// ConfigError. Every exported type implements error and carries the
// context a caller needs (file path, offset, hash) without forcing a
// string match on the message, the way the teacher's dblevel.NoEntryErr
// lets callers distinguish "not found" from any other failure with
// errors.Is/errors.As instead of comparing strings.
package errs

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// IOError wraps a failure enumerating, opening, or reading a blocks*.dat
// file or the on-disk UTXO store.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// DecodeError wraps a malformed block record: a length mismatch, a header
// that fails to parse, or trailing bytes inside a record.
type DecodeError struct {
	Path   string
	Offset int64
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s@%d: %s: %v", e.Path, e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode error: %s@%d: %s", e.Path, e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ChainError covers the fatal cases in the canonical walk: a dangling
// prev_hash, a hash seen twice with disagreeing prev_hash, or genesis not
// reachable from the selected tip.
type ChainError struct {
	Hash   chainhash.Hash
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain error: %s: %s", e.Hash, e.Reason)
}

// PrevoutMissing is raised when an input references an OutPoint the
// PrevoutJoiner has no record of — a chain invariant violation, never a
// recoverable condition.
type PrevoutMissing struct {
	SpendingTxid chainhash.Hash
	InputIndex   int
	Missing      wire.OutPoint
}

func (e *PrevoutMissing) Error() string {
	return fmt.Sprintf("prevout missing: tx %s input %d references unknown outpoint %s:%d",
		e.SpendingTxid, e.InputIndex, e.Missing.Hash, e.Missing.Index)
}

// ReorderGap is raised at end-of-stream when Reorder's buffer is non-empty:
// some heights were never released because an earlier height never
// arrived.
type ReorderGap struct {
	NextHeight    uint32
	MissingBelow  []uint32
	BufferedAbove int
}

func (e *ReorderGap) Error() string {
	return fmt.Sprintf("reorder gap: stalled at height %d waiting for %d missing heights (%d buffered above)",
		e.NextHeight, len(e.MissingBelow), e.BufferedAbove)
}

// ConfigError covers invalid CLI or library configuration: an unknown
// network, a nonexistent blocks directory, or a contradictory flag
// combination.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}
