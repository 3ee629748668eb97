package main

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/blkwalk/blkwalk/internal/prevout/pebblestore"
)

// Explorer wraps a pebblestore.Store with the read-only reporting
// cmd/blkwalk-db offers — the same role the teacher's DatabaseExplorer
// plays for dbpebble, narrowed to the outpoint -> TxOut entries of
// blkwalk's UTXO-DB store; the salt key and the per-height prevout lists
// the store also holds are not reported.
type Explorer struct {
	store *pebblestore.Store
}

func NewExplorer(dbPath string) (*Explorer, error) {
	store, err := pebblestore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open utxo-db: %w", err)
	}
	return &Explorer{store: store}, nil
}

func (e *Explorer) Close() error {
	return e.store.Close()
}

// Count returns the number of live (unspent, as of the last Flush)
// outpoint entries in the store.
func (e *Explorer) Count() (int, error) {
	return e.store.Count()
}

// PrintInfo prints the entry count and the underlying pebble metrics, the
// same two sections the teacher's PrintDatabaseInfo prints for dbpebble.
func (e *Explorer) PrintInfo() error {
	count, err := e.Count()
	if err != nil {
		return fmt.Errorf("counting entries: %w", err)
	}
	fmt.Println("blkwalk UTXO-DB Information")
	fmt.Println("============================")
	fmt.Printf("Live outpoint entries: %d\n", count)
	fmt.Println()
	fmt.Println("Pebble Metrics:")
	fmt.Println(e.store.Metrics())
	return nil
}

// PrintSample prints up to limit raw entries: the opaque salted key (as
// hex, since the original outpoint cannot be recovered from it) plus the
// decoded TxOut's value and pkscript.
func (e *Explorer) PrintSample(limit int) error {
	fmt.Printf("First %d entries:\n", limit)
	n := 0
	err := e.store.ForEach(func(key []byte, out wire.TxOut) error {
		if n >= limit {
			return errStopIteration
		}
		fmt.Printf("  %s  value=%d  pkscript=%s\n", hex.EncodeToString(key), out.Value, hex.EncodeToString(out.PkScript))
		n++
		return nil
	})
	if err != nil && err != errStopIteration {
		return err
	}
	return nil
}

var errStopIteration = fmt.Errorf("stop iteration")
