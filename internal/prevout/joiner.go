// Package prevout implements PrevoutJoiner, spec.md §4.4: attaching every
// non-coinbase input's spent TxOut to the block that consumes it, so a
// consumer can compute fees or verify scripts without a second pass over
// the chain.
package prevout

import (
	"github.com/blkwalk/blkwalk/internal/stream"
)

// Joiner is implemented by each of the three prevout-resolution strategies:
// MemJoiner (in-memory, one pass), DBJoiner (on-disk, two passes) and
// NoopJoiner (--skip-prevout). Join is called once per block, in ascending
// height order — the order Reorder already guarantees upstream.
type Joiner interface {
	Join(be *stream.BlockExtra) error
	Close() error
}

// NoopJoiner backs --skip-prevout: BlockExtra.OutpointValues is left empty
// for every block, and fee computation on the consumer side simply returns
// ok=false, per spec.md §4.4's skip-prevout option.
type NoopJoiner struct{}

func (NoopJoiner) Join(be *stream.BlockExtra) error { return nil }

func (NoopJoiner) Close() error { return nil }
