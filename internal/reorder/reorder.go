// Package reorder implements Reorder: it receives height-stamped blocks in
// whatever order ChainBuilder emitted them and releases them downstream in
// strictly increasing height order, buffering anything that arrives ahead
// of next_height.
package reorder

import (
	"time"

	"github.com/setavenger/blindbit-lib/logging"

	"github.com/blkwalk/blkwalk/internal/blockfile"
	"github.com/blkwalk/blkwalk/internal/errs"
	"github.com/blkwalk/blkwalk/internal/periodic"
)

// Order drains in, buffers out-of-order records keyed by height, and sends
// them to out strictly in increasing height order. It closes out exactly
// once. If end-of-stream is reached with records still buffered (a gap
// below the highest height seen), it returns an *errs.ReorderGap.
func Order(in <-chan blockfile.Record, out chan<- blockfile.Record) error {
	defer close(out)

	buffer := make(map[uint32]blockfile.Record)
	var nextHeight uint32
	tick := periodic.NewTicker(30 * time.Second)

	for rec := range in {
		if rec.Height == nil {
			// chainbuilder is required to stamp every record it emits;
			// a nil height here is a programming error upstream, not a
			// recoverable input condition.
			panic("reorder: received record with no height")
		}
		buffer[*rec.Height] = rec

		for {
			next, ok := buffer[nextHeight]
			if !ok {
				break
			}
			delete(buffer, nextHeight)
			out <- next
			nextHeight++
		}

		if tick.Elapsed() {
			logging.L.Debug().Uint32("next_height", nextHeight).Int("buffered", len(buffer)).
				Msg("reorder: progress")
		}
	}

	if len(buffer) > 0 {
		maxHeight := nextHeight
		for h := range buffer {
			if h > maxHeight {
				maxHeight = h
			}
		}
		var missing []uint32
		for h := nextHeight; h <= maxHeight; h++ {
			if _, ok := buffer[h]; !ok {
				missing = append(missing, h)
			}
		}
		return &errs.ReorderGap{
			NextHeight:    nextHeight,
			MissingBelow:  missing,
			BufferedAbove: len(buffer),
		}
	}
	return nil
}
