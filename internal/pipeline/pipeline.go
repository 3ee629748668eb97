// Package pipeline wires blockfile, chainbuilder, reorder, prevout and
// stream into the single run spec.md §2/§5 describes: P1 (blockfile +
// chainbuilder, parallel and unordered) feeding P2 (reorder + prevout,
// sequential and ordered) feeding the consumer-visible stream.Iterator.
// Grounded on the teacher's internal/indexer.Builder, which wires its own
// pull/handle/write stages behind a shared context.Context and a handful
// of bounded channels sized off config knobs.
package pipeline

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/setavenger/blindbit-lib/logging"
	"golang.org/x/sync/errgroup"

	"github.com/blkwalk/blkwalk/internal/blockfile"
	"github.com/blkwalk/blkwalk/internal/chainbuilder"
	"github.com/blkwalk/blkwalk/internal/chainparams"
	"github.com/blkwalk/blkwalk/internal/config"
	"github.com/blkwalk/blkwalk/internal/prevout"
	"github.com/blkwalk/blkwalk/internal/prevout/pebblestore"
	"github.com/blkwalk/blkwalk/internal/reorder"
	"github.com/blkwalk/blkwalk/internal/stream"
)

// Pipeline owns one run of the full blkwalk chain for a given Config.
type Pipeline struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run starts every stage in its own goroutine and returns a stream.Iterator
// over the final enriched, height-ordered, height-filtered output.
// Cancelling ctx propagates to blockfile's per-file workers on their next
// record send and unwinds every stage via closed channels; the pebble store (if
// any) is closed on every exit path.
func (p *Pipeline) Run(ctx context.Context) stream.Iterator {
	out := make(chan *stream.BlockExtra, p.cfg.ChannelsSize)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		if err := p.run(ctx, out); err != nil {
			errCh <- err
		}
	}()

	return stream.NewIterator(out, errCh)
}

func (p *Pipeline) run(ctx context.Context, out chan<- *stream.BlockExtra) error {
	params, maxReorg, err := p.cfg.Params()
	if err != nil {
		return err
	}

	ordered, err := p.orderedRecords(ctx, params, maxReorg)
	if err != nil {
		return err
	}
	logging.L.Info().Int("blocks", len(ordered)).Msg("chain ordered, starting prevout resolution")

	joiner, closeJoiner, err := p.newJoiner(ordered)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeJoiner(); err != nil {
			logging.L.Err(err).Msg("closing prevout joiner")
		}
	}()

	for i, rec := range ordered {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		be, err := buildBlockExtra(rec)
		if err != nil {
			return err
		}
		if i+1 < len(ordered) {
			nextHash := ordered[i+1].Hash
			be.NextBlockHash = &nextHash
		}
		if err := joiner.Join(be); err != nil {
			return err
		}

		if be.Height < p.cfg.StartAtHeight {
			continue
		}
		if p.cfg.StopAtHeight != nil && be.Height > *p.cfg.StopAtHeight {
			break
		}

		select {
		case out <- be:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// orderedRecords drains blockfile.Scan through chainbuilder.Build and
// reorder.Order into a single height-ordered slice of locators (not
// decoded blocks — Record stays cheap per blockfile.Record's FsBlock
// design). Buffering the full locator set here, rather than streaming
// record-by-record into the prevout stage, is what lets DBJoiner's
// two-phase mode replay the ordered chain a second time without re-running
// P1.
func (p *Pipeline) orderedRecords(ctx context.Context, params chainparams.Params, maxReorg uint32) ([]blockfile.Record, error) {
	scanned := make(chan blockfile.Record, p.cfg.ChannelsSize)
	built := make(chan blockfile.Record, p.cfg.ChannelsSize)
	reordered := make(chan blockfile.Record, p.cfg.ChannelsSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := blockfile.Scan(gctx, p.cfg.BlocksDir, params.Magic, blockfile.DefaultMaxWorkers(), scanned); err != nil {
			return fmt.Errorf("blockfile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := chainbuilder.Build(scanned, params.Genesis, maxReorg, built); err != nil {
			return fmt.Errorf("chainbuilder: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := reorder.Order(built, reordered); err != nil {
			return fmt.Errorf("reorder: %w", err)
		}
		return nil
	})

	var ordered []blockfile.Record
	g.Go(func() error {
		for rec := range reordered {
			ordered = append(ordered, rec)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ordered, nil
}

// newJoiner builds the configured prevout.Joiner. For the two-phase
// on-disk mode, it drives Pass1 over the full ordered set and flushes
// before returning, so every Join call the caller makes afterwards reads
// from a fully-populated store.
func (p *Pipeline) newJoiner(ordered []blockfile.Record) (prevout.Joiner, func() error, error) {
	switch {
	case p.cfg.SkipPrevout:
		return prevout.NoopJoiner{}, func() error { return nil }, nil

	case p.cfg.UTXODBPath != "":
		store, err := pebblestore.Open(p.cfg.UTXODBPath)
		if err != nil {
			return nil, nil, err
		}
		joiner := prevout.NewDBJoiner(store)
		for _, rec := range ordered {
			be, err := buildBlockExtra(rec)
			if err != nil {
				store.Close()
				return nil, nil, err
			}
			if err := joiner.Pass1(be); err != nil {
				store.Close()
				return nil, nil, err
			}
		}
		if err := joiner.FlushPass1(); err != nil {
			store.Close()
			return nil, nil, err
		}
		return joiner, joiner.Close, nil

	default:
		joiner := prevout.NewMemJoiner()
		return joiner, joiner.Close, nil
	}
}

// buildBlockExtra decodes rec's block and assembles the stream.BlockExtra
// shell a prevout.Joiner will go on to fill in — height, hash, size and
// tx hashes are all known without a prevout lookup.
func buildBlockExtra(rec blockfile.Record) (*stream.BlockExtra, error) {
	if rec.Height == nil {
		return nil, fmt.Errorf("pipeline: record %s has no assigned height", rec.Hash)
	}
	blk, err := rec.Block()
	if err != nil {
		return nil, err
	}
	msgBlock := blk.MsgBlock()

	txHashes := make([]chainhash.Hash, len(msgBlock.Transactions))
	for i, tx := range msgBlock.Transactions {
		txHashes[i] = tx.TxHash()
	}

	return &stream.BlockExtra{
		Block:     msgBlock,
		Height:    *rec.Height,
		BlockHash: rec.Hash,
		Size:      rec.Length,
		TxHashes:  txHashes,
	}, nil
}
