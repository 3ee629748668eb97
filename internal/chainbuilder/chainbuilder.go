// Package chainbuilder implements ChainBuilder: it consumes the unordered
// bag of (hash, prev_hash) links blockfile.Scan produces, selects the
// canonical tip, assigns a height to every block on the path from genesis
// to that tip, and re-emits the canonical subset (minus the max_reorg
// safety margin) in the arrival order it was received.
package chainbuilder

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blkwalk/blkwalk/internal/blockfile"
	"github.com/blkwalk/blkwalk/internal/errs"
)

// Build accumulates every record from in, then computes the canonical
// chain and sends the canonical, height-stamped subset — up to
// tip_height-maxReorg inclusive — to out in the same order the records
// arrived. It closes out exactly once, whether it returns an error or not.
func Build(in <-chan blockfile.Record, genesis chainhash.Hash, maxReorg uint32, out chan<- blockfile.Record) error {
	defer close(out)

	b := newBuilder(genesis)
	for rec := range in {
		if err := b.add(rec); err != nil {
			return err
		}
	}

	heights, err := b.canonicalHeights(maxReorg)
	if err != nil {
		return err
	}

	for _, rec := range b.arrival {
		h, ok := heights[rec.Hash]
		if !ok {
			continue // orphan, or canonical but withheld by the reorg safety margin
		}
		height := h
		rec.Height = &height
		out <- rec
	}
	return nil
}

type builder struct {
	genesis chainhash.Hash

	arrival  []blockfile.Record
	byHash   map[chainhash.Hash]int // hash -> index into arrival
	children map[chainhash.Hash]map[chainhash.Hash]struct{}
}

func newBuilder(genesis chainhash.Hash) *builder {
	return &builder{
		genesis:  genesis,
		byHash:   make(map[chainhash.Hash]int),
		children: make(map[chainhash.Hash]map[chainhash.Hash]struct{}),
	}
}

func (b *builder) add(rec blockfile.Record) error {
	if idx, ok := b.byHash[rec.Hash]; ok {
		existing := b.arrival[idx]
		if existing.PrevHash != rec.PrevHash {
			return &errs.ChainError{Hash: rec.Hash, Reason: "duplicate block hash with conflicting prev_hash"}
		}
		return nil
	}
	b.byHash[rec.Hash] = len(b.arrival)
	b.arrival = append(b.arrival, rec)

	if b.children[rec.PrevHash] == nil {
		b.children[rec.PrevHash] = make(map[chainhash.Hash]struct{})
	}
	b.children[rec.PrevHash][rec.Hash] = struct{}{}
	return nil
}

// canonicalHeights selects the canonical tip, walks back to genesis, and
// returns the height of every canonical block at or below
// tip_height-maxReorg.
func (b *builder) canonicalHeights(maxReorg uint32) (map[chainhash.Hash]uint32, error) {
	leaves := b.leaves()
	if len(leaves) == 0 {
		return map[chainhash.Hash]uint32{}, nil // empty directory, or no blocks at all
	}

	// The heaviest leaf is the one with the longest known chain behind it,
	// whether or not that chain actually reaches genesis: a shorter leaf
	// that dead-ends before genesis is an abandoned side branch (expected,
	// harmless), but if the *heaviest* leaf dead-ends, the chain that was
	// about to become canonical has a hole in it, which is fatal.
	var tip chainhash.Hash
	var tipPath []chainhash.Hash
	var tipReached bool
	first := true

	for _, leaf := range leaves {
		path, reached := b.walkToGenesis(leaf)
		switch {
		case first:
			tip, tipPath, tipReached, first = leaf, path, reached, false
		case len(path) > len(tipPath):
			tip, tipPath, tipReached = leaf, path, reached
		case len(path) == len(tipPath) && lessHash(leaf, tip):
			tip, tipPath, tipReached = leaf, path, reached
		}
	}

	if !tipReached {
		return nil, &errs.ChainError{
			Hash:   tipPath[len(tipPath)-1],
			Reason: "missing parent in canonical walk",
		}
	}

	tipHeight := uint32(len(tipPath) - 1)
	var safetyCeiling uint32
	if tipHeight >= maxReorg {
		safetyCeiling = tipHeight - maxReorg
	} else {
		return map[chainhash.Hash]uint32{}, nil // every canonical block is within the reorg safety window
	}

	heights := make(map[chainhash.Hash]uint32, len(tipPath))
	// tipPath[0] is the tip, tipPath[len-1] is genesis; height counts up from genesis.
	for i, hash := range tipPath {
		height := tipHeight - uint32(i)
		if height > safetyCeiling {
			continue
		}
		heights[hash] = height
	}
	return heights, nil
}

// leaves returns every known hash with no recorded children, sorted for
// determinism.
func (b *builder) leaves() []chainhash.Hash {
	var out []chainhash.Hash
	for hash := range b.byHash {
		if len(b.children[hash]) == 0 {
			out = append(out, hash)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessHash(out[i], out[j]) })
	return out
}

// walkToGenesis follows prev_hash from leaf back to genesis, returning the
// path from leaf to genesis (inclusive, leaf first) and whether genesis was
// actually reached. On failure the returned path is still valid and its
// last entry is the dangling hash the walk could not find a record for —
// callers comparing candidate weights need the partial length, and error
// reporting needs the hole's location.
func (b *builder) walkToGenesis(leaf chainhash.Hash) ([]chainhash.Hash, bool) {
	path := []chainhash.Hash{leaf}
	cur := leaf
	for cur != b.genesis {
		idx, ok := b.byHash[cur]
		if !ok {
			return path, false
		}
		cur = b.arrival[idx].PrevHash
		path = append(path, cur)
		if len(path) > len(b.arrival)+1 {
			return path, false // defensive: cannot be longer than the total block count
		}
	}
	return path, true
}

// lessHash implements the deterministic tiebreak: numerically smallest
// hash wins, comparing big-endian (the conventional display order).
func lessHash(a, b chainhash.Hash) bool {
	// chainhash stores bytes reversed relative to display order, so the
	// most significant byte is the last one.
	for i := chainhash.HashSize - 1; i >= 0; i-- {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
