package blockfile

import (
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Record is spec.md's BlockRecord: the output of Scan before ChainBuilder
// has assigned a height. It stores a (file, offset, length) locator rather
// than the decoded block, mirroring the original Rust FsBlock design, so
// that Reorder's out-of-order buffer stays cheap regardless of how far
// ahead of height order ReadDetect happens to run.
type Record struct {
	Hash     chainhash.Hash
	PrevHash chainhash.Hash

	FilePath string
	Offset   int64
	Length   uint32

	// Height is assigned by chainbuilder; nil until then.
	Height *uint32
}

// Bytes re-reads the raw consensus-encoded block from disk. It is called
// at most twice per record in the two-phase PrevoutJoiner mode and once
// otherwise, so paying for a fresh os.Open here is preferable to holding
// every in-flight block's bytes in memory across the reorder buffer.
func (r *Record) Bytes() ([]byte, error) {
	f, err := os.Open(r.FilePath)
	if err != nil {
		return nil, fmt.Errorf("blockfile: open %s: %w", r.FilePath, err)
	}
	defer f.Close()

	if _, err := f.Seek(r.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("blockfile: seek %s@%d: %w", r.FilePath, r.Offset, err)
	}

	buf := make([]byte, r.Length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("blockfile: read %s@%d len=%d: %w", r.FilePath, r.Offset, r.Length, err)
	}
	return buf, nil
}

// Block re-parses the full consensus-encoded block, header, transactions
// and witnesses included.
func (r *Record) Block() (*btcutil.Block, error) {
	raw, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	blk, err := btcutil.NewBlockFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("blockfile: decode %s@%d: %w", r.FilePath, r.Offset, err)
	}
	return blk, nil
}
