// Package blockfile implements ReadDetect: it walks a directory of
// blocks*.dat files and emits every syntactically valid block record it
// finds, in whatever order file enumeration and intra-file position give
// it. It does not interpret the chain — that is chainbuilder's job.
package blockfile

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/setavenger/blindbit-lib/logging"

	"github.com/blkwalk/blkwalk/internal/errs"
	"github.com/blkwalk/blkwalk/internal/periodic"
)

// DefaultMaxWorkers bounds the number of files scanned concurrently,
// following the teacher's config.MaxCPUCores convention of leaving
// headroom for the rest of the process (runtime.NumCPU() - 2, floored at 1).
func DefaultMaxWorkers() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// countingReader wraps an io.Reader and tracks the number of bytes
// consumed through it, standing in for Rust's Seek::stream_position in a
// plain io.Reader-based Go decode path.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// seen deduplicates blocks across files using the first 12 bytes of the
// hash, trading a small collision risk for under half the memory of storing the
// full 32-byte hash per entry — the same trade the original's Seen type
// makes.
type seen struct {
	mu sync.Mutex
	m  map[[12]byte]struct{}
}

func newSeen() *seen { return &seen{m: make(map[[12]byte]struct{})} }

func (s *seen) insert(h [32]byte) bool {
	var key [12]byte
	copy(key[:], h[:12])
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; ok {
		return false
	}
	s.m[key] = struct{}{}
	return true
}

// Scan enumerates blocks*.dat under dir, scans each file for magic-framed
// records in parallel (bounded by maxWorkers), and sends every valid,
// not-yet-seen Record to out. It closes out when every file has been
// scanned or ctx is cancelled. Per-record decode failures are logged and
// skipped; they never abort the scan.
func Scan(ctx context.Context, dir string, magic [4]byte, maxWorkers int, out chan<- Record) error {
	pattern := filepath.Join(dir, "blocks*.dat")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return &errs.IOError{Path: pattern, Err: err}
	}
	sort.Strings(paths)
	logging.L.Info().Str("dir", dir).Int("files", len(paths)).Msg("blockfile: starting scan")

	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers()
	}
	magicU32 := binary.LittleEndian.Uint32(magic[:])

	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	dedup := newSeen()
	tick := periodic.NewTicker(60 * time.Second)
	var scannedFiles int64

	defer close(out)

	for _, path := range paths {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		path := path
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			records, err := scanFile(path, magicU32)
			if err != nil {
				logging.L.Warn().Str("file", path).Err(err).Msg("blockfile: skipping unreadable file")
				return
			}

			sent := 0
			for _, rec := range records {
				if !dedup.insert(rec.Hash) {
					continue
				}
				select {
				case out <- rec:
					sent++
				case <-ctx.Done():
					return
				}
			}

			done := atomic.AddInt64(&scannedFiles, 1)
			if tick.Elapsed() {
				logging.L.Debug().Str("file", path).Int("records", sent).
					Int64("files_scanned", done).Int("files_total", len(paths)).
					Msg("blockfile: progress")
			}
		}()
	}

	wg.Wait()
	logging.L.Info().Msg("blockfile: scan complete")
	return nil
}

// scanFile implements the per-file detect() algorithm: scan for magic with
// a rolling window, read the declared length, decode a header and its
// transactions, and keep the record only if the bytes consumed match the
// declared length exactly.
func scanFile(path string, magicU32 uint32) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IOError{Path: path, Err: err}
	}
	defer f.Close()

	cr := &countingReader{r: bufio.NewReaderSize(f, 1<<20)}
	var rolling rollingMagic
	var records []Record
	var b [1]byte

	for {
		n, rerr := cr.Read(b[:])
		if n == 0 {
			if rerr != nil {
				break
			}
			continue
		}
		rolling.push(b[0])
		if uint32(rolling) != magicU32 {
			continue
		}

		var lenBuf [4]byte
		if _, err := io.ReadFull(cr, lenBuf[:]); err != nil {
			// Truncated tail right where a new record should start.
			break
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		start := cr.n

		if rec, ok := decodeRecord(cr, path, start, length); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func decodeRecord(cr *countingReader, path string, start int64, length uint32) (Record, bool) {
	var header wire.BlockHeader
	if err := header.Deserialize(cr); err != nil {
		decErr := &errs.DecodeError{Path: path, Offset: start, Reason: "malformed header", Err: err}
		logging.L.Warn().Err(decErr).Msg("blockfile: skipping record")
		return Record{}, false
	}

	txCount, err := wire.ReadVarInt(cr, 0)
	if err != nil {
		decErr := &errs.DecodeError{Path: path, Offset: start, Reason: "malformed tx count", Err: err}
		logging.L.Warn().Err(decErr).Msg("blockfile: skipping record")
		return Record{}, false
	}

	for i := uint64(0); i < txCount; i++ {
		var tx wire.MsgTx
		if err := tx.Deserialize(cr); err != nil {
			decErr := &errs.DecodeError{Path: path, Offset: start, Reason: "malformed transaction", Err: err}
			logging.L.Warn().Err(decErr).Msg("blockfile: skipping record")
			return Record{}, false
		}
	}

	end := cr.n
	if uint32(end-start) != length {
		decErr := &errs.DecodeError{
			Path:   path,
			Offset: start,
			Reason: fmt.Sprintf("declared length mismatch: want %d, have %d", length, end-start),
		}
		logging.L.Warn().Err(decErr).Msg("blockfile: skipping record")
		return Record{}, false
	}

	return Record{
		Hash:     header.BlockHash(),
		PrevHash: header.PrevBlock,
		FilePath: path,
		Offset:   start,
		Length:   length,
	}, true
}
