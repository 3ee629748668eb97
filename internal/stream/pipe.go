package stream

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// pipeFormatTag identifies the pipe wire format and its version. Any
// change to the payload layout below is a breaking change and must bump
// this tag, per spec.md §9 ("Pipe format is part of the public
// interface").
var pipeFormatTag = [4]byte{'B', 'W', 'E', 1}

// MaxBlockExtraSize bounds a single framed payload, mirroring the original
// pipe.rs's MAX_BLOCK_EXTRA_SIZE guard against a corrupt or hostile
// upstream claiming an enormous length.
const MaxBlockExtraSize = 10 << 20

// WriteBlockExtra serializes be using the self-delimiting
// [total_length u32 LE | payload] framing of spec.md §6 and writes it to w.
func WriteBlockExtra(w io.Writer, be *BlockExtra) error {
	var payload bytes.Buffer
	payload.Write(pipeFormatTag[:])

	var blockBuf bytes.Buffer
	if err := be.Block.Serialize(&blockBuf); err != nil {
		return fmt.Errorf("stream: serialize block: %w", err)
	}
	writeUint32(&payload, uint32(blockBuf.Len()))
	payload.Write(blockBuf.Bytes())

	writeUint32(&payload, be.Height)

	writeUint32(&payload, uint32(len(be.OutpointValues)))
	for op, out := range be.OutpointValues {
		payload.Write(op.Hash[:])
		writeUint32(&payload, op.Index)
		writeInt64(&payload, out.Value)
		writeUint32(&payload, uint32(len(out.PkScript)))
		payload.Write(out.PkScript)
	}

	writeUint32(&payload, uint32(len(be.TxHashes)))
	for _, h := range be.TxHashes {
		payload.Write(h[:])
	}

	if be.NextBlockHash != nil {
		payload.WriteByte(1)
		payload.Write(be.NextBlockHash[:])
	} else {
		payload.WriteByte(0)
	}

	if payload.Len() > MaxBlockExtraSize {
		return fmt.Errorf("stream: payload of %d bytes exceeds MaxBlockExtraSize", payload.Len())
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(payload.Len())); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// ReadBlockExtra reads one framed BlockExtra from r. It returns io.EOF
// (unwrapped, checkable with errors.Is) when r is exhausted cleanly
// between frames, signalling end-of-stream to the companion adapter.
func ReadBlockExtra(r io.Reader) (*BlockExtra, error) {
	var totalLen uint32
	if err := binary.Read(r, binary.LittleEndian, &totalLen); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("stream: read frame length: %w", err)
	}
	if totalLen > MaxBlockExtraSize {
		return nil, fmt.Errorf("stream: frame length %d exceeds MaxBlockExtraSize", totalLen)
	}

	payload := make([]byte, totalLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("stream: read frame payload: %w", err)
	}
	pr := bytes.NewReader(payload)

	var tag [4]byte
	if _, err := io.ReadFull(pr, tag[:]); err != nil {
		return nil, fmt.Errorf("stream: read format tag: %w", err)
	}
	if tag != pipeFormatTag {
		return nil, fmt.Errorf("stream: unrecognized pipe format tag %v", tag)
	}

	blockLen, err := readUint32(pr)
	if err != nil {
		return nil, err
	}
	blockBuf := make([]byte, blockLen)
	if _, err := io.ReadFull(pr, blockBuf); err != nil {
		return nil, fmt.Errorf("stream: read block bytes: %w", err)
	}
	blk, err := btcutil.NewBlockFromBytes(blockBuf)
	if err != nil {
		return nil, fmt.Errorf("stream: decode block: %w", err)
	}

	height, err := readUint32(pr)
	if err != nil {
		return nil, err
	}

	outpointCount, err := readUint32(pr)
	if err != nil {
		return nil, err
	}
	outpointValues := make(map[wire.OutPoint]wire.TxOut, outpointCount)
	for i := uint32(0); i < outpointCount; i++ {
		var op wire.OutPoint
		if _, err := io.ReadFull(pr, op.Hash[:]); err != nil {
			return nil, fmt.Errorf("stream: read outpoint hash: %w", err)
		}
		index, err := readUint32(pr)
		if err != nil {
			return nil, err
		}
		op.Index = index
		value, err := readInt64(pr)
		if err != nil {
			return nil, err
		}
		scriptLen, err := readUint32(pr)
		if err != nil {
			return nil, err
		}
		script := make([]byte, scriptLen)
		if _, err := io.ReadFull(pr, script); err != nil {
			return nil, fmt.Errorf("stream: read pkscript: %w", err)
		}
		outpointValues[op] = wire.TxOut{Value: value, PkScript: script}
	}

	txCount, err := readUint32(pr)
	if err != nil {
		return nil, err
	}
	txHashes := make([]chainhash.Hash, txCount)
	for i := range txHashes {
		if _, err := io.ReadFull(pr, txHashes[i][:]); err != nil {
			return nil, fmt.Errorf("stream: read txid: %w", err)
		}
	}

	hasNext, err := pr.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("stream: read next_block_hash flag: %w", err)
	}
	var nextHash *chainhash.Hash
	if hasNext == 1 {
		var h chainhash.Hash
		if _, err := io.ReadFull(pr, h[:]); err != nil {
			return nil, fmt.Errorf("stream: read next_block_hash: %w", err)
		}
		nextHash = &h
	}

	return &BlockExtra{
		Block:          blk.MsgBlock(),
		Height:         height,
		BlockHash:      *blk.Hash(),
		Size:           uint32(blockLen),
		TxHashes:       txHashes,
		OutpointValues: outpointValues,
		NextBlockHash:  nextHash,
	}, nil
}

func writeUint32(w *bytes.Buffer, v uint32) { binary.Write(w, binary.LittleEndian, v) }
func writeInt64(w *bytes.Buffer, v int64)   { binary.Write(w, binary.LittleEndian, v) }

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readInt64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
