package pebblestore

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// encodeTxOut serializes a TxOut as [value int64 LE][pkscript_len u32 LE]
// [pkscript], the same fixed-header-plus-trailing-bytes shape as the
// teacher's ValOut.
func encodeTxOut(out wire.TxOut) []byte {
	buf := make([]byte, 8+4+len(out.PkScript))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(out.Value))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(out.PkScript)))
	copy(buf[12:], out.PkScript)
	return buf
}

func decodeTxOut(v []byte) (wire.TxOut, error) {
	if len(v) < 12 {
		return wire.TxOut{}, fmt.Errorf("pebblestore: value too short: %d bytes", len(v))
	}
	value := int64(binary.LittleEndian.Uint64(v[0:8]))
	scriptLen := binary.LittleEndian.Uint32(v[8:12])
	if uint32(len(v)-12) != scriptLen {
		return wire.TxOut{}, fmt.Errorf("pebblestore: pkscript length mismatch: want %d, have %d", scriptLen, len(v)-12)
	}
	var pkScript []byte
	if scriptLen > 0 {
		pkScript = make([]byte, scriptLen)
		copy(pkScript, v[12:])
	}
	return wire.TxOut{Value: value, PkScript: pkScript}, nil
}

// encodeTxOutList serializes an ordered list of TxOuts as [count u32 LE]
// followed by each entry's encodeTxOut form back to back; each entry's own
// header carries its length, so no extra framing is needed between entries.
// Used to persist a block's resolved prevouts under a single height key.
func encodeTxOutList(outs []wire.TxOut) []byte {
	buf := make([]byte, 4, 4+12*len(outs))
	binary.LittleEndian.PutUint32(buf, uint32(len(outs)))
	for _, out := range outs {
		buf = append(buf, encodeTxOut(out)...)
	}
	return buf
}

func decodeTxOutList(v []byte) ([]wire.TxOut, error) {
	if len(v) < 4 {
		return nil, fmt.Errorf("pebblestore: txout list too short: %d bytes", len(v))
	}
	count := binary.LittleEndian.Uint32(v[0:4])
	v = v[4:]

	outs := make([]wire.TxOut, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(v) < 12 {
			return nil, fmt.Errorf("pebblestore: txout list truncated at entry %d", i)
		}
		scriptLen := binary.LittleEndian.Uint32(v[8:12])
		recLen := 12 + int(scriptLen)
		if len(v) < recLen {
			return nil, fmt.Errorf("pebblestore: txout list truncated at entry %d", i)
		}
		out, err := decodeTxOut(v[:recLen])
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
		v = v[recLen:]
	}
	return outs, nil
}
