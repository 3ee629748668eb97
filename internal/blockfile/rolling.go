package blockfile

// rollingMagic is a 4-byte sliding window over a byte stream, used to scan
// forward for the network magic marker without re-slicing a buffer on
// every byte. Pushing a byte shifts the previous three down into the low
// bytes, drops the oldest, and places the new byte in the high byte.
type rollingMagic uint32

func (r *rollingMagic) push(b byte) {
	*r >>= 8
	*r |= rollingMagic(b) << 24
}
