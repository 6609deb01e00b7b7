package comm

import (
	"math"

	"github.com/DataDog/zstd"

	"github.com/mansfield-lab/mdcomm/lib/errs"
)

// bufFactor and bufExtra mirror the grounding source's growth policy: every
// resize overshoots the immediate need by 50%, plus a fixed slush for the
// small per-message overhead that tends to creep in right after a resize.
const (
	bufFactor = 1.5
	bufExtra  = 1000
)

// growCapacity returns the new capacity to allocate when at least needed
// bytes must fit.
func growCapacity(needed int) int {
	return int(math.Ceil(bufFactor*float64(needed))) + bufExtra
}

// Buffer is a byte buffer that only ever grows, following the teacher's
// capacity-probing append pattern: Ensure never shrinks the underlying
// array, so buffers reused across many swaps in a single timestep settle at
// their steady-state size after the first few calls instead of thrashing.
type Buffer struct {
	b []byte
	// compress, above compressThreshold bytes, runs payloads through zstd
	// before handing them to the transport; large border/exchange
	// messages are the case this pays for, not the small forward-comm
	// messages that dominate a typical run.
	compress          bool
	compressThreshold int
}

// NewBuffer creates an empty growable buffer. Set compress to enable zstd
// wrapping of payloads at or above threshold bytes.
func NewBuffer(compress bool, threshold int) *Buffer {
	return &Buffer{compress: compress, compressThreshold: threshold}
}

// Ensure grows the buffer, if needed, so its first n bytes are addressable,
// and returns that n-byte slice. Existing bytes below n are preserved.
func (buf *Buffer) Ensure(n int) []byte {
	if cap(buf.b) >= n {
		buf.b = buf.b[:n]
		return buf.b
	}
	grown := make([]byte, n, growCapacity(n))
	copy(grown, buf.b)
	buf.b = grown
	return buf.b
}

// Bytes returns the buffer's current contents.
func (buf *Buffer) Bytes() []byte { return buf.b }

// Encode compresses payload with zstd if compression is enabled and
// payload is at or above the configured threshold, prefixing a one-byte
// flag so Decode knows which path was taken. If compression is off or the
// payload is small, payload is returned unmodified (still flag-prefixed) to
// keep the wire format uniform.
func (buf *Buffer) Encode(payload []byte) ([]byte, error) {
	if !buf.compress || len(payload) < buf.compressThreshold {
		out := make([]byte, 1+len(payload))
		out[0] = 0
		copy(out[1:], payload)
		return out, nil
	}
	compressed, err := zstd.Compress(nil, payload)
	if err != nil {
		return nil, errs.NewLocal(errs.Capacity, "zstd compression failed: %v", err)
	}
	out := make([]byte, 1+len(compressed))
	out[0] = 1
	copy(out[1:], compressed)
	return out, nil
}

// Decode reverses Encode.
func (buf *Buffer) Decode(wire []byte) ([]byte, error) {
	if len(wire) == 0 {
		return nil, nil
	}
	flag, payload := wire[0], wire[1:]
	if flag == 0 {
		return payload, nil
	}
	out, err := zstd.Decompress(nil, payload)
	if err != nil {
		return nil, errs.NewLocal(errs.Capacity, "zstd decompression failed: %v", err)
	}
	return out, nil
}
