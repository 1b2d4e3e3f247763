package tl

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/ansel1/merry/v2"
)

// Decoder reads a TL byte stream. Every Fetch* method is the mirror of the
// matching Encoder method; this is the same shape as the teacher's
// DecodeBuf in tl_decode.go, generalized to feed the Object registry
// instead of a generated tl_schema.go.
type Decoder struct {
	buf []byte
	off int
	err error
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Err returns the first error encountered, if any. Every Fetch* call is a
// no-op once Err is non-nil, so callers can chain fetches and check Err
// once at the end.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if d.off+n > len(d.buf) {
		d.fail(merry.Errorf("tl: need %d bytes at offset %d, have %d", n, d.off, len(d.buf)))
		return false
	}
	return true
}

func (d *Decoder) FetchI32() int32 {
	if !d.need(4) {
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(d.buf[d.off:]))
	d.off += 4
	return v
}

func (d *Decoder) FetchUInt32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

func (d *Decoder) FetchI64() int64 {
	if !d.need(8) {
		return 0
	}
	v := int64(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v
}

func (d *Decoder) FetchDouble() float64 {
	if !d.need(8) {
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v
}

// FetchBytes reads exactly n raw bytes with no length prefix.
func (d *Decoder) FetchBytes(n int) []byte {
	if !d.need(n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, d.buf[d.off:d.off+n])
	d.off += n
	return b
}

// FetchString reads a length-prefixed, zero-padded byte string per
// spec.md §4.1 / the teacher's StringBytes.
func (d *Decoder) FetchString() []byte {
	if !d.need(1) {
		return nil
	}
	size := int(d.buf[d.off])
	d.off++
	padding := (4 - ((size + 1) % 4)) % 4
	if size == 0xfe {
		if !d.need(3) {
			return nil
		}
		size = int(d.buf[d.off]) | int(d.buf[d.off+1])<<8 | int(d.buf[d.off+2])<<16
		d.off += 3
		padding = (4 - size%4) % 4
	}
	if !d.need(size) {
		return nil
	}
	b := make([]byte, size)
	copy(b, d.buf[d.off:d.off+size])
	d.off += size
	if !d.need(padding) {
		return nil
	}
	d.off += padding
	return b
}

// FetchBignum reads a string-framed big-endian bignum.
func (d *Decoder) FetchBignum() *big.Int {
	b := d.FetchString()
	if d.err != nil {
		return nil
	}
	return new(big.Int).SetBytes(b)
}

// FetchVectorLong reads a bare `vector long` (CRC_vector-prefixed array of
// int64), the shape pts/qts difference responses and msgs_ack both use.
func (d *Decoder) FetchVectorLong() []int64 {
	ctor := d.FetchUInt32()
	if d.err != nil {
		return nil
	}
	if ctor != CRCVector {
		d.fail(merry.Errorf("tl: expected vector constructor, got 0x%08x", ctor))
		return nil
	}
	n := d.FetchI32()
	if d.err != nil || n < 0 {
		return nil
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = d.FetchI64()
		if d.err != nil {
			return nil
		}
	}
	return out
}

// FetchVectorInt mirrors FetchVectorLong for int32 elements.
func (d *Decoder) FetchVectorInt() []int32 {
	ctor := d.FetchUInt32()
	if d.err != nil {
		return nil
	}
	if ctor != CRCVector {
		d.fail(merry.Errorf("tl: expected vector constructor, got 0x%08x", ctor))
		return nil
	}
	n := d.FetchI32()
	if d.err != nil || n < 0 {
		return nil
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = d.FetchI32()
		if d.err != nil {
			return nil
		}
	}
	return out
}

// PeekConstructor reads the next 4-byte constructor tag without consuming
// it, used by callers that need to branch before committing to a full
// Object() decode (e.g. rpc_error vs. a real result).
func (d *Decoder) PeekConstructor() uint32 {
	if d.off+4 > len(d.buf) {
		return 0
	}
	return binary.LittleEndian.Uint32(d.buf[d.off:])
}
