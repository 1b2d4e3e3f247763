// Package tl is the TL wire codec of spec.md §4.1: a length-prefixed,
// word-aligned, little-endian serializer/deserializer, plus the small set
// of concrete TL objects the protocol engine itself needs to speak
// (handshake, query envelope, update-consistency headers). Everything
// else stays an opaque Unparsed payload per spec.md §1's scope line on
// "high-level chat/user/message domain types."
package tl

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"math/big"

	"github.com/ansel1/merry/v2"
)

// secureRandom returns n cryptographically random bytes, panicking only if
// the OS CSPRNG itself is unavailable (the same failure mode crypto/rand
// documents as unrecoverable).
func secureRandom(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(merry.Wrap(err))
	}
	return b
}

// Encoder builds a TL byte stream. Every write keeps the buffer a multiple
// of 4 bytes, matching spec.md's "operating on 32-bit word buffers."
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with sizeHint bytes pre-allocated.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated wire bytes.
func (e *Encoder) Bytes() []byte { return e.buf }

// I32Size reports the buffer length in 32-bit words.
func (e *Encoder) I32Size() int { return len(e.buf) / 4 }

// CharSize reports the buffer length in bytes.
func (e *Encoder) CharSize() int { return len(e.buf) }

func (e *Encoder) OutI32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) OutUInt32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) OutI64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) OutDouble(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
}

// OutBytes writes raw bytes with no length prefix and no padding. Used for
// fixed-size fields (nonces, msg_key) whose size is already a multiple of 4
// or is handled by the caller.
func (e *Encoder) OutBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// OutString writes a length-prefixed, zero-padded byte string per spec.md
// §4.1: sizes below 0xfe get a 1-byte length, else a 0xfe marker plus a
// 3-byte little-endian length, then the payload, then zero padding to the
// next multiple of 4.
func (e *Encoder) OutString(data []byte) {
	size := len(data)
	if size < 0xfe {
		e.buf = append(e.buf, byte(size))
	} else {
		e.buf = append(e.buf, 0xfe, byte(size), byte(size>>8), byte(size>>16))
	}
	e.buf = append(e.buf, data...)
	total := size + 1
	if size >= 0xfe {
		total = size + 4
	}
	pad := (4 - total%4) % 4
	for i := 0; i < pad; i++ {
		e.buf = append(e.buf, 0)
	}
}

// OutBignum writes a big-endian bignum with leading zero bytes stripped,
// framed as a string per spec.md §4.1.
func (e *Encoder) OutBignum(n *big.Int) {
	b := n.Bytes()
	// big.Int.Bytes() already strips leading zeros.
	e.OutString(b)
}

// OutRandom appends n cryptographically random bytes with no length
// prefix (callers that need length-prefixed random padding use OutString
// directly).
func (e *Encoder) OutRandom(n int) {
	e.OutBytes(secureRandom(n))
}

// ReserveI32s reserves num 32-bit words for later patching and returns the
// byte offset at which they start.
func (e *Encoder) ReserveI32s(num int) int {
	offset := len(e.buf)
	e.buf = append(e.buf, make([]byte, num*4)...)
	return offset
}

// OutI32sAt overwrites num words starting at the byte offset returned by a
// prior ReserveI32s call.
func (e *Encoder) OutI32sAt(offset int, ints []int32) error {
	if offset < 0 || offset+len(ints)*4 > len(e.buf) {
		return merry.Errorf("OutI32sAt: offset %d + %d words out of range (buf len %d)", offset, len(ints), len(e.buf))
	}
	for i, v := range ints {
		binary.LittleEndian.PutUint32(e.buf[offset+i*4:], uint32(v))
	}
	return nil
}
