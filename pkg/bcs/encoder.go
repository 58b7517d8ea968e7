// Package bcs implements the subset of Binary Canonical Serialization
// needed to produce IOTA transaction bytes.
package bcs

import (
	"encoding/binary"
)

// Encoder appends BCS encoded values to an internal buffer.
// The zero value is ready to use.
type Encoder struct {
	buf []byte
}

func NewEncoder(capacity int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded data. The slice aliases the encoder buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

// ULEB128 writes v as an unsigned LEB128 varint, the BCS encoding for
// sequence lengths and enum variant indexes.
func (e *Encoder) ULEB128(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

func (e *Encoder) U8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) U16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) U64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
		return
	}
	e.buf = append(e.buf, 0)
}

// Variant writes an enum variant index.
func (e *Encoder) Variant(idx uint32) {
	e.ULEB128(uint64(idx))
}

// FixedBytes writes b as is, without a length prefix.
func (e *Encoder) FixedBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// ByteVector writes a length prefixed byte vector.
func (e *Encoder) ByteVector(b []byte) {
	e.ULEB128(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *Encoder) String(s string) {
	e.ULEB128(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// Seq writes the length of a sequence of n elements and then calls fn for each index.
func (e *Encoder) Seq(n int, fn func(e *Encoder, i int)) {
	e.ULEB128(uint64(n))
	for i := 0; i < n; i++ {
		fn(e, i)
	}
}

// EncodeString returns the BCS encoding of s.
func EncodeString(s string) []byte {
	var e Encoder
	e.String(s)
	return e.Bytes()
}

func EncodeU64(v uint64) []byte {
	var e Encoder
	e.U64(v)
	return e.Bytes()
}
