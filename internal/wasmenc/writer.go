package wasmenc

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Writer accumulates bytes in the WebAssembly binary encoding.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// Raw writes data unchanged.
func (w *Writer) Raw(data []byte) {
	w.buf.Write(data)
}

// U32 writes an unsigned LEB128 uint32.
func (w *Writer) U32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// S32 writes a signed LEB128 int32.
func (w *Writer) S32(v int32) {
	w.S64(int64(v))
}

// S64 writes a signed LEB128 int64.
func (w *Writer) S64(v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.buf.WriteByte(b)
			return
		}
		w.buf.WriteByte(b | 0x80)
	}
}

// F64 writes a little-endian IEEE 754 double.
func (w *Writer) F64(f float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	w.buf.Write(b[:])
}

// U32LE writes a fixed-width little-endian uint32.
func (w *Writer) U32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Name writes a length-prefixed UTF-8 name.
func (w *Writer) Name(s string) {
	w.U32(uint32(len(s)))
	w.buf.WriteString(s)
}

// Vec writes a length-prefixed byte vector.
func (w *Writer) Vec(data []byte) {
	w.U32(uint32(len(data)))
	w.buf.Write(data)
}
