package bytecode

import (
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"

	"fortio.org/safecast"

	"github.com/wippyai/jac/errors"
)

// Reader is a forward-only cursor over a byte slice. Sub-readers created with
// Slice share the parent's memory and report offsets relative to the start of
// the whole container.
type Reader struct {
	data []byte
	base int
	off  int
}

// NewReader creates a reader over data positioned at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the position relative to the start of this reader.
func (r *Reader) Offset() int {
	return r.off
}

// Position returns the absolute position within the container.
func (r *Reader) Position() int {
	return r.base + r.off
}

// Base returns the absolute position of this reader's first byte.
func (r *Reader) Base() int {
	return r.base
}

// Len returns the total number of bytes covered by the reader.
func (r *Reader) Len() int {
	return len(r.data)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Done reports whether every byte has been consumed.
func (r *Reader) Done() bool {
	return r.off >= len(r.data)
}

// Bytes returns the unread bytes without consuming them.
func (r *Reader) Bytes() []byte {
	return r.data[r.off:]
}

// Clone returns an independent cursor over the same bytes and position.
func (r *Reader) Clone() *Reader {
	c := *r
	return &c
}

func (r *Reader) need(n int) error {
	if n < 0 || r.Remaining() < n {
		return errors.UnexpectedEnd(errors.PhaseParse, r.Position(), n, r.Remaining())
	}
	return nil
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// ReadLEB128 reads an unsigned LEB128 value of at most 32 bits.
// On failure the cursor is left where the value started.
func (r *Reader) ReadLEB128() (uint32, error) {
	start := r.off
	var result uint32
	var shift uint
	for {
		if r.off >= len(r.data) {
			want := r.off - start + 1
			r.off = start
			return 0, errors.UnexpectedEnd(errors.PhaseParse, r.base+start, want, len(r.data)-start)
		}
		b := r.data[r.off]
		r.off++
		if shift == 28 && b&0x70 != 0 {
			r.off = start
			return 0, errors.New(errors.PhaseParse, errors.KindOverflow).
				Offset(r.base + start).
				Detail("leb128 value exceeds 32 bits").
				Build()
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 35 {
			r.off = start
			return 0, errors.New(errors.PhaseParse, errors.KindOverflow).
				Offset(r.base + start).
				Detail("leb128 value longer than 5 bytes").
				Build()
		}
	}
}

// ReadSLEB128 reads a zigzag encoded signed value.
func (r *Reader) ReadSLEB128() (int32, error) {
	v, err := r.ReadLEB128()
	if err != nil {
		return 0, err
	}
	return int32(v>>1) ^ -int32(v&1), nil
}

// ReadAtom reads a leb128 atom reference. The low bit marks an integer atom;
// otherwise the remaining bits index the atom table.
func (r *Reader) ReadAtom() (AtomIndex, error) {
	v, err := r.ReadLEB128()
	if err != nil {
		return NoAtom, err
	}
	if v&1 != 0 {
		return TaggedIntAtom(v >> 1), nil
	}
	return AtomIndex(v >> 1), nil
}

// ReadBytes borrows the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

// Slice borrows the next n bytes as an independent sub-reader.
func (r *Reader) Slice(n int) (*Reader, error) {
	start := r.Position()
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return &Reader{data: b, base: start}, nil
}

// SliceLEB reads a leb128 length followed by that many bytes.
func (r *Reader) SliceLEB() (*Reader, error) {
	start := r.off
	n, err := r.ReadLEB128()
	if err != nil {
		return nil, err
	}
	ln, err := safecast.Conv[int](n)
	if err != nil {
		r.off = start
		return nil, errors.InvalidData(errors.PhaseParse, r.base+start, "length does not fit in int")
	}
	sub, err := r.Slice(ln)
	if err != nil {
		r.off = start
		return nil, err
	}
	return sub, nil
}

// ReadString reads a QuickJS serialized string: leb128 (len<<1 | wide) then
// latin1 bytes or UTF-16LE code units. The result is UTF-8.
func (r *Reader) ReadString() (string, error) {
	start := r.off
	v, err := r.ReadLEB128()
	if err != nil {
		return "", err
	}
	n, err := safecast.Conv[int](v >> 1)
	if err != nil {
		r.off = start
		return "", errors.InvalidData(errors.PhaseParse, r.base+start, "string length does not fit in int")
	}
	if v&1 == 0 {
		b, err := r.ReadBytes(n)
		if err != nil {
			r.off = start
			return "", err
		}
		return latin1ToUTF8(b), nil
	}
	b, err := r.ReadBytes(n * 2)
	if err != nil {
		r.off = start
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units)), nil
}

func latin1ToUTF8(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	out := make([]rune, len(b))
	for i, c := range b {
		out[i] = rune(c)
	}
	return string(out)
}
