// Package bcasm assembles bytecode containers for tests and tooling.
package bcasm

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/jac/bytecode"
)

type fixup struct {
	at    int // position of the jump immediate
	width int
	label string
}

// Code assembles one operator body.
type Code struct {
	buf    []byte
	labels map[string]int
	fixups []fixup
}

// NewCode returns an empty operator body.
func NewCode() *Code {
	return &Code{labels: map[string]int{}}
}

// Len returns the current body length.
func (c *Code) Len() int {
	return len(c.buf)
}

// Raw appends bytes verbatim.
func (c *Code) Raw(b ...byte) *Code {
	c.buf = append(c.buf, b...)
	return c
}

// Label binds name to the current position.
func (c *Code) Label(name string) *Code {
	c.labels[name] = len(c.buf)
	return c
}

// Op appends an instruction. Operands follow the opcode's immediate layout
// in order; jump formats must use Jump instead.
func (c *Code) Op(op bytecode.Opcode, operands ...int64) *Code {
	f := op.Format()
	if f.IsJump() {
		panic(fmt.Sprintf("bcasm: %s needs Jump", op))
	}
	c.buf = append(c.buf, byte(op))
	c.operands(op, f, operands)
	return c
}

// Jump appends a jump-carrying instruction targeting label. For the with_*
// family, operands carries the atom and flags around the label.
func (c *Code) Jump(op bytecode.Opcode, label string, operands ...int64) *Code {
	f := op.Format()
	c.buf = append(c.buf, byte(op))
	switch f {
	case bytecode.FmtLabel:
		c.fix(4, label)
	case bytecode.FmtLabel8:
		c.fix(1, label)
	case bytecode.FmtLabel16:
		c.fix(2, label)
	case bytecode.FmtAtomLabelU8:
		c.u32(uint32(arg(operands, 0)))
		c.fix(4, label)
		c.buf = append(c.buf, byte(arg(operands, 1)))
	default:
		panic(fmt.Sprintf("bcasm: %s is not a jump", op))
	}
	return c
}

// JumpDelta appends a jump with an explicit relative delta.
func (c *Code) JumpDelta(op bytecode.Opcode, delta int64) *Code {
	c.buf = append(c.buf, byte(op))
	switch op.Format() {
	case bytecode.FmtLabel:
		c.u32(uint32(int32(delta)))
	case bytecode.FmtLabel8:
		c.buf = append(c.buf, byte(int8(delta)))
	case bytecode.FmtLabel16:
		c.u16(uint16(int16(delta)))
	default:
		panic(fmt.Sprintf("bcasm: %s is not a plain jump", op))
	}
	return c
}

func (c *Code) fix(width int, label string) {
	c.fixups = append(c.fixups, fixup{at: len(c.buf), width: width, label: label})
	c.buf = append(c.buf, make([]byte, width)...)
}

func arg(ops []int64, i int) int64 {
	if i < len(ops) {
		return ops[i]
	}
	return 0
}

func (c *Code) u16(v uint16) {
	c.buf = binary.LittleEndian.AppendUint16(c.buf, v)
}

func (c *Code) u32(v uint32) {
	c.buf = binary.LittleEndian.AppendUint32(c.buf, v)
}

func (c *Code) operands(op bytecode.Opcode, f bytecode.Format, ops []int64) {
	switch f {
	case bytecode.FmtNone, bytecode.FmtImplicit:
	case bytecode.FmtI32, bytecode.FmtConst, bytecode.FmtAtom:
		c.u32(uint32(arg(ops, 0)))
	case bytecode.FmtU8, bytecode.FmtLoc8, bytecode.FmtConst8, bytecode.FmtI8:
		c.buf = append(c.buf, byte(arg(ops, 0)))
	case bytecode.FmtU16, bytecode.FmtNpop, bytecode.FmtLoc, bytecode.FmtArg,
		bytecode.FmtVarRef, bytecode.FmtI16:
		c.u16(uint16(arg(ops, 0)))
	case bytecode.FmtNpopU16:
		c.u16(uint16(arg(ops, 0)))
		c.u16(uint16(arg(ops, 1)))
	case bytecode.FmtAtomU8:
		c.u32(uint32(arg(ops, 0)))
		c.buf = append(c.buf, byte(arg(ops, 1)))
	case bytecode.FmtAtomU16:
		c.u32(uint32(arg(ops, 0)))
		c.u16(uint16(arg(ops, 1)))
	default:
		panic(fmt.Sprintf("bcasm: unhandled format for %s", op))
	}
}

// Bytes resolves labels and returns the encoded body.
func (c *Code) Bytes() []byte {
	out := append([]byte(nil), c.buf...)
	for _, f := range c.fixups {
		target, ok := c.labels[f.label]
		if !ok {
			panic(fmt.Sprintf("bcasm: undefined label %q", f.label))
		}
		delta := int64(target - f.at)
		switch f.width {
		case 1:
			if delta < -128 || delta > 127 {
				panic(fmt.Sprintf("bcasm: label %q out of 8-bit range", f.label))
			}
			out[f.at] = byte(int8(delta))
		case 2:
			binary.LittleEndian.PutUint16(out[f.at:], uint16(int16(delta)))
		default:
			binary.LittleEndian.PutUint32(out[f.at:], uint32(int32(delta)))
		}
	}
	return out
}
