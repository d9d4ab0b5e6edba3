package bytecode

import (
	"math"
	"strconv"
)

// Entity index types keep the index spaces apart at the type level.
// The all-ones value is the sentinel for "no index".
type (
	// AtomIndex identifies an interned name in a container's atom table.
	AtomIndex uint32
	// LocalIndex identifies a function argument or variable slot.
	LocalIndex uint32
	// ClosureVarIndex identifies a captured variable of the current function.
	ClosureVarIndex uint32
	// FuncIndex identifies a function definition within one container.
	FuncIndex uint32
	// ConstantPoolIndex identifies an entry of a function's constant pool.
	ConstantPoolIndex uint32
)

const (
	NoAtom      AtomIndex         = math.MaxUint32
	NoLocal     LocalIndex        = math.MaxUint32
	NoClosure   ClosureVarIndex   = math.MaxUint32
	NoFunc      FuncIndex         = math.MaxUint32
	NoConstant  ConstantPoolIndex = math.MaxUint32
	taggedIntAt                   = 1 << 31
)

// IsTaggedInt reports whether the atom encodes an integer directly.
func (a AtomIndex) IsTaggedInt() bool {
	return a != NoAtom && a&taggedIntAt != 0
}

// Int returns the integer carried by a tagged integer atom.
func (a AtomIndex) Int() uint32 {
	return uint32(a &^ taggedIntAt)
}

// TaggedIntAtom returns the atom encoding the integer v.
func TaggedIntAtom(v uint32) AtomIndex {
	return AtomIndex(v | taggedIntAt)
}

func (f FuncIndex) String() string {
	if f == NoFunc {
		return "func#none"
	}
	return "func#" + strconv.FormatUint(uint64(f), 10)
}
