package bytecode

import (
	"math"

	"fortio.org/safecast"

	"github.com/wippyai/jac/errors"
)

// Instruction is one decoded operator. Only the fields named by the opcode's
// format are meaningful; index fields default to their sentinel.
type Instruction struct {
	PC     uint32 // offset of the opcode byte within the operator body
	Op     Opcode
	Value  int32 // literal operand, eval scope
	Atom   AtomIndex
	Local  LocalIndex // variable or argument slot
	VarRef ClosureVarIndex
	Const  ConstantPoolIndex
	Argc   uint16
	Target uint32 // absolute jump target within the operator body
	Flags  uint16 // raw u8/u16 operand
}

// End returns the offset of the instruction following this one.
func (i Instruction) End() uint32 {
	return i.PC + uint32(i.Op.Size())
}

func (i Instruction) String() string {
	return i.Op.String()
}

// canonical maps each short form onto its long form.
var canonical = func() [256]Opcode {
	var c [256]Opcode
	for i := range c {
		c[i] = Opcode(i)
	}
	for _, o := range []Opcode{OpPushMinus1, OpPush0, OpPush1, OpPush2, OpPush3,
		OpPush4, OpPush5, OpPush6, OpPush7, OpPushI8, OpPushI16} {
		c[o] = OpPushI32
	}
	c[OpPushConst8] = OpPushConst
	c[OpFClosure8] = OpFClosure
	for _, o := range []Opcode{OpGetLoc8, OpGetLoc0, OpGetLoc1, OpGetLoc2, OpGetLoc3} {
		c[o] = OpGetLoc
	}
	for _, o := range []Opcode{OpPutLoc8, OpPutLoc0, OpPutLoc1, OpPutLoc2, OpPutLoc3} {
		c[o] = OpPutLoc
	}
	for _, o := range []Opcode{OpSetLoc8, OpSetLoc0, OpSetLoc1, OpSetLoc2, OpSetLoc3} {
		c[o] = OpSetLoc
	}
	for k := Opcode(0); k < 4; k++ {
		c[OpGetArg0+k] = OpGetArg
		c[OpPutArg0+k] = OpPutArg
		c[OpSetArg0+k] = OpSetArg
		c[OpGetVarRef0+k] = OpGetVarRef
		c[OpPutVarRef0+k] = OpPutVarRef
		c[OpSetVarRef0+k] = OpSetVarRef
		c[OpCall0+k] = OpCall
	}
	c[OpIfFalse8] = OpIfFalse
	c[OpIfTrue8] = OpIfTrue
	c[OpGoTo8] = OpGoTo
	c[OpGoTo16] = OpGoTo
	return c
}()

// Canonical returns the long form of a short-form instruction. Operands are
// already decoded into the same fields, so only the opcode changes.
func (i Instruction) Canonical() Instruction {
	i.Op = canonical[i.Op]
	return i
}

// StackEffect returns how many values the instruction pops and pushes.
func (i Instruction) StackEffect() (pops, pushes int) {
	info := opTable[i.Op]
	pops = info.pops
	switch info.format {
	case FmtNpop, FmtNpopU16:
		pops += int(i.Argc)
	case FmtImplicit:
		if canonical[i.Op] == OpCall {
			pops += int(i.Argc)
		}
	}
	return pops, info.pushes
}

// Decode reads one instruction from r, which must be positioned at an
// instruction boundary of an operator body. On failure r is not advanced.
func Decode(r *Reader) (Instruction, error) {
	start := r.off
	inst, err := decode(r)
	if err != nil {
		r.off = start
		return Instruction{}, asDecodeError(err)
	}
	return inst, nil
}

func decode(r *Reader) (Instruction, error) {
	pc, err := safecast.Conv[uint32](r.Offset())
	if err != nil {
		return Instruction{}, errors.InvalidData(errors.PhaseDecode, r.Position(), "program counter overflows u32")
	}
	opPos := r.Position()
	b, err := r.ReadU8()
	if err != nil {
		return Instruction{}, err
	}
	o := Opcode(b)
	info := opTable[o]
	if !info.valid {
		return Instruction{}, errors.UnsupportedOpcode(errors.PhaseDecode, opPos, b, o.String())
	}

	inst := Instruction{
		PC:     pc,
		Op:     o,
		Atom:   NoAtom,
		Local:  NoLocal,
		VarRef: NoClosure,
		Const:  NoConstant,
	}

	switch info.format {
	case FmtNone:
	case FmtI32:
		v, err := r.ReadU32()
		if err != nil {
			return inst, err
		}
		inst.Value = int32(v)
	case FmtConst:
		v, err := r.ReadU32()
		if err != nil {
			return inst, err
		}
		inst.Const = ConstantPoolIndex(v)
	case FmtAtom:
		v, err := r.ReadU32()
		if err != nil {
			return inst, err
		}
		inst.Atom = AtomIndex(v)
	case FmtU8:
		v, err := r.ReadU8()
		if err != nil {
			return inst, err
		}
		inst.Flags = uint16(v)
	case FmtU16:
		v, err := r.ReadU16()
		if err != nil {
			return inst, err
		}
		inst.Flags = v
		if o == OpApplyEval {
			inst.Value = int32(v) - 1
		}
	case FmtNpop:
		v, err := r.ReadU16()
		if err != nil {
			return inst, err
		}
		inst.Argc = v
	case FmtNpopU16:
		argc, err := r.ReadU16()
		if err != nil {
			return inst, err
		}
		scope, err := r.ReadU16()
		if err != nil {
			return inst, err
		}
		inst.Argc = argc
		inst.Value = int32(scope) - 1
	case FmtAtomU8:
		a, err := r.ReadU32()
		if err != nil {
			return inst, err
		}
		f, err := r.ReadU8()
		if err != nil {
			return inst, err
		}
		inst.Atom = AtomIndex(a)
		inst.Flags = uint16(f)
	case FmtAtomU16:
		a, err := r.ReadU32()
		if err != nil {
			return inst, err
		}
		idx, err := r.ReadU16()
		if err != nil {
			return inst, err
		}
		inst.Atom = AtomIndex(a)
		if o == OpMakeVarRefRef {
			inst.VarRef = ClosureVarIndex(idx)
		} else {
			inst.Local = LocalIndex(idx)
		}
	case FmtLoc, FmtArg:
		v, err := r.ReadU16()
		if err != nil {
			return inst, err
		}
		inst.Local = LocalIndex(v)
	case FmtVarRef:
		v, err := r.ReadU16()
		if err != nil {
			return inst, err
		}
		inst.VarRef = ClosureVarIndex(v)
	case FmtLabel:
		if inst.Target, err = readJump(r, 4); err != nil {
			return inst, err
		}
	case FmtAtomLabelU8:
		a, err := r.ReadU32()
		if err != nil {
			return inst, err
		}
		inst.Atom = AtomIndex(a)
		if inst.Target, err = readJump(r, 4); err != nil {
			return inst, err
		}
		f, err := r.ReadU8()
		if err != nil {
			return inst, err
		}
		inst.Flags = uint16(f)
	case FmtLoc8:
		v, err := r.ReadU8()
		if err != nil {
			return inst, err
		}
		inst.Local = LocalIndex(v)
	case FmtConst8:
		v, err := r.ReadU8()
		if err != nil {
			return inst, err
		}
		inst.Const = ConstantPoolIndex(v)
	case FmtI8:
		v, err := r.ReadU8()
		if err != nil {
			return inst, err
		}
		inst.Value = int32(int8(v))
	case FmtI16:
		v, err := r.ReadU16()
		if err != nil {
			return inst, err
		}
		inst.Value = int32(int16(v))
	case FmtLabel8:
		if inst.Target, err = readJump(r, 1); err != nil {
			return inst, err
		}
	case FmtLabel16:
		if inst.Target, err = readJump(r, 2); err != nil {
			return inst, err
		}
	case FmtImplicit:
		decodeImplicit(&inst, info.implicit)
	}
	return inst, nil
}

func decodeImplicit(inst *Instruction, v int32) {
	switch canonical[inst.Op] {
	case OpPushI32:
		inst.Value = v
	case OpGetLoc, OpPutLoc, OpSetLoc, OpGetArg, OpPutArg, OpSetArg:
		inst.Local = LocalIndex(v)
	case OpGetVarRef, OpPutVarRef, OpSetVarRef:
		inst.VarRef = ClosureVarIndex(v)
	case OpCall:
		inst.Argc = uint16(v)
	default:
		// get_loc0_loc1 pushes locals 0 and 1
		inst.Local = 0
	}
}

// readJump reads a signed relative jump of width bytes and resolves it
// against the position of the immediate field itself.
func readJump(r *Reader, width int) (uint32, error) {
	base := int64(r.Offset())
	pos := r.Position()
	var delta int64
	switch width {
	case 1:
		v, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		delta = int64(int8(v))
	case 2:
		v, err := r.ReadU16()
		if err != nil {
			return 0, err
		}
		delta = int64(int16(v))
	default:
		v, err := r.ReadU32()
		if err != nil {
			return 0, err
		}
		delta = int64(int32(v))
	}
	target := base + delta
	if target < 0 || target > math.MaxUint32 {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(pos).
			Value(delta).
			Detail("jump target %d out of range", target).
			Build()
	}
	return uint32(target), nil
}

func asDecodeError(err error) error {
	if e, ok := err.(*errors.Error); ok && e.Phase != errors.PhaseDecode {
		c := *e
		c.Phase = errors.PhaseDecode
		return &c
	}
	return err
}

// DecodeAll decodes a complete operator body.
func DecodeAll(body *Reader) ([]Instruction, error) {
	r := body.Clone()
	out := make([]Instruction, 0, r.Remaining()/2)
	for !r.Done() {
		inst, err := Decode(r)
		if err != nil {
			return out, err
		}
		out = append(out, inst)
	}
	return out, nil
}
