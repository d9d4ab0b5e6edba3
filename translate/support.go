package translate

import (
	"github.com/wippyai/jac/bytecode"
	"github.com/wippyai/jac/errors"
)

// Shuffle describes a pure stack permutation: Pops values are removed and
// Out lists, bottom to top, which of them are pushed back. Index 0 is the
// deepest popped value.
type Shuffle struct {
	Out  []int
	Pops int
}

// Shuffles holds every stack permutation opcode.
var Shuffles = map[bytecode.Opcode]Shuffle{
	bytecode.OpNip:     {Pops: 2, Out: []int{1}},
	bytecode.OpNip1:    {Pops: 3, Out: []int{1, 2}},
	bytecode.OpDup:     {Pops: 1, Out: []int{0, 0}},
	bytecode.OpDup1:    {Pops: 2, Out: []int{0, 0, 1}},
	bytecode.OpDup2:    {Pops: 2, Out: []int{0, 1, 0, 1}},
	bytecode.OpDup3:    {Pops: 3, Out: []int{0, 1, 2, 0, 1, 2}},
	bytecode.OpInsert2: {Pops: 2, Out: []int{1, 0, 1}},
	bytecode.OpInsert3: {Pops: 3, Out: []int{2, 0, 1, 2}},
	bytecode.OpInsert4: {Pops: 4, Out: []int{3, 0, 1, 2, 3}},
	bytecode.OpPerm3:   {Pops: 3, Out: []int{1, 0, 2}},
	bytecode.OpPerm4:   {Pops: 4, Out: []int{2, 0, 1, 3}},
	bytecode.OpPerm5:   {Pops: 5, Out: []int{3, 0, 1, 2, 4}},
	bytecode.OpSwap:    {Pops: 2, Out: []int{1, 0}},
	bytecode.OpSwap2:   {Pops: 4, Out: []int{2, 3, 0, 1}},
	bytecode.OpRot3L:   {Pops: 3, Out: []int{1, 2, 0}},
	bytecode.OpRot3R:   {Pops: 3, Out: []int{2, 0, 1}},
	bytecode.OpRot4L:   {Pops: 4, Out: []int{1, 2, 3, 0}},
	bytecode.OpRot5L:   {Pops: 5, Out: []int{1, 2, 3, 4, 0}},
}

// lowered lists the canonical opcodes the code generator emits code for.
var lowered = func() [256]bool {
	var s [256]bool
	for _, o := range []bytecode.Opcode{
		bytecode.OpPushI32, bytecode.OpUndefined, bytecode.OpNull,
		bytecode.OpPushTrue, bytecode.OpPushFalse, bytecode.OpPushThis,
		bytecode.OpFClosure, bytecode.OpDrop, bytecode.OpNop,

		bytecode.OpGetLoc, bytecode.OpPutLoc, bytecode.OpSetLoc,
		bytecode.OpGetArg, bytecode.OpPutArg, bytecode.OpSetArg,
		bytecode.OpGetVarRef, bytecode.OpPutVarRef, bytecode.OpSetVarRef,
		bytecode.OpGetLocCheck, bytecode.OpPutLocCheck, bytecode.OpPutLocCheckInit,
		bytecode.OpGetVarRefCheck, bytecode.OpPutVarRefCheck, bytecode.OpPutVarRefCheckInit,
		bytecode.OpSetLocUninit, bytecode.OpCloseLoc, bytecode.OpGetLoc0Loc1,

		bytecode.OpIfFalse, bytecode.OpIfTrue, bytecode.OpGoTo,
		bytecode.OpReturn, bytecode.OpReturnUndef, bytecode.OpThrow,
		bytecode.OpCall, bytecode.OpCallMethod, bytecode.OpTailCall, bytecode.OpTailCallMethod,

		bytecode.OpNeg, bytecode.OpPlus, bytecode.OpInc, bytecode.OpDec,
		bytecode.OpPostInc, bytecode.OpPostDec, bytecode.OpIncLoc, bytecode.OpDecLoc,
		bytecode.OpAddLoc, bytecode.OpNot, bytecode.OpLNot,

		bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpAdd, bytecode.OpSub,
		bytecode.OpShl, bytecode.OpSar, bytecode.OpShr, bytecode.OpAnd, bytecode.OpXor,
		bytecode.OpOr, bytecode.OpPow, bytecode.OpLt, bytecode.OpLte, bytecode.OpGt,
		bytecode.OpGte, bytecode.OpEq, bytecode.OpNeq, bytecode.OpStrictEq, bytecode.OpStrictNeq,

		bytecode.OpIsUndefined, bytecode.OpIsNull, bytecode.OpUndefOrNull,
	} {
		s[o] = true
	}
	for o := range Shuffles {
		s[o] = true
	}
	return s
}()

// Lowered reports whether instructions with canonical opcode op are
// compiled rather than left to the interpreter.
func Lowered(op bytecode.Opcode) bool {
	return lowered[op]
}

// operandClass says which index space an instruction's operand lives in.
type operandClass uint8

const (
	operandNone operandClass = iota
	operandArg
	operandVar
	operandVarPair // get_loc0_loc1 reads variables 0 and 1
	operandClosure
	operandChild
)

func classify(in bytecode.Instruction) operandClass {
	switch in.Canonical().Op {
	case bytecode.OpGetArg, bytecode.OpPutArg, bytecode.OpSetArg, bytecode.OpMakeArgRef:
		return operandArg
	case bytecode.OpGetLoc, bytecode.OpPutLoc, bytecode.OpSetLoc,
		bytecode.OpGetLocCheck, bytecode.OpPutLocCheck, bytecode.OpPutLocCheckInit,
		bytecode.OpSetLocUninit, bytecode.OpCloseLoc, bytecode.OpMakeLocRef,
		bytecode.OpIncLoc, bytecode.OpDecLoc, bytecode.OpAddLoc:
		return operandVar
	case bytecode.OpGetLoc0Loc1:
		return operandVarPair
	case bytecode.OpGetVarRef, bytecode.OpPutVarRef, bytecode.OpSetVarRef,
		bytecode.OpGetVarRefCheck, bytecode.OpPutVarRefCheck, bytecode.OpPutVarRefCheckInit,
		bytecode.OpMakeVarRefRef:
		return operandClosure
	case bytecode.OpFClosure, bytecode.OpPushConst:
		return operandChild
	}
	return operandNone
}

// checkOperands rejects instructions whose slot, closure variable or
// constant index is outside the function's declared counts.
func (b *builder) checkOperands() error {
	f := b.fn
	for _, in := range f.Instrs {
		var (
			idx   uint64
			limit int
			what  string
		)
		switch classify(in) {
		case operandArg:
			idx, limit, what = uint64(in.Local), f.ArgCount(), "argument"
		case operandVar:
			idx, limit, what = uint64(in.Local), f.VarCount(), "variable"
		case operandVarPair:
			idx, limit, what = 1, f.VarCount(), "variable"
		case operandClosure:
			idx, limit, what = uint64(in.VarRef), len(f.ClosureVars), "closure variable"
		case operandChild:
			idx, limit, what = uint64(in.Const), len(f.Children), "constant"
		default:
			continue
		}
		if idx >= uint64(limit) {
			return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				Path(f.Index.String()).
				Offset(f.BodyOffset+int(in.PC)).
				Op(in.Op.String()).
				Value(idx).
				Detail("%s index %d out of range (%d declared)", what, idx, limit).
				Build()
		}
	}
	return nil
}

// checkSupport returns the first reachable instruction the code generator
// cannot lower, as an unsupported error.
func (b *builder) checkSupport() error {
	f := b.fn
	switch k := f.Header.Flags.Kind(); k {
	case bytecode.FuncGenerator, bytecode.FuncAsync, bytecode.FuncAsyncGenerator:
		return errors.New(errors.PhaseTranslate, errors.KindUnsupportedFeature).
			Path(f.Index.String()).
			Detail("%s functions", k).
			Build()
	}
	for _, blk := range f.CFG.Blocks {
		if !blk.Reachable {
			continue
		}
		for i := blk.First; i <= blk.Last; i++ {
			in := f.Instrs[i]
			if lowered[in.Canonical().Op] {
				continue
			}
			e := errors.UnsupportedOpcode(errors.PhaseTranslate, f.BodyOffset+int(in.PC), byte(in.Op), in.Op.String())
			e.Path = []string{f.Index.String()}
			return e
		}
	}
	return nil
}
