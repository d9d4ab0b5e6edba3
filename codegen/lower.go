package codegen

import (
	"github.com/wippyai/jac/bytecode"
	"github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/internal/wasmenc"
	"github.com/wippyai/jac/jacrt"
	"github.com/wippyai/jac/translate"
)

// Parameters of every compiled function.
const (
	paramCtx  uint32 = 0
	paramThis uint32 = 1
	paramArgc uint32 = 2
	paramArgv uint32 = 3
)

// Globals, in definition order.
const (
	globalSP uint32 = iota
	globalHeap
	globalCtx
)

const boolTag = int64(jacrt.TagBool) << 32

func boxed(v jacrt.Value) int64 {
	return int64(uint64(v))
}

func importIndex(name string) uint32 {
	i, ok := jacrt.ImportIndex(name)
	if !ok {
		panic("codegen: runtime function " + name + " is not part of the ABI")
	}
	return i
}

// operand is a boxed value held in a wasm local or an immediate.
type operand struct {
	imm   int64
	local uint32
	kind  translate.Kind
	isImm bool
}

var one = operand{imm: boxed(jacrt.Int(1)), kind: translate.KindInt32, isImm: true}

// lowering emits the body of one compiled function.
type lowering struct {
	f       *translate.FunctionTranslation
	t       *translate.Translation
	c       *wasmenc.Code
	reg     []uint32 // wasm local of each register slot
	stack   []uint32 // wasm local of each operand stack position
	tmp     [5]uint32
	pc      uint32
	argbase uint32
	blocks  int
	opts    Options
}

// lowerFunction returns the encoded body of f with the compiled entry
// signature (ctx i32, this i64, argc i32, argv i32) -> i64.
func lowerFunction(t *translate.Translation, f *translate.FunctionTranslation, opts Options) ([]byte, error) {
	c := wasmenc.NewCode(jacrt.EntryParams)
	l := &lowering{t: t, f: f, c: c, opts: opts, blocks: len(f.CFG.Blocks)}

	l.reg = make([]uint32, len(f.Slots))
	for i, s := range f.Slots {
		if s.Kind == translate.SlotRegister {
			l.reg[i] = c.AddLocal(wasmenc.I64)
		}
	}
	l.stack = make([]uint32, f.MaxStack)
	for i := range l.stack {
		l.stack[i] = c.AddLocal(wasmenc.I64)
	}
	for i := range l.tmp {
		l.tmp[i] = c.AddLocal(wasmenc.I64)
	}
	l.pc = c.AddLocal(wasmenc.I32)
	l.argbase = c.AddLocal(wasmenc.I32)

	l.prologue()
	if err := l.dispatch(); err != nil {
		return nil, err
	}
	return c.Body()
}

// prologue moves the incoming arguments into their slots and gives every
// variable its initial value: undefined, or uninitialized for lexical
// bindings. Cells created by the runtime already start uninitialized.
func (l *lowering) prologue() {
	c := l.c
	for i := range l.f.ArgCount() {
		l.store(i, func() {
			c.LocalGet(paramArgc)
			c.I32Const(int32(i))
			c.Op(wasmenc.I32GtU)
			c.If(wasmenc.I64)
			c.LocalGet(paramArgv)
			c.I64Load(uint32(8 * i))
			c.Else()
			c.I64Const(boxed(jacrt.Undefined))
			c.End()
		})
	}
	for i := range l.f.VarCount() {
		local := l.f.ArgCount() + i
		lexical := l.f.Locals[local].IsLexical()
		if l.f.Slots[local].Kind == translate.SlotCell && lexical {
			continue
		}
		init := jacrt.Undefined
		if lexical {
			init = jacrt.Uninitialized
		}
		l.store(local, func() { c.I64Const(boxed(init)) })
	}
}

// dispatch emits the blocks of the CFG inside a loop. Entering the loop
// branches through a table on $pc to the block it names; block k's code
// follows the end of the k-th innermost wasm block, so a forward jump is a
// plain br and a backward jump sets $pc and restarts the loop.
func (l *lowering) dispatch() error {
	c := l.c
	n := l.blocks
	c.Loop()
	for range n {
		c.Block()
	}
	targets := make([]uint32, n)
	for i := range targets {
		targets[i] = uint32(i)
	}
	c.LocalGet(l.pc)
	c.BrTable(targets, uint32(n-1))

	for _, b := range l.f.CFG.Blocks {
		c.End()
		if !b.Reachable {
			c.Unreachable()
			continue
		}
		for i := b.First; i <= b.Last; i++ {
			if err := l.instr(b.Index, i); err != nil {
				return err
			}
		}
	}
	c.End()
	c.Unreachable()
	return nil
}

// jump transfers control from block k to block j.
func (l *lowering) jump(k, j int) {
	c := l.c
	if j > k {
		c.Br(uint32(c.Depth() - (1 + l.blocks - j)))
		return
	}
	c.I32Const(int32(j))
	c.LocalSet(l.pc)
	c.Br(uint32(c.Depth() - 1))
}

// branchIf transfers control from block k to block j when the i32 on the
// stack is non-zero.
func (l *lowering) branchIf(k, j int) {
	c := l.c
	if j > k {
		c.BrIf(uint32(c.Depth() - (1 + l.blocks - j)))
		return
	}
	c.If()
	l.jump(k, j)
	c.End()
}

func (l *lowering) target(in bytecode.Instruction) int {
	b, _ := l.f.CFG.BlockAt(in.Target)
	return b.Index
}

func (l *lowering) s(d int) operand {
	return operand{local: l.stack[d]}
}

func (l *lowering) sk(d int, k translate.Kind) operand {
	return operand{local: l.stack[d], kind: k}
}

func (l *lowering) load(o operand) {
	if o.isImm {
		l.c.I64Const(o.imm)
		return
	}
	l.c.LocalGet(o.local)
}

// set evaluates emit and stores the result at stack position d.
func (l *lowering) set(d int, emit func()) {
	emit()
	l.c.LocalSet(l.stack[d])
}

func (l *lowering) rt(name string) {
	l.c.Call(importIndex(name))
}

// fetch pushes the value of argument or variable local.
func (l *lowering) fetch(local int) {
	c := l.c
	s := l.f.Slots[local]
	if s.Kind == translate.SlotRegister {
		c.LocalGet(l.reg[local])
		return
	}
	c.LocalGet(paramCtx)
	c.I32Const(int32(s.Env))
	l.rt(jacrt.FnGetVarRef)
}

// store writes the value emit produces into argument or variable local.
func (l *lowering) store(local int, emit func()) {
	l.storeWith(local, jacrt.FnPutVarRef, emit)
}

func (l *lowering) storeWith(local int, put string, emit func()) {
	c := l.c
	s := l.f.Slots[local]
	if s.Kind == translate.SlotRegister {
		emit()
		c.LocalSet(l.reg[local])
		return
	}
	c.LocalGet(paramCtx)
	c.I32Const(int32(s.Env))
	emit()
	l.rt(put)
}

// checkInit traps through throw-uninitialized when register local still
// holds the uninitialized marker.
func (l *lowering) checkInit(local int) {
	c := l.c
	c.LocalGet(l.reg[local])
	c.I64Const(boxed(jacrt.Uninitialized))
	c.Op(wasmenc.I64Eq)
	c.If()
	c.LocalGet(paramCtx)
	c.I32Const(int32(l.f.Index))
	c.I32Const(int32(local))
	l.rt(jacrt.FnThrowUninitialized)
	c.Unreachable()
	c.End()
}

func (l *lowering) varRef(get string, idx bytecode.ClosureVarIndex) {
	l.c.LocalGet(paramCtx)
	l.c.I32Const(int32(idx))
	l.rt(get)
}

func (l *lowering) putVarRef(put string, idx bytecode.ClosureVarIndex, v operand) {
	l.c.LocalGet(paramCtx)
	l.c.I32Const(int32(idx))
	l.load(v)
	l.rt(put)
}

func (l *lowering) unsupported(in bytecode.Instruction, detail string, args ...any) error {
	return errors.New(errors.PhaseCodegen, errors.KindUnsupportedOpcode).
		Path(l.f.Index.String()).
		Offset(l.f.BodyOffset+int(in.PC)).
		Op(in.Op.String()).
		Detail(detail, args...).
		Build()
}

// instr lowers instruction i of block k.
func (l *lowering) instr(k, i int) error {
	c := l.c
	f := l.f
	in := f.Instrs[i].Canonical()
	d := f.Depths[i]
	kinds := f.Kinds[i]

	if sh, ok := translate.Shuffles[in.Op]; ok {
		base := d - sh.Pops
		for j := range sh.Pops {
			c.LocalGet(l.stack[base+j])
			c.LocalSet(l.tmp[j])
		}
		for m, j := range sh.Out {
			c.LocalGet(l.tmp[j])
			c.LocalSet(l.stack[base+m])
		}
		return nil
	}

	switch in.Op {
	case bytecode.OpNop, bytecode.OpDrop:

	case bytecode.OpPushI32:
		l.set(d, func() { c.I64Const(boxed(jacrt.Int(in.Value))) })
	case bytecode.OpUndefined:
		l.set(d, func() { c.I64Const(boxed(jacrt.Undefined)) })
	case bytecode.OpNull:
		l.set(d, func() { c.I64Const(boxed(jacrt.Null)) })
	case bytecode.OpPushTrue:
		l.set(d, func() { c.I64Const(boxed(jacrt.True)) })
	case bytecode.OpPushFalse:
		l.set(d, func() { c.I64Const(boxed(jacrt.False)) })
	case bytecode.OpPushThis:
		l.set(d, func() { c.LocalGet(paramThis) })

	case bytecode.OpFClosure:
		l.closure(d, f.Children[in.Const])

	case bytecode.OpGetArg:
		l.set(d, func() { l.fetch(int(in.Local)) })
	case bytecode.OpPutArg:
		l.store(int(in.Local), func() { l.load(l.s(d - 1)) })
	case bytecode.OpSetArg:
		l.store(int(in.Local), func() { l.load(l.s(d - 1)) })

	case bytecode.OpGetLoc:
		l.set(d, func() { l.fetch(f.ArgCount() + int(in.Local)) })
	case bytecode.OpGetLoc0Loc1:
		l.set(d, func() { l.fetch(f.ArgCount()) })
		l.set(d+1, func() { l.fetch(f.ArgCount() + 1) })
	case bytecode.OpPutLoc, bytecode.OpSetLoc, bytecode.OpPutLocCheckInit:
		l.store(f.ArgCount()+int(in.Local), func() { l.load(l.s(d - 1)) })
	case bytecode.OpGetLocCheck:
		local := f.ArgCount() + int(in.Local)
		if f.Slots[local].Kind == translate.SlotRegister {
			l.checkInit(local)
			l.set(d, func() { c.LocalGet(l.reg[local]) })
		} else {
			l.set(d, func() {
				c.LocalGet(paramCtx)
				c.I32Const(int32(f.Slots[local].Env))
				l.rt(jacrt.FnGetVarRefCheck)
			})
		}
	case bytecode.OpPutLocCheck:
		local := f.ArgCount() + int(in.Local)
		if f.Slots[local].Kind == translate.SlotRegister {
			l.checkInit(local)
		}
		l.storeWith(local, jacrt.FnPutVarRefCheck, func() { l.load(l.s(d - 1)) })
	case bytecode.OpSetLocUninit:
		l.store(f.ArgCount()+int(in.Local), func() { c.I64Const(boxed(jacrt.Uninitialized)) })
	case bytecode.OpCloseLoc:
		if s := f.Slots[f.ArgCount()+int(in.Local)]; s.Kind == translate.SlotCell {
			c.LocalGet(paramCtx)
			c.I32Const(int32(s.Env))
			l.rt(jacrt.FnCloseVarRef)
		}

	case bytecode.OpGetVarRef:
		l.set(d, func() { l.varRef(jacrt.FnGetVarRef, in.VarRef) })
	case bytecode.OpGetVarRefCheck:
		l.set(d, func() { l.varRef(jacrt.FnGetVarRefCheck, in.VarRef) })
	case bytecode.OpPutVarRef, bytecode.OpSetVarRef, bytecode.OpPutVarRefCheckInit:
		l.putVarRef(jacrt.FnPutVarRef, in.VarRef, l.s(d-1))
	case bytecode.OpPutVarRefCheck:
		l.putVarRef(jacrt.FnPutVarRefCheck, in.VarRef, l.s(d-1))

	case bytecode.OpIfFalse, bytecode.OpIfTrue:
		l.truthy(l.sk(d-1, kinds.A))
		if in.Op == bytecode.OpIfFalse {
			c.Op(wasmenc.I32Eqz)
		}
		l.branchIf(k, l.target(in))
	case bytecode.OpGoTo:
		l.jump(k, l.target(in))
	case bytecode.OpReturn:
		l.load(l.s(d - 1))
		c.Return()
	case bytecode.OpReturnUndef:
		c.I64Const(boxed(jacrt.Undefined))
		c.Return()
	case bytecode.OpThrow:
		c.LocalGet(paramCtx)
		l.load(l.s(d - 1))
		l.rt(jacrt.FnThrow)
		c.Unreachable()

	case bytecode.OpCall, bytecode.OpTailCall:
		argc := int(in.Argc)
		callee := d - 1 - argc
		if err := l.call(in, callee, operand{imm: boxed(jacrt.Undefined), isImm: true}, callee+1, argc); err != nil {
			return err
		}
		if in.Op == bytecode.OpTailCall {
			l.load(l.s(callee))
			c.Return()
		}
	case bytecode.OpCallMethod, bytecode.OpTailCallMethod:
		argc := int(in.Argc)
		this := d - 2 - argc
		if err := l.call(in, this, l.s(this), this+2, argc); err != nil {
			return err
		}
		if in.Op == bytecode.OpTailCallMethod {
			l.load(l.s(this))
			c.Return()
		}

	case bytecode.OpNeg:
		l.set(d-1, func() { l.helper1("neg", l.s(d-1)) })
	case bytecode.OpPlus:
		l.set(d-1, func() { l.toNumeric(l.sk(d-1, kinds.A)) })
	case bytecode.OpInc:
		l.set(d-1, func() { l.step("inc", l.sk(d-1, kinds.A)) })
	case bytecode.OpDec:
		l.set(d-1, func() { l.step("dec", l.sk(d-1, kinds.A)) })
	case bytecode.OpPostInc, bytecode.OpPostDec:
		name := "inc"
		if in.Op == bytecode.OpPostDec {
			name = "dec"
		}
		l.set(d-1, func() { l.toNumeric(l.sk(d-1, kinds.A)) })
		nk := translate.KindUnknown
		if kinds.A == translate.KindInt32 {
			nk = translate.KindInt32
		}
		l.set(d, func() { l.step(name, l.sk(d-1, nk)) })
	case bytecode.OpIncLoc, bytecode.OpDecLoc:
		name := "inc"
		if in.Op == bytecode.OpDecLoc {
			name = "dec"
		}
		local := f.ArgCount() + int(in.Local)
		cur := l.current(local)
		l.store(local, func() { l.step(name, cur) })
	case bytecode.OpAddLoc:
		local := f.ArgCount() + int(in.Local)
		cur := l.current(local)
		l.store(local, func() { l.binary("add", cur, l.sk(d-1, kinds.A)) })
	case bytecode.OpNot:
		l.set(d-1, func() { l.bitNot(l.sk(d-1, kinds.A)) })
	case bytecode.OpLNot:
		l.set(d-1, func() {
			l.truthy(l.sk(d-1, kinds.A))
			c.Op(wasmenc.I32Eqz)
			l.boolean()
		})
	case bytecode.OpIsUndefined:
		l.set(d-1, func() { l.is(l.s(d-1), jacrt.Undefined) })
	case bytecode.OpIsNull:
		l.set(d-1, func() { l.is(l.s(d-1), jacrt.Null) })
	case bytecode.OpUndefOrNull:
		l.set(d-1, func() {
			l.load(l.s(d - 1))
			c.I64Const(boxed(jacrt.Undefined))
			c.Op(wasmenc.I64Eq)
			l.load(l.s(d - 1))
			c.I64Const(boxed(jacrt.Null))
			c.Op(wasmenc.I64Eq)
			c.Op(wasmenc.I32Or)
			l.boolean()
		})

	default:
		name, ok := binaryNames[in.Op]
		if !ok {
			return l.unsupported(in, "no lowering")
		}
		a, b := l.sk(d-2, kinds.A), l.sk(d-1, kinds.B)
		l.set(d-2, func() { l.binary(name, a, b) })
	}
	return nil
}

var binaryNames = map[bytecode.Opcode]string{
	bytecode.OpMul: "mul", bytecode.OpDiv: "div", bytecode.OpMod: "mod",
	bytecode.OpAdd: "add", bytecode.OpSub: "sub", bytecode.OpPow: "pow",
	bytecode.OpShl: "shl", bytecode.OpSar: "sar", bytecode.OpShr: "shr",
	bytecode.OpAnd: "and", bytecode.OpOr: "or", bytecode.OpXor: "xor",
	bytecode.OpLt: "lt", bytecode.OpLte: "lte", bytecode.OpGt: "gt", bytecode.OpGte: "gte",
	bytecode.OpEq: "eq", bytecode.OpNeq: "neq",
	bytecode.OpStrictEq: "strict-eq", bytecode.OpStrictNeq: "strict-neq",
}

// current returns the value of local as an operand, reading a cell into a
// scratch local first.
func (l *lowering) current(local int) operand {
	if l.f.Slots[local].Kind == translate.SlotRegister {
		return operand{local: l.reg[local]}
	}
	l.fetch(local)
	l.c.LocalSet(l.tmp[0])
	return operand{local: l.tmp[0]}
}

// closure creates a closure of child and aliases each of its captured
// variables from the current environment.
func (l *lowering) closure(d int, child bytecode.FuncIndex) {
	c := l.c
	cf, _ := l.t.Func(child)
	l.set(d, func() {
		c.LocalGet(paramCtx)
		c.I32Const(int32(cf.ArgCount()))
		c.I32Const(int32(child))
		l.rt(jacrt.FnClosure)
	})
	for _, cp := range cf.Captures {
		c.LocalGet(paramCtx)
		c.I32Const(int32(child))
		c.I32Const(int32(cp.ParentSlot))
		l.rt(jacrt.FnResolveVarRef)
	}
}

// call spills argc values starting at stack position first to the argument
// stack, calls the callee found just below them and leaves the result at
// stack position dst.
func (l *lowering) call(in bytecode.Instruction, dst int, this operand, first, argc int) error {
	c := l.c
	size := 8 * argc
	if uint64(size) > uint64(l.opts.ArgStackSize) {
		return l.unsupported(in, "%d arguments exceed the %d byte argument stack", argc, l.opts.ArgStackSize)
	}
	limit := int32(l.opts.HeapBase())

	c.GlobalGet(globalSP)
	c.LocalSet(l.argbase)
	if argc > 0 {
		c.LocalGet(l.argbase)
		c.I32Const(int32(size))
		c.Op(wasmenc.I32Add)
		c.I32Const(limit)
		c.Op(wasmenc.I32GtU)
		c.If()
		c.Unreachable()
		c.End()
		for j := range argc {
			c.LocalGet(l.argbase)
			l.load(l.s(first + j))
			c.I64Store(uint32(8 * j))
		}
		c.LocalGet(l.argbase)
		c.I32Const(int32(size))
		c.Op(wasmenc.I32Add)
		c.GlobalSet(globalSP)
	}

	c.LocalGet(paramCtx)
	l.load(l.s(first - 1))
	l.load(this)
	c.I32Const(int32(argc))
	c.LocalGet(l.argbase)
	l.rt(jacrt.FnCall)
	c.LocalSet(l.stack[dst])

	if argc > 0 {
		c.LocalGet(l.argbase)
		c.GlobalSet(globalSP)
	}
	return nil
}

func (l *lowering) helper1(name string, a operand) {
	l.c.LocalGet(paramCtx)
	l.load(a)
	l.rt(name)
}

func (l *lowering) helper2(name string, a, b operand) {
	l.c.LocalGet(paramCtx)
	l.load(a)
	l.load(b)
	l.rt(name)
}

// guarded emits fast when every operand is an int and slow otherwise.
// Operands statically known to be ints skip the tag test; a known bool
// always takes the slow path.
func (l *lowering) guarded(ops []operand, fast, slow func()) {
	c := l.c
	known := true
	for _, o := range ops {
		switch o.kind {
		case translate.KindBool:
			slow()
			return
		case translate.KindInt32:
		default:
			known = false
		}
	}
	if known {
		fast()
		return
	}
	for i, o := range ops {
		l.load(o)
		if i > 0 {
			c.Op(wasmenc.I64Or)
		}
	}
	c.I64Const(32)
	c.Op(wasmenc.I64ShrU, wasmenc.I64Eqz)
	c.If(wasmenc.I64)
	fast()
	c.Else()
	slow()
	c.End()
}

func (l *lowering) sext(o operand) {
	l.load(o)
	l.c.Op(wasmenc.I32WrapI64, wasmenc.I64ExtendI32S)
}

// checked emits the 64-bit sum or difference of two ints, boxed as an int
// when it fits in 32 bits and recomputed by slow otherwise.
func (l *lowering) checked(op wasmenc.Op, a, b operand, slow func()) {
	c := l.c
	t := l.tmp[4]
	l.sext(a)
	l.sext(b)
	c.Op(op)
	c.LocalSet(t)
	c.LocalGet(t)
	c.LocalGet(t)
	c.Op(wasmenc.I32WrapI64, wasmenc.I64ExtendI32S, wasmenc.I64Eq)
	c.If(wasmenc.I64)
	c.LocalGet(t)
	c.I64Const(0xffffffff)
	c.Op(wasmenc.I64And)
	c.Else()
	slow()
	c.End()
}

// boolean boxes the i32 on the stack as a bool.
func (l *lowering) boolean() {
	l.c.Op(wasmenc.I64ExtendI32U)
	l.c.I64Const(boolTag)
	l.c.Op(wasmenc.I64Or)
}

func (l *lowering) compareInts(op wasmenc.Op, a, b operand) {
	l.load(a)
	l.c.Op(wasmenc.I32WrapI64)
	l.load(b)
	l.c.Op(wasmenc.I32WrapI64)
	l.c.Op(op)
	l.boolean()
}

func (l *lowering) shiftInts(op wasmenc.Op, a, b operand) {
	l.load(a)
	l.c.Op(wasmenc.I32WrapI64)
	l.load(b)
	l.c.Op(wasmenc.I32WrapI64)
	l.c.Op(op, wasmenc.I64ExtendI32U)
}

// binary emits the boxed result of the two-operand helper name.
func (l *lowering) binary(name string, a, b operand) {
	c := l.c
	slow := func() { l.helper2(name, a, b) }
	var fast func()
	switch name {
	case "add":
		fast = func() { l.checked(wasmenc.I64Add, a, b, slow) }
	case "sub":
		fast = func() { l.checked(wasmenc.I64Sub, a, b, slow) }
	case "lt":
		fast = func() { l.compareInts(wasmenc.I32LtS, a, b) }
	case "lte":
		fast = func() { l.compareInts(wasmenc.I32LeS, a, b) }
	case "gt":
		fast = func() { l.compareInts(wasmenc.I32GtS, a, b) }
	case "gte":
		fast = func() { l.compareInts(wasmenc.I32GeS, a, b) }
	case "eq", "strict-eq":
		fast = func() { l.load(a); l.load(b); c.Op(wasmenc.I64Eq); l.boolean() }
	case "neq", "strict-neq":
		fast = func() { l.load(a); l.load(b); c.Op(wasmenc.I64Ne); l.boolean() }
	case "and":
		fast = func() { l.load(a); l.load(b); c.Op(wasmenc.I64And) }
	case "or":
		fast = func() { l.load(a); l.load(b); c.Op(wasmenc.I64Or) }
	case "xor":
		fast = func() { l.load(a); l.load(b); c.Op(wasmenc.I64Xor) }
	case "shl":
		fast = func() { l.shiftInts(wasmenc.I32Shl, a, b) }
	case "sar":
		fast = func() { l.shiftInts(wasmenc.I32ShrS, a, b) }
	default:
		slow()
		return
	}
	l.guarded([]operand{a, b}, fast, slow)
}

// step emits inc or dec of a.
func (l *lowering) step(name string, a operand) {
	op := wasmenc.I64Add
	if name == "dec" {
		op = wasmenc.I64Sub
	}
	slow := func() { l.helper1(name, a) }
	l.guarded([]operand{a}, func() { l.checked(op, a, one, slow) }, slow)
}

func (l *lowering) toNumeric(a operand) {
	l.guarded([]operand{a}, func() { l.load(a) }, func() { l.helper1(jacrt.FnToNumeric, a) })
}

func (l *lowering) bitNot(a operand) {
	c := l.c
	l.guarded([]operand{a}, func() {
		l.load(a)
		c.Op(wasmenc.I32WrapI64)
		c.I32Const(-1)
		c.Op(wasmenc.I32Xor, wasmenc.I64ExtendI32U)
	}, func() { l.helper1("not", a) })
}

// truthy pushes a non-zero i32 when a is truthy. Ints and bools test their
// payload directly; everything else goes through to-bool.
func (l *lowering) truthy(a operand) {
	c := l.c
	switch a.kind {
	case translate.KindBool, translate.KindInt32:
		l.load(a)
		c.Op(wasmenc.I32WrapI64)
		return
	}
	l.load(a)
	c.I64Const(32)
	c.Op(wasmenc.I64ShrU)
	c.I64Const(int64(jacrt.TagBool) + 1)
	c.Op(wasmenc.I64LtU)
	c.If(wasmenc.I32)
	l.load(a)
	c.Op(wasmenc.I32WrapI64)
	c.Else()
	l.helper1(jacrt.FnToBool, a)
	c.End()
}

func (l *lowering) is(a operand, v jacrt.Value) {
	l.load(a)
	l.c.I64Const(boxed(v))
	l.c.Op(wasmenc.I64Eq)
	l.boolean()
}
