package wasmenc

import (
	"github.com/wippyai/jac/errors"
)

// Code builds one function body. Local indices start after the
// function's parameters.
type Code struct {
	w      Writer
	locals []ValType
	params uint32
	depth  int
	// unbalanced records the first End without a matching open block.
	unbalanced bool
}

// NewCode starts a body for a function with params parameters.
func NewCode(params []ValType) *Code {
	return &Code{params: uint32(len(params))}
}

// AddLocal declares a local and returns its index.
func (c *Code) AddLocal(t ValType) uint32 {
	c.locals = append(c.locals, t)
	return c.params + uint32(len(c.locals)) - 1
}

// Locals returns the declared (non-parameter) locals.
func (c *Code) Locals() []ValType {
	return c.locals
}

// Depth returns the number of open blocks.
func (c *Code) Depth() int {
	return c.depth
}

// Len returns the size of the instruction stream so far.
func (c *Code) Len() int {
	return c.w.Len()
}

func (c *Code) open(op byte, result []ValType) {
	c.w.Byte(op)
	switch len(result) {
	case 0:
		c.w.Byte(blockVoid)
	default:
		c.w.Byte(result[0])
	}
	c.depth++
}

func (c *Code) Unreachable() { c.w.Byte(opUnreachable) }
func (c *Code) Nop()         { c.w.Byte(opNop) }
func (c *Code) Return()      { c.w.Byte(opReturn) }
func (c *Code) Drop()        { c.w.Byte(opDrop) }
func (c *Code) Select()      { c.w.Byte(opSelect) }

// Block opens a block; result is empty or holds a single value type.
func (c *Code) Block(result ...ValType) { c.open(opBlock, result) }

// Loop opens a loop.
func (c *Code) Loop(result ...ValType) { c.open(opLoop, result) }

// If opens an if block consuming an i32 condition.
func (c *Code) If(result ...ValType) { c.open(opIf, result) }

// Else switches an open if to its else arm.
func (c *Code) Else() { c.w.Byte(opElse) }

// End closes the innermost open block.
func (c *Code) End() {
	c.w.Byte(opEnd)
	if c.depth == 0 {
		c.unbalanced = true
		return
	}
	c.depth--
}

// Br branches to the label depth levels out.
func (c *Code) Br(depth uint32) {
	c.w.Byte(opBr)
	c.w.U32(depth)
}

// BrIf branches when the i32 on the stack is non-zero.
func (c *Code) BrIf(depth uint32) {
	c.w.Byte(opBrIf)
	c.w.U32(depth)
}

// BrTable branches to targets[i] for stack value i, or to def.
func (c *Code) BrTable(targets []uint32, def uint32) {
	c.w.Byte(opBrTable)
	c.w.U32(uint32(len(targets)))
	for _, t := range targets {
		c.w.U32(t)
	}
	c.w.U32(def)
}

// Call calls function idx.
func (c *Code) Call(idx uint32) {
	c.w.Byte(opCall)
	c.w.U32(idx)
}

func (c *Code) LocalGet(idx uint32) {
	c.w.Byte(opLocalGet)
	c.w.U32(idx)
}

func (c *Code) LocalSet(idx uint32) {
	c.w.Byte(opLocalSet)
	c.w.U32(idx)
}

func (c *Code) LocalTee(idx uint32) {
	c.w.Byte(opLocalTee)
	c.w.U32(idx)
}

func (c *Code) GlobalGet(idx uint32) {
	c.w.Byte(opGlobalGet)
	c.w.U32(idx)
}

func (c *Code) GlobalSet(idx uint32) {
	c.w.Byte(opGlobalSet)
	c.w.U32(idx)
}

func (c *Code) memarg(op byte, align, offset uint32) {
	c.w.Byte(op)
	c.w.U32(align)
	c.w.U32(offset)
}

func (c *Code) I32Load(offset uint32)  { c.memarg(opI32Load, memArgAlign32, offset) }
func (c *Code) I64Load(offset uint32)  { c.memarg(opI64Load, memArgAlign64, offset) }
func (c *Code) I32Store(offset uint32) { c.memarg(opI32Store, memArgAlign32, offset) }
func (c *Code) I64Store(offset uint32) { c.memarg(opI64Store, memArgAlign64, offset) }

// MemorySize pushes the page count of memory 0.
func (c *Code) MemorySize() {
	c.w.Byte(opMemorySize)
	c.w.Byte(0)
}

// MemoryGrow grows memory 0 and pushes the old page count or -1.
func (c *Code) MemoryGrow() {
	c.w.Byte(opMemoryGrow)
	c.w.Byte(0)
}

// MemoryCopy copies within memory 0 (dst, src, n).
func (c *Code) MemoryCopy() {
	c.w.Byte(opPrefixMisc)
	c.w.U32(miscMemCopy)
	c.w.Byte(0)
	c.w.Byte(0)
}

// MemoryFill fills memory 0 (dst, value, n).
func (c *Code) MemoryFill() {
	c.w.Byte(opPrefixMisc)
	c.w.U32(miscMemFill)
	c.w.Byte(0)
}

func (c *Code) I32Const(v int32) {
	c.w.Byte(opI32Const)
	c.w.S32(v)
}

func (c *Code) I64Const(v int64) {
	c.w.Byte(opI64Const)
	c.w.S64(v)
}

func (c *Code) F64Const(v float64) {
	c.w.Byte(opF64Const)
	c.w.F64(v)
}

// Op emits a numeric instruction.
func (c *Code) Op(ops ...Op) {
	for _, op := range ops {
		c.w.Byte(byte(op))
	}
}

// Body returns the encoded function body: the local declarations, the
// instructions and the closing end.
func (c *Code) Body() ([]byte, error) {
	if c.unbalanced || c.depth != 0 {
		return nil, errors.New(errors.PhaseCodegen, errors.KindInvalidState).
			Value(c.depth).
			Detail("unbalanced blocks: %d left open", c.depth).
			Build()
	}
	var w Writer
	var runs [][2]uint32
	for _, t := range c.locals {
		if n := len(runs); n > 0 && runs[n-1][1] == uint32(t) {
			runs[n-1][0]++
			continue
		}
		runs = append(runs, [2]uint32{1, uint32(t)})
	}
	w.U32(uint32(len(runs)))
	for _, r := range runs {
		w.U32(r[0])
		w.Byte(byte(r[1]))
	}
	w.Raw(c.w.Bytes())
	w.Byte(opEnd)
	return w.Bytes(), nil
}
