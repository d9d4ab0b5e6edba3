package translate

import (
	"github.com/wippyai/jac/bytecode"
	"github.com/wippyai/jac/errors"
)

// simulate computes the operand stack height before every reachable
// instruction by propagating block entry heights along the CFG. A block
// reached with two different heights, or an instruction popping more than
// the stack holds, is a stack imbalance.
func (b *builder) simulate() error {
	f := b.fn
	cfg := f.CFG
	f.Depths = make([]int, len(f.Instrs))
	for i := range f.Depths {
		f.Depths[i] = -1
	}
	entry := make([]int, len(cfg.Blocks))
	for i := range entry {
		entry[i] = -1
	}
	entry[0] = 0

	work := []int{0}
	for len(work) > 0 {
		blk := cfg.Blocks[work[len(work)-1]]
		work = work[:len(work)-1]

		depth := entry[blk.Index]
		for i := blk.First; i <= blk.Last; i++ {
			in := f.Instrs[i]
			f.Depths[i] = depth
			pops, pushes := in.StackEffect()
			if depth < pops {
				return b.imbalance(in, "pops %d values with %d on the stack", pops, depth)
			}
			depth += pushes - pops
			if depth > f.MaxStack {
				f.MaxStack = depth
			}
		}

		for _, e := range blk.Succs {
			switch have := entry[e.To]; {
			case have < 0:
				entry[e.To] = depth
				work = append(work, e.To)
			case have != depth:
				last := f.Instrs[blk.Last]
				return b.imbalance(last, "block at pc %d entered with %d and %d values",
					cfg.Blocks[e.To].PC, have, depth)
			}
		}
	}
	return nil
}

func (b *builder) imbalance(in bytecode.Instruction, detail string, args ...any) error {
	return errors.New(errors.PhaseTranslate, errors.KindStackImbalance).
		Path(b.fn.Index.String()).
		Offset(b.fn.BodyOffset+int(in.PC)).
		Op(in.Op.String()).
		Detail(detail, args...).
		Build()
}

// inferKinds records the static kinds of every reachable instruction's
// operands. Values entering a block are unknown; within a block, literals,
// comparisons and bitwise results are tracked through stack shuffles.
func (b *builder) inferKinds() {
	f := b.fn
	f.Kinds = make([]Operands, len(f.Instrs))
	stack := make([]Kind, 0, f.MaxStack)

	for _, blk := range f.CFG.Blocks {
		if !blk.Reachable {
			continue
		}
		stack = stack[:0]
		for range f.Depths[blk.First] {
			stack = append(stack, KindUnknown)
		}
		for i := blk.First; i <= blk.Last; i++ {
			in := f.Instrs[i]
			pops, pushes := in.StackEffect()
			d := len(stack)
			switch {
			case pops == 1:
				f.Kinds[i] = Operands{A: stack[d-1]}
			case pops >= 2:
				f.Kinds[i] = Operands{A: stack[d-2], B: stack[d-1]}
			}

			op := in.Canonical().Op
			if sh, ok := Shuffles[op]; ok {
				popped := append([]Kind(nil), stack[d-sh.Pops:]...)
				stack = stack[:d-sh.Pops]
				for _, j := range sh.Out {
					stack = append(stack, popped[j])
				}
				continue
			}
			stack = stack[:d-pops]
			k := resultKind(op)
			for range pushes {
				stack = append(stack, k)
			}
		}
	}
}

func resultKind(op bytecode.Opcode) Kind {
	switch op {
	case bytecode.OpPushI32,
		bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor,
		bytecode.OpShl, bytecode.OpSar, bytecode.OpNot:
		return KindInt32
	case bytecode.OpPushTrue, bytecode.OpPushFalse,
		bytecode.OpLt, bytecode.OpLte, bytecode.OpGt, bytecode.OpGte,
		bytecode.OpEq, bytecode.OpNeq, bytecode.OpStrictEq, bytecode.OpStrictNeq,
		bytecode.OpLNot, bytecode.OpIsUndefined, bytecode.OpIsNull, bytecode.OpUndefOrNull:
		return KindBool
	}
	return KindUnknown
}
