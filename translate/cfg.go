package translate

import (
	"sort"

	"github.com/wippyai/jac/bytecode"
	"github.com/wippyai/jac/errors"
)

// EdgeKind classifies a control-flow edge.
type EdgeKind uint8

const (
	// EdgeFallthrough continues with the next instruction in body order.
	EdgeFallthrough EdgeKind = iota
	// EdgeJump is an unconditional transfer.
	EdgeJump
	// EdgeBranch is the taken side of a conditional transfer.
	EdgeBranch
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeFallthrough:
		return "fallthrough"
	case EdgeJump:
		return "jump"
	case EdgeBranch:
		return "branch"
	}
	return "unknown"
}

// Edge leads to block To.
type Edge struct {
	To   int
	Kind EdgeKind
}

// Block is a maximal straight-line run of instructions. First and Last are
// instruction indices, inclusive.
type Block struct {
	Succs     []Edge
	Preds     []int
	Index     int
	First     int
	Last      int
	PC        uint32
	Reachable bool
}

// Len returns the number of instructions in the block.
func (b *Block) Len() int {
	return b.Last - b.First + 1
}

// CFG is the control-flow graph of one operator body.
type CFG struct {
	Blocks  []*Block
	blockOf []int
	byPC    map[uint32]int
}

// BlockAt returns the block starting at body offset pc.
func (c *CFG) BlockAt(pc uint32) (*Block, bool) {
	i, ok := c.byPC[pc]
	if !ok {
		return nil, false
	}
	b := c.Blocks[c.blockOf[i]]
	if b.First != i {
		return nil, false
	}
	return b, true
}

// BlockOf returns the block containing instruction i.
func (c *CFG) BlockOf(i int) *Block {
	return c.Blocks[c.blockOf[i]]
}

// Reachable returns the number of reachable blocks.
func (c *CFG) Reachable() int {
	n := 0
	for _, b := range c.Blocks {
		if b.Reachable {
			n++
		}
	}
	return n
}

// buildCFG splits instrs into blocks at jump targets and after jumps and
// terminators, links them and marks what is reachable from the entry.
// Targets that miss an instruction boundary and control falling off the
// end of the body are malformed input.
func buildCFG(instrs []bytecode.Instruction, base int) (*CFG, error) {
	if len(instrs) == 0 {
		return nil, errors.InvalidData(errors.PhaseTranslate, base, "empty operator body")
	}

	byPC := make(map[uint32]int, len(instrs))
	for i, in := range instrs {
		byPC[in.PC] = i
	}

	leaders := newBitSet(len(instrs))
	leaders.set(0)
	for i, in := range instrs {
		if in.Op.IsJump() {
			t, ok := byPC[in.Target]
			if !ok {
				return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
					Offset(base+int(in.PC)).
					Op(in.Op.String()).
					Value(in.Target).
					Detail("jump target %d is not an instruction boundary", in.Target).
					Build()
			}
			leaders.set(t)
		}
		if (in.Op.IsJump() || in.Op.IsTerminator()) && i+1 < len(instrs) {
			leaders.set(i + 1)
		}
	}

	c := &CFG{blockOf: make([]int, len(instrs)), byPC: byPC}
	for i := range instrs {
		if leaders.has(i) {
			if n := len(c.Blocks); n > 0 {
				c.Blocks[n-1].Last = i - 1
			}
			c.Blocks = append(c.Blocks, &Block{Index: len(c.Blocks), First: i, PC: instrs[i].PC})
		}
		c.blockOf[i] = len(c.Blocks) - 1
	}
	c.Blocks[len(c.Blocks)-1].Last = len(instrs) - 1

	for _, b := range c.Blocks {
		last := instrs[b.Last]
		op := last.Op
		if op.IsJump() {
			kind := EdgeBranch
			if op.IsTerminator() {
				kind = EdgeJump
			}
			b.Succs = append(b.Succs, Edge{To: c.blockOf[byPC[last.Target]], Kind: kind})
		}
		if op.IsTerminator() {
			continue
		}
		if b.Last+1 >= len(instrs) {
			return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
				Offset(base + int(last.PC)).
				Op(op.String()).
				Detail("control falls off the end of the body").
				Build()
		}
		b.Succs = append(b.Succs, Edge{To: b.Index + 1, Kind: EdgeFallthrough})
	}

	for _, b := range c.Blocks {
		for _, e := range b.Succs {
			to := c.Blocks[e.To]
			if len(to.Preds) == 0 || to.Preds[len(to.Preds)-1] != b.Index {
				to.Preds = append(to.Preds, b.Index)
			}
		}
	}
	for _, b := range c.Blocks {
		sort.Ints(b.Preds)
	}

	work := []int{0}
	c.Blocks[0].Reachable = true
	for len(work) > 0 {
		b := c.Blocks[work[len(work)-1]]
		work = work[:len(work)-1]
		for _, e := range b.Succs {
			if to := c.Blocks[e.To]; !to.Reachable {
				to.Reachable = true
				work = append(work, to.Index)
			}
		}
	}
	return c, nil
}
