package translate

import (
	"github.com/wippyai/jac/errors"
)

// assignSlots decides for every argument and variable of f whether it lives
// in a register or in a cell of the activation environment. A slot is a
// cell when its local is flagged captured or a child closure variable
// refers to it. Cells follow the closure variables: captured arguments
// first, then captured variables, each in declaration order.
func assignSlots(t *Translation, f *FunctionTranslation) error {
	argc, varc := f.ArgCount(), f.VarCount()
	captured := newBitSet(argc + varc)
	for i, l := range f.Locals {
		if l.IsCaptured() {
			captured.set(i)
		}
	}
	for _, ci := range f.Children {
		child := t.Funcs[ci]
		for j, cv := range child.ClosureVars {
			if !cv.IsLocal {
				continue
			}
			idx, limit, what := int(cv.Index), varc, "variable"
			if cv.IsArg {
				limit, what = argc, "argument"
			} else {
				idx += argc
			}
			if cv.Index >= uint32(limit) {
				return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
					Path(child.Index.String()).
					Value(cv.Index).
					Detail("closure variable %d captures %s %d of %s (%d declared)", j, what, cv.Index, f.Index, limit).
					Build()
			}
			captured.set(idx)
		}
	}

	f.Slots = make([]Slot, argc+varc)
	next := len(f.ClosureVars)
	for i := range f.Slots {
		if captured.has(i) {
			f.Slots[i] = Slot{Kind: SlotCell, Env: uint32(next)}
			next++
		}
	}
	f.FreshSlots = captured.count()
	return nil
}

// resolveCaptures classifies each closure variable of f against its parent
// and records which parent environment slot the closure must alias. The
// parent's slots must already be assigned.
func resolveCaptures(t *Translation, f *FunctionTranslation) error {
	if len(f.ClosureVars) == 0 {
		return nil
	}
	parent, ok := t.Func(f.Parent)
	if !ok {
		// The root's closure variables are cells init creates.
		return nil
	}

	f.Captures = make([]Capture, len(f.ClosureVars))
	for j, cv := range f.ClosureVars {
		c := Capture{Source: cv.Index}
		switch {
		case cv.IsLocal && cv.IsArg:
			c.Kind = CaptureArg
			c.ParentSlot = parent.ArgSlot(int(cv.Index)).Env
		case cv.IsLocal:
			c.Kind = CaptureLocal
			c.ParentSlot = parent.VarSlot(int(cv.Index)).Env
		default:
			if cv.Index >= uint32(len(parent.ClosureVars)) {
				return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
					Path(f.Index.String()).
					Value(cv.Index).
					Detail("closure variable %d forwards closure variable %d of %s (%d declared)",
						j, cv.Index, parent.Index, len(parent.ClosureVars)).
					Build()
			}
			c.Kind = CaptureForwarded
			c.ParentSlot = cv.Index
		}
		f.Captures[j] = c
	}
	return nil
}
