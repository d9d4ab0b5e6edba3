package jac

import (
	"bufio"
	"fmt"
	"io"

	"github.com/wippyai/jac/bytecode"
	"github.com/wippyai/jac/translate"
)

// Disassemble writes a listing of every function in t: its header, slot
// layout and captures, then its basic blocks with the operand stack depth
// before each instruction.
func Disassemble(w io.Writer, t *translate.Translation) error {
	bw := bufio.NewWriter(w)
	for _, f := range t.Funcs {
		DisassembleFunc(bw, t, f)
	}
	return bw.Flush()
}

// DisassembleFunc writes the listing of one function.
func DisassembleFunc(w io.Writer, t *translate.Translation, f *translate.FunctionTranslation) {
	name := f.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(w, "%s %s (%s) args=%d vars=%d stack=%d env=%d\n",
		f.Index, name, f.Mode, f.ArgCount(), f.VarCount(), f.MaxStack, f.EnvSlots())
	if f.Reason != "" {
		fmt.Fprintf(w, "  ; %s\n", f.Reason)
	}
	for i, s := range f.Slots {
		if s.Kind == translate.SlotCell {
			fmt.Fprintf(w, "  cell %d = %s\n", s.Env, t.LocalName(f, i))
		}
	}
	for j, c := range f.Captures {
		fmt.Fprintf(w, "  capture %d = %s %d of parent (slot %d)\n", j, c.Kind, c.Source, c.ParentSlot)
	}

	if f.CFG == nil {
		fmt.Fprintln(w)
		return
	}
	for _, b := range f.CFG.Blocks {
		fmt.Fprintf(w, "block %d:", b.Index)
		if !b.Reachable {
			fmt.Fprint(w, " unreachable")
		}
		fmt.Fprintln(w)
		for i := b.First; i <= b.Last; i++ {
			in := f.Instrs[i]
			depth := "-"
			if i < len(f.Depths) && f.Depths[i] >= 0 {
				depth = fmt.Sprint(f.Depths[i])
			}
			fmt.Fprintf(w, "  %04x  %3s  %-18s %s\n", in.PC, depth, in.Op, operands(t, f, in))
		}
	}
	fmt.Fprintln(w)
}

// operands renders the immediates of in using the layout of its long form.
func operands(t *translate.Translation, f *translate.FunctionTranslation, in bytecode.Instruction) string {
	atom := func(a bytecode.AtomIndex) string {
		if a.IsTaggedInt() {
			return fmt.Sprint(a.Int())
		}
		return fmt.Sprintf("%q", t.Atoms.Name(a))
	}

	switch in.Canonical().Op.Format() {
	case bytecode.FmtI32:
		return fmt.Sprint(in.Value)
	case bytecode.FmtConst:
		return fmt.Sprintf("const %d", in.Const)
	case bytecode.FmtAtom:
		return atom(in.Atom)
	case bytecode.FmtU8, bytecode.FmtU16:
		return fmt.Sprint(in.Flags)
	case bytecode.FmtNpop, bytecode.FmtNpopU16:
		return fmt.Sprintf("argc=%d", in.Argc)
	case bytecode.FmtAtomU8:
		return fmt.Sprintf("%s flags=%d", atom(in.Atom), in.Flags)
	case bytecode.FmtAtomU16:
		return fmt.Sprintf("%s %d", atom(in.Atom), in.Local)
	case bytecode.FmtLoc:
		return fmt.Sprintf("%d %s", in.Local, t.LocalName(f, f.ArgCount()+int(in.Local)))
	case bytecode.FmtArg:
		return fmt.Sprintf("%d %s", in.Local, t.LocalName(f, int(in.Local)))
	case bytecode.FmtVarRef:
		if int(in.VarRef) < len(f.ClosureVars) {
			return fmt.Sprintf("%d %s", in.VarRef, t.Atoms.Name(f.ClosureVars[in.VarRef].Name))
		}
		return fmt.Sprint(in.VarRef)
	case bytecode.FmtLabel:
		return fmt.Sprintf("-> %04x", in.Target)
	case bytecode.FmtAtomLabelU8:
		return fmt.Sprintf("%s -> %04x flags=%d", atom(in.Atom), in.Target, in.Flags)
	}
	return ""
}
