package translate

import (
	"github.com/wippyai/jac/bytecode"
)

// Mode says how a function will execute.
type Mode uint8

const (
	ModeCompiled Mode = iota
	ModeInterpreted
)

func (m Mode) String() string {
	if m == ModeCompiled {
		return "compiled"
	}
	return "interpreted"
}

// SlotKind says where an argument or variable lives at run time.
type SlotKind uint8

const (
	// SlotRegister keeps the value in a wasm local of the compiled function.
	SlotRegister SlotKind = iota
	// SlotCell keeps the value in a shared cell of the activation
	// environment so closures can alias it.
	SlotCell
)

// Slot is the storage assignment of one argument or variable.
type Slot struct {
	Kind SlotKind
	// Env is the activation environment index of a SlotCell.
	Env uint32
}

// CaptureKind classifies where a closure variable comes from.
type CaptureKind uint8

const (
	// CaptureLocal captures one of the parent's variables.
	CaptureLocal CaptureKind = iota
	// CaptureArg captures one of the parent's arguments.
	CaptureArg
	// CaptureForwarded re-captures one of the parent's own closure variables.
	CaptureForwarded
)

func (k CaptureKind) String() string {
	switch k {
	case CaptureLocal:
		return "local"
	case CaptureArg:
		return "arg"
	case CaptureForwarded:
		return "forwarded"
	}
	return "unknown"
}

// Capture resolves one closure variable against the parent function.
type Capture struct {
	Kind CaptureKind
	// Source is the parent's variable, argument or closure variable index.
	Source uint32
	// ParentSlot is the parent activation environment index to alias.
	ParentSlot uint32
}

// Kind is the static type of a stack value as far as a block-local scan
// can tell.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInt32
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// Operands records the static kinds of the values an instruction consumes:
// A is the deeper operand of a binary instruction or the only operand of a
// unary one, B the top of the stack.
type Operands struct {
	A, B Kind
}

// FunctionTranslation is the analysed form of one function definition.
type FunctionTranslation struct {
	Header      bytecode.FunctionHeader
	Err         error
	Debug       *bytecode.DebugInfo
	CFG         *CFG
	Name        string
	Reason      string
	Locals      []bytecode.Local
	ClosureVars []bytecode.ClosureVar
	Children    []bytecode.FuncIndex
	// Instrs are the decoded operators in body order, short forms kept.
	Instrs []bytecode.Instruction
	// Depths holds the operand stack height before each instruction, -1
	// for instructions in unreachable blocks.
	Depths   []int
	Kinds    []Operands
	Slots    []Slot // arguments then variables
	Captures []Capture
	Index    bytecode.FuncIndex
	Parent   bytecode.FuncIndex
	Depth    int
	MaxStack int
	// BodyOffset is the absolute container offset of the operator body.
	BodyOffset int
	FreshSlots int
	Mode       Mode

	body *bytecode.Reader
}

// ArgCount returns the number of declared arguments.
func (f *FunctionTranslation) ArgCount() int {
	return int(f.Header.ArgCount)
}

// VarCount returns the number of declared variables.
func (f *FunctionTranslation) VarCount() int {
	return int(f.Header.VarCount)
}

// EnvSlots returns the size of the activation environment: closure
// variables followed by the function's own captured slots.
func (f *FunctionTranslation) EnvSlots() int {
	return len(f.ClosureVars) + f.FreshSlots
}

// Compiled reports whether the function will be lowered to wasm.
func (f *FunctionTranslation) Compiled() bool {
	return f.Mode == ModeCompiled
}

// ArgSlot returns the slot of argument i.
func (f *FunctionTranslation) ArgSlot(i int) Slot {
	return f.Slots[i]
}

// VarSlot returns the slot of variable i.
func (f *FunctionTranslation) VarSlot(i int) Slot {
	return f.Slots[f.ArgCount()+i]
}

// Translation is the result of translating one container.
type Translation struct {
	Atoms   *bytecode.AtomTable
	Module  *bytecode.ModuleHeader
	Funcs   []*FunctionTranslation
	Version uint8
}

// Root returns the outermost function.
func (t *Translation) Root() *FunctionTranslation {
	if len(t.Funcs) == 0 {
		return nil
	}
	return t.Funcs[0]
}

// Func returns the function with index i.
func (t *Translation) Func(i bytecode.FuncIndex) (*FunctionTranslation, bool) {
	if int64(i) >= int64(len(t.Funcs)) {
		return nil, false
	}
	return t.Funcs[i], true
}

// Degraded returns the functions left to the interpreter.
func (t *Translation) Degraded() []*FunctionTranslation {
	var out []*FunctionTranslation
	for _, f := range t.Funcs {
		if !f.Compiled() {
			out = append(out, f)
		}
	}
	return out
}

// LocalName returns the name of local i (arguments first) of f.
func (t *Translation) LocalName(f *FunctionTranslation, i int) string {
	if i < 0 || i >= len(f.Locals) {
		return ""
	}
	return t.Atoms.Name(f.Locals[i].Name)
}

// SlotNames returns the variable names of f's activation environment in
// layout order.
func (t *Translation) SlotNames(f *FunctionTranslation) []string {
	names := make([]string, f.EnvSlots())
	for i, cv := range f.ClosureVars {
		names[i] = t.Atoms.Name(cv.Name)
	}
	for i, s := range f.Slots {
		if s.Kind == SlotCell && int(s.Env) < len(names) {
			names[s.Env] = t.LocalName(f, i)
		}
	}
	return names
}
