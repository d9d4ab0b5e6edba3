package bytecode

// Payload is one structural event produced by the Parser.
type Payload interface {
	payload()
}

// VersionPayload reports the container version byte.
type VersionPayload struct {
	Version uint8
}

// HeaderSection carries the atom table built from the container header.
type HeaderSection struct {
	Count uint32
	Atoms *AtomTable
}

// ModuleHeaderPayload carries a module definition.
type ModuleHeaderPayload struct {
	Module *ModuleHeader
}

// FunctionHeaderPayload opens a function definition.
type FunctionHeaderPayload struct {
	Func   FuncIndex
	Parent FuncIndex
	Depth  int
	Header FunctionHeader
}

// FunctionLocals lists the function's arguments followed by its variables.
type FunctionLocals struct {
	Func   FuncIndex
	Locals []Local
}

// FunctionClosureVars lists the variables captured from the enclosing function.
type FunctionClosureVars struct {
	Func        FuncIndex
	ClosureVars []ClosureVar
}

// FunctionOperators carries the undecoded operator body of a function.
// Body is a sub-reader over the container; decode it with Decode.
type FunctionOperators struct {
	Func  FuncIndex
	Depth int
	Body  *Reader
}

// FunctionDebugInfo carries a function's source mapping.
type FunctionDebugInfo struct {
	Func  FuncIndex
	Debug DebugInfo
}

// EndPayload marks the end of the container.
type EndPayload struct{}

func (*VersionPayload) payload()        {}
func (*HeaderSection) payload()         {}
func (*ModuleHeaderPayload) payload()   {}
func (*FunctionHeaderPayload) payload() {}
func (*FunctionLocals) payload()        {}
func (*FunctionClosureVars) payload()   {}
func (*FunctionOperators) payload()     {}
func (*FunctionDebugInfo) payload()     {}
func (EndPayload) payload()             {}
