package bytecode

// Version is the only container format version the parser accepts.
const Version uint8 = 2

// Tag selects the kind of object serialized next in the container.
type Tag uint8

const (
	TagNull Tag = iota + 1
	TagUndefined
	TagBoolFalse
	TagBoolTrue
	TagInt32
	TagFloat64
	TagString
	TagObject
	TagArray
	TagBigInt
	TagTemplateObject
	TagFunctionBytecode
	TagModule
	TagTypedArray
	TagArrayBuffer
	TagSharedArrayBuffer
	TagDate
	TagObjectValue
	TagObjectReference
)

var tagNames = map[Tag]string{
	TagNull:              "null",
	TagUndefined:         "undefined",
	TagBoolFalse:         "false",
	TagBoolTrue:          "true",
	TagInt32:             "int32",
	TagFloat64:           "float64",
	TagString:            "string",
	TagObject:            "object",
	TagArray:             "array",
	TagBigInt:            "bigint",
	TagTemplateObject:    "template_object",
	TagFunctionBytecode:  "function_bytecode",
	TagModule:            "module",
	TagTypedArray:        "typed_array",
	TagArrayBuffer:       "array_buffer",
	TagSharedArrayBuffer: "shared_array_buffer",
	TagDate:              "date",
	TagObjectValue:       "object_value",
	TagObjectReference:   "object_reference",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return "unknown"
}

// FuncKind distinguishes plain functions from generators and async functions.
type FuncKind uint8

const (
	FuncNormal FuncKind = iota
	FuncGenerator
	FuncAsync
	FuncAsyncGenerator
)

func (k FuncKind) String() string {
	switch k {
	case FuncNormal:
		return "normal"
	case FuncGenerator:
		return "generator"
	case FuncAsync:
		return "async"
	case FuncAsyncGenerator:
		return "async_generator"
	}
	return "unknown"
}

// FunctionFlags is the packed u16 flag word of a function header.
type FunctionFlags uint16

func (f FunctionFlags) bit(n uint) bool { return f&(1<<n) != 0 }

func (f FunctionFlags) HasPrototype() bool              { return f.bit(0) }
func (f FunctionFlags) HasSimpleParameterList() bool    { return f.bit(1) }
func (f FunctionFlags) IsDerivedClassConstructor() bool { return f.bit(2) }
func (f FunctionFlags) NeedHomeObject() bool            { return f.bit(3) }
func (f FunctionFlags) Kind() FuncKind                  { return FuncKind((f >> 4) & 3) }
func (f FunctionFlags) NewTargetAllowed() bool          { return f.bit(6) }
func (f FunctionFlags) SuperCallAllowed() bool          { return f.bit(7) }
func (f FunctionFlags) SuperAllowed() bool              { return f.bit(8) }
func (f FunctionFlags) HasDebug() bool                  { return f.bit(9) }
func (f FunctionFlags) BacktraceBarrier() bool          { return f.bit(10) }

// Flag bits used when building headers.
const (
	FlagHasPrototype     FunctionFlags = 1 << 0
	FlagSimpleParameters FunctionFlags = 1 << 1
	FlagHasDebug         FunctionFlags = 1 << 9
)

// FunctionHeader is the fixed-shape prefix of a function definition.
type FunctionHeader struct {
	Flags           FunctionFlags
	JSMode          uint8
	Name            AtomIndex
	ArgCount        uint32
	VarCount        uint32
	DefinedArgCount uint32
	StackSize       uint32
	ClosureVarCount uint32
	ConstPoolSize   uint32
	BytecodeLen     uint32
	LocalCount      uint32
}

// Strict reports whether the function runs in strict mode.
func (h *FunctionHeader) Strict() bool {
	return h.JSMode&1 != 0
}

// VarKind classifies how a variable was declared.
type VarKind uint8

const (
	VarNormal VarKind = iota
	VarFunctionDecl
	VarNewFunctionDecl
	VarCatch
	VarFunctionName
	VarPrivateField
	VarPrivateMethod
	VarPrivateGetter
	VarPrivateSetter
	VarPrivateGetterSetter
)

// Local describes one argument or variable of a function. The first
// ArgCount entries describe arguments.
type Local struct {
	Name       AtomIndex
	ScopeLevel uint32
	ScopeNext  uint32
	Flags      uint8
}

func (l Local) Kind() VarKind   { return VarKind(l.Flags & 0x0f) }
func (l Local) IsConst() bool   { return l.Flags&(1<<4) != 0 }
func (l Local) IsLexical() bool { return l.Flags&(1<<5) != 0 }
func (l Local) IsCaptured() bool {
	return l.Flags&(1<<6) != 0
}

// ClosureVar describes one variable captured from the enclosing function.
// Index refers to the parent's argument (IsArg), variable (IsLocal) or
// closure variable (neither).
type ClosureVar struct {
	Name      AtomIndex
	Index     uint32
	IsLocal   bool
	IsArg     bool
	IsConst   bool
	IsLexical bool
	Kind      VarKind
}

func decodeClosureVarFlags(cv *ClosureVar, flags uint8) {
	cv.IsLocal = flags&1 != 0
	cv.IsArg = flags&2 != 0
	cv.IsConst = flags&4 != 0
	cv.IsLexical = flags&8 != 0
	cv.Kind = VarKind(flags >> 4)
}

// EncodeFlags packs the descriptor flags the way the container stores them.
func (cv ClosureVar) EncodeFlags() uint8 {
	var f uint8
	if cv.IsLocal {
		f |= 1
	}
	if cv.IsArg {
		f |= 2
	}
	if cv.IsConst {
		f |= 4
	}
	if cv.IsLexical {
		f |= 8
	}
	return f | uint8(cv.Kind)<<4
}

// DebugInfo carries the optional source mapping of a function.
type DebugInfo struct {
	Filename AtomIndex
	Line     uint32
	Column   uint32
	PC2Line  []byte
	Source   []byte
}

// ExportType distinguishes local exports from re-exports.
type ExportType uint8

const (
	ExportLocal    ExportType = 0
	ExportIndirect ExportType = 1
)

// Export is one entry of a module's export list.
type Export struct {
	Type       ExportType
	VarIndex   uint32 // local exports
	Module     uint32 // indirect exports: required module index
	LocalName  AtomIndex
	ExportName AtomIndex
}

// Import is one entry of a module's import list.
type Import struct {
	VarIndex uint32
	Name     AtomIndex
	Module   uint32
}

// ModuleHeader is the module definition preceding the module's function.
type ModuleHeader struct {
	Name        AtomIndex
	Requires    []AtomIndex
	Exports     []Export
	StarExports []uint32
	Imports     []Import
	HasTLA      bool
}
