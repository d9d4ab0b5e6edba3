package bcasm

import (
	"encoding/binary"

	"github.com/wippyai/jac/bytecode"
)

// Var declares a function variable.
type Var struct {
	Name     string
	Captured bool
	Lexical  bool
	Const    bool
}

// ClosureVar declares a variable captured from the enclosing function.
type ClosureVar struct {
	Name    string
	Index   uint32
	IsLocal bool
	IsArg   bool
	IsConst bool
	Lexical bool
}

// Debug declares a function's source mapping.
type Debug struct {
	Filename string
	Line     uint32
	Column   uint32
	PC2Line  []byte
	Source   []byte
}

// Func declares one function definition. Children form its constant pool
// in order.
type Func struct {
	Name        string
	Kind        bytecode.FuncKind
	Strict      bool
	Args        []string
	Vars        []Var
	ClosureVars []ClosureVar
	Children    []*Func
	Code        *Code
	StackSize   uint32
	Debug       *Debug
	// ConstPoolSize overrides len(Children) when non-zero.
	ConstPoolSize uint32
}

// Export declares a module export. Local exports use VarIndex, indirect ones
// Module and Local.
type Export struct {
	Indirect bool
	VarIndex uint32
	Module   uint32
	Local    string
	Name     string
}

// Import declares a module import.
type Import struct {
	VarIndex uint32
	Name     string
	Module   uint32
}

// Module declares a module definition preceding the root function.
type Module struct {
	Name        string
	Requires    []string
	Exports     []Export
	StarExports []uint32
	Imports     []Import
	HasTLA      bool
}

// Container declares a complete bytecode container.
type Container struct {
	Version uint8 // zero means bytecode.Version
	Module  *Module
	Root    *Func
	// Placeholders adds numeric header entries (type byte 0).
	Placeholders []uint32
}

type encoder struct {
	buf          []byte
	atoms        map[string]uint32
	names        []string
	placeholders int
}

// AtomOf returns the built-in atom index of name, or NoAtom when the name is
// not predefined and would be declared in the container header.
func AtomOf(name string) bytecode.AtomIndex {
	if a, ok := bytecode.NewAtomTable().Index(name); ok && int(a) < bytecode.BuiltinAtomCount {
		return a
	}
	return bytecode.NoAtom
}

// Bytes encodes the container.
func (c *Container) Bytes() []byte {
	e := &encoder{atoms: map[string]uint32{}}
	e.placeholders = len(c.Placeholders)

	// Intern names first so the header can be written up front.
	if c.Module != nil {
		e.internModule(c.Module)
	}
	if c.Root != nil {
		e.internFunc(c.Root)
	}

	var body encoder
	body.atoms = e.atoms
	body.placeholders = e.placeholders
	if c.Module != nil {
		body.module(c.Module)
	}
	if c.Root != nil {
		body.function(c.Root)
	}

	v := c.Version
	if v == 0 {
		v = bytecode.Version
	}
	out := []byte{v}
	out = binary.AppendUvarint(out, uint64(len(c.Placeholders)+len(e.names)))
	for _, p := range c.Placeholders {
		out = append(out, 0)
		out = binary.LittleEndian.AppendUint32(out, p)
	}
	for _, n := range e.names {
		out = append(out, 1)
		out = binary.AppendUvarint(out, uint64(len(n))<<1)
		out = append(out, n...)
	}
	return append(out, body.buf...)
}

func (e *encoder) intern(name string) {
	if _, ok := e.atoms[name]; ok {
		return
	}
	if a := AtomOf(name); a != bytecode.NoAtom {
		e.atoms[name] = uint32(a)
		return
	}
	e.atoms[name] = uint32(bytecode.BuiltinAtomCount + e.placeholders + len(e.names))
	e.names = append(e.names, name)
}

func (e *encoder) internModule(m *Module) {
	e.intern(m.Name)
	for _, r := range m.Requires {
		e.intern(r)
	}
	for _, x := range m.Exports {
		if x.Indirect {
			e.intern(x.Local)
		}
		e.intern(x.Name)
	}
	for _, i := range m.Imports {
		e.intern(i.Name)
	}
}

func (e *encoder) internFunc(f *Func) {
	e.intern(f.Name)
	for _, a := range f.Args {
		e.intern(a)
	}
	for _, v := range f.Vars {
		e.intern(v.Name)
	}
	for _, cv := range f.ClosureVars {
		e.intern(cv.Name)
	}
	for _, ch := range f.Children {
		e.internFunc(ch)
	}
	if f.Debug != nil {
		e.intern(f.Debug.Filename)
	}
}

func (e *encoder) u8(v byte) { e.buf = append(e.buf, v) }

func (e *encoder) leb(v uint32) { e.buf = binary.AppendUvarint(e.buf, uint64(v)) }

func (e *encoder) atom(name string) { e.leb(e.atoms[name] << 1) }

func (e *encoder) blob(b []byte) {
	e.leb(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) module(m *Module) {
	e.u8(byte(bytecode.TagModule))
	e.atom(m.Name)
	e.leb(uint32(len(m.Requires)))
	for _, r := range m.Requires {
		e.atom(r)
	}
	e.leb(uint32(len(m.Exports)))
	for _, x := range m.Exports {
		if x.Indirect {
			e.u8(byte(bytecode.ExportIndirect))
			e.leb(x.Module)
			e.atom(x.Local)
		} else {
			e.u8(byte(bytecode.ExportLocal))
			e.leb(x.VarIndex)
		}
		e.atom(x.Name)
	}
	e.leb(uint32(len(m.StarExports)))
	for _, s := range m.StarExports {
		e.leb(s)
	}
	e.leb(uint32(len(m.Imports)))
	for _, i := range m.Imports {
		e.leb(i.VarIndex)
		e.atom(i.Name)
		e.leb(i.Module)
	}
	if m.HasTLA {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) function(f *Func) {
	var code []byte
	if f.Code != nil {
		code = f.Code.Bytes()
	}
	flags := bytecode.FlagSimpleParameters | bytecode.FunctionFlags(f.Kind)<<4
	if f.Debug != nil {
		flags |= bytecode.FlagHasDebug
	}
	cpool := f.ConstPoolSize
	if cpool == 0 {
		cpool = uint32(len(f.Children))
	}
	stack := f.StackSize
	if stack == 0 {
		stack = 16
	}

	e.u8(byte(bytecode.TagFunctionBytecode))
	e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(flags))
	if f.Strict {
		e.u8(1)
	} else {
		e.u8(0)
	}
	e.atom(f.Name)
	e.leb(uint32(len(f.Args)))
	e.leb(uint32(len(f.Vars)))
	e.leb(uint32(len(f.Args)))
	e.leb(stack)
	e.leb(uint32(len(f.ClosureVars)))
	e.leb(cpool)
	e.leb(uint32(len(code)))
	e.leb(uint32(len(f.Args) + len(f.Vars)))

	for _, a := range f.Args {
		e.atom(a)
		e.leb(0)
		e.leb(0)
		e.u8(0)
	}
	for _, v := range f.Vars {
		e.atom(v.Name)
		e.leb(1)
		e.leb(0)
		var fl byte
		if v.Const {
			fl |= 1 << 4
		}
		if v.Lexical {
			fl |= 1 << 5
		}
		if v.Captured {
			fl |= 1 << 6
		}
		e.u8(fl)
	}
	for _, cv := range f.ClosureVars {
		e.atom(cv.Name)
		e.leb(cv.Index)
		e.u8(bytecode.ClosureVar{
			IsLocal:   cv.IsLocal,
			IsArg:     cv.IsArg,
			IsConst:   cv.IsConst,
			IsLexical: cv.Lexical,
		}.EncodeFlags())
	}
	for _, ch := range f.Children {
		e.function(ch)
	}
	e.buf = append(e.buf, code...)
	if f.Debug != nil {
		e.atom(f.Debug.Filename)
		e.leb(f.Debug.Line)
		e.leb(f.Debug.Column)
		e.blob(f.Debug.PC2Line)
		e.blob(f.Debug.Source)
	}
}
