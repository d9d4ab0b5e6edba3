package wasmenc

import (
	"slices"
	"strings"

	"fortio.org/safecast"

	"github.com/wippyai/jac/errors"
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (t FuncType) key() string {
	var b strings.Builder
	for _, p := range t.Params {
		b.WriteByte(p)
	}
	b.WriteByte(funcTypeByte)
	for _, r := range t.Results {
		b.WriteByte(r)
	}
	return b.String()
}

// Import is an imported function.
type Import struct {
	Module string
	Name   string
	Type   uint32
}

// Global is a module-defined global with a constant initializer.
type Global struct {
	Init    int64
	Type    ValType
	Mutable bool
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Index uint32
	Kind  byte
}

// Custom is a custom section.
type Custom struct {
	Name string
	Data []byte
}

// Memory describes the single linear memory.
type Memory struct {
	Max    uint32
	Min    uint32
	HasMax bool
}

// Module assembles a core WebAssembly module. Function indices number the
// imports first, so every import must be added before the first function
// is declared.
type Module struct {
	typeIndex map[string]uint32
	memory    *Memory
	start     *uint32
	types     []FuncType
	imports   []Import
	funcs     []uint32
	bodies    [][]byte
	globals   []Global
	exports   []Export
	customs   []Custom
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{typeIndex: make(map[string]uint32)}
}

// Type returns the index of the signature, adding it on first use.
func (m *Module) Type(params, results []ValType) uint32 {
	t := FuncType{Params: slices.Clone(params), Results: slices.Clone(results)}
	k := t.key()
	if idx, ok := m.typeIndex[k]; ok {
		return idx
	}
	idx := uint32(len(m.types))
	m.types = append(m.types, t)
	m.typeIndex[k] = idx
	return idx
}

// Types returns the signatures in index order.
func (m *Module) Types() []FuncType {
	return m.types
}

// ImportFunc adds a function import and returns its function index.
func (m *Module) ImportFunc(module, name string, params, results []ValType) (uint32, error) {
	if len(m.funcs) > 0 {
		return 0, errors.New(errors.PhaseCodegen, errors.KindInvalidState).
			Path(module, name).
			Detail("import added after function declarations").
			Build()
	}
	m.imports = append(m.imports, Import{Module: module, Name: name, Type: m.Type(params, results)})
	return uint32(len(m.imports) - 1), nil
}

// Imports returns the function imports.
func (m *Module) Imports() []Import {
	return m.imports
}

// DeclareFunc reserves a function index; its body is supplied later with
// SetBody so that bodies may call functions declared after them.
func (m *Module) DeclareFunc(params, results []ValType) uint32 {
	m.funcs = append(m.funcs, m.Type(params, results))
	m.bodies = append(m.bodies, nil)
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// SetBody attaches an encoded body to a declared function.
func (m *Module) SetBody(idx uint32, body []byte) error {
	i := int(idx) - len(m.imports)
	if i < 0 || i >= len(m.funcs) {
		return errors.New(errors.PhaseCodegen, errors.KindNotFound).
			Value(idx).
			Detail("function %d is not declared", idx).
			Build()
	}
	m.bodies[i] = body
	return nil
}

// FuncType returns the signature of function idx, imported or defined.
func (m *Module) FuncType(idx uint32) (FuncType, bool) {
	i := int(idx)
	if i < len(m.imports) {
		return m.types[m.imports[i].Type], true
	}
	i -= len(m.imports)
	if i >= len(m.funcs) {
		return FuncType{}, false
	}
	return m.types[m.funcs[i]], true
}

// SetMemory defines memory 0.
func (m *Module) SetMemory(mem Memory) {
	m.memory = &mem
}

// AddGlobal defines a global and returns its index.
func (m *Module) AddGlobal(g Global) uint32 {
	m.globals = append(m.globals, g)
	return uint32(len(m.globals) - 1)
}

// Export adds an export.
func (m *Module) Export(name string, kind byte, idx uint32) {
	m.exports = append(m.exports, Export{Name: name, Kind: kind, Index: idx})
}

// Exports returns the exports.
func (m *Module) Exports() []Export {
	return m.exports
}

// SetStart sets the start function.
func (m *Module) SetStart(idx uint32) {
	m.start = &idx
}

// AddCustom appends a custom section.
func (m *Module) AddCustom(name string, data []byte) {
	m.customs = append(m.customs, Custom{Name: name, Data: data})
}

func count(n int) (uint32, error) {
	c, err := safecast.Conv[uint32](n)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseCodegen, errors.KindOverflow, err, "section entry count")
	}
	return c, nil
}

// Encode produces the module binary.
func (m *Module) Encode() ([]byte, error) {
	for i, body := range m.bodies {
		if body == nil {
			return nil, errors.New(errors.PhaseCodegen, errors.KindInvalidState).
				Value(len(m.imports)+i).
				Detail("function %d has no body", len(m.imports)+i).
				Build()
		}
	}

	w := NewWriter()
	w.U32LE(magic)
	w.U32LE(version)

	err := m.section(w, SectionType, len(m.types), func(sec *Writer, i int) {
		t := m.types[i]
		sec.Byte(funcTypeByte)
		writeValTypes(sec, t.Params)
		writeValTypes(sec, t.Results)
	})
	if err != nil {
		return nil, err
	}

	err = m.section(w, SectionImport, len(m.imports), func(sec *Writer, i int) {
		imp := m.imports[i]
		sec.Name(imp.Module)
		sec.Name(imp.Name)
		sec.Byte(KindFunc)
		sec.U32(imp.Type)
	})
	if err != nil {
		return nil, err
	}

	err = m.section(w, SectionFunction, len(m.funcs), func(sec *Writer, i int) {
		sec.U32(m.funcs[i])
	})
	if err != nil {
		return nil, err
	}

	if m.memory != nil {
		sec := NewWriter()
		sec.U32(1)
		writeLimits(sec, *m.memory)
		writeSection(w, SectionMemory, sec.Bytes())
	}

	err = m.section(w, SectionGlobal, len(m.globals), func(sec *Writer, i int) {
		g := m.globals[i]
		sec.Byte(g.Type)
		if g.Mutable {
			sec.Byte(1)
		} else {
			sec.Byte(0)
		}
		switch g.Type {
		case I32:
			sec.Byte(opI32Const)
			sec.S32(int32(g.Init))
		default:
			sec.Byte(opI64Const)
			sec.S64(g.Init)
		}
		sec.Byte(opEnd)
	})
	if err != nil {
		return nil, err
	}

	err = m.section(w, SectionExport, len(m.exports), func(sec *Writer, i int) {
		e := m.exports[i]
		sec.Name(e.Name)
		sec.Byte(e.Kind)
		sec.U32(e.Index)
	})
	if err != nil {
		return nil, err
	}

	if m.start != nil {
		sec := NewWriter()
		sec.U32(*m.start)
		writeSection(w, SectionStart, sec.Bytes())
	}

	err = m.section(w, SectionCode, len(m.bodies), func(sec *Writer, i int) {
		sec.Vec(m.bodies[i])
	})
	if err != nil {
		return nil, err
	}

	for _, cs := range m.customs {
		sec := NewWriter()
		sec.Name(cs.Name)
		sec.Raw(cs.Data)
		writeSection(w, SectionCustom, sec.Bytes())
	}
	return w.Bytes(), nil
}

func (m *Module) section(w *Writer, id byte, n int, entry func(sec *Writer, i int)) error {
	if n == 0 {
		return nil
	}
	c, err := count(n)
	if err != nil {
		return err
	}
	sec := NewWriter()
	sec.U32(c)
	for i := range n {
		entry(sec, i)
	}
	writeSection(w, id, sec.Bytes())
	return nil
}

func writeSection(w *Writer, id byte, data []byte) {
	w.Byte(id)
	w.Vec(data)
}

func writeValTypes(w *Writer, types []ValType) {
	w.U32(uint32(len(types)))
	for _, t := range types {
		w.Byte(t)
	}
}

func writeLimits(w *Writer, mem Memory) {
	if mem.HasMax {
		w.Byte(0x01)
		w.U32(mem.Min)
		w.U32(mem.Max)
		return
	}
	w.Byte(0x00)
	w.U32(mem.Min)
}
