package bytecode

import (
	"iter"
	"strconv"

	"fortio.org/safecast"

	"github.com/wippyai/jac/errors"
)

// State is the parser's position in the container grammar.
type State uint8

const (
	StateVersion State = iota
	StateHeader
	StateTags
	StateFunctionLocals
	StateFunctionClosureVars
	StateFunctionOperators
	StateDebug
	StateEnd
)

var stateNames = [...]string{
	StateVersion:             "Version",
	StateHeader:              "Header",
	StateTags:                "Tags",
	StateFunctionLocals:      "FunctionLocals",
	StateFunctionClosureVars: "FunctionClosureVars",
	StateFunctionOperators:   "FunctionOperators",
	StateDebug:               "Debug",
	StateEnd:                 "End",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// ErrDone is returned by Next once the parser has finished or failed.
var ErrDone = errors.New(errors.PhaseParse, errors.KindInvalidState).Detail("parser is done").Build()

// funcMeta is the per-function record kept while a definition is open.
type funcMeta struct {
	index         FuncIndex
	header        FunctionHeader
	pendingConsts uint32
}

// Parser walks a bytecode container one structural unit per Next call.
// A Parser is single use: after End or an error every call returns ErrDone.
type Parser struct {
	r     *Reader
	atoms *AtomTable
	stack []funcMeta
	state State
	next  FuncIndex
	done  bool
}

// NewParser creates a parser over data. The data is borrowed, not copied.
func NewParser(data []byte) *Parser {
	return &Parser{r: NewReader(data), atoms: NewAtomTable()}
}

// State returns the state the next call to Next will parse.
func (p *Parser) State() State {
	return p.state
}

// Done reports whether the parser has finished or failed.
func (p *Parser) Done() bool {
	return p.done
}

// Offset returns the absolute offset of the next byte to be read.
func (p *Parser) Offset() int {
	return p.r.Position()
}

// Depth returns the current function nesting depth, -1 outside functions.
func (p *Parser) Depth() int {
	return len(p.stack) - 1
}

// Atoms returns the atom table. It is complete after the HeaderSection payload.
func (p *Parser) Atoms() *AtomTable {
	return p.atoms
}

// Next parses and returns the next payload.
func (p *Parser) Next() (Payload, error) {
	if p.done {
		return nil, ErrDone
	}

	var (
		pl  Payload
		err error
	)
	switch p.state {
	case StateVersion:
		pl, err = p.parseVersion()
	case StateHeader:
		pl, err = p.parseHeader()
	case StateTags:
		pl, err = p.parseTag()
	case StateFunctionLocals:
		pl, err = p.parseLocals()
	case StateFunctionClosureVars:
		pl, err = p.parseClosureVars()
	case StateFunctionOperators:
		pl, err = p.parseOperators()
	case StateDebug:
		pl, err = p.parseDebug()
	case StateEnd:
		p.done = true
		return EndPayload{}, nil
	default:
		err = p.invalid(p.r.Position(), "unknown state")
	}

	if err != nil {
		return nil, p.fail(err)
	}
	return pl, nil
}

// fail attaches the current state to err and stops the parser.
func (p *Parser) fail(err error) error {
	p.done = true
	if e, ok := err.(*errors.Error); ok {
		c := *e
		c.Phase = errors.PhaseParse
		if c.State == "" {
			c.State = p.state.String()
		}
		return &c
	}
	return errors.New(errors.PhaseParse, errors.KindInvalidData).
		Offset(p.r.Position()).
		State(p.state.String()).
		Cause(err).
		Build()
}

func (p *Parser) invalid(offset int, detail string, args ...any) error {
	return errors.New(errors.PhaseParse, errors.KindInvalidState).
		Offset(offset).
		Detail(detail, args...).
		Build()
}

func (p *Parser) top() *funcMeta {
	if len(p.stack) == 0 {
		return nil
	}
	return &p.stack[len(p.stack)-1]
}

func (p *Parser) parseVersion() (Payload, error) {
	start := p.r.Position()
	v, err := p.r.ReadU8()
	if err != nil {
		return nil, err
	}
	if v != Version {
		return nil, errors.New(errors.PhaseParse, errors.KindUnsupportedVersion).
			Offset(start).
			Value(v).
			Detail("version %d, want %d", v, Version).
			Build()
	}
	p.state = StateHeader
	return &VersionPayload{Version: v}, nil
}

func (p *Parser) parseHeader() (Payload, error) {
	count, err := p.r.ReadLEB128()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		kind, err := p.r.ReadU8()
		if err != nil {
			return nil, err
		}
		if kind == 0 {
			v, err := p.r.ReadU32()
			if err != nil {
				return nil, err
			}
			p.atoms.push(strconv.FormatUint(uint64(v), 10))
			continue
		}
		name, err := p.r.ReadString()
		if err != nil {
			return nil, err
		}
		p.atoms.push(name)
	}
	p.state = StateTags
	return &HeaderSection{Count: count, Atoms: p.atoms}, nil
}

func (p *Parser) parseTag() (Payload, error) {
	start := p.r.Position()
	b, err := p.r.ReadU8()
	if err != nil {
		return nil, err
	}
	tag := Tag(b)

	var pl Payload
	switch {
	case tag == TagModule && len(p.stack) == 0:
		m, err := p.parseModule()
		if err != nil {
			return nil, err
		}
		pl = &ModuleHeaderPayload{Module: m}
	case tag == TagFunctionBytecode:
		pl, err = p.parseFunctionHeader()
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(errors.PhaseParse, errors.KindUnsupportedTag).
			Offset(start).
			Value(b).
			Detail("tag 0x%02x (%s)", b, tag).
			Build()
	}

	if len(p.stack) == 0 && p.r.Done() {
		p.state = StateEnd
	}
	return pl, nil
}

func (p *Parser) parseFunctionHeader() (Payload, error) {
	var h FunctionHeader
	flags, err := p.r.ReadU16()
	if err != nil {
		return nil, err
	}
	h.Flags = FunctionFlags(flags)
	if h.JSMode, err = p.r.ReadU8(); err != nil {
		return nil, err
	}
	if h.Name, err = p.r.ReadAtom(); err != nil {
		return nil, err
	}
	for _, dst := range []*uint32{
		&h.ArgCount, &h.VarCount, &h.DefinedArgCount, &h.StackSize,
		&h.ClosureVarCount, &h.ConstPoolSize, &h.BytecodeLen, &h.LocalCount,
	} {
		if *dst, err = p.r.ReadLEB128(); err != nil {
			return nil, err
		}
	}

	parent := NoFunc
	if t := p.top(); t != nil {
		if t.pendingConsts == 0 {
			return nil, p.invalid(p.r.Position(), "nested function without constant pool entry")
		}
		t.pendingConsts--
		parent = t.index
	}

	idx := p.next
	p.next++
	p.stack = append(p.stack, funcMeta{index: idx, header: h})
	p.state = StateFunctionLocals

	return &FunctionHeaderPayload{
		Func:   idx,
		Parent: parent,
		Depth:  len(p.stack) - 1,
		Header: h,
	}, nil
}

func (p *Parser) parseLocals() (Payload, error) {
	meta := p.top()
	if meta == nil {
		return nil, p.invalid(p.r.Position(), "locals outside a function")
	}
	locals := make([]Local, 0, p.capHint(meta.header.LocalCount))
	for i := uint32(0); i < meta.header.LocalCount; i++ {
		var l Local
		var err error
		if l.Name, err = p.r.ReadAtom(); err != nil {
			return nil, err
		}
		if l.ScopeLevel, err = p.r.ReadLEB128(); err != nil {
			return nil, err
		}
		if l.ScopeNext, err = p.r.ReadLEB128(); err != nil {
			return nil, err
		}
		if l.Flags, err = p.r.ReadU8(); err != nil {
			return nil, err
		}
		locals = append(locals, l)
	}
	p.state = StateFunctionClosureVars
	return &FunctionLocals{Func: meta.index, Locals: locals}, nil
}

func (p *Parser) parseClosureVars() (Payload, error) {
	meta := p.top()
	if meta == nil {
		return nil, p.invalid(p.r.Position(), "closure vars outside a function")
	}
	vars := make([]ClosureVar, 0, p.capHint(meta.header.ClosureVarCount))
	for i := uint32(0); i < meta.header.ClosureVarCount; i++ {
		var cv ClosureVar
		var err error
		if cv.Name, err = p.r.ReadAtom(); err != nil {
			return nil, err
		}
		if cv.Index, err = p.r.ReadLEB128(); err != nil {
			return nil, err
		}
		flags, err := p.r.ReadU8()
		if err != nil {
			return nil, err
		}
		decodeClosureVarFlags(&cv, flags)
		vars = append(vars, cv)
	}

	if meta.header.ConstPoolSize > 0 {
		meta.pendingConsts = meta.header.ConstPoolSize
		p.state = StateTags
	} else {
		p.state = StateFunctionOperators
	}
	return &FunctionClosureVars{Func: meta.index, ClosureVars: vars}, nil
}

func (p *Parser) parseOperators() (Payload, error) {
	meta := p.top()
	if meta == nil {
		return nil, p.invalid(p.r.Position(), "operators outside a function")
	}
	n, err := safecast.Conv[int](meta.header.BytecodeLen)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseParse, p.r.Position(), "bytecode length does not fit in int")
	}
	body, err := p.r.Slice(n)
	if err != nil {
		return nil, err
	}
	pl := &FunctionOperators{Func: meta.index, Depth: len(p.stack) - 1, Body: body}
	if meta.header.Flags.HasDebug() {
		p.state = StateDebug
	} else {
		p.exitFunction()
	}
	return pl, nil
}

func (p *Parser) parseDebug() (Payload, error) {
	meta := p.top()
	if meta == nil {
		return nil, p.invalid(p.r.Position(), "debug info outside a function")
	}
	var d DebugInfo
	var err error
	if d.Filename, err = p.r.ReadAtom(); err != nil {
		return nil, err
	}
	if d.Line, err = p.r.ReadLEB128(); err != nil {
		return nil, err
	}
	if d.Column, err = p.r.ReadLEB128(); err != nil {
		return nil, err
	}
	if d.PC2Line, err = p.readBlob(); err != nil {
		return nil, err
	}
	if d.Source, err = p.readBlob(); err != nil {
		return nil, err
	}
	pl := &FunctionDebugInfo{Func: meta.index, Debug: d}
	p.exitFunction()
	return pl, nil
}

// readBlob reads a length-prefixed byte string; length 0 means absent.
func (p *Parser) readBlob() ([]byte, error) {
	sub, err := p.r.SliceLEB()
	if err != nil {
		return nil, err
	}
	if sub.Len() == 0 {
		return nil, nil
	}
	return sub.Bytes(), nil
}

// exitFunction pops the finished function and picks the state that resumes
// its parent: more constant pool entries or the parent's operators.
func (p *Parser) exitFunction() {
	p.stack = p.stack[:len(p.stack)-1]
	parent := p.top()
	switch {
	case parent == nil:
		p.state = StateEnd
	case parent.pendingConsts > 0:
		p.state = StateTags
	default:
		p.state = StateFunctionOperators
	}
}

func (p *Parser) parseModule() (*ModuleHeader, error) {
	m := &ModuleHeader{}
	var err error
	if m.Name, err = p.r.ReadAtom(); err != nil {
		return nil, err
	}

	n, err := p.r.ReadLEB128()
	if err != nil {
		return nil, err
	}
	m.Requires = make([]AtomIndex, 0, p.capHint(n))
	for i := uint32(0); i < n; i++ {
		a, err := p.r.ReadAtom()
		if err != nil {
			return nil, err
		}
		m.Requires = append(m.Requires, a)
	}

	if n, err = p.r.ReadLEB128(); err != nil {
		return nil, err
	}
	m.Exports = make([]Export, 0, p.capHint(n))
	for i := uint32(0); i < n; i++ {
		t, err := p.r.ReadU8()
		if err != nil {
			return nil, err
		}
		e := Export{Type: ExportType(t), LocalName: NoAtom}
		if e.Type == ExportLocal {
			if e.VarIndex, err = p.r.ReadLEB128(); err != nil {
				return nil, err
			}
		} else {
			e.Type = ExportIndirect
			if e.Module, err = p.r.ReadLEB128(); err != nil {
				return nil, err
			}
			if e.LocalName, err = p.r.ReadAtom(); err != nil {
				return nil, err
			}
		}
		if e.ExportName, err = p.r.ReadAtom(); err != nil {
			return nil, err
		}
		m.Exports = append(m.Exports, e)
	}

	if n, err = p.r.ReadLEB128(); err != nil {
		return nil, err
	}
	m.StarExports = make([]uint32, 0, p.capHint(n))
	for i := uint32(0); i < n; i++ {
		v, err := p.r.ReadLEB128()
		if err != nil {
			return nil, err
		}
		m.StarExports = append(m.StarExports, v)
	}

	if n, err = p.r.ReadLEB128(); err != nil {
		return nil, err
	}
	m.Imports = make([]Import, 0, p.capHint(n))
	for i := uint32(0); i < n; i++ {
		var imp Import
		if imp.VarIndex, err = p.r.ReadLEB128(); err != nil {
			return nil, err
		}
		if imp.Name, err = p.r.ReadAtom(); err != nil {
			return nil, err
		}
		if imp.Module, err = p.r.ReadLEB128(); err != nil {
			return nil, err
		}
		m.Imports = append(m.Imports, imp)
	}

	tla, err := p.r.ReadU8()
	if err != nil {
		return nil, err
	}
	m.HasTLA = tla != 0
	return m, nil
}

// capHint bounds a preallocation by the bytes left, so a corrupt count
// fails on read instead of allocating.
func (p *Parser) capHint(n uint32) int {
	rem := p.r.Remaining()
	if int64(n) > int64(rem) {
		return rem
	}
	return int(n)
}

// All returns the payloads of data as a sequence. Iteration stops after the
// End payload or after yielding the first error.
func All(data []byte) iter.Seq2[Payload, error] {
	return func(yield func(Payload, error) bool) {
		p := NewParser(data)
		for !p.Done() {
			pl, err := p.Next()
			if !yield(pl, err) || err != nil {
				return
			}
		}
	}
}

// Parse collects every payload of data.
func Parse(data []byte) ([]Payload, error) {
	var out []Payload
	for pl, err := range All(data) {
		if err != nil {
			return out, err
		}
		out = append(out, pl)
	}
	return out, nil
}
