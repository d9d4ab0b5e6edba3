package codegen

import (
	"go.uber.org/zap"

	"github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/internal/wasmenc"
	"github.com/wippyai/jac/jacrt"
	"github.com/wippyai/jac/translate"
)

// Module is a generated WebAssembly module together with the manifest the
// runtime loads it with.
type Module struct {
	Manifest *jacrt.Manifest
	Wasm     []byte
}

// Generate lowers every compiled function of t and assembles the module.
// A function whose lowering hits an unsupported construct is degraded to
// the interpreter in t and reported in the manifest.
func Generate(t *translate.Translation, opts Options) (*Module, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	root := t.Root()
	if root == nil {
		return nil, errors.InvalidInput(errors.PhaseCodegen, "translation has no functions")
	}

	bodies := make(map[uint32][]byte)
	for _, f := range t.Funcs {
		if !f.Compiled() {
			continue
		}
		body, err := lowerFunction(t, f, opts)
		if err != nil {
			if !errors.IsUnsupported(err) {
				return nil, err
			}
			f.Degrade(err)
			Logger().Info("function degraded",
				zap.Stringer("func", f.Index),
				zap.String("reason", f.Reason))
			continue
		}
		bodies[uint32(f.Index)] = body
	}

	m := wasmenc.NewModule()
	for _, fn := range jacrt.ABI {
		if _, err := m.ImportFunc(jacrt.HostModule, fn.Name, fn.Params, fn.Results); err != nil {
			return nil, err
		}
	}
	m.SetMemory(wasmenc.Memory{
		Min:    opts.MemoryPages,
		Max:    opts.MaxMemoryPages,
		HasMax: opts.MaxMemoryPages > 0,
	})
	m.Export(jacrt.MemoryExport, wasmenc.KindMemory, 0)
	m.AddGlobal(wasmenc.Global{Type: wasmenc.I32, Mutable: true, Init: ArgStackBase})
	m.AddGlobal(wasmenc.Global{Type: wasmenc.I32, Mutable: true, Init: int64(opts.HeapBase())})
	ctxGlobal := m.AddGlobal(wasmenc.Global{Type: wasmenc.I32, Mutable: true})
	m.Export(jacrt.CtxExport, wasmenc.KindGlobal, ctxGlobal)

	var names []funcName
	for _, f := range t.Funcs {
		body, ok := bodies[uint32(f.Index)]
		if !ok {
			continue
		}
		idx := m.DeclareFunc(jacrt.EntryParams, jacrt.EntryResults)
		if err := m.SetBody(idx, body); err != nil {
			return nil, err
		}
		export := jacrt.ExportName(uint32(f.Index))
		m.Export(export, wasmenc.KindFunc, idx)
		names = append(names, funcName{idx, export})
	}

	realloc := m.DeclareFunc(reallocParams, reallocResults)
	if err := setBody(m, realloc, reallocBody()); err != nil {
		return nil, err
	}
	m.Export(jacrt.ReallocExport, wasmenc.KindFunc, realloc)
	names = append(names, funcName{realloc, jacrt.ReallocExport})

	main := m.DeclareFunc(nil, jacrt.EntryResults)
	if err := setBody(m, main, mainBody(t, bodies)); err != nil {
		return nil, err
	}
	m.Export(jacrt.MainExport, wasmenc.KindFunc, main)
	names = append(names, funcName{main, jacrt.MainExport})

	start := m.DeclareFunc(nil, nil)
	if err := setBody(m, start, startBody(main)); err != nil {
		return nil, err
	}
	m.Export(jacrt.StartExport, wasmenc.KindFunc, start)
	names = append(names, funcName{start, jacrt.StartExport})

	manifest := BuildManifest(t)
	data, err := manifest.Marshal()
	if err != nil {
		return nil, err
	}
	m.AddCustom(jacrt.ManifestSection, data)
	if opts.NameSection {
		m.AddCustom("name", nameSection(names))
	}

	wasm, err := m.Encode()
	if err != nil {
		return nil, err
	}
	Logger().Debug("generated",
		zap.Int("funcs", len(t.Funcs)),
		zap.Int("compiled", len(bodies)),
		zap.Int("bytes", len(wasm)))
	return &Module{Wasm: wasm, Manifest: manifest}, nil
}

func setBody(m *wasmenc.Module, idx uint32, c *wasmenc.Code) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	return m.SetBody(idx, body)
}

// BuildManifest describes every function of t in FuncIndex order.
func BuildManifest(t *translate.Translation) *jacrt.Manifest {
	m := &jacrt.Manifest{Version: jacrt.ManifestVersion, Funcs: make([]jacrt.FuncInfo, len(t.Funcs))}
	for i, f := range t.Funcs {
		info := jacrt.FuncInfo{
			Name:        f.Name,
			Mode:        jacrt.ModeInterpreted,
			Reason:      f.Reason,
			Slots:       t.SlotNames(f),
			Index:       uint32(f.Index),
			Parent:      jacrt.NoParent,
			ArgCount:    uint32(f.ArgCount()),
			ClosureVars: uint32(len(f.ClosureVars)),
			FreshSlots:  uint32(f.FreshSlots),
		}
		if f.Compiled() {
			info.Mode = jacrt.ModeCompiled
			info.Export = jacrt.ExportName(uint32(f.Index))
		}
		if i > 0 {
			info.Parent = uint32(f.Parent)
		}
		info.Locals = make([]string, len(f.Locals))
		for j := range f.Locals {
			info.Locals[j] = t.LocalName(f, j)
		}
		m.Funcs[i] = info
	}
	return m
}

var (
	reallocParams  = []wasmenc.ValType{wasmenc.I32, wasmenc.I32, wasmenc.I32, wasmenc.I32}
	reallocResults = []wasmenc.ValType{wasmenc.I32}
)

// reallocBody is a bump allocator over the heap that starts after the
// argument stack: cabi_realloc(old_ptr, old_size, align, new_size) -> ptr.
// Memory is never reused; a zero new_size returns the dummy pointer 1.
func reallocBody() *wasmenc.Code {
	const (
		oldPtr uint32 = iota
		oldSize
		align
		newSize
	)
	c := wasmenc.NewCode(reallocParams)
	ptr := c.AddLocal(wasmenc.I32)
	end := c.AddLocal(wasmenc.I32)

	c.LocalGet(newSize)
	c.Op(wasmenc.I32Eqz)
	c.If()
	c.I32Const(1)
	c.Return()
	c.End()

	c.LocalGet(align)
	c.Op(wasmenc.I32Eqz)
	c.If()
	c.I32Const(1)
	c.LocalSet(align)
	c.End()

	// ptr = (heap + align - 1) & -align
	c.GlobalGet(globalHeap)
	c.LocalGet(align)
	c.Op(wasmenc.I32Add)
	c.I32Const(1)
	c.Op(wasmenc.I32Sub)
	c.I32Const(0)
	c.LocalGet(align)
	c.Op(wasmenc.I32Sub, wasmenc.I32And)
	c.LocalTee(ptr)
	c.LocalGet(newSize)
	c.Op(wasmenc.I32Add)
	c.LocalTee(end)
	c.LocalGet(ptr)
	c.Op(wasmenc.I32LtU)
	c.If()
	c.Unreachable()
	c.End()

	c.LocalGet(end)
	c.MemorySize()
	c.I32Const(16)
	c.Op(wasmenc.I32Shl, wasmenc.I32GtU)
	c.If()
	// grow by ceil((end - size) / PageSize) pages
	c.LocalGet(end)
	c.MemorySize()
	c.I32Const(16)
	c.Op(wasmenc.I32Shl, wasmenc.I32Sub)
	c.I32Const(PageSize - 1)
	c.Op(wasmenc.I32Add)
	c.I32Const(16)
	c.Op(wasmenc.I32ShrU)
	c.MemoryGrow()
	c.I32Const(-1)
	c.Op(wasmenc.I32Eq)
	c.If()
	c.Unreachable()
	c.End()
	c.End()

	c.LocalGet(oldPtr)
	c.Op(wasmenc.I32Eqz)
	c.LocalGet(oldSize)
	c.Op(wasmenc.I32Eqz)
	c.Op(wasmenc.I32Or, wasmenc.I32Eqz)
	c.If()
	c.LocalGet(ptr)
	c.LocalGet(oldPtr)
	// min(old_size, new_size)
	c.LocalGet(oldSize)
	c.LocalGet(newSize)
	c.LocalGet(oldSize)
	c.LocalGet(newSize)
	c.Op(wasmenc.I32LtU)
	c.Select()
	c.MemoryCopy()
	c.End()

	c.LocalGet(end)
	c.GlobalSet(globalHeap)
	c.LocalGet(ptr)
	return c
}

// mainBody resets the argument stack, creates the execution context for
// this run and calls the root function.
func mainBody(t *translate.Translation, bodies map[uint32][]byte) *wasmenc.Code {
	root := t.Root()
	c := wasmenc.NewCode(nil)
	c.I32Const(ArgStackBase)
	c.GlobalSet(globalSP)
	c.I32Const(int32(root.EnvSlots()))
	c.Call(importIndex(jacrt.FnInit))
	c.GlobalSet(globalCtx)

	if _, ok := bodies[uint32(root.Index)]; ok {
		c.GlobalGet(globalCtx)
		c.I64Const(boxed(jacrt.Undefined))
		c.I32Const(0)
		c.I32Const(0)
		c.Call(compiledIndex(t, bodies, root))
		return c
	}
	c.GlobalGet(globalCtx)
	c.I32Const(int32(root.Index))
	c.I64Const(boxed(jacrt.Undefined))
	c.I32Const(0)
	c.I32Const(0)
	c.Call(importIndex(jacrt.FnInterpret))
	return c
}

// compiledIndex returns the wasm function index of compiled function f:
// compiled functions follow the imports in FuncIndex order.
func compiledIndex(t *translate.Translation, bodies map[uint32][]byte, f *translate.FunctionTranslation) uint32 {
	idx := uint32(len(jacrt.ABI))
	for _, g := range t.Funcs {
		if g == f {
			break
		}
		if _, ok := bodies[uint32(g.Index)]; ok {
			idx++
		}
	}
	return idx
}

func startBody(main uint32) *wasmenc.Code {
	c := wasmenc.NewCode(nil)
	c.Call(main)
	c.Drop()
	return c
}

type funcName struct {
	idx  uint32
	name string
}

// nameSection encodes the function names subsection of the standard
// "name" custom section. Entries must be sorted by index, which the
// declaration order already guarantees.
func nameSection(names []funcName) []byte {
	var sub wasmenc.Writer
	sub.U32(uint32(len(names)))
	for _, n := range names {
		sub.U32(n.idx)
		sub.Name(n.name)
	}
	var w wasmenc.Writer
	w.Byte(1)
	w.Vec(sub.Bytes())
	return w.Bytes()
}
