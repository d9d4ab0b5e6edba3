package wasmenc

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func TestWriter_LEB(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  []byte
	}{
		{"u32 zero", func(w *Writer) { w.U32(0) }, []byte{0x00}},
		{"u32 624485", func(w *Writer) { w.U32(624485) }, []byte{0xE5, 0x8E, 0x26}},
		{"u32 max", func(w *Writer) { w.U32(0xffffffff) }, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
		{"s32 -1", func(w *Writer) { w.S32(-1) }, []byte{0x7F}},
		{"s32 63", func(w *Writer) { w.S32(63) }, []byte{0x3F}},
		{"s32 64", func(w *Writer) { w.S32(64) }, []byte{0xC0, 0x00}},
		{"s64 -123456", func(w *Writer) { w.S64(-123456) }, []byte{0xC0, 0xBB, 0x78}},
		{"name", func(w *Writer) { w.Name("ab") }, []byte{0x02, 'a', 'b'}},
		{"f64 one", func(w *Writer) { w.F64(1) }, []byte{0, 0, 0, 0, 0, 0, 0xF0, 0x3F}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			tt.write(w)
			if !bytes.Equal(w.Bytes(), tt.want) {
				t.Errorf("got % x, want % x", w.Bytes(), tt.want)
			}
		})
	}
}

func TestModule_TypeDedupe(t *testing.T) {
	m := NewModule()
	a := m.Type([]ValType{I32, I64}, []ValType{I64})
	b := m.Type([]ValType{I32}, []ValType{I64, I64})
	c := m.Type([]ValType{I32, I64}, []ValType{I64})
	if a != c || a == b {
		t.Errorf("type indices %d %d %d", a, b, c)
	}
	if len(m.Types()) != 2 {
		t.Errorf("got %d types", len(m.Types()))
	}
}

func TestModule_ImportAfterFunc(t *testing.T) {
	m := NewModule()
	if idx, err := m.ImportFunc("env", "f", nil, nil); err != nil || idx != 0 {
		t.Fatalf("ImportFunc = %d, %v", idx, err)
	}
	if idx := m.DeclareFunc(nil, nil); idx != 1 {
		t.Fatalf("DeclareFunc = %d, want 1", idx)
	}
	if _, err := m.ImportFunc("env", "g", nil, nil); err == nil {
		t.Fatal("import after declaration accepted")
	}
	if _, err := m.Encode(); err == nil {
		t.Fatal("encoded a function without body")
	}
	if err := m.SetBody(0, []byte{0, 0x0B}); err == nil {
		t.Fatal("SetBody accepted an import index")
	}
}

func TestCode_Unbalanced(t *testing.T) {
	c := NewCode(nil)
	c.Block()
	if _, err := c.Body(); err == nil {
		t.Fatal("open block accepted")
	}
	c.End()
	c.End()
	if _, err := c.Body(); err == nil {
		t.Fatal("stray end accepted")
	}
}

func TestCode_LocalRuns(t *testing.T) {
	c := NewCode([]ValType{I32})
	if idx := c.AddLocal(I64); idx != 1 {
		t.Fatalf("first local = %d", idx)
	}
	c.AddLocal(I64)
	c.AddLocal(I32)
	body, err := c.Body()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x02, 0x02, byte(I64), 0x01, byte(I32), 0x0B}
	if !bytes.Equal(body, want) {
		t.Errorf("body = % x, want % x", body, want)
	}
}

// buildSum builds a module exporting sum(n) = 0 + 1 + ... + (n-1) computed
// by a loop dispatched through br_table, the shape generated code uses.
func buildSum(t *testing.T) []byte {
	t.Helper()
	m := NewModule()
	hostIdx, err := m.ImportFunc("env", "double", []ValType{I64}, []ValType{I64})
	if err != nil {
		t.Fatal(err)
	}
	params := []ValType{I64}
	fn := m.DeclareFunc(params, []ValType{I64})

	c := NewCode(params)
	acc := c.AddLocal(I64)
	i := c.AddLocal(I64)
	pc := c.AddLocal(I32)

	c.Loop()
	c.Block()
	c.Block()
	c.LocalGet(pc)
	c.BrTable([]uint32{0, 1}, 1)
	c.End()
	// pc 0: loop test
	c.LocalGet(i)
	c.LocalGet(0)
	c.Op(I64GeS)
	c.If()
	c.LocalGet(acc)
	c.Call(hostIdx)
	c.Return()
	c.End()
	c.I32Const(1)
	c.LocalSet(pc)
	c.Br(1)
	c.End()
	// pc 1: body
	c.LocalGet(acc)
	c.LocalGet(i)
	c.Op(I64Add)
	c.LocalSet(acc)
	c.LocalGet(i)
	c.I64Const(1)
	c.Op(I64Add)
	c.LocalSet(i)
	c.I32Const(0)
	c.LocalSet(pc)
	c.Br(0)
	c.End()
	c.Unreachable()

	body, err := c.Body()
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetBody(fn, body); err != nil {
		t.Fatal(err)
	}

	m.SetMemory(Memory{Min: 1})
	g := m.AddGlobal(Global{Type: I32, Mutable: true, Init: 1024})
	m.Export("sum", KindFunc, fn)
	m.Export("memory", KindMemory, 0)
	m.Export("sp", KindGlobal, g)
	m.AddCustom("jac.test", []byte("payload"))

	bin, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestModule_RunsInWazero(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCustomSections(true))
	defer r.Close(ctx)

	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] *= 2
		}), []api.ValueType{I64}, []api.ValueType{I64}).
		Export("double").
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	compiled, err := r.CompileModule(ctx, buildSum(t))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var custom []byte
	for _, cs := range compiled.CustomSections() {
		if cs.Name() == "jac.test" {
			custom = cs.Data()
		}
	}
	if string(custom) != "payload" {
		t.Errorf("custom section = %q", custom)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("sum"))
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	tests := []struct {
		n    uint64
		want uint64
	}{
		{0, 0},
		{1, 0},
		{5, 20},
		{100, 9900},
	}
	for _, tt := range tests {
		res, err := mod.ExportedFunction("sum").Call(ctx, tt.n)
		if err != nil {
			t.Fatal(err)
		}
		if res[0] != tt.want {
			t.Errorf("sum(%d) = %d, want %d", tt.n, res[0], tt.want)
		}
	}

	if sp := mod.ExportedGlobal("sp"); sp == nil || sp.Get() != 1024 {
		t.Errorf("sp global = %v", sp)
	}
	if mem := mod.Memory(); mem == nil || mem.Size() != 65536 {
		t.Error("memory not exported with one page")
	}
}
