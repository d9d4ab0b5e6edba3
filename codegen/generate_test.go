package codegen_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jac/bytecode"
	"github.com/wippyai/jac/codegen"
	jerrors "github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/internal/bcasm"
	"github.com/wippyai/jac/jacrt"
	"github.com/wippyai/jac/translate"
)

func generate(t *testing.T, root *bcasm.Func, opts codegen.Options) (*translate.Translation, *codegen.Module) {
	t.Helper()
	tr, err := translate.Translate(context.Background(), (&bcasm.Container{Root: root}).Bytes(), translate.DefaultOptions())
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	mod, err := codegen.Generate(tr, opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return tr, mod
}

// instantiate loads mod next to a fresh runtime host without running it.
func instantiate(t *testing.T, mod *codegen.Module) api.Module {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	h := jacrt.NewHost()
	if _, err := h.Instantiate(ctx, r); err != nil {
		t.Fatalf("host: %v", err)
	}
	h.Bind("test", jacrt.Options{Manifest: mod.Manifest})
	inst, err := r.InstantiateWithConfig(ctx, mod.Wasm,
		wazero.NewModuleConfig().WithName("test").WithStartFunctions())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return inst
}

func runMain(t *testing.T, root *bcasm.Func) (jacrt.Value, error) {
	t.Helper()
	_, mod := generate(t, root, codegen.DefaultOptions())
	inst := instantiate(t, mod)
	res, err := inst.ExportedFunction(jacrt.MainExport).Call(context.Background())
	if err != nil {
		return 0, err
	}
	return jacrt.Value(res[0]), nil
}

func body(ops func(c *bcasm.Code)) *bcasm.Func {
	c := bcasm.NewCode()
	ops(c)
	return &bcasm.Func{Name: "main", Code: c}
}

func push(c *bcasm.Code, vs ...int32) {
	for _, v := range vs {
		c.Op(bytecode.OpPushI32, int64(v))
	}
}

func TestGenerate_Expressions(t *testing.T) {
	binary := func(a, b int32, op bytecode.Opcode) *bcasm.Func {
		return body(func(c *bcasm.Code) {
			push(c, a, b)
			c.Op(op).Op(bytecode.OpReturn)
		})
	}
	unary := func(a int32, op bytecode.Opcode) *bcasm.Func {
		return body(func(c *bcasm.Code) {
			push(c, a)
			c.Op(op).Op(bytecode.OpReturn)
		})
	}

	tests := []struct {
		name string
		root *bcasm.Func
		want jacrt.Value
	}{
		{"add", binary(2, 3, bytecode.OpAdd), jacrt.Int(5)},
		{"add overflows to float", binary(0x7fffffff, 1, bytecode.OpAdd), jacrt.Number(2147483648)},
		{"sub", binary(2, 3, bytecode.OpSub), jacrt.Int(-1)},
		{"mul", binary(6, 7, bytecode.OpMul), jacrt.Int(42)},
		{"div", binary(7, 2, bytecode.OpDiv), jacrt.Number(3.5)},
		{"lt", binary(3, 5, bytecode.OpLt), jacrt.True},
		{"gte", binary(3, 5, bytecode.OpGte), jacrt.False},
		{"strict_eq", binary(4, 4, bytecode.OpStrictEq), jacrt.True},
		{"neq", binary(4, 5, bytecode.OpNeq), jacrt.True},
		{"and", binary(6, 3, bytecode.OpAnd), jacrt.Int(2)},
		{"shl", binary(1, 4, bytecode.OpShl), jacrt.Int(16)},
		{"sar", binary(-8, 1, bytecode.OpSar), jacrt.Int(-4)},
		{"shr", binary(-1, 28, bytecode.OpShr), jacrt.Int(15)},
		{"not", unary(5, bytecode.OpNot), jacrt.Int(-6)},
		{"neg", unary(5, bytecode.OpNeg), jacrt.Int(-5)},
		{"lnot int", unary(0, bytecode.OpLNot), jacrt.True},
		{"lnot undefined", body(func(c *bcasm.Code) {
			c.Op(bytecode.OpUndefined).Op(bytecode.OpLNot).Op(bytecode.OpReturn)
		}), jacrt.True},
		{"is_undefined_or_null", body(func(c *bcasm.Code) {
			c.Op(bytecode.OpNull).Op(bytecode.OpUndefOrNull).Op(bytecode.OpReturn)
		}), jacrt.True},
		{"swap", body(func(c *bcasm.Code) {
			push(c, 1, 2)
			c.Op(bytecode.OpSwap).Op(bytecode.OpSub).Op(bytecode.OpReturn)
		}), jacrt.Int(1)},
		{"post_inc", body(func(c *bcasm.Code) {
			push(c, 5)
			c.Op(bytecode.OpPostInc).Op(bytecode.OpAdd).Op(bytecode.OpReturn)
		}), jacrt.Int(11)},
		{"bool operand takes the helper", body(func(c *bcasm.Code) {
			c.Op(bytecode.OpPushTrue)
			push(c, 1)
			c.Op(bytecode.OpAdd).Op(bytecode.OpReturn)
		}), jacrt.Int(2)},
		{"if_true", body(func(c *bcasm.Code) {
			c.Op(bytecode.OpPushTrue).Jump(bytecode.OpIfTrue, "yes")
			push(c, 1)
			c.Op(bytecode.OpReturn).Label("yes")
			push(c, 2)
			c.Op(bytecode.OpReturn)
		}), jacrt.Int(2)},
		{"return_undef", body(func(c *bcasm.Code) { c.Op(bytecode.OpReturnUndef) }), jacrt.Undefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runMain(t, tt.root)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if got != tt.want {
				t.Errorf("result = %v (%#x), want %v", got, uint64(got), tt.want)
			}
		})
	}
}

// sum is `function sum(n) { let s = 0; for (let i = 0; i < n; i++) s += i; return s }`
// called as sum(10) from the root.
func sum() *bcasm.Func {
	child := &bcasm.Func{
		Name: "sum",
		Args: []string{"n"},
		Vars: []bcasm.Var{{Name: "s"}, {Name: "i"}},
		Code: bcasm.NewCode().
			Op(bytecode.OpPush0).Op(bytecode.OpPutLoc0).
			Op(bytecode.OpPush0).Op(bytecode.OpPutLoc1).
			Label("loop").
			Op(bytecode.OpGetLoc1).Op(bytecode.OpGetArg0).Op(bytecode.OpLt).
			Jump(bytecode.OpIfFalse, "done").
			Op(bytecode.OpGetLoc0).Op(bytecode.OpGetLoc1).Op(bytecode.OpAdd).Op(bytecode.OpPutLoc0).
			Op(bytecode.OpIncLoc, 1).
			Jump(bytecode.OpGoTo, "loop").
			Label("done").
			Op(bytecode.OpGetLoc0).Op(bytecode.OpReturn),
	}
	return &bcasm.Func{
		Name:     "main",
		Children: []*bcasm.Func{child},
		Code: bcasm.NewCode().
			Op(bytecode.OpFClosure8, 0).
			Op(bytecode.OpPushI8, 10).
			Op(bytecode.OpCall1).
			Op(bytecode.OpReturn),
	}
}

// counter is `let n = 0; const inc = () => ++n; inc(); return inc();`.
func counter() *bcasm.Func {
	inc := &bcasm.Func{
		Name:        "inc",
		ClosureVars: []bcasm.ClosureVar{{Name: "n", Index: 0, IsLocal: true, Lexical: true}},
		Code: bcasm.NewCode().
			Op(bytecode.OpGetVarRef0).
			Op(bytecode.OpInc).
			Op(bytecode.OpDup).
			Op(bytecode.OpPutVarRef0).
			Op(bytecode.OpReturn),
	}
	return &bcasm.Func{
		Name:     "main",
		Vars:     []bcasm.Var{{Name: "n", Lexical: true, Captured: true}, {Name: "inc"}},
		Children: []*bcasm.Func{inc},
		Code: bcasm.NewCode().
			Op(bytecode.OpPush0).
			Op(bytecode.OpPutLoc0).
			Op(bytecode.OpFClosure8, 0).
			Op(bytecode.OpPutLoc1).
			Op(bytecode.OpGetLoc1).
			Op(bytecode.OpCall0).
			Op(bytecode.OpDrop).
			Op(bytecode.OpGetLoc1).
			Op(bytecode.OpCall0).
			Op(bytecode.OpReturn),
	}
}

func TestGenerate_Programs(t *testing.T) {
	tests := []struct {
		name string
		root *bcasm.Func
		want jacrt.Value
	}{
		{"loop", sum(), jacrt.Int(45)},
		{"shared cell", counter(), jacrt.Int(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runMain(t, tt.root)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if got != tt.want {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerate_UninitializedRead(t *testing.T) {
	tests := []struct {
		name     string
		captured bool
	}{
		{"register", false},
		{"cell", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := &bcasm.Func{
				Name: "main",
				Vars: []bcasm.Var{{Name: "x", Lexical: true, Captured: tt.captured}},
				Code: bcasm.NewCode().Op(bytecode.OpGetLocCheck, 0).Op(bytecode.OpReturn),
			}
			_, err := runMain(t, root)
			var e *jerrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("err = %v, want *errors.Error", err)
			}
			if e.Kind != jerrors.KindUninitialized {
				t.Errorf("kind = %s, want %s", e.Kind, jerrors.KindUninitialized)
			}
			if !strings.Contains(e.Error(), "'x'") {
				t.Errorf("error %q does not name the variable", e.Error())
			}
		})
	}
}

func TestGenerate_Throw(t *testing.T) {
	root := body(func(c *bcasm.Code) {
		push(c, 7)
		c.Op(bytecode.OpThrow)
	})
	_, err := runMain(t, root)
	var e *jerrors.Error
	if !errors.As(err, &e) || e.Kind != jerrors.KindThrown {
		t.Fatalf("err = %v, want thrown", err)
	}
	if e.Value != jacrt.Int(7) {
		t.Errorf("thrown value = %v", e.Value)
	}
}

func TestGenerate_Manifest(t *testing.T) {
	tr, mod := generate(t, counter(), codegen.DefaultOptions())

	want := []jacrt.FuncInfo{
		{
			Name: "main", Mode: jacrt.ModeCompiled, Export: "func-0",
			Locals: []string{"n", "inc"}, Slots: []string{"n"},
			Index: 0, Parent: jacrt.NoParent, FreshSlots: 1,
		},
		{
			Name: "inc", Mode: jacrt.ModeCompiled, Export: "func-1",
			Locals: []string{}, Slots: []string{"n"},
			Index: 1, Parent: 0, ClosureVars: 1,
		},
	}
	if diff := cmp.Diff(want, mod.Manifest.Funcs); diff != "" {
		t.Errorf("manifest (-want +got):\n%s", diff)
	}
	if mod.Manifest.Version != jacrt.ManifestVersion {
		t.Errorf("version = %d", mod.Manifest.Version)
	}
	if len(tr.Degraded()) != 0 {
		t.Errorf("degraded: %v", tr.Degraded())
	}

	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCustomSections(true))
	t.Cleanup(func() { _ = r.Close(ctx) })
	compiled, err := r.CompileModule(ctx, mod.Wasm)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	section := compiled.CustomSections()
	var found bool
	for _, s := range section {
		if s.Name() == jacrt.ManifestSection {
			found = true
			m, err := jacrt.UnmarshalManifest(s.Data())
			if err != nil {
				t.Fatalf("decode manifest: %v", err)
			}
			if diff := cmp.Diff(mod.Manifest, m, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("embedded manifest (-want +got):\n%s", diff)
			}
		}
	}
	if !found {
		t.Error("manifest section missing")
	}

	exports := compiled.ExportedFunctions()
	for _, name := range []string{"func-0", "func-1", jacrt.MainExport, jacrt.StartExport, jacrt.ReallocExport} {
		if _, ok := exports[name]; !ok {
			t.Errorf("export %s missing", name)
		}
	}
	if _, ok := compiled.ExportedMemories()[jacrt.MemoryExport]; !ok {
		t.Error("memory not exported")
	}
}

func TestGenerate_NameSection(t *testing.T) {
	opts := codegen.DefaultOptions()
	_, with := generate(t, counter(), opts)
	opts.NameSection = false
	_, without := generate(t, counter(), opts)
	if len(with.Wasm) <= len(without.Wasm) {
		t.Errorf("name section adds nothing: %d vs %d bytes", len(with.Wasm), len(without.Wasm))
	}
}

func TestGenerate_DegradesOversizedCall(t *testing.T) {
	child := &bcasm.Func{
		Name: "first",
		Args: []string{"a", "b"},
		Code: bcasm.NewCode().Op(bytecode.OpGetArg0).Op(bytecode.OpReturn),
	}
	root := &bcasm.Func{
		Name:     "main",
		Children: []*bcasm.Func{child},
		Code: bcasm.NewCode().
			Op(bytecode.OpFClosure8, 0).
			Op(bytecode.OpPush1).
			Op(bytecode.OpPush2).
			Op(bytecode.OpCall2).
			Op(bytecode.OpReturn),
	}
	opts := codegen.DefaultOptions()
	opts.ArgStackSize = 8
	tr, mod := generate(t, root, opts)

	if tr.Root().Compiled() {
		t.Fatal("root still compiled")
	}
	info := mod.Manifest.Funcs[0]
	if info.Mode != jacrt.ModeInterpreted || info.Export != "" {
		t.Errorf("root info = %+v", info)
	}
	if !strings.HasPrefix(info.Reason, string(jerrors.KindUnsupportedOpcode)) {
		t.Errorf("reason = %q", info.Reason)
	}
	if mod.Manifest.Funcs[1].Mode != jacrt.ModeCompiled {
		t.Errorf("child mode = %s", mod.Manifest.Funcs[1].Mode)
	}
	if _, err := wazero.NewRuntime(context.Background()).CompileModule(context.Background(), mod.Wasm); err != nil {
		t.Fatalf("compile: %v", err)
	}
}

func TestGenerate_Realloc(t *testing.T) {
	opts := codegen.DefaultOptions()
	_, mod := generate(t, counter(), opts)
	inst := instantiate(t, mod)
	ctx := context.Background()
	realloc := inst.ExportedFunction(jacrt.ReallocExport)
	alloc := func(oldPtr, oldSize, align, size uint32) uint32 {
		t.Helper()
		res, err := realloc.Call(ctx, uint64(oldPtr), uint64(oldSize), uint64(align), uint64(size))
		if err != nil {
			t.Fatalf("cabi_realloc: %v", err)
		}
		return uint32(res[0])
	}

	if p := alloc(0, 0, 1, 0); p != 1 {
		t.Errorf("zero-size allocation = %d, want 1", p)
	}
	p1 := alloc(0, 0, 8, 3)
	if p1 < opts.HeapBase() || p1%8 != 0 {
		t.Errorf("first allocation at %d", p1)
	}
	p2 := alloc(0, 0, 8, 8)
	if p2 < p1+3 || p2%8 != 0 {
		t.Errorf("second allocation at %d after %d", p2, p1)
	}

	mem := inst.Memory()
	mem.Write(p2, []byte("jacjacja"))
	p3 := alloc(p2, 8, 4, 4)
	got, _ := mem.Read(p3, 4)
	if string(got) != "jacj" {
		t.Errorf("reallocated contents = %q", got)
	}

	before := mem.Size()
	big := alloc(0, 0, 16, 3*codegen.PageSize)
	if mem.Size() <= before || big+3*codegen.PageSize > mem.Size() {
		t.Errorf("memory %d -> %d bytes, allocation at %d", before, mem.Size(), big)
	}
}

func TestGenerate_InvalidOptions(t *testing.T) {
	tr, err := translate.Translate(context.Background(), (&bcasm.Container{Root: counter()}).Bytes(), translate.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		modify func(o *codegen.Options)
	}{
		{"tiny argument stack", func(o *codegen.Options) { o.ArgStackSize = 4 }},
		{"stack exceeds memory", func(o *codegen.Options) { o.MemoryPages = 1; o.ArgStackSize = codegen.PageSize }},
		{"max below min", func(o *codegen.Options) { o.MaxMemoryPages = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := codegen.DefaultOptions()
			tt.modify(&opts)
			_, err := codegen.Generate(tr, opts)
			var e *jerrors.Error
			if !errors.As(err, &e) || e.Phase != jerrors.PhaseConfig {
				t.Errorf("err = %v, want config error", err)
			}
		})
	}
}
