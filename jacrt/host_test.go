package jacrt

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	jerrors "github.com/wippyai/jac/errors"
)

func newTestHost(t *testing.T) (*Host, api.Module) {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	h := NewHost()
	mod, err := h.Instantiate(ctx, r)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return h, mod
}

func call(t *testing.T, mod api.Module, name string, params ...uint64) []uint64 {
	t.Helper()
	fn := mod.ExportedFunction(name)
	if fn == nil {
		t.Fatalf("export %q missing", name)
	}
	res, err := fn.Call(context.Background(), params...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func TestHost_ExportsABI(t *testing.T) {
	_, mod := newTestHost(t)
	defs := mod.ExportedFunctionDefinitions()
	if len(defs) != len(ABI) {
		t.Fatalf("host exports %d functions, ABI has %d", len(defs), len(ABI))
	}
	for _, f := range ABI {
		def, ok := defs[f.Name]
		if !ok {
			t.Errorf("%s not exported", f.Name)
			continue
		}
		if len(def.ParamTypes()) != len(f.Params) || len(def.ResultTypes()) != len(f.Results) {
			t.Errorf("%s: signature %v -> %v", f.Name, def.ParamTypes(), def.ResultTypes())
		}
	}
}

func TestHost_VarRefs(t *testing.T) {
	h, mod := newTestHost(t)
	ctxHandle := call(t, mod, FnInit, 10)[0]
	if ctxHandle != 1 {
		t.Fatalf("first context handle = %d, want 1", ctxHandle)
	}
	rt, ok := h.Runtime(1)
	if !ok {
		t.Fatal("runtime not registered")
	}
	if env, _ := rt.Env(RootEnv); env.Len() != 10 {
		t.Fatalf("root slots = %d", env.Len())
	}

	call(t, mod, FnPutVarRef, ctxHandle, 0, uint64(Int(42)))
	if got := Value(call(t, mod, FnGetVarRef, ctxHandle, 0)[0]); got != Int(42) {
		t.Errorf("get-var-ref = %v", got)
	}
	if got := Value(call(t, mod, FnGetVarRef, ctxHandle, 3)[0]); got != Undefined {
		t.Errorf("unchecked uninitialized read = %v", got)
	}

	_, err := mod.ExportedFunction(FnGetVarRefCheck).Call(context.Background(), ctxHandle, 1)
	var e *jerrors.Error
	if !errors.As(err, &e) || e.Kind != jerrors.KindUninitialized {
		t.Fatalf("get-var-ref-check: %v", err)
	}
}

func TestHost_ClosureResolve(t *testing.T) {
	h, mod := newTestHost(t)
	ctxHandle := call(t, mod, FnInit, 2)[0]
	call(t, mod, FnPutVarRef, ctxHandle, 1, uint64(Int(3)))

	v := Value(call(t, mod, FnClosure, ctxHandle, 0, 1)[0])
	call(t, mod, FnResolveVarRef, ctxHandle, 1, 1)

	rt, _ := h.Runtime(int32(ctxHandle))
	c, ok := rt.Closure(v)
	if !ok {
		t.Fatalf("closure value %v does not resolve", v)
	}
	env, _ := rt.Env(c.Env)
	r, ok := env.Ref(0)
	if !ok || r.Get() != Int(3) {
		t.Fatalf("closure env slot 0 = %v", r)
	}
}

func TestHost_Ops(t *testing.T) {
	_, mod := newTestHost(t)
	ctxHandle := call(t, mod, FnInit, 0)[0]

	tests := []struct {
		name   string
		params []uint64
		want   Value
	}{
		{"add", []uint64{ctxHandle, uint64(Int(2)), uint64(Int(40))}, Int(42)},
		{"lt", []uint64{ctxHandle, uint64(Int(2)), uint64(Int(40))}, True},
		{"strict-eq", []uint64{ctxHandle, uint64(Null), uint64(Undefined)}, False},
		{"neg", []uint64{ctxHandle, uint64(Int(5))}, Int(-5)},
		{FnNewInt32, []uint64{ctxHandle, uint64(uint32(0xffffffff))}, Int(-1)},
		{FnUndef, []uint64{ctxHandle}, Undefined},
		{FnToNumeric, []uint64{ctxHandle, uint64(True)}, Int(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Value(call(t, mod, tt.name, tt.params...)[0]); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if got := call(t, mod, FnToBool, ctxHandle, uint64(Int(0)))[0]; got != 0 {
		t.Errorf("to-bool(0) = %d", got)
	}
	f := call(t, mod, FnNewFloat64, ctxHandle, api.EncodeF64(1.5))[0]
	if Value(f) != Float(1.5) {
		t.Errorf("new-float64 = %v", Value(f))
	}
}

func TestHost_Errors(t *testing.T) {
	_, mod := newTestHost(t)
	ctxHandle := call(t, mod, FnInit, 0)[0]
	ctx := context.Background()

	tests := []struct {
		name   string
		fn     string
		params []uint64
		kind   jerrors.Kind
		op     string
	}{
		{"type error carries op", "mul", []uint64{ctxHandle, uint64(Object(1)), uint64(Int(1))}, jerrors.KindTypeError, "mul"},
		{"unknown context", FnGetVarRef, []uint64{99, 0}, jerrors.KindNotFound, ""},
		{"throw", FnThrow, []uint64{ctxHandle, uint64(Int(1))}, jerrors.KindThrown, ""},
		{"tdz", FnThrowUninitialized, []uint64{ctxHandle, 0, 0}, jerrors.KindUninitialized, ""},
		{"call non-function", FnCall, []uint64{ctxHandle, uint64(Int(1)), uint64(Undefined), 0, 0}, jerrors.KindTypeError, ""},
		{"interpret without interpreter", FnInterpret, []uint64{ctxHandle, 0, uint64(Undefined), 0, 0}, jerrors.KindUnsupportedFeature, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mod.ExportedFunction(tt.fn).Call(ctx, tt.params...)
			var e *jerrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("got %v, want *errors.Error", err)
			}
			if e.Kind != tt.kind || e.Op != tt.op {
				t.Errorf("got kind %s op %q, want %s %q", e.Kind, e.Op, tt.kind, tt.op)
			}
		})
	}
}

func TestHost_BindAndUnbind(t *testing.T) {
	h := NewHost()
	h.Bind("inst", Options{MaxCallDepth: 2})
	handle, err := h.create("inst", 1)
	if err != nil {
		t.Fatal(err)
	}
	rt, ok := h.Runtime(handle)
	if !ok || rt.Handle() != handle || rt.maxDepth != 2 {
		t.Fatalf("runtime = %+v", rt)
	}
	if _, err := h.create("other", 0); err != nil {
		t.Fatal(err)
	}
	if h.Contexts() != 2 {
		t.Fatalf("Contexts = %d", h.Contexts())
	}
	h.Unbind("inst")
	if _, ok := h.Runtime(handle); ok {
		t.Error("context survived Unbind")
	}
	if h.Contexts() != 1 {
		t.Errorf("Contexts = %d, want 1", h.Contexts())
	}
}

func TestHost_CallInterpreted(t *testing.T) {
	ctx := context.Background()
	h := NewHost()
	var seen *Call
	h.Bind("inst", Options{
		Manifest: &Manifest{Version: ManifestVersion, Funcs: []FuncInfo{
			{Name: "<eval>", Mode: ModeCompiled, Parent: NoParent},
			{Name: "f", Mode: ModeInterpreted, Index: 1, ClosureVars: 1, FreshSlots: 1},
		}},
		Interpreter: InterpreterFunc(func(_ context.Context, c *Call) (Value, error) {
			seen = c
			env, _ := c.Runtime.Env(c.Env)
			return Int(int32(env.Len())), nil
		}),
	})
	handle, err := h.create("inst", 1)
	if err != nil {
		t.Fatal(err)
	}
	rt, _ := h.Runtime(handle)
	fn := rt.NewClosure(1, 0)
	if err := rt.ResolveClosureVar(1, 0); err != nil {
		t.Fatal(err)
	}

	got, err := h.Call(ctx, nil, rt, fn, Null, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != Int(2) {
		t.Errorf("activation slots = %v, want 2", got)
	}
	if seen == nil || seen.This != Null || seen.Func != 1 {
		t.Fatalf("call = %+v", seen)
	}
	if rt.Depth() != 0 || rt.CurrentEnv() != RootEnv {
		t.Errorf("frames not unwound: depth %d current %s", rt.Depth(), rt.CurrentEnv())
	}
	if _, ok := rt.Env(seen.Env); ok {
		t.Error("activation environment survived the call")
	}
}

func TestHost_CallNative(t *testing.T) {
	h := NewHost()
	handle, err := h.create("inst", 0)
	if err != nil {
		t.Fatal(err)
	}
	rt, _ := h.Runtime(handle)
	fn := rt.NewNative("answer", func(context.Context, *CompilerRuntime, Value, []Value) (Value, error) {
		return Int(42), nil
	})
	got, err := h.Call(context.Background(), nil, rt, fn, Undefined, 0, 0)
	if err != nil || got != Int(42) {
		t.Errorf("got %v, %v", got, err)
	}
}
