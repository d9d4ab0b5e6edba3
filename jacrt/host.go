package jacrt

import (
	"context"
	"math"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/jac/errors"
)

// Host implements the runtime ABI as a wazero host module. It owns the
// table of execution contexts handed out by init; each context is one
// CompilerRuntime. Generated modules find their settings through the
// instance name they were bound under.
type Host struct {
	contexts map[int32]*CompilerRuntime
	bindings map[string]*binding
	mu       sync.Mutex
	next     int32
}

type binding struct {
	opts     Options
	contexts []int32
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{
		contexts: make(map[int32]*CompilerRuntime),
		bindings: make(map[string]*binding),
		next:     1,
	}
}

// Bind registers the options runtimes created by module instance name use.
func (h *Host) Bind(name string, opts Options) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bindings[name] = &binding{opts: opts}
}

// Unbind forgets an instance name and every context it created.
func (h *Host) Unbind(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.bindings[name]
	if !ok {
		return
	}
	for _, c := range b.contexts {
		delete(h.contexts, c)
	}
	delete(h.bindings, name)
}

// Runtime returns the runtime behind a context handle.
func (h *Host) Runtime(handle int32) (*CompilerRuntime, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rt, ok := h.contexts[handle]
	return rt, ok
}

// Contexts returns the number of live execution contexts.
func (h *Host) Contexts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.contexts)
}

func (h *Host) create(module string, slots int) (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.bindings[module]
	var opts Options
	if b != nil {
		opts = b.opts
	}
	rt := New(opts)
	if err := rt.Init(slots); err != nil {
		return 0, err
	}
	handle := h.next
	h.next++
	rt.handle = handle
	h.contexts[handle] = rt
	if b != nil {
		b.contexts = append(b.contexts, handle)
	}
	return handle, nil
}

func (h *Host) lookup(handle uint64) *CompilerRuntime {
	rt, ok := h.Runtime(int32(uint32(handle)))
	if !ok {
		panic(errors.New(errors.PhaseRuntime, errors.KindNotFound).
			Value(handle).
			Detail("unknown execution context %d", int32(uint32(handle))).
			Build())
	}
	return rt
}

// Instantiate defines the host module in r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	handlers := h.handlers()
	b := r.NewHostModuleBuilder(HostModule)
	for _, f := range ABI {
		fn, ok := handlers[f.Name]
		if !ok {
			return nil, errors.NotFound(errors.PhaseLoad, "runtime function", f.Name)
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(fn, f.Params, f.Results).
			Export(f.Name)
	}
	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	return mod, nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func (h *Host) handlers() map[string]api.GoModuleFunc {
	m := map[string]api.GoModuleFunc{
		FnInit: func(_ context.Context, mod api.Module, stack []uint64) {
			handle, err := h.create(mod.Name(), int(int32(uint32(stack[0]))))
			must(err)
			stack[0] = uint64(uint32(handle))
		},
		FnClosure: func(_ context.Context, _ api.Module, stack []uint64) {
			rt := h.lookup(stack[0])
			stack[0] = uint64(rt.NewClosure(uint32(stack[2]), int(uint32(stack[1]))))
		},
		FnResolveVarRef: func(_ context.Context, _ api.Module, stack []uint64) {
			rt := h.lookup(stack[0])
			must(rt.ResolveClosureVar(uint32(stack[1]), int(uint32(stack[2]))))
		},
		FnPutVarRef: func(_ context.Context, _ api.Module, stack []uint64) {
			must(h.lookup(stack[0]).PutVarRef(int(uint32(stack[1])), Value(stack[2])))
		},
		FnPutVarRefCheck: func(_ context.Context, _ api.Module, stack []uint64) {
			must(h.lookup(stack[0]).PutVarRefCheck(int(uint32(stack[1])), Value(stack[2])))
		},
		FnGetVarRef: func(_ context.Context, _ api.Module, stack []uint64) {
			v, err := h.lookup(stack[0]).GetVarRefValue(int(uint32(stack[1])))
			must(err)
			stack[0] = uint64(v)
		},
		FnGetVarRefCheck: func(_ context.Context, _ api.Module, stack []uint64) {
			v, err := h.lookup(stack[0]).GetVarRefCheck(int(uint32(stack[1])))
			must(err)
			stack[0] = uint64(v)
		},
		FnCloseVarRef: func(_ context.Context, _ api.Module, stack []uint64) {
			must(h.lookup(stack[0]).CloseVarRef(int(uint32(stack[1]))))
		},
		FnThrowUninitialized: func(_ context.Context, _ api.Module, stack []uint64) {
			rt := h.lookup(stack[0])
			fn, local := uint32(stack[1]), int(uint32(stack[2]))
			name := "variable"
			if n := rt.manifest.LocalName(fn, local); n != "" {
				name = "'" + n + "'"
			}
			e := errors.Uninitialized(name)
			e.Value = local
			panic(e)
		},
		FnNewInt32: func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(Int(int32(uint32(stack[1]))))
		},
		FnNewFloat64: func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(Float(math.Float64frombits(stack[1])))
		},
		FnUndef: func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(Undefined)
		},
		FnCall: func(ctx context.Context, mod api.Module, stack []uint64) {
			rt := h.lookup(stack[0])
			v, err := h.Call(ctx, mod, rt, Value(stack[1]), Value(stack[2]), uint32(stack[3]), uint32(stack[4]))
			must(err)
			stack[0] = uint64(v)
		},
		FnInterpret: func(ctx context.Context, mod api.Module, stack []uint64) {
			rt := h.lookup(stack[0])
			args, err := readArgs(mod, uint32(stack[3]), uint32(stack[4]))
			must(err)
			v, err := rt.interpret(ctx, uint32(stack[1]), rt.current, Value(stack[2]), args)
			must(err)
			stack[0] = uint64(v)
		},
		FnThrow: func(_ context.Context, _ api.Module, stack []uint64) {
			v := Value(stack[1])
			panic(errors.New(errors.PhaseRuntime, errors.KindThrown).
				Value(v).
				Detail("uncaught exception: %s", v).
				Build())
		},
		FnToBool: func(_ context.Context, _ api.Module, stack []uint64) {
			if ToBool(Value(stack[1])) {
				stack[0] = 1
			} else {
				stack[0] = 0
			}
		},
		FnToNumeric: func(_ context.Context, _ api.Module, stack []uint64) {
			v, err := ToNumeric(Value(stack[1]))
			must(err)
			stack[0] = uint64(v)
		},
	}
	for name, op := range BinaryOps {
		m[name] = func(_ context.Context, _ api.Module, stack []uint64) {
			v, err := op(Value(stack[1]), Value(stack[2]))
			if err != nil {
				panic(withOp(err, name))
			}
			stack[0] = uint64(v)
		}
	}
	for name, op := range UnaryOps {
		m[name] = func(_ context.Context, _ api.Module, stack []uint64) {
			v, err := op(Value(stack[1]))
			if err != nil {
				panic(withOp(err, name))
			}
			stack[0] = uint64(v)
		}
	}
	return m
}

func withOp(err error, op string) error {
	if e, ok := err.(*errors.Error); ok && e.Op == "" {
		c := *e
		c.Op = op
		return &c
	}
	return err
}

func readArgs(mod api.Module, argc, argv uint32) ([]Value, error) {
	if argc == 0 {
		return nil, nil
	}
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "memory", MemoryExport)
	}
	args := make([]Value, argc)
	for i := range args {
		v, ok := mem.ReadUint64Le(argv + uint32(i)*8)
		if !ok {
			return nil, errors.New(errors.PhaseRuntime, errors.KindRangeError).
				Value(argv).
				Detail("argument %d outside memory", i).
				Build()
		}
		args[i] = Value(v)
	}
	return args, nil
}

// Call invokes callee with argc arguments stored at argv in mod's memory.
// Compiled closures run through their export in mod, interpreted ones
// through the runtime's Interpreter, native functions directly.
func (h *Host) Call(ctx context.Context, mod api.Module, rt *CompilerRuntime, callee, this Value, argc, argv uint32) (Value, error) {
	obj, ok := rt.objects.Get(callee.Ref())
	if !callee.IsObject() || !ok {
		return 0, errors.TypeError("%s is not a function", callee)
	}

	switch fn := obj.(type) {
	case *Native:
		args, err := readArgs(mod, argc, argv)
		if err != nil {
			return 0, err
		}
		return fn.Fn(ctx, rt, this, args)

	case *Closure:
		info, ok := rt.manifest.Func(fn.Func)
		if !ok {
			return 0, errors.NotFound(errors.PhaseRuntime, "function", ExportName(fn.Func))
		}
		depth := rt.Depth()
		act, err := rt.Enter(fn.Env, fn.Func, int(info.FreshSlots))
		if err != nil {
			return 0, err
		}
		defer rt.Unwind(depth)

		Logger().Debug("call",
			zap.Uint32("func", fn.Func),
			zap.String("mode", string(info.Mode)),
			zap.Int("depth", rt.Depth()))

		if info.Mode != ModeCompiled {
			args, err := readArgs(mod, argc, argv)
			if err != nil {
				return 0, err
			}
			return rt.interpret(ctx, fn.Func, act, this, args)
		}
		entry := mod.ExportedFunction(info.Export)
		if entry == nil {
			return 0, errors.NotFound(errors.PhaseRuntime, "export", info.Export)
		}
		res, err := entry.Call(ctx, uint64(uint32(rt.handle)), uint64(this), uint64(argc), uint64(argv))
		if err != nil {
			return 0, err
		}
		return Value(res[0]), nil
	}
	return 0, errors.TypeError("%s is not a function", callee)
}

func (rt *CompilerRuntime) interpret(ctx context.Context, fn uint32, env FuncEnvHandle, this Value, args []Value) (Value, error) {
	if rt.interp == nil {
		reason := ""
		if info, ok := rt.manifest.Func(fn); ok {
			reason = info.Reason
		}
		return 0, errors.New(errors.PhaseRuntime, errors.KindUnsupportedFeature).
			Path(ExportName(fn)).
			Detail("function is interpreted (%s) and no interpreter is configured", reason).
			Build()
	}
	return rt.interp.Interpret(ctx, &Call{
		Runtime: rt,
		Func:    fn,
		Env:     env,
		This:    this,
		Args:    args,
	})
}
