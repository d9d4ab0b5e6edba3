package jacrt

import (
	"go.uber.org/zap"

	"github.com/wippyai/jac/errors"
)

// DefaultMaxCallDepth bounds nested Enter calls.
const DefaultMaxCallDepth = 512

// Frame records one active call.
type Frame struct {
	Func uint32
	// Env is the activation environment created for the call.
	Env FuncEnvHandle
	// Prev is the environment that was current before the call.
	Prev FuncEnvHandle
}

// Options configures a CompilerRuntime.
type Options struct {
	Manifest     *Manifest
	Interpreter  Interpreter
	MaxCallDepth int
}

// CompilerRuntime is the per-execution-context state compiled code runs
// against: environments keyed by handle, the frame stack, the current
// environment cursor and the object table. It is not safe for concurrent
// use; one wasm instance owns it.
type CompilerRuntime struct {
	envs        map[FuncEnvHandle]*FuncEnv
	pending     map[uint32]FuncEnvHandle
	objects     *ObjectTable
	manifest    *Manifest
	interp      Interpreter
	frames      []Frame
	maxDepth    int
	handle      int32
	nextEnv     FuncEnvHandle
	current     FuncEnvHandle
	initialized bool
}

// New creates an uninitialized runtime. Call Init before use.
func New(opts Options) *CompilerRuntime {
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	return &CompilerRuntime{
		envs:     make(map[FuncEnvHandle]*FuncEnv),
		pending:  make(map[uint32]FuncEnvHandle),
		objects:  NewObjectTable(),
		manifest: opts.Manifest,
		interp:   opts.Interpreter,
		maxDepth: opts.MaxCallDepth,
	}
}

// Initialized reports whether Init has run.
func (rt *CompilerRuntime) Initialized() bool {
	return rt.initialized
}

// Handle returns the execution context handle init returned for the
// runtime, or 0 for a runtime created outside a host.
func (rt *CompilerRuntime) Handle() int32 {
	return rt.handle
}

// Manifest returns the manifest of the module the runtime serves.
func (rt *CompilerRuntime) Manifest() *Manifest {
	return rt.manifest
}

// Objects returns the object table.
func (rt *CompilerRuntime) Objects() *ObjectTable {
	return rt.objects
}

// Frames returns the active frames, innermost last.
func (rt *CompilerRuntime) Frames() []Frame {
	return rt.frames
}

// Depth returns the number of active frames.
func (rt *CompilerRuntime) Depth() int {
	return len(rt.frames)
}

// NewClosure creates a closure of function fn with a fresh environment.
// Until the next NewClosure for the same function, ResolveClosureVar calls
// for fn fill that environment.
func (rt *CompilerRuntime) NewClosure(fn uint32, argc int) Value {
	h := rt.NewEnv(fn)
	rt.pending[fn] = h
	ref := rt.objects.Insert(&Closure{Func: fn, Env: h, Argc: argc})
	Logger().Debug("closure", zap.Uint32("func", fn), zap.Stringer("env", h), zap.Uint32("ref", ref))
	return Object(ref)
}

// ResolveClosureVar aliases slot index of the current environment into the
// environment of the closure most recently created for fn. Without such a
// closure, fn is taken as a caller-chosen environment handle; the root
// environment is never a valid target.
func (rt *CompilerRuntime) ResolveClosureVar(fn uint32, index int) error {
	target, ok := rt.pending[fn]
	if !ok {
		target = FuncEnvHandle(fn)
		if target == RootEnv {
			return errors.NotFound(errors.PhaseRuntime, "closure", ExportName(fn))
		}
	}
	return rt.ResolveNonLocalVarRef(index, target)
}

// Enter starts a call of function fn whose closure environment is env. The
// activation environment aliases every cell of env and appends fresh
// uninitialized cells for the function's own captured slots.
func (rt *CompilerRuntime) Enter(env FuncEnvHandle, fn uint32, fresh int) (FuncEnvHandle, error) {
	if len(rt.frames) >= rt.maxDepth {
		return 0, errors.New(errors.PhaseRuntime, errors.KindRangeError).
			Value(len(rt.frames)).
			Detail("maximum call stack size exceeded (%d)", rt.maxDepth).
			Build()
	}
	src, ok := rt.envs[env]
	if !ok {
		return 0, errors.NotFound(errors.PhaseRuntime, "environment", env.String())
	}
	h := rt.NewEnv(fn)
	act := rt.envs[h]
	act.refs = make([]*VarRef, 0, len(src.refs)+fresh)
	for _, r := range src.refs {
		act.refs = append(act.refs, r.retain())
	}
	for range fresh {
		act.refs = append(act.refs, newVarRef(Uninitialized))
	}
	rt.frames = append(rt.frames, Frame{Func: fn, Env: h, Prev: rt.current})
	rt.current = h
	return h, nil
}

// Leave ends the innermost call, drops its activation environment and
// restores the caller's current environment.
func (rt *CompilerRuntime) Leave() error {
	if len(rt.frames) == 0 {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidState).
			Detail("leave without a matching enter").
			Build()
	}
	f := rt.frames[len(rt.frames)-1]
	rt.frames = rt.frames[:len(rt.frames)-1]
	rt.current = f.Prev
	rt.DropEnv(f.Env)
	return nil
}

// Unwind pops frames until depth frames remain. It restores the runtime
// after a call failed part way.
func (rt *CompilerRuntime) Unwind(depth int) {
	for len(rt.frames) > depth {
		_ = rt.Leave()
	}
}

// Closure returns the closure referenced by v.
func (rt *CompilerRuntime) Closure(v Value) (*Closure, bool) {
	if !v.IsObject() {
		return nil, false
	}
	obj, ok := rt.objects.Get(v.Ref())
	if !ok {
		return nil, false
	}
	c, ok := obj.(*Closure)
	return c, ok
}

// NewNative registers a Go function as a callable value.
func (rt *CompilerRuntime) NewNative(name string, fn NativeFunc) Value {
	return Object(rt.objects.Insert(&Native{Name: name, Fn: fn}))
}
