package engine

import (
	"context"
	stderrors "errors"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/jacrt"
)

// Instance is an instantiated generated module.
// It is NOT safe for concurrent use from multiple goroutines.
type Instance struct {
	module *Module
	mod    api.Module
	main   api.Function
	memory *wazeroMemory
	alloc  *allocator
	rt     *jacrt.CompilerRuntime
	name   string
	argv   uint32
	argCap uint32
}

// minScratch is the smallest argument buffer Call allocates.
const minScratch = 64

// Name returns the wasm instance name the runtime host knows it by.
func (i *Instance) Name() string {
	return i.name
}

// Memory returns the instance's linear memory.
func (i *Instance) Memory() Memory {
	return i.memory
}

// Allocator returns the instance's guest allocator.
func (i *Instance) Allocator() Allocator {
	return i.alloc
}

// Runtime returns the execution context of the latest Run, or nil before
// the first one.
func (i *Instance) Runtime() *jacrt.CompilerRuntime {
	return i.rt
}

// Run executes the root function in a fresh execution context and returns
// its completion value.
func (i *Instance) Run(ctx context.Context) (jacrt.Value, error) {
	if i.mod == nil {
		return 0, closed()
	}
	res, err := i.main.Call(ctx)
	// init sets the context global before the root runs, so a failed run
	// still leaves its context inspectable.
	i.attachRuntime()
	if err != nil {
		return 0, runtimeError(err)
	}
	v := jacrt.Value(res[0])
	Logger().Debug("run complete", zap.String("name", i.name), zap.Stringer("result", v))
	return v, nil
}

func (i *Instance) attachRuntime() {
	g := i.mod.ExportedGlobal(jacrt.CtxExport)
	if g == nil {
		return
	}
	if rt, ok := i.module.engine.host.Runtime(int32(uint32(g.Get()))); ok {
		i.rt = rt
	}
}

// Call invokes the function value fn with the given receiver and arguments
// in the execution context of the latest Run. Arguments are copied into a
// scratch region obtained from cabi_realloc. The region is reused by later
// calls and only reallocated when a call passes more arguments than any
// before it, so repeated calls do not grow linear memory.
func (i *Instance) Call(ctx context.Context, fn, this jacrt.Value, args ...jacrt.Value) (jacrt.Value, error) {
	if i.mod == nil {
		return 0, closed()
	}
	if i.rt == nil {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidState).
			Detail("no execution context: Run the instance first").
			Build()
	}

	argv, err := i.scratch(ctx, uint32(8*len(args)))
	if err != nil {
		return 0, err
	}
	for j, a := range args {
		if err := i.memory.WriteValue(argv+uint32(8*j), a); err != nil {
			return 0, err
		}
	}

	v, err := i.module.engine.host.Call(ctx, i.mod, i.rt, fn, this, uint32(len(args)), argv)
	if err != nil {
		return 0, runtimeError(err)
	}
	return v, nil
}

// scratch returns an argument buffer of at least size bytes. The callee
// copies its arguments out in its prologue, so one buffer serves every call.
func (i *Instance) scratch(ctx context.Context, size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	if size > i.argCap {
		size = max(size, minScratch)
		p, err := i.alloc.Alloc(ctx, size, 8)
		if err != nil {
			return 0, err
		}
		i.argv, i.argCap = p, size
	}
	return i.argv, nil
}

// Close releases the instance and its execution contexts.
func (i *Instance) Close(ctx context.Context) error {
	if i.mod == nil {
		return nil
	}
	i.module.engine.host.Unbind(i.name)
	err := i.mod.Close(ctx)
	i.mod = nil
	i.main = nil
	i.memory = nil
	i.alloc = nil
	i.rt = nil
	i.argv, i.argCap = 0, 0
	return err
}

func closed() error {
	return errors.New(errors.PhaseRuntime, errors.KindInvalidState).
		Detail("instance is closed").
		Build()
}

// runtimeError unwraps the structured error a host function raised from the
// trap wazero reports. Plain traps keep the wazero error as cause.
func runtimeError(err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e
	}
	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidState).
			Value(exit.ExitCode()).
			Cause(err).
			Detail("module exited").
			Build()
	}
	return errors.Wrap(errors.PhaseRuntime, errors.KindRangeError, err, "execution trapped")
}
