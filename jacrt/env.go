package jacrt

import (
	"strconv"

	"github.com/wippyai/jac/errors"
)

// VarRef is a shared mutable cell holding one captured variable. Every
// FuncEnv slot that aliases the cell holds one reference.
type VarRef struct {
	value Value
	refs  int
}

func newVarRef(v Value) *VarRef {
	return &VarRef{value: v, refs: 1}
}

// Get returns the cell's value.
func (r *VarRef) Get() Value { return r.value }

// Set stores v in the cell.
func (r *VarRef) Set(v Value) { r.value = v }

// Initialized reports whether the cell has been written.
func (r *VarRef) Initialized() bool { return !r.value.IsUninitialized() }

// Refs returns the number of environments holding the cell.
func (r *VarRef) Refs() int { return r.refs }

func (r *VarRef) retain() *VarRef {
	r.refs++
	return r
}

func (r *VarRef) release() {
	r.refs--
	if r.refs == 0 {
		r.value = Undefined
	}
}

// FuncEnvHandle identifies a FuncEnv inside one CompilerRuntime.
type FuncEnvHandle uint32

// RootEnv is the environment created by Init.
const RootEnv FuncEnvHandle = 0

func (h FuncEnvHandle) String() string {
	return "env#" + strconv.FormatUint(uint64(h), 10)
}

// FuncEnv is the variable reference table of one closure instance or one
// activation.
type FuncEnv struct {
	refs   []*VarRef
	Handle FuncEnvHandle
	Func   uint32
}

// Len returns the number of slots.
func (e *FuncEnv) Len() int {
	return len(e.refs)
}

// Ref returns the cell at slot i.
func (e *FuncEnv) Ref(i int) (*VarRef, bool) {
	if i < 0 || i >= len(e.refs) {
		return nil, false
	}
	return e.refs[i], true
}

func (e *FuncEnv) release() {
	for _, r := range e.refs {
		r.release()
	}
	e.refs = nil
}

func (rt *CompilerRuntime) addEnv(h FuncEnvHandle, fn uint32, size int) *FuncEnv {
	if old, ok := rt.envs[h]; ok {
		old.release()
	}
	env := &FuncEnv{Handle: h, Func: fn, refs: make([]*VarRef, 0, size)}
	rt.envs[h] = env
	return env
}

// Init creates the root environment with slots uninitialized cells and
// makes it current.
func (rt *CompilerRuntime) Init(slots int) error {
	if rt.initialized {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidState).
			Detail("runtime already initialized").
			Build()
	}
	if slots < 0 {
		return errors.New(errors.PhaseRuntime, errors.KindRangeError).
			Detail("negative slot count %d", slots).
			Build()
	}
	env := rt.addEnv(RootEnv, 0, slots)
	for range slots {
		env.refs = append(env.refs, newVarRef(Uninitialized))
	}
	rt.current = RootEnv
	rt.initialized = true
	rt.nextEnv = RootEnv + 1
	Logger().Debug("runtime initialized")
	return nil
}

// PushDefaultEnv creates a blank environment under a caller-chosen handle.
// An environment already registered under h is released and replaced, so
// cells it held stay alive only through their other references. The root
// environment cannot be replaced.
func (rt *CompilerRuntime) PushDefaultEnv(h FuncEnvHandle) (*FuncEnv, error) {
	if h == RootEnv {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidState).
			Value(h).
			Detail("cannot replace the root environment").
			Build()
	}
	return rt.addEnv(h, uint32(h), 0), nil
}

// NewEnv creates a blank environment for a closure of function fn under a
// fresh handle.
func (rt *CompilerRuntime) NewEnv(fn uint32) FuncEnvHandle {
	h := rt.nextEnv
	for {
		if _, taken := rt.envs[h]; !taken && h != RootEnv {
			break
		}
		h++
	}
	rt.nextEnv = h + 1
	rt.addEnv(h, fn, 0)
	return h
}

// Env returns the environment registered under h.
func (rt *CompilerRuntime) Env(h FuncEnvHandle) (*FuncEnv, bool) {
	env, ok := rt.envs[h]
	return env, ok
}

// DropEnv releases the environment's cells and forgets the handle.
func (rt *CompilerRuntime) DropEnv(h FuncEnvHandle) {
	if env, ok := rt.envs[h]; ok {
		env.release()
		delete(rt.envs, h)
	}
}

// Envs returns the number of live environments.
func (rt *CompilerRuntime) Envs() int {
	return len(rt.envs)
}

// CurrentEnv returns the handle of the environment var-ref operations use.
func (rt *CompilerRuntime) CurrentEnv() FuncEnvHandle {
	return rt.current
}

// SetCurrentEnv moves the current-environment cursor and returns the
// previous handle.
func (rt *CompilerRuntime) SetCurrentEnv(h FuncEnvHandle) (FuncEnvHandle, error) {
	if _, ok := rt.envs[h]; !ok {
		return rt.current, errors.NotFound(errors.PhaseRuntime, "environment", h.String())
	}
	prev := rt.current
	rt.current = h
	return prev, nil
}

func (rt *CompilerRuntime) ref(h FuncEnvHandle, index int) (*VarRef, error) {
	env, ok := rt.envs[h]
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "environment", h.String())
	}
	r, ok := env.Ref(index)
	if !ok {
		return nil, errors.New(errors.PhaseRuntime, errors.KindRangeError).
			Path(h.String()).
			Value(index).
			Detail("var ref %d out of range (%d slots)", index, env.Len()).
			Build()
	}
	return r, nil
}

// ResolveNonLocalVarRef appends a second reference to the cell at index of
// the current environment to target's environment. Both then observe the
// same mutations.
func (rt *CompilerRuntime) ResolveNonLocalVarRef(index int, target FuncEnvHandle) error {
	r, err := rt.ref(rt.current, index)
	if err != nil {
		return err
	}
	env, ok := rt.envs[target]
	if !ok {
		return errors.NotFound(errors.PhaseRuntime, "environment", target.String())
	}
	env.refs = append(env.refs, r.retain())
	return nil
}

// PutVarRef writes v into the cell at index of the current environment.
func (rt *CompilerRuntime) PutVarRef(index int, v Value) error {
	r, err := rt.ref(rt.current, index)
	if err != nil {
		return err
	}
	r.Set(v)
	return nil
}

// PutVarRefCheck writes v into an initialized cell; writing a cell still in
// its temporal dead zone fails.
func (rt *CompilerRuntime) PutVarRefCheck(index int, v Value) error {
	r, err := rt.ref(rt.current, index)
	if err != nil {
		return err
	}
	if !r.Initialized() {
		return rt.uninitialized(index)
	}
	r.Set(v)
	return nil
}

// GetVarRefValue reads the cell at index of the current environment. An
// uninitialized cell reads as undefined.
func (rt *CompilerRuntime) GetVarRefValue(index int) (Value, error) {
	r, err := rt.ref(rt.current, index)
	if err != nil {
		return 0, err
	}
	if !r.Initialized() {
		return Undefined, nil
	}
	return r.Get(), nil
}

// GetVarRefCheck reads the cell at index and fails if it was never
// initialized.
func (rt *CompilerRuntime) GetVarRefCheck(index int) (Value, error) {
	r, err := rt.ref(rt.current, index)
	if err != nil {
		return 0, err
	}
	if !r.Initialized() {
		return 0, rt.uninitialized(index)
	}
	return r.Get(), nil
}

// CloseVarRef detaches slot index of the current environment from the cell
// it shares: closures keep the old cell and the slot continues with a fresh
// cell holding the same value.
func (rt *CompilerRuntime) CloseVarRef(index int) error {
	env, ok := rt.envs[rt.current]
	if !ok {
		return errors.NotFound(errors.PhaseRuntime, "environment", rt.current.String())
	}
	r, err := rt.ref(rt.current, index)
	if err != nil {
		return err
	}
	if r.refs == 1 {
		return nil
	}
	env.refs[index] = newVarRef(r.Get())
	r.release()
	return nil
}

func (rt *CompilerRuntime) uninitialized(index int) error {
	name := "variable"
	if env, ok := rt.envs[rt.current]; ok {
		if n := rt.manifest.SlotName(env.Func, index); n != "" {
			name = "'" + n + "'"
		}
	}
	e := errors.Uninitialized(name)
	e.Path = []string{rt.current.String()}
	e.Value = index
	return e
}
