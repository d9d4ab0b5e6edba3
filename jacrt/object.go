package jacrt

import "context"

// NativeFunc is a Go function callable from compiled code.
type NativeFunc func(ctx context.Context, rt *CompilerRuntime, this Value, args []Value) (Value, error)

// Closure is a function value created by compiled code. Env holds the
// cells the function captured when the closure was created.
type Closure struct {
	Func uint32
	Env  FuncEnvHandle
	Argc int
}

// Native is a function value backed by Go code.
type Native struct {
	Fn   NativeFunc
	Name string
}

type object struct {
	value any
	valid bool
}

// ObjectTable maps object references to Go values. Reference 0 is reserved
// so that a zero payload never names an object.
type ObjectTable struct {
	entries  []object
	freeList []uint32
}

// NewObjectTable creates an empty table.
func NewObjectTable() *ObjectTable {
	return &ObjectTable{
		entries:  make([]object, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Insert stores value and returns its reference.
func (t *ObjectTable) Insert(value any) uint32 {
	e := object{value: value, valid: true}
	if n := len(t.freeList); n > 0 {
		ref := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[ref-1] = e
		return ref
	}
	t.entries = append(t.entries, e)
	return uint32(len(t.entries))
}

// Get returns the value stored under ref.
func (t *ObjectTable) Get(ref uint32) (any, bool) {
	if ref == 0 || int(ref) > len(t.entries) {
		return nil, false
	}
	e := t.entries[ref-1]
	return e.value, e.valid
}

// Remove forgets ref and returns its value.
func (t *ObjectTable) Remove(ref uint32) (any, bool) {
	if ref == 0 || int(ref) > len(t.entries) {
		return nil, false
	}
	e := &t.entries[ref-1]
	if !e.valid {
		return nil, false
	}
	v := e.value
	*e = object{}
	t.freeList = append(t.freeList, ref)
	return v, true
}

// Len returns the number of live objects.
func (t *ObjectTable) Len() int {
	return len(t.entries) - len(t.freeList)
}

// Release removes the object v references. Releasing a closure also drops
// its environment; cells shared with other environments stay alive.
func (rt *CompilerRuntime) Release(v Value) bool {
	if !v.IsObject() {
		return false
	}
	obj, ok := rt.objects.Remove(v.Ref())
	if !ok {
		return false
	}
	if c, ok := obj.(*Closure); ok {
		if rt.pending[c.Func] == c.Env {
			delete(rt.pending, c.Func)
		}
		rt.DropEnv(c.Env)
	}
	return true
}
