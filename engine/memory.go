package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/jacrt"
)

// Memory is an instance's linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU64(offset uint32) (uint64, error)
	WriteU64(offset uint32, value uint64) error
	ReadValue(offset uint32) (jacrt.Value, error)
	WriteValue(offset uint32, v jacrt.Value) error
	Size() uint32
}

// Allocator hands out guest memory through the module's cabi_realloc.
// The allocator never reuses memory, so there is no Free.
type Allocator interface {
	Alloc(ctx context.Context, size, align uint32) (uint32, error)
}

type wazeroMemory struct {
	mem api.Memory
}

func outOfBounds(op string, offset, length uint32) error {
	return errors.New(errors.PhaseRuntime, errors.KindRangeError).
		Op(op).
		Value(offset).
		Detail("out of bounds: offset=%d, length=%d", offset, length).
		Build()
}

func (m *wazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds("read", offset, length)
	}
	return data, nil
}

func (m *wazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return outOfBounds("write", offset, uint32(len(data)))
	}
	return nil
}

func (m *wazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 8)
	}
	return v, nil
}

func (m *wazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return outOfBounds("write", offset, 8)
	}
	return nil
}

func (m *wazeroMemory) ReadValue(offset uint32) (jacrt.Value, error) {
	v, err := m.ReadU64(offset)
	return jacrt.Value(v), err
}

func (m *wazeroMemory) WriteValue(offset uint32, v jacrt.Value) error {
	return m.WriteU64(offset, uint64(v))
}

func (m *wazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

type allocator struct {
	fn    api.Function
	stack [4]uint64
	mu    sync.Mutex
}

func (a *allocator) Alloc(ctx context.Context, size, align uint32) (uint32, error) {
	if a.fn == nil {
		return 0, errors.NotFound(errors.PhaseRuntime, "export", jacrt.ReallocExport)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stack = [4]uint64{0, 0, uint64(align), uint64(size)}
	if err := a.fn.CallWithStack(ctx, a.stack[:]); err != nil {
		return 0, errors.New(errors.PhaseRuntime, errors.KindRangeError).
			Op(jacrt.ReallocExport).
			Cause(err).
			Detail("allocate %d bytes", size).
			Build()
	}
	return uint32(a.stack[0]), nil
}

var (
	_ Memory    = (*wazeroMemory)(nil)
	_ Allocator = (*allocator)(nil)
)
