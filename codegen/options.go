package codegen

import (
	"github.com/wippyai/jac/errors"
)

const (
	// PageSize is the WebAssembly page size in bytes.
	PageSize = 65536
	// ArgStackBase is the address of the argument stack. The bytes below
	// it are left unused so a zero pointer never aliases live data.
	ArgStackBase = 1024
)

// Options configures Generate.
type Options struct {
	// MemoryPages is the initial linear memory size.
	MemoryPages uint32
	// MaxMemoryPages caps memory growth; zero leaves memory unbounded.
	MaxMemoryPages uint32
	// ArgStackSize is the size in bytes of the region call arguments are
	// spilled to. The heap starts right after it.
	ArgStackSize uint32
	// NameSection emits a "name" custom section naming every function.
	NameSection bool
}

// DefaultOptions returns two pages of memory, a 64KiB argument stack and a
// name section.
func DefaultOptions() Options {
	return Options{
		MemoryPages:  2,
		ArgStackSize: 64 * 1024,
		NameSection:  true,
	}
}

// HeapBase returns the first address cabi_realloc hands out.
func (o Options) HeapBase() uint32 {
	return ArgStackBase + o.ArgStackSize
}

func (o Options) validate() error {
	if o.ArgStackSize < 8 {
		return errors.InvalidInput(errors.PhaseConfig, "argument stack must hold at least one value")
	}
	if uint64(o.HeapBase()) > uint64(o.MemoryPages)*PageSize || o.HeapBase() < ArgStackBase {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(o.MemoryPages).
			Detail("%d pages cannot hold a %d byte argument stack", o.MemoryPages, o.ArgStackSize).
			Build()
	}
	if o.MaxMemoryPages != 0 && o.MaxMemoryPages < o.MemoryPages {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(o.MaxMemoryPages).
			Detail("maximum of %d pages is below the initial %d", o.MaxMemoryPages, o.MemoryPages).
			Build()
	}
	return nil
}
