package engine

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/jacrt"
)

// Engine runs generated modules on a wazero runtime shared with one jacrt
// host module.
type Engine struct {
	runtime  wazero.Runtime
	host     *jacrt.Host
	cfg      Config
	hostMu   sync.Mutex
	hostDone atomic.Bool
	seq      atomic.Uint64
}

// Config holds configuration for engine creation
type Config struct {
	// Interpreter runs the functions the translator left interpreted. Without
	// one, calling such a function fails with unsupported_feature.
	Interpreter jacrt.Interpreter

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// MaxCallDepth bounds nested calls per execution context. 0 means
	// jacrt.DefaultMaxCallDepth.
	MaxCallDepth int
}

// NewEngine creates an engine. A nil cfg uses the defaults.
func NewEngine(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCustomSections(true)
	e := &Engine{host: jacrt.NewHost()}
	if cfg != nil {
		e.cfg = *cfg
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.MaxCallDepth < 0 {
			return nil, errors.InvalidInput(errors.PhaseConfig, "negative max call depth")
		}
	}
	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return e, nil
}

// Host returns the runtime host module the engine links modules against.
func (e *Engine) Host() *jacrt.Host {
	return e.host
}

// initHost instantiates the jacrt host module once per engine.
// Safe for concurrent calls.
func (e *Engine) initHost(ctx context.Context) error {
	if e.hostDone.Load() {
		return nil
	}
	e.hostMu.Lock()
	defer e.hostMu.Unlock()
	if e.hostDone.Load() {
		return nil
	}
	if _, err := e.host.Instantiate(ctx, e.runtime); err != nil {
		return err
	}
	e.hostDone.Store(true)
	return nil
}

// Load compiles a generated module and reads its manifest.
func (e *Engine) Load(ctx context.Context, wasm []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "compile module")
	}

	var manifest *jacrt.Manifest
	for _, s := range compiled.CustomSections() {
		if s.Name() != jacrt.ManifestSection {
			continue
		}
		if manifest, err = jacrt.UnmarshalManifest(s.Data()); err != nil {
			_ = compiled.Close(ctx)
			return nil, err
		}
	}
	if manifest == nil {
		_ = compiled.Close(ctx)
		return nil, errors.NotFound(errors.PhaseLoad, "custom section", jacrt.ManifestSection)
	}
	for _, name := range []string{jacrt.MainExport, jacrt.ReallocExport} {
		if _, ok := compiled.ExportedFunctions()[name]; !ok {
			_ = compiled.Close(ctx)
			return nil, errors.NotFound(errors.PhaseLoad, "export", name)
		}
	}

	Logger().Debug("module loaded",
		zap.Int("funcs", len(manifest.Funcs)),
		zap.Int("bytes", len(wasm)))
	return &Module{engine: e, compiled: compiled, manifest: manifest}, nil
}

// Close releases the runtime and every module instantiated on it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Module is a compiled, not yet instantiated, generated module.
// It is safe for concurrent use.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
	manifest *jacrt.Manifest
}

// Manifest returns the function manifest embedded in the module.
func (m *Module) Manifest() *jacrt.Manifest {
	return m.manifest
}

// Instantiate creates an instance. Every instance gets its own memory and
// its own execution contexts, so closure environments are never shared
// between instances.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	e := m.engine
	if err := e.initHost(ctx); err != nil {
		return nil, err
	}

	name := "jac-" + strconv.FormatUint(e.seq.Add(1), 10)
	e.host.Bind(name, jacrt.Options{
		Manifest:     m.manifest,
		Interpreter:  e.cfg.Interpreter,
		MaxCallDepth: e.cfg.MaxCallDepth,
	})

	modConfig := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		e.host.Unbind(name)
		return nil, errors.Instantiation(err)
	}

	inst := &Instance{
		module: m,
		mod:    mod,
		name:   name,
		main:   mod.ExportedFunction(jacrt.MainExport),
	}
	if mem := mod.Memory(); mem != nil {
		inst.memory = &wazeroMemory{mem: mem}
	}
	inst.alloc = &allocator{fn: mod.ExportedFunction(jacrt.ReallocExport)}

	Logger().Debug("instantiated", zap.String("name", name))
	return inst, nil
}
