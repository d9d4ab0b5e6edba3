package jac

import (
	"context"

	"github.com/wippyai/jac/codegen"
	"github.com/wippyai/jac/engine"
	"github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/jacrt"
	"github.com/wippyai/jac/translate"
)

// Options configures Compile and Run.
type Options struct {
	// Engine configures the engine Run creates; nil uses the defaults.
	Engine    *engine.Config
	Translate translate.Options
	Codegen   codegen.Options
}

// DefaultOptions returns the default translate and codegen options.
func DefaultOptions() Options {
	return Options{
		Translate: translate.DefaultOptions(),
		Codegen:   codegen.DefaultOptions(),
	}
}

// Artifact is the result of compiling one bytecode container.
type Artifact struct {
	Translation *translate.Translation
	Manifest    *jacrt.Manifest
	Wasm        []byte
}

// Compiled returns the number of functions lowered to wasm.
func (a *Artifact) Compiled() int {
	return len(a.Translation.Funcs) - len(a.Translation.Degraded())
}

// Compile translates a serialized bytecode container and generates the
// WebAssembly module for it. Under translate.DegradeNone any function the
// code generator cannot lower fails the compilation.
func Compile(ctx context.Context, data []byte, opts Options) (*Artifact, error) {
	t, err := translate.Translate(ctx, data, opts.Translate)
	if err != nil {
		return nil, err
	}
	mod, err := codegen.Generate(t, opts.Codegen)
	if err != nil {
		return nil, err
	}
	if opts.Translate.Policy == translate.DegradeNone {
		if d := t.Degraded(); len(d) > 0 {
			return nil, errors.New(errors.PhaseCodegen, errors.KindUnsupportedFeature).
				Path(d[0].Index.String()).
				Detail("function left to the interpreter: %s", d[0].Reason).
				Build()
		}
	}
	return &Artifact{Translation: t, Manifest: mod.Manifest, Wasm: mod.Wasm}, nil
}

// Run compiles data, executes its root function on a new engine and
// returns the completion value.
func Run(ctx context.Context, data []byte, opts Options) (jacrt.Value, error) {
	a, err := Compile(ctx, data, opts)
	if err != nil {
		return 0, err
	}
	e, err := engine.NewEngine(ctx, opts.Engine)
	if err != nil {
		return 0, err
	}
	defer e.Close(ctx)

	mod, err := e.Load(ctx, a.Wasm)
	if err != nil {
		return 0, err
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return 0, err
	}
	defer inst.Close(ctx)
	return inst.Run(ctx)
}
