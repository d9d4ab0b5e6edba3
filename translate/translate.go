package translate

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/jac/bytecode"
	"github.com/wippyai/jac/errors"
)

// Translate parses a bytecode container and analyses every function it
// defines. Functions the code generator cannot lower are degraded to
// ModeInterpreted under DegradeFunction; under DegradeNone the first such
// function fails the translation. Malformed input always fails.
func Translate(ctx context.Context, data []byte, opts Options) (*Translation, error) {
	t, err := group(data)
	if err != nil {
		return nil, err
	}

	for _, f := range t.Funcs {
		if err := assignSlots(t, f); err != nil {
			return nil, err
		}
	}
	for _, f := range t.Funcs {
		if err := resolveCaptures(t, f); err != nil {
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for _, f := range t.Funcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return (&builder{fn: f}).build()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, f := range t.Funcs {
		if f.Compiled() {
			continue
		}
		if opts.Policy == DegradeNone {
			return nil, f.Err
		}
		Logger().Info("function degraded",
			zap.Stringer("func", f.Index),
			zap.String("name", f.Name),
			zap.String("reason", f.Reason))
	}
	Logger().Debug("translated",
		zap.Int("functions", len(t.Funcs)),
		zap.Int("degraded", len(t.Degraded())))
	return t, nil
}

// group collects the parser payloads into one FunctionTranslation per
// function definition, linking children to their parents in
// constant-pool order.
func group(data []byte) (*Translation, error) {
	t := &Translation{}
	for pl, err := range bytecode.All(data) {
		if err != nil {
			return nil, err
		}
		switch p := pl.(type) {
		case *bytecode.VersionPayload:
			t.Version = p.Version
		case *bytecode.HeaderSection:
			t.Atoms = p.Atoms
		case *bytecode.ModuleHeaderPayload:
			t.Module = p.Module
		case *bytecode.FunctionHeaderPayload:
			f := &FunctionTranslation{
				Index:  p.Func,
				Parent: p.Parent,
				Depth:  p.Depth,
				Header: p.Header,
				Name:   t.Atoms.Name(p.Header.Name),
			}
			if uint64(p.Header.LocalCount) != uint64(p.Header.ArgCount)+uint64(p.Header.VarCount) {
				return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
					Path(p.Func.String()).
					Detail("%d locals for %d arguments and %d variables",
						p.Header.LocalCount, p.Header.ArgCount, p.Header.VarCount).
					Build()
			}
			t.Funcs = append(t.Funcs, f)
			if parent, ok := t.Func(p.Parent); ok {
				parent.Children = append(parent.Children, p.Func)
			}
		case *bytecode.FunctionLocals:
			t.Funcs[p.Func].Locals = p.Locals
		case *bytecode.FunctionClosureVars:
			t.Funcs[p.Func].ClosureVars = p.ClosureVars
		case *bytecode.FunctionOperators:
			f := t.Funcs[p.Func]
			f.body = p.Body
			f.BodyOffset = p.Body.Base()
		case *bytecode.FunctionDebugInfo:
			d := p.Debug
			t.Funcs[p.Func].Debug = &d
		}
	}
	if len(t.Funcs) == 0 {
		return nil, errors.InvalidData(errors.PhaseTranslate, errors.NoOffset, "container defines no function")
	}
	return t, nil
}

// builder analyses one function. Builders for different functions share
// only read-only state and run concurrently.
type builder struct {
	fn *FunctionTranslation
}

func (b *builder) build() error {
	f := b.fn
	f.Mode = ModeCompiled

	instrs, err := bytecode.DecodeAll(f.body)
	f.Instrs = instrs
	if err != nil {
		if errors.IsUnsupported(err) {
			b.degrade(err)
			return nil
		}
		return err
	}

	if f.CFG, err = buildCFG(f.Instrs, f.BodyOffset); err != nil {
		return err
	}
	if err := b.checkOperands(); err != nil {
		return err
	}
	if err := b.checkSupport(); err != nil {
		b.degrade(err)
		return nil
	}
	if err := b.simulate(); err != nil {
		b.degrade(err)
		return nil
	}
	b.inferKinds()
	return nil
}

func (b *builder) degrade(err error) {
	f := b.fn
	f.Mode = ModeInterpreted
	f.Err = err
	f.Reason = err.Error()
	if e, ok := err.(*errors.Error); ok {
		f.Reason = string(e.Kind)
		if e.Op != "" {
			f.Reason += " " + e.Op
		} else if e.Detail != "" {
			f.Reason += ": " + e.Detail
		}
	}
}

// Degrade marks f interpreted after a later stage failed to lower it.
func (f *FunctionTranslation) Degrade(err error) {
	(&builder{fn: f}).degrade(err)
}
