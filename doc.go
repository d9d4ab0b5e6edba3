// Package jac compiles QuickJS bytecode containers ahead of time to
// WebAssembly and runs the result.
//
// # Architecture Overview
//
//	jac/                Compile, Run, Disassemble and SetLogger
//	├── bytecode/       Container reader, streaming parser and operator decoder
//	├── translate/      Per-function analysis: slots, captures, CFG, stack depths
//	├── codegen/        Lowering to wasm and module assembly
//	├── jacrt/          Runtime host module: values, environments, closures, helpers
//	├── engine/         wazero integration: load, instantiate, run, call
//	├── errors/         Structured error types
//	├── internal/       Wasm binary encoder and bytecode test assembler
//	└── cmd/jac/        Command line: compile, disasm, run, inspect
//
// # Quick Start
//
//	a, err := jac.Compile(ctx, data, jac.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("out.wasm", a.Wasm, 0o644)
//
// Or compile and execute in one step:
//
//	v, err := jac.Run(ctx, data, jac.DefaultOptions())
//
// # Degraded functions
//
// A function that uses an operator the code generator cannot lower is left
// to the interpreter instead of failing the whole container. The manifest
// embedded in the module records every such function and the reason.
// Set translate.DegradeNone to make them fatal instead.
//
// # Error Handling
//
// All packages return *errors.Error values carrying the pipeline phase,
// the failure kind and the offset or function path where it happened:
//
//	var e *errors.Error
//	if stderrors.As(err, &e) {
//	    fmt.Println(e.Phase, e.Kind, e.Path)
//	}
package jac
