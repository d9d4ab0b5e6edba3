// Package jacrt is the runtime compiled modules link against.
//
// A CompilerRuntime holds the state of one execution context: function
// environments keyed by FuncEnvHandle, the call frame stack, the current
// environment cursor and the object table backing function values.
// Captured variables live in reference-counted VarRef cells; a closure's
// environment aliases the cells of the environment that created it, so
// writes on either side are visible on both.
//
// Host exposes the runtime to generated code as the "jacrt" wasm import
// module. Values cross the boundary NaN-boxed as i64 (see Value); the
// execution context crosses as an i32 handle returned by init.
package jacrt
