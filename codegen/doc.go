// Package codegen lowers translated functions to a WebAssembly module that
// runs against the jacrt host ABI.
//
// Every compiled function becomes an export func-N with the signature
// (ctx i32, this i64, argc i32, argv i32) -> i64. Operand stack positions
// and register variables are wasm locals holding boxed values; captured
// variables live in runtime cells reached through the var-ref imports.
// Control flow is a single loop around a br_table over the basic blocks.
// Integer arithmetic and comparisons run inline when the operands are ints
// and call the runtime helpers otherwise.
//
// The module also exports its memory, a bump allocator (cabi_realloc), the
// execution context global, jac_main and _start, and carries the function
// manifest in the jac.manifest custom section.
package codegen
