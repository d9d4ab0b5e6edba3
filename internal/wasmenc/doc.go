// Package wasmenc encodes core WebAssembly modules.
//
// It covers the subset the code generator emits: function types with
// deduplication, function imports, one linear memory, scalar globals,
// exports, an optional start function, code bodies and custom sections.
// Code builds instruction streams and tracks block nesting so that
// unbalanced bodies are rejected before encoding.
package wasmenc
