package bytecode

import (
	"strconv"
)

// builtinAtoms mirrors the engine's predefined atom table. Index 0 is the null
// atom; container atoms are numbered after the last built-in entry.
var builtinAtoms = [...]string{
	"",
	"null", "false", "true", "if", "else", "return", "var", "this", "delete",
	"void", "typeof", "new", "in", "instanceof", "do", "while", "for", "break",
	"continue", "switch", "case", "default", "throw", "try", "catch", "finally",
	"function", "debugger", "with", "class", "const", "enum", "export", "extends",
	"import", "super", "implements", "interface", "let", "package", "private",
	"protected", "public", "static", "yield", "await",
	"", "length", "fileName", "lineNumber", "columnNumber", "message", "cause",
	"errors", "stack", "name", "toString", "toLocaleString", "valueOf", "eval",
	"prototype", "constructor", "configurable", "writable", "enumerable", "value",
	"get", "set", "of", "__proto__", "undefined", "number", "boolean", "string",
	"object", "symbol", "integer", "unknown", "arguments", "callee", "caller",
	"<eval>", "<ret>", "<var>", "<arg_var>", "<with>", "lastIndex", "target",
	"index", "input", "defineProperties", "apply", "join", "concat", "split",
	"construct", "getPrototypeOf", "setPrototypeOf", "isExtensible",
	"preventExtensions", "has", "deleteProperty", "defineProperty",
	"getOwnPropertyDescriptor", "ownKeys", "add", "done", "next", "values",
	"source", "flags", "global", "unicode", "raw", "new.target",
	"this.active_func", "<home_object>", "<computed_field>",
	"<static_computed_field>", "<class_fields_init>", "<brand>", "#constructor",
	"as", "from", "meta", "*default*", "*", "Module", "then", "resolve", "reject",
	"promise", "proxy", "revoke", "async", "exec", "groups", "indices", "status",
	"reason", "globalThis", "bigint", "not-equal", "timed-out", "ok", "toJSON",
	"Object", "Array", "Error", "Number", "String", "Boolean", "Symbol",
	"Arguments", "Math", "JSON", "Date", "Function", "GeneratorFunction",
	"ForInIterator", "RegExp", "ArrayBuffer", "SharedArrayBuffer",
	"Uint8ClampedArray", "Int8Array", "Uint8Array", "Int16Array", "Uint16Array",
	"Int32Array", "Uint32Array", "BigInt64Array", "BigUint64Array",
	"Float32Array", "Float64Array", "DataView", "BigInt", "Map", "Set",
	"WeakMap", "WeakSet", "Map Iterator", "Set Iterator", "Array Iterator",
	"String Iterator", "RegExp String Iterator", "Generator", "Proxy", "Promise",
	"PromiseResolveFunction", "PromiseRejectFunction", "AsyncFunction",
	"AsyncFunctionResolve", "AsyncFunctionReject", "AsyncGeneratorFunction",
	"AsyncGenerator", "EvalError", "RangeError", "ReferenceError", "SyntaxError",
	"TypeError", "URIError", "InternalError", "<brand>",
	"Symbol.toPrimitive", "Symbol.iterator", "Symbol.match", "Symbol.matchAll",
	"Symbol.replace", "Symbol.search", "Symbol.split", "Symbol.toStringTag",
	"Symbol.isConcatSpreadable", "Symbol.hasInstance", "Symbol.species",
	"Symbol.unscopables", "Symbol.asyncIterator",
}

// BuiltinAtomCount is the index of the first container-defined atom.
const BuiltinAtomCount = len(builtinAtoms)

// AtomTable resolves atom indices for one container: the built-in names
// followed by the names read from the container header.
type AtomTable struct {
	names []string
}

// NewAtomTable returns a table holding only the built-in names.
func NewAtomTable() *AtomTable {
	names := make([]string, BuiltinAtomCount, BuiltinAtomCount+16)
	copy(names, builtinAtoms[:])
	return &AtomTable{names: names}
}

func (t *AtomTable) push(name string) {
	t.names = append(t.names, name)
}

// Len returns the number of entries including built-ins.
func (t *AtomTable) Len() int {
	return len(t.names)
}

// ContainerAtoms returns the names defined by the container header.
func (t *AtomTable) ContainerAtoms() []string {
	return t.names[BuiltinAtomCount:]
}

// Lookup returns the name for an atom index.
func (t *AtomTable) Lookup(a AtomIndex) (string, bool) {
	if a.IsTaggedInt() {
		return strconv.FormatUint(uint64(a.Int()), 10), true
	}
	if a == NoAtom || int(a) >= len(t.names) {
		return "", false
	}
	return t.names[a], true
}

// Name returns the name for an atom index, or a placeholder when unknown.
func (t *AtomTable) Name(a AtomIndex) string {
	if t == nil {
		return "<atom " + strconv.FormatUint(uint64(a), 10) + ">"
	}
	if s, ok := t.Lookup(a); ok {
		return s
	}
	return "<atom " + strconv.FormatUint(uint64(a), 10) + ">"
}

// Index returns the index of the first atom with the given name.
func (t *AtomTable) Index(name string) (AtomIndex, bool) {
	for i, n := range t.names {
		if i != 0 && n == name {
			return AtomIndex(i), true
		}
	}
	return NoAtom, false
}
