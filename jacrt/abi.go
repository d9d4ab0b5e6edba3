package jacrt

import (
	"strconv"

	"github.com/tetratelabs/wazero/api"
)

// HostModule is the import module name of the runtime ABI.
const HostModule = "jacrt"

// Exports every generated module provides.
const (
	MainExport    = "jac_main"
	StartExport   = "_start"
	ReallocExport = "cabi_realloc"
	MemoryExport  = "memory"
	CtxExport     = "jac_ctx"
)

// Runtime ABI function names.
const (
	FnInit               = "init"
	FnClosure            = "closure"
	FnResolveVarRef      = "resolve-non-local-var-ref"
	FnPutVarRef          = "put-var-ref"
	FnPutVarRefCheck     = "put-var-ref-check"
	FnGetVarRef          = "get-var-ref"
	FnGetVarRefCheck     = "get-var-ref-check"
	FnCloseVarRef        = "close-var-ref"
	FnThrowUninitialized = "throw-uninitialized"
	FnNewInt32           = "new-int32"
	FnNewFloat64         = "new-float64"
	FnUndef              = "undef"
	FnCall               = "call"
	FnInterpret          = "interpret"
	FnThrow              = "throw"
	FnToBool             = "to-bool"
	FnToNumeric          = "to-numeric"
)

// ImportFunc is one function of the runtime ABI.
type ImportFunc struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
	f64 = api.ValueTypeF64
)

func sig(name string, results []api.ValueType, params ...api.ValueType) ImportFunc {
	return ImportFunc{Name: name, Params: params, Results: results}
}

var (
	retI32 = []api.ValueType{i32}
	retI64 = []api.ValueType{i64}
)

// BinaryOps maps the ABI name of each two-operand helper to its
// implementation. Every helper has the signature (ctx i32, a i64, b i64) -> i64.
var BinaryOps = map[string]BinaryOp{
	"add": Add, "sub": Sub, "mul": Mul, "div": Div, "mod": Mod, "pow": Pow,
	"shl": Shl, "sar": Sar, "shr": Shr, "and": And, "or": Or, "xor": Xor,
	"lt": Lt, "lte": Lte, "gt": Gt, "gte": Gte,
	"eq": Eq, "neq": Neq, "strict-eq": StrictEq, "strict-neq": StrictNeq,
}

// UnaryOps maps the ABI name of each one-operand helper to its
// implementation. Every helper has the signature (ctx i32, v i64) -> i64.
var UnaryOps = map[string]UnaryOp{
	"neg": Neg, "inc": Inc, "dec": Dec, "not": Not,
}

var binaryOrder = []string{
	"add", "sub", "mul", "div", "mod", "pow", "shl", "sar", "shr", "and", "or", "xor",
	"lt", "lte", "gt", "gte", "eq", "neq", "strict-eq", "strict-neq",
}

var unaryOrder = []string{"neg", "inc", "dec", "not"}

// ABI lists the runtime functions in import order. Generated modules import
// all of them; the host module exports all of them.
var ABI = func() []ImportFunc {
	fns := []ImportFunc{
		sig(FnInit, retI32, i32),
		sig(FnClosure, retI64, i32, i32, i32),
		sig(FnResolveVarRef, nil, i32, i32, i32),
		sig(FnPutVarRef, nil, i32, i32, i64),
		sig(FnPutVarRefCheck, nil, i32, i32, i64),
		sig(FnGetVarRef, retI64, i32, i32),
		sig(FnGetVarRefCheck, retI64, i32, i32),
		sig(FnCloseVarRef, nil, i32, i32),
		sig(FnThrowUninitialized, nil, i32, i32, i32),
		sig(FnNewInt32, retI64, i32, i32),
		sig(FnNewFloat64, retI64, i32, f64),
		sig(FnUndef, retI64, i32),
		sig(FnCall, retI64, i32, i64, i64, i32, i32),
		sig(FnInterpret, retI64, i32, i32, i64, i32, i32),
		sig(FnThrow, nil, i32, i64),
		sig(FnToBool, retI32, i32, i64),
		sig(FnToNumeric, retI64, i32, i64),
	}
	for _, n := range binaryOrder {
		fns = append(fns, sig(n, retI64, i32, i64, i64))
	}
	for _, n := range unaryOrder {
		fns = append(fns, sig(n, retI64, i32, i64))
	}
	return fns
}()

var abiIndex = func() map[string]uint32 {
	m := make(map[string]uint32, len(ABI))
	for i, f := range ABI {
		m[f.Name] = uint32(i)
	}
	return m
}()

// ImportIndex returns the function index of an ABI import in a generated
// module, where the imports occupy the first indices in ABI order.
func ImportIndex(name string) (uint32, bool) {
	i, ok := abiIndex[name]
	return i, ok
}

// EntryParams and EntryResults form the signature of every compiled
// function export: (ctx i32, this i64, argc i32, argv i32) -> i64.
var (
	EntryParams  = []api.ValueType{i32, i64, i32, i32}
	EntryResults = []api.ValueType{i64}
)

// ExportName returns the export name of compiled function fn.
func ExportName(fn uint32) string {
	return "func-" + strconv.FormatUint(uint64(fn), 10)
}
