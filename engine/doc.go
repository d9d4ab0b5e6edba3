// Package engine runs generated modules on wazero.
//
// An Engine owns one wazero runtime and one jacrt host module. Every module
// loaded on it imports its runtime helpers from that host.
//
//	Engine.Load        compiles the wasm and reads the embedded manifest
//	Module.Instantiate gives the instance its own memory and binds it to the host
//	Instance.Run       executes the root function in a fresh execution context
//	Instance.Call      invokes a function value the root produced
//
// # Execution contexts
//
// Every Run calls jac_main, which creates a new execution context in the
// host. Closures, their environments and the call stack live in that context.
// Call reuses the context of the latest Run, so functions returned by the
// root keep seeing the cells they captured. Instances never share contexts.
//
// # Interpreted functions
//
// Functions the translator degraded are dispatched to Config.Interpreter.
// Without one, calling them fails with an unsupported_feature error.
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use. An Instance is not.
package engine
