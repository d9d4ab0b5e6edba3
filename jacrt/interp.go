package jacrt

import "context"

// Call describes one invocation of a function that was left interpreted.
// Env is the activation environment: the function's closure cells followed
// by its own captured slots, and it is current for the duration of the call.
type Call struct {
	Runtime *CompilerRuntime
	This    Value
	Args    []Value
	Func    uint32
	Env     FuncEnvHandle
}

// Interpreter executes functions the translator did not compile. It is the
// port to the embedding engine's bytecode interpreter.
type Interpreter interface {
	Interpret(ctx context.Context, call *Call) (Value, error)
}

// InterpreterFunc adapts a function to the Interpreter interface.
type InterpreterFunc func(ctx context.Context, call *Call) (Value, error)

// Interpret calls f.
func (f InterpreterFunc) Interpret(ctx context.Context, call *Call) (Value, error) {
	return f(ctx, call)
}
