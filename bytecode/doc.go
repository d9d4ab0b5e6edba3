// Package bytecode reads QuickJS bytecode containers.
//
// A container is parsed incrementally: Parser.Next yields one structural
// payload per call (version, atom header, module header, then for every
// function its header, locals, closure variables, operator body and
// optional debug info, innermost functions first). Operator bodies are
// handed out as sub-readers and decoded on demand with Decode or DecodeAll.
//
// Every failure is an *errors.Error carrying the absolute byte offset of
// the read that failed and, for parse errors, the parser state.
package bytecode
