// Package translate turns a parsed bytecode container into the per-function
// analysis the code generator lowers from.
//
// For every function it decodes the operator body, builds the control-flow
// graph, simulates the operand stack, assigns each argument and variable a
// register or an environment cell, and classifies the closure variables
// against the parent. Functions using constructs the generator does not
// lower are degraded to the interpreter according to the Policy.
package translate
