// Package errors provides structured error types for the jac pipeline.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Kinds fall into three classes: malformed container input, constructs
// the translator does not lower, and runtime state violations raised by compiled
// code. The Error type carries the byte offset and parser state when known.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseParse, errors.KindUnsupportedTag).
//		Offset(17).
//		State("Tags").
//		Detail("tag 0x%02x", tag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnexpectedEnd(errors.PhaseParse, off, 4, 1)
//	err := errors.Uninitialized("variable x")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
