package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in the pipeline the error occurred
type Phase string

const (
	PhaseParse     Phase = "parse"     // container structure
	PhaseDecode    Phase = "decode"    // operator decoding
	PhaseTranslate Phase = "translate" // IR building
	PhaseCodegen   Phase = "codegen"   // wasm emission
	PhaseRuntime   Phase = "runtime"   // compiled code execution
	PhaseLoad      Phase = "load"      // module loading / instantiation
	PhaseConfig    Phase = "config"    // configuration files and options
)

// Kind categorizes the error
type Kind string

const (
	KindUnexpectedEnd      Kind = "unexpected_end"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindUnsupportedTag     Kind = "unsupported_tag"
	KindInvalidState       Kind = "invalid_state"
	KindInvalidData        Kind = "invalid_data"
	KindOverflow           Kind = "overflow"

	KindUnsupportedOpcode  Kind = "unsupported_opcode"
	KindUnsupportedFeature Kind = "unsupported_feature"
	KindStackImbalance     Kind = "stack_imbalance"

	KindUninitialized Kind = "uninitialized"
	KindTypeError     Kind = "type_error"
	KindThrown        Kind = "thrown"
	KindRangeError    Kind = "range_error"
	KindNotFound      Kind = "not_found"

	KindInvalidInput  Kind = "invalid_input"
	KindInstantiation Kind = "instantiation"
)

// Class groups kinds into the three failure families callers act on.
type Class string

const (
	ClassMalformedContainer    Class = "malformed_container"
	ClassUnsupported           Class = "unsupported"
	ClassRuntimeStateViolation Class = "runtime_state_violation"
	ClassOther                 Class = "other"
)

// Class returns the failure family of the kind.
func (k Kind) Class() Class {
	switch k {
	case KindUnexpectedEnd, KindUnsupportedVersion, KindUnsupportedTag,
		KindInvalidState, KindInvalidData, KindOverflow:
		return ClassMalformedContainer
	case KindUnsupportedOpcode, KindUnsupportedFeature, KindStackImbalance:
		return ClassUnsupported
	case KindUninitialized, KindTypeError, KindThrown, KindRangeError, KindNotFound:
		return ClassRuntimeStateViolation
	}
	return ClassOther
}

// NoOffset marks an error that is not tied to a byte position.
const NoOffset = -1

// Error is the structured error type used throughout jac
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	State  string // parser state at failure, if any
	Op     string // opcode name, if any
	Detail string
	Path   []string
	Offset int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d", e.Offset)
		if e.State != "" {
			b.WriteString(", state ")
			b.WriteString(e.State)
		}
		b.WriteByte(')')
	} else if e.State != "" {
		b.WriteString(" (state ")
		b.WriteString(e.State)
		b.WriteByte(')')
	}

	if e.Op != "" {
		b.WriteString(": op ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		if e.Op != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Class returns the failure family of the error's kind.
func (e *Error) Class() Class {
	return e.Kind.Class()
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: NoOffset,
		},
	}
}

// Path sets the location path (function, section, ...)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Offset sets the absolute byte offset
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// State sets the parser state name
func (b *Builder) State(s string) *Builder {
	b.err.State = s
	return b
}

// Op sets the opcode name
func (b *Builder) Op(name string) *Builder {
	b.err.Op = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnexpectedEnd creates a truncated input error at an absolute offset
func UnexpectedEnd(phase Phase, offset, want, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedEnd,
		Offset: offset,
		Detail: fmt.Sprintf("need %d bytes, %d remaining", want, have),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, offset int, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Offset: offset,
		Detail: detail,
	}
}

// UnsupportedOpcode creates an unsupported opcode error
func UnsupportedOpcode(phase Phase, offset int, op byte, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupportedOpcode,
		Offset: offset,
		Op:     name,
		Value:  op,
		Detail: fmt.Sprintf("opcode 0x%02x", op),
	}
}

// UnsupportedFeature creates an error for a construct the translator does not lower
func UnsupportedFeature(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupportedFeature,
		Offset: NoOffset,
		Detail: what,
	}
}

// Uninitialized creates a use-before-initialization error
func Uninitialized(what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindUninitialized,
		Offset: NoOffset,
		Detail: fmt.Sprintf("cannot access %s before initialization", what),
	}
}

// TypeError creates a runtime type error
func TypeError(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTypeError,
		Offset: NoOffset,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Offset: NoOffset,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Offset: NoOffset,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Offset: NoOffset,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}

// ClassOf returns the failure family of the first *Error in err's chain.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class()
	}
	return ClassOther
}

// IsMalformed reports whether err is a malformed container failure.
func IsMalformed(err error) bool {
	return ClassOf(err) == ClassMalformedContainer
}

// IsUnsupported reports whether err is recoverable by leaving code interpreted.
func IsUnsupported(err error) bool {
	return ClassOf(err) == ClassUnsupported
}

// IsRuntimeViolation reports whether err is a runtime state violation.
func IsRuntimeViolation(err error) bool {
	return ClassOf(err) == ClassRuntimeStateViolation
}
