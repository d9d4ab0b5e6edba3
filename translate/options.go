package translate

import "runtime"

// Policy decides what happens to a function the translator cannot lower.
type Policy uint8

const (
	// DegradeFunction leaves the function to the interpreter and compiles
	// the rest of the module.
	DegradeFunction Policy = iota
	// DegradeNone fails the whole translation instead.
	DegradeNone
)

func (p Policy) String() string {
	switch p {
	case DegradeFunction:
		return "function"
	case DegradeNone:
		return "none"
	}
	return "unknown"
}

// ParsePolicy maps a policy name back to its value.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "function", "":
		return DegradeFunction, true
	case "none":
		return DegradeNone, true
	}
	return 0, false
}

// Options configures Translate.
type Options struct {
	Policy Policy
	// Parallelism bounds concurrent function builds; zero means GOMAXPROCS.
	Parallelism int
}

// DefaultOptions returns options that degrade per function and build with
// GOMAXPROCS workers.
func DefaultOptions() Options {
	return Options{Policy: DegradeFunction, Parallelism: runtime.GOMAXPROCS(0)}
}
