// Package extract turns (symbol name, source locator) pairs into executable
// objects. The core engine only sees the Extractor and Executable contracts;
// the concrete implementation interprets Go source text at runtime, so a
// deployment can swap in a restricted interpreter, a compiled-plugin loader,
// or disable dynamic behavior entirely.
package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrBadSpec marks a malformed symbol spec (both or neither of
	// class/func named).
	ErrBadSpec = errors.New("extract: spec must name exactly one of class or func")
	// ErrExtraction marks a source that could not be read, parsed, or that
	// does not define the requested symbol.
	ErrExtraction = errors.New("extract: extraction failed")
	// ErrBadArgs marks an invocation whose arguments do not fit the symbol.
	ErrBadArgs = errors.New("extract: arguments do not match symbol")
	// ErrNotInvocable marks an Invoke on a non-callable executable.
	ErrNotInvocable = errors.New("extract: executable is not invocable")
	// ErrNoAttr marks an attribute lookup miss.
	ErrNoAttr = errors.New("extract: no such attribute")
)

// Spec names the symbol to pull out of a source artifact. Exactly one of
// ClassName and FuncName must be set.
type Spec struct {
	ClassName string
	FuncName  string
}

// Validate enforces the class/func mutual exclusion.
func (s Spec) Validate() error {
	if (s.ClassName == "") == (s.FuncName == "") {
		return fmt.Errorf("%w (class=%q func=%q)", ErrBadSpec, s.ClassName, s.FuncName)
	}
	return nil
}

// Symbol returns whichever name the spec carries.
func (s Spec) Symbol() string {
	if s.ClassName != "" {
		return s.ClassName
	}
	return s.FuncName
}

// IsClass reports whether the spec targets a class-like symbol.
func (s Spec) IsClass() bool { return s.ClassName != "" }

// Kind tags what an Executable wraps.
type Kind int

const (
	// KindFunc wraps a plain function.
	KindFunc Kind = iota
	// KindClass wraps an instantiable type (constructor plus prototype).
	KindClass
	// KindValue wraps a materialized instance or other value.
	KindValue
)

// String returns the lowercase tag name.
func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindClass:
		return "class"
	case KindValue:
		return "value"
	default:
		return "unknown"
	}
}

// Executable is the capability interface over an extracted symbol:
// invocation plus attribute lookup, with no reflection leaking to callers.
type Executable interface {
	Kind() Kind
	Symbol() string
	// Invoke calls a func, or constructs an instance for a class.
	Invoke(args ...any) (any, error)
	// Attr resolves a named method or field on the wrapped object.
	Attr(name string) (any, error)
}

// Instantiator is implemented by class executables that can materialize an
// instance as its own Executable, keeping the originating interpreter
// context so interpreted methods stay reachable through Attr.
type Instantiator interface {
	Instantiate(args ...any) (Executable, error)
}

// SourceReader resolves a source locator to its text payload.
type SourceReader interface {
	ReadSource(locator string) (string, error)
}

// Extractor resolves a spec against a source locator.
type Extractor interface {
	Resolve(spec Spec, source string) (Executable, error)
}
