// Package errs defines the error kinds shared by all sonata packages.
//
// Every error returned by sonata matches exactly one kind (or a backend I/O
// error passed through unchanged) via errors.Is:
//
//	if errors.Is(err, errs.ErrRange) { ... }
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports malformed caller input such as negative ids,
	// non-integer ids or a malformed range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidSelection reports a selection-construction violation.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrMissingDefinition reports a node-set name that is referenced but not defined.
	ErrMissingDefinition = errors.New("missing node set definition")

	// ErrRecursiveDefinition reports a compound node set that references itself.
	ErrRecursiveDefinition = errors.New("recursive node set definition")

	// ErrTypeMismatch reports a predicate applied to an attribute of an
	// incompatible category, or an enumeration matched by raw code.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrRange reports a time or row window outside stored bounds, or an
	// unacceptable block gap limit.
	ErrRange = errors.New("out of range")

	// ErrNotFound reports an unknown population, attribute, group or dataset.
	ErrNotFound = errors.New("not found")
)

// Errorf returns an error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// AttributeError describes a failure tied to one attribute of one population.
type AttributeError struct {
	Population string
	Attribute  string
	Err        error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("population %q attribute %q: %v", e.Population, e.Attribute, e.Err)
}

func (e *AttributeError) Unwrap() error {
	return e.Err
}
