package walker

import (
	"fmt"
)

// Op names a remote operation of a walk.
type Op string

const (
	// OpKeys lists the keys of a page.
	OpKeys Op = "keys"
	// OpValues fetches the values of a page.
	OpValues Op = "values"
	// OpHead resolves the chain position of a walk.
	OpHead Op = "head"
)

// TransportError is returned when a remote call fails. It aborts the walk
// of the affected prefix; there are no retries.
type TransportError struct {
	Prefix string
	Op     Op
	Err    error
}

// Error returns the error message.
func (e TransportError) Error() string {
	if e.Prefix == "" {
		return fmt.Sprintf("failed to %s: %s", e.Op, e.Err)
	}

	return fmt.Sprintf("failed to %s under prefix %s: %s", e.Op, e.Prefix, e.Err)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// HandlerError is reported when a page handler fails or panics.
type HandlerError struct {
	Prefix   string
	FirstKey string
	Err      error
}

// Error returns the error message.
func (e HandlerError) Error() string {
	return fmt.Sprintf("handler failed for page %s under prefix %s: %s", e.FirstKey, e.Prefix, e.Err)
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// PrefixFailure records a sub-prefix whose walk did not complete.
type PrefixFailure struct {
	Prefix string
	Err    error
}

// WalkError is returned by fan-out walks when one or more sub-prefix walks
// failed. Walks of other sub-prefixes are not affected and their pages were
// delivered.
type WalkError struct {
	Total    int
	Failures []PrefixFailure
}

// Error returns the error message.
func (e WalkError) Error() string {
	if len(e.Failures) == 0 {
		return "walk failed"
	}

	first := e.Failures[0]

	return fmt.Sprintf("walk failed for %d of %d prefixes, first %s: %s",
		len(e.Failures), e.Total, first.Prefix, first.Err)
}

// Unwrap returns the errors of all failed prefixes.
func (e WalkError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure.Err)
	}

	return errs
}

// Prefixes returns the failed prefixes, so that they can be walked again.
func (e WalkError) Prefixes() []string {
	out := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		out = append(out, failure.Prefix)
	}

	return out
}
