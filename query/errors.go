/*
errors.go - Error types for query construction and execution

ERROR CATEGORIES:
  1. Validation errors - raised while building a specification, before any
     backend call (unknown field, bad operand arity, operand type mismatch,
     missing or repeated From).
  2. Ambiguous result - a single-result query matched more than one row.
  3. Spent builder - a builder was executed twice.

Not-found is NOT an error: One() returns an empty Optional instead.

USAGE:
  if errors.Is(err, query.ErrValidation) {
      // client mistake, nothing was sent to the backend
  }
  var verr *query.ValidationError
  if errors.As(err, &verr) {
      log.Printf("bad field %q", verr.Field)
  }
*/
package query

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the parent of every build-time validation failure.
	ErrValidation = errors.New("query validation failed")

	// ErrAmbiguousResult is returned by One when more than one row matches.
	// For natural-key lookups this signals a broken uniqueness invariant.
	ErrAmbiguousResult = errors.New("ambiguous result: more than one row matched")

	// ErrBuilderSpent is returned when a builder is executed a second time.
	ErrBuilderSpent = errors.New("query builder already executed")

	// ErrNoExecutor is returned when a builder that was not bound to a
	// gateway is executed.
	ErrNoExecutor = errors.New("query builder has no executor")
)

// ValidationError describes why a specification could not be built.
type ValidationError struct {
	Table  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Table != "":
		return fmt.Sprintf("invalid query on %s: field %q: %s", e.Table, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("invalid query: field %q: %s", e.Field, e.Reason)
	case e.Table != "":
		return fmt.Sprintf("invalid query on %s: %s", e.Table, e.Reason)
	default:
		return "invalid query: " + e.Reason
	}
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
