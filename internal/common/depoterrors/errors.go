// Package depoterrors contains the generic errors returned by the depot core.
// Callers distinguish outcomes by type using errors.As, as opposed to matching
// on error strings; infrastructure failures are plain wrapped errors and are
// deliberately not represented here.
//
// If multiple independent errors occur in some function, that function should
// return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package depoterrors

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/openteller/depot/internal/depot/model"
)

// ErrNotFound is returned whenever some resource isn't found. For claim
// lookups this is a normal, non-exceptional outcome: it means no unclaimed
// row matched the supplied filters.
// Type and Message are optional and are omitted from the error message if not
// provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "dataset" or "record"
	Value   string // Resource name, e.g., "deposits"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is returned on invalid caller input, e.g., a claim call
// with zero filters. Message is optional and is omitted from the error message
// if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "filters"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// ErrValidationFailed is returned when an upload contains data-quality
// problems. It carries every problem found across the whole upload; a
// non-empty set means no rows were inserted.
type ErrValidationFailed struct {
	Errors []model.ValidationError
}

func (err *ErrValidationFailed) Error() string {
	if len(err.Errors) == 0 {
		return "validation failed"
	}
	first := err.Errors[0]
	return fmt.Sprintf(
		"validation failed with %d error(s); first: row %d column %q: %s",
		len(err.Errors), first.Row, first.Column, first.Message)
}

// ErrRateLimited is returned when a caller has exhausted its request budget
// for the current window. RetryAfterSeconds is the remaining window time,
// rounded up to whole seconds.
type ErrRateLimited struct {
	RetryAfterSeconds int
}

func (err *ErrRateLimited) Error() string {
	return fmt.Sprintf("too many requests; retry after %d seconds", err.RetryAfterSeconds)
}

// IsNotFound returns true if err, or any error it wraps, is an ErrNotFound.
func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}
