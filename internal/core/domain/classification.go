package domain

import (
	"context"
	"errors"
)

// Classification tags the kind of failure an iteration raised.
type Classification string

const (
	ClassTransientReference Classification = "transient-reference"
	ClassTimeout            Classification = "timeout"
	ClassNetwork            Classification = "network"
	ClassRateLimit          Classification = "rate-limit"
	ClassValidation         Classification = "validation"
	ClassTypeMismatch       Classification = "type-mismatch"
	ClassSyntax             Classification = "syntax"
	ClassAuthentication     Classification = "authentication"
	ClassCancelled          Classification = "cancelled"
	ClassUnknown            Classification = "unknown"
)

// Classifications lists the fixed taxonomy.
var Classifications = []Classification{
	ClassTransientReference,
	ClassTimeout,
	ClassNetwork,
	ClassRateLimit,
	ClassValidation,
	ClassTypeMismatch,
	ClassSyntax,
	ClassAuthentication,
	ClassCancelled,
	ClassUnknown,
}

// ClassifiedError is implemented by errors that carry a classification tag.
type ClassifiedError interface {
	error
	Classification() Classification
}

type classifiedError struct {
	class Classification
	msg   string
	err   error
}

func (e *classifiedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.err.Error()
	}
	return e.msg + ": " + e.err.Error()
}

func (e *classifiedError) Unwrap() error { return e.err }

func (e *classifiedError) Classification() Classification { return e.class }

// NewError creates an error tagged with the given classification.
func NewError(class Classification, msg string) error {
	return &classifiedError{class: class, msg: msg}
}

// WrapError tags err with a classification. A nil err yields nil.
func WrapError(class Classification, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: class, msg: msg, err: err}
}

// ClassifyOf resolves the classification of err.
// Context cancellation and deadline errors map to cancelled and timeout;
// anything else without a tag is unknown.
func ClassifyOf(err error) Classification {
	if err == nil {
		return ""
	}

	var ce ClassifiedError
	if errors.As(err, &ce) {
		return ce.Classification()
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	}
	return ClassUnknown
}
