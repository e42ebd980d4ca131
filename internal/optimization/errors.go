package optimization

import (
	"errors"
	"fmt"
)

// Kind classifies an optimization error so callers can tell configuration
// problems apart from failures that happen mid-run.
type Kind uint8

const (
	// KindUnknown is used for errors that were not produced by this package.
	KindUnknown Kind = iota
	// KindConfiguration covers invalid arguments detected before or during selection.
	KindConfiguration
	// KindNumeric covers fitness values that do not form a valid distribution.
	KindNumeric
	// KindEmptyPopulation is returned when a generation or the final scan has nothing to work on.
	KindEmptyPopulation
	// KindCollaborator wraps failures returned by caller supplied steps.
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNumeric:
		return "numeric"
	case KindEmptyPopulation:
		return "empty_population"
	case KindCollaborator:
		return "collaborator"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrZeroTotalFitness = errors.New("total fitness is zero")
	ErrNegativeFitness  = errors.New("negative fitness")
	ErrInvalidFitness   = errors.New("fitness is not a number")
	ErrEmptyPopulation  = errors.New("empty population")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrNilRandom        = errors.New("random source is required")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Kind is the error class.
	Kind Kind
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new error of the given kind wrapping a sentinel.
func NewError(kind Kind, sentinel error, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     sentinel,
	}
}

// NewErrorf is NewError with a formatted message.
func NewErrorf(kind Kind, sentinel error, format string, args ...interface{}) *Error {
	return NewError(kind, sentinel, fmt.Sprintf(format, args...))
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf reports the kind of the first optimization error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		// Collaborator wrappers may carry a more specific kind underneath.
		if e.Kind == KindCollaborator {
			if inner := KindOf(e.Err); inner != KindUnknown {
				return inner
			}
		}
		return e.Kind
	}
	return KindUnknown
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func configError(op, format string, args ...interface{}) error {
	return NewErrorf(KindConfiguration, ErrInvalidArguments, format, args...).WithOperation(op)
}
