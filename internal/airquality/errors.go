package airquality

import (
	"errors"
	"fmt"
)

// Adapter failure kinds. Every error leaving Service.Fetch matches exactly one.
var (
	ErrFetch          = errors.New("failure to load data url")
	ErrParse          = errors.New("failure to parse data")
	ErrRowNotFound    = errors.New("no row matched the requested datetime")
	ErrUnknownAdapter = errors.New("unknown adapter error")
)

// Registry errors.
var (
	ErrAdapterNotRegistered = errors.New("adapter not registered")
)

// Soft failures. These drop a single reading and never leave an adapter.
var (
	ErrUnmappedParameter  = errors.New("unmapped parameter")
	ErrMissingValue       = errors.New("missing value")
	ErrNonFiniteValue     = errors.New("non-finite value")
	ErrUnknownUnit        = errors.New("unknown unit")
	ErrUnresolvedLocation = errors.New("unresolved location")
	ErrInvalidDate        = errors.New("invalid date")
)

// AdapterError is the structured failure of one adapter call.
type AdapterError struct {
	Adapter string
	Kind    error
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("%s: %v", e.Adapter, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Adapter, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind so callers can use errors.Is(err, ErrFetch).
func (e *AdapterError) Is(target error) bool {
	return target == e.Kind
}

// Message is the caller-facing failure message.
func (e *AdapterError) Message() string {
	switch e.Kind {
	case ErrFetch:
		return "Failure to load data url."
	case ErrParse:
		return "Failure to parse data."
	case ErrRowNotFound:
		return "No row matched the requested datetime."
	default:
		return "Unknown adapter error."
	}
}

// Classify translates any error returned by an adapter into an *AdapterError.
// Errors that do not wrap one of the known kinds collapse to ErrUnknownAdapter.
func Classify(adapter string, err error) *AdapterError {
	if err == nil {
		return nil
	}

	if ae, ok := err.(*AdapterError); ok {
		return ae
	}

	return &AdapterError{Adapter: adapter, Kind: kindOf(err), Err: err}
}

// kindOf picks the failure kind of err. Joined errors (all stations failed)
// are ErrRowNotFound only when every branch is; otherwise the first branch
// with a known kind wins.
func kindOf(err error) error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		allNotFound := len(errs) > 0
		for _, e := range errs {
			if !errors.Is(e, ErrRowNotFound) {
				allNotFound = false
				break
			}
		}
		if allNotFound {
			return ErrRowNotFound
		}
		for _, e := range errs {
			if k := kindOf(e); k != ErrUnknownAdapter && k != ErrRowNotFound {
				return k
			}
		}
		return ErrUnknownAdapter
	}

	switch {
	case errors.Is(err, ErrFetch):
		return ErrFetch
	case errors.Is(err, ErrParse):
		return ErrParse
	case errors.Is(err, ErrRowNotFound):
		return ErrRowNotFound
	default:
		return ErrUnknownAdapter
	}
}
