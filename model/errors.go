package model

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

var (
	// ErrValidation matches every *ValidationError through errors.Is.
	ErrValidation = errors.New("invalid punishment")
	// ErrStoreUnavailable marks a failed store read or write. Nothing was committed.
	ErrStoreUnavailable = errors.New("punishment store unavailable")
	ErrNotFound         = errors.New("punishment not found")
	ErrNotInitialized   = errors.New("punishment engine not initialized")
	ErrAlreadyReversed  = errors.New("punishment already reversed")
	ErrUnknownIdentity  = errors.New("unknown player identity")
)

// ValidationError lists the reasons a draft was rejected.
type ValidationError struct {
	errs *multierror.Error
}

func (e *ValidationError) Error() string {
	return "invalid punishment: " + e.errs.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Problems returns the individual validation failures.
func (e *ValidationError) Problems() []error {
	return e.errs.WrappedErrors()
}

// NewValidationError groups problems into a *ValidationError. It returns nil
// when there are none.
func NewValidationError(problems ...error) error {
	var result *multierror.Error
	for _, p := range problems {
		if p != nil {
			result = multierror.Append(result, p)
		}
	}
	if result == nil {
		return nil
	}
	return &ValidationError{errs: result}
}
