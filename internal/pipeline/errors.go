package pipeline

import (
	"context"
	"errors"
	"fmt"

	"fiirank/internal/enrich"
	"fiirank/internal/normalize"
)

// ErrorType classifies a step failure
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
)

// StepError reports which step of a run failed and why.
type StepError struct {
	Type  ErrorType
	Step  string
	Cause error
}

// Error implements the error interface
func (e *StepError) Error() string {
	if e == nil {
		return "unknown step error"
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Step, e.Cause)
}

// Unwrap returns the underlying error
func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// newStepError classifies cause. Malformed input tables are validation
// errors; a done context is a cancellation.
func newStepError(step string, cause error) *StepError {
	t := ErrorTypeExecution
	switch {
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		t = ErrorTypeCancellation
	case errors.Is(cause, normalize.ErrMissingColumn), errors.Is(cause, enrich.ErrMissingColumn):
		t = ErrorTypeValidation
	}
	return &StepError{Type: t, Step: step, Cause: cause}
}

// IsValidation reports whether err is a validation StepError.
func IsValidation(err error) bool {
	var se *StepError
	return errors.As(err, &se) && se.Type == ErrorTypeValidation
}
