package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Structural errors: fatal, abort the run with no partial output.
	ErrMalformedRecord = errors.New("malformed visit record")

	// Data-sufficiency errors: recoverable per test; the failing test is
	// reported as not computable and independent tests continue.
	ErrSampleSize             = errors.New("sample size outside valid range")
	ErrInsufficientGroupSize  = errors.New("insufficient group size")
	ErrEmptyCohort            = errors.New("empty cohort after complete-case selection")
	ErrDegenerateDistribution = errors.New("degenerate expected distribution")

	// Numerical-fitting errors: reported as a failed model fit, never
	// substituted with a default result.
	ErrNonConvergence    = errors.New("model fit did not converge")
	ErrPerfectSeparation = errors.New("perfect separation detected")
)

// Error constructors with context
func NewMalformedRecordError(index int, reason string) error {
	return fmt.Errorf("%w at index %d: %s", ErrMalformedRecord, index, reason)
}

func NewSampleSizeError(got, min, max int) error {
	return fmt.Errorf("%w: n=%d, valid range [%d, %d]", ErrSampleSize, got, min, max)
}

func NewGroupSizeError(group string, got, min int) error {
	return fmt.Errorf("%w: group %s has %d observations, need at least %d",
		ErrInsufficientGroupSize, group, got, min)
}

func NewEmptyCohortError(variables []string) error {
	return fmt.Errorf("%w: no patients remain after filtering on %v", ErrEmptyCohort, variables)
}

func NewNonConvergenceError(iterations int) error {
	return fmt.Errorf("%w after %d iterations", ErrNonConvergence, iterations)
}

func NewPerfectSeparationError(predictor string) error {
	return fmt.Errorf("%w: predictor %s separates outcome classes", ErrPerfectSeparation, predictor)
}

// IsDataSufficiencyError reports whether err is recoverable at the
// single-test granularity (the test is skipped, the run continues).
func IsDataSufficiencyError(err error) bool {
	return errors.Is(err, ErrSampleSize) ||
		errors.Is(err, ErrInsufficientGroupSize) ||
		errors.Is(err, ErrEmptyCohort) ||
		errors.Is(err, ErrDegenerateDistribution)
}

// IsFittingError reports whether err is a numerical-fitting failure.
func IsFittingError(err error) bool {
	return errors.Is(err, ErrNonConvergence) || errors.Is(err, ErrPerfectSeparation)
}
