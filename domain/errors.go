package domain

import "errors"

// Business-rule rejections. Recoverable: the caller can change its request and
// try again. Matched with errors.Is.
var (
	ErrNoCopies      = errors.New("no copies available")
	ErrBorrowerLimit = errors.New("borrower has reached the active loan limit")
	ErrLoanNotActive = errors.New("loan is not active")

	ErrNotFound = errors.New("record not found")
)

// Invariant guards. These indicate a caller or data bug, never silently
// corrected.
var (
	ErrExceedsTotal     = errors.New("release would exceed total copies")
	ErrInconsistent     = errors.New("copy counts are inconsistent")
	ErrActiveLoansExist = errors.New("book has active loans")
	ErrLoanNotTerminal  = errors.New("loan must be returned or canceled first")
)

// Field-level validation failures.
var (
	ErrISBNFormat     = errors.New("isbn must be exactly 13 digits")
	ErrISBNChecksum   = errors.New("isbn checksum mismatch")
	ErrYearOutOfRange = errors.New("publication year out of range")
)

// ValidationError aggregates field-level failures so callers can distinguish
// malformed input from business rejections and invariant trips.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps err, returning nil when err is nil.
func NewValidationError(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

// IsValidation reports whether err is a field-level validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
