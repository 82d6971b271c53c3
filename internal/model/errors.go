package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. All are terminal for the run they occur in.
var (
	ErrDataUnavailable    = errors.New("data unavailable")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrConvergenceFailure = errors.New("convergence failure")
	ErrRenderFailure      = errors.New("render failure")
)

// RecordError describes a row that cannot be turned into a valid OHLCV bar.
type RecordError struct {
	Row   int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed record at row %d (%s): %v", e.Row, e.Field, e.Err)
	}
	return fmt.Sprintf("malformed record at row %d: %v", e.Row, e.Err)
}

func (e *RecordError) Unwrap() []error { return []error{ErrMalformedRecord, e.Err} }

// Kind returns the sentinel error kind err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrDataUnavailable, ErrMalformedRecord, ErrInsufficientData, ErrConvergenceFailure, ErrRenderFailure} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
