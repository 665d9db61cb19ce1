package irf

import (
	"errors"
	"fmt"
)

var (
	// ErrNotQuantity is returned when an argument carries no unit.
	ErrNotQuantity = errors.New("must be a quantity")

	// ErrShape is returned when the bin arrays differ in length.
	ErrShape = errors.New("array lengths differ")

	// ErrUnknownInstrument is returned for instruments without a parametrization.
	ErrUnknownInstrument = errors.New("unknown instrument")

	// ErrEmptyTable is returned by lookups on a table without bins.
	ErrEmptyTable = errors.New("effective area table has no bins")
)

// ValidationError names the argument that failed validation.
type ValidationError struct {
	Field string // Argument name, e.g. "energy_lo"
	Index int    // Element index for array arguments, -1 otherwise
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %v", e.Field, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
