package domain

import "errors"

var (
	// ErrFormatInvalid marks a malformed column file header or chunk
	// index. Never retried; the file is unusable until rewritten.
	ErrFormatInvalid = errors.New("column file format invalid")

	// ErrOutOfRange marks a location index outside a column file.
	ErrOutOfRange = errors.New("location out of range")

	// ErrUnitMismatch marks mixer inputs that disagree on units. This is
	// a programmer error and fails the request.
	ErrUnitMismatch = errors.New("unit mismatch between model readers")

	// ErrGridMiss marks a query point outside every configured grid.
	ErrGridMiss = errors.New("no data available for this location")

	// ErrUpsamplingForbidden marks a query step coarser than the model
	// step. The reader only refines, never aggregates.
	ErrUpsamplingForbidden = errors.New("query step coarser than model step")

	// ErrVariableUnsupported marks a variable a model does not carry and
	// cannot synthesize.
	ErrVariableUnsupported = errors.New("variable not supported by model")
)
