package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is matched by every DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrDuplicateID is returned when inserting an id that is already live.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrNotFound is returned by lookups of unknown or deleted ids.
	ErrNotFound = errors.New("record not found")
	// ErrCorruptState is returned when serialized state cannot be restored.
	ErrCorruptState = errors.New("corrupt state")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrInvalidParams is returned for unusable index parameters.
	ErrInvalidParams = errors.New("invalid index parameters")
	// ErrUnknownDistance is returned for an unregistered distance name.
	ErrUnknownDistance = errors.New("unknown distance")
)

// DimensionMismatchError indicates a vector whose length differs from the expected dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// CheckDimension returns a DimensionMismatchError when len(vector) != dimension.
func CheckDimension(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return &DimensionMismatchError{Expected: dimension, Actual: len(vector)}
	}
	return nil
}

// Corrupt wraps a restore failure so that it matches ErrCorruptState.
func Corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptState, fmt.Sprintf(format, args...))
}
