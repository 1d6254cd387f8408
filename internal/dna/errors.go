package dna

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyLayer reports a layer with no options or zero total weight.
	// It is a configuration bug and is never retried.
	ErrEmptyLayer = errors.New("empty layer")
	// ErrInvalidWeight reports a negative option weight.
	ErrInvalidWeight = errors.New("invalid trait weight")
	// ErrDuplicateExhaustion is returned (wrapped in *ExhaustionError) when
	// the duplicate counter reaches the failure tolerance.
	ErrDuplicateExhaustion = errors.New("insufficient trait space")
)

// ExhaustionError carries the counters of a run that gave up.
type ExhaustionError struct {
	Target     int
	Accepted   int
	Tolerance  int
	Duplicates int
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("%s: need more layers or elements to grow edition to %d (accepted %d, rejected %d duplicates, tolerance %d)",
		ErrDuplicateExhaustion, e.Target, e.Accepted, e.Duplicates, e.Tolerance)
}

func (e *ExhaustionError) Unwrap() error { return ErrDuplicateExhaustion }
