package recombine

import "errors"

var (
	// ErrSequenceIntegrity indicates the rendered segments do not form
	// a contiguous, duplicate-free sequence.
	ErrSequenceIntegrity = errors.New("segment sequence integrity violation")

	// ErrRecombine indicates joining the segments failed.
	ErrRecombine = errors.New("segment recombination failed")
)
