package grade

import "errors"

// Sentinel kinds for grading errors.
var (
	ErrInvalidWeights = errors.New("invalid grading weights")
	ErrCatalogVersion = errors.New("catalog version mismatch")
	ErrInvalidConfig  = errors.New("invalid grading config")
	ErrNoColumns      = errors.New("empty comparison matrix")
)
