package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrUnknownMetric   = errors.New("unknown metric key")
	ErrInvalidDocument = errors.New("invalid catalog document")
)
