package model

import "errors"

// Sentinel error kinds for telemetry validation. Callers match them with
// errors.Is after unwrapping the annotated cause.
var (
	ErrDataIntegrity = errors.New("telemetry violates physical invariant")
	ErrEmptyLog      = errors.New("flight log has no samples")
)
