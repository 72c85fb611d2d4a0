package extract

import "errors"

// Sentinel kinds for extraction errors.
var (
	// ErrMetricMissing marks a mandatory catalog key the extractor failed
	// to produce; this surfaces an engine bug, not bad telemetry.
	ErrMetricMissing = errors.New("mandatory metric not computed")
)
