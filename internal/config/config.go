// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the metrics HTTP listen address, e.g. ":9090".
	// Empty disables the listener.
	Addr string `koanf:"addr"`

	// CatalogPath points to a metric catalog YAML file. Empty uses the
	// embedded catalog.
	CatalogPath string `koanf:"catalog_path"`

	// DBDriver selects the reference store backend: memory or sqlite.
	DBDriver string `koanf:"db_driver"`

	// DBPath is the SQLite database file when DBDriver is sqlite.
	DBPath string `koanf:"db_path"`

	// FinalApproachRangeM is the range gate that opens the final approach
	// phase, in meters.
	FinalApproachRangeM float64 `koanf:"fa_range_m"`

	// FinalApproachMaxClosing is the closing-rate ceiling for final
	// approach entry, in m/s.
	FinalApproachMaxClosing float64 `koanf:"fa_max_closing_ms"`

	// ApproachRangeM is the range gate that opens the approach phase.
	ApproachRangeM float64 `koanf:"appr_range_m"`

	// ApproachMaxClosing is the closing-rate ceiling for approach entry.
	ApproachMaxClosing float64 `koanf:"appr_max_closing_ms"`

	// MinDwellS is the minimum time a phase condition must hold before a
	// transient entry counts, in seconds.
	MinDwellS float64 `koanf:"min_dwell_s"`

	// ConeHalfAngleDeg is the approach cone half angle used by the
	// out-of-cone metrics.
	ConeHalfAngleDeg float64 `koanf:"cone_half_angle_deg"`

	// IdealVelocityDivisor and IdealVelocityFloor shape the ideal closing
	// velocity profile v = max(range/divisor, floor).
	IdealVelocityDivisor float64 `koanf:"ideal_velocity_divisor"`
	IdealVelocityFloor   float64 `koanf:"ideal_velocity_floor"`

	// PSDMinSamples is the minimum sample count for spectral metrics.
	PSDMinSamples int `koanf:"psd_min_samples"`

	// DutyCycleMaxDtS is the largest median sample spacing for which duty
	// cycle metrics are considered reliable.
	DutyCycleMaxDtS float64 `koanf:"duty_cycle_max_dt_s"`

	// GradeMethod selects the default aggregation: weighted_sum or
	// weighted_product.
	GradeMethod string `koanf:"grade_method"`

	// WeightTolerance bounds the allowed deviation of the criterion weight
	// sum from 1.
	WeightTolerance float64 `koanf:"weight_tolerance"`
}

// New creates a Config using defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and is currently
// unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:                "info",
		Addr:                    "",
		CatalogPath:             "",
		DBDriver:                "memory",
		DBPath:                  "dockeval.db",
		FinalApproachRangeM:     20,
		FinalApproachMaxClosing: 0.2,
		ApproachRangeM:          200,
		ApproachMaxClosing:      1.0,
		MinDwellS:               5,
		ConeHalfAngleDeg:        10,
		IdealVelocityDivisor:    200,
		IdealVelocityFloor:      0.1,
		PSDMinSamples:           8,
		DutyCycleMaxDtS:         0.5,
		GradeMethod:             "weighted_sum",
		WeightTolerance:         1e-6,
	}
	return c
}
