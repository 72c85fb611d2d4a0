package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New(ctx))
//  2. file (YAML) if DOCKEVAL_CONFIG is set
//  3. env (prefix DOCKEVAL_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("DOCKEVAL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: DOCKEVAL_DB_DRIVER, DOCKEVAL_FA_RANGE_M, ...
	// Map env keys like DOCKEVAL_DB_DRIVER -> db_driver (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("DOCKEVAL_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "dockeval_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty for sqlite", ErrInvalidConfig)
	}
	if c.FinalApproachRangeM <= 0 || c.ApproachRangeM <= c.FinalApproachRangeM {
		return fmt.Errorf("%w: range gates must satisfy 0 < fa_range_m < appr_range_m", ErrInvalidConfig)
	}
	if c.MinDwellS < 0 {
		return fmt.Errorf("%w: min_dwell_s must not be negative", ErrInvalidConfig)
	}
	if c.ConeHalfAngleDeg <= 0 || c.ConeHalfAngleDeg >= 90 {
		return fmt.Errorf("%w: cone_half_angle_deg must be in (0, 90)", ErrInvalidConfig)
	}
	if c.IdealVelocityDivisor <= 0 || c.IdealVelocityFloor <= 0 {
		return fmt.Errorf("%w: ideal velocity profile parameters must be positive", ErrInvalidConfig)
	}
	if c.PSDMinSamples < 2 {
		return fmt.Errorf("%w: psd_min_samples must be at least 2", ErrInvalidConfig)
	}
	switch c.GradeMethod {
	case "weighted_sum", "weighted_product":
	default:
		return fmt.Errorf("%w: unknown grade_method %q", ErrInvalidConfig, c.GradeMethod)
	}
	return nil
}
