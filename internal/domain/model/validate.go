package model

import (
	"fmt"
	"math"
)

// Minimum number of samples a recording needs before segmentation makes
// sense at all.
const minLogSamples = 2

// Validate checks the loader contract: strictly increasing timestamps,
// finite readings, and physically monotonic (non-increasing) propellant.
// Violations return ErrDataIntegrity annotated with the offending sample.
func (l *FlightLog) Validate() error {
	if len(l.Samples) == 0 {
		return ErrEmptyLog
	}
	if len(l.Samples) < minLogSamples {
		return fmt.Errorf("%w: recording has %d sample(s), need at least %d",
			ErrDataIntegrity, len(l.Samples), minLogSamples)
	}

	prev := l.Samples[0]
	if err := checkFinite(prev, 0); err != nil {
		return err
	}

	for i := 1; i < len(l.Samples); i++ {
		s := l.Samples[i]
		if err := checkFinite(s, i); err != nil {
			return err
		}
		if s.T <= prev.T {
			return fmt.Errorf("%w: non-increasing timestamp at sample %d (t=%g after t=%g)",
				ErrDataIntegrity, i, s.T, prev.T)
		}
		if s.FuelKG > prev.FuelKG {
			return fmt.Errorf("%w: propellant increases at sample %d (t=%g, %gkg -> %gkg)",
				ErrDataIntegrity, i, s.T, prev.FuelKG, s.FuelKG)
		}
		prev = s
	}
	return nil
}

func checkFinite(s Sample, i int) error {
	for _, v := range []float64{
		s.T, s.Pos.X, s.Pos.Y, s.Pos.Z, s.Vel.X, s.Vel.Y, s.Vel.Z, s.FuelKG,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite state value at sample %d (t=%g)",
				ErrDataIntegrity, i, s.T)
		}
	}
	return nil
}
