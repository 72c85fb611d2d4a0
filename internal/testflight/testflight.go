// Package testflight generates synthetic docking recordings for tests and
// local tooling. The default profile is a clean three-phase descent: drift
// toward the corridor at 1 m/s, cruise down to the final approach gate, then
// creep in at the gate ceiling until contact.
package testflight

import (
	"math"
	"time"

	"github.com/halverson/dockeval/internal/domain/model"
)

// Profile shapes the generated descent.
type Profile struct {
	FlightID string
	Scenario string
	Date     time.Time

	// Dt is the sample spacing in seconds.
	Dt float64

	// StartRangeM and FinalRangeM bound the cruise segment. The vessel
	// closes at CruiseClosing until FinalRangeM, then at FinalClosing
	// until contact.
	StartRangeM   float64
	FinalRangeM   float64
	CruiseClosing float64
	FinalClosing  float64

	// FuelStartKG and FuelRateKGS drive the monotone propellant reading.
	FuelStartKG float64
	FuelRateKGS float64

	// LateralAmpM scales a slow lateral weave that decays with range.
	LateralAmpM float64

	// AttitudeAmpDeg and StickAmp scale the attitude wobble and the
	// hand-controller activity.
	AttitudeAmpDeg float64
	StickAmp       float64

	// VisibleGap marks a sensor dropout window [from, to); zero means no
	// dropout.
	VisibleGap [2]float64

	// ContactHold appends this many extra contact samples after docking.
	ContactHold int
}

// Option applies a configuration option to the Profile.
type Option func(*Profile)

// WithFlightID sets the flight id of the generated recording.
func WithFlightID(id string) Option {
	return func(p *Profile) {
		p.FlightID = id
	}
}

// WithScenario sets the scenario name of the generated recording.
func WithScenario(name string) Option {
	return func(p *Profile) {
		p.Scenario = name
	}
}

// WithDt sets the sample spacing.
func WithDt(seconds float64) Option {
	return func(p *Profile) {
		if seconds > 0 {
			p.Dt = seconds
		}
	}
}

// WithRangeProfile sets the starting range and the final approach handover
// range.
func WithRangeProfile(startM, finalM float64) Option {
	return func(p *Profile) {
		if startM > finalM && finalM > 0 {
			p.StartRangeM = startM
			p.FinalRangeM = finalM
		}
	}
}

// WithClosingRates sets the cruise and final approach closing rates.
func WithClosingRates(cruise, final float64) Option {
	return func(p *Profile) {
		if cruise > 0 && final > 0 {
			p.CruiseClosing = cruise
			p.FinalClosing = final
		}
	}
}

// WithFuel sets the initial propellant mass and burn rate.
func WithFuel(startKG, rateKGS float64) Option {
	return func(p *Profile) {
		p.FuelStartKG = startKG
		p.FuelRateKGS = rateKGS
	}
}

// WithLateralWeave sets the lateral oscillation amplitude.
func WithLateralWeave(ampM float64) Option {
	return func(p *Profile) {
		p.LateralAmpM = ampM
	}
}

// WithStickActivity sets the hand-controller deflection amplitude.
func WithStickActivity(amp float64) Option {
	return func(p *Profile) {
		p.StickAmp = amp
	}
}

// WithVisibilityGap inserts a sensor dropout window [from, to).
func WithVisibilityGap(from, to float64) Option {
	return func(p *Profile) {
		if to > from {
			p.VisibleGap = [2]float64{from, to}
		}
	}
}

// Descent generates a synthetic docking recording. The defaults produce a
// clean run that enters the approach corridor at 200 m and the final
// approach envelope at 20 m, docking after 330 s.
func Descent(opts ...Option) *model.FlightLog {
	p := &Profile{
		FlightID:       "test-flight",
		Scenario:       "synthetic-descent",
		Date:           time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
		Dt:             1.0,
		StartRangeM:    250,
		FinalRangeM:    20,
		CruiseClosing:  1.0,
		FinalClosing:   0.2,
		FuelStartKG:    100,
		FuelRateKGS:    0.05,
		LateralAmpM:    2.0,
		AttitudeAmpDeg: 1.5,
		StickAmp:       0.3,
		ContactHold:    2,
	}
	for _, opt := range opts {
		opt(p)
	}

	tHandover := (p.StartRangeM - p.FinalRangeM) / p.CruiseClosing
	tDock := tHandover + p.FinalRangeM/p.FinalClosing

	steps := int(math.Ceil(tDock/p.Dt)) + p.ContactHold
	samples := make([]model.Sample, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) * p.Dt
		samples = append(samples, p.sampleAt(t, tHandover, tDock))
	}

	return &model.FlightLog{
		FlightID: p.FlightID,
		Date:     p.Date,
		Scenario: p.Scenario,
		Samples:  samples,
	}
}

func (p *Profile) sampleAt(t, tHandover, tDock float64) model.Sample {
	var rng, closing float64
	switch {
	case t >= tDock:
		rng, closing = 0, 0
	case t >= tHandover:
		rng = p.FinalRangeM - p.FinalClosing*(t-tHandover)
		closing = p.FinalClosing
	default:
		rng = p.StartRangeM - p.CruiseClosing*t
		closing = p.CruiseClosing
	}

	// Lateral weave shrinks with range so the default run stays inside
	// the approach cone.
	frac := rng / p.StartRangeM
	latPhase := 2 * math.Pi * t / 60
	latY := p.LateralAmpM * math.Sin(latPhase) * frac
	latZ := p.LateralAmpM * 0.5 * math.Cos(latPhase) * frac
	latVY := p.LateralAmpM * (2 * math.Pi / 60) * math.Cos(latPhase) * frac
	latVZ := -p.LateralAmpM * 0.5 * (2 * math.Pi / 60) * math.Sin(latPhase) * frac

	attPhase := 2 * math.Pi * t / 45
	att := model.Vec3{
		X: p.AttitudeAmpDeg * math.Sin(attPhase),
		Y: p.AttitudeAmpDeg * 0.7 * math.Cos(attPhase),
		Z: p.AttitudeAmpDeg * 0.4 * math.Sin(attPhase/2),
	}
	rate := model.Vec3{
		X: p.AttitudeAmpDeg * (2 * math.Pi / 45) * math.Cos(attPhase),
		Y: -p.AttitudeAmpDeg * 0.7 * (2 * math.Pi / 45) * math.Sin(attPhase),
		Z: p.AttitudeAmpDeg * 0.2 * (2 * math.Pi / 45) * math.Cos(attPhase/2),
	}

	stickPhase := 2 * math.Pi * t / 12
	thc := model.Vec3{
		X: p.StickAmp * math.Sin(stickPhase),
		Y: p.StickAmp * 0.5 * math.Cos(stickPhase),
		Z: p.StickAmp * 0.25 * math.Sin(stickPhase/3),
	}
	rhc := model.Vec3{
		X: p.StickAmp * 0.6 * math.Cos(stickPhase),
		Y: p.StickAmp * 0.3 * math.Sin(stickPhase),
		Z: p.StickAmp * 0.15 * math.Cos(stickPhase/2),
	}

	visible := true
	if p.VisibleGap[1] > p.VisibleGap[0] && t >= p.VisibleGap[0] && t < p.VisibleGap[1] {
		visible = false
	}

	return model.Sample{
		T:       t,
		Pos:     model.Vec3{X: rng, Y: latY, Z: latZ},
		Vel:     model.Vec3{X: -closing, Y: latVY, Z: latVZ},
		Att:     att,
		RotRate: rate,
		THC:     thc,
		RHC:     rhc,
		FuelKG:  p.FuelStartKG - p.FuelRateKGS*t,
		Visible: visible,
		Contact: t >= tDock,
	}
}
