// Package model contains domain types passed between pipeline stages.
package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Vec3 is a cartesian triple in the target-port frame. The x axis is the
// approach axis pointing away from the docking port, so position x shrinks
// toward zero as the vessel closes in.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the euclidean length of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sample is one normalized telemetry row of a docking recording.
type Sample struct {
	// T is the recording-relative timestamp in seconds.
	T float64 `json:"t"`

	// Pos and Vel are the center-of-gravity state relative to the port.
	Pos Vec3 `json:"pos"`
	Vel Vec3 `json:"vel"`

	// Att holds roll/yaw/pitch deviation from the nominal docking attitude
	// in degrees; RotRate the corresponding rates in deg/s.
	Att     Vec3 `json:"att"`
	RotRate Vec3 `json:"rot_rate"`

	// THC and RHC are the translational and rotational hand-controller
	// deflections, nominal range [-1, 1] per axis.
	THC Vec3 `json:"thc"`
	RHC Vec3 `json:"rhc"`

	// FuelKG is the remaining propellant reading.
	FuelKG float64 `json:"fuel_kg"`

	// Visible reports whether the docking port is inside the visual cone.
	Visible bool `json:"visible"`

	// Contact is the docking-contact flag; its first false->true
	// transition marks Time_Dock.
	Contact bool `json:"contact"`
}

// LateralOffset is the distance of the center of gravity from the approach
// axis.
func (s Sample) LateralOffset() float64 {
	return math.Sqrt(s.Pos.Y*s.Pos.Y + s.Pos.Z*s.Pos.Z)
}

// LateralVelocity is the speed component perpendicular to the approach axis.
func (s Sample) LateralVelocity() float64 {
	return math.Sqrt(s.Vel.Y*s.Vel.Y + s.Vel.Z*s.Vel.Z)
}

// Range is the distance to the port along the approach axis.
func (s Sample) Range() float64 {
	return math.Abs(s.Pos.X)
}

// ClosingRate is the approach speed toward the port; positive means closing.
func (s Sample) ClosingRate() float64 {
	return -s.Vel.X
}

// CombinedDeflection sums the absolute deflection of all six controller axes.
func (s Sample) CombinedDeflection() float64 {
	return math.Abs(s.THC.X) + math.Abs(s.THC.Y) + math.Abs(s.THC.Z) +
		math.Abs(s.RHC.X) + math.Abs(s.RHC.Y) + math.Abs(s.RHC.Z)
}

// THCActive reports whether any translational axis is deflected.
func (s Sample) THCActive() bool {
	return s.THC.X != 0 || s.THC.Y != 0 || s.THC.Z != 0
}

// RHCActive reports whether any rotational axis is deflected.
func (s Sample) RHCActive() bool {
	return s.RHC.X != 0 || s.RHC.Y != 0 || s.RHC.Z != 0
}

// FlightLog is one completed docking recording handed over by the loader.
type FlightLog struct {
	FlightID string    `json:"flight_id"`
	Date     time.Time `json:"date"`
	Scenario string    `json:"scenario"`
	Samples  []Sample  `json:"samples"`
}

// EnsureID assigns a fresh flight ID when the recording carries none and
// returns the effective ID.
func (l *FlightLog) EnsureID() string {
	if l.FlightID == "" {
		l.FlightID = uuid.NewString()
	}
	return l.FlightID
}

// Duration returns the recorded span in seconds, zero for empty logs.
func (l *FlightLog) Duration() float64 {
	if len(l.Samples) == 0 {
		return 0
	}
	return l.Samples[len(l.Samples)-1].T - l.Samples[0].T
}

// Phase identifies one of the three maneuver phases of a docking approach.
type Phase string

// Phase names. Suffixes of metric keys use these verbatim, plus "Total"
// for whole-flight aggregates.
const (
	PhaseAlign Phase = "Align"
	PhaseAppr  Phase = "Appr"
	PhaseFA    Phase = "FA"
	PhaseTotal Phase = "Total"
)

// Phases lists the three flight phases in maneuver order.
func Phases() []Phase {
	return []Phase{PhaseAlign, PhaseAppr, PhaseFA}
}

// PhaseInterval is a half-open time slice [Start, End) of one phase.
type PhaseInterval struct {
	Phase Phase   `json:"phase"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns the interval duration in seconds.
func (p PhaseInterval) Length() float64 {
	return p.End - p.Start
}

// Segmentation is the segmenter output: the three contiguous phase
// intervals and the detected docking time.
type Segmentation struct {
	Intervals [3]PhaseInterval `json:"intervals"`
	TimeDock  float64          `json:"time_dock"`

	// Overridden lists the phase boundaries that were manually supplied
	// rather than derived.
	Overridden []string `json:"overridden,omitempty"`
}

// Value is a metric value with explicit presence. Optional metrics that
// could not be computed stay absent instead of carrying a sentinel number.
type Value struct {
	V       float64 `json:"v"`
	Present bool    `json:"present"`
}

// Some wraps a present value.
func Some(v float64) Value { return Value{V: v, Present: true} }

// None is the absent value.
func None() Value { return Value{} }

// MetricRecord is one flight's full metric vector. Records are immutable
// once appended to the reference database; re-evaluation under a newer
// catalog supersedes the record instead of mutating it.
type MetricRecord struct {
	FlightID       string    `json:"flight_id"`
	Date           time.Time `json:"date"`
	Scenario       string    `json:"scenario"`
	CatalogVersion string    `json:"catalog_version"`

	Values map[string]Value `json:"values"`

	// Quality lists metrics that were computed under a documented
	// fallback, e.g. a short-interval PSD reported as zero.
	Quality []string `json:"quality,omitempty"`
}

// Get returns the value for a metric key; absent keys yield None.
func (r *MetricRecord) Get(key string) Value {
	if r.Values == nil {
		return None()
	}
	return r.Values[key]
}

// Has reports whether the record carries a present value for key.
func (r *MetricRecord) Has(key string) bool {
	return r.Get(key).Present
}

// Clone deep-copies the record so store snapshots stay isolated from
// caller mutation.
func (r *MetricRecord) Clone() MetricRecord {
	out := *r
	out.Values = make(map[string]Value, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	if r.Quality != nil {
		out.Quality = append([]string(nil), r.Quality...)
	}
	return out
}
