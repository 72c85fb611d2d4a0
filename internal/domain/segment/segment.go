// Package segment splits a docking recording into the Alignment, Approach
// and Final Approach phases bounded by the detected contact event.
package segment

import (
	"fmt"

	"github.com/halverson/dockeval/internal/domain/model"
)

// Default corridor and envelope thresholds. The final-approach gate and
// closing floor follow the simulator's scenario constants; all of them are
// configuration, not fixed policy.
const (
	defaultFARangeM       = 20.0
	defaultFAMaxClosing   = 0.2
	defaultApprRangeM     = 200.0
	defaultApprMaxClosing = 1.0
	defaultMinDwellS      = 5.0
)

// Segmenter derives phase intervals from a validated flight log.
type Segmenter struct {
	faRangeM       float64
	faMaxClosing   float64
	apprRangeM     float64
	apprMaxClosing float64
	minDwellS      float64
}

// New creates a Segmenter with default thresholds, adjustable via options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		faRangeM:       defaultFARangeM,
		faMaxClosing:   defaultFAMaxClosing,
		apprRangeM:     defaultApprRangeM,
		apprMaxClosing: defaultApprMaxClosing,
		minDwellS:      defaultMinDwellS,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overrides carries manually corrected boundary times. Nil fields keep the
// derived value. TimeDock may only move the boundary onto an existing
// sample time at or before the recorded contact.
type Overrides struct {
	ApprStart *float64
	FAStart   *float64
	TimeDock  *float64
}

func (o *Overrides) empty() bool {
	return o == nil || (o.ApprStart == nil && o.FAStart == nil && o.TimeDock == nil)
}

// Segment derives the three phase intervals and the docking time.
// The returned intervals are contiguous, ordered, and span exactly
// [recording start, Time_Dock]; phases the flight never stabilized in
// collapse to zero length instead of failing.
func (s *Segmenter) Segment(log *model.FlightLog, ov *Overrides) (model.Segmentation, error) {
	if len(log.Samples) == 0 {
		return model.Segmentation{}, model.ErrEmptyLog
	}

	t0 := log.Samples[0].T

	dockIdx, err := contactIndex(log.Samples)
	if err != nil {
		return model.Segmentation{}, err
	}
	dock := log.Samples[dockIdx].T
	overridden := []string(nil)

	if ov != nil && ov.TimeDock != nil {
		td := *ov.TimeDock
		idx := sampleIndexAt(log.Samples, td)
		if idx < 0 || idx > dockIdx {
			return model.Segmentation{}, fmt.Errorf(
				"%w: TimeDock=%g is not a sample time at or before contact (t=%g)",
				ErrInvalidOverride, td, dock)
		}
		dockIdx, dock = idx, td
		overridden = append(overridden, "TimeDock")
	}

	inFA := func(sm model.Sample) bool {
		return sm.Range() <= s.faRangeM && sm.ClosingRate() <= s.faMaxClosing
	}
	inAppr := func(sm model.Sample) bool {
		return sm.Range() <= s.apprRangeM && sm.ClosingRate() <= s.apprMaxClosing
	}

	faStart := s.entryTime(log.Samples, dockIdx, dock, inFA)
	if ov != nil && ov.FAStart != nil {
		faStart = *ov.FAStart
		overridden = append(overridden, "FAStart")
	}

	apprStart := s.entryTimeBefore(log.Samples, dockIdx, faStart, inAppr)
	if ov != nil && ov.ApprStart != nil {
		apprStart = *ov.ApprStart
		overridden = append(overridden, "ApprStart")
	}

	if err := checkOrdering(t0, apprStart, faStart, dock, !ov.empty()); err != nil {
		return model.Segmentation{}, err
	}

	return model.Segmentation{
		Intervals: [3]model.PhaseInterval{
			{Phase: model.PhaseAlign, Start: t0, End: apprStart},
			{Phase: model.PhaseAppr, Start: apprStart, End: faStart},
			{Phase: model.PhaseFA, Start: faStart, End: dock},
		},
		TimeDock:   dock,
		Overridden: overridden,
	}, nil
}

// contactIndex finds the first false->true transition of the contact flag.
func contactIndex(samples []model.Sample) (int, error) {
	for i, sm := range samples {
		if sm.Contact && (i == 0 || !samples[i-1].Contact) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: contact flag never set, flight never completed", ErrNoDockingContact)
}

func sampleIndexAt(samples []model.Sample, t float64) int {
	for i, sm := range samples {
		if sm.T == t {
			return i
		}
	}
	return -1
}

// run is one maximal stretch of samples satisfying a corridor condition,
// as a half-open time interval.
type run struct {
	start   float64
	end     float64
	toLimit bool // run persists through the boundary sample
}

// conditionRuns scans samples[0..limitIdx] and collects maximal condition
// runs. A run that still holds at limitIdx is closed at limitTime and
// marked toLimit.
func conditionRuns(samples []model.Sample, limitIdx int, limitTime float64, cond func(model.Sample) bool) []run {
	var out []run
	open := false
	var start float64
	for i := 0; i <= limitIdx && i < len(samples); i++ {
		sm := samples[i]
		if sm.T > limitTime {
			break
		}
		switch {
		case cond(sm) && !open:
			open = true
			start = sm.T
		case !cond(sm) && open:
			open = false
			out = append(out, run{start: start, end: sm.T})
		}
	}
	if open {
		out = append(out, run{start: start, end: limitTime, toLimit: true})
	}
	return out
}

// entryTime picks the final-approach start: the entry that persists to
// contact wins; otherwise the last sustained (dwell >= minDwell) entry;
// a flight that never stabilizes collapses the phase to zero length.
func (s *Segmenter) entryTime(samples []model.Sample, dockIdx int, dock float64, cond func(model.Sample) bool) float64 {
	rs := conditionRuns(samples, dockIdx, dock, cond)
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].toLimit {
			return rs[i].start
		}
	}
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].end-rs[i].start >= s.minDwellS {
			return rs[i].start
		}
	}
	return dock
}

// entryTimeBefore picks the approach start within [start of log, bound),
// with the same last-sustained-entry tie-break against transient crossings.
func (s *Segmenter) entryTimeBefore(samples []model.Sample, dockIdx int, bound float64, cond func(model.Sample) bool) float64 {
	limitIdx := dockIdx
	for limitIdx > 0 && samples[limitIdx].T > bound {
		limitIdx--
	}
	rs := conditionRuns(samples, limitIdx, bound, cond)
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].toLimit {
			return rs[i].start
		}
	}
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].end-rs[i].start >= s.minDwellS {
			return rs[i].start
		}
	}
	return bound
}

// checkOrdering enforces contiguity of the three intervals. Derived
// boundaries satisfy it by construction; a violation therefore names the
// overridden boundary that broke it.
func checkOrdering(t0, appr, fa, dock float64, overridden bool) error {
	kind := ErrInvalidOverride
	if !overridden {
		kind = ErrSegmentation
	}
	switch {
	case appr < t0:
		return fmt.Errorf("%w: ApprStart=%g before recording start t=%g", kind, appr, t0)
	case fa < appr:
		return fmt.Errorf("%w: ApprStart=%g after FAStart=%g", kind, appr, fa)
	case dock < fa:
		return fmt.Errorf("%w: FAStart=%g after TimeDock=%g", kind, fa, dock)
	}
	return nil
}
