// Package extract computes the per-phase and whole-flight metric vector of
// a segmented docking recording.
package extract

import (
	"fmt"
	"math"

	"github.com/halverson/dockeval/internal/domain/catalog"
	"github.com/halverson/dockeval/internal/domain/model"
)

// Extraction constants. Cone half-angle and the ideal closing-velocity
// profile mirror the simulator scenario definitions; both are adjustable
// through options.
const (
	defaultConeHalfAngleDeg = 10.0
	defaultIdealVelDivisor  = 200.0
	defaultIdealVelFloor    = 0.1
	defaultPSDMinSamples    = 8
	defaultDutyMaxDtS       = 0.5

	maxDeflection = 1.0
)

// Metric family base names, matching the catalog document.
const (
	baseDuration       = "Duration"
	baseTimeToDock     = "TimeToDock"
	baseOutOfCone      = "OutOfCone"
	baseAboveClosing   = "AboveClosingVel"
	baseFuel           = "Fuel"
	baseLatAtStart     = "LatOffsetAtStart"
	baseLatAtDock      = "LatOffsetAtDock"
	baseNoVis          = "NoVisTime"
	baseTHCPSD         = "THCPSD"
	baseRHCPSD         = "RHCPSD"
	baseTHCErr         = "THCErr"
	baseRHCErr         = "RHCErr"
	baseLatOffAvg      = "LatOffAvg"
	baseApprVelAvg     = "ApprVelAvg"
	baseLatVelAvg      = "LatVelAvg"
	baseRollRms        = "RollRms"
	baseYawRms         = "YawRms"
	basePitchRms       = "PitchRms"
	baseAggressiveness = "Aggressiveness"
	baseCombJoyTime    = "CombJoyTime"
	baseDutyCycle      = "DutyCycle"
	baseWorkload       = "Workload"
)

// Extractor computes every catalog metric for one flight. It is stateless
// across flights and safe for concurrent use.
type Extractor struct {
	cat *catalog.Catalog

	coneHalfAngleDeg float64
	idealVelDivisor  float64
	idealVelFloor    float64
	psdMinSamples    int
	dutyMaxDtS       float64
}

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithConeHalfAngle sets the approach-corridor half angle in degrees.
func WithConeHalfAngle(deg float64) Option {
	return func(e *Extractor) {
		if deg > 0 {
			e.coneHalfAngleDeg = deg
		}
	}
}

// WithIdealVelocityProfile sets the closing-velocity ceiling profile:
// ceiling(range) = max(range/divisor, floor).
func WithIdealVelocityProfile(divisor, floor float64) Option {
	return func(e *Extractor) {
		if divisor > 0 {
			e.idealVelDivisor = divisor
		}
		if floor > 0 {
			e.idealVelFloor = floor
		}
	}
}

// WithPSDMinSamples sets the sample count below which spectral metrics
// fall back to zero with a data-quality flag.
func WithPSDMinSamples(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.psdMinSamples = n
		}
	}
}

// WithDutyCycleMaxDt sets the coarsest median sample spacing for which
// duty-cycle (and hence workload) is still computed.
func WithDutyCycleMaxDt(seconds float64) Option {
	return func(e *Extractor) {
		if seconds > 0 {
			e.dutyMaxDtS = seconds
		}
	}
}

// New creates an Extractor bound to a loaded catalog.
func New(cat *catalog.Catalog, opts ...Option) *Extractor {
	e := &Extractor{
		cat:              cat,
		coneHalfAngleDeg: defaultConeHalfAngleDeg,
		idealVelDivisor:  defaultIdealVelDivisor,
		idealVelFloor:    defaultIdealVelFloor,
		psdMinSamples:    defaultPSDMinSamples,
		dutyMaxDtS:       defaultDutyMaxDtS,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// phaseMetrics holds one interval's computed values before record assembly.
type phaseMetrics struct {
	duration     float64
	outOfCone    float64
	aboveClosing float64
	fuel         float64
	latAtStart   float64
	noVis        float64
	thcPSD       float64
	rhcPSD       float64
	thcErr       float64
	rhcErr       float64
	latOffAvg    float64
	apprVelAvg   float64
	latVelAvg    float64
	rollRms      float64
	yawRms       float64
	pitchRms     float64
	aggr         float64
	combJoy      float64
	duty         model.Value
	workload     model.Value
}

// Extract computes the full metric record for a validated, segmented
// flight. Re-running on the same inputs is bit-identical: all arithmetic
// walks samples in recording order and no map iteration feeds a value.
func (e *Extractor) Extract(log *model.FlightLog, seg model.Segmentation) (model.MetricRecord, error) {
	rec := model.MetricRecord{
		FlightID:       log.FlightID,
		Date:           log.Date,
		Scenario:       log.Scenario,
		CatalogVersion: e.cat.Version(),
		Values:         make(map[string]model.Value, e.cat.Len()),
	}

	phases := model.Phases()
	per := make([]phaseMetrics, len(phases))
	for i, iv := range seg.Intervals {
		pm, quality, err := e.phase(log, iv)
		if err != nil {
			return model.MetricRecord{}, err
		}
		per[i] = pm
		rec.Quality = append(rec.Quality, quality...)

		set := func(base string, v float64) {
			rec.Values[catalog.Key(base, phases[i])] = model.Some(v)
		}
		set(baseDuration, pm.duration)
		set(baseOutOfCone, pm.outOfCone)
		set(baseAboveClosing, pm.aboveClosing)
		set(baseFuel, pm.fuel)
		set(baseLatAtStart, pm.latAtStart)
		set(baseNoVis, pm.noVis)
		set(baseTHCPSD, pm.thcPSD)
		set(baseRHCPSD, pm.rhcPSD)
		set(baseTHCErr, pm.thcErr)
		set(baseRHCErr, pm.rhcErr)
		set(baseLatOffAvg, pm.latOffAvg)
		set(baseApprVelAvg, pm.apprVelAvg)
		set(baseLatVelAvg, pm.latVelAvg)
		set(baseRollRms, pm.rollRms)
		set(baseYawRms, pm.yawRms)
		set(basePitchRms, pm.pitchRms)
		set(baseAggressiveness, pm.aggr)
		set(baseCombJoyTime, pm.combJoy)
		if pm.duty.Present {
			rec.Values[catalog.Key(baseDutyCycle, phases[i])] = pm.duty
		}
		if pm.workload.Present {
			rec.Values[catalog.Key(baseWorkload, phases[i])] = pm.workload
		}
	}

	e.totals(log, seg, per, &rec)

	// Every mandatory catalog key must have been produced; a hole here is
	// an engine bug to surface, never a silent skip.
	for _, key := range e.cat.Keys() {
		def, err := e.cat.Resolve(key)
		if err != nil {
			return model.MetricRecord{}, err
		}
		if !def.Optional && !rec.Has(key) {
			return model.MetricRecord{}, fmt.Errorf("%w: %s", ErrMetricMissing, key)
		}
	}

	return rec, nil
}

// phase computes all metric families over one interval.
func (e *Extractor) phase(log *model.FlightLog, iv model.PhaseInterval) (phaseMetrics, []string, error) {
	sl := slice(log.Samples, iv.Start, iv.End)
	raw := interior(log.Samples, iv.Start, iv.End)

	var pm phaseMetrics
	var quality []string

	pm.duration = iv.Length()
	if pm.duration == 0 {
		quality = append(quality, fmt.Sprintf("%s:zero-length", iv.Phase))
	}

	pm.outOfCone = conditionTime(sl, func(sm model.Sample) bool {
		return sm.LateralOffset() > e.coneRadius(sm.Range())
	})
	pm.aboveClosing = conditionTime(sl, func(sm model.Sample) bool {
		return sm.ClosingRate() > e.closingCeiling(sm.Range())
	})
	pm.noVis = conditionTime(sl, func(sm model.Sample) bool { return !sm.Visible })
	pm.combJoy = conditionTime(sl, func(sm model.Sample) bool {
		return sm.THCActive() && sm.RHCActive()
	})

	if len(sl) > 0 {
		pm.latAtStart = sl[0].LateralOffset()
		pm.fuel = sl[0].FuelKG - sl[len(sl)-1].FuelKG
	}
	if pm.fuel < 0 {
		return phaseMetrics{}, nil, fmt.Errorf(
			"%w: propellant increases across phase %s", model.ErrDataIntegrity, iv.Phase)
	}

	pm.latOffAvg = timeMean(sl, model.Sample.LateralOffset)
	pm.apprVelAvg = timeMean(sl, model.Sample.ClosingRate)
	pm.latVelAvg = timeMean(sl, model.Sample.LateralVelocity)
	pm.rollRms = timeRMS(sl, func(sm model.Sample) float64 { return sm.Att.X })
	pm.yawRms = timeRMS(sl, func(sm model.Sample) float64 { return sm.Att.Y })
	pm.pitchRms = timeRMS(sl, func(sm model.Sample) float64 { return sm.Att.Z })

	if pm.duration > 0 {
		pm.aggr = totalVariation(sl, model.Sample.CombinedDeflection) / pm.duration
	}

	var short bool
	pm.thcPSD, short = e.controllerPSD(raw, func(sm model.Sample) model.Vec3 { return sm.THC })
	if short {
		quality = append(quality, fmt.Sprintf("%s:short-interval", catalog.Key(baseTHCPSD, iv.Phase)))
	}
	pm.rhcPSD, short = e.controllerPSD(raw, func(sm model.Sample) model.Vec3 { return sm.RHC })
	if short {
		quality = append(quality, fmt.Sprintf("%s:short-interval", catalog.Key(baseRHCPSD, iv.Phase)))
	}

	pm.thcErr = float64(countInputErrors(log.Samples, iv, func(sm model.Sample) model.Vec3 { return sm.THC }))
	pm.rhcErr = float64(countInputErrors(log.Samples, iv, func(sm model.Sample) model.Vec3 { return sm.RHC }))

	pm.duty = e.dutyCycle(raw, pm.duration)
	if pm.duty.Present {
		pm.workload = model.Some(pm.aggr * pm.duty.V)
	}

	return pm, quality, nil
}

// totals fills the _Total aggregates. Durations, times, counts and fuel
// sum across phases; averages are duration-weighted means; RMS values
// combine as duration-weighted RMS-of-RMS; spectral metrics are recomputed
// over the whole-flight signal, since averaging per-phase spectra would
// not be spectrally valid.
func (e *Extractor) totals(log *model.FlightLog, seg model.Segmentation, per []phaseMetrics, rec *model.MetricRecord) {
	t0 := seg.Intervals[0].Start

	sum := func(pick func(phaseMetrics) float64) float64 {
		total := 0.0
		for _, pm := range per {
			total += pick(pm)
		}
		return total
	}
	wMean := func(pick func(phaseMetrics) float64) float64 {
		num, den := 0.0, 0.0
		for _, pm := range per {
			num += pm.duration * pick(pm)
			den += pm.duration
		}
		if den == 0 {
			return 0
		}
		return num / den
	}
	wRMS := func(pick func(phaseMetrics) float64) float64 {
		return math.Sqrt(wMean(func(pm phaseMetrics) float64 {
			v := pick(pm)
			return v * v
		}))
	}
	setTotal := func(base string, v float64) {
		rec.Values[catalog.Key(base, model.PhaseTotal)] = model.Some(v)
	}

	setTotal(baseDuration, sum(func(pm phaseMetrics) float64 { return pm.duration }))
	setTotal(baseTimeToDock, seg.TimeDock-t0)
	setTotal(baseOutOfCone, sum(func(pm phaseMetrics) float64 { return pm.outOfCone }))
	setTotal(baseAboveClosing, sum(func(pm phaseMetrics) float64 { return pm.aboveClosing }))
	setTotal(baseFuel, sum(func(pm phaseMetrics) float64 { return pm.fuel }))
	setTotal(baseNoVis, sum(func(pm phaseMetrics) float64 { return pm.noVis }))
	setTotal(baseCombJoyTime, sum(func(pm phaseMetrics) float64 { return pm.combJoy }))
	setTotal(baseTHCErr, sum(func(pm phaseMetrics) float64 { return pm.thcErr }))
	setTotal(baseRHCErr, sum(func(pm phaseMetrics) float64 { return pm.rhcErr }))

	setTotal(baseLatAtStart, per[0].latAtStart)
	setTotal(baseLatOffAvg, wMean(func(pm phaseMetrics) float64 { return pm.latOffAvg }))
	setTotal(baseApprVelAvg, wMean(func(pm phaseMetrics) float64 { return pm.apprVelAvg }))
	setTotal(baseLatVelAvg, wMean(func(pm phaseMetrics) float64 { return pm.latVelAvg }))
	setTotal(baseAggressiveness, wMean(func(pm phaseMetrics) float64 { return pm.aggr }))
	setTotal(baseRollRms, wRMS(func(pm phaseMetrics) float64 { return pm.rollRms }))
	setTotal(baseYawRms, wRMS(func(pm phaseMetrics) float64 { return pm.yawRms }))
	setTotal(basePitchRms, wRMS(func(pm phaseMetrics) float64 { return pm.pitchRms }))

	full := interior(log.Samples, t0, seg.TimeDock)
	thc, shortTHC := e.controllerPSD(full, func(sm model.Sample) model.Vec3 { return sm.THC })
	rhc, shortRHC := e.controllerPSD(full, func(sm model.Sample) model.Vec3 { return sm.RHC })
	setTotal(baseTHCPSD, thc)
	setTotal(baseRHCPSD, rhc)
	if shortTHC {
		rec.Quality = append(rec.Quality, fmt.Sprintf("%s:short-interval", catalog.Key(baseTHCPSD, model.PhaseTotal)))
	}
	if shortRHC {
		rec.Quality = append(rec.Quality, fmt.Sprintf("%s:short-interval", catalog.Key(baseRHCPSD, model.PhaseTotal)))
	}

	fullSlice := slice(log.Samples, t0, seg.TimeDock)
	if len(fullSlice) > 0 {
		setTotal(baseLatAtDock, fullSlice[len(fullSlice)-1].LateralOffset())
	} else {
		setTotal(baseLatAtDock, 0)
	}

	// Workload and duty cycle stay absent unless every phase produced them.
	allDuty := true
	for _, pm := range per {
		if !pm.duty.Present {
			allDuty = false
			break
		}
	}
	if allDuty {
		duty := wMean(func(pm phaseMetrics) float64 { return pm.duty.V })
		aggr := rec.Get(catalog.Key(baseAggressiveness, model.PhaseTotal))
		rec.Values[catalog.Key(baseDutyCycle, model.PhaseTotal)] = model.Some(duty)
		rec.Values[catalog.Key(baseWorkload, model.PhaseTotal)] = model.Some(aggr.V * duty)
	}
}

// coneRadius is the allowed lateral offset at a given range.
func (e *Extractor) coneRadius(rangeM float64) float64 {
	return rangeM * math.Tan(e.coneHalfAngleDeg*math.Pi/180)
}

// closingCeiling is the phase-appropriate closing-velocity limit at a
// given range.
func (e *Extractor) closingCeiling(rangeM float64) float64 {
	return math.Max(rangeM/e.idealVelDivisor, e.idealVelFloor)
}

// controllerPSD averages the mean power spectral density of the three
// controller axes over the interval's raw samples. Intervals below the
// minimum sample count report zero and a short-interval flag; the metric
// itself is mandatory and never omitted.
func (e *Extractor) controllerPSD(raw []model.Sample, pick func(model.Sample) model.Vec3) (float64, bool) {
	if len(raw) < e.psdMinSamples {
		return 0, true
	}
	axes := [3][]float64{}
	for i := range axes {
		axes[i] = make([]float64, len(raw))
	}
	for i, sm := range raw {
		v := pick(sm)
		axes[0][i], axes[1][i], axes[2][i] = v.X, v.Y, v.Z
	}
	sum := 0.0
	for _, axis := range axes {
		sum += meanPSD(axis)
	}
	return sum / float64(len(axes)), false
}

// countInputErrors counts rising edges of out-of-range or non-finite
// controller input within [iv.Start, iv.End).
func countInputErrors(samples []model.Sample, iv model.PhaseInterval, pick func(model.Sample) model.Vec3) int {
	invalid := func(v model.Vec3) bool {
		for _, a := range []float64{v.X, v.Y, v.Z} {
			if math.IsNaN(a) || math.IsInf(a, 0) || math.Abs(a) > maxDeflection {
				return true
			}
		}
		return false
	}

	count := 0
	prevInvalid := false
	for i, sm := range samples {
		cur := invalid(pick(sm))
		inWindow := sm.T >= iv.Start && sm.T < iv.End
		if inWindow && cur && (i == 0 || !prevInvalid) {
			count++
		}
		prevInvalid = cur
	}
	return count
}

// dutyCycle measures the fraction of the interval during which controller
// input changes at all. It needs fine-grained input timestamps: when the
// median sample spacing is coarser than the configured limit the metric is
// omitted rather than reported misleadingly low.
func (e *Extractor) dutyCycle(raw []model.Sample, duration float64) model.Value {
	if duration <= 0 || len(raw) < 2 {
		return model.None()
	}
	if medianDt(raw) > e.dutyMaxDtS {
		return model.None()
	}
	active := 0.0
	for i := 1; i < len(raw); i++ {
		if raw[i].THC != raw[i-1].THC || raw[i].RHC != raw[i-1].RHC {
			active += raw[i].T - raw[i-1].T
		}
	}
	frac := active / duration
	if frac > 1 {
		frac = 1
	}
	return model.Some(frac)
}
