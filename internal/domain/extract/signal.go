package extract

import (
	"math"
	"sort"

	"github.com/halverson/dockeval/internal/domain/model"
)

// lerp linearly interpolates between two scalars.
func lerp(a, b, f float64) float64 { return a + (b-a)*f }

func lerpVec(a, b model.Vec3, f float64) model.Vec3 {
	return model.Vec3{X: lerp(a.X, b.X, f), Y: lerp(a.Y, b.Y, f), Z: lerp(a.Z, b.Z, f)}
}

// sampleAt synthesizes a sample at time t between a and b. Continuous state
// channels interpolate linearly; controller deflections and flags are step
// signals and hold the earlier sample's value.
func sampleAt(a, b model.Sample, t float64) model.Sample {
	if b.T == a.T {
		return a
	}
	f := (t - a.T) / (b.T - a.T)
	return model.Sample{
		T:       t,
		Pos:     lerpVec(a.Pos, b.Pos, f),
		Vel:     lerpVec(a.Vel, b.Vel, f),
		Att:     lerpVec(a.Att, b.Att, f),
		RotRate: lerpVec(a.RotRate, b.RotRate, f),
		THC:     a.THC,
		RHC:     a.RHC,
		FuelKG:  lerp(a.FuelKG, b.FuelKG, f),
		Visible: a.Visible,
		Contact: a.Contact,
	}
}

// slice returns the samples covering [start, end], synthesizing boundary
// samples when the interval edges fall between recorded timestamps. The
// result is empty for zero-length intervals outside the recording.
func slice(samples []model.Sample, start, end float64) []model.Sample {
	if end < start || len(samples) == 0 {
		return nil
	}
	var out []model.Sample
	for i, sm := range samples {
		if sm.T < start {
			continue
		}
		if sm.T > end {
			break
		}
		if len(out) == 0 && sm.T > start && i > 0 {
			out = append(out, sampleAt(samples[i-1], sm, start))
		}
		out = append(out, sm)
	}
	if len(out) == 0 {
		// Interval strictly between two recorded samples.
		for i := 1; i < len(samples); i++ {
			if samples[i-1].T <= start && end <= samples[i].T {
				return []model.Sample{
					sampleAt(samples[i-1], samples[i], start),
					sampleAt(samples[i-1], samples[i], end),
				}
			}
		}
		return nil
	}
	if last := out[len(out)-1]; last.T < end {
		for i := 1; i < len(samples); i++ {
			if samples[i].T > end {
				out = append(out, sampleAt(samples[i-1], samples[i], end))
				break
			}
		}
	}
	return out
}

// interior returns the recorded samples with start <= t < end, without any
// synthesized boundaries. Spectral metrics work on the raw signal.
func interior(samples []model.Sample, start, end float64) []model.Sample {
	var out []model.Sample
	for _, sm := range samples {
		if sm.T < start {
			continue
		}
		if sm.T >= end {
			break
		}
		out = append(out, sm)
	}
	return out
}

// integrate computes the trapezoidal integral of f over the sliced
// interval samples.
func integrate(sl []model.Sample, f func(model.Sample) float64) float64 {
	total := 0.0
	for i := 1; i < len(sl); i++ {
		dt := sl[i].T - sl[i-1].T
		total += dt * (f(sl[i-1]) + f(sl[i])) / 2
	}
	return total
}

// conditionTime integrates the 0/1 indicator of cond with the trapezoid
// rule, matching the treatment of every other cumulative-time metric.
func conditionTime(sl []model.Sample, cond func(model.Sample) bool) float64 {
	return integrate(sl, func(sm model.Sample) float64 {
		if cond(sm) {
			return 1
		}
		return 0
	})
}

// timeMean is the duration-weighted mean of f over the interval; zero for
// degenerate intervals.
func timeMean(sl []model.Sample, f func(model.Sample) float64) float64 {
	if len(sl) < 2 {
		return 0
	}
	span := sl[len(sl)-1].T - sl[0].T
	if span <= 0 {
		return 0
	}
	return integrate(sl, f) / span
}

// timeRMS is the duration-weighted root mean square of f.
func timeRMS(sl []model.Sample, f func(model.Sample) float64) float64 {
	return math.Sqrt(timeMean(sl, func(sm model.Sample) float64 {
		v := f(sm)
		return v * v
	}))
}

// totalVariation sums |f(i) - f(i-1)| across the interval.
func totalVariation(sl []model.Sample, f func(model.Sample) float64) float64 {
	total := 0.0
	for i := 1; i < len(sl); i++ {
		total += math.Abs(f(sl[i]) - f(sl[i-1]))
	}
	return total
}

// medianDt reports the median sample spacing of the interval, +Inf when
// fewer than two samples exist.
func medianDt(sl []model.Sample) float64 {
	if len(sl) < 2 {
		return math.Inf(1)
	}
	dts := make([]float64, 0, len(sl)-1)
	for i := 1; i < len(sl); i++ {
		dts = append(dts, sl[i].T-sl[i-1].T)
	}
	sort.Float64s(dts)
	mid := len(dts) / 2
	if len(dts)%2 == 1 {
		return dts[mid]
	}
	return (dts[mid-1] + dts[mid]) / 2
}
