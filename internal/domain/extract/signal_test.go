package extract

import (
	"math"
	"testing"

	"github.com/halverson/dockeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func rampSamples(n int) []model.Sample {
	samples := make([]model.Sample, n)
	for i := range samples {
		samples[i] = model.Sample{T: float64(i), Pos: model.Vec3{X: float64(n - i)}}
	}
	return samples
}

func TestSliceBoundaries(t *testing.T) {
	Convey("Given a one-hertz recording", t, func() {
		samples := rampSamples(5)

		Convey("Exact-boundary intervals return the recorded samples", func() {
			sl := slice(samples, 1, 3)
			So(sl, ShouldHaveLength, 3)
			So(sl[0].T, ShouldEqual, 1)
			So(sl[2].T, ShouldEqual, 3)
		})

		Convey("Fractional boundaries synthesize interpolated endpoints", func() {
			sl := slice(samples, 0.5, 2.5)
			So(sl, ShouldHaveLength, 4)
			So(sl[0].T, ShouldEqual, 0.5)
			So(sl[0].Pos.X, ShouldAlmostEqual, 4.5, 1e-12)
			So(sl[3].T, ShouldEqual, 2.5)
		})

		Convey("Intervals between two samples yield both synthesized ends", func() {
			sl := slice(samples, 1.25, 1.75)
			So(sl, ShouldHaveLength, 2)
			So(sl[0].T, ShouldEqual, 1.25)
			So(sl[1].T, ShouldEqual, 1.75)
		})

		Convey("Interior keeps the half-open raw window", func() {
			raw := interior(samples, 1, 3)
			So(raw, ShouldHaveLength, 2)
			So(raw[0].T, ShouldEqual, 1)
			So(raw[1].T, ShouldEqual, 2)
		})
	})
}

func TestSignalReductions(t *testing.T) {
	Convey("Given simple analytic signals", t, func() {
		samples := rampSamples(4)

		Convey("Integrating a unit function returns the span", func() {
			v := integrate(samples, func(model.Sample) float64 { return 1 })
			So(v, ShouldEqual, 3)
		})

		Convey("The time mean of range follows the trapezoid rule", func() {
			v := timeMean(samples, model.Sample.Range)
			So(v, ShouldAlmostEqual, 2.5, 1e-12)
		})

		Convey("Median spacing needs at least two samples", func() {
			So(medianDt(samples), ShouldEqual, 1)
			So(math.IsInf(medianDt(samples[:1]), 1), ShouldBeTrue)
		})

		Convey("A constant signal's mean PSD is its squared level", func() {
			signal := []float64{2, 2, 2, 2, 2, 2, 2, 2}
			So(meanPSD(signal), ShouldAlmostEqual, 4, 1e-9)
			So(meanPSD(nil), ShouldEqual, 0)
		})
	})
}
