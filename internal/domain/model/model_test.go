package model_test

import (
	"errors"
	"math"
	"testing"

	"github.com/halverson/dockeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func descendingLog() *model.FlightLog {
	samples := make([]model.Sample, 0, 10)
	for i := 0; i < 10; i++ {
		t := float64(i)
		samples = append(samples, model.Sample{
			T:      t,
			Pos:    model.Vec3{X: 100 - 10*t, Y: 1, Z: 2},
			Vel:    model.Vec3{X: -10, Y: 0.1, Z: -0.2},
			FuelKG: 50 - t,
		})
	}
	return &model.FlightLog{FlightID: "f-1", Samples: samples}
}

func TestSampleGeometry(t *testing.T) {
	Convey("Given a telemetry sample", t, func() {
		s := model.Sample{
			Pos: model.Vec3{X: -30, Y: 3, Z: 4},
			Vel: model.Vec3{X: -0.5, Y: 0.3, Z: -0.4},
			THC: model.Vec3{X: 0.1, Y: -0.2, Z: 0},
			RHC: model.Vec3{X: 0, Y: 0, Z: 0.3},
		}

		Convey("Then range is the absolute approach-axis distance", func() {
			So(s.Range(), ShouldAlmostEqual, 30)
		})

		Convey("Then lateral offset and velocity are the YZ magnitudes", func() {
			So(s.LateralOffset(), ShouldAlmostEqual, 5)
			So(s.LateralVelocity(), ShouldAlmostEqual, 0.5)
		})

		Convey("Then closing rate flips the velocity sign", func() {
			So(s.ClosingRate(), ShouldAlmostEqual, 0.5)
		})

		Convey("Then combined deflection sums all six axes", func() {
			So(s.CombinedDeflection(), ShouldAlmostEqual, 0.6)
			So(s.THCActive(), ShouldBeTrue)
			So(s.RHCActive(), ShouldBeTrue)
		})
	})
}

func TestFlightLogEnsureID(t *testing.T) {
	Convey("Given a recording without a flight id", t, func() {
		l := &model.FlightLog{}

		Convey("When ensuring the id", func() {
			id := l.EnsureID()

			Convey("Then a fresh id is assigned once", func() {
				So(id, ShouldNotBeEmpty)
				So(l.FlightID, ShouldEqual, id)
				So(l.EnsureID(), ShouldEqual, id)
			})
		})
	})

	Convey("Given a recording with a flight id", t, func() {
		l := &model.FlightLog{FlightID: "keep-me"}
		So(l.EnsureID(), ShouldEqual, "keep-me")
	})
}

func TestFlightLogValidate(t *testing.T) {
	Convey("Given a well-formed recording", t, func() {
		l := descendingLog()

		Convey("Then validation passes", func() {
			So(l.Validate(), ShouldBeNil)
		})
	})

	Convey("Given an empty recording", t, func() {
		l := &model.FlightLog{}
		So(errors.Is(l.Validate(), model.ErrEmptyLog), ShouldBeTrue)
	})

	Convey("Given a single-sample recording", t, func() {
		l := &model.FlightLog{Samples: []model.Sample{{T: 0, FuelKG: 10}}}
		So(errors.Is(l.Validate(), model.ErrDataIntegrity), ShouldBeTrue)
	})

	Convey("Given a recording with a repeated timestamp", t, func() {
		l := descendingLog()
		l.Samples[4].T = l.Samples[3].T

		err := l.Validate()
		So(errors.Is(err, model.ErrDataIntegrity), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "timestamp")
	})

	Convey("Given a recording where propellant increases", t, func() {
		l := descendingLog()
		l.Samples[5].FuelKG = l.Samples[4].FuelKG + 1

		err := l.Validate()
		So(errors.Is(err, model.ErrDataIntegrity), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "propellant")
	})

	Convey("Given a recording with a non-finite position", t, func() {
		l := descendingLog()
		l.Samples[2].Pos.Y = math.NaN()

		So(errors.Is(l.Validate(), model.ErrDataIntegrity), ShouldBeTrue)
	})

	Convey("Given NaN controller inputs", t, func() {
		// Invalid stick readings are counted by the input-error metrics,
		// not rejected up front.
		l := descendingLog()
		l.Samples[3].THC.X = math.NaN()
		l.Samples[7].RHC.Z = math.Inf(1)

		So(l.Validate(), ShouldBeNil)
	})
}

func TestMetricRecord(t *testing.T) {
	Convey("Given a metric record", t, func() {
		rec := model.MetricRecord{
			FlightID: "f-9",
			Values: map[string]model.Value{
				"Fuel_Total": model.Some(12.5),
			},
			Quality: []string{"FA:zero-length"},
		}

		Convey("Then present values read back", func() {
			So(rec.Has("Fuel_Total"), ShouldBeTrue)
			So(rec.Get("Fuel_Total").V, ShouldAlmostEqual, 12.5)
		})

		Convey("Then missing values read absent", func() {
			So(rec.Has("Duration_Total"), ShouldBeFalse)
			So(rec.Get("Duration_Total").Present, ShouldBeFalse)
		})

		Convey("Then clones are independent", func() {
			clone := rec.Clone()
			clone.Values["Fuel_Total"] = model.Some(99)
			clone.Quality[0] = "changed"

			So(rec.Get("Fuel_Total").V, ShouldAlmostEqual, 12.5)
			So(rec.Quality[0], ShouldEqual, "FA:zero-length")
		})
	})
}

func TestPhaseInterval(t *testing.T) {
	Convey("Given a phase interval", t, func() {
		iv := model.PhaseInterval{Phase: model.PhaseAppr, Start: 50, End: 230}
		So(iv.Length(), ShouldAlmostEqual, 180)
	})

	Convey("Given the phase list", t, func() {
		So(model.Phases(), ShouldResemble, []model.Phase{model.PhaseAlign, model.PhaseAppr, model.PhaseFA})
	})
}
