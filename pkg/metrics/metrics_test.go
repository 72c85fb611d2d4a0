package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithMetricsEnabled(true),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording pipeline metrics", func() {
			Convey("Then it should record evaluated flights", func() {
				So(func() {
					RecordFlightEvaluated()
					RecordFlightEvaluated()
				}, ShouldNotPanic)
			})

			Convey("And it should record failed flights per stage", func() {
				So(func() {
					RecordFlightFailed(StageValidate)
					RecordFlightFailed(StageSegment)
					RecordFlightFailed(StageExtract)
				}, ShouldNotPanic)
			})

			Convey("And it should record stage durations", func() {
				So(func() {
					RecordStageDuration(StageSegment, 2.5)
					RecordStageDuration(StageExtract, 40.0)
					RecordStageDuration(StageGrade, 12.0)
				}, ShouldNotPanic)
			})

			Convey("And it should record quality flags", func() {
				So(func() {
					RecordQualityFlags(0)
					RecordQualityFlags(3)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording grading metrics", func() {
			Convey("Then it should count grade reports", func() {
				So(func() {
					RecordGradeComputed()
					RecordGradingError()
				}, ShouldNotPanic)
			})

			Convey("And it should update the reference record gauge", func() {
				So(func() {
					UpdateReferenceRecords(10)
					UpdateReferenceRecords(0)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestDisabledManager(t *testing.T) {
	Convey("Given a disabled metrics manager", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(
			WithMetricsEnabled(false),
			WithPrometheusRegistry(registry),
		)

		Convey("When recording through the disabled manager", func() {
			Convey("Then recording should be a no-op and not panic", func() {
				So(func() {
					manager.RecordFlightEvaluated()
					manager.RecordFlightFailed(StageAppend)
					manager.RecordStageDuration(StageValidate, 1.0)
					manager.RecordQualityFlags(2)
					manager.UpdateReferenceRecords(5)
					manager.RecordGradeComputed()
					manager.RecordGradingError()
				}, ShouldNotPanic)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				for _, f := range families {
					for _, m := range f.GetMetric() {
						So(m.GetCounter().GetValue(), ShouldEqual, 0)
					}
				}
			})
		})
	})
}

func TestRegistryAccess(t *testing.T) {
	Convey("Given the global registry", t, func() {
		Convey("When accessing it", func() {
			registry := GetRegistry()

			Convey("Then it should be available and gatherable", func() {
				So(registry, ShouldNotBeNil)
				_, err := registry.Gather()
				So(err, ShouldBeNil)
			})
		})

		Convey("When building the HTTP handler", func() {
			handler := Handler()

			Convey("Then it should not be nil", func() {
				So(handler, ShouldNotBeNil)
			})
		})
	})
}
