package grade_test

import (
	"errors"
	"testing"

	"github.com/halverson/dockeval/internal/domain/catalog"
	"github.com/halverson/dockeval/internal/domain/grade"
	"github.com/halverson/dockeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// testCatalog is a two-family catalog small enough to grade by hand.
func testCatalog() *catalog.Catalog {
	cat, err := catalog.Parse([]byte(`
version: v-test
metrics:
  - key: Fuel
    scope: per-phase
  - key: TimeToDock
    scope: total-only
`))
	if err != nil {
		panic(err)
	}
	return cat
}

func record(id string, fuelAlign, fuelTotal, ttd float64) model.MetricRecord {
	return model.MetricRecord{
		FlightID:       id,
		CatalogVersion: "v-test",
		Values: map[string]model.Value{
			"Fuel_Align":       model.Some(fuelAlign),
			"Fuel_Total":       model.Some(fuelTotal),
			"TimeToDock_Total": model.Some(ttd),
		},
	}
}

func allCost() grade.Config {
	return grade.Config{
		Criteria: map[string]grade.Criterion{
			"Fuel_Align":       {Weight: 0.2, Direction: grade.Cost},
			"Fuel_Total":       {Weight: 0.4, Direction: grade.Cost},
			"TimeToDock_Total": {Weight: 0.4, Direction: grade.Cost},
		},
	}
}

func TestGradeSingleRecord(t *testing.T) {
	Convey("Given a target with no reference flights", t, func() {
		g := grade.New(testCatalog())
		report, err := g.Grade(record("solo", 2, 8, 300), nil, allCost())
		So(err, ShouldBeNil)

		Convey("Every column is flat and scores the neutral constant", func() {
			So(report.ReferenceCount, ShouldEqual, 1)
			So(report.Overall, ShouldEqual, 0.5)
			So(report.Rank, ShouldEqual, 1)
			So(report.Percentile, ShouldEqual, 100)
			So(report.Method, ShouldEqual, grade.WeightedSum)
		})

		Convey("Phase scores cover only phases with included columns", func() {
			So(report.PhaseScores[model.PhaseAlign], ShouldEqual, 0.5)
			So(report.PhaseScores[model.PhaseTotal], ShouldEqual, 0.5)
			So(report.PhaseScores[model.PhaseFA], ShouldEqual, 0)
		})
	})
}

func TestGradeRanking(t *testing.T) {
	Convey("Given a thrifty and a wasteful flight", t, func() {
		g := grade.New(testCatalog())
		thrifty := record("thrifty", 2, 10, 100)
		wasteful := record("wasteful", 4, 20, 200)
		cfg := allCost()

		Convey("The thrifty flight grades to a perfect score", func() {
			report, err := g.Grade(thrifty, []model.MetricRecord{wasteful}, cfg)
			So(err, ShouldBeNil)
			So(report.Overall, ShouldEqual, 1)
			So(report.Rank, ShouldEqual, 1)
			So(report.Percentile, ShouldEqual, 100)
		})

		Convey("The wasteful flight lands at the bottom of the field", func() {
			report, err := g.Grade(wasteful, []model.MetricRecord{thrifty, wasteful}, cfg)
			So(err, ShouldBeNil)
			So(report.ReferenceCount, ShouldEqual, 2)
			So(report.Overall, ShouldEqual, 0)
			So(report.Rank, ShouldEqual, 2)
			So(report.Percentile, ShouldEqual, 50)
		})

		Convey("A mid-field flight normalizes between the extremes", func() {
			mid := record("mid", 3, 15, 150)
			report, err := g.Grade(mid, []model.MetricRecord{thrifty, wasteful}, cfg)
			So(err, ShouldBeNil)
			So(report.Overall, ShouldAlmostEqual, 0.5, 1e-12)
			So(report.Rank, ShouldEqual, 2)

			So(report.Metrics, ShouldHaveLength, 3)
			fuel := report.Metrics[1]
			So(fuel.Key, ShouldEqual, "Fuel_Total")
			So(fuel.Value, ShouldEqual, 15)
			So(fuel.Normalized, ShouldAlmostEqual, 0.5, 1e-12)
			So(fuel.Contribution, ShouldAlmostEqual, 0.2, 1e-12)
			So(fuel.PopMin, ShouldEqual, 10)
			So(fuel.PopMax, ShouldEqual, 20)
		})

		Convey("The target supersedes its own stored record in the matrix", func() {
			stale := record("thrifty", 9, 99, 999)
			report, err := g.Grade(thrifty, []model.MetricRecord{stale, wasteful}, cfg)
			So(err, ShouldBeNil)
			So(report.ReferenceCount, ShouldEqual, 2)
			So(report.Rank, ShouldEqual, 1)
		})
	})
}

func TestGradeWeightedProduct(t *testing.T) {
	Convey("Given one dominated column under product aggregation", t, func() {
		g := grade.New(testCatalog())
		cfg := allCost()
		cfg.Method = grade.WeightedProduct

		refs := []model.MetricRecord{
			record("a", 2, 10, 100),
			record("b", 4, 20, 200),
		}
		target := record("lopsided", 2, 10, 200)

		Convey("A zero in any weighted column zeroes the whole score", func() {
			report, err := g.Grade(target, refs, cfg)
			So(err, ShouldBeNil)
			So(report.Method, ShouldEqual, grade.WeightedProduct)
			So(report.Overall, ShouldEqual, 0)
			So(report.PhaseScores[model.PhaseAlign], ShouldEqual, 1)
		})
	})
}

func TestGradeWeightValidation(t *testing.T) {
	Convey("Given a two-flight comparison", t, func() {
		g := grade.New(testCatalog())
		target := record("a", 2, 10, 100)
		refs := []model.MetricRecord{record("b", 4, 20, 200)}

		check := func(cfg grade.Config) error {
			_, err := g.Grade(target, refs, cfg)
			return err
		}

		Convey("A missing criterion for an included column is rejected", func() {
			cfg := allCost()
			delete(cfg.Criteria, "TimeToDock_Total")
			err := check(cfg)
			So(errors.Is(err, grade.ErrInvalidWeights), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "TimeToDock_Total")
		})

		Convey("An unknown direction is rejected", func() {
			cfg := allCost()
			cfg.Criteria["Fuel_Total"] = grade.Criterion{Weight: 0.4, Direction: "best"}
			So(errors.Is(check(cfg), grade.ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("A negative weight is rejected", func() {
			cfg := allCost()
			cfg.Criteria["Fuel_Align"] = grade.Criterion{Weight: -0.2, Direction: grade.Cost}
			So(errors.Is(check(cfg), grade.ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("Weights must sum to one within tolerance", func() {
			cfg := allCost()
			cfg.Criteria["Fuel_Align"] = grade.Criterion{Weight: 0.1, Direction: grade.Cost}
			So(errors.Is(check(cfg), grade.ErrInvalidWeights), ShouldBeTrue)

			Convey("Unless the grader is built with a looser tolerance", func() {
				loose := grade.New(testCatalog(), grade.WithWeightTolerance(0.2))
				_, err := loose.Grade(target, refs, cfg)
				So(err, ShouldBeNil)
			})
		})

		Convey("An unknown aggregation method is rejected", func() {
			cfg := allCost()
			cfg.Method = "geometric"
			So(errors.Is(check(cfg), grade.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestGradeVersionSkew(t *testing.T) {
	Convey("Given records evaluated under different catalogs", t, func() {
		g := grade.New(testCatalog())
		target := record("a", 2, 10, 100)
		old := record("b", 4, 20, 200)
		old.CatalogVersion = "v-old"

		Convey("A target from another catalog version is refused", func() {
			stale := record("c", 2, 10, 100)
			stale.CatalogVersion = "v-old"
			_, err := g.Grade(stale, nil, allCost())
			So(errors.Is(err, grade.ErrCatalogVersion), ShouldBeTrue)
		})

		Convey("Mixed reference versions are refused by default", func() {
			_, err := g.Grade(target, []model.MetricRecord{old}, allCost())
			So(errors.Is(err, grade.ErrCatalogVersion), ShouldBeTrue)
		})

		Convey("IgnoreVersionSkew admits the stale reference", func() {
			cfg := allCost()
			cfg.IgnoreVersionSkew = true
			report, err := g.Grade(target, []model.MetricRecord{old}, cfg)
			So(err, ShouldBeNil)
			So(report.ReferenceCount, ShouldEqual, 2)
			So(report.Rank, ShouldEqual, 1)
		})
	})
}

func TestGradeColumnSelection(t *testing.T) {
	Convey("Given records with uneven metric coverage", t, func() {
		g := grade.New(testCatalog())
		target := record("a", 2, 10, 100)

		Convey("Columns absent from one record are excluded, not dropped silently", func() {
			partial := record("b", 4, 20, 200)
			delete(partial.Values, "Fuel_Align")

			cfg := grade.Config{
				Criteria: map[string]grade.Criterion{
					"Fuel_Total":       {Weight: 0.5, Direction: grade.Cost},
					"TimeToDock_Total": {Weight: 0.5, Direction: grade.Cost},
				},
			}
			report, err := g.Grade(target, []model.MetricRecord{partial}, cfg)
			So(err, ShouldBeNil)
			So(report.Excluded, ShouldResemble, []string{"Fuel_Align"})
			So(report.Metrics, ShouldHaveLength, 2)
		})

		Convey("A reference with no shared columns fails the comparison", func() {
			empty := model.MetricRecord{FlightID: "b", CatalogVersion: "v-test", Values: map[string]model.Value{}}
			_, err := g.Grade(target, []model.MetricRecord{empty}, allCost())
			So(errors.Is(err, grade.ErrNoColumns), ShouldBeTrue)
		})
	})
}
