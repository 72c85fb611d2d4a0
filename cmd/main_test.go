package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/halverson/dockeval/internal/domain/catalog"
	"github.com/halverson/dockeval/internal/domain/grade"
	"github.com/halverson/dockeval/internal/testflight"
	"github.com/halverson/dockeval/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestFlagHelpers(t *testing.T) {
	convey.Convey("Given the override flag mapping", t, func() {
		convey.Convey("When no override flag is set", func() {
			ov := overridesFromFlags(math.NaN(), math.NaN(), math.NaN())

			convey.Convey("Then no overrides are passed down", func() {
				convey.So(ov, convey.ShouldBeNil)
			})
		})

		convey.Convey("When some override flags are set", func() {
			ov := overridesFromFlags(40, math.NaN(), 330)

			convey.Convey("Then only those boundaries are overridden", func() {
				convey.So(ov, convey.ShouldNotBeNil)
				convey.So(*ov.ApprStart, convey.ShouldEqual, 40)
				convey.So(ov.FAStart, convey.ShouldBeNil)
				convey.So(*ov.TimeDock, convey.ShouldEqual, 330)
			})
		})
	})

	convey.Convey("Given the grade method mapping", t, func() {
		convey.So(methodFromConfig("weighted_product"), convey.ShouldEqual, grade.WeightedProduct)
		convey.So(methodFromConfig("weighted_sum"), convey.ShouldEqual, grade.WeightedSum)
		convey.So(methodFromConfig(""), convey.ShouldEqual, grade.WeightedSum)
	})
}

func TestLoadFlight(t *testing.T) {
	convey.Convey("Given a flight log on disk", t, func() {
		flight := testflight.Descent(testflight.WithFlightID("disk-flight"))
		path := writeFlightFile(t, flight)

		convey.Convey("When loading it", func() {
			loaded, err := loadFlight(path)

			convey.Convey("Then the recording round-trips", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(loaded.FlightID, convey.ShouldEqual, "disk-flight")
				convey.So(len(loaded.Samples), convey.ShouldEqual, len(flight.Samples))
			})
		})

		convey.Convey("When loading a missing file", func() {
			_, err := loadFlight(filepath.Join(t.TempDir(), "missing.json"))

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestLoadPolicy(t *testing.T) {
	convey.Convey("Given a grading policy on disk", t, func() {
		content := `
method: weighted-product
ignore_version_skew: true
criteria:
  Fuel_Total:
    weight: 0.6
    direction: cost
  Duration_Total:
    weight: 0.4
    direction: benefit
`
		path := filepath.Join(t.TempDir(), "policy.yaml")
		convey.So(os.WriteFile(path, []byte(content), 0o600), convey.ShouldBeNil)

		convey.Convey("When loading it", func() {
			policy, err := loadPolicy(path)

			convey.Convey("Then the policy parses", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(policy.Method, convey.ShouldEqual, grade.WeightedProduct)
				convey.So(policy.IgnoreVersionSkew, convey.ShouldBeTrue)
				convey.So(policy.Criteria["Fuel_Total"].Weight, convey.ShouldEqual, 0.6)
				convey.So(policy.Criteria["Fuel_Total"].Direction, convey.ShouldEqual, grade.Cost)
				convey.So(policy.Criteria["Duration_Total"].Direction, convey.ShouldEqual, grade.Benefit)
			})
		})
	})
}

func TestRunEndToEnd(t *testing.T) {
	convey.Convey("Given a flight log and a full grading policy", t, func() {
		clearEnv := setEnv(map[string]string{
			"DOCKEVAL_DB_DRIVER": "memory",
			"DOCKEVAL_LOG_LEVEL": "error",
		})
		defer clearEnv()

		flightPath := writeFlightFile(t, testflight.Descent(testflight.WithFlightID("e2e-flight")))
		policyPath := writeFullPolicy(t)

		convey.Convey("When running evaluation without grading", func() {
			err := run("", false, true, math.NaN(), math.NaN(), math.NaN(), []string{flightPath})

			convey.Convey("Then it should succeed", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When running the full pipeline with grading", func() {
			err := run(policyPath, false, false, math.NaN(), math.NaN(), math.NaN(), []string{flightPath})

			convey.Convey("Then it should succeed", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When rebuilding from flight logs", func() {
			err := run("", true, false, math.NaN(), math.NaN(), math.NaN(), []string{flightPath})

			convey.Convey("Then it should succeed", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the flight log does not exist", func() {
			err := run("", false, false, math.NaN(), math.NaN(), math.NaN(), []string{"/no/such/flight.json"})

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

// Helper functions.

func writeFlightFile(t *testing.T, flight interface{}) string {
	t.Helper()
	data, err := json.Marshal(flight)
	if err != nil {
		t.Fatalf("marshal flight: %v", err)
	}
	path := filepath.Join(t.TempDir(), "flight.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write flight: %v", err)
	}
	return path
}

// writeFullPolicy spreads equal cost weights over every non-optional catalog
// key, which is exactly the column set a default synthetic descent produces.
func writeFullPolicy(t *testing.T) string {
	t.Helper()
	cat := catalog.Default()
	var keys []string
	for _, key := range cat.Keys() {
		def, err := cat.Resolve(key)
		if err != nil {
			t.Fatalf("resolve %s: %v", key, err)
		}
		if !def.Optional {
			keys = append(keys, key)
		}
	}

	content := "method: weighted-sum\ncriteria:\n"
	for _, key := range keys {
		content += fmt.Sprintf("  %s:\n    weight: %.17g\n    direction: cost\n", key, 1/float64(len(keys)))
	}

	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func setEnv(vars map[string]string) func() {
	for k, v := range vars {
		_ = os.Setenv(k, v)
	}
	return func() {
		for k := range vars {
			_ = os.Unsetenv(k)
		}
	}
}
