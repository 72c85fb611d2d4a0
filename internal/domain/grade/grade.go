// Package grade scores one flight's metric record against the reference
// database with a normalized, weighted multi-criteria method.
package grade

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/halverson/dockeval/internal/domain/catalog"
	"github.com/halverson/dockeval/internal/domain/model"
)

// Direction states whether larger metric values are better or worse.
type Direction string

const (
	// Benefit metrics map their maximum observed value to 1.
	Benefit Direction = "benefit"
	// Cost metrics map their minimum observed value to 1.
	Cost Direction = "cost"
)

// Method selects the aggregation rule.
type Method string

const (
	WeightedSum     Method = "weighted-sum"
	WeightedProduct Method = "weighted-product"
)

// Zero-variance columns normalize to this constant for every row instead
// of dividing by zero.
const flatColumnScore = 0.5

const defaultWeightTolerance = 1e-6

// Criterion is the grading policy for one metric key.
type Criterion struct {
	Weight    float64   `koanf:"weight" json:"weight"`
	Direction Direction `koanf:"direction" json:"direction"`
}

// Config is the caller-supplied grading policy. Nothing in it is ever
// hardcoded by the engine.
type Config struct {
	// Criteria maps metric keys to weight and direction. Weights must sum
	// to 1 over the columns included in the comparison.
	Criteria map[string]Criterion

	// Method picks weighted-sum (default) or weighted-product aggregation.
	Method Method

	// IgnoreVersionSkew admits reference records from other catalog
	// versions; the column intersection then drops unmatched keys. The
	// default refuses mixed versions outright.
	IgnoreVersionSkew bool
}

// MetricScore is one column of the target's normalized comparison row.
type MetricScore struct {
	Key          string      `json:"key"`
	Phase        model.Phase `json:"phase"`
	Value        float64     `json:"value"`
	Normalized   float64     `json:"normalized"`
	Weight       float64     `json:"weight"`
	Contribution float64     `json:"contribution"`
	Direction    Direction   `json:"direction"`

	// Reference-population shape of this column, for the human reviewer.
	PopMean float64 `json:"pop_mean"`
	PopStd  float64 `json:"pop_std"`
	PopMin  float64 `json:"pop_min"`
	PopMax  float64 `json:"pop_max"`
}

// Report is the ephemeral grading result; the core never persists it.
type Report struct {
	FlightID       string                  `json:"flight_id"`
	CatalogVersion string                  `json:"catalog_version"`
	Method         Method                  `json:"method"`
	ReferenceCount int                     `json:"reference_count"`
	Overall        float64                 `json:"overall"`
	PhaseScores    map[model.Phase]float64 `json:"phase_scores"`
	Rank           int                     `json:"rank"`
	Percentile     float64                 `json:"percentile"`
	Metrics        []MetricScore           `json:"metrics"`
	Excluded       []string                `json:"excluded,omitempty"`
}

// Grader ranks metric records against a reference snapshot. For a fixed
// snapshot and config the grade is a pure function of the target record.
type Grader struct {
	cat       *catalog.Catalog
	tolerance float64
}

// Option applies a configuration option to the Grader.
type Option func(*Grader)

// WithWeightTolerance sets the allowed deviation of the weight sum from 1.
func WithWeightTolerance(tol float64) Option {
	return func(g *Grader) {
		if tol > 0 {
			g.tolerance = tol
		}
	}
}

// New creates a Grader bound to a loaded catalog.
func New(cat *catalog.Catalog, opts ...Option) *Grader {
	g := &Grader{
		cat:       cat,
		tolerance: defaultWeightTolerance,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grade builds the comparison matrix from the reference snapshot plus the
// target, normalizes, weights, aggregates, and ranks the target row.
func (g *Grader) Grade(target model.MetricRecord, refs []model.MetricRecord, cfg Config) (Report, error) {
	if cfg.Method == "" {
		cfg.Method = WeightedSum
	}
	if cfg.Method != WeightedSum && cfg.Method != WeightedProduct {
		return Report{}, fmt.Errorf("%w: unknown aggregation method %q", ErrInvalidConfig, cfg.Method)
	}

	if target.CatalogVersion != g.cat.Version() {
		return Report{}, fmt.Errorf("%w: target record is %s, catalog is %s",
			ErrCatalogVersion, target.CatalogVersion, g.cat.Version())
	}
	if !cfg.IgnoreVersionSkew {
		for _, r := range refs {
			if r.CatalogVersion != target.CatalogVersion {
				return Report{}, fmt.Errorf(
					"%w: reference flight %s was evaluated under catalog %s, target under %s",
					ErrCatalogVersion, r.FlightID, r.CatalogVersion, target.CatalogVersion)
			}
		}
	}

	// The target replaces its own prior record in the matrix so a flight
	// already appended to the database is not counted twice.
	rows := make([]model.MetricRecord, 0, len(refs)+1)
	targetRow := -1
	for _, r := range refs {
		if r.FlightID == target.FlightID {
			targetRow = len(rows)
			rows = append(rows, target)
			continue
		}
		rows = append(rows, r)
	}
	if targetRow < 0 {
		targetRow = len(rows)
		rows = append(rows, target)
	}

	included, excluded := g.columns(rows)
	if len(included) == 0 {
		return Report{}, fmt.Errorf("%w: no metric column is present in every record", ErrNoColumns)
	}

	if err := g.checkWeights(included, cfg); err != nil {
		return Report{}, err
	}

	norm := normalize(rows, included, cfg)

	scores := make([]float64, len(rows))
	for i := range rows {
		scores[i] = aggregate(norm[i], included, cfg, nil)
	}

	rank := 1
	for i, s := range scores {
		if i != targetRow && s > scores[targetRow] {
			rank++
		}
	}
	n := len(rows)
	percentile := float64(n-rank+1) / float64(n) * 100

	report := Report{
		FlightID:       target.FlightID,
		CatalogVersion: target.CatalogVersion,
		Method:         cfg.Method,
		ReferenceCount: n,
		Overall:        scores[targetRow],
		PhaseScores:    make(map[model.Phase]float64, 4),
		Rank:           rank,
		Percentile:     percentile,
		Excluded:       excluded,
	}

	for _, p := range []model.Phase{model.PhaseAlign, model.PhaseAppr, model.PhaseFA, model.PhaseTotal} {
		report.PhaseScores[p] = aggregate(norm[targetRow], included, cfg, &p)
	}

	for ci, col := range included {
		values := make([]float64, len(rows))
		for ri := range rows {
			values[ri] = rows[ri].Get(col.key).V
		}
		mean, _ := stats.Mean(values)
		std, _ := stats.StandardDeviation(values)
		minV, _ := stats.Min(values)
		maxV, _ := stats.Max(values)

		crit := cfg.Criteria[col.key]
		report.Metrics = append(report.Metrics, MetricScore{
			Key:          col.key,
			Phase:        col.phase,
			Value:        rows[targetRow].Get(col.key).V,
			Normalized:   norm[targetRow][ci],
			Weight:       crit.Weight,
			Contribution: crit.Weight * norm[targetRow][ci],
			Direction:    crit.Direction,
			PopMean:      mean,
			PopStd:       std,
			PopMin:       minV,
			PopMax:       maxV,
		})
	}

	return report, nil
}

// column pairs a metric key with its catalog phase.
type column struct {
	key   string
	phase model.Phase
}

// columns intersects the catalog keys over all rows: a column enters the
// comparison only when every record carries it; columns some record lacks
// are reported as excluded rather than silently dropped.
func (g *Grader) columns(rows []model.MetricRecord) ([]column, []string) {
	var included []column
	var excluded []string
	for _, key := range g.cat.Keys() {
		present, any := true, false
		for i := range rows {
			if rows[i].Has(key) {
				any = true
			} else {
				present = false
			}
		}
		switch {
		case present:
			def, err := g.cat.Resolve(key)
			if err != nil {
				continue
			}
			included = append(included, column{key: key, phase: def.Phase})
		case any:
			excluded = append(excluded, key)
		}
	}
	return included, excluded
}

// checkWeights enforces the configured weight vector: every included
// column needs a direction and weight, and weights must sum to 1 over the
// included columns.
func (g *Grader) checkWeights(included []column, cfg Config) error {
	sum := 0.0
	for _, col := range included {
		crit, ok := cfg.Criteria[col.key]
		if !ok {
			return fmt.Errorf("%w: no criterion for included column %s", ErrInvalidWeights, col.key)
		}
		if crit.Direction != Benefit && crit.Direction != Cost {
			return fmt.Errorf("%w: column %s has direction %q", ErrInvalidWeights, col.key, crit.Direction)
		}
		if math.IsNaN(crit.Weight) || crit.Weight < 0 {
			return fmt.Errorf("%w: column %s has weight %g", ErrInvalidWeights, col.key, crit.Weight)
		}
		sum += crit.Weight
	}
	if math.Abs(sum-1) > g.tolerance {
		return fmt.Errorf("%w: weights over included columns sum to %g, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// normalize min-max scales every column independently. Benefit columns map
// the observed maximum to 1, cost columns the observed minimum; columns
// with zero variance score flat for every row.
func normalize(rows []model.MetricRecord, included []column, cfg Config) [][]float64 {
	norm := make([][]float64, len(rows))
	for i := range norm {
		norm[i] = make([]float64, len(included))
	}
	for ci, col := range included {
		minV, maxV := math.Inf(1), math.Inf(-1)
		for ri := range rows {
			v := rows[ri].Get(col.key).V
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
		span := maxV - minV
		for ri := range rows {
			v := rows[ri].Get(col.key).V
			switch {
			case span == 0:
				norm[ri][ci] = flatColumnScore
			case cfg.Criteria[col.key].Direction == Cost:
				norm[ri][ci] = (maxV - v) / span
			default:
				norm[ri][ci] = (v - minV) / span
			}
		}
	}
	return norm
}

// aggregate folds one normalized row into a score. A nil phase uses the
// full weight vector; a phase restricts to that phase's columns with
// weights renormalized within the group, so phase scores stay on the same
// 0..1 scale as the overall score.
func aggregate(row []float64, included []column, cfg Config, phase *model.Phase) float64 {
	wsum := 0.0
	for _, col := range included {
		if phase != nil && col.phase != *phase {
			continue
		}
		wsum += cfg.Criteria[col.key].Weight
	}
	if wsum == 0 {
		return 0
	}

	if cfg.Method == WeightedProduct {
		score := 1.0
		for ci, col := range included {
			if phase != nil && col.phase != *phase {
				continue
			}
			w := cfg.Criteria[col.key].Weight / wsum
			score *= math.Pow(row[ci], w)
		}
		return score
	}

	score := 0.0
	for ci, col := range included {
		if phase != nil && col.phase != *phase {
			continue
		}
		score += cfg.Criteria[col.key].Weight / wsum * row[ci]
	}
	return score
}
