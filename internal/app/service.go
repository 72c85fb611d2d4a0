// Package service wires the evaluation pipeline: validation, phase
// segmentation, metric extraction, reference storage, and grading.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/halverson/dockeval/internal/adapters/refdb"
	"github.com/halverson/dockeval/internal/domain/catalog"
	"github.com/halverson/dockeval/internal/domain/extract"
	"github.com/halverson/dockeval/internal/domain/grade"
	"github.com/halverson/dockeval/internal/domain/model"
	"github.com/halverson/dockeval/internal/domain/segment"
	"github.com/halverson/dockeval/pkg/logger"
	"github.com/halverson/dockeval/pkg/metrics"
)

// Service implements the evaluation engine operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	cat       *catalog.Catalog
	store     refdb.Store
	segmenter *segment.Segmenter
	extractor *extract.Extractor
	grader    *grade.Grader

	// Segmentation configuration
	faRangeM       float64
	faMaxClosing   float64
	apprRangeM     float64
	apprMaxClosing float64
	minDwellS      float64

	// Extraction configuration
	coneHalfAngleDeg float64
	idealDivisor     float64
	idealFloor       float64
	psdMinSamples    int
	dutyMaxDtS       float64

	// Grading configuration
	weightTolerance float64
	defaultMethod   grade.Method

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCatalog sets the metric catalog. Defaults to the embedded catalog.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(s *Service) {
		if cat != nil {
			s.cat = cat
		}
	}
}

// WithStore sets the reference database backend. Defaults to an in-memory
// store.
func WithStore(store refdb.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFinalApproachEnvelope sets the final approach range gate and closing
// rate ceiling.
func WithFinalApproachEnvelope(rangeM, maxClosing float64) Option {
	return func(s *Service) {
		if rangeM > 0 {
			s.faRangeM = rangeM
			s.faMaxClosing = maxClosing
		}
	}
}

// WithApproachCorridor sets the approach range gate and closing rate ceiling.
func WithApproachCorridor(rangeM, maxClosing float64) Option {
	return func(s *Service) {
		if rangeM > 0 {
			s.apprRangeM = rangeM
			s.apprMaxClosing = maxClosing
		}
	}
}

// WithMinDwell sets the minimum time a phase entry condition must persist.
func WithMinDwell(seconds float64) Option {
	return func(s *Service) {
		if seconds >= 0 {
			s.minDwellS = seconds
		}
	}
}

// WithConeHalfAngle sets the approach cone half angle in degrees.
func WithConeHalfAngle(deg float64) Option {
	return func(s *Service) {
		if deg > 0 {
			s.coneHalfAngleDeg = deg
		}
	}
}

// WithIdealVelocityProfile sets the ideal closing velocity shape
// v = max(range/divisor, floor).
func WithIdealVelocityProfile(divisor, floor float64) Option {
	return func(s *Service) {
		if divisor > 0 && floor > 0 {
			s.idealDivisor = divisor
			s.idealFloor = floor
		}
	}
}

// WithPSDMinSamples sets the minimum sample count for spectral metrics.
func WithPSDMinSamples(n int) Option {
	return func(s *Service) {
		if n > 1 {
			s.psdMinSamples = n
		}
	}
}

// WithDutyCycleMaxDt sets the largest median sample spacing for which duty
// cycle metrics are produced.
func WithDutyCycleMaxDt(seconds float64) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.dutyMaxDtS = seconds
		}
	}
}

// WithWeightTolerance sets the allowed deviation of criterion weight sums
// from 1.
func WithWeightTolerance(tol float64) Option {
	return func(s *Service) {
		if tol > 0 {
			s.weightTolerance = tol
		}
	}
}

// WithDefaultMethod sets the aggregation used when a grading config does not
// name one.
func WithDefaultMethod(m grade.Method) Option {
	return func(s *Service) {
		if m != "" {
			s.defaultMethod = m
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		faRangeM:         20,
		faMaxClosing:     0.2,
		apprRangeM:       200,
		apprMaxClosing:   1.0,
		minDwellS:        5,
		coneHalfAngleDeg: 10,
		idealDivisor:     200,
		idealFloor:       0.1,
		psdMinSamples:    8,
		dutyMaxDtS:       0.5,
		weightTolerance:  1e-6,
		defaultMethod:    grade.WeightedSum,
		logger:           nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting evaluation service...")

	if s.cat == nil {
		s.cat = catalog.Default()
	}
	if s.store == nil {
		s.store = refdb.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory reference store")
	}

	s.segmenter = segment.New(
		segment.WithFinalApproachEnvelope(s.faRangeM, s.faMaxClosing),
		segment.WithApproachCorridor(s.apprRangeM, s.apprMaxClosing),
		segment.WithMinDwell(s.minDwellS),
	)
	s.extractor = extract.New(s.cat,
		extract.WithConeHalfAngle(s.coneHalfAngleDeg),
		extract.WithIdealVelocityProfile(s.idealDivisor, s.idealFloor),
		extract.WithPSDMinSamples(s.psdMinSamples),
		extract.WithDutyCycleMaxDt(s.dutyMaxDtS),
	)
	s.grader = grade.New(s.cat, grade.WithWeightTolerance(s.weightTolerance))

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateReferenceRecords(n)
	}

	s.started = true
	s.logger.Info(ctx, "evaluation service started",
		logger.String("catalogVersion", s.cat.Version()),
		logger.Int("metricColumns", s.cat.Len()),
		logger.Float64("faRangeM", s.faRangeM),
		logger.Float64("apprRangeM", s.apprRangeM),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping evaluation service...")

	// Close reference store if the backend holds resources
	if s.store != nil {
		if closer, ok := s.store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "evaluation service stopped")
}

// CatalogVersion returns the loaded catalog version.
func (s *Service) CatalogVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cat == nil {
		return ""
	}
	return s.cat.Version()
}

// Evaluate runs validation, segmentation, and extraction for one flight log
// without touching the reference database.
func (s *Service) Evaluate(ctx context.Context, flight *model.FlightLog, ov *segment.Overrides) (model.MetricRecord, error) {
	if err := s.ready(); err != nil {
		return model.MetricRecord{}, err
	}

	flight.EnsureID()

	start := time.Now()
	if err := flight.Validate(); err != nil {
		metrics.RecordFlightFailed(metrics.StageValidate)
		return model.MetricRecord{}, fmt.Errorf("validate flight %s: %w", flight.FlightID, err)
	}
	metrics.RecordStageDuration(metrics.StageValidate, elapsedMS(start))

	start = time.Now()
	seg, err := s.segmenter.Segment(flight, ov)
	if err != nil {
		metrics.RecordFlightFailed(metrics.StageSegment)
		return model.MetricRecord{}, fmt.Errorf("segment flight %s: %w", flight.FlightID, err)
	}
	metrics.RecordStageDuration(metrics.StageSegment, elapsedMS(start))

	s.logger.Debug(ctx, "flight segmented",
		logger.String("flightID", flight.FlightID),
		logger.Float64("timeDock", seg.TimeDock),
		logger.Int("overridden", len(seg.Overridden)),
	)

	start = time.Now()
	rec, err := s.extractor.Extract(flight, seg)
	if err != nil {
		metrics.RecordFlightFailed(metrics.StageExtract)
		return model.MetricRecord{}, fmt.Errorf("extract flight %s: %w", flight.FlightID, err)
	}
	metrics.RecordStageDuration(metrics.StageExtract, elapsedMS(start))

	metrics.RecordFlightEvaluated()
	metrics.RecordQualityFlags(len(rec.Quality))

	s.logger.Info(ctx, "flight evaluated",
		logger.String("flightID", rec.FlightID),
		logger.String("catalogVersion", rec.CatalogVersion),
		logger.Int("metrics", len(rec.Values)),
		logger.Int("qualityFlags", len(rec.Quality)),
	)

	return rec, nil
}

// Append stores an evaluated record in the reference database. A record with
// the same flight id supersedes the stored one.
func (s *Service) Append(ctx context.Context, rec model.MetricRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	start := time.Now()
	if err := s.store.Append(ctx, rec); err != nil {
		metrics.RecordFlightFailed(metrics.StageAppend)
		return fmt.Errorf("append flight %s: %w", rec.FlightID, err)
	}
	metrics.RecordStageDuration(metrics.StageAppend, elapsedMS(start))

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateReferenceRecords(n)
	}
	return nil
}

// EvaluateAndStore evaluates one flight log and appends the resulting record
// to the reference database.
func (s *Service) EvaluateAndStore(ctx context.Context, flight *model.FlightLog, ov *segment.Overrides) (model.MetricRecord, error) {
	rec, err := s.Evaluate(ctx, flight, ov)
	if err != nil {
		return model.MetricRecord{}, err
	}
	if err := s.Append(ctx, rec); err != nil {
		return model.MetricRecord{}, err
	}
	return rec, nil
}

// Grade scores a metric record against the current reference snapshot.
func (s *Service) Grade(ctx context.Context, rec model.MetricRecord, cfg grade.Config) (grade.Report, error) {
	if err := s.ready(); err != nil {
		return grade.Report{}, err
	}

	if cfg.Method == "" {
		cfg.Method = s.defaultMethod
	}

	refs, err := s.store.All(ctx)
	if err != nil {
		metrics.RecordGradingError()
		return grade.Report{}, fmt.Errorf("load reference records: %w", err)
	}

	start := time.Now()
	report, err := s.grader.Grade(rec, refs, cfg)
	if err != nil {
		metrics.RecordGradingError()
		return grade.Report{}, fmt.Errorf("grade flight %s: %w", rec.FlightID, err)
	}
	metrics.RecordStageDuration(metrics.StageGrade, elapsedMS(start))
	metrics.RecordGradeComputed()

	s.logger.Info(ctx, "flight graded",
		logger.String("flightID", report.FlightID),
		logger.Float64("overall", report.Overall),
		logger.Int("rank", report.Rank),
		logger.Float64("percentile", report.Percentile),
		logger.Int("referenceCount", report.ReferenceCount),
	)

	return report, nil
}

// EvaluateAndGrade runs the full pipeline for one flight log: evaluate,
// append to the reference database, then grade against it.
func (s *Service) EvaluateAndGrade(ctx context.Context, flight *model.FlightLog, ov *segment.Overrides, cfg grade.Config) (model.MetricRecord, grade.Report, error) {
	rec, err := s.EvaluateAndStore(ctx, flight, ov)
	if err != nil {
		return model.MetricRecord{}, grade.Report{}, err
	}
	report, err := s.Grade(ctx, rec, cfg)
	if err != nil {
		return model.MetricRecord{}, grade.Report{}, err
	}
	return rec, report, nil
}

// Rebuild re-evaluates a batch of flight logs and atomically replaces the
// reference database with the results. Used after catalog or threshold
// changes to bring stored records to the current version.
func (s *Service) Rebuild(ctx context.Context, flights []*model.FlightLog) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	recs := make([]model.MetricRecord, 0, len(flights))
	for _, f := range flights {
		rec, err := s.Evaluate(ctx, f, nil)
		if err != nil {
			return 0, fmt.Errorf("rebuild: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := s.store.ReplaceAll(ctx, recs); err != nil {
		return 0, fmt.Errorf("rebuild: %w", err)
	}

	metrics.UpdateReferenceRecords(len(recs))
	s.logger.Info(ctx, "reference database rebuilt",
		logger.Int("records", len(recs)),
	)
	return len(recs), nil
}

// Record returns the stored metric record for a flight id.
func (s *Service) Record(ctx context.Context, flightID string) (model.MetricRecord, error) {
	if err := s.ready(); err != nil {
		return model.MetricRecord{}, err
	}
	return s.store.Get(ctx, flightID)
}

// Count returns the number of records in the reference database.
func (s *Service) Count(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.store.Count(ctx)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":   s.started,
		"minDwellS": s.minDwellS,
	}

	if s.started {
		stats["catalogVersion"] = s.cat.Version()
		stats["metricColumns"] = s.cat.Len()
		if n, err := s.store.Count(ctx); err == nil {
			stats["referenceRecords"] = n
			metrics.UpdateReferenceRecords(n)
		}
	}

	return stats
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
