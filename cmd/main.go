package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/yaml.v3"

	"github.com/halverson/dockeval/internal/adapters/refdb"
	app "github.com/halverson/dockeval/internal/app"
	"github.com/halverson/dockeval/internal/config"
	"github.com/halverson/dockeval/internal/domain/catalog"
	"github.com/halverson/dockeval/internal/domain/grade"
	"github.com/halverson/dockeval/internal/domain/model"
	"github.com/halverson/dockeval/internal/domain/segment"
	"github.com/halverson/dockeval/pkg/logger"
	"github.com/halverson/dockeval/pkg/metrics"
)

// Metrics server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// gradePolicy is the on-disk grading configuration.
type gradePolicy struct {
	Method            grade.Method               `yaml:"method"`
	IgnoreVersionSkew bool                       `yaml:"ignore_version_skew"`
	Criteria          map[string]grade.Criterion `yaml:"criteria"`
}

// debrief is what one evaluated flight prints as.
type debrief struct {
	Record model.MetricRecord `json:"record"`
	Report *grade.Report      `json:"report,omitempty"`
}

func main() {
	// Disable default Go metrics collection; the custom registry carries
	// only the pipeline metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	criteriaPath := flag.String("criteria", "", "grading policy YAML; grading is skipped when empty")
	rebuild := flag.Bool("rebuild", false, "re-evaluate all given flight logs and replace the reference database")
	noStore := flag.Bool("no-store", false, "evaluate and grade without appending to the reference database")
	apprStart := flag.Float64("appr-start", math.NaN(), "manual approach start override, seconds")
	faStart := flag.Float64("fa-start", math.NaN(), "manual final approach start override, seconds")
	timeDock := flag.Float64("dock", math.NaN(), "manual docking time override, seconds (must be a sample time)")
	flag.Parse()

	if flag.NArg() == 0 {
		os.Stderr.WriteString("usage: dockeval [flags] flight-log.json...\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(*criteriaPath, *rebuild, *noStore, *apprStart, *faStart, *timeDock, flag.Args()); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(criteriaPath string, rebuild, noStore bool, apprStart, faStart, timeDock float64, paths []string) error {
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open reference store: %w", err)
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithCatalog(cat),
		app.WithStore(store),
		app.WithFinalApproachEnvelope(cfg.FinalApproachRangeM, cfg.FinalApproachMaxClosing),
		app.WithApproachCorridor(cfg.ApproachRangeM, cfg.ApproachMaxClosing),
		app.WithMinDwell(cfg.MinDwellS),
		app.WithConeHalfAngle(cfg.ConeHalfAngleDeg),
		app.WithIdealVelocityProfile(cfg.IdealVelocityDivisor, cfg.IdealVelocityFloor),
		app.WithPSDMinSamples(cfg.PSDMinSamples),
		app.WithDutyCycleMaxDt(cfg.DutyCycleMaxDtS),
		app.WithWeightTolerance(cfg.WeightTolerance),
		app.WithDefaultMethod(methodFromConfig(cfg.GradeMethod)),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	// Optional Prometheus listener for long debrief sessions.
	if cfg.Addr != "" {
		startMetricsServer(ctx, log, cfg.Addr)
	}

	if rebuild {
		return runRebuild(ctx, svc, paths)
	}

	var policy *gradePolicy
	if criteriaPath != "" {
		policy, err = loadPolicy(criteriaPath)
		if err != nil {
			return fmt.Errorf("load grading policy: %w", err)
		}
	}

	ov := overridesFromFlags(apprStart, faStart, timeDock)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, path := range paths {
		flight, err := loadFlight(path)
		if err != nil {
			return fmt.Errorf("load flight log %s: %w", path, err)
		}

		var rec model.MetricRecord
		if noStore {
			rec, err = svc.Evaluate(ctx, flight, ov)
		} else {
			rec, err = svc.EvaluateAndStore(ctx, flight, ov)
		}
		if err != nil {
			return err
		}

		out := debrief{Record: rec}
		if policy != nil {
			report, err := svc.Grade(ctx, rec, grade.Config{
				Criteria:          policy.Criteria,
				Method:            policy.Method,
				IgnoreVersionSkew: policy.IgnoreVersionSkew,
			})
			if err != nil {
				return err
			}
			out.Report = &report
		}

		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("write debrief: %w", err)
		}
	}

	return nil
}

func runRebuild(ctx context.Context, svc *app.Service, paths []string) error {
	flights := make([]*model.FlightLog, 0, len(paths))
	for _, path := range paths {
		flight, err := loadFlight(path)
		if err != nil {
			return fmt.Errorf("load flight log %s: %w", path, err)
		}
		flights = append(flights, flight)
	}
	n, err := svc.Rebuild(ctx, flights)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "rebuilt reference database with %d records\n", n)
	return nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.CatalogPath)
}

func openStore(cfg *config.Config) (refdb.Store, error) {
	if cfg.DBDriver == "sqlite" {
		return refdb.NewSQLiteStore(cfg.DBPath)
	}
	return refdb.NewMemoryStore(), nil
}

func methodFromConfig(name string) grade.Method {
	if name == "weighted_product" {
		return grade.WeightedProduct
	}
	return grade.WeightedSum
}

func loadPolicy(path string) (*gradePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p gradePolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func loadFlight(path string) (*model.FlightLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var flight model.FlightLog
	if err := json.Unmarshal(data, &flight); err != nil {
		return nil, err
	}
	return &flight, nil
}

func overridesFromFlags(apprStart, faStart, timeDock float64) *segment.Overrides {
	ov := &segment.Overrides{}
	set := false
	if !math.IsNaN(apprStart) {
		ov.ApprStart, set = &apprStart, true
	}
	if !math.IsNaN(faStart) {
		ov.FAStart, set = &faStart, true
	}
	if !math.IsNaN(timeDock) {
		ov.TimeDock, set = &timeDock, true
	}
	if !set {
		return nil
	}
	return ov
}

func startMetricsServer(ctx context.Context, log logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting metrics server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "metrics server failed", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
