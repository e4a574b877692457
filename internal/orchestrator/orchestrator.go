// Package orchestrator runs a prediction backend across zones and merges
// the per-zone results into one zone-tagged table.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/backend"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/metrics"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// ErrNoZones is returned when a run is requested without zones. Callers are
// expected to substitute their default zone first.
var ErrNoZones = errors.New("orchestrator: no zones requested")

// ZoneError reports the zone whose prediction aborted a run.
type ZoneError struct {
	Zone string
	Err  error
}

func (e *ZoneError) Error() string {
	return fmt.Sprintf("forecast for zone %s: %v", e.Zone, e.Err)
}

func (e *ZoneError) Unwrap() error { return e.Err }

// Progress receives the finished fraction of a run after each zone.
type Progress interface {
	Progress(zone string, fraction float64)
}

// ProgressFunc adapts a function into a Progress.
type ProgressFunc func(zone string, fraction float64)

func (f ProgressFunc) Progress(zone string, fraction float64) { f(zone, fraction) }

// Request describes one run. History feeds history-conditioned backends, Date
// feeds date-conditioned ones.
type Request struct {
	Backend string
	Zones   []string
	History []models.HourlyLoad
	Date    time.Time
}

// Result is the merged table plus the run's audit record.
type Result struct {
	Run    models.ForecastRun
	Points []models.ForecastPoint
}

// Orchestrator runs backends resolved from a registry
type Orchestrator struct {
	backends *backend.Registry
	logger   *zap.SugaredLogger
}

// New creates an orchestrator.
func New(backends *backend.Registry) *Orchestrator {
	return &Orchestrator{
		backends: backends,
		logger:   log.With("component", "orchestrator"),
	}
}

// Run predicts every zone in order and concatenates the results. A failing
// zone aborts the run; the returned Result then carries only the failed run
// record. progress may be nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, progress Progress) (Result, error) {
	run := models.ForecastRun{
		ID:        uuid.NewString(),
		Backend:   req.Backend,
		Zones:     append([]string(nil), req.Zones...),
		StartedAt: time.Now(),
	}
	if !req.Date.IsZero() {
		run.Date = req.Date.Format(backend.DateLayout)
	}
	logger := o.logger.With("run_id", run.ID, "backend", req.Backend)
	label := "unknown"

	fail := func(zone string, err error) (Result, error) {
		run.Status = models.RunFailed
		run.FailedZone = zone
		run.Error = err.Error()
		run.Duration = time.Since(run.StartedAt)
		metrics.ForecastRuns.WithLabelValues(label, run.Status).Inc()
		logger.Errorw("forecast run failed", "zone", zone, "error", err)
		return Result{Run: run}, err
	}

	b, err := o.backends.Lookup(req.Backend)
	if err != nil {
		return fail("", err)
	}
	label = b.Name()
	run.Backend = b.Name()
	if len(req.Zones) == 0 {
		return fail("", ErrNoZones)
	}

	in := backend.Input{Date: req.Date}
	if b.Conditioning() == backend.ConditionedOnHistory {
		in = backend.Input{History: req.History}
	}

	gauge := metrics.ForecastProgress.WithLabelValues(b.Name())
	gauge.Set(0)

	var (
		points []models.ForecastPoint
		pct    float64
		step   = 1 / float64(len(req.Zones))
	)
	for i, zone := range req.Zones {
		if err := ctx.Err(); err != nil {
			return fail(zone, err)
		}

		start := time.Now()
		p, err := b.Predict(ctx, zone, in)
		metrics.ZonePredictSeconds.WithLabelValues(b.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return fail(zone, &ZoneError{Zone: zone, Err: err})
		}
		for j := range p {
			p[j].Zone = zone
		}
		points = append(points, p...)

		pct += step
		if pct >= 1 || i == len(req.Zones)-1 {
			pct = 1
		}
		gauge.Set(pct)
		if progress != nil {
			progress.Progress(zone, pct)
		}
		logger.Debugw("zone forecast finished", "zone", zone, "rows", len(p), "progress", pct, "elapsed", time.Since(start))
	}

	run.Status = models.RunSucceeded
	run.Rows = len(points)
	run.Duration = time.Since(run.StartedAt)
	metrics.ForecastRuns.WithLabelValues(b.Name(), run.Status).Inc()
	logger.Infow("forecast run finished", "zones", len(req.Zones), "rows", run.Rows, "duration", run.Duration)

	return Result{Run: run, Points: points}, nil
}
