// Package dashboard turns a dashboard query into the series, metric panel
// and colored map the client renders. Each query runs the same directed
// pipeline: memoized forecast, time selection, zone join, selection color,
// fill color.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/backend"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/cache"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/colorscale"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/history"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/metrics"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/orchestrator"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/reference"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/runlog"
)

var (
	ErrInvalidHour    = errors.New("hour must be within 0..23")
	ErrDateOutOfRange = errors.New("date outside the metered load history")
	ErrNoHistory      = errors.New("no metered load history available")
)

// Sink receives every freshly computed forecast run
type Sink interface {
	Publish(run models.ForecastRun, points []models.ForecastPoint) error
}

// SinkFunc adapts a function into a Sink
type SinkFunc func(run models.ForecastRun, points []models.ForecastPoint) error

func (f SinkFunc) Publish(run models.ForecastRun, points []models.ForecastPoint) error {
	return f(run, points)
}

// Options wires a Pipeline. Cache, Ledger and Progress are optional.
type Options struct {
	Zones        *reference.Registry
	History      *history.Store
	Backends     *backend.Registry
	Orchestrator *orchestrator.Orchestrator
	Cache        cache.Store
	Ledger       runlog.Ledger
	Sinks        []Sink
	Progress     orchestrator.Progress
	Config       config.DashboardConfig
}

// Pipeline renders dashboard views
type Pipeline struct {
	zones    *reference.Registry
	history  *history.Store
	backends *backend.Registry
	orch     *orchestrator.Orchestrator
	cache    cache.Store
	ledger   runlog.Ledger
	sinks    []Sink
	progress orchestrator.Progress
	cfg      config.DashboardConfig
	now      func() time.Time
	logger   *zap.SugaredLogger
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		zones:    opts.Zones,
		history:  opts.History,
		backends: opts.Backends,
		orch:     opts.Orchestrator,
		cache:    opts.Cache,
		ledger:   opts.Ledger,
		sinks:    opts.Sinks,
		progress: opts.Progress,
		cfg:      opts.Config,
		now:      time.Now,
		logger:   log.With("component", "dashboard"),
	}
	if p.orch == nil {
		p.orch = orchestrator.New(p.backends)
	}
	if p.cache == nil {
		p.cache = cache.Nop{}
	}
	if p.ledger == nil {
		p.ledger = runlog.Nop{}
	}
	if p.history == nil {
		p.history = history.NewStore(nil)
	}
	if p.cfg.DefaultZone == "" {
		p.cfg.DefaultZone = "AEP"
	}
	return p
}

// Zones exposes the reference registry.
func (p *Pipeline) Zones() *reference.Registry { return p.zones }

// History exposes the metered load store.
func (p *Pipeline) History() *history.Store { return p.history }

// SelectedZones applies the default-zone policy to a selection.
func (p *Pipeline) SelectedZones(zones []string) []string {
	if len(zones) == 0 {
		return []string{p.cfg.DefaultZone}
	}
	return zones
}

// Forecast runs (or recalls) the orchestrator for a request.
func (p *Pipeline) Forecast(ctx context.Context, req orchestrator.Request) (*cache.Entry, bool, error) {
	b, err := p.backends.Lookup(req.Backend)
	if err != nil {
		return nil, false, err
	}
	req.Backend = b.Name()
	if b.Conditioning() == backend.ConditionedOnHistory {
		req.Date = time.Time{}
	} else {
		req.History = nil
	}

	key := cache.Key(req.Backend, req.Zones, req.Date, req.History)
	entry, err := p.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return entry, true, nil
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		p.logger.Warnw("forecast cache lookup failed", "key", key, "error", err)
	}

	progress := p.progress
	if progress == nil {
		progress = orchestrator.ProgressFunc(func(zone string, fraction float64) {
			p.logger.Debugw("forecast progress", "backend", req.Backend, "zone", zone, "progress", fraction)
		})
	}
	res, runErr := p.orch.Run(ctx, req, progress)

	if err := p.ledger.Record(ctx, res.Run); err != nil {
		p.logger.Warnw("failed to record forecast run", "run_id", res.Run.ID, "error", err)
	}
	if runErr != nil {
		return nil, false, runErr
	}

	entry = &cache.Entry{Run: res.Run, Points: res.Points}
	if err := p.cache.Set(ctx, key, entry); err != nil {
		p.logger.Warnw("failed to cache forecast run", "key", key, "error", err)
	}
	for _, s := range p.sinks {
		if err := s.Publish(res.Run, res.Points); err != nil {
			p.logger.Warnw("forecast sink failed", "run_id", res.Run.ID, "error", err)
		}
	}
	return entry, false, nil
}

// Render computes the full view for one query.
func (p *Pipeline) Render(ctx context.Context, q Query) (*View, error) {
	if q.Hour < 0 || q.Hour > 23 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHour, q.Hour)
	}
	b, err := p.backends.Lookup(q.Backend)
	if err != nil {
		return nil, err
	}
	q.Backend = b.Name()
	q.Zones = p.SelectedZones(q.Zones)

	var v *View
	if b.Conditioning() == backend.ConditionedOnHistory {
		v, err = p.renderFromHistory(ctx, q)
	} else {
		v, err = p.renderFromDate(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	v.Panel = panel(v.Series, q.Zones[len(q.Zones)-1], v.Time, q.Hour)
	v.Summary = summarize(v.Series, q.Zones)
	for i := range v.Series {
		if pr := v.Series[i].Pressure; pr != nil {
			r := math.Round(*pr*1e4) / 1e4
			v.Series[i].Pressure = &r
		}
	}
	return v, nil
}

// renderFromDate forecasts every zone for the selected day, then narrows the
// series to the selection while the map keeps all zones.
func (p *Pipeline) renderFromDate(ctx context.Context, q Query) (*View, error) {
	day := q.Date
	if day.IsZero() {
		day = p.now()
	}
	day = startOfDay(day)

	entry, cached, err := p.Forecast(ctx, orchestrator.Request{Backend: q.Backend, Zones: p.zones.Codes(), Date: day})
	if err != nil {
		return nil, err
	}

	at := day.Add(time.Duration(q.Hour) * time.Hour)
	selected := colorscale.NewSet(q.Zones...)
	v := p.newView(q, entry, cached, day, at)
	v.Series = filterZones(entry.Points, selected)
	v.Map = p.mapPoints(entry.Points, at, selected)
	if len(entry.Points) > 0 {
		v.Status = "Forecasting on all zones finished!"
	}
	return v, nil
}

// renderFromHistory forecasts the selected zones from metered history and
// overlays the predictions on it.
func (p *Pipeline) renderFromHistory(ctx context.Context, q Query) (*View, error) {
	hist := q.History
	if len(hist) == 0 {
		hist = p.history.Snapshot()
	}
	first, last, ok := history.Range(hist)
	if !ok {
		return nil, ErrNoHistory
	}
	minDay, maxDay := startOfDay(first), startOfDay(last).AddDate(0, 0, 1)

	day := q.Date
	if day.IsZero() {
		day = last
	}
	day = startOfDay(day)
	if day.Before(minDay) || day.After(maxDay) {
		return nil, fmt.Errorf("%w: %s not within %s..%s", ErrDateOutOfRange,
			day.Format(backend.DateLayout), minDay.Format(backend.DateLayout), maxDay.Format(backend.DateLayout))
	}

	entry, cached, err := p.Forecast(ctx, orchestrator.Request{Backend: q.Backend, Zones: q.Zones, History: hist})
	if err != nil {
		return nil, err
	}

	observed := make([]models.ForecastPoint, len(hist))
	for i, h := range hist {
		observed[i] = h.Point()
	}

	at := day.Add(time.Duration(q.Hour) * time.Hour)
	selected := colorscale.NewSet(q.Zones...)
	v := p.newView(q, entry, cached, day, at)
	v.DateRange = &DateRange{Min: minDay.Format(backend.DateLayout), Max: maxDay.Format(backend.DateLayout)}
	v.ForecastStart = &maxDay
	v.Series = append(filterZones(observed, selected), entry.Points...)
	v.Map = p.mapPoints(append(observed, entry.Points...), at, selected)
	if len(entry.Points) > 0 {
		v.Status = "Forecasting on " + q.Zones[len(q.Zones)-1] + " finished!"
	}
	return v, nil
}

func (p *Pipeline) newView(q Query, entry *cache.Entry, cached bool, day, at time.Time) *View {
	return &View{
		RunID:   entry.Run.ID,
		Backend: q.Backend,
		Zones:   q.Zones,
		Date:    day.Format(backend.DateLayout),
		Hour:    q.Hour,
		Time:    at,
		Cached:  cached,
	}
}

// mapPoints selects the rows at one instant, joins them with the zone table
// and colors them. Observed rows win over predicted rows of the same zone.
func (p *Pipeline) mapPoints(rows []models.ForecastPoint, at time.Time, selected colorscale.Set) []models.MapPoint {
	byZone := make(map[string]int)
	var out []models.MapPoint
	for _, r := range rows {
		if !r.Timestamp.Equal(at) {
			continue
		}
		z, ok := p.zones.Zone(r.Zone)
		if !ok {
			continue
		}
		mp := models.MapPoint{
			ForecastPoint: r,
			Latitude:      z.Latitude,
			Longitude:     z.Longitude,
			FullName:      z.FullName,
			HistPeakMW:    z.HistPeakMW,
		}
		if i, seen := byZone[r.Zone]; seen {
			if out[i].Source == models.SourceObserved {
				continue
			}
			out[i] = mp
			continue
		}
		byZone[r.Zone] = len(out)
		out = append(out, mp)
	}

	colorscale.Apply(out, selected)
	for _, mp := range out {
		if mp.FillColor == nil {
			metrics.UndefinedRatios.Inc()
		}
	}
	return out
}

func filterZones(rows []models.ForecastPoint, zones colorscale.Set) []models.ForecastPoint {
	out := make([]models.ForecastPoint, 0, len(rows))
	for _, r := range rows {
		if zones.Has(r.Zone) {
			out = append(out, r)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
