package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/backend"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/cache"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/colorscale"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/history"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/reference"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/runlog"
)

func init() {
	log.UseNop()
}

var day = time.Date(2022, 11, 8, 0, 0, 0, 0, time.UTC)

func zones() *reference.Registry {
	return reference.NewRegistry([]models.ZoneRecord{
		{Zone: "AEP", Latitude: 39.9, Longitude: -82.9, FullName: "American Electric Power", HistPeakMW: 1000},
		{Zone: "DOM", Latitude: 37.5, Longitude: -77.4, FullName: "Dominion", HistPeakMW: 2000},
		{Zone: "RECO", Latitude: 41.1, Longitude: -74.1, FullName: "Rockland Electric", HistPeakMW: 0},
	})
}

func f(v float64) *float64 { return &v }

// hourly answers 24 rows for the requested day: load = 100*hour, temp = hour
func hourly(calls *int) backend.Func {
	return backend.Func{BackendName: backend.XGBoostName, Cond: backend.ConditionedOnDate, Fn: func(ctx context.Context, zone string, in backend.Input) ([]models.ForecastPoint, error) {
		*calls++
		out := make([]models.ForecastPoint, 24)
		for h := range out {
			out[h] = models.ForecastPoint{
				Timestamp: in.Date.Add(time.Duration(h) * time.Hour),
				LoadMW:    100 * float64(h),
				Temp:      f(float64(h)),
				Pressure:  f(1013.123456),
				Source:    models.SourcePredicted,
			}
		}
		return out, nil
	}}
}

// nextDay answers 24 predicted rows for the day after the last history row
func nextDay(calls *int) backend.Func {
	return backend.Func{BackendName: backend.NeuralProphetName, Cond: backend.ConditionedOnHistory, Fn: func(ctx context.Context, zone string, in backend.Input) ([]models.ForecastPoint, error) {
		*calls++
		_, last, _ := history.Range(in.History)
		start := last.Truncate(24*time.Hour).AddDate(0, 0, 1)
		out := make([]models.ForecastPoint, 24)
		for h := range out {
			out[h] = models.ForecastPoint{Timestamp: start.Add(time.Duration(h) * time.Hour), LoadMW: 500, Source: models.SourcePredicted}
		}
		return out, nil
	}}
}

func metered() []models.HourlyLoad {
	var rows []models.HourlyLoad
	for h := 0; h < 48; h++ {
		ts := day.AddDate(0, 0, -2).Add(time.Duration(h) * time.Hour)
		rows = append(rows,
			models.HourlyLoad{Timestamp: ts, Zone: "AEP", LoadMW: 400},
			models.HourlyLoad{Timestamp: ts, Zone: "DOM", LoadMW: 1500},
		)
	}
	return rows
}

func newPipeline(t *testing.T, backends ...backend.Backend) (*Pipeline, *runlog.Memory) {
	t.Helper()
	ledger := runlog.NewMemory(10)
	p := New(Options{
		Zones:    zones(),
		History:  history.NewStore(metered()),
		Backends: backend.NewRegistry(backends...),
		Cache:    cache.NewMemory(time.Hour),
		Ledger:   ledger,
		Config:   config.DashboardConfig{DefaultZone: "AEP", DefaultHour: 12},
	})
	return p, ledger
}

func TestRenderFromDate(t *testing.T) {
	var calls int
	p, ledger := newPipeline(t, hourly(&calls))

	v, err := p.Render(context.Background(), Query{Backend: "xgboost", Zones: []string{"DOM"}, Date: day, Hour: 10})
	require.NoError(t, err)

	assert.Equal(t, backend.XGBoostName, v.Backend)
	assert.Equal(t, "2022-11-08", v.Date)
	assert.Equal(t, day.Add(10*time.Hour), v.Time)
	assert.Equal(t, "Forecasting on all zones finished!", v.Status)
	assert.False(t, v.Cached)
	assert.Equal(t, 3, calls, "every reference zone is forecast")

	require.Len(t, v.Series, 24)
	for _, s := range v.Series {
		assert.Equal(t, "DOM", s.Zone)
		assert.Equal(t, 1013.1235, *s.Pressure)
	}

	require.Len(t, v.Map, 3)
	byZone := map[string]models.MapPoint{}
	for _, mp := range v.Map {
		assert.Equal(t, v.Time, mp.Timestamp)
		byZone[mp.Zone] = mp
	}
	assert.Equal(t, colorscale.Selected, byZone["DOM"].SelectedColor)
	assert.Equal(t, colorscale.Unselected, byZone["AEP"].SelectedColor)
	require.NotNil(t, byZone["DOM"].FillColor)
	assert.Equal(t, colorscale.Fill(0.5), *byZone["DOM"].FillColor)
	assert.Equal(t, colorscale.High, *byZone["AEP"].FillColor)
	assert.Nil(t, byZone["RECO"].FillColor, "zero peak leaves the zone uncolored")
	assert.Nil(t, byZone["RECO"].Ratio)

	assert.Equal(t, "DOM", v.Panel.Zone)
	assert.Equal(t, 1000.0, *v.Panel.LoadMW)
	assert.Equal(t, 100.0, *v.Panel.LoadDeltaMW)
	assert.Equal(t, 1.0, *v.Panel.TempDelta)

	require.Len(t, v.Summary, 1)
	assert.Equal(t, 24, v.Summary[0].Points)
	assert.Equal(t, 2300.0, v.Summary[0].MaxMW)
	assert.Equal(t, 0.0, v.Summary[0].MinMW)
	assert.InDelta(t, 1150.0, v.Summary[0].MeanMW, 1e-9)

	runs, err := ledger.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunSucceeded, runs[0].Status)
}

func TestRenderMemoizesForecast(t *testing.T) {
	var calls int
	p, _ := newPipeline(t, hourly(&calls))

	q := Query{Backend: backend.XGBoostName, Zones: []string{"AEP"}, Date: day, Hour: 3}
	_, err := p.Render(context.Background(), q)
	require.NoError(t, err)

	// another hour and selection on the same day reuses the run
	q.Hour, q.Zones = 7, []string{"DOM", "AEP"}
	v, err := p.Render(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, v.Cached)
	assert.Equal(t, 3, calls)

	q.Date = day.AddDate(0, 0, 1)
	_, err = p.Render(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 6, calls)
}

func TestRenderDefaultsZone(t *testing.T) {
	var calls int
	p, _ := newPipeline(t, hourly(&calls))

	v, err := p.Render(context.Background(), Query{Backend: backend.XGBoostName, Date: day, Hour: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"AEP"}, v.Zones)
	assert.Equal(t, "AEP", v.Panel.Zone)
	assert.Nil(t, v.Panel.LoadDeltaMW, "no delta at hour 0")
	assert.Nil(t, v.Panel.TempDelta)
	require.NotNil(t, v.Panel.LoadMW)
	assert.Equal(t, 0.0, *v.Panel.LoadMW)
}

func TestRenderRejectsInput(t *testing.T) {
	var calls int
	p, _ := newPipeline(t, hourly(&calls), nextDay(&calls))

	tests := []struct {
		name string
		q    Query
		want error
	}{
		{"hour too large", Query{Backend: backend.XGBoostName, Hour: 24}, ErrInvalidHour},
		{"negative hour", Query{Backend: backend.XGBoostName, Hour: -1}, ErrInvalidHour},
		{"unknown backend", Query{Backend: "prophet"}, backend.ErrNotImplemented},
		{"date before history", Query{Backend: backend.NeuralProphetName, Date: day.AddDate(0, 0, -5)}, ErrDateOutOfRange},
		{"date after forecast day", Query{Backend: backend.NeuralProphetName, Date: day.AddDate(0, 0, 1)}, ErrDateOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Render(context.Background(), tt.q)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Zero(t, calls)
}

func TestRenderFromHistory(t *testing.T) {
	var calls int
	p, _ := newPipeline(t, nextDay(&calls))

	v, err := p.Render(context.Background(), Query{Backend: "NeuralProphet", Zones: []string{"AEP"}, Date: day, Hour: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "only selected zones are forecast")
	assert.Equal(t, "Forecasting on AEP finished!", v.Status)
	require.NotNil(t, v.DateRange)
	assert.Equal(t, DateRange{Min: "2022-11-06", Max: "2022-11-08"}, *v.DateRange)
	require.NotNil(t, v.ForecastStart)
	assert.Equal(t, day, *v.ForecastStart)

	// 48 observed AEP hours then 24 predicted
	require.Len(t, v.Series, 72)
	assert.Equal(t, models.SourceObserved, v.Series[0].Source)
	assert.Equal(t, models.SourcePredicted, v.Series[71].Source)

	// forecast day: only AEP has a prediction, DOM has no row at this instant
	require.Len(t, v.Map, 1)
	assert.Equal(t, "AEP", v.Map[0].Zone)
	assert.Equal(t, 500.0, v.Map[0].LoadMW)
	assert.Equal(t, 500.0, *v.Panel.LoadMW)
	assert.Equal(t, 0.0, *v.Panel.LoadDeltaMW)
}

func TestRenderFromHistoryMapPrefersObserved(t *testing.T) {
	var calls int
	p, _ := newPipeline(t, nextDay(&calls))

	v, err := p.Render(context.Background(), Query{Backend: backend.NeuralProphetName, Zones: []string{"DOM"}, Date: day.AddDate(0, 0, -1), Hour: 2})
	require.NoError(t, err)

	require.Len(t, v.Map, 2)
	for _, mp := range v.Map {
		assert.Equal(t, models.SourceObserved, mp.Source)
	}
}

func TestRenderUploadedHistory(t *testing.T) {
	var calls int
	p, _ := newPipeline(t, nextDay(&calls))

	upload := []models.HourlyLoad{{Timestamp: day.AddDate(0, 1, 0), Zone: "AEP", LoadMW: 10}}
	v, err := p.Render(context.Background(), Query{Backend: backend.NeuralProphetName, History: upload})
	require.NoError(t, err)
	assert.Equal(t, "2022-12-08", v.Date, "date defaults to the last history day")
	assert.Equal(t, DateRange{Min: "2022-12-08", Max: "2022-12-09"}, *v.DateRange)
}

func TestRenderWithoutHistory(t *testing.T) {
	var calls int
	p := New(Options{Zones: zones(), Backends: backend.NewRegistry(nextDay(&calls))})
	_, err := p.Render(context.Background(), Query{Backend: backend.NeuralProphetName})
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestForecastFailureIsRecorded(t *testing.T) {
	boom := errors.New("model server down")
	failing := backend.Func{BackendName: backend.XGBoostName, Cond: backend.ConditionedOnDate, Fn: func(context.Context, string, backend.Input) ([]models.ForecastPoint, error) {
		return nil, boom
	}}
	var published int
	ledger := runlog.NewMemory(10)
	p := New(Options{
		Zones:    zones(),
		Backends: backend.NewRegistry(failing),
		Ledger:   ledger,
		Sinks: []Sink{SinkFunc(func(models.ForecastRun, []models.ForecastPoint) error {
			published++
			return nil
		})},
	})

	_, err := p.Render(context.Background(), Query{Backend: backend.XGBoostName, Date: day})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, published)

	runs, err := ledger.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunFailed, runs[0].Status)
	assert.Equal(t, "AEP", runs[0].FailedZone)
}

func TestSinksSeeFreshRunsOnly(t *testing.T) {
	var calls, published int
	p := New(Options{
		Zones:    zones(),
		Backends: backend.NewRegistry(hourly(&calls)),
		Cache:    cache.NewMemory(time.Hour),
		Sinks: []Sink{SinkFunc(func(run models.ForecastRun, points []models.ForecastPoint) error {
			published++
			assert.Len(t, points, 72)
			return errors.New("sink unavailable")
		})},
	})

	for i := 0; i < 2; i++ {
		_, err := p.Render(context.Background(), Query{Backend: backend.XGBoostName, Date: day})
		require.NoError(t, err, "sink errors do not fail the view")
	}
	assert.Equal(t, 1, published)
}
