package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/backend"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

func init() {
	log.UseNop()
}

var day = time.Date(2022, 11, 8, 0, 0, 0, 0, time.UTC)

// twoHours answers two rows per zone, tagging them with a wrong zone so the
// orchestrator's zone injection is visible
func twoHours(name string, cond backend.Conditioning, calls *[]string) backend.Func {
	return backend.Func{BackendName: name, Cond: cond, Fn: func(ctx context.Context, zone string, in backend.Input) ([]models.ForecastPoint, error) {
		*calls = append(*calls, zone)
		return []models.ForecastPoint{
			{Timestamp: day, Zone: "?", LoadMW: 100, Source: models.SourcePredicted, Extra: map[string]float64{"yhat_lower": 90}},
			{Timestamp: day.Add(time.Hour), Zone: "?", LoadMW: 110, Source: models.SourcePredicted},
		}, nil
	}}
}

type recorder struct {
	zones     []string
	fractions []float64
}

func (r *recorder) Progress(zone string, fraction float64) {
	r.zones = append(r.zones, zone)
	r.fractions = append(r.fractions, fraction)
}

func TestRunConcatenatesZones(t *testing.T) {
	var calls []string
	o := New(backend.NewRegistry(twoHours("stub", backend.ConditionedOnDate, &calls)))
	rec := &recorder{}

	res, err := o.Run(context.Background(), Request{Backend: "stub", Zones: []string{"A", "B", "C"}, Date: day}, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, calls)
	require.Len(t, res.Points, 6)
	for i, zone := range []string{"A", "A", "B", "B", "C", "C"} {
		assert.Equal(t, zone, res.Points[i].Zone)
	}
	// every column of the per-zone tables survives
	want := map[string]float64{"yhat_lower": 90}
	for _, i := range []int{0, 2, 4} {
		if diff := cmp.Diff(want, res.Points[i].Extra); diff != "" {
			t.Fatalf("extra columns mismatch at %d (-want +got):\n%s", i, diff)
		}
	}

	assert.Equal(t, []string{"A", "B", "C"}, rec.zones)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 2.0 / 3, 1}, rec.fractions, 1e-12)
	assert.Equal(t, 1.0, rec.fractions[2])

	assert.Equal(t, models.RunSucceeded, res.Run.Status)
	assert.Equal(t, 6, res.Run.Rows)
	assert.Equal(t, "2022-11-08", res.Run.Date)
	assert.NotEmpty(t, res.Run.ID)
}

func TestRunProgressEndsAtOne(t *testing.T) {
	for _, n := range []int{1, 3, 7, 10, 49} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			var calls []string
			o := New(backend.NewRegistry(twoHours("stub", backend.ConditionedOnDate, &calls)))
			zones := make([]string, n)
			for i := range zones {
				zones[i] = fmt.Sprintf("Z%d", i)
			}
			rec := &recorder{}
			_, err := o.Run(context.Background(), Request{Backend: "stub", Zones: zones, Date: day}, rec)
			require.NoError(t, err)

			require.Len(t, rec.fractions, n)
			assert.Equal(t, 1.0, rec.fractions[n-1])
			for i := 1; i < n; i++ {
				assert.GreaterOrEqual(t, rec.fractions[i], rec.fractions[i-1])
				assert.LessOrEqual(t, rec.fractions[i], 1.0)
			}
		})
	}
}

func TestRunDefaultZone(t *testing.T) {
	var calls []string
	o := New(backend.NewRegistry(twoHours("stub", backend.ConditionedOnDate, &calls)))

	res, err := o.Run(context.Background(), Request{Backend: "stub", Zones: []string{"AEP"}, Date: day}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Points, 2)
	assert.Equal(t, []string{"AEP"}, calls)
}

func TestRunRejectsEmptyZones(t *testing.T) {
	var calls []string
	o := New(backend.NewRegistry(twoHours("stub", backend.ConditionedOnDate, &calls)))

	res, err := o.Run(context.Background(), Request{Backend: "stub", Date: day}, nil)
	assert.ErrorIs(t, err, ErrNoZones)
	assert.Empty(t, calls)
	assert.Equal(t, models.RunFailed, res.Run.Status)
}

func TestRunUnknownBackend(t *testing.T) {
	o := New(backend.NewRegistry())

	res, err := o.Run(context.Background(), Request{Backend: "prophet", Zones: []string{"AEP"}}, nil)
	assert.ErrorIs(t, err, backend.ErrNotImplemented)
	assert.Nil(t, res.Points)
	assert.Equal(t, models.RunFailed, res.Run.Status)
}

func TestRunFailsFast(t *testing.T) {
	boom := errors.New("model not trained")
	var calls []string
	b := backend.Func{BackendName: "stub", Cond: backend.ConditionedOnDate, Fn: func(ctx context.Context, zone string, in backend.Input) ([]models.ForecastPoint, error) {
		calls = append(calls, zone)
		if zone == "B" {
			return nil, boom
		}
		return []models.ForecastPoint{{Timestamp: day, LoadMW: 1}}, nil
	}}
	rec := &recorder{}

	res, err := New(backend.NewRegistry(b)).Run(context.Background(), Request{Backend: "stub", Zones: []string{"A", "B", "C"}, Date: day}, rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var zerr *ZoneError
	require.True(t, errors.As(err, &zerr))
	assert.Equal(t, "B", zerr.Zone)

	assert.Nil(t, res.Points)
	assert.Equal(t, "B", res.Run.FailedZone)
	assert.Equal(t, []string{"A", "B"}, calls)
	assert.Equal(t, []string{"A"}, rec.zones)
}

func TestRunRoutesInputByConditioning(t *testing.T) {
	hist := []models.HourlyLoad{{Timestamp: day, Zone: "AEP", LoadMW: 1}}

	var got backend.Input
	capture := func(cond backend.Conditioning) backend.Func {
		return backend.Func{BackendName: "cap-" + cond.String(), Cond: cond, Fn: func(ctx context.Context, zone string, in backend.Input) ([]models.ForecastPoint, error) {
			got = in
			return nil, nil
		}}
	}
	o := New(backend.NewRegistry(capture(backend.ConditionedOnHistory), capture(backend.ConditionedOnDate)))

	_, err := o.Run(context.Background(), Request{Backend: "cap-history", Zones: []string{"AEP"}, History: hist, Date: day}, nil)
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
	assert.True(t, got.Date.IsZero())

	_, err = o.Run(context.Background(), Request{Backend: "cap-date", Zones: []string{"AEP"}, History: hist, Date: day}, nil)
	require.NoError(t, err)
	assert.Nil(t, got.History)
	assert.True(t, got.Date.Equal(day))
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	b := backend.Func{BackendName: "stub", Cond: backend.ConditionedOnDate, Fn: func(ctx context.Context, zone string, in backend.Input) ([]models.ForecastPoint, error) {
		calls = append(calls, zone)
		cancel()
		return nil, nil
	}}

	_, err := New(backend.NewRegistry(b)).Run(ctx, Request{Backend: "stub", Zones: []string{"A", "B"}, Date: day}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A"}, calls)
}
