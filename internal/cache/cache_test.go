package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

var t0 = time.Date(2022, 11, 7, 0, 0, 0, 0, time.UTC)

func TestKey(t *testing.T) {
	hist := []models.HourlyLoad{{Timestamp: t0, Zone: "AEP", LoadMW: 1}}

	a := Key("XGBoost", []string{"AEP", "DOM"}, t0, nil)
	assert.Equal(t, "xgboost|AEP,DOM|2022-11-07|", a)
	assert.NotEqual(t, a, Key("XGBoost", []string{"DOM", "AEP"}, t0, nil))
	assert.NotEqual(t, a, Key("XGBoost", []string{"AEP", "DOM"}, t0.AddDate(0, 0, 1), nil))

	h1 := Key("neuralprophet", []string{"AEP"}, time.Time{}, hist)
	hist2 := []models.HourlyLoad{{Timestamp: t0, Zone: "AEP", LoadMW: 2}}
	assert.NotEqual(t, h1, Key("neuralprophet", []string{"AEP"}, time.Time{}, hist2))
	assert.Equal(t, h1, Key("neuralprophet", []string{"AEP"}, time.Time{}, append([]models.HourlyLoad(nil), hist...)))
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := t0
	m.now = func() time.Time { return now }

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	e := &Entry{Run: models.ForecastRun{ID: "r1"}}
	require.NoError(t, m.Set(ctx, "k", e))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.Run.ID)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemorySweepsOnSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := t0
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "old", &Entry{}))
	now = now.Add(time.Hour)
	require.NoError(t, m.Set(ctx, "new", &Entry{}))
	assert.Equal(t, 1, m.Len())
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	require.NoError(t, s.Set(context.Background(), "k", &Entry{}))
	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrMiss)
}
