package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

var t0 = time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC)

func TestStoreAddSumsPerKey(t *testing.T) {
	s := NewStore([]models.HourlyLoad{
		{Timestamp: t0, Zone: "AEP", LoadMW: 100},
		{Timestamp: t0, Zone: "AEP", LoadMW: 50},
	})
	require.Equal(t, 1, s.Len())

	v := s.Version()
	s.Add([]models.HourlyLoad{
		{Timestamp: t0, Zone: "AEP", LoadMW: 25},
		{Timestamp: t0.Add(time.Hour), Zone: "AEP", LoadMW: 10},
		{Timestamp: t0, Zone: "DOM", LoadMW: 7},
	})
	assert.Greater(t, s.Version(), v)

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "AEP", snap[0].Zone)
	assert.Equal(t, 175.0, snap[0].LoadMW)
	assert.Equal(t, "DOM", snap[1].Zone)
	assert.True(t, snap[2].Timestamp.Equal(t0.Add(time.Hour)))
}

func TestStoreZoneAndRange(t *testing.T) {
	s := NewStore(nil)
	_, _, ok := s.Range()
	assert.False(t, ok)

	s.Replace([]models.HourlyLoad{
		{Timestamp: t0.Add(2 * time.Hour), Zone: "AEP", LoadMW: 3},
		{Timestamp: t0, Zone: "AEP", LoadMW: 1},
		{Timestamp: t0.Add(time.Hour), Zone: "DOM", LoadMW: 2},
	})

	rows := s.Zone("AEP")
	require.Len(t, rows, 2)
	assert.Equal(t, 1.0, rows[0].LoadMW)
	assert.Equal(t, 3.0, rows[1].LoadMW)

	first, last, ok := s.Range()
	require.True(t, ok)
	assert.True(t, first.Equal(t0))
	assert.True(t, last.Equal(t0.Add(2*time.Hour)))

	f2, l2, ok := Range(s.Snapshot())
	require.True(t, ok)
	assert.True(t, f2.Equal(first))
	assert.True(t, l2.Equal(last))
}

func TestStoreConcurrentAdd(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Add([]models.HourlyLoad{{Timestamp: t0, Zone: "AEP", LoadMW: 1}})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800.0, s.Zone("AEP")[0].LoadMW)
}
