package processor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/history"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

func init() {
	log.UseNop()
}

type captureWriter struct {
	mu   sync.Mutex
	rows []models.HourlyLoad
}

func (c *captureWriter) WriteHourlyLoads(rows []models.HourlyLoad) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, rows...)
	return nil
}

var t0 = time.Date(2022, 11, 7, 13, 0, 0, 0, time.UTC)

func TestProcessorAggregatesPerHourAndZone(t *testing.T) {
	store := history.NewStore(nil)
	w := &captureWriter{}
	known := func(z string) bool { return z != "UNKNOWN" }
	p := NewProcessor(store, w, known, config.ProcessorConfig{WorkerCount: 2, QueueSize: 10})

	require.NoError(t, p.ProcessMessages([]models.MeterReading{
		{Timestamp: t0, Zone: "AEP", LoadMW: 100},
		{Timestamp: t0.Add(20 * time.Minute), Zone: "AEP", LoadMW: 50},
		{Timestamp: t0, Zone: "UNKNOWN", LoadMW: 7},
	}))
	require.NoError(t, p.ProcessMessages([]models.MeterReading{
		{Timestamp: t0.Add(time.Hour), Zone: "AEP", LoadMW: 90},
		{Timestamp: t0, Zone: "DOM", LoadMW: 30},
	}))
	p.Stop()

	snap := store.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, models.HourlyLoad{Timestamp: t0, Zone: "AEP", LoadMW: 150}, snap[0])
	assert.Equal(t, "DOM", snap[1].Zone)
	assert.Equal(t, 90.0, snap[2].LoadMW)
	assert.Len(t, w.rows, 3)
}

func TestProcessorFlushAccumulatesIntoStore(t *testing.T) {
	store := history.NewStore([]models.HourlyLoad{{Timestamp: t0, Zone: "AEP", LoadMW: 1000}})
	p := NewProcessor(store, nil, nil, config.ProcessorConfig{WorkerCount: 1, QueueSize: 1})

	require.NoError(t, p.ProcessMessages([]models.MeterReading{{Timestamp: t0, Zone: "AEP", LoadMW: 5}}))
	p.Stop()

	rows := store.Zone("AEP")
	require.Len(t, rows, 1)
	assert.Equal(t, 1005.0, rows[0].LoadMW)
}

func TestAggregatorPeriodicFlush(t *testing.T) {
	flushed := make(chan []models.HourlyLoad, 1)
	a := newHourlyAggregator(func(rows []models.HourlyLoad) { flushed <- rows }, 10*time.Millisecond)
	a.update([]models.MeterReading{{Timestamp: t0, Zone: "AEP", LoadMW: 1}})

	select {
	case rows := <-flushed:
		assert.Len(t, rows, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("aggregator never flushed")
	}
	a.stop()
}

func TestProcessMessagesAfterStop(t *testing.T) {
	store := history.NewStore(nil)
	p := NewProcessor(store, nil, nil, config.ProcessorConfig{WorkerCount: 1, QueueSize: 4})
	p.Stop()

	assert.NotPanics(t, func() {
		err := p.ProcessMessages([]models.MeterReading{{Timestamp: t0, Zone: "AEP", LoadMW: 1}})
		assert.ErrorIs(t, err, ErrStopped)
	})
	assert.NotPanics(t, p.Stop, "second stop is a no-op")
	assert.Zero(t, store.Len())
}

func TestStopWhileBatchesArrive(t *testing.T) {
	store := history.NewStore(nil)
	p := NewProcessor(store, nil, nil, config.ProcessorConfig{WorkerCount: 2, QueueSize: 1000})

	var senders sync.WaitGroup
	for i := 0; i < 8; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for j := 0; j < 100; j++ {
				err := p.ProcessMessages([]models.MeterReading{{Timestamp: t0, Zone: "AEP", LoadMW: 1}})
				if err != nil {
					assert.ErrorIs(t, err, ErrStopped)
					return
				}
			}
		}()
	}
	p.Stop()
	senders.Wait()
}
