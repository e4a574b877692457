package processor

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/history"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/metrics"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/reference"
)

// ErrStopped is returned for readings handed to a stopped processor
var ErrStopped = errors.New("processor: stopped")

// LoadWriter receives flushed hourly loads, e.g. the InfluxDB client
type LoadWriter interface {
	WriteHourlyLoads(rows []models.HourlyLoad) error
}

// Processor aggregates incoming metered load readings into the history store
type Processor struct {
	store      *history.Store
	writer     LoadWriter
	known      func(zone string) bool
	config     config.ProcessorConfig
	queue      chan []models.MeterReading
	wg         sync.WaitGroup
	stateMu    sync.RWMutex
	stopped    bool
	aggregator *hourlyAggregator
	logger     *zap.SugaredLogger
}

// NewProcessor creates a new processor and starts its workers. writer may be
// nil; known filters zones and may be nil to keep every zone.
func NewProcessor(store *history.Store, writer LoadWriter, known func(string) bool, cfg config.ProcessorConfig) *Processor {
	p := &Processor{
		store:  store,
		writer: writer,
		known:  known,
		config: cfg,
		queue:  make(chan []models.MeterReading, cfg.QueueSize),
		logger: log.With("component", "processor"),
	}
	p.aggregator = newHourlyAggregator(p.flushRows, cfg.FlushInterval)

	p.wg.Add(cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		go p.worker(i)
	}

	return p
}

// ProcessMessages queues a batch of readings. It fails with ErrStopped once
// Stop has been called.
func (p *Processor) ProcessMessages(readings []models.MeterReading) error {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	if p.stopped {
		metrics.IngestedReadings.WithLabelValues("dropped").Add(float64(len(readings)))
		return ErrStopped
	}

	// Copy so the caller can reuse its buffer
	batch := make([]models.MeterReading, len(readings))
	copy(batch, readings)

	select {
	case p.queue <- batch:
		return nil
	default:
		// Queue is full, log and drop messages
		metrics.IngestedReadings.WithLabelValues("dropped").Add(float64(len(readings)))
		p.logger.Warnw("processing queue is full, dropping readings", "count", len(readings))
		return nil
	}
}

// worker folds queued batches into the aggregator
func (p *Processor) worker(id int) {
	defer p.wg.Done()

	for batch := range p.queue {
		accepted := batch[:0]
		for _, r := range batch {
			if p.known != nil && !p.known(r.Zone) {
				continue
			}
			accepted = append(accepted, r)
		}
		metrics.IngestedReadings.WithLabelValues("accepted").Add(float64(len(accepted)))
		metrics.IngestedReadings.WithLabelValues("unknown_zone").Add(float64(len(batch) - len(accepted)))
		p.aggregator.update(accepted)
		p.logger.Debugw("batch aggregated", "worker", id, "readings", len(accepted))
	}
}

func (p *Processor) flushRows(rows []models.HourlyLoad) {
	p.store.Add(rows)
	if p.writer == nil {
		return
	}
	if err := p.writer.WriteHourlyLoads(rows); err != nil {
		p.logger.Errorw("error writing hourly loads", "rows", len(rows), "error", err)
	}
}

// Stop drains the queue, stops the workers and flushes what is left. It is
// safe to call more than once.
func (p *Processor) Stop() {
	p.stateMu.Lock()
	if p.stopped {
		p.stateMu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.stateMu.Unlock()

	p.wg.Wait()
	p.aggregator.stop()
}

type hourZone struct {
	hour time.Time
	zone string
}

// hourlyAggregator sums readings per (hour, zone)
type hourlyAggregator struct {
	sink    func([]models.HourlyLoad)
	sums    map[hourZone]float64
	mutex   sync.Mutex
	done    chan struct{}
	stopped sync.WaitGroup
}

func newHourlyAggregator(sink func([]models.HourlyLoad), interval time.Duration) *hourlyAggregator {
	a := &hourlyAggregator{
		sink: sink,
		sums: make(map[hourZone]float64),
		done: make(chan struct{}),
	}

	if interval > 0 {
		a.stopped.Add(1)
		go a.periodicFlush(interval)
	}

	return a
}

func (a *hourlyAggregator) update(readings []models.MeterReading) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for _, r := range readings {
		k := hourZone{hour: r.Timestamp.Truncate(time.Hour), zone: r.Zone}
		a.sums[k] += r.LoadMW
	}
}

func (a *hourlyAggregator) flush() {
	a.mutex.Lock()
	if len(a.sums) == 0 {
		a.mutex.Unlock()
		return
	}
	rows := make([]models.HourlyLoad, 0, len(a.sums))
	for k, v := range a.sums {
		rows = append(rows, models.HourlyLoad{Timestamp: k.hour, Zone: k.zone, LoadMW: v})
	}
	a.sums = make(map[hourZone]float64)
	a.mutex.Unlock()

	reference.SortHourly(rows)
	a.sink(rows)
}

func (a *hourlyAggregator) periodicFlush(interval time.Duration) {
	defer a.stopped.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *hourlyAggregator) stop() {
	close(a.done)
	a.stopped.Wait()
	a.flush()
}
