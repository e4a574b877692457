package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/backend"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/cache"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/dashboard"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/history"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/influxdb"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/kafka"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/orchestrator"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/processor"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/reference"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/runlog"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/server"
)

// app holds every long-lived component built from the configuration
type app struct {
	cfg       *config.Config
	zones     *reference.Registry
	store     *history.Store
	backends  *backend.Registry
	cache     cache.Store
	ledger    runlog.Ledger
	runs      server.RunLister
	influx    *influxdb.Client
	publisher *kafka.Publisher
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	zones, err := reference.Init(cfg.Data.ZoneTable)
	if err != nil {
		return nil, err
	}
	a.zones = zones

	rows, err := zones.LoadHistoryFile(cfg.Data.HistoryFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warnw("metered load history not found, starting empty", "path", cfg.Data.HistoryFile)
	case err != nil:
		return nil, err
	}
	a.store = history.NewStore(rows)
	log.Infow("reference data loaded", "zones", len(zones.Codes()), "history_rows", a.store.Len())

	hc := &http.Client{Timeout: cfg.Backends.Timeout}
	a.backends = backend.NewRegistry(
		backend.NewXGBoost(cfg.Backends.XGBoostURL, hc),
		backend.NewNeuralProphet(cfg.Backends.NeuralProphetURL, hc),
	)

	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openLedger(); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.InfluxDB.Enabled {
		a.influx, err = influxdb.NewClient(ctx, cfg.InfluxDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, a.influx.Close)
	}
	if cfg.Kafka.PublishRuns {
		a.publisher, err = kafka.NewPublisher(cfg.Kafka)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := a.publisher.Close(); err != nil {
				log.Warnw("failed to close forecast publisher", "error", err)
			}
		})
	}
	return a, nil
}

func (a *app) openCache(ctx context.Context) error {
	switch a.cfg.Cache.Driver {
	case "redis":
		rc, err := cache.NewRedis(ctx, a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisDB, a.cfg.Cache.Prefix, a.cfg.Cache.TTL)
		if err != nil {
			return err
		}
		a.cache = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	case "none":
		a.cache = cache.Nop{}
	default:
		a.cache = cache.NewMemory(a.cfg.Cache.TTL)
	}
	return nil
}

func (a *app) openLedger() error {
	if a.cfg.Ledger.PostgresDSN == "" {
		m := runlog.NewMemory(200)
		a.ledger, a.runs = m, m
		return nil
	}
	pg, err := runlog.OpenPostgres(a.cfg.Ledger.PostgresDSN, a.cfg.Debug)
	if err != nil {
		return err
	}
	a.ledger, a.runs = pg, pg
	a.closers = append(a.closers, func() { _ = pg.Close() })
	return nil
}

// sinks lists the enabled consumers of fresh forecast runs
func (a *app) sinks() []dashboard.Sink {
	var out []dashboard.Sink
	if a.influx != nil {
		out = append(out, dashboard.SinkFunc(a.influx.WriteForecast))
	}
	if a.publisher != nil {
		out = append(out, a.publisher)
	}
	return out
}

func (a *app) pipeline(progress orchestrator.Progress) *dashboard.Pipeline {
	return dashboard.New(dashboard.Options{
		Zones:        a.zones,
		History:      a.store,
		Backends:     a.backends,
		Orchestrator: orchestrator.New(a.backends),
		Cache:        a.cache,
		Ledger:       a.ledger,
		Sinks:        a.sinks(),
		Progress:     progress,
		Config:       a.cfg.Dashboard,
	})
}

// runIngest consumes metered load from Kafka into the history store until ctx
// is cancelled, then waits up to 30s for the consumers to stop.
func (a *app) runIngest(ctx context.Context) error {
	var writer processor.LoadWriter
	if a.influx != nil {
		writer = a.influx
	}
	proc := processor.NewProcessor(a.store, writer, a.zones.Has, a.cfg.Processor)

	var wg sync.WaitGroup
	consumers := make([]*kafka.Consumer, 0, a.cfg.Kafka.ConsumerCount)

	log.Infof("Starting %d Kafka consumers...", a.cfg.Kafka.ConsumerCount)
	for i := 0; i < a.cfg.Kafka.ConsumerCount; i++ {
		c, err := kafka.NewConsumer(fmt.Sprintf("consumer-%d", i), a.cfg.Kafka, proc.ProcessMessages)
		if err != nil {
			for _, started := range consumers {
				_ = started.Close()
			}
			proc.Stop()
			return fmt.Errorf("failed to create consumer %d: %w", i, err)
		}
		consumers = append(consumers, c)

		wg.Add(1)
		go func(c *kafka.Consumer, id int) {
			defer wg.Done()
			log.Infow("starting consumer", "consumer", id)
			if err := c.Consume(ctx); err != nil {
				log.Errorw("consumer stopped with error", "consumer", id, "error", err)
			}
			log.Infow("consumer stopped", "consumer", id)
		}(c, i)
	}

	<-ctx.Done()
	log.Infow("stopping ingest")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Infow("all consumers stopped")
	case <-shutdownCtx.Done():
		log.Warnw("consumer shutdown timed out, forcing exit")
	}

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			log.Warnw("failed to close consumer", "error", err)
		}
	}
	proc.Stop()
	return nil
}

// Close releases components in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadHistoryArg reads an optional metered load file given on the command line
func (a *app) loadHistoryArg(path string) ([]models.HourlyLoad, error) {
	if path == "" {
		return a.store.Snapshot(), nil
	}
	return a.zones.LoadHistoryFile(path)
}
