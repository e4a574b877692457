package main

import (
	"sync"

	"github.com/spf13/cobra"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/server"
)

func newServeCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API, ingesting metered load when Kafka is enabled",
		RunE: func(c *cobra.Command, args []string) error {
			cfg := getConfig()
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var wg sync.WaitGroup
			if cfg.Kafka.Enabled {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := a.runIngest(ctx); err != nil {
						log.Errorw("ingest failed", "error", err)
					}
				}()
			}

			srv := server.New(a.pipeline(nil), a.runs, cfg.HTTP, cfg.Dashboard)
			if a.influx != nil {
				srv.AddCheck("influxdb", a.influx.Ping)
			}
			err = srv.Run(ctx)
			cancel()
			wg.Wait()
			log.Infow("shutdown complete")
			return err
		},
	}
}
