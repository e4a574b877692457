package main

import (
	"github.com/spf13/cobra"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
)

func newIngestCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Consume metered load from Kafka without serving the dashboard",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, getConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.runIngest(ctx)
			log.Infow("shutdown complete")
			return err
		},
	}
}
