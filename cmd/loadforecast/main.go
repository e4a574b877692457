package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
)

func main() {
	var (
		configFile string
		debug      bool
		cfg        *config.Config
	)

	rootCmd := &cobra.Command{
		Use:          "loadforecast",
		Short:        "Grid zone load forecast dashboard and ingest service",
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
			}
			var err error
			cfg, err = config.LoadFile(configFile)
			if err != nil {
				return err
			}
			if debug {
				cfg.Debug = true
			}
			if err := log.Init(cfg.Debug); err != nil {
				return err
			}
			if configFile != "" {
				log.Infow("loaded config file", "path", configFile)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a JSON or YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	getConfig := func() *config.Config { return cfg }
	rootCmd.AddCommand(
		newServeCmd(getConfig),
		newForecastCmd(getConfig),
		newIngestCmd(getConfig),
	)

	err := rootCmd.Execute()
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
