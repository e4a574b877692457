package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/backend"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/orchestrator"
)

func newForecastCmd(getConfig func() *config.Config) *cobra.Command {
	var (
		backendName string
		zones       []string
		date        string
		historyFile string
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast zones once and print the merged table as CSV",
		RunE: func(c *cobra.Command, args []string) error {
			cfg := getConfig()
			if backendName == "" {
				backendName = cfg.Dashboard.DefaultBackend
			}
			day := time.Now().UTC()
			if date != "" {
				var err error
				if day, err = time.Parse(backend.DateLayout, date); err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			hist, err := a.loadHistoryArg(historyFile)
			if err != nil {
				return err
			}

			var progress orchestrator.Progress
			if !quiet {
				bar := newProgressBar(c.ErrOrStderr())
				defer bar.Finish()
				progress = bar
			}

			p := a.pipeline(progress)
			entry, _, err := p.Forecast(ctx, orchestrator.Request{
				Backend: backendName,
				Zones:   p.SelectedZones(zones),
				Date:    day,
				History: hist,
			})
			if err != nil {
				return err
			}
			return writeCSV(c.OutOrStdout(), entry.Points)
		},
	}

	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "Prediction backend (XGBoost or neuralprophet)")
	cmd.Flags().StringSliceVarP(&zones, "zones", "z", nil, "Zones to forecast, comma separated")
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to forecast for date-conditioned backends (YYYY-MM-DD)")
	cmd.Flags().StringVar(&historyFile, "history", "", "Metered load CSV for history-conditioned backends")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}

// progressBar renders orchestrator progress as a percentage bar
type progressBar struct {
	bar *pb.ProgressBar
}

func newProgressBar(w io.Writer) *progressBar {
	bar := pb.New(100)
	bar.Output = w
	bar.ShowTimeLeft = false
	bar.ShowCounters = false
	bar.Start()
	return &progressBar{bar: bar}
}

func (p *progressBar) Progress(zone string, fraction float64) {
	p.bar.Prefix(zone + " ")
	p.bar.Set(int(fraction*100 + 0.5))
}

func (p *progressBar) Finish() {
	p.bar.Finish()
}

var csvColumns = []string{"ds", "zone", "mw", "temp", "rh", "precip", "pressure", "windspeed", "rain", "snow", "source"}

// writeCSV prints points with the fixed columns first, then every extra
// column seen in any row in lexical order.
func writeCSV(w io.Writer, points []models.ForecastPoint) error {
	extraSet := map[string]struct{}{}
	for _, p := range points {
		for k := range p.Extra {
			extraSet[k] = struct{}{}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), csvColumns...), extras...)); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			p.Timestamp.Format("2006-01-02 15:04:05"),
			p.Zone,
			formatFloat(p.LoadMW),
			optFloat(p.Temp),
			optFloat(p.RelHumidity),
			optFloat(p.Precip),
			optFloat(p.Pressure),
			optFloat(p.WindSpeed),
			optBool(p.Rain),
			optBool(p.Snow),
			p.Source,
		}
		for _, k := range extras {
			v, ok := p.Extra[k]
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
