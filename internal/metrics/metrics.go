// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "loadforecast"

var (
	ForecastRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecast_runs_total",
		Help:      "Forecast orchestration runs by backend and outcome.",
	}, []string{"backend", "status"})

	ZonePredictSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "zone_predict_seconds",
		Help:      "Latency of one backend prediction for one zone.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"backend"})

	ForecastProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forecast_progress_ratio",
		Help:      "Fraction of zones finished in the current run.",
	}, []string{"backend"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecast_cache_lookups_total",
		Help:      "Forecast cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	IngestedReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingested_readings_total",
		Help:      "Metered load readings seen by the ingest processor by result.",
	}, []string{"result"})

	UndefinedRatios = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "undefined_load_ratios_total",
		Help:      "Map points left uncolored because their zone has no historical peak.",
	})
)
