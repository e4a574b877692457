package influxdb

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// Measurements written by the service
const (
	MeasurementForecast = "load_forecast"
	MeasurementZoneLoad = "zone_load"
)

// Client represents an InfluxDB v2 client
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	config   config.InfluxDBConfig
	logger   *zap.SugaredLogger
}

// NewClient initializes the InfluxDB v2 client and verifies connectivity
func NewClient(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		config:   cfg,
		logger:   log.With("component", "influxdb", "bucket", cfg.Bucket),
	}
	go c.drainErrors()

	c.logger.Infow("connected to InfluxDB", "url", cfg.URL)
	return c, nil
}

func (c *Client) drainErrors() {
	for err := range c.writeAPI.Errors() {
		c.logger.Errorw("async write failed", "error", err)
	}
}

// WriteForecast writes the rows of one forecast run
func (c *Client) WriteForecast(run models.ForecastRun, points []models.ForecastPoint) error {
	for _, p := range points {
		c.writeAPI.WritePoint(ForecastPoint(run.Backend, p))
	}
	c.logger.Debugw("forecast written", "run_id", run.ID, "points", len(points))
	return nil
}

// WriteHourlyLoads writes aggregated metered load
func (c *Client) WriteHourlyLoads(rows []models.HourlyLoad) error {
	for _, r := range rows {
		c.writeAPI.WritePoint(HourlyLoadPoint(r))
	}
	return nil
}

// Close flushes and closes the InfluxDB client
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}

// ForecastPoint builds the line protocol point of one forecast row
func ForecastPoint(backendName string, p models.ForecastPoint) *write.Point {
	fields := map[string]interface{}{
		"load_mw": p.LoadMW,
	}
	optional := []struct {
		name string
		v    *float64
	}{
		{"temp", p.Temp},
		{"rh", p.RelHumidity},
		{"precip", p.Precip},
		{"pressure", p.Pressure},
		{"windspeed", p.WindSpeed},
	}
	for _, o := range optional {
		if o.v != nil {
			fields[o.name] = *o.v
		}
	}
	if p.Rain != nil {
		fields["rain"] = *p.Rain
	}
	if p.Snow != nil {
		fields["snow"] = *p.Snow
	}
	for k, v := range p.Extra {
		fields["x_"+k] = v
	}

	return write.NewPoint(
		MeasurementForecast,
		map[string]string{
			"zone":    p.Zone,
			"backend": backendName,
			"source":  p.Source,
		},
		fields,
		p.Timestamp,
	)
}

// HourlyLoadPoint builds the line protocol point of one hourly zone load
func HourlyLoadPoint(r models.HourlyLoad) *write.Point {
	return write.NewPoint(
		MeasurementZoneLoad,
		map[string]string{"zone": r.Zone},
		map[string]interface{}{"load_mw": r.LoadMW},
		r.Timestamp,
	)
}

// Ping checks that the server is still reachable
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.client.Health(ctx)
	return err
}
