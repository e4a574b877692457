package models

import (
	"time"
)

// MeterReading represents one metered load sample delivered by the ingest stream
type MeterReading struct {
	Timestamp time.Time `json:"datetime_beginning_ept"`
	Zone      string    `json:"zone"`
	LoadMW    float64   `json:"mw"`
}

// HourlyLoad represents the load of one zone summed over one hour
type HourlyLoad struct {
	Timestamp time.Time `json:"ds"`
	Zone      string    `json:"zone"`
	LoadMW    float64   `json:"mw"`
}

// Point converts an hourly load into an observed forecast point
func (h HourlyLoad) Point() ForecastPoint {
	return ForecastPoint{
		Timestamp: h.Timestamp,
		Zone:      h.Zone,
		LoadMW:    h.LoadMW,
		Source:    SourceObserved,
	}
}

// ZoneLoadSummary represents load statistics of one zone over a series
type ZoneLoadSummary struct {
	Zone   string  `json:"zone"`
	Points int     `json:"points"`
	MeanMW float64 `json:"mean_mw"`
	MaxMW  float64 `json:"max_mw"`
	MinMW  float64 `json:"min_mw"`
	StdDev float64 `json:"std_dev_mw"`
}
