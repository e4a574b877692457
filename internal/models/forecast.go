package models

import (
	"time"
)

// Provenance tags for forecast points
const (
	SourceObserved  = "observed"
	SourcePredicted = "pred"
)

// ForecastPoint represents one row of a forecast table
type ForecastPoint struct {
	Timestamp   time.Time          `json:"ds"`
	Zone        string             `json:"zone"`
	LoadMW      float64            `json:"mw"`
	Temp        *float64           `json:"temp,omitempty"`
	RelHumidity *float64           `json:"rh,omitempty"`
	Precip      *float64           `json:"precip,omitempty"`
	Pressure    *float64           `json:"pressure,omitempty"`
	WindSpeed   *float64           `json:"windspeed,omitempty"`
	Rain        *bool              `json:"rain,omitempty"`
	Snow        *bool              `json:"snow,omitempty"`
	Source      string             `json:"source"`
	Extra       map[string]float64 `json:"extra,omitempty"`
}

// ForecastRun is the audit record of one orchestration run
type ForecastRun struct {
	ID         string        `json:"id"`
	Backend    string        `json:"backend"`
	Zones      []string      `json:"zones"`
	Date       string        `json:"date,omitempty"`
	Rows       int           `json:"rows"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Status     string        `json:"status"`
	FailedZone string        `json:"failed_zone,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Run statuses
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)
