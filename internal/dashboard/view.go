package dashboard

import (
	"time"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// Query is one dashboard interaction: every widget value the view depends on
type Query struct {
	Backend string
	Zones   []string
	// Date is the selected day. Zero picks today for date-conditioned
	// backends and the last history day for history-conditioned ones.
	Date time.Time
	Hour int
	// History overrides the metered load store, e.g. an uploaded file.
	History []models.HourlyLoad
}

// DateRange bounds the days a history-conditioned view may select
type DateRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// Panel is the metric card for the last selected zone
type Panel struct {
	Zone        string   `json:"zone"`
	LoadMW      *float64 `json:"load_mw,omitempty"`
	LoadDeltaMW *float64 `json:"load_delta_mw,omitempty"`
	Temp        *float64 `json:"temp,omitempty"`
	TempDelta   *float64 `json:"temp_delta,omitempty"`
}

// View is everything the client needs to draw the dashboard
type View struct {
	RunID         string                   `json:"run_id"`
	Backend       string                   `json:"backend"`
	Zones         []string                 `json:"zones"`
	Date          string                   `json:"date"`
	Hour          int                      `json:"hour"`
	Time          time.Time                `json:"time"`
	DateRange     *DateRange               `json:"date_range,omitempty"`
	ForecastStart *time.Time               `json:"forecast_start,omitempty"`
	Cached        bool                     `json:"cached"`
	Status        string                   `json:"status,omitempty"`
	Series        []models.ForecastPoint   `json:"series"`
	Map           []models.MapPoint        `json:"map"`
	Panel         Panel                    `json:"panel"`
	Summary       []models.ZoneLoadSummary `json:"summary"`
}
