package dashboard

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// panel reads the metric card of one zone at the selected instant. Deltas
// compare against the previous hour of the same day, so hour 0 has none.
func panel(series []models.ForecastPoint, zone string, at time.Time, hour int) Panel {
	out := Panel{Zone: zone}
	cur, ok := lookup(series, zone, at)
	if !ok {
		return out
	}
	load := cur.LoadMW
	out.LoadMW = &load
	out.Temp = cur.Temp

	if hour < 1 {
		return out
	}
	prev, ok := lookup(series, zone, at.Add(-time.Hour))
	if !ok {
		return out
	}
	d := cur.LoadMW - prev.LoadMW
	out.LoadDeltaMW = &d
	if cur.Temp != nil && prev.Temp != nil {
		td := *cur.Temp - *prev.Temp
		out.TempDelta = &td
	}
	return out
}

// lookup finds a zone's row at one instant, preferring observed over predicted
func lookup(series []models.ForecastPoint, zone string, at time.Time) (models.ForecastPoint, bool) {
	var (
		found models.ForecastPoint
		ok    bool
	)
	for _, p := range series {
		if p.Zone != zone || !p.Timestamp.Equal(at) {
			continue
		}
		if !ok || p.Source == models.SourceObserved {
			found, ok = p, true
		}
	}
	return found, ok
}

// summarize computes load statistics per zone in selection order
func summarize(series []models.ForecastPoint, zones []string) []models.ZoneLoadSummary {
	byZone := make(map[string][]float64, len(zones))
	for _, p := range series {
		byZone[p.Zone] = append(byZone[p.Zone], p.LoadMW)
	}

	out := make([]models.ZoneLoadSummary, 0, len(zones))
	for _, z := range zones {
		loads := byZone[z]
		if len(loads) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(loads, nil)
		if len(loads) == 1 {
			std = 0
		}
		out = append(out, models.ZoneLoadSummary{
			Zone:   z,
			Points: len(loads),
			MeanMW: mean,
			MaxMW:  floats.Max(loads),
			MinMW:  floats.Min(loads),
			StdDev: std,
		})
	}
	return out
}
