// Package colorscale maps zone load stress onto map colors.
//
// Fill colors follow a three-anchor gradient: green at no load, grey at half
// of the historical peak and red at the peak. Ratios above 1.0 keep
// extrapolating along the grey-red segment and are not clamped, so channels
// can leave the 0..255 range.
package colorscale

import (
	"errors"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// ErrUndefinedRatio is returned when a zone has no historical peak to normalize by.
var ErrUndefinedRatio = errors.New("colorscale: historical peak is zero, load ratio undefined")

// Gradient anchors and highlight colors.
var (
	Low        = models.RGB{R: 0, G: 128, B: 0}
	Neutral    = models.RGB{R: 190, G: 190, B: 190}
	High       = models.RGB{R: 250, G: 0, B: 0}
	Selected   = models.RGB{R: 255, G: 127, B: 0}
	Unselected = models.RGB{R: 255, G: 255, B: 255}
)

// Midpoint is the ratio where the gradient switches segments.
const Midpoint = 0.5

// Ratio returns load/peak.
func Ratio(loadMW, peakMW float64) (float64, error) {
	if peakMW == 0 {
		return 0, ErrUndefinedRatio
	}
	return loadMW / peakMW, nil
}

// Blend interpolates each channel as a + t*(b-a).
func Blend(a, b models.RGB, t float64) models.RGB {
	return models.RGB{
		R: a.R + t*(b.R-a.R),
		G: a.G + t*(b.G-a.G),
		B: a.B + t*(b.B-a.B),
	}
}

// Fill maps a load ratio onto the gradient.
func Fill(ratio float64) models.RGB {
	if ratio <= Midpoint {
		return Blend(Low, Neutral, ratio/Midpoint)
	}
	return Blend(Neutral, High, (ratio-Midpoint)/Midpoint)
}

// Highlight returns the outline color for a zone given the selected set.
func Highlight(zone string, selected Set) models.RGB {
	if selected.Has(zone) {
		return Selected
	}
	return Unselected
}

// Apply colors map points in place. Points whose zone has a zero peak keep a
// nil fill color.
func Apply(points []models.MapPoint, selected Set) {
	for i := range points {
		p := &points[i]
		p.SelectedColor = Highlight(p.Zone, selected)

		ratio, err := Ratio(p.LoadMW, p.HistPeakMW)
		if err != nil {
			log.Warnw("skipping fill color", "zone", p.Zone, "ts", p.Timestamp, "error", err)
			p.Ratio = nil
			p.FillColor = nil
			continue
		}
		c := Fill(ratio)
		p.Ratio = &ratio
		p.FillColor = &c
	}
}
