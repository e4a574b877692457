package models

import (
	"encoding/json"
	"fmt"
)

// RGB is a color with unclamped float channels
type RGB struct {
	R, G, B float64
}

// MarshalJSON encodes the color as an [r, g, b] array
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{c.R, c.G, c.B})
}

// UnmarshalJSON decodes an [r, g, b] array
func (c *RGB) UnmarshalJSON(data []byte) error {
	var v [3]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("rgb: %w", err)
	}
	c.R, c.G, c.B = v[0], v[1], v[2]
	return nil
}

// MapPoint represents a forecast point joined with its zone record and colored for the map
type MapPoint struct {
	ForecastPoint
	Latitude      float64  `json:"lat"`
	Longitude     float64  `json:"long"`
	FullName      string   `json:"full_zone_name"`
	HistPeakMW    float64  `json:"hist_peak_mw"`
	Ratio         *float64 `json:"ratio,omitempty"`
	FillColor     *RGB     `json:"color,omitempty"`
	SelectedColor RGB      `json:"selected"`
}
