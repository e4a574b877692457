package models

// ZoneRecord represents one row of the zone reference table
type ZoneRecord struct {
	Zone       string  `json:"zone"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"long"`
	FullName   string  `json:"full_zone_name"`
	HistPeakMW float64 `json:"hist_peak_mw"`
}
