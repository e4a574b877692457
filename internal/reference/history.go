package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// Metered load columns
const (
	colBeginEPT = "datetime_beginning_ept"
	colLoad     = "mw"
)

// timestamp layouts accepted for metered load
var timeLayouts = []string{
	"1/2/2006 3:04:05 PM",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp parses a metered load timestamp. Zone-less layouts are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type hourZone struct {
	ts   time.Time
	zone string
}

// LoadHistory parses a metered hourly load CSV, sums load per (timestamp,
// zone) and keeps only zones accepted by known. A nil known keeps every zone.
func LoadHistory(r io.Reader, known func(zone string) bool) ([]models.HourlyLoad, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(cr, colBeginEPT, colZone, colLoad)
	if err != nil {
		return nil, fmt.Errorf("metered load: %w", err)
	}

	sums := make(map[hourZone]float64)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("metered load: line %d: %w", line, err)
		}

		zone, _ := h.get(row, colZone)
		if zone == "" || (known != nil && !known(zone)) {
			continue
		}
		raw, _ := h.get(row, colBeginEPT)
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("metered load: line %d: %w", line, err)
		}
		mw, err := h.float(row, colLoad, line)
		if err != nil {
			return nil, fmt.Errorf("metered load: %w", err)
		}
		sums[hourZone{ts: ts, zone: zone}] += mw
	}

	return flatten(sums), nil
}

// flatten turns (timestamp, zone) sums into rows sorted by timestamp then zone.
func flatten(sums map[hourZone]float64) []models.HourlyLoad {
	out := make([]models.HourlyLoad, 0, len(sums))
	for k, v := range sums {
		out = append(out, models.HourlyLoad{Timestamp: k.ts, Zone: k.zone, LoadMW: v})
	}
	SortHourly(out)
	return out
}

// SortHourly orders rows by timestamp then zone.
func SortHourly(rows []models.HourlyLoad) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].Zone < rows[j].Zone
	})
}
