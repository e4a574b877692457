// Package reference loads the read-only CSV tables the dashboard is built on.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// Zone table columns
const (
	colZone     = "zone"
	colHistPeak = "hist_peak_mw"
	colLat      = "lat"
	colLong     = "long"
	colFullName = "full_zone_name"
)

// header indexes CSV columns by name
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	names, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty table")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(names))
	for i, n := range names {
		h[strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))] = i
	}
	for _, c := range required {
		if _, ok := h[c]; !ok {
			return nil, fmt.Errorf("missing required column %q", c)
		}
	}
	return h, nil
}

func (h header) get(row []string, col string) (string, bool) {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[i]), true
}

func (h header) float(row []string, col string, line int) (float64, error) {
	s, ok := h.get(row, col)
	if !ok || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %q: %w", line, col, err)
	}
	return v, nil
}

// LoadZones parses the zone reference table.
func LoadZones(r io.Reader) ([]models.ZoneRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(cr, colZone, colHistPeak)
	if err != nil {
		return nil, fmt.Errorf("zone table: %w", err)
	}

	var zones []models.ZoneRecord
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("zone table: line %d: %w", line, err)
		}

		code, _ := h.get(row, colZone)
		if code == "" {
			continue
		}
		if seen[code] {
			log.Warnw("duplicate zone row ignored, keeping the first", "zone", code, "line", line)
			continue
		}
		seen[code] = true

		z := models.ZoneRecord{Zone: code}
		if z.HistPeakMW, err = h.float(row, colHistPeak, line); err != nil {
			return nil, fmt.Errorf("zone table: %w", err)
		}
		if z.Latitude, err = h.float(row, colLat, line); err != nil {
			return nil, fmt.Errorf("zone table: %w", err)
		}
		if z.Longitude, err = h.float(row, colLong, line); err != nil {
			return nil, fmt.Errorf("zone table: %w", err)
		}
		z.FullName, _ = h.get(row, colFullName)

		zones = append(zones, z)
	}
	return zones, nil
}
