package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/reference"
)

// row is one record of a model server response
type row map[string]interface{}

// columns consumed by decode instead of being passed through as extras
var structural = map[string]bool{
	"ds": true, "date": true, "hour": true, "zone": true, "source": true,
}

func (r row) float(key string) (float64, bool, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("column %q: %w", key, err)
		}
		return f, true, nil
	case float64:
		return x, true, nil
	case bool:
		if x {
			return 1, true, nil
		}
		return 0, true, nil
	case string:
		if x == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false, fmt.Errorf("column %q: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("column %q: unexpected %T", key, v)
	}
}

func (r row) optFloat(key string) (*float64, error) {
	f, ok, err := r.float(key)
	if err != nil || !ok {
		return nil, err
	}
	return &f, nil
}

func (r row) optBool(key string) (*bool, error) {
	f, ok, err := r.float(key)
	if err != nil || !ok {
		return nil, err
	}
	b := f != 0
	return &b, nil
}

func (r row) str(key string) string {
	switch x := r[key].(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return ""
	}
}

// timestamp reads either a "ds" column or a "date" plus "hour" pair.
func (r row) timestamp() (time.Time, error) {
	if ds := r.str("ds"); ds != "" {
		return parseDay(ds)
	}
	d := r.str("date")
	if d == "" {
		return time.Time{}, fmt.Errorf("row has neither ds nor date")
	}
	day, err := parseDay(d)
	if err != nil {
		return time.Time{}, err
	}
	hour, _, err := r.float("hour")
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(hour) * time.Hour), nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return reference.ParseTimestamp(s)
}

// decode converts model server rows into forecast points. loadKeys lists the
// accepted names of the load column in order of preference.
func decode(rows []row, zone string, loadKeys ...string) ([]models.ForecastPoint, error) {
	out := make([]models.ForecastPoint, 0, len(rows))
	for i, r := range rows {
		p, err := decodeRow(r, zone, loadKeys)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func decodeRow(r row, zone string, loadKeys []string) (models.ForecastPoint, error) {
	p := models.ForecastPoint{Zone: zone, Source: models.SourcePredicted}

	ts, err := r.timestamp()
	if err != nil {
		return p, err
	}
	p.Timestamp = ts

	consumed := make(map[string]bool, len(loadKeys))
	found := false
	for _, k := range loadKeys {
		consumed[k] = true
		if found {
			continue
		}
		v, ok, err := r.float(k)
		if err != nil {
			return p, err
		}
		if ok {
			p.LoadMW, found = v, true
		}
	}
	if !found {
		return p, fmt.Errorf("missing load column %v", loadKeys)
	}

	fields := []struct {
		key string
		dst **float64
	}{
		{"temp", &p.Temp},
		{"rh", &p.RelHumidity},
		{"precip", &p.Precip},
		{"pressure", &p.Pressure},
		{"windspeed", &p.WindSpeed},
	}
	for _, f := range fields {
		consumed[f.key] = true
		if *f.dst, err = r.optFloat(f.key); err != nil {
			return p, err
		}
	}
	consumed["rain"], consumed["snow"] = true, true
	if p.Rain, err = r.optBool("rain"); err != nil {
		return p, err
	}
	if p.Snow, err = r.optBool("snow"); err != nil {
		return p, err
	}

	for k := range r {
		if consumed[k] || structural[k] {
			continue
		}
		v, ok, err := r.float(k)
		if err != nil || !ok {
			// non-numeric columns cannot ride along in Extra
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]float64)
		}
		p.Extra[k] = v
	}
	return p, nil
}
