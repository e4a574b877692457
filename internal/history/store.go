// Package history holds the hourly metered load table shared by the
// dashboard and the ingest processor.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/reference"
)

type key struct {
	ts   int64
	zone string
}

// Store is a concurrency-safe hourly load table keyed by (timestamp, zone)
type Store struct {
	mu      sync.RWMutex
	rows    map[key]models.HourlyLoad
	version uint64
}

// NewStore creates a store seeded with rows. Duplicate keys are summed.
func NewStore(rows []models.HourlyLoad) *Store {
	s := &Store{rows: make(map[key]models.HourlyLoad, len(rows))}
	s.addLocked(rows)
	return s
}

// Add sums rows into the table.
func (s *Store) Add(rows []models.HourlyLoad) {
	if len(rows) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(rows)
	s.version++
}

func (s *Store) addLocked(rows []models.HourlyLoad) {
	for _, r := range rows {
		k := key{ts: r.Timestamp.Unix(), zone: r.Zone}
		cur, ok := s.rows[k]
		if !ok {
			s.rows[k] = r
			continue
		}
		cur.LoadMW += r.LoadMW
		s.rows[k] = cur
	}
}

// Replace swaps the whole table.
func (s *Store) Replace(rows []models.HourlyLoad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[key]models.HourlyLoad, len(rows))
	s.addLocked(rows)
	s.version++
}

// Version changes every time the table is modified.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Snapshot returns a sorted copy of the table.
func (s *Store) Snapshot() []models.HourlyLoad {
	s.mu.RLock()
	out := make([]models.HourlyLoad, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	s.mu.RUnlock()

	reference.SortHourly(out)
	return out
}

// Zone returns the rows of one zone ordered by timestamp.
func (s *Store) Zone(zone string) []models.HourlyLoad {
	s.mu.RLock()
	var out []models.HourlyLoad
	for k, r := range s.rows {
		if k.zone == zone {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Range returns the first and last timestamps. ok is false for an empty table.
func (s *Store) Range() (first, last time.Time, ok bool) {
	return Range(s.Snapshot())
}

// Range returns the first and last timestamps of rows.
func Range(rows []models.HourlyLoad) (first, last time.Time, ok bool) {
	for _, r := range rows {
		if !ok || r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if !ok || r.Timestamp.After(last) {
			last = r.Timestamp
		}
		ok = true
	}
	return first, last, ok
}
