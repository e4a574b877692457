package reference

import (
	"fmt"
	"os"
	"sync"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// Registry is the read-only zone reference table
type Registry struct {
	zones []models.ZoneRecord
	index map[string]int
}

// NewRegistry indexes zone records by code, keeping table order.
func NewRegistry(zones []models.ZoneRecord) *Registry {
	r := &Registry{
		zones: append([]models.ZoneRecord(nil), zones...),
		index: make(map[string]int, len(zones)),
	}
	for i, z := range r.zones {
		r.index[z.Zone] = i
	}
	return r
}

// Zones returns a copy of the table in file order.
func (r *Registry) Zones() []models.ZoneRecord {
	return append([]models.ZoneRecord(nil), r.zones...)
}

// Zone looks up one zone.
func (r *Registry) Zone(code string) (models.ZoneRecord, bool) {
	i, ok := r.index[code]
	if !ok {
		return models.ZoneRecord{}, false
	}
	return r.zones[i], true
}

// Has reports whether the zone is in the table.
func (r *Registry) Has(code string) bool {
	_, ok := r.index[code]
	return ok
}

// Codes returns the unique zone codes in file order.
func (r *Registry) Codes() []string {
	out := make([]string, len(r.zones))
	for i, z := range r.zones {
		out[i] = z.Zone
	}
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Init loads the process-wide registry from a zone table file. Only the first
// call reads the file; later calls return the same result.
func Init(path string) (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = LoadRegistry(path)
	})
	return defaultRegistry, defaultErr
}

// Default returns the registry loaded by Init, or nil before Init.
func Default() *Registry {
	return defaultRegistry
}

// LoadRegistry reads a zone table file into a new registry.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zone table: %w", err)
	}
	defer f.Close()

	zones, err := LoadZones(f)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("zone table %s has no zones", path)
	}
	return NewRegistry(zones), nil
}

// LoadHistoryFile reads a metered load file, keeping zones known to the registry.
func (r *Registry) LoadHistoryFile(path string) ([]models.HourlyLoad, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metered load: %w", err)
	}
	defer f.Close()
	return LoadHistory(f, r.Has)
}
