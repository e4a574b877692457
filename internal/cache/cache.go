// Package cache memoizes forecast runs keyed by their inputs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// ErrMiss is returned by Get when nothing is cached under a key.
var ErrMiss = errors.New("cache: miss")

// Entry is one memoized forecast run
type Entry struct {
	Run    models.ForecastRun     `json:"run"`
	Points []models.ForecastPoint `json:"points"`
}

// Store keeps entries for a bounded time.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e *Entry) error
}

// Key identifies a run by backend, zones in request order, target date and
// the history it was conditioned on.
func Key(backend string, zones []string, date time.Time, history []models.HourlyLoad) string {
	d := ""
	if !date.IsZero() {
		d = date.Format("2006-01-02")
	}
	h := ""
	if len(history) > 0 {
		h = fmt.Sprintf("%016x", Fingerprint(history))
	}
	return strings.ToLower(backend) + "|" + strings.Join(zones, ",") + "|" + d + "|" + h
}

// Fingerprint hashes a history table.
func Fingerprint(rows []models.HourlyLoad) uint64 {
	f := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		f.Write(buf[:])
	}
	for _, r := range rows {
		put(uint64(r.Timestamp.Unix()))
		f.Write([]byte(r.Zone))
		f.Write([]byte{0})
		put(math.Float64bits(r.LoadMW))
	}
	return f.Sum64()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*Entry, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, *Entry) error   { return nil }
