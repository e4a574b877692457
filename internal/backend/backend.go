// Package backend defines the prediction model capability and its HTTP
// model-server implementations.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// ErrNotImplemented is returned for backend names nothing is registered under.
var ErrNotImplemented = errors.New("backend not implemented")

// Conditioning tells the orchestrator which input a backend predicts from.
type Conditioning int

const (
	// ConditionedOnHistory backends forecast from metered load history.
	ConditionedOnHistory Conditioning = iota
	// ConditionedOnDate backends forecast a target day.
	ConditionedOnDate
)

func (c Conditioning) String() string {
	switch c {
	case ConditionedOnHistory:
		return "history"
	case ConditionedOnDate:
		return "date"
	default:
		return fmt.Sprintf("Conditioning(%d)", int(c))
	}
}

// Input carries the shared context of one orchestration run.
type Input struct {
	History []models.HourlyLoad
	Date    time.Time
}

// DateString formats the target date the way model servers expect it.
func (in Input) DateString() string {
	return in.Date.Format(DateLayout)
}

// DateLayout is the wire format of target dates.
const DateLayout = "2006-01-02"

// Backend predicts one zone's load.
type Backend interface {
	Name() string
	Conditioning() Conditioning
	Predict(ctx context.Context, zone string, in Input) ([]models.ForecastPoint, error)
}

// Func adapts a function into a Backend.
type Func struct {
	BackendName string
	Cond        Conditioning
	Fn          func(ctx context.Context, zone string, in Input) ([]models.ForecastPoint, error)
}

func (f Func) Name() string               { return f.BackendName }
func (f Func) Conditioning() Conditioning { return f.Cond }

func (f Func) Predict(ctx context.Context, zone string, in Input) ([]models.ForecastPoint, error) {
	return f.Fn(ctx, zone, in)
}

// Registry resolves backends by name, case-insensitively.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry registers the given backends.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		r.Register(b)
	}
	return r
}

// Register adds or replaces a backend.
func (r *Registry) Register(b Backend) {
	r.backends[strings.ToLower(b.Name())] = b
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, error) {
	b, ok := r.backends[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotImplemented, name)
	}
	return b, nil
}

// Names lists registered backend names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		out = append(out, b.Name())
	}
	sort.Strings(out)
	return out
}
