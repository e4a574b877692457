package runlog

import (
	"context"
	"sync"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// Memory keeps the most recent runs in process.
type Memory struct {
	mu   sync.Mutex
	max  int
	runs []models.ForecastRun
}

// NewMemory keeps up to max runs.
func NewMemory(max int) *Memory {
	return &Memory{max: max}
}

func (m *Memory) Record(_ context.Context, run models.ForecastRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	if len(m.runs) > m.max {
		m.runs = m.runs[len(m.runs)-m.max:]
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]models.ForecastRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]models.ForecastRun, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}
