// Package runlog keeps an audit trail of forecast runs.
package runlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// Ledger records finished runs.
type Ledger interface {
	Record(ctx context.Context, run models.ForecastRun) error
}

// Nop discards runs.
type Nop struct{}

func (Nop) Record(context.Context, models.ForecastRun) error { return nil }

// Run is the database row of a forecast run
type Run struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	Backend    string `gorm:"index"`
	Zones      string
	TargetDate string
	Rows       int
	Status     string `gorm:"index"`
	FailedZone string
	Error      string
	StartedAt  time.Time `gorm:"index"`
	DurationMS int64
	CreatedAt  time.Time
}

func (Run) TableName() string { return "forecast_runs" }

// FromModel converts a run record into its row.
func FromModel(r models.ForecastRun) Run {
	return Run{
		ID:         r.ID,
		Backend:    r.Backend,
		Zones:      strings.Join(r.Zones, ","),
		TargetDate: r.Date,
		Rows:       r.Rows,
		Status:     r.Status,
		FailedZone: r.FailedZone,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// ToModel converts a row back into a run record.
func (r Run) ToModel() models.ForecastRun {
	var zones []string
	if r.Zones != "" {
		zones = strings.Split(r.Zones, ",")
	}
	return models.ForecastRun{
		ID:         r.ID,
		Backend:    r.Backend,
		Zones:      zones,
		Date:       r.TargetDate,
		Rows:       r.Rows,
		Status:     r.Status,
		FailedZone: r.FailedZone,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		Duration:   time.Duration(r.DurationMS) * time.Millisecond,
	}
}

// Postgres is a gorm-backed ledger
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects with dsn and migrates the runs table.
func OpenPostgres(dsn string, debug bool) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing postgres dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if debug {
		db.Logger = db.Logger.LogMode(logger.Info)
	}
	return NewPostgres(db)
}

// NewPostgres wraps an open connection and migrates the runs table.
func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("failed to automigrate forecast_runs: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Record(ctx context.Context, run models.ForecastRun) error {
	row := FromModel(run)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]models.ForecastRun, error) {
	var rows []Run
	if err := p.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	out := make([]models.ForecastRun, len(rows))
	for i, r := range rows {
		out[i] = r.ToModel()
	}
	return out, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
