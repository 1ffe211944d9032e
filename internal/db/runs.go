package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sandgraal/retro-games-sub003/internal/ingest"
)

// IngestRun maps ingest_runs, one row per orchestrator run.
type IngestRun struct {
	RunID              string     `gorm:"column:run_id;primaryKey;size:36" json:"runId"`
	Status             string     `gorm:"column:status;size:16;not null;index" json:"status"`
	StartedAt          time.Time  `gorm:"column:started_at;not null;index" json:"startedAt"`
	FinishedAt         *time.Time `gorm:"column:finished_at" json:"finishedAt,omitempty"`
	Fetched            int        `gorm:"column:fetched;not null;default:0" json:"fetched"`
	Normalized         int        `gorm:"column:normalized;not null;default:0" json:"normalized"`
	Merged             int        `gorm:"column:merged;not null;default:0" json:"merged"`
	Upserted           int        `gorm:"column:upserted;not null;default:0" json:"upserted"`
	Unchanged          int        `gorm:"column:unchanged;not null;default:0" json:"unchanged"`
	SuggestionsApplied int        `gorm:"column:suggestions_applied;not null;default:0" json:"suggestionsApplied"`
	SourceFailures     int        `gorm:"column:source_failures;not null;default:0" json:"sourceFailures"`
	SnapshotPath       string     `gorm:"column:snapshot_path" json:"snapshotPath"`
	CreatedAt          time.Time  `gorm:"column:created_at" json:"-"`
	UpdatedAt          time.Time  `gorm:"column:updated_at" json:"-"`
}

func (IngestRun) TableName() string { return "ingest_runs" }

const (
	defaultRecentRuns = 20
	maxRecentRuns     = 200
)

func (p *Pool) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	row := IngestRun{
		RunID:     runID,
		Status:    ingest.StatusRunning,
		StartedAt: startedAt.UTC(),
	}
	if err := p.gdb.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}
	return nil
}

// CompleteRun stores the final status and metrics. A run whose start was
// never recorded is inserted whole, keeping startedAt.
func (p *Pool) CompleteRun(ctx context.Context, runID, status string, m ingest.Metrics, startedAt, finishedAt time.Time) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	finished := finishedAt.UTC()
	updates := map[string]any{
		"status":              status,
		"finished_at":         finished,
		"fetched":             m.Fetched,
		"normalized":          m.Normalized,
		"merged":              m.Merged,
		"upserted":            m.Upserted,
		"unchanged":           m.Unchanged,
		"suggestions_applied": m.SuggestionsApplied,
		"source_failures":     m.SourceFailures,
		"snapshot_path":       m.SnapshotPath,
	}

	res := p.gdb.WithContext(ctx).Model(&IngestRun{}).Where("run_id = ?", runID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update ingest run: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	row := IngestRun{
		RunID:              runID,
		Status:             status,
		StartedAt:          startedAt.UTC(),
		FinishedAt:         &finished,
		Fetched:            m.Fetched,
		Normalized:         m.Normalized,
		Merged:             m.Merged,
		Upserted:           m.Upserted,
		Unchanged:          m.Unchanged,
		SuggestionsApplied: m.SuggestionsApplied,
		SourceFailures:     m.SourceFailures,
		SnapshotPath:       m.SnapshotPath,
	}
	if err := p.gdb.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert completed ingest run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs first.
func (p *Pool) RecentRuns(ctx context.Context, limit int) ([]IngestRun, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if limit <= 0 {
		limit = defaultRecentRuns
	}
	if limit > maxRecentRuns {
		limit = maxRecentRuns
	}

	var rows []IngestRun
	err := p.gdb.WithContext(ctx).
		Order("started_at DESC").
		Order("run_id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	return rows, nil
}
