// Package history records every playback run in a SQLite database so the
// dashboard can list past runs and summary statistics.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/db"
	"github.com/zulandar/synapse/internal/models"
	"github.com/zulandar/synapse/internal/orchestrator"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("history: run not found")

// Recorder implements orchestrator.RunObserver on top of GORM.
type Recorder struct {
	db      *gorm.DB
	maxRuns int
}

var _ orchestrator.RunObserver = (*Recorder)(nil)

// Opts holds parameters for creating a Recorder.
type Opts struct {
	DB      *gorm.DB // required; migrated on New
	MaxRuns int      // oldest finished runs beyond this are pruned; 0 keeps all
}

// New migrates the schema and returns a Recorder.
func New(opts Opts) (*Recorder, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("history: db is required")
	}
	if opts.MaxRuns < 0 {
		return nil, fmt.Errorf("history: max runs must not be negative")
	}
	if err := db.AutoMigrate(opts.DB); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Recorder{db: opts.DB, maxRuns: opts.MaxRuns}, nil
}

// OpenMemory opens a private in-memory database and returns a Recorder on it.
func OpenMemory(maxRuns int) (*Recorder, error) {
	gdb, err := db.Open(db.Memory)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	r, err := New(Opts{DB: gdb, MaxRuns: maxRuns})
	if err != nil {
		db.Close(gdb)
		return nil, err
	}
	return r, nil
}

// Close releases the database.
func (r *Recorder) Close() error {
	return db.Close(r.db)
}

// RunStarted inserts an in-progress row for run.
func (r *Recorder) RunStarted(ctx context.Context, run orchestrator.Run) error {
	tools, err := json.Marshal(run.Tools)
	if err != nil {
		return fmt.Errorf("history: marshal tools for %s: %w", run.ID, err)
	}
	row := models.PlaybackRun{
		ID:        run.ID,
		Input:     run.Input,
		Category:  run.Category.String(),
		Status:    models.RunInProgress,
		Messages:  1,
		ToolsUsed: string(tools),
		StartedAt: run.StartedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("history: record start of %s: %w", run.ID, err)
	}
	return nil
}

// RunFinished marks the run resolved, or interrupted if it did not
// complete, and prunes old runs.
func (r *Recorder) RunFinished(ctx context.Context, run orchestrator.Run) error {
	status := models.RunResolved
	if !run.Completed {
		status = models.RunInterrupted
	}
	finished := run.FinishedAt
	result := r.db.WithContext(ctx).Model(&models.PlaybackRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":       status,
			"messages":     run.Messages(),
			"resolution":   run.Resolution,
			"completed_at": &finished,
		})
	if result.Error != nil {
		return fmt.Errorf("history: record finish of %s: %w", run.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("history: record finish of %s: %w", run.ID, ErrRunNotFound)
	}
	return r.prune(ctx)
}

// prune deletes the oldest finished runs beyond maxRuns.
func (r *Recorder) prune(ctx context.Context) error {
	if r.maxRuns == 0 {
		return nil
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.PlaybackRun{}).Count(&total).Error; err != nil {
		return fmt.Errorf("history: count runs: %w", err)
	}
	excess := int(total) - r.maxRuns
	if excess <= 0 {
		return nil
	}

	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.PlaybackRun{}).
		Where("status <> ?", models.RunInProgress).
		Order("started_at ASC, id ASC").
		Limit(excess).
		Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("history: select runs to prune: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.PlaybackRun{}).Error; err != nil {
		return fmt.Errorf("history: prune runs: %w", err)
	}
	log.Debug().Int("pruned", len(ids)).Msg("history: pruned old runs")
	return nil
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (r *Recorder) List(ctx context.Context, limit int) ([]models.PlaybackRun, error) {
	q := r.db.WithContext(ctx).Order("started_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []models.PlaybackRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return runs, nil
}

// Get returns a single run.
func (r *Recorder) Get(ctx context.Context, id string) (*models.PlaybackRun, error) {
	var run models.PlaybackRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get run %s: %w", id, err)
	}
	return &run, nil
}

// Stats summarizes the recorded runs.
type Stats struct {
	Total       int64            `json:"total"`
	Resolved    int64            `json:"resolved"`
	InProgress  int64            `json:"in_progress"`
	Interrupted int64            `json:"interrupted"`
	AvgMessages float64          `json:"avg_messages"` // over resolved runs
	ByCategory  map[string]int64 `json:"by_category"`
}

// Stats computes totals per status and category.
func (r *Recorder) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByCategory: make(map[string]int64)}

	type statusCount struct {
		Status string
		Count  int64
	}
	var byStatus []statusCount
	if err := r.db.WithContext(ctx).Model(&models.PlaybackRun{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return Stats{}, fmt.Errorf("history: stats by status: %w", err)
	}
	for _, sc := range byStatus {
		stats.Total += sc.Count
		switch sc.Status {
		case models.RunResolved:
			stats.Resolved = sc.Count
		case models.RunInProgress:
			stats.InProgress = sc.Count
		case models.RunInterrupted:
			stats.Interrupted = sc.Count
		}
	}

	type categoryCount struct {
		Category string
		Count    int64
	}
	var byCategory []categoryCount
	if err := r.db.WithContext(ctx).Model(&models.PlaybackRun{}).
		Select("category, COUNT(*) as count").
		Group("category").
		Scan(&byCategory).Error; err != nil {
		return Stats{}, fmt.Errorf("history: stats by category: %w", err)
	}
	for _, cc := range byCategory {
		stats.ByCategory[cc.Category] = cc.Count
	}

	if stats.Resolved > 0 {
		var avg sql.NullFloat64
		if err := r.db.WithContext(ctx).Model(&models.PlaybackRun{}).
			Select("AVG(messages)").
			Where("status = ?", models.RunResolved).
			Row().Scan(&avg); err != nil {
			return Stats{}, fmt.Errorf("history: average messages: %w", err)
		}
		stats.AvgMessages = avg.Float64
	}
	return stats, nil
}

// Tools decodes the tools recorded for a run.
func Tools(run models.PlaybackRun) ([]string, error) {
	if run.ToolsUsed == "" {
		return nil, nil
	}
	var tools []string
	if err := json.Unmarshal([]byte(run.ToolsUsed), &tools); err != nil {
		return nil, fmt.Errorf("history: decode tools for %s: %w", run.ID, err)
	}
	return tools, nil
}
