package models

import "time"

// Run statuses.
const (
	RunInProgress  = "in_progress"
	RunResolved    = "resolved"
	RunInterrupted = "interrupted"
)

// PlaybackRun records one operator submission and the resolution script
// it triggered.
type PlaybackRun struct {
	ID          string     `gorm:"primaryKey;size:36"`
	Input       string     `gorm:"type:text;not null"`
	Category    string     `gorm:"size:16;not null;index"`
	Status      string     `gorm:"size:16;default:in_progress;index"`
	Messages    int        `gorm:"default:1"`
	ToolsUsed   string     `gorm:"type:json"` // JSON array of tool names
	Resolution  string     `gorm:"type:text"`
	StartedAt   time.Time  `gorm:"index"`
	CompletedAt *time.Time
}
