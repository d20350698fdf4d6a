package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskQuestion is one sub-question of a task, stored denormalized on the task
// itself (tasks are small and their questions are never attempted standalone).
type TaskQuestion struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

type Task struct {
	ID                   uint           `gorm:"primarykey" json:"id"`
	Title                string         `json:"title" gorm:"not null"`
	Description          string         `json:"description,omitempty"`
	MaxScore             float64        `json:"max_score" gorm:"not null"`
	DueAt                *time.Time     `json:"due_at,omitempty"`
	AllowLateSubmissions bool           `json:"allow_late_submissions"`
	LatePenaltyPercent   float64        `json:"late_penalty_percent"` // 0-100
	MaxAttempts          *int           `json:"max_attempts,omitempty"` // nil = unlimited
	Questions            datatypes.JSON `json:"questions,omitempty"`        // optional []TaskQuestion
	AutoCheckConfig      datatypes.JSON `json:"-"`                          // optional evaluator.AutoCheckConfig
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsPastDue reports whether the reference time is past the task deadline.
// Tasks without a deadline are never past due.
func (t Task) IsPastDue(reference time.Time) bool {
	return t.DueAt != nil && reference.After(*t.DueAt)
}
