package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionGraded    SubmissionStatus = "graded"
)

func (s SubmissionStatus) Terminal() bool { return s == SubmissionGraded }

type TaskSubmission struct {
	ID            uint             `gorm:"primarykey" json:"id"`
	TaskID        uint             `json:"task_id" gorm:"not null;index:idx_submission_task_student;uniqueIndex:uq_submission_ordinal"`
	Task          Task             `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	StudentID     string           `json:"student_id" gorm:"not null;index:idx_submission_task_student;uniqueIndex:uq_submission_ordinal;size:255"`
	AttemptNumber int              `json:"attempt_number" gorm:"not null;uniqueIndex:uq_submission_ordinal"`
	Answers       datatypes.JSON   `json:"answers" gorm:"type:jsonb"` // question-id (or "text") -> value
	Attachments   datatypes.JSON   `json:"attachments,omitempty" gorm:"type:jsonb"`
	Score         *float64         `json:"score,omitempty"`       // pre-penalty, 0..task.MaxScore
	FinalScore    *float64         `json:"final_score,omitempty"` // post-penalty, never above Score
	IsLate        bool             `json:"is_late"`
	Status        SubmissionStatus `json:"status" gorm:"not null;default:'submitted';index"`
	SubmittedAt   time.Time        `json:"submitted_at" gorm:"not null"`
	GradedAt      *time.Time       `json:"graded_at,omitempty"`
	GraderID      *string          `json:"grader_id,omitempty" gorm:"size:255"` // nil for auto-checked
	Feedback      string           `json:"feedback,omitempty" gorm:"type:text"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
}
