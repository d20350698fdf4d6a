package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted" // terminal, pending manual review
	AttemptTimedOut   AttemptStatus = "timed_out"
	AttemptGraded     AttemptStatus = "graded"
)

// Terminal reports whether the status may never change again.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptTimedOut || s == AttemptGraded
}

type TestAttempt struct {
	ID               uint            `gorm:"primarykey" json:"id"`
	TestID           uint            `json:"test_id" gorm:"not null;index:idx_attempt_test_student;uniqueIndex:uq_attempt_ordinal"`
	Test             Test            `json:"test,omitempty" gorm:"foreignKey:TestID"`
	StudentID        string          `json:"student_id" gorm:"not null;index:idx_attempt_test_student;uniqueIndex:uq_attempt_ordinal;size:255"`
	AttemptNumber    int             `json:"attempt_number" gorm:"not null;uniqueIndex:uq_attempt_ordinal"`
	Status           AttemptStatus   `json:"status" gorm:"not null;default:'in_progress';index"`
	StartedAt        time.Time       `json:"started_at" gorm:"not null"`
	SubmittedAt      *time.Time      `json:"submitted_at,omitempty"`
	TimeTakenSeconds int             `json:"time_taken_seconds"`
	Score            *float64        `json:"score,omitempty"` // 0-100, two decimals
	Answers          []AttemptAnswer `json:"answers,omitempty" gorm:"foreignKey:TestAttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}

// AttemptAnswer is the per-question detail of an attempt: the raw student
// answer plus, once the attempt is scored, the grading outcome.
type AttemptAnswer struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	TestAttemptID  uint           `json:"test_attempt_id" gorm:"not null;index"`
	QuestionID     uint           `json:"question_id" gorm:"not null;index"`
	Answer         datatypes.JSON `json:"answer" gorm:"type:jsonb"`
	IsCorrect      *bool          `json:"is_correct,omitempty"` // nil until scored
	PointsEarned   float64        `json:"points_earned"`
	PointsPossible float64        `json:"points_possible"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
