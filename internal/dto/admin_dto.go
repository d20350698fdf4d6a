package dto

import (
	"encoding/json"
	"time"
)

// QuestionCreateDTO is one question inside a TestCreateDTO. AnswerKey carries
// the raw per-type key; it is validated through the evaluator before anything
// is persisted.
type QuestionCreateDTO struct {
	Type        string          `json:"type" binding:"required,oneof=single_choice true_false multiple_choice gap_fill matching ordering numeric short_answer"`
	Prompt      string          `json:"prompt" binding:"required"`
	Options     []OptionDTO     `json:"options,omitempty" binding:"omitempty,dive"`
	AnswerKey   json.RawMessage `json:"answer_key" binding:"required"`
	Points      float64         `json:"points" binding:"required,gt=0"`
	OrderInTest int             `json:"order_in_test" binding:"required,min=1"`
}

type OptionDTO struct {
	ID    string `json:"id" binding:"required"`
	Label string `json:"label" binding:"required"`
}

// TestCreateDTO is the admin payload for creating a test with its questions.
type TestCreateDTO struct {
	Title            string              `json:"title" binding:"required"`
	Description      string              `json:"description,omitempty"`
	Status           string              `json:"status,omitempty" binding:"omitempty,oneof=draft published archived"`
	TimeLimitMinutes int                 `json:"time_limit_minutes" binding:"min=0"`
	PassingScore     float64             `json:"passing_score" binding:"min=0,max=100"`
	MaxAttempts      *int                `json:"max_attempts,omitempty" binding:"omitempty,gt=0"`
	Questions        []QuestionCreateDTO `json:"questions" binding:"required,min=1,dive"`
}

// TaskQuestionDTO is one sub-question of a task.
type TaskQuestionDTO struct {
	ID     string `json:"id" binding:"required"`
	Type   string `json:"type" binding:"required"`
	Prompt string `json:"prompt" binding:"required"`
}

// TaskCreateDTO is the admin payload for creating a task. AutoCheckConfig, if
// present, must parse as an evaluator auto-check config.
type TaskCreateDTO struct {
	Title                string            `json:"title" binding:"required"`
	Description          string            `json:"description,omitempty"`
	MaxScore             float64           `json:"max_score" binding:"required,gt=0"`
	DueAt                *time.Time        `json:"due_at,omitempty"`
	AllowLateSubmissions bool              `json:"allow_late_submissions"`
	LatePenaltyPercent   float64           `json:"late_penalty_percent" binding:"min=0,max=100"`
	MaxAttempts          *int              `json:"max_attempts,omitempty" binding:"omitempty,gt=0"`
	Questions            []TaskQuestionDTO `json:"questions,omitempty" binding:"omitempty,dive"`
	AutoCheckConfig      json.RawMessage   `json:"auto_check_config,omitempty"`
}

// GradeSubmissionDTO is the manual-grading payload.
type GradeSubmissionDTO struct {
	Score    float64 `json:"score" binding:"min=0"`
	Feedback string  `json:"feedback,omitempty"`
}
