package dto

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// QuestionResponseDTO is the student-facing view of a question. It never
// carries the answer key.
type QuestionResponseDTO struct {
	ID          uint            `json:"id"`
	TestID      uint            `json:"test_id"`
	Type        string          `json:"type"`
	Prompt      string          `json:"prompt"`
	Options     json.RawMessage `json:"options,omitempty"`
	Points      float64         `json:"points"`
	OrderInTest int             `json:"order_in_test"`
}

type TestResponseDTO struct {
	ID               uint                  `json:"id"`
	Title            string                `json:"title"`
	Description      string                `json:"description,omitempty"`
	Status           string                `json:"status"`
	TimeLimitMinutes int                   `json:"time_limit_minutes"`
	PassingScore     float64               `json:"passing_score"`
	MaxAttempts      *int                  `json:"max_attempts,omitempty"`
	Questions        []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

type TestSummaryDTO struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// AttemptAnswerDTO is the per-question detail of a scored attempt.
type AttemptAnswerDTO struct {
	QuestionID     uint            `json:"question_id"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	IsCorrect      *bool           `json:"is_correct,omitempty"`
	PointsEarned   float64         `json:"points_earned"`
	PointsPossible float64         `json:"points_possible"`
}

type TestAttemptDTO struct {
	ID               uint               `json:"id"`
	TestID           uint               `json:"test_id"`
	TestTitle        string             `json:"test_title,omitempty"`
	StudentID        string             `json:"student_id"`
	AttemptNumber    int                `json:"attempt_number"`
	Status           string             `json:"status"`
	StartedAt        time.Time          `json:"started_at"`
	SubmittedAt      *time.Time         `json:"submitted_at,omitempty"`
	TimeTakenSeconds int                `json:"time_taken_seconds"`
	Score            *float64           `json:"score,omitempty"`
	Passed           *bool              `json:"passed,omitempty"`
	Answers          []AttemptAnswerDTO `json:"answers,omitempty"`
}

// TestAttemptListDTO answers the "how did I do so far" query: all attempts of
// a (student, test) pair plus the derived numbers the UI shows.
type TestAttemptListDTO struct {
	Attempts          []TestAttemptDTO `json:"attempts"`
	BestScore         *float64         `json:"best_score,omitempty"`
	AttemptsRemaining *int             `json:"attempts_remaining,omitempty"` // absent = unlimited
}

type TaskSubmissionDTO struct {
	ID            uint            `json:"id"`
	TaskID        uint            `json:"task_id"`
	StudentID     string          `json:"student_id"`
	AttemptNumber int             `json:"attempt_number"`
	Answers       json.RawMessage `json:"answers,omitempty"`
	Attachments   json.RawMessage `json:"attachments,omitempty"`
	Score         *float64        `json:"score,omitempty"`
	FinalScore    *float64        `json:"final_score,omitempty"`
	IsLate        bool            `json:"is_late"`
	Status        string          `json:"status"`
	SubmittedAt   time.Time       `json:"submitted_at"`
	GradedAt      *time.Time      `json:"graded_at,omitempty"`
	GraderID      *string         `json:"grader_id,omitempty"`
	Feedback      string          `json:"feedback,omitempty"`
}
