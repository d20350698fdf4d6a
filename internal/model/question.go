package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Option is one selectable choice of a choice-based question. Options keep the
// order they were authored in.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Question struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	TestID      uint           `json:"test_id" gorm:"not null;index"`
	Type        string         `json:"type" gorm:"not null"` // see evaluator.QuestionType
	Prompt      string         `json:"prompt" gorm:"type:text;not null"`
	Options     datatypes.JSON `json:"options,omitempty"` // ordered []Option, choice types only
	AnswerKey   datatypes.JSON `json:"-" gorm:"not null"` // per-type shape, never sent to students
	Points      float64        `json:"points" gorm:"not null"`
	OrderInTest int            `json:"order_in_test" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
