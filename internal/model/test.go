package model

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	TestDraft     TestStatus = "draft"
	TestPublished TestStatus = "published"
	TestArchived  TestStatus = "archived"
)

type Test struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	Title            string         `json:"title" gorm:"not null"`
	Description      string         `json:"description,omitempty"`
	Status           TestStatus     `json:"status" gorm:"not null;default:'draft'"`
	TimeLimitMinutes int            `json:"time_limit_minutes"` // 0 = untimed
	PassingScore     float64        `json:"passing_score"`      // percentage threshold
	MaxAttempts      *int           `json:"max_attempts,omitempty"` // nil = unlimited
	Questions        []Question     `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
