package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/nvkhoa/eduassess/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database with the full schema. The pure-Go
// sqlite driver keeps these tests free of cgo and external services.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.Test{},
		&model.Question{},
		&model.TestAttempt{},
		&model.AttemptAnswer{},
		&model.Task{},
		&model.TaskSubmission{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
