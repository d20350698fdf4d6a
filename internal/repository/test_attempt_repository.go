package repository

import (
	"errors"

	"github.com/nvkhoa/eduassess/internal/model"
	"gorm.io/gorm"
)

type TestAttemptRepository interface {
	Create(attempt *model.TestAttempt) error
	FindByID(id uint) (*model.TestAttempt, error)
	FindByIDWithAnswers(id uint) (*model.TestAttempt, error)
	FindAllByTestAndStudent(testID uint, studentID string) ([]model.TestAttempt, error)
	// FindActiveByTestAndStudent returns the one in-progress attempt of the
	// pair, or nil when there is none.
	FindActiveByTestAndStudent(testID uint, studentID string) (*model.TestAttempt, error)
	CountTerminalByTestAndStudent(testID uint, studentID string) (int64, error)
	// FindAllInProgress feeds the timeout sweep; Test is preloaded for the
	// time-limit check.
	FindAllInProgress() ([]model.TestAttempt, error)
	// SaveAnswers replaces the stored answers of an attempt, but only while it
	// is still in progress. Returns false if the attempt already left that state.
	SaveAnswers(attemptID uint, answers []model.AttemptAnswer) (bool, error)
	// Finalize moves an in-progress attempt to the given terminal state and
	// stores its scored answers in one transaction. The status predicate acts
	// as a compare-and-swap: a concurrent duplicate submit finds zero rows and
	// gets false, never a second scoring.
	Finalize(attempt *model.TestAttempt, answers []model.AttemptAnswer) (bool, error)
}

type testAttemptRepository struct {
	db *gorm.DB
}

func NewTestAttemptRepository(db *gorm.DB) TestAttemptRepository {
	return &testAttemptRepository{db: db}
}

func (r *testAttemptRepository) Create(attempt *model.TestAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *testAttemptRepository) FindByID(id uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	if err := r.db.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *testAttemptRepository) FindByIDWithAnswers(id uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := r.db.
		Preload("Test").
		Preload("Answers").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *testAttemptRepository) FindAllByTestAndStudent(testID uint, studentID string) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.db.
		Where("test_id = ? AND student_id = ?", testID, studentID).
		Order("attempt_number ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *testAttemptRepository) FindActiveByTestAndStudent(testID uint, studentID string) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := r.db.
		Where("test_id = ? AND student_id = ? AND status = ?", testID, studentID, model.AttemptInProgress).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *testAttemptRepository) CountTerminalByTestAndStudent(testID uint, studentID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.TestAttempt{}).
		Where("test_id = ? AND student_id = ? AND status <> ?", testID, studentID, model.AttemptInProgress).
		Count(&count).Error
	return count, err
}

func (r *testAttemptRepository) FindAllInProgress() ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.db.
		Preload("Test").
		Where("status = ?", model.AttemptInProgress).
		Find(&attempts).Error
	return attempts, err
}

func (r *testAttemptRepository) SaveAnswers(attemptID uint, answers []model.AttemptAnswer) (bool, error) {
	saved := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var attempt model.TestAttempt
		if err := tx.First(&attempt, attemptID).Error; err != nil {
			return err
		}
		if attempt.Status != model.AttemptInProgress {
			return nil
		}
		if err := tx.Where("test_attempt_id = ?", attemptID).Delete(&model.AttemptAnswer{}).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].ID = 0
			answers[i].TestAttemptID = attemptID
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		saved = true
		return nil
	})
	return saved, err
}

func (r *testAttemptRepository) Finalize(attempt *model.TestAttempt, answers []model.AttemptAnswer) (bool, error) {
	applied := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TestAttempt{}).
			Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
			Updates(map[string]any{
				"status":             attempt.Status,
				"score":              attempt.Score,
				"submitted_at":       attempt.SubmittedAt,
				"time_taken_seconds": attempt.TimeTakenSeconds,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("test_attempt_id = ?", attempt.ID).Delete(&model.AttemptAnswer{}).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].ID = 0
			answers[i].TestAttemptID = attempt.ID
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}
