package repository

import (
	"github.com/nvkhoa/eduassess/internal/model"
	"gorm.io/gorm"
)

type TaskSubmissionRepository interface {
	Create(submission *model.TaskSubmission) error
	FindByID(id uint) (*model.TaskSubmission, error)
	FindByIDWithTask(id uint) (*model.TaskSubmission, error)
	FindAllByTaskAndStudent(taskID uint, studentID string) ([]model.TaskSubmission, error)
	CountByTaskAndStudent(taskID uint, studentID string) (int64, error)
	// ApplyGrade records a manual grade, but only while the submission is in
	// the submitted state. A concurrent second grader finds zero matching rows
	// and gets false; no lock needed.
	ApplyGrade(submission *model.TaskSubmission) (bool, error)
}

type taskSubmissionRepository struct {
	db *gorm.DB
}

func NewTaskSubmissionRepository(db *gorm.DB) TaskSubmissionRepository {
	return &taskSubmissionRepository{db: db}
}

func (r *taskSubmissionRepository) Create(submission *model.TaskSubmission) error {
	return r.db.Create(submission).Error
}

func (r *taskSubmissionRepository) FindByID(id uint) (*model.TaskSubmission, error) {
	var submission model.TaskSubmission
	if err := r.db.First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *taskSubmissionRepository) FindByIDWithTask(id uint) (*model.TaskSubmission, error) {
	var submission model.TaskSubmission
	if err := r.db.Preload("Task").First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *taskSubmissionRepository) FindAllByTaskAndStudent(taskID uint, studentID string) ([]model.TaskSubmission, error) {
	var submissions []model.TaskSubmission
	err := r.db.
		Where("task_id = ? AND student_id = ?", taskID, studentID).
		Order("attempt_number ASC").
		Find(&submissions).Error
	return submissions, err
}

func (r *taskSubmissionRepository) CountByTaskAndStudent(taskID uint, studentID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.TaskSubmission{}).
		Where("task_id = ? AND student_id = ?", taskID, studentID).
		Count(&count).Error
	return count, err
}

func (r *taskSubmissionRepository) ApplyGrade(submission *model.TaskSubmission) (bool, error) {
	res := r.db.Model(&model.TaskSubmission{}).
		Where("id = ? AND status = ?", submission.ID, model.SubmissionSubmitted).
		Updates(map[string]any{
			"status":      model.SubmissionGraded,
			"score":       submission.Score,
			"final_score": submission.FinalScore,
			"graded_at":   submission.GradedAt,
			"grader_id":   submission.GraderID,
			"feedback":    submission.Feedback,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
