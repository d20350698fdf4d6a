package service

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/evaluator"
	"github.com/nvkhoa/eduassess/internal/model"
	"github.com/nvkhoa/eduassess/internal/notify"
	"github.com/nvkhoa/eduassess/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TaskSubmissionService manages untimed task submissions: completeness
// validation, late policy, the auto-check path, and manual grading.
type TaskSubmissionService interface {
	SubmitTask(taskID uint, studentID string, req dto.TaskSubmitDTO) (*dto.TaskSubmissionDTO, error)
	// GradeSubmission records a manual grade. Valid only from SUBMITTED;
	// grading is not re-appliable.
	GradeSubmission(submissionID uint, graderID string, req dto.GradeSubmissionDTO) (*dto.TaskSubmissionDTO, error)
	GetSubmission(submissionID uint, studentID string) (*dto.TaskSubmissionDTO, error)
	GetSubmissionsForTask(taskID uint, studentID string) ([]dto.TaskSubmissionDTO, error)
}

type taskSubmissionService struct {
	taskRepo       repository.TaskRepository
	submissionRepo repository.TaskSubmissionRepository
	engine         *evaluator.Engine
	scoring        ScoringService
	policy         PolicyService
	notifier       notify.Notifier
	now            func() time.Time
}

func NewTaskSubmissionService(
	taskRepo repository.TaskRepository,
	submissionRepo repository.TaskSubmissionRepository,
	engine *evaluator.Engine,
	scoring ScoringService,
	policy PolicyService,
	notifier notify.Notifier,
) TaskSubmissionService {
	return &taskSubmissionService{
		taskRepo:       taskRepo,
		submissionRepo: submissionRepo,
		engine:         engine,
		scoring:        scoring,
		policy:         policy,
		notifier:       notifier,
		now:            time.Now,
	}
}

func (s *taskSubmissionService) SubmitTask(taskID uint, studentID string, req dto.TaskSubmitDTO) (*dto.TaskSubmissionDTO, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("task", taskID)
		}
		return nil, err
	}

	if err := validateTaskAnswers(task, req.Answers); err != nil {
		return nil, err
	}

	now := s.now()
	used, err := s.submissionRepo.CountByTaskAndStudent(taskID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.EnsureCanSubmitTask(task, int(used), now); err != nil {
		return nil, err
	}

	answersRaw, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, NewValidationError("invalid answers payload: %v", err)
	}
	submission := &model.TaskSubmission{
		TaskID:        taskID,
		StudentID:     studentID,
		AttemptNumber: int(used) + 1,
		Answers:       answersRaw,
		IsLate:        s.policy.IsLate(task.DueAt, now),
		Status:        model.SubmissionSubmitted,
		SubmittedAt:   now,
	}
	if len(req.Attachments) > 0 {
		attachmentsRaw, err := json.Marshal(req.Attachments)
		if err != nil {
			return nil, NewValidationError("invalid attachments payload: %v", err)
		}
		submission.Attachments = attachmentsRaw
	}

	autoChecked := s.autoCheck(task, submission, req.Answers, now)

	if err := s.submissionRepo.Create(submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewStateError("submission %d for task %d already exists", submission.AttemptNumber, taskID)
		}
		log.Error().Err(err).Uint("taskID", taskID).Str("studentID", studentID).Msg("SubmitTask: failed to persist submission")
		return nil, err
	}

	log.Info().Uint("submissionID", submission.ID).Uint("taskID", taskID).Str("studentID", studentID).
		Int("attemptNumber", submission.AttemptNumber).Bool("late", submission.IsLate).
		Bool("autoChecked", autoChecked).Msg("Task submission recorded")

	s.notifier.Publish(notify.Event{
		EventType:   notify.EventSubmissionCreated,
		StudentID:   studentID,
		RelatedID:   submission.ID,
		RelatedType: "task_submission",
	})
	if autoChecked {
		s.notifier.Publish(notify.Event{
			EventType:   notify.EventSubmissionGraded,
			StudentID:   studentID,
			RelatedID:   submission.ID,
			RelatedType: "task_submission",
		})
	}
	return buildSubmissionDTO(submission), nil
}

func (s *taskSubmissionService) GradeSubmission(submissionID uint, graderID string, req dto.GradeSubmissionDTO) (*dto.TaskSubmissionDTO, error) {
	submission, err := s.submissionRepo.FindByIDWithTask(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("submission", submissionID)
		}
		return nil, err
	}
	if submission.Status != model.SubmissionSubmitted {
		return nil, NewStateError("submission %d is %s, only submitted work can be graded", submissionID, submission.Status)
	}
	if req.Score < 0 || req.Score > submission.Task.MaxScore {
		return nil, NewValidationError("score %.2f is outside [0, %.2f]", req.Score, submission.Task.MaxScore)
	}

	now := s.now()
	final := req.Score
	if submission.IsLate {
		final = s.scoring.ApplyLatePenalty(req.Score, submission.Task.LatePenaltyPercent)
	}
	submission.Score = &req.Score
	submission.FinalScore = &final
	submission.GradedAt = &now
	submission.GraderID = &graderID
	submission.Feedback = req.Feedback

	applied, err := s.submissionRepo.ApplyGrade(submission)
	if err != nil {
		log.Error().Err(err).Uint("submissionID", submissionID).Msg("GradeSubmission: failed to persist grade")
		return nil, err
	}
	if !applied {
		// Another grader got there first; the guard is the state check, not a lock.
		return nil, NewStateError("submission %d is no longer awaiting grading", submissionID)
	}
	submission.Status = model.SubmissionGraded

	log.Info().Uint("submissionID", submissionID).Str("graderID", graderID).
		Float64("score", req.Score).Float64("finalScore", final).Msg("Submission graded")
	s.notifier.Publish(notify.Event{
		EventType:   notify.EventSubmissionGraded,
		StudentID:   submission.StudentID,
		RelatedID:   submission.ID,
		RelatedType: "task_submission",
	})
	return buildSubmissionDTO(submission), nil
}

func (s *taskSubmissionService) GetSubmission(submissionID uint, studentID string) (*dto.TaskSubmissionDTO, error) {
	submission, err := s.submissionRepo.FindByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("submission", submissionID)
		}
		return nil, err
	}
	if submission.StudentID != studentID {
		return nil, NewNotFoundError("submission", submissionID)
	}
	return buildSubmissionDTO(submission), nil
}

func (s *taskSubmissionService) GetSubmissionsForTask(taskID uint, studentID string) ([]dto.TaskSubmissionDTO, error) {
	submissions, err := s.submissionRepo.FindAllByTaskAndStudent(taskID, studentID)
	if err != nil {
		return nil, err
	}
	dtos := make([]dto.TaskSubmissionDTO, 0, len(submissions))
	for i := range submissions {
		dtos = append(dtos, *buildSubmissionDTO(&submissions[i]))
	}
	return dtos, nil
}

// autoCheck grades the submission immediately when the task defines an
// auto-check config, moving it straight to GRADED. A config that fails to
// parse (it was validated at authoring time, so this means corrupted data) is
// logged and leaves the submission on the manual path rather than failing it.
func (s *taskSubmissionService) autoCheck(task *model.Task, submission *model.TaskSubmission, answers map[string]json.RawMessage, now time.Time) bool {
	cfg, err := evaluator.ParseAutoCheck(task.AutoCheckConfig)
	if err != nil {
		log.Warn().Err(err).Uint("taskID", task.ID).Msg("SubmitTask: unusable auto-check config, falling back to manual grading")
		return false
	}
	if cfg == nil {
		return false
	}

	earned, possible := 0.0, 0.0
	for _, q := range cfg.Questions {
		res := s.engine.Evaluate(evaluator.Spec{
			Type:   q.Type,
			Key:    q.Key,
			Points: q.Points,
		}, answers[q.ID])
		earned += res.PointsEarned
		possible += res.PointsPossible
	}

	score := s.scoring.Scale(earned, possible, task.MaxScore)
	final := score
	if submission.IsLate {
		final = s.scoring.ApplyLatePenalty(score, task.LatePenaltyPercent)
	}
	submission.Score = &score
	submission.FinalScore = &final
	submission.Status = model.SubmissionGraded
	submission.GradedAt = &now // GraderID stays nil: graded by the system
	return true
}

// validateTaskAnswers enforces completeness before anything is persisted:
// every sub-question needs a non-empty answer, or, for tasks without
// sub-questions, a single non-empty free-text answer under "text".
func validateTaskAnswers(task *model.Task, answers map[string]json.RawMessage) error {
	var questions []model.TaskQuestion
	if len(task.Questions) > 0 {
		if err := json.Unmarshal(task.Questions, &questions); err != nil {
			log.Warn().Err(err).Uint("taskID", task.ID).Msg("SubmitTask: unreadable task questions, requiring free-text answer")
		}
	}

	if len(questions) == 0 {
		if !answerProvided("short_answer", answers["text"]) {
			return NewValidationError("a non-empty text answer is required")
		}
		return nil
	}
	for _, q := range questions {
		if !answerProvided(q.Type, answers[q.ID]) {
			return NewValidationError("question %q requires an answer", q.ID)
		}
	}
	return nil
}

// answerProvided checks the per-type notion of "non-empty": a non-empty set
// for multi-select types, a non-empty string (or any number) otherwise.
func answerProvided(questionType string, raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	switch evaluator.QuestionType(questionType) {
	case evaluator.MultipleChoice, evaluator.Ordering, evaluator.GapFill:
		var items []json.RawMessage
		return json.Unmarshal(raw, &items) == nil && len(items) > 0
	case evaluator.Matching:
		var pairs map[string]json.RawMessage
		return json.Unmarshal(raw, &pairs) == nil && len(pairs) > 0
	case evaluator.Numeric:
		var f float64
		if json.Unmarshal(raw, &f) == nil {
			return true
		}
		var str string
		return json.Unmarshal(raw, &str) == nil && len(str) > 0
	default:
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return false
		}
		return len(str) > 0
	}
}

func buildSubmissionDTO(submission *model.TaskSubmission) *dto.TaskSubmissionDTO {
	return &dto.TaskSubmissionDTO{
		ID:            submission.ID,
		TaskID:        submission.TaskID,
		StudentID:     submission.StudentID,
		AttemptNumber: submission.AttemptNumber,
		Answers:       json.RawMessage(submission.Answers),
		Attachments:   json.RawMessage(submission.Attachments),
		Score:         submission.Score,
		FinalScore:    submission.FinalScore,
		IsLate:        submission.IsLate,
		Status:        string(submission.Status),
		SubmittedAt:   submission.SubmittedAt,
		GradedAt:      submission.GradedAt,
		GraderID:      submission.GraderID,
		Feedback:      submission.Feedback,
	}
}
