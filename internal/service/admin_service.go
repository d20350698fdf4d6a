package service

import (
	"encoding/json"

	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/evaluator"
	"github.com/nvkhoa/eduassess/internal/model"
	"github.com/nvkhoa/eduassess/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// AdminService creates the content the evaluation core runs against. Every
// answer key and auto-check config is validated here, at authoring time, so
// malformed shapes never reach a student's evaluation.
type AdminService interface {
	CreateTest(req dto.TestCreateDTO) (*dto.TestResponseDTO, error)
	CreateTask(req dto.TaskCreateDTO) (*model.Task, error)
}

type adminService struct {
	testRepo repository.TestRepository
	taskRepo repository.TaskRepository
}

func NewAdminService(testRepo repository.TestRepository, taskRepo repository.TaskRepository) AdminService {
	return &adminService{testRepo: testRepo, taskRepo: taskRepo}
}

func (s *adminService) CreateTest(req dto.TestCreateDTO) (*dto.TestResponseDTO, error) {
	status := model.TestStatus(req.Status)
	if req.Status == "" {
		status = model.TestDraft
	}

	test := model.Test{
		Title:            req.Title,
		Description:      req.Description,
		Status:           status,
		TimeLimitMinutes: req.TimeLimitMinutes,
		PassingScore:     req.PassingScore,
		MaxAttempts:      req.MaxAttempts,
	}

	for _, qdto := range req.Questions {
		qt := evaluator.QuestionType(qdto.Type)
		if _, err := evaluator.ParseKey(qt, qdto.AnswerKey); err != nil {
			return nil, NewValidationError("question %d: invalid answer key: %v", qdto.OrderInTest, err)
		}
		var options datatypes.JSON
		if len(qdto.Options) > 0 {
			raw, err := json.Marshal(qdto.Options)
			if err != nil {
				return nil, NewValidationError("question %d: invalid options: %v", qdto.OrderInTest, err)
			}
			options = raw
		}
		test.Questions = append(test.Questions, model.Question{
			Type:        qdto.Type,
			Prompt:      qdto.Prompt,
			Options:     options,
			AnswerKey:   datatypes.JSON(qdto.AnswerKey),
			Points:      qdto.Points,
			OrderInTest: qdto.OrderInTest,
		})
	}

	if err := s.testRepo.Create(&test); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("CreateTest: failed to persist test")
		return nil, err
	}
	log.Info().Uint("testID", test.ID).Int("questions", len(test.Questions)).Msg("Test created")
	return buildTestResponse(&test), nil
}

func (s *adminService) CreateTask(req dto.TaskCreateDTO) (*model.Task, error) {
	if _, err := evaluator.ParseAutoCheck(req.AutoCheckConfig); err != nil {
		return nil, NewValidationError("invalid auto-check config: %v", err)
	}

	task := model.Task{
		Title:                req.Title,
		Description:          req.Description,
		MaxScore:             req.MaxScore,
		DueAt:                req.DueAt,
		AllowLateSubmissions: req.AllowLateSubmissions,
		LatePenaltyPercent:   req.LatePenaltyPercent,
		MaxAttempts:          req.MaxAttempts,
		AutoCheckConfig:      datatypes.JSON(req.AutoCheckConfig),
	}
	if len(req.Questions) > 0 {
		raw, err := json.Marshal(req.Questions)
		if err != nil {
			return nil, NewValidationError("invalid task questions: %v", err)
		}
		task.Questions = raw
	}

	if err := s.taskRepo.Create(&task); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("CreateTask: failed to persist task")
		return nil, err
	}
	log.Info().Uint("taskID", task.ID).Msg("Task created")
	return &task, nil
}
