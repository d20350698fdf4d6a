package service

import (
	"encoding/json"
	"errors"

	"github.com/jinzhu/copier"
	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/model"
	"github.com/nvkhoa/eduassess/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// UserTestService is the read-only catalog surface students browse before
// attempting a test. Answer keys never leave this layer.
type UserTestService interface {
	GetAllTests() ([]dto.TestSummaryDTO, error)
	GetTestDetails(testID uint) (*dto.TestResponseDTO, error)
}

type userTestService struct {
	testRepo repository.TestRepository
}

func NewUserTestService(testRepo repository.TestRepository) UserTestService {
	return &userTestService{testRepo: testRepo}
}

func (s *userTestService) GetAllTests() ([]dto.TestSummaryDTO, error) {
	testsWithCount, err := s.testRepo.FindAllWithQuestionCount()
	if err != nil {
		log.Error().Err(err).Msg("GetAllTests: repository error")
		return nil, err
	}

	dtos := make([]dto.TestSummaryDTO, 0, len(testsWithCount))
	for _, twc := range testsWithCount {
		dtos = append(dtos, dto.TestSummaryDTO{
			ID:            twc.Test.ID,
			Title:         twc.Test.Title,
			Description:   twc.Test.Description,
			Status:        string(twc.Test.Status),
			QuestionCount: twc.QuestionCount,
			CreatedAt:     twc.Test.CreatedAt,
		})
	}
	return dtos, nil
}

func (s *userTestService) GetTestDetails(testID uint) (*dto.TestResponseDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("test", testID)
		}
		log.Error().Err(err).Uint("testID", testID).Msg("GetTestDetails: repository error")
		return nil, err
	}
	return buildTestResponse(test), nil
}

func buildTestResponse(test *model.Test) *dto.TestResponseDTO {
	var resp dto.TestResponseDTO
	if err := copier.Copy(&resp, test); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("buildTestResponse: copier error")
	}
	resp.Status = string(test.Status)

	// Copier maps the scalar fields; options need the raw-JSON passthrough and
	// the answer key must stay behind.
	resp.Questions = make([]dto.QuestionResponseDTO, 0, len(test.Questions))
	for _, q := range test.Questions {
		resp.Questions = append(resp.Questions, dto.QuestionResponseDTO{
			ID:          q.ID,
			TestID:      q.TestID,
			Type:        q.Type,
			Prompt:      q.Prompt,
			Options:     json.RawMessage(q.Options),
			Points:      q.Points,
			OrderInTest: q.OrderInTest,
		})
	}
	return &resp
}
