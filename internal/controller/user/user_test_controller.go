package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nvkhoa/eduassess/internal/controller"
	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/service"
	"github.com/rs/zerolog/log"
)

type UserTestController struct {
	userTestService    service.UserTestService
	testAttemptService service.TestAttemptService
}

func NewUserTestController(uts service.UserTestService, tas service.TestAttemptService) *UserTestController {
	return &UserTestController{
		userTestService:    uts,
		testAttemptService: tas,
	}
}

// GetAllTests godoc
// @Summary (User) List all available tests
// @Tags User - Tests & Attempts
// @Produce json
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /tests [get]
func (c *UserTestController) GetAllTests(ctx *gin.Context) {
	tests, err := c.userTestService.GetAllTests()
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetTestDetails godoc
// @Summary (User) Get details of a specific test
// @Description Full test details with questions (answer keys stripped), for rendering an attempt.
// @Tags User - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id} [get]
func (c *UserTestController) GetTestDetails(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	test, err := c.userTestService.GetTestDetails(testID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, test)
}

// StartTestAttempt godoc
// @Summary (User) Start a new test attempt
// @Description Creates an in-progress attempt. Rejected when the test is unpublished, attempts are exhausted, or another attempt is still active.
// @Tags User - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Param X-Student-ID header string true "Student ID"
// @Success 201 {object} dto.TestAttemptDTO
// @Failure 403 {object} dto.ErrorResponse "Policy violation (unpublished, attempts exhausted)"
// @Failure 409 {object} dto.ErrorResponse "An attempt is already in progress"
// @Router /tests/{test_id}/attempts [post]
func (c *UserTestController) StartTestAttempt(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	studentID, ok := controller.StudentID(ctx)
	if !ok {
		return
	}
	attempt, err := c.testAttemptService.StartAttempt(testID, studentID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, attempt)
}

// SaveAttemptAnswers godoc
// @Summary (User) Save in-progress answers
// @Description Persists the student's current answers server-side. These are what a timeout will score.
// @Tags User - Tests & Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param X-Student-ID header string true "Student ID"
// @Param answers body dto.AttemptAnswersDTO true "Answers keyed by question id"
// @Success 200 {object} dto.TestAttemptDTO
// @Failure 409 {object} dto.ErrorResponse "Attempt is no longer active"
// @Router /test-attempts/{attempt_id}/answers [put]
func (c *UserTestController) SaveAttemptAnswers(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	studentID, ok := controller.StudentID(ctx)
	if !ok {
		return
	}
	var req dto.AttemptAnswersDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("SaveAttemptAnswers: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	attempt, err := c.testAttemptService.SaveAnswers(attemptID, studentID, req)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// SubmitTestAttempt godoc
// @Summary (User) Submit a test attempt for scoring
// @Description Scores every question, aggregates the percentage score and finalizes the attempt. Duplicate submits return the stored result.
// @Tags User - Tests & Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param X-Student-ID header string true "Student ID"
// @Param answers body dto.AttemptAnswersDTO true "Answers keyed by question id"
// @Success 200 {object} dto.TestAttemptDTO
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /test-attempts/{attempt_id}/submit [post]
func (c *UserTestController) SubmitTestAttempt(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	studentID, ok := controller.StudentID(ctx)
	if !ok {
		return
	}
	var req dto.AttemptAnswersDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("SubmitTestAttempt: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	attempt, err := c.testAttemptService.SubmitAttempt(attemptID, studentID, req)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// GetTestAttemptDetails godoc
// @Summary (User) Get one attempt with per-question detail
// @Tags User - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param X-Student-ID header string true "Student ID"
// @Success 200 {object} dto.TestAttemptDTO
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /test-attempts/{attempt_id} [get]
func (c *UserTestController) GetTestAttemptDetails(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	studentID, ok := controller.StudentID(ctx)
	if !ok {
		return
	}
	attempt, err := c.testAttemptService.GetAttempt(attemptID, studentID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// GetMyTestAttempts godoc
// @Summary (User) List my attempts for a test
// @Description All attempts of the calling student for the test, with best score and attempts remaining.
// @Tags User - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Param X-Student-ID header string true "Student ID"
// @Success 200 {object} dto.TestAttemptListDTO
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id}/my-attempts [get]
func (c *UserTestController) GetMyTestAttempts(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	studentID, ok := controller.StudentID(ctx)
	if !ok {
		return
	}
	attempts, err := c.testAttemptService.GetAttemptsForTest(testID, studentID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(id), true
}
