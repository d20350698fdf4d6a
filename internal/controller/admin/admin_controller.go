package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nvkhoa/eduassess/internal/controller"
	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminController struct {
	adminService      service.AdminService
	submissionService service.TaskSubmissionService
}

func NewAdminController(as service.AdminService, ts service.TaskSubmissionService) *AdminController {
	return &AdminController{adminService: as, submissionService: ts}
}

// CreateTest godoc
// @Summary (Admin) Create a test with its questions
// @Description Answer keys are validated per question type; malformed keys reject the whole request.
// @Tags Admin
// @Accept json
// @Produce json
// @Param test body dto.TestCreateDTO true "Test definition"
// @Success 201 {object} dto.TestResponseDTO
// @Failure 422 {object} dto.ErrorResponse "Malformed test or answer key"
// @Router /admin/tests [post]
func (c *AdminController) CreateTest(ctx *gin.Context) {
	var req dto.TestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("CreateTest: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	test, err := c.adminService.CreateTest(req)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, test)
}

// CreateTask godoc
// @Summary (Admin) Create a task
// @Description The optional auto-check config is validated up front so malformed shapes never reach evaluation.
// @Tags Admin
// @Accept json
// @Produce json
// @Param task body dto.TaskCreateDTO true "Task definition"
// @Success 201 {object} model.Task
// @Failure 422 {object} dto.ErrorResponse "Malformed task or auto-check config"
// @Router /admin/tasks [post]
func (c *AdminController) CreateTask(ctx *gin.Context) {
	var req dto.TaskCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("CreateTask: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	task, err := c.adminService.CreateTask(req)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, task)
}

// GradeSubmission godoc
// @Summary (Admin) Manually grade a task submission
// @Description Valid only for submitted work; grading is not re-appliable. The late penalty is applied to the final score automatically.
// @Tags Admin
// @Accept json
// @Produce json
// @Param submission_id path int true "Submission ID"
// @Param X-Grader-ID header string true "Grader ID"
// @Param grade body dto.GradeSubmissionDTO true "Score and feedback"
// @Success 200 {object} dto.TaskSubmissionDTO
// @Failure 422 {object} dto.ErrorResponse "Score out of range"
// @Failure 409 {object} dto.ErrorResponse "Submission not awaiting grading"
// @Router /admin/submissions/{submission_id}/grade [post]
func (c *AdminController) GradeSubmission(ctx *gin.Context) {
	raw := ctx.Param("submission_id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid submission_id format"})
		return
	}
	graderID, ok := controller.GraderID(ctx)
	if !ok {
		return
	}
	var req dto.GradeSubmissionDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("GradeSubmission: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	submission, err := c.submissionService.GradeSubmission(uint(id), graderID, req)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, submission)
}
