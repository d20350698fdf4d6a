package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nvkhoa/eduassess/internal/controller"
	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/service"
	"github.com/rs/zerolog/log"
)

type TaskSubmissionController struct {
	submissionService service.TaskSubmissionService
}

func NewTaskSubmissionController(ts service.TaskSubmissionService) *TaskSubmissionController {
	return &TaskSubmissionController{submissionService: ts}
}

// SubmitTask godoc
// @Summary (User) Submit work for a task
// @Description Validates completeness, applies the late policy, and auto-grades when the task has an auto-check config.
// @Tags User - Task Submissions
// @Accept json
// @Produce json
// @Param task_id path int true "Task ID"
// @Param X-Student-ID header string true "Student ID"
// @Param submission body dto.TaskSubmitDTO true "Answers and attachments"
// @Success 201 {object} dto.TaskSubmissionDTO
// @Failure 422 {object} dto.ErrorResponse "Incomplete answers"
// @Failure 403 {object} dto.ErrorResponse "Deadline passed or attempts exhausted"
// @Router /tasks/{task_id}/submissions [post]
func (c *TaskSubmissionController) SubmitTask(ctx *gin.Context) {
	taskID, ok := pathID(ctx, "task_id")
	if !ok {
		return
	}
	studentID, ok := controller.StudentID(ctx)
	if !ok {
		return
	}
	var req dto.TaskSubmitDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("SubmitTask: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	submission, err := c.submissionService.SubmitTask(taskID, studentID, req)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, submission)
}

// GetSubmissionDetails godoc
// @Summary (User) Get one of my submissions
// @Tags User - Task Submissions
// @Produce json
// @Param submission_id path int true "Submission ID"
// @Param X-Student-ID header string true "Student ID"
// @Success 200 {object} dto.TaskSubmissionDTO
// @Failure 404 {object} dto.ErrorResponse "Submission not found"
// @Router /task-submissions/{submission_id} [get]
func (c *TaskSubmissionController) GetSubmissionDetails(ctx *gin.Context) {
	submissionID, ok := pathID(ctx, "submission_id")
	if !ok {
		return
	}
	studentID, ok := controller.StudentID(ctx)
	if !ok {
		return
	}
	submission, err := c.submissionService.GetSubmission(submissionID, studentID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, submission)
}

// GetMySubmissions godoc
// @Summary (User) List my submissions for a task
// @Tags User - Task Submissions
// @Produce json
// @Param task_id path int true "Task ID"
// @Param X-Student-ID header string true "Student ID"
// @Success 200 {array} dto.TaskSubmissionDTO
// @Router /tasks/{task_id}/my-submissions [get]
func (c *TaskSubmissionController) GetMySubmissions(ctx *gin.Context) {
	taskID, ok := pathID(ctx, "task_id")
	if !ok {
		return
	}
	studentID, ok := controller.StudentID(ctx)
	if !ok {
		return
	}
	submissions, err := c.submissionService.GetSubmissionsForTask(taskID, studentID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, submissions)
}
