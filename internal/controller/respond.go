package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/service"
	"github.com/rs/zerolog/log"
)

// RespondError maps the service error taxonomy onto HTTP statuses so the UI
// can render the specific failure instead of a generic one.
func RespondError(ctx *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		stateErr      *service.StateError
		policyErr     *service.PolicyError
		notFoundErr   *service.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		// 400 is reserved for requests that fail to bind; a request that
		// parsed but carries bad content is unprocessable.
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: validationErr.Message})
	case errors.As(err, &stateErr):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: stateErr.Message})
	case errors.As(err, &policyErr):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: policyErr.Message})
	case errors.As(err, &notFoundErr):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: notFoundErr.Error()})
	default:
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("Unhandled service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal server error"})
	}
}

// StudentID reads the identity the gateway injected. Requests without it are
// rejected; authentication itself happens upstream.
func StudentID(ctx *gin.Context) (string, bool) {
	id := ctx.GetHeader("X-Student-ID")
	if id == "" {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing X-Student-ID header"})
		return "", false
	}
	return id, true
}

// GraderID reads the grader identity for manual-grading calls.
func GraderID(ctx *gin.Context) (string, bool) {
	id := ctx.GetHeader("X-Grader-ID")
	if id == "" {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing X-Grader-ID header"})
		return "", false
	}
	return id, true
}
