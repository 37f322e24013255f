package handler

import (
	"errors"
	"net/http"

	"constructlink/internal/workflow"
	"constructlink/pkg/response"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// respondError translates service errors into HTTP statuses. Workflow conflicts
// map to 409 so clients can distinguish "retry with fresh state" from bad input.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		c.JSON(http.StatusBadRequest, response.Fail(err.Error()))
	case errors.Is(err, workflow.ErrUnauthorized):
		c.JSON(http.StatusForbidden, response.Fail(err.Error()))
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Fail(err.Error()))
	case errors.Is(err, workflow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, response.Fail(err.Error()))
	case errors.Is(err, workflow.ErrInsufficientStock):
		c.JSON(http.StatusConflict, response.Fail(err.Error()))
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("unhandled service error")
		c.JSON(http.StatusInternalServerError, response.Fail("Internal server error"))
	}
}
