package gin

import (
	"github.com/gin-gonic/gin"
	"github.com/uniedit/checkout/internal/shared/logger"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
	"go.uber.org/zap"
)

// handleError maps domain errors to HTTP responses. Internal failures are
// logged with their cause and reported without it.
func handleError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.StatusCode >= 500 {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(appErr.StatusCode, appErr.ToResponse())
}

func badRequest(c *gin.Context, message string) {
	handleError(c, apperrors.InvalidInput(message))
}
