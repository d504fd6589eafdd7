package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/lunia-systems/lunia-console/internal/pkg/apperrors"
	"github.com/lunia-systems/lunia-console/internal/pkg/logger"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle if there are errors
		if len(c.Errors) == 0 {
			return
		}

		// Get the last error
		err := c.Errors.Last().Err
		var appErr *apperrors.AppError

		if !errors.As(err, &appErr) {
			if reqErr, ok := apperrors.IsRequestError(err); ok {
				// Remote failure surfaced through a one-shot action.
				appErr = apperrors.New(apperrors.ErrUpstream, reqErr.Message, reqErr)
			} else {
				appErr = apperrors.New(apperrors.ErrInternal, err.Error(), err)
			}
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
		}

		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "Internal Server Error", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		c.JSON(appErr.HTTPStatus, appErr)
	}
}
