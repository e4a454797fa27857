package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/pkg/logger"
	"github.com/gogotex/todo-api/pkg/metrics"
)

// ErrorTranslator renders the last error recorded by a downstream handler when
// it is an *apperr.Error. Anything else is left for CatchAll.
//
// Register it after CatchAll so that it runs first on the way out.
func ErrorTranslator() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		e, ok := apperr.As(c.Errors.Last().Err)
		if !ok {
			return
		}
		body := gin.H{"code": e.Code, "message": e.Message}
		if e.Kind == apperr.KindValidation {
			body["errors"] = e.Details
		}
		metrics.HTTPErrors.WithLabelValues(e.Code).Inc()
		c.JSON(e.HTTPStatus(), body)
	}
}

// CatchAll renders every error nobody else rendered as a 500 and logs it.
// Panics are recovered the same way.
func CatchAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				internalError(c, fmt.Errorf("panic: %v", r))
				c.Abort()
			}
		}()
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		if !c.Writer.Written() {
			internalError(c, c.Errors.Last().Err)
			return
		}
		// already rendered; still log unexpected failures
		for _, ge := range c.Errors {
			if _, ok := apperr.As(ge.Err); !ok {
				requestLogger(c).Error("request error", "error", ge.Err)
			}
		}
	}
}

func internalError(c *gin.Context, err error) {
	requestLogger(c).Error("unhandled error", "error", err)
	metrics.HTTPErrors.WithLabelValues(apperr.CodeInternalError).Inc()
	if !c.Writer.Written() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperr.CodeInternalError,
			"message": "Internal server error.",
		})
	}
}

func requestLogger(c *gin.Context) *slog.Logger {
	return logger.With(
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString(RequestIDKey),
	)
}
