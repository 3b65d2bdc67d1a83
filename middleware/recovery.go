package middleware

import (
	"errors"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 carrying the trace id. A panic
// caused by the client hanging up mid-stream is logged at warn and nothing
// more is written.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			trace := GetTraceID(c)
			if err, ok := r.(error); ok && (errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)) {
				log.Warn("client went away", zap.String("trace_id", trace), zap.String("path", c.Request.URL.Path), zap.Error(err))
				c.Abort()
				return
			}
			log.Error("panic recovered",
				zap.Any("panic", r),
				zap.String("trace_id", trace),
				zap.String("route", c.FullPath()),
				zap.Stack("stack"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal server error",
				"trace_id": trace,
			})
		}()
		c.Next()
	}
}
