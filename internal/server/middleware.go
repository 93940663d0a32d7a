package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogMiddleware logs one structured line per request.
func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	access := log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}
		if c.Writer.Status() >= 500 {
			access.Error("request", fields...)
			return
		}
		access.Info("request", fields...)
	}
}
