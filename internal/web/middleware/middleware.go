package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MiddlewareManager struct {
	jwtSecret []byte
	logger    *zap.Logger
}

// NewMiddlewareManager creates the shared middlewares. An empty secret
// disables authentication.
func NewMiddlewareManager(jwtSecret string, logger *zap.Logger) *MiddlewareManager {
	return &MiddlewareManager{
		jwtSecret: []byte(jwtSecret),
		logger:    logger.Named("http"),
	}
}

// RequestLogger logs one line per request
func (m *MiddlewareManager) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
