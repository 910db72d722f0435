package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.log.Info("http_request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("rate_limited", "too many requests"))
			return
		}
		c.Next()
	}
}

// adminAuthMiddleware guards mutating routes behind ADMIN_SECRET_KEY. With no
// key configured, mutations are rejected outright rather than left open.
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminKey == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody("admin_disabled", "no admin key configured"))
			return
		}

		provided := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("unauthorized", "invalid admin key"))
			return
		}
		c.Next()
	}
}
