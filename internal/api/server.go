// Package api exposes the admin HTTP surface: starboard CRUD and health.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"starboard-bot/internal/config"
	"starboard-bot/internal/security"
	"starboard-bot/internal/starboard"
)

type Server struct {
	log      *slog.Logger
	cfg      config.Config
	registry *starboard.Registry
	router   *gin.Engine
	limiter  *security.LimiterStore
}

func NewServer(log *slog.Logger, cfg config.Config, registry *starboard.Registry) *Server {
	s := &Server{
		log:      log,
		cfg:      cfg,
		registry: registry,
		router:   gin.New(),
		limiter:  security.NewLimiterStore(rate.Limit(5), 10, 10*time.Minute),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/starboards", s.listStarboards)

		admin := v1.Group("/starboards")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.POST("", s.createStarboard)
			admin.DELETE("/:channel_id", s.deleteStarboard)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
