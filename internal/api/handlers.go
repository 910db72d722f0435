package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"starboard-bot/internal/security"
	"starboard-bot/internal/starboard"
)

type createStarboardRequest struct {
	ChannelID  string `json:"channel_id" binding:"required"`
	GuildID    string `json:"guild_id"`
	Emoji      string `json:"emoji"`
	Threshold  int    `json:"threshold"`
	SelfStar   *bool  `json:"self_star"`
	StarBotMsg *bool  `json:"star_bot_msg"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"starboards": len(s.registry.All()),
	})
}

func (s *Server) listStarboards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"starboards": s.registry.All()})
}

func (s *Server) createStarboard(c *gin.Context) {
	var req createStarboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}

	if _, err := security.ParseSnowflake(req.ChannelID); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_channel_id", err.Error()))
		return
	}
	if req.GuildID != "" {
		if _, err := security.ParseSnowflake(req.GuildID); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid_guild_id", err.Error()))
			return
		}
	}
	if req.Threshold < 0 {
		c.JSON(http.StatusBadRequest, errorBody("invalid_threshold", "threshold must be >= 1"))
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	cfg, err := s.registry.Register(ctx, req.ChannelID, req.GuildID, starboard.RegisterOptions{
		Emoji:      req.Emoji,
		Threshold:  req.Threshold,
		SelfStar:   req.SelfStar,
		StarBotMsg: req.StarBotMsg,
	})
	if err != nil {
		if errors.Is(err, starboard.ErrDuplicateStarboard) {
			c.JSON(http.StatusConflict, errorBody("duplicate_starboard", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorBody("register_failed", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"starboard": cfg})
}

func (s *Server) deleteStarboard(c *gin.Context) {
	channelID := c.Param("channel_id")
	if _, err := security.ParseSnowflake(channelID); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_channel_id", err.Error()))
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	cfg, err := s.registry.Unregister(ctx, channelID)
	if err != nil {
		if errors.Is(err, starboard.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorBody("not_found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorBody("unregister_failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"starboard": cfg})
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}
