package gamification

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/financebro/backend/internal/middleware"
	"github.com/financebro/backend/internal/models"
	"github.com/financebro/backend/pkg/response"
)

// Handler handles streak, leaderboard and challenge HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a gamification handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes mounts the gamification routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/streaks/me", h.MyStreak)
	rg.GET("/leaderboard", h.Leaderboard)
	rg.POST("/activity", h.LogActivity)
	rg.GET("/challenges", h.ListChallenges)
	rg.POST("/challenges/:id/join", h.JoinChallenge)
}

// RegisterAdminRoutes mounts the admin-only routes; the group must carry the
// role middleware.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/challenges", h.CreateChallenge)
}

// MyStreak handles GET /streaks/me.
func (h *Handler) MyStreak(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	streak, err := h.repo.GetStreak(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get streak", zap.Error(err))
		response.Internal(c, "failed to load streak")
		return
	}
	response.OK(c, streak)
}

// Leaderboard handles GET /leaderboard?limit=N.
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit > 100 {
		limit = 100
	}
	entries, err := h.repo.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard", zap.Error(err))
		response.Internal(c, "failed to load leaderboard")
		return
	}
	response.OK(c, entries)
}

// LogActivityRequest is the body for POST /activity.
type LogActivityRequest struct {
	ActivityType string `json:"activity_type" binding:"required,oneof=interview login challenge"`
}

// LogActivity handles POST /activity.
func (h *Handler) LogActivity(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req LogActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	streak, err := h.repo.LogActivity(c.Request.Context(), userID, ActivityType(req.ActivityType), time.Now())
	if err != nil {
		h.logger.Error("log activity", zap.Error(err))
		response.Internal(c, "failed to log activity")
		return
	}
	response.OK(c, streak)
}

// ListChallenges handles GET /challenges.
func (h *Handler) ListChallenges(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	challenges, err := h.repo.ListChallenges(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list challenges", zap.Error(err))
		response.Internal(c, "failed to list challenges")
		return
	}
	response.OK(c, challenges)
}

// JoinChallenge handles POST /challenges/:id/join.
func (h *Handler) JoinChallenge(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	challengeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid challenge id")
		return
	}
	if err := h.repo.JoinChallenge(c.Request.Context(), userID, challengeID); err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			response.NotFound(c, "challenge not found")
			return
		}
		h.logger.Error("join challenge", zap.Error(err))
		response.Internal(c, "failed to join challenge")
		return
	}
	if _, err := h.repo.LogActivity(c.Request.Context(), userID, ActivityChallenge, time.Now()); err != nil {
		h.logger.Warn("activity log after join failed", zap.Error(err))
	}
	response.NoContent(c)
}

// CreateChallengeRequest is the body for POST /admin/challenges.
type CreateChallengeRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Company     string `json:"company"`
	Difficulty  string `json:"difficulty" binding:"omitempty,oneof=Easy Medium Hard"`
	Reward      string `json:"reward"`
	IsActive    *bool  `json:"is_active"`
}

// CreateChallenge handles POST /admin/challenges.
func (h *Handler) CreateChallenge(c *gin.Context) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = "Medium"
	}
	challenge := &models.Challenge{
		Title:       req.Title,
		Description: req.Description,
		Company:     req.Company,
		Difficulty:  req.Difficulty,
		Reward:      req.Reward,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := h.repo.CreateChallenge(c.Request.Context(), challenge); err != nil {
		h.logger.Error("create challenge", zap.Error(err))
		response.Internal(c, "failed to create challenge")
		return
	}
	h.logger.Info("challenge created",
		zap.String("challenge_id", challenge.ID.String()),
		zap.String("created_by", c.GetString(middleware.ContextUserEmail)),
	)
	response.Created(c, challenge)
}
