package profiles

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/financebro/backend/internal/middleware"
	"github.com/financebro/backend/internal/models"
	"github.com/financebro/backend/pkg/response"
)

// Handler handles profile HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a profile handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes mounts the profile routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", h.Get)
	rg.PUT("/profile", h.Update)
}

// Get handles GET /profile.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	profile, err := h.repo.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "profile not found")
			return
		}
		h.logger.Error("get profile", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, profile)
}

// UpdateRequest is the body for PUT /profile. Absent fields clear the value.
type UpdateRequest struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	DateOfBirth  *string `json:"date_of_birth"` // YYYY-MM-DD
	School       *string `json:"school"`
	LinkedInURL  *string `json:"linkedin_url"`
	Sector       *string `json:"sector"`
	Referral     *string `json:"referral"`
	RoleInterest *string `json:"role_interest"`
	CVPath       *string `json:"cv_path"`
}

// Update handles PUT /profile.
func (h *Handler) Update(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var dob *time.Time
	if req.DateOfBirth != nil {
		parsed, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			response.BadRequest(c, "date_of_birth must be YYYY-MM-DD")
			return
		}
		dob = &parsed
	}

	profile, err := h.repo.Update(c.Request.Context(), &models.Profile{
		ID:           userID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DOB:          dob,
		School:       req.School,
		LinkedInURL:  req.LinkedInURL,
		Sector:       req.Sector,
		Referral:     req.Referral,
		RoleInterest: req.RoleInterest,
		CVPath:       req.CVPath,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "profile not found")
			return
		}
		h.logger.Error("update profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, profile)
}
