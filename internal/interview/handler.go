package interview

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/financebro/backend/internal/middleware"
	"github.com/financebro/backend/pkg/response"
)

// Handler handles interview session HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an interview handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the interview routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/interviews", h.Create)
	rg.GET("/interviews", h.List)
	rg.GET("/interviews/:id", h.Get)
	rg.DELETE("/interviews/:id", h.Delete)
	rg.POST("/interviews/:id/start", h.Start)
	rg.POST("/interviews/:id/connected", h.Connected)
	rg.POST("/interviews/:id/end", h.End)
	rg.GET("/interviews/:id/status", h.Status)
	rg.GET("/interviews/:id/feedback", h.GetFeedback)
	rg.GET("/interviews/:id/transcript", h.Transcript)
	rg.DELETE("/interviews/:id/feedback", h.Delete)
	rg.GET("/feedbacks", h.ListFeedback)
}

// CreateRequest is the body for POST /interviews.
type CreateRequest struct {
	Title           string `json:"title" binding:"required"`
	Company         string `json:"company"`
	Role            string `json:"role"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Create handles POST /interviews.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.service.CreateInterview(c.Request.Context(), currentUserID(c), CreateInterviewInput{
		Title:           req.Title,
		Company:         req.Company,
		Role:            req.Role,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.logger.Error("create interview", zap.Error(err))
		response.Internal(c, "failed to create interview")
		return
	}
	response.Created(c, session)
}

// List handles GET /interviews.
func (h *Handler) List(c *gin.Context) {
	sessions, err := h.service.ListInterviews(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logger.Error("list interviews", zap.Error(err))
		response.Internal(c, "failed to list interviews")
		return
	}
	response.OK(c, sessions)
}

// Get handles GET /interviews/:id.
func (h *Handler) Get(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	session, err := h.service.GetInterview(c.Request.Context(), currentUserID(c), sessionID)
	if err != nil {
		h.writeError(c, err, "failed to load interview")
		return
	}
	response.OK(c, session)
}

// Delete handles DELETE /interviews/:id and DELETE /interviews/:id/feedback.
// Feedback and session are removed together.
func (h *Handler) Delete(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	if err := h.service.DeleteInterview(c.Request.Context(), currentUserID(c), sessionID); err != nil {
		h.writeError(c, err, "failed to delete interview")
		return
	}
	response.NoContent(c)
}

// StartRequest is the optional body for POST /interviews/:id/start.
type StartRequest struct {
	UserName string `json:"user_name"`
}

// Start handles POST /interviews/:id/start.
func (h *Handler) Start(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req StartRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	result, err := h.service.Start(c.Request.Context(), currentUserID(c), sessionID, req.UserName)
	if err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			response.Conflict(c, "interview already completed")
			return
		}
		h.writeError(c, err, "failed to start interview")
		return
	}
	response.OK(c, result)
}

// Connected handles POST /interviews/:id/connected.
func (h *Handler) Connected(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	snap, err := h.service.Connected(c.Request.Context(), currentUserID(c), sessionID)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNoActiveMachine) {
			response.Conflict(c, err.Error())
			return
		}
		h.writeError(c, err, "failed to confirm connection")
		return
	}
	response.OK(c, snap)
}

// End handles POST /interviews/:id/end.
func (h *Handler) End(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	snap, err := h.service.End(c.Request.Context(), currentUserID(c), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoActiveMachine), errors.Is(err, ErrNotRunning):
			response.Conflict(c, err.Error())
		default:
			h.logger.Error("end interview", zap.Error(err), zap.String("session_id", sessionID.String()))
			response.Internal(c, "failed to end interview")
		}
		return
	}
	response.OK(c, snap)
}

// Status handles GET /interviews/:id/status.
func (h *Handler) Status(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	snap, err := h.service.Status(c.Request.Context(), currentUserID(c), sessionID)
	if err != nil {
		if errors.Is(err, ErrNoActiveMachine) {
			response.NotFound(c, "no active session")
			return
		}
		h.writeError(c, err, "failed to load status")
		return
	}
	response.OK(c, snap)
}

// GetFeedback handles GET /interviews/:id/feedback.
func (h *Handler) GetFeedback(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	feedback, err := h.service.GetFeedback(c.Request.Context(), currentUserID(c), sessionID)
	if err != nil {
		if errors.Is(err, ErrFeedbackNotFound) {
			response.NotFound(c, "feedback not found")
			return
		}
		h.writeError(c, err, "failed to load feedback")
		return
	}
	response.OK(c, feedback)
}

// Transcript handles GET /interviews/:id/transcript.
func (h *Handler) Transcript(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	url, err := h.service.TranscriptURL(c.Request.Context(), currentUserID(c), sessionID)
	if err != nil {
		if errors.Is(err, ErrNoTranscript) {
			response.NotFound(c, "transcript not available")
			return
		}
		h.writeError(c, err, "failed to create transcript link")
		return
	}
	response.OK(c, gin.H{"url": url})
}

// ListFeedback handles GET /feedbacks.
func (h *Handler) ListFeedback(c *gin.Context) {
	summaries, err := h.service.ListFeedback(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logger.Error("list feedback", zap.Error(err))
		response.Internal(c, "failed to list feedback")
		return
	}
	response.OK(c, summaries)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, ErrSessionNotFound) {
		response.NotFound(c, "interview not found")
		return
	}
	h.logger.Error(fallback, zap.Error(err))
	response.Internal(c, fallback)
}

func currentUserID(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.ContextUserID).(uuid.UUID)
}

func sessionIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}
