package provision

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/financebro/backend/pkg/response"
)

// Handler handles session provisioning HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a provisioning handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateSession handles POST /session. Body fields are all optional; a stub
// result is returned instead of an error when LiveKit is unconfigured.
func (h *Handler) CreateSession(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.svc.Provision(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("session provisioning failed", zap.Error(err), zap.String("session_id", req.SessionID))
		response.Internal(c, "failed to create session")
		return
	}
	response.OK(c, result)
}

// GetToken handles GET /token?room=&username= (bare token path).
func (h *Handler) GetToken(c *gin.Context) {
	room := c.Query("room")
	if room == "" {
		response.BadRequest(c, "room is required")
		return
	}
	cred, err := h.svc.Token(room, c.Query("username"))
	if err != nil {
		if err == ErrNotConfigured {
			response.ServiceUnavailable(c, "LiveKit not configured (LIVEKIT_URL, LIVEKIT_API_KEY, LIVEKIT_API_SECRET)")
			return
		}
		h.logger.Error("token generation failed", zap.Error(err), zap.String("room", room))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, gin.H{"token": cred.Token, "url": cred.URL, "identity": cred.Identity})
}
