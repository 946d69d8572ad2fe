package streams

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/pkg/response"
)

// Handler serves POST /api/stream-url.
type Handler struct {
	broker *Broker
	logger *zap.Logger
}

// NewHandler creates a stream URL handler.
func NewHandler(broker *Broker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{broker: broker, logger: logger}
}

type streamURLRequest struct {
	LectureID string `json:"lectureId" binding:"required"`
}

// StreamURL resolves a playback URL for the requested lecture.
func (h *Handler) StreamURL(c *gin.Context) {
	var req streamURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Lecture ID is required")
		return
	}
	id, err := uuid.Parse(req.LectureID)
	if err != nil {
		response.NotFound(c, "Lecture not found")
		return
	}

	out, err := h.broker.Resolve(c.Request.Context(), id, c.GetHeader("Authorization"))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			response.NotFound(c, "Lecture not found")
		case errors.Is(err, errs.ErrUnauthenticated):
			response.Unauthorized(c, "Authentication required for this content")
		case errors.Is(err, errs.ErrSigningUnavailable):
			response.Error(c, err, "")
		default:
			if errs.HTTPStatus(err) >= 500 {
				h.logger.Error("stream url failed", zap.String("lecture_id", id.String()), zap.Error(err))
			}
			response.Error(c, err, "Failed to generate stream URL")
		}
		return
	}
	response.OK(c, out)
}
