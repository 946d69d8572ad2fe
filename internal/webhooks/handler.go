// Package webhooks finalizes lecture video state from the processing host's callbacks.
package webhooks

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/metrics"
	"github.com/studymeta/backend/pkg/response"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// LectureStore applies callback outcomes to lectures.
type LectureStore interface {
	SetVideo(ctx context.Context, id uuid.UUID, videoPath string, durationMinutes *int) error
	ClearVideoPath(ctx context.Context, id uuid.UUID) error
}

// Callback is the processing host's completion record.
type Callback struct {
	LectureID       string `json:"lectureId" binding:"required"`
	VideoPath       string `json:"videoPath"`
	HLSPath         string `json:"hlsPath"`
	DurationMinutes *int   `json:"durationMinutes"`
	Status          string `json:"status"`
	Error           string `json:"error"`
}

// Handler serves POST /functions/v1/video-webhook.
type Handler struct {
	lectures LectureStore
	secret   []byte
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewHandler creates the webhook handler. An empty secret rejects every call.
func NewHandler(lectures LectureStore, secret string, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{lectures: lectures, secret: []byte(secret), metrics: m, logger: logger}
}

func (h *Handler) authorized(key string) bool {
	if len(h.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), h.secret) == 1
}

// Receive applies a success or error callback.
func (h *Handler) Receive(c *gin.Context) {
	if !h.authorized(c.GetHeader("X-API-Key")) {
		h.logger.Warn("webhook with invalid api key", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "Invalid API key")
		return
	}
	var cb Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		response.BadRequest(c, "Lecture ID is required")
		return
	}
	id, err := uuid.Parse(cb.LectureID)
	if err != nil {
		response.NotFound(c, "Lecture not found")
		return
	}
	log := h.logger.With(zap.String("lecture_id", id.String()), zap.String("status", cb.Status))

	switch cb.Status {
	case StatusSuccess:
		path := strings.TrimSpace(cb.HLSPath)
		if path == "" {
			path = strings.TrimSpace(cb.VideoPath)
		}
		if path == "" {
			response.BadRequest(c, "videoPath or hlsPath is required")
			return
		}
		duration := cb.DurationMinutes
		if duration != nil && *duration <= 0 {
			duration = nil
		}
		if err := h.lectures.SetVideo(c.Request.Context(), id, path, duration); err != nil {
			h.storeFailed(c, log, err)
			return
		}
		h.metrics.Webhook(StatusSuccess)
		log.Info("lecture video finalized", zap.String("video_path", path))
		response.OK(c, gin.H{"message": "Lecture updated successfully"})

	case StatusError:
		log.Error("video processing failed", zap.String("error", cb.Error))
		if err := h.lectures.ClearVideoPath(c.Request.Context(), id); err != nil {
			h.storeFailed(c, log, err)
			return
		}
		h.metrics.Webhook(StatusError)
		response.OK(c, gin.H{"message": "Error recorded", "error": cb.Error})

	default:
		h.metrics.Webhook("invalid")
		response.BadRequest(c, "Invalid status")
	}
}

func (h *Handler) storeFailed(c *gin.Context, log *zap.Logger, err error) {
	if errors.Is(err, errs.ErrNotFound) {
		response.NotFound(c, "Lecture not found")
		return
	}
	log.Error("webhook lecture update failed", zap.Error(err))
	response.Internal(c, "Failed to update lecture")
}
