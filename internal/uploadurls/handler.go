package uploadurls

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/pkg/response"
)

// Handler serves POST /functions/v1/admin-upload-video.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

type issueRequest struct {
	LectureID string `json:"lectureId" binding:"required"`
	Filename  string `json:"filename" binding:"required"`
	FileSize  int64  `json:"fileSize"`
}

// Issue returns a direct-upload URL for an admin.
func (h *Handler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Lecture ID and filename are required")
		return
	}
	id, err := uuid.Parse(req.LectureID)
	if err != nil {
		response.NotFound(c, "Lecture not found")
		return
	}

	grant, err := h.service.Issue(c.Request.Context(), Request{LectureID: id, Filename: req.Filename, FileSize: req.FileSize})
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrInvalidFileType):
			response.BadRequest(c, "Invalid file type. Allowed: mp4, mov, webm, mkv")
		case errors.Is(err, errs.ErrFileTooLarge):
			response.BadRequest(c, "File too large. Maximum size is 2GB")
		case errors.Is(err, errs.ErrNotFound):
			response.NotFound(c, "Lecture not found")
		case errors.Is(err, errs.ErrStorageNotConfigured):
			response.ServiceUnavailable(c, "Storage host not configured")
		case errors.Is(err, errs.ErrUpstream):
			response.Error(c, err, "Failed to generate upload URL")
		default:
			response.Error(c, err, "Internal server error")
		}
		return
	}
	response.OK(c, gin.H{
		"uploadUrl": grant.UploadURL,
		"uploadId":  grant.UploadID,
		"videoPath": grant.VideoPath,
		"message":   "Upload URL generated. Upload your video directly to the provided URL.",
	})
}
