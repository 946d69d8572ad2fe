package uploads

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/metrics"
	"github.com/studymeta/backend/internal/middleware"
	"github.com/studymeta/backend/pkg/response"
)

const (
	fieldVideo     = "video"
	fieldLectureID = "lectureId"
	// multipartOverhead is headroom over the file cap for boundaries and small fields.
	multipartOverhead = 1 << 20
	maxFieldBytes     = 256
)

// Handler serves POST /api/admin/upload.
type Handler struct {
	service     *Service
	stager      *Stager
	maxBytes    int64
	bodyTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewHandler creates the upload handler. bodyTimeout replaces the server's read
// timeout for the upload body; zero keeps the server's.
func NewHandler(service *Service, stager *Stager, maxBytes int64, bodyTimeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, stager: stager, maxBytes: maxBytes, bodyTimeout: bodyTimeout, metrics: m, logger: logger}
}

// Upload streams the multipart body to staging, then packages it synchronously.
func (h *Handler) Upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxBytes+multipartOverhead {
		h.reject(c, errs.ErrFileTooLarge, "File too large. Maximum size is 2GB.")
		return
	}
	h.extendReadDeadline(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	staged, lectureField, err := h.readForm(c)
	if err != nil {
		staged.Remove()
		switch {
		case errors.Is(err, errs.ErrInvalidFileType):
			h.reject(c, err, "Invalid file type. Only video files are allowed.")
		case errors.Is(err, errs.ErrFileTooLarge):
			h.reject(c, err, "File too large. Maximum size is 2GB.")
		case errors.Is(err, errs.ErrInvalidInput):
			h.reject(c, err, "Invalid multipart body")
		default:
			h.logger.Error("staging upload failed", zap.Error(err))
			h.metrics.Upload(metrics.OutcomeFailed)
			response.ErrorWithDetails(c, errs.ErrProcessingFailed, "Failed to process video", err.Error())
		}
		return
	}
	if staged == nil {
		h.reject(c, errs.ErrMissingField, "No video file provided")
		return
	}
	if lectureField == "" {
		staged.Remove()
		h.reject(c, errs.ErrMissingField, "Lecture ID is required")
		return
	}
	lectureID, err := uuid.Parse(lectureField)
	if err != nil {
		staged.Remove()
		h.reject(c, errs.ErrNotFound, "Lecture not found")
		return
	}

	h.logger.Info("upload staged",
		zap.String("lecture_id", lectureID.String()),
		zap.String("user_id", middleware.UserID(c).String()),
		zap.Int64("bytes", staged.Size),
	)
	result, err := h.service.Process(c.Request.Context(), lectureID, staged)
	if err != nil {
		var pe *ProcessingError
		switch {
		case errors.Is(err, errs.ErrNotFound):
			h.reject(c, err, "Lecture not found")
		case errors.As(err, &pe):
			response.ErrorWithDetails(c, errs.ErrProcessingFailed, "Failed to process video", pe.Detail())
		default:
			h.logger.Error("upload failed", zap.String("lecture_id", lectureID.String()), zap.Error(err))
			h.metrics.Upload(metrics.OutcomeFailed)
			response.ErrorWithDetails(c, errs.ErrProcessingFailed, "Failed to process video", "internal error")
		}
		return
	}

	response.OK(c, gin.H{
		"success":   true,
		"videoId":   result.VideoID,
		"streamUrl": result.StreamURL,
		"duration":  result.DurationMinutes,
		"message":   "Video uploaded and processed successfully",
	})
}

// readForm walks the multipart parts in order. The video part's declared type is
// checked before any byte of it is written.
func (h *Handler) readForm(c *gin.Context) (*Staged, string, error) {
	mr, err := c.Request.MultipartReader()
	if err != nil {
		return nil, "", errs.ErrInvalidInput
	}
	var staged *Staged
	var lectureID string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return staged, "", classifyBodyErr(err)
		}
		switch part.FormName() {
		case fieldVideo:
			if staged != nil {
				_ = part.Close()
				continue
			}
			if !AllowedMIME(part.Header.Get("Content-Type")) {
				_ = part.Close()
				return nil, "", errs.ErrInvalidFileType
			}
			staged, err = h.stager.Stage(part, part.Header.Get("Content-Type"))
			if err != nil {
				return nil, "", err
			}
		case fieldLectureID:
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				return staged, "", classifyBodyErr(err)
			}
			lectureID = strings.TrimSpace(string(b))
		}
		_ = part.Close()
	}
	return staged, lectureID, nil
}

// extendReadDeadline lets a large body outlive the server-wide ReadTimeout.
func (h *Handler) extendReadDeadline(c *gin.Context) {
	if h.bodyTimeout <= 0 {
		return
	}
	err := http.NewResponseController(c.Writer).SetReadDeadline(time.Now().Add(h.bodyTimeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("set upload read deadline", zap.Error(err))
	}
}

// classifyBodyErr maps a failure reading the request body to a client error.
func classifyBodyErr(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return errs.ErrFileTooLarge
	}
	return fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
}

func (h *Handler) reject(c *gin.Context, err error, msg string) {
	h.metrics.Upload(metrics.OutcomeRejected)
	c.JSON(errs.HTTPStatus(err), response.Body{Success: false, Error: msg})
}
