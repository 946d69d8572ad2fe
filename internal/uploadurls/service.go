package uploadurls

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/models"
	"github.com/studymeta/backend/internal/vps"
)

// AllowedExtensions are the source extensions accepted for direct upload.
var AllowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
}

// LectureStore is the lecture persistence the broker needs.
type LectureStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lecture, error)
	SetProvisionalPath(ctx context.Context, id uuid.UUID, videoPath string) error
}

// Request asks for a direct-upload URL.
type Request struct {
	LectureID uuid.UUID
	Filename  string
	FileSize  int64
}

// Grant is the issued upload URL plus the provisional video path recorded on the lecture.
type Grant struct {
	UploadURL string `json:"uploadUrl"`
	UploadID  string `json:"uploadId"`
	VideoPath string `json:"videoPath"`
}

// Service issues direct-upload URLs and records provisional video paths.
type Service struct {
	lectures LectureStore
	issuer   Issuer
	maxBytes int64
	logger   *zap.Logger
}

// NewService creates the upload URL broker. A nil issuer means storage is not configured.
func NewService(lectures LectureStore, issuer Issuer, maxBytes int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{lectures: lectures, issuer: issuer, maxBytes: maxBytes, logger: logger}
}

// Validate checks the file locally so bad requests never reach the storage host.
func (s *Service) Validate(req Request) error {
	if req.LectureID == uuid.Nil || strings.TrimSpace(req.Filename) == "" {
		return errs.ErrMissingField
	}
	if !AllowedExtensions[strings.ToLower(filepath.Ext(req.Filename))] {
		return errs.ErrInvalidFileType
	}
	if req.FileSize < 0 {
		return errs.ErrInvalidInput
	}
	if req.FileSize > s.maxBytes {
		return errs.ErrFileTooLarge
	}
	return nil
}

// Issue validates, obtains an upload URL and records the provisional path.
func (s *Service) Issue(ctx context.Context, req Request) (*Grant, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	lecture, err := s.lectures.GetByID(ctx, req.LectureID)
	if err != nil {
		return nil, err
	}
	if s.issuer == nil {
		s.logger.Error("upload URL requested but no storage host is configured")
		return nil, errs.ErrStorageNotConfigured
	}

	videoPath := fmt.Sprintf("%s/%s/%s", lecture.CourseID, lecture.ID, uuid.NewString())
	ticket, err := s.issuer.Issue(ctx, vps.UploadRequest{
		VideoPath: videoPath,
		Filename:  filepath.Base(req.Filename),
		FileSize:  req.FileSize,
		LectureID: req.LectureID.String(),
	})
	if err != nil {
		s.logger.Error("upload URL issuance failed", zap.String("lecture_id", req.LectureID.String()), zap.Error(err))
		return nil, fmt.Errorf("issue upload url: %v: %w", err, errs.ErrUpstream)
	}

	if err := s.lectures.SetProvisionalPath(ctx, req.LectureID, videoPath); err != nil {
		s.logger.Error("record provisional video path failed",
			zap.String("lecture_id", req.LectureID.String()),
			zap.String("video_path", videoPath),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record provisional path: %w", err)
	}

	s.logger.Info("upload URL issued",
		zap.String("lecture_id", req.LectureID.String()),
		zap.String("video_path", videoPath),
		zap.String("upload_id", ticket.UploadID),
	)
	return &Grant{UploadURL: ticket.UploadURL, UploadID: ticket.UploadID, VideoPath: videoPath}, nil
}
