package uploads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/media"
	"github.com/studymeta/backend/internal/metrics"
	"github.com/studymeta/backend/internal/models"
	"github.com/studymeta/backend/pkg/queue"
)

// LectureStore is the lecture persistence the service needs.
type LectureStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lecture, error)
	SetVideo(ctx context.Context, id uuid.UUID, videoPath string, durationMinutes *int) error
}

// Prober reads container duration.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Packager produces an HLS package from a source file.
type Packager interface {
	Transcode(ctx context.Context, src, outDir string) (*media.Package, error)
	SegmentSeconds() int
}

// Reconciler records a lecture update that must be retried.
type Reconciler interface {
	EnqueueLectureVideoSync(ctx context.Context, payload queue.LectureVideoSyncPayload) error
}

// Mirror publishes a finished package directory to object storage.
type Mirror interface {
	UploadDir(ctx context.Context, dir, prefix string) (int, error)
}

// Config holds the service's filesystem and processing limits.
type Config struct {
	OutputRoot          string
	PublicStreamBaseURL string
	TranscodeTimeout    time.Duration
	MaxConcurrent       int
}

// ProcessingError is a probe or packaging failure. It matches errs.ErrProcessingFailed.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *ProcessingError) Unwrap() error { return e.Err }

func (e *ProcessingError) Is(target error) bool { return target == errs.ErrProcessingFailed }

// Detail is a short description safe to return to operators; tool output stays in the logs.
func (e *ProcessingError) Detail() string {
	var pe *media.ProbeError
	var te *media.TranscodeError
	switch {
	case errors.As(e.Err, &pe):
		return e.Stage + ": " + pe.Err.Error()
	case errors.As(e.Err, &te):
		return e.Stage + ": " + te.Err.Error()
	default:
		return e.Error()
	}
}

// Result is a successfully processed upload.
type Result struct {
	VideoID         string `json:"videoId"`
	StreamURL       string `json:"streamUrl"`
	DurationMinutes int    `json:"duration"`
}

// Service turns a staged upload into a published HLS package attached to a lecture.
type Service struct {
	cfg       Config
	lectures  LectureStore
	prober    Prober
	packager  Packager
	reconcile Reconciler
	mirror    Mirror
	metrics   *metrics.Metrics
	slots     chan struct{}
	logger    *zap.Logger
}

// NewService creates an upload service. reconcile and mirror may be nil.
func NewService(cfg Config, lectures LectureStore, prober Prober, packager Packager, reconcile Reconciler, mirror Mirror, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.TranscodeTimeout <= 0 {
		cfg.TranscodeTimeout = 30 * time.Minute
	}
	return &Service{
		cfg:       cfg,
		lectures:  lectures,
		prober:    prober,
		packager:  packager,
		reconcile: reconcile,
		mirror:    mirror,
		metrics:   m,
		slots:     make(chan struct{}, cfg.MaxConcurrent),
		logger:    logger,
	}
}

// StreamURL returns the public manifest URL for a video id.
func (s *Service) StreamURL(videoID string) string {
	return s.cfg.PublicStreamBaseURL + "/" + videoID + "/" + media.ManifestName
}

// Process validates the lecture, packages the staged file and records the result.
// The staged file is removed on every path. A failed lecture update after packaging
// is logged and queued for reconciliation; the result is still returned.
func (s *Service) Process(ctx context.Context, lectureID uuid.UUID, staged *Staged) (*Result, error) {
	defer staged.Remove()

	lecture, err := s.lectures.GetByID(ctx, lectureID)
	if err != nil {
		return nil, err
	}

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, &ProcessingError{Stage: "queue", Err: ctx.Err()}
	}
	defer func() { <-s.slots }()

	videoID := uuid.NewString()
	outDir := filepath.Join(s.cfg.OutputRoot, videoID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &ProcessingError{Stage: "prepare", Err: err}
	}
	log := s.logger.With(
		zap.String("lecture_id", lectureID.String()),
		zap.String("video_id", videoID),
	)
	log.Info("processing upload", zap.String("source", staged.Path), zap.Int64("bytes", staged.Size))

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.TranscodeTimeout)
	defer cancel()

	seconds, err := s.prober.Duration(runCtx, staged.Path)
	if err != nil {
		return nil, s.fail(log, outDir, "probe", err)
	}

	done := s.metrics.TranscodeStarted()
	start := time.Now()
	pkg, err := s.packager.Transcode(runCtx, staged.Path, outDir)
	done()
	s.metrics.ObserveTranscode(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(log, outDir, "transcode", err)
	}
	staged.Remove()

	// Stream copy cuts on keyframes, so a short package is suspicious but still playable.
	if want := media.ExpectedSegments(seconds, s.packager.SegmentSeconds()); len(pkg.Segments)+1 < want {
		log.Warn("package has fewer segments than the source duration implies",
			zap.Int("segments", len(pkg.Segments)),
			zap.Int("expected", want),
		)
	}

	minutes := media.RoundMinutes(seconds)
	result := &Result{VideoID: videoID, StreamURL: s.StreamURL(videoID), DurationMinutes: minutes}

	// The package exists on disk; finish bookkeeping even if the client has gone away.
	bg := context.WithoutCancel(ctx)
	if s.mirror != nil {
		if n, err := s.mirror.UploadDir(bg, outDir, videoID); err != nil {
			log.Warn("package mirror failed", zap.Int("uploaded", n), zap.Error(err))
		}
	}
	if err := s.lectures.SetVideo(bg, lectureID, videoID, &minutes); err != nil {
		s.recordDrift(bg, log, lectureID, lecture.UpdatedAt, videoID, minutes, err)
	}

	s.metrics.Upload(metrics.OutcomeSuccess)
	log.Info("upload processed",
		zap.Float64("duration_seconds", seconds),
		zap.Int("segments", len(pkg.Segments)),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

func (s *Service) fail(log *zap.Logger, outDir, stage string, err error) error {
	if rmErr := os.RemoveAll(outDir); rmErr != nil {
		log.Error("remove partial package failed", zap.Error(rmErr))
	}
	s.metrics.Upload(metrics.OutcomeFailed)
	log.Error("upload processing failed", zap.String("stage", stage), zap.Error(err))
	return &ProcessingError{Stage: stage, Err: err}
}

// recordDrift queues the lecture update for the worker. The job only applies while the
// lecture row is unchanged since it was read here.
func (s *Service) recordDrift(ctx context.Context, log *zap.Logger, lectureID uuid.UUID, observedAt time.Time, videoID string, minutes int, cause error) {
	s.metrics.MetadataDrift()
	log.Error("lecture update failed after processing; package kept", zap.Error(cause))
	if s.reconcile == nil {
		return
	}
	payload := queue.LectureVideoSyncPayload{
		LectureID:       lectureID,
		VideoPath:       videoID,
		DurationMinutes: &minutes,
		ObservedAt:      observedAt,
	}
	if err := s.reconcile.EnqueueLectureVideoSync(ctx, payload); err != nil {
		log.Error("enqueue lecture sync failed", zap.Error(fmt.Errorf("reconcile: %w", err)))
	}
}
