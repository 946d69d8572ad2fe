package streams

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/metrics"
	"github.com/studymeta/backend/internal/models"
)

const anonymousUser = "anonymous"

// LectureReader loads lectures.
type LectureReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lecture, error)
}

// Authenticator resolves an Authorization header to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*models.Principal, error)
}

// Options configures URL issuance.
type Options struct {
	TTL time.Duration
	// AllowUnsigned returns an unsigned URL when no signer is configured. Development only.
	AllowUnsigned bool
	// PublicBaseURL prefixes unsigned URLs; empty returns the raw video path.
	PublicBaseURL string
}

// StreamURL is a resolved playback URL. ExpiresAt is nil for durable external URLs.
type StreamURL struct {
	URL       string     `json:"streamUrl"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Broker decides who may watch a lecture and issues the URL to play it.
type Broker struct {
	lectures LectureReader
	auth     Authenticator
	signer   Signer
	opts     Options
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewBroker creates a stream URL broker. signer may be nil.
func NewBroker(lectures LectureReader, auth Authenticator, signer Signer, opts Options, m *metrics.Metrics, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	return &Broker{lectures: lectures, auth: auth, signer: signer, opts: opts, metrics: m, logger: logger, now: time.Now}
}

// Resolve returns a playable URL for the lecture.
func (b *Broker) Resolve(ctx context.Context, lectureID uuid.UUID, authHeader string) (*StreamURL, error) {
	lecture, err := b.lectures.GetByID(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	if !lecture.HasVideo() {
		return nil, errs.ErrNoVideo
	}

	userID := anonymousUser
	if !lecture.IsPreview {
		p, err := b.auth.Authenticate(ctx, authHeader)
		if err != nil {
			return nil, err
		}
		userID = p.UserID.String()
	} else if authHeader != "" {
		// Preview content is public; a caller's identity only scopes the signature.
		if p, err := b.auth.Authenticate(ctx, authHeader); err == nil {
			userID = p.UserID.String()
		}
	}

	if u, ok := lecture.ExternalURL(); ok {
		b.metrics.StreamURL("external")
		return &StreamURL{URL: u}, nil
	}

	path, _ := lecture.StoragePath()
	if b.signer == nil {
		if !b.opts.AllowUnsigned {
			b.logger.Error("no stream signer configured", zap.String("lecture_id", lectureID.String()))
			return nil, errs.ErrSigningUnavailable
		}
		b.metrics.StreamURL("unsigned")
		return &StreamURL{URL: b.unsignedURL(path)}, nil
	}

	expiresAt := b.now().Add(b.opts.TTL).UTC()
	signed, err := b.signer.Sign(ctx, path, userID, b.opts.TTL)
	if err != nil {
		b.logger.Error("stream signing failed",
			zap.String("lecture_id", lectureID.String()),
			zap.String("video_path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("sign %s: %v: %w", path, err, errs.ErrSigningUnavailable)
	}
	b.metrics.StreamURL("signed")
	return &StreamURL{URL: signed, ExpiresAt: &expiresAt}, nil
}

func (b *Broker) unsignedURL(path string) string {
	if b.opts.PublicBaseURL == "" {
		return path
	}
	return strings.TrimRight(b.opts.PublicBaseURL, "/") + "/" + strings.Trim(path, "/") + "/index.m3u8"
}
