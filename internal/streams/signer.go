package streams

import (
	"context"
	"time"

	"github.com/studymeta/backend/internal/vps"
	"github.com/studymeta/backend/pkg/storage"
)

// Signer issues a time-limited playback URL for a stored video path.
type Signer interface {
	Sign(ctx context.Context, videoPath, userID string, ttl time.Duration) (string, error)
}

// VPSSigner asks the remote storage host to sign the URL.
type VPSSigner struct {
	client *vps.Client
}

func NewVPSSigner(client *vps.Client) *VPSSigner {
	return &VPSSigner{client: client}
}

func (s *VPSSigner) Sign(ctx context.Context, videoPath, userID string, ttl time.Duration) (string, error) {
	return s.client.SignStreamURL(ctx, videoPath, userID, ttl)
}

// S3Signer presigns a GET for the package manifest in the videos bucket.
// Only the manifest is signed; segments must be readable through the bucket's CDN policy.
type S3Signer struct {
	s3 *storage.S3
}

func NewS3Signer(s3 *storage.S3) *S3Signer {
	return &S3Signer{s3: s3}
}

func (s *S3Signer) Sign(ctx context.Context, videoPath, _ string, ttl time.Duration) (string, error) {
	return s.s3.PresignGet(ctx, storage.PlaylistKey(videoPath), ttl)
}
