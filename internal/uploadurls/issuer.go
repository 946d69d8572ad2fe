package uploadurls

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/studymeta/backend/internal/vps"
	"github.com/studymeta/backend/pkg/storage"
)

// Ticket is a direct-upload grant.
type Ticket struct {
	UploadURL string
	UploadID  string
}

// Issuer obtains a direct-upload URL for an object path.
type Issuer interface {
	Issue(ctx context.Context, req vps.UploadRequest) (*Ticket, error)
}

// VPSIssuer asks the remote storage host for an upload URL.
type VPSIssuer struct {
	client *vps.Client
}

func NewVPSIssuer(client *vps.Client) *VPSIssuer {
	return &VPSIssuer{client: client}
}

func (i *VPSIssuer) Issue(ctx context.Context, req vps.UploadRequest) (*Ticket, error) {
	t, err := i.client.GenerateUploadURL(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Ticket{UploadURL: t.UploadURL, UploadID: t.UploadID}, nil
}

// S3Issuer presigns a PUT into the videos bucket. The object key is the video path plus
// the original extension; the upload id is generated locally.
type S3Issuer struct {
	s3  *storage.S3
	ttl time.Duration
}

func NewS3Issuer(s3 *storage.S3, ttl time.Duration) *S3Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3Issuer{s3: s3, ttl: ttl}
}

func (i *S3Issuer) Issue(ctx context.Context, req vps.UploadRequest) (*Ticket, error) {
	key := req.VideoPath + "/source" + path.Ext(req.Filename)
	u, err := i.s3.PresignPut(ctx, key, storage.ContentTypeFor(req.Filename), i.ttl)
	if err != nil {
		return nil, err
	}
	return &Ticket{UploadURL: u, UploadID: uuid.NewString()}, nil
}
