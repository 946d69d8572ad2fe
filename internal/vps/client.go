// Package vps is a client for the remote storage and transcoding host.
package vps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
)

const maxResponseBytes = 1 << 20

// Client calls the host's upload and signing API, authenticated with X-API-Key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a client. baseURL has no trailing slash.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// UploadRequest asks the host for a direct-upload URL.
type UploadRequest struct {
	VideoPath string `json:"videoPath"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	LectureID string `json:"lectureId"`
}

// UploadTicket is the host's answer to an UploadRequest.
type UploadTicket struct {
	UploadURL string `json:"uploadUrl"`
	UploadID  string `json:"uploadId"`
}

type signRequest struct {
	VideoPath string `json:"videoPath"`
	UserID    string `json:"userId"`
	ExpiresIn int    `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedUrl"`
}

// GenerateUploadURL requests a pre-signed upload URL. Rejections are errs.ErrUpstream.
func (c *Client) GenerateUploadURL(ctx context.Context, req UploadRequest) (*UploadTicket, error) {
	var out UploadTicket
	if err := c.post(ctx, "/api/generate-upload-url", req, &out); err != nil {
		return nil, err
	}
	if out.UploadURL == "" {
		return nil, fmt.Errorf("generate upload url: empty uploadUrl: %w", errs.ErrUpstream)
	}
	return &out, nil
}

// SignStreamURL returns a signed playback URL for videoPath valid for ttl.
func (c *Client) SignStreamURL(ctx context.Context, videoPath, userID string, ttl time.Duration) (string, error) {
	var out signResponse
	body := signRequest{VideoPath: videoPath, UserID: userID, ExpiresIn: int(ttl / time.Second)}
	if err := c.post(ctx, "/api/generate-stream-url", body, &out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("generate stream url: empty signedUrl: %w", errs.ErrUpstream)
	}
	return out.SignedURL, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("vps request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s: %v: %w", path, err, errs.ErrUpstream)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("vps rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, errs.ErrUpstream)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %v: %w", path, err, errs.ErrUpstream)
	}
	return nil
}
