package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/models"
)

// RemoteIdentity exchanges a bearer token for a user at the identity service (GET {base}/auth/v1/user).
type RemoteIdentity struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteIdentity creates a client for the hosted identity service.
func NewRemoteIdentity(baseURL, apiKey string, client *http.Client) *RemoteIdentity {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteIdentity{baseURL: baseURL, apiKey: apiKey, client: client}
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Identify implements IdentityProvider.
func (r *RemoteIdentity) Identify(ctx context.Context, token string) (*models.Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %v: %w", err, errs.ErrAuthFailure)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, errs.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("identity status %d: %w", resp.StatusCode, errs.ErrAuthFailure)
	}

	var u remoteUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode identity: %v: %w", err, errs.ErrAuthFailure)
	}
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, errs.ErrInvalidToken
	}
	return &models.Principal{UserID: id, Email: u.Email}, nil
}
