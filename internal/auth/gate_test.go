package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/models"
)

type fakeRoles struct {
	roles map[uuid.UUID][]models.Role
	err   error
}

func (f *fakeRoles) Roles(_ context.Context, id uuid.UUID) ([]models.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roles[id], nil
}

type brokenIdentity struct{}

func (brokenIdentity) Identify(context.Context, string) (*models.Principal, error) {
	return nil, errors.New("connection refused")
}

func TestBearerToken(t *testing.T) {
	_, err := BearerToken("")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = BearerToken("Bearer ")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)
}

func TestGateRequireAdmin(t *testing.T) {
	jwtSvc := NewJWTService("test-secret")
	admin, member := uuid.New(), uuid.New()
	roles := &fakeRoles{roles: map[uuid.UUID][]models.Role{admin: {models.RoleAdmin}, member: {"instructor"}}}
	gate := NewGate(jwtSvc, roles, nil)

	adminTok, err := jwtSvc.Generate(admin, "a@example.com", time.Hour)
	require.NoError(t, err)
	memberTok, err := jwtSvc.Generate(member, "m@example.com", time.Hour)
	require.NoError(t, err)

	p, err := gate.RequireAdmin(context.Background(), "Bearer "+adminTok)
	require.NoError(t, err)
	assert.Equal(t, admin, p.UserID)
	assert.True(t, p.HasRole(models.RoleAdmin))

	_, err = gate.RequireAdmin(context.Background(), "Bearer "+memberTok)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = gate.RequireAdmin(context.Background(), "Bearer not-a-jwt")
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	_, err = gate.RequireAdmin(context.Background(), "")
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}

func TestGateFailsClosed(t *testing.T) {
	jwtSvc := NewJWTService("test-secret")
	id := uuid.New()
	tok, err := jwtSvc.Generate(id, "", time.Hour)
	require.NoError(t, err)

	gate := NewGate(jwtSvc, &fakeRoles{err: errors.New("db down")}, nil)
	_, err = gate.RequireAdmin(context.Background(), "Bearer "+tok)
	assert.ErrorIs(t, err, errs.ErrAuthFailure)

	gate = NewGate(brokenIdentity{}, &fakeRoles{}, nil)
	_, err = gate.Authenticate(context.Background(), "Bearer "+tok)
	assert.ErrorIs(t, err, errs.ErrAuthFailure)
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	jwtSvc := NewJWTService("test-secret")
	expired, err := jwtSvc.Generate(uuid.New(), "", -time.Minute)
	require.NoError(t, err)
	_, err = jwtSvc.Identify(context.Background(), expired)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	foreign, err := NewJWTService("other").Generate(uuid.New(), "", time.Hour)
	require.NoError(t, err)
	_, err = jwtSvc.Identify(context.Background(), foreign)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestRemoteIdentity(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"` + id.String() + `","email":"u@example.com"}`))
		case "Bearer flaky":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	remote := NewRemoteIdentity(srv.URL, "anon-key", srv.Client())

	p, err := remote.Identify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)
	assert.Equal(t, "u@example.com", p.Email)

	_, err = remote.Identify(context.Background(), "bad")
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	_, err = remote.Identify(context.Background(), "flaky")
	assert.ErrorIs(t, err, errs.ErrAuthFailure)
}
