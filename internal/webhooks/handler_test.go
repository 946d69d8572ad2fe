package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymeta/backend/internal/errs"
)

func init() { gin.SetMode(gin.TestMode) }

type lectureState struct {
	path     *string
	duration *int
}

type memStore struct {
	state map[uuid.UUID]*lectureState
}

func (m *memStore) SetVideo(_ context.Context, id uuid.UUID, p string, d *int) error {
	s, ok := m.state[id]
	if !ok {
		return errs.ErrNotFound
	}
	s.path = &p
	if d != nil {
		s.duration = d
	}
	return nil
}

func (m *memStore) ClearVideoPath(_ context.Context, id uuid.UUID) error {
	s, ok := m.state[id]
	if !ok {
		return errs.ErrNotFound
	}
	s.path = nil
	return nil
}

func setup(secret string) (*memStore, uuid.UUID, *gin.Engine) {
	id := uuid.New()
	prev := "course/lecture/provisional"
	store := &memStore{state: map[uuid.UUID]*lectureState{id: {path: &prev}}}
	r := gin.New()
	r.POST("/functions/v1/video-webhook", NewHandler(store, secret, nil, nil).Receive)
	return store, id, r
}

func call(t *testing.T, r *gin.Engine, key string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/video-webhook", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadKey(t *testing.T) {
	store, id, r := setup("s3cret")
	for _, key := range []string{"", "wrong", "s3cret "} {
		w := call(t, r, key, gin.H{"lectureId": id.String(), "status": "error"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	assert.NotNil(t, store.state[id].path)

	_, id, r = setup("")
	w := call(t, r, "", gin.H{"lectureId": id.String(), "status": "error"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookSuccessIsIdempotent(t *testing.T) {
	store, id, r := setup("k")
	body := gin.H{"lectureId": id.String(), "videoPath": "raw/path", "hlsPath": "hls/path", "durationMinutes": 12, "status": "success"}

	require.Equal(t, http.StatusOK, call(t, r, "k", body).Code)
	first := *store.state[id]
	firstPath, firstDur := *first.path, *first.duration

	require.Equal(t, http.StatusOK, call(t, r, "k", body).Code)
	assert.Equal(t, firstPath, *store.state[id].path)
	assert.Equal(t, firstDur, *store.state[id].duration)
	assert.Equal(t, "hls/path", firstPath)
	assert.Equal(t, 12, firstDur)
}

func TestWebhookSuccessWithoutDurationKeepsExisting(t *testing.T) {
	store, id, r := setup("k")
	seven := 7
	store.state[id].duration = &seven

	w := call(t, r, "k", gin.H{"lectureId": id.String(), "videoPath": "only/raw", "status": "success"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "only/raw", *store.state[id].path)
	assert.Equal(t, 7, *store.state[id].duration)

	w = call(t, r, "k", gin.H{"lectureId": id.String(), "status": "success"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookErrorClearsPath(t *testing.T) {
	store, id, r := setup("k")
	w := call(t, r, "k", gin.H{"lectureId": id.String(), "status": "error", "error": "disk full"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, store.state[id].path)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "disk full", body["error"])
}

func TestWebhookInvalidInput(t *testing.T) {
	_, id, r := setup("k")

	w := call(t, r, "k", gin.H{"lectureId": id.String(), "status": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, "k", gin.H{"status": "success"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, "k", gin.H{"lectureId": uuid.NewString(), "status": "error"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
