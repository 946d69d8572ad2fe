package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLists is an in-memory stand-in for the Redis list commands.
type memLists struct {
	lists map[string][]string
}

func newMemLists() *memLists { return &memLists{lists: map[string][]string{}} }

func (m *memLists) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			m.lists[key] = append(m.lists[key], string(b))
		case string:
			m.lists[key] = append(m.lists[key], b)
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(m.lists[key])))
	return cmd
}

func (m *memLists) BLPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	for _, k := range keys {
		if v, ok := m.pop(k); ok {
			cmd.SetVal([]string{k, v})
			return cmd
		}
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

func (m *memLists) LPop(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if v, ok := m.pop(key); ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (m *memLists) LLen(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(m.lists[key])))
	return cmd
}

func (m *memLists) pop(key string) (string, bool) {
	l := m.lists[key]
	if len(l) == 0 {
		return "", false
	}
	m.lists[key] = l[1:]
	return l[0], true
}

func TestEnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(newMemLists(), nil)
	minutes := 10
	id := uuid.New()

	require.NoError(t, q.EnqueueLectureVideoSync(ctx, LectureVideoSyncPayload{LectureID: id, VideoPath: "v1", DurationMinutes: &minutes}))

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueLectureSync, key)
	assert.Equal(t, JobTypeLectureVideoSync, job.Type)

	var p LectureVideoSyncPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, id, p.LectureID)
	assert.Equal(t, 10, *p.DurationMinutes)

	job, _, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	lists := newMemLists()
	q := NewQueue(lists, nil)
	job, err := NewJob(JobTypeLectureVideoSync, LectureVideoSyncPayload{LectureID: uuid.New(), VideoPath: "v"})
	require.NoError(t, err)

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		assert.Len(t, lists.lists[QueueLectureSync], i)
	}
	require.NoError(t, q.Retry(ctx, job))
	assert.Len(t, lists.lists[QueueDLQ], 1)

	n, err := q.Len(ctx, QueueDLQ)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRequeueDLQResetsAttempts(t *testing.T) {
	ctx := context.Background()
	lists := newMemLists()
	q := NewQueue(lists, nil)
	for i := 0; i < 3; i++ {
		job, err := NewJob(JobTypeLectureVideoSync, LectureVideoSyncPayload{LectureID: uuid.New()})
		require.NoError(t, err)
		job.Attempt = MaxRetries
		require.NoError(t, q.push(ctx, QueueDLQ, job))
	}
	lists.lists[QueueDLQ] = append(lists.lists[QueueDLQ], "not json")

	moved, err := q.RequeueDLQ(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	moved, err = q.RequeueDLQ(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Empty(t, lists.lists[QueueDLQ])

	job, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, job.Attempt)
}
