package lectures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/models"
)

const selectLecture = `SELECT id, course_id, video_path, video_url, duration_minutes, is_preview, is_published, updated_at
	FROM lectures`

// Repository reads and writes the video fields of lecture rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lectures repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a lecture by ID, or errs.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lecture, error) {
	var l models.Lecture
	err := r.pool.QueryRow(ctx, selectLecture+` WHERE id = $1`, id).
		Scan(&l.ID, &l.CourseID, &l.VideoPath, &l.VideoURL, &l.DurationMinutes, &l.IsPreview, &l.IsPublished, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lecture %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return &l, nil
}

// SetVideo overwrites video_path and, when duration is non-nil, duration_minutes.
func (r *Repository) SetVideo(ctx context.Context, id uuid.UUID, videoPath string, durationMinutes *int) error {
	const q = `UPDATE lectures SET video_path = $1, duration_minutes = COALESCE($2, duration_minutes), updated_at = NOW()
		WHERE id = $3`
	return r.exec(ctx, q, videoPath, durationMinutes, id)
}

// SetVideoIfUnchanged applies the video fields only while the row has not been written after since.
// It returns errs.ErrNotFound for a missing lecture and errs.ErrConflict when a newer write exists.
func (r *Repository) SetVideoIfUnchanged(ctx context.Context, id uuid.UUID, videoPath string, durationMinutes *int, since time.Time) error {
	const q = `UPDATE lectures SET video_path = $1, duration_minutes = COALESCE($2, duration_minutes), updated_at = NOW()
		WHERE id = $3 AND updated_at <= $4`
	tag, err := r.pool.Exec(ctx, q, videoPath, durationMinutes, id, since)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lectures WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("lecture %s: %w", id, errs.ErrNotFound)
	}
	return fmt.Errorf("lecture %s written after %s: %w", id, since.Format(time.RFC3339Nano), errs.ErrConflict)
}

// SetProvisionalPath records a video path whose object is not yet confirmed to exist.
func (r *Repository) SetProvisionalPath(ctx context.Context, id uuid.UUID, videoPath string) error {
	const q = `UPDATE lectures SET video_path = $1, updated_at = NOW() WHERE id = $2`
	return r.exec(ctx, q, videoPath, id)
}

// ClearVideoPath nulls video_path after a failed processing run.
func (r *Repository) ClearVideoPath(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE lectures SET video_path = NULL, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, q, id)
}

// ListVideoPaths returns lecture id -> video_path for every lecture with a path set.
func (r *Repository) ListVideoPaths(ctx context.Context) (map[uuid.UUID]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, video_path FROM lectures WHERE video_path IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]string)
	for rows.Next() {
		var id uuid.UUID
		var p string
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, rows.Err()
}

func (r *Repository) exec(ctx context.Context, q string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
