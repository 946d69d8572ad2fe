package models

import (
	"time"

	"github.com/google/uuid"
)

// Lecture is the subset of a course lecture the video pipeline reads and writes.
type Lecture struct {
	ID              uuid.UUID `json:"id"`
	CourseID        uuid.UUID `json:"course_id"`
	VideoPath       *string   `json:"video_path"`
	VideoURL        *string   `json:"video_url"`
	DurationMinutes *int      `json:"duration_minutes"`
	IsPreview       bool      `json:"is_preview"`
	IsPublished     bool      `json:"is_published"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasVideo reports whether either playback locator is set.
func (l *Lecture) HasVideo() bool {
	return nonEmpty(l.VideoURL) || nonEmpty(l.VideoPath)
}

// ExternalURL returns video_url when set. It takes precedence over video_path.
func (l *Lecture) ExternalURL() (string, bool) {
	if nonEmpty(l.VideoURL) {
		return *l.VideoURL, true
	}
	return "", false
}

// StoragePath returns video_path when set.
func (l *Lecture) StoragePath() (string, bool) {
	if nonEmpty(l.VideoPath) {
		return *l.VideoPath, true
	}
	return "", false
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
