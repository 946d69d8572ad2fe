package uploads

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/studymeta/backend/internal/errs"
)

// AllowedMIMETypes are the container types accepted for synchronous upload.
var AllowedMIMETypes = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
}

// AllowedMIME reports whether a part's Content-Type is an accepted video container.
func AllowedMIME(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	_, ok := AllowedMIMETypes[ct]
	return ok
}

// Stager writes incoming files into the upload directory under generated names.
type Stager struct {
	dir      string
	maxBytes int64
}

// NewStager creates a stager for dir with a hard size cap.
func NewStager(dir string, maxBytes int64) *Stager {
	return &Stager{dir: dir, maxBytes: maxBytes}
}

// Staged is a source file waiting to be processed.
type Staged struct {
	ID   string
	Path string
	Size int64
}

// Remove deletes the staged file. Safe to call more than once.
func (s *Staged) Remove() {
	if s == nil || s.Path == "" {
		return
	}
	_ = os.Remove(s.Path)
}

// Stage copies r into a new file named by a fresh id; the extension comes from contentType,
// never from the client's filename.
// Exceeding the cap removes the partial file and returns errs.ErrFileTooLarge.
func (s *Stager) Stage(r io.Reader, contentType string) (*Staged, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+extensionFor(contentType))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	staged := &Staged{ID: id, Path: path}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err != nil {
		staged.Remove()
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errs.ErrFileTooLarge
		}
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if closeErr != nil {
		staged.Remove()
		return nil, fmt.Errorf("close staged file: %w", closeErr)
	}
	if n > s.maxBytes {
		staged.Remove()
		return nil, errs.ErrFileTooLarge
	}
	staged.Size = n
	return staged, nil
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return AllowedMIMETypes[ct]
}
