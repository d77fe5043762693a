package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/noah-isme/academic-approval-api/pkg/config"
)

// ErrObjectNotFound is returned when a blob key does not exist in the backend.
var ErrObjectNotFound = errors.New("storage object not found")

// Store abstracts the blob backend used for uploaded documents.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Driver() string
}

// New builds the backend selected by configuration.
func New(cfg config.DocumentsConfig) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverS3:
		return NewS3Storage(cfg.S3)
	case config.StorageDriverLocal, "":
		return NewLocalStorage(cfg.StorageDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// DocumentKey lays out blobs as dept_<d>/year_<y>/<kind>/<name><ext>.
func DocumentKey(departmentID, academicYearID, kind, name, ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(
		"dept_"+sanitizeSegment(departmentID),
		"year_"+sanitizeSegment(academicYearID),
		sanitizeSegment(kind),
		sanitizeSegment(name)+ext,
	)
}

func sanitizeSegment(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
