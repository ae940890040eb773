// Package uploader ships session report directories to cloud storage.
package uploader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	cfg "sqlpilot/internal/config"
)

// Uploader pushes one session directory to a storage backend and returns
// the remote location.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader is the disabled backend.
type NoopUploader struct{}

func (n NoopUploader) Enabled() bool {
	return false
}

func (n NoopUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	return "", nil
}

// FromConfig selects the configured backend. S3 wins when both are enabled;
// with neither enabled the noop backend is returned.
func FromConfig(storage cfg.StorageConfig) (Uploader, error) {
	switch {
	case storage.S3.Enabled:
		return NewS3(storage.S3)
	case storage.GCS.Enabled:
		return NewGCS(storage.GCS)
	default:
		return NoopUploader{}, nil
	}
}

// object is one local file scheduled for upload.
type object struct {
	path string
	key  string
}

// keyPrefix normalizes a configured object prefix: slashes trimmed, a single
// trailing slash when non-empty.
func keyPrefix(raw string) string {
	p := strings.Trim(strings.TrimSpace(raw), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// sessionFiles lists the regular files of a session directory paired with
// their object keys under prefix. Session directories are flat; anything
// nested is skipped rather than walked.
func sessionFiles(dir, prefix string) ([]object, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list session dir %s", dir)
	}
	base := filepath.Base(dir)
	objects := make([]object, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		objects = append(objects, object{
			path: filepath.Join(dir, entry.Name()),
			key:  prefix + base + "/" + entry.Name(),
		})
	}
	return objects, nil
}
