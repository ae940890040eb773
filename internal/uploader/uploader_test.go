package uploader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	cfg "sqlpilot/internal/config"
)

func TestKeyPrefix(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"  ", ""},
		{"reports", "reports/"},
		{"/reports/daily/", "reports/daily/"},
	}
	for _, c := range cases {
		if got := keyPrefix(c.in); got != c.want {
			t.Fatalf("keyPrefix(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSessionFilesSkipsNestedDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session_0001_abc")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"summary.json", "final.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	objects, err := sessionFiles(dir, "reports/")
	if err != nil {
		t.Fatalf("sessionFiles: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objects))
	}
	keys := map[string]bool{}
	for _, obj := range objects {
		keys[obj.key] = true
	}
	if !keys["reports/session_0001_abc/summary.json"] || !keys["reports/session_0001_abc/final.sql"] {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestFromConfigSelectsBackend(t *testing.T) {
	u, err := FromConfig(cfg.StorageConfig{})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, ok := u.(NoopUploader); !ok {
		t.Fatalf("expected noop backend, got %T", u)
	}
	if u.Enabled() {
		t.Fatal("noop backend must report disabled")
	}
	if loc, err := u.UploadDir(context.Background(), t.TempDir()); err != nil || loc != "" {
		t.Fatalf("noop upload: loc=%q err=%v", loc, err)
	}
}

func TestDisabledBackendsUploadNothing(t *testing.T) {
	s3u, err := NewS3(cfg.S3Config{})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if loc, err := s3u.UploadDir(context.Background(), t.TempDir()); err != nil || loc != "" {
		t.Fatalf("disabled s3 upload: loc=%q err=%v", loc, err)
	}

	gcsu, err := NewGCS(cfg.GCSConfig{})
	if err != nil {
		t.Fatalf("NewGCS: %v", err)
	}
	if loc, err := gcsu.UploadDir(context.Background(), t.TempDir()); err != nil || loc != "" {
		t.Fatalf("disabled gcs upload: loc=%q err=%v", loc, err)
	}
}
