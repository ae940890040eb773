package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	cfg "sqlpilot/internal/config"
	"sqlpilot/internal/util"
)

// GCSUploader ships session directories to Google Cloud Storage.
type GCSUploader struct {
	cfg    cfg.GCSConfig
	client *storage.Client
}

// NewGCS builds the client from configuration. Without an explicit
// credentials file the client falls back to application default credentials.
func NewGCS(c cfg.GCSConfig) (*GCSUploader, error) {
	u := &GCSUploader{cfg: c}
	if !c.Enabled {
		return u, nil
	}
	var opts []option.ClientOption
	if creds := strings.TrimSpace(c.CredentialsFile); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create gcs client")
	}
	u.client = client
	return u, nil
}

func (u *GCSUploader) Enabled() bool {
	return u.cfg.Enabled
}

// UploadDir writes every file of one session directory under the configured
// prefix and returns the gs:// location of the uploaded set.
func (u *GCSUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	if !u.cfg.Enabled {
		return "", nil
	}
	if u.client == nil {
		return "", errors.New("gcs uploader is not initialized")
	}
	prefix := keyPrefix(u.cfg.Prefix)
	objects, err := sessionFiles(dir, prefix)
	if err != nil {
		return "", err
	}
	bucket := u.client.Bucket(u.cfg.Bucket)
	for _, obj := range objects {
		if err := u.put(ctx, bucket, obj); err != nil {
			return "", errors.Wrapf(err, "upload %s", obj.key)
		}
	}
	location := fmt.Sprintf("gs://%s/%s%s/", u.cfg.Bucket, prefix, filepath.Base(dir))
	util.Detailf("uploaded %d objects to %s", len(objects), location)
	return location, nil
}

// put streams one file through an object writer. The writer's Close is where
// GCS surfaces most failures, so its error is never discarded.
func (u *GCSUploader) put(ctx context.Context, bucket *storage.BucketHandle, obj object) error {
	file, err := os.Open(obj.path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(file, "gcs upload file")

	w := bucket.Object(obj.key).NewWriter(ctx)
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
