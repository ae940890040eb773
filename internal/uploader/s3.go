package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	cfg "sqlpilot/internal/config"
	"sqlpilot/internal/util"
)

// S3Uploader ships session directories to S3-compatible storage. A custom
// endpoint switches it to MinIO-style deployments.
type S3Uploader struct {
	cfg    cfg.S3Config
	client *s3.Client
}

// NewS3 builds the client from configuration. A disabled config still
// returns a valid uploader so callers need no special casing.
func NewS3(c cfg.S3Config) (*S3Uploader, error) {
	u := &S3Uploader{cfg: c}
	if !c.Enabled {
		return u, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), s3LoadOptions(c)...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	u.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = c.UsePathStyle
	})
	return u, nil
}

// s3LoadOptions translates the storage config into SDK load options. Static
// credentials and the custom endpoint are only applied when set, leaving the
// SDK's default chain in place otherwise.
func s3LoadOptions(c cfg.S3Config) []func(*awsconfig.LoadOptions) error {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}
	if c.Endpoint != "" {
		//nolint:staticcheck // the per-service endpoint API does not cover LoadDefaultConfig; the deprecated resolver is still the way to point the SDK at MinIO.
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...any) (aws.Endpoint, error) {
			if service != s3.ServiceID {
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}
			return aws.Endpoint{URL: c.Endpoint, HostnameImmutable: true}, nil
		})
		//nolint:staticcheck
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	return opts
}

func (u *S3Uploader) Enabled() bool {
	return u.cfg.Enabled
}

// UploadDir puts every file of one session directory under the configured
// prefix and returns the s3:// location of the uploaded set.
func (u *S3Uploader) UploadDir(ctx context.Context, dir string) (string, error) {
	if !u.cfg.Enabled {
		return "", nil
	}
	if u.client == nil {
		return "", errors.New("s3 uploader is not initialized")
	}
	prefix := keyPrefix(u.cfg.Prefix)
	objects, err := sessionFiles(dir, prefix)
	if err != nil {
		return "", err
	}
	for _, obj := range objects {
		if err := u.put(ctx, obj); err != nil {
			return "", errors.Wrapf(err, "upload %s", obj.key)
		}
	}
	location := fmt.Sprintf("s3://%s/%s%s/", u.cfg.Bucket, prefix, filepath.Base(dir))
	util.Detailf("uploaded %d objects to %s", len(objects), location)
	return location, nil
}

func (u *S3Uploader) put(ctx context.Context, obj object) error {
	file, err := os.Open(obj.path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(file, "s3 upload file")

	info, err := file.Stat()
	if err != nil {
		return err
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(obj.key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
	})
	return err
}
