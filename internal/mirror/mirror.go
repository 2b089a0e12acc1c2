// Package mirror copies finished artifacts to an S3-compatible bucket.
//
// The client honors the standard AWS configuration chain plus
// AWS_ENDPOINT_URL_S3 and AWS_S3_FORCE_PATH_STYLE, so MinIO and other
// S3-compatible stores work without code changes.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"hopper/internal/config"
)

// PutObjectAPI is the subset of the S3 client the mirror uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads files to s3://bucket/prefix/<base name>.
type S3 struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// New builds an S3 mirror from settings. It returns nil, nil when no bucket
// is configured.
func New(ctx context.Context, cfg config.Mirror) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if ep := os.Getenv("AWS_ENDPOINT_URL_S3"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
		if strings.EqualFold(os.Getenv("AWS_S3_FORCE_PATH_STYLE"), "true") {
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key used for localPath.
func (m *S3) Key(localPath string) string {
	name := filepath.Base(localPath)
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// URI returns the s3:// location used for localPath.
func (m *S3) URI(localPath string) string {
	return "s3://" + m.bucket + "/" + m.Key(localPath)
}

// Upload copies localPath to the bucket, replacing any object with the same key.
func (m *S3) Upload(ctx context.Context, localPath string) error {
	if m == nil || m.client == nil {
		return errors.New("mirror not configured")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.Key(localPath)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", m.URI(localPath), err)
	}
	return nil
}

func contentType(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".gz":
		return "application/gzip"
	case ".checksum":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
