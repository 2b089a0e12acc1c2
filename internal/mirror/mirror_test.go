package mirror_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"hopper/internal/config"
	"hopper/internal/mirror"
	"hopper/internal/testsupport"
)

type fakeS3 struct {
	bucket, key, contentType string
	body                     string
	err                      error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestUploadUsesPrefixedKey(t *testing.T) {
	src := filepath.Join(t.TempDir(), "report.checksum")
	testsupport.WriteContent(t, src, "abc123")

	client := &fakeS3{}
	m := mirror.NewWithClient(client, "artifacts", "/hopper/")
	if err := m.Upload(context.Background(), src); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if client.bucket != "artifacts" || client.key != "hopper/report.checksum" {
		t.Fatalf("unexpected target %s/%s", client.bucket, client.key)
	}
	if client.body != "abc123" {
		t.Fatalf("unexpected body %q", client.body)
	}
	if !strings.HasPrefix(client.contentType, "text/plain") {
		t.Fatalf("unexpected content type %q", client.contentType)
	}
	if got := m.URI(src); got != "s3://artifacts/hopper/report.checksum" {
		t.Fatalf("URI = %q", got)
	}
}

func TestUploadWrapsClientError(t *testing.T) {
	src := filepath.Join(t.TempDir(), "report.gz")
	testsupport.WriteContent(t, src, "gz")
	sentinel := errors.New("access denied")
	m := mirror.NewWithClient(&fakeS3{err: sentinel}, "artifacts", "")

	err := m.Upload(context.Background(), src)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestNewWithoutBucketIsDisabled(t *testing.T) {
	m, err := mirror.New(context.Background(), config.Mirror{})
	if err != nil || m != nil {
		t.Fatalf("expected nil mirror, got %v, %v", m, err)
	}
}
