// Package archive persists processed bundles to object storage: the
// detailed report as markdown and the result set as parquet, mirroring the
// analysis documents the platform publishes for offline review.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/blueinsight/blueinsight/internal/answer"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type objectClient interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
}

type Archiver struct {
	client objectClient
	bucket string
	prefix string

	now func() time.Time
}

func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	mc, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	archiver := &Archiver{
		client: mc,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: cleanPrefix(cfg.Prefix),
		now:    time.Now,
	}
	if cfg.AutoCreateBucket {
		if err := archiver.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return archiver, nil
}

func NewWithClient(bucket, prefix string, client objectClient) (*Archiver, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Archiver{
		client: client,
		bucket: strings.TrimSpace(bucket),
		prefix: cleanPrefix(prefix),
		now:    time.Now,
	}, nil
}

// ArchiveBundle writes <stamp>.md and <stamp>.parquet under the session's
// prefix. Failures here must never fail the question; callers log and move
// on.
func (a *Archiver) ArchiveBundle(ctx context.Context, bundle answer.Bundle) error {
	stamp := a.now().UTC().Format("20060102T150405")
	session := bundle.SessionID
	if session == "" {
		session = "anonymous"
	}
	base := path.Join(a.prefix, "reports", sanitizeComponent(session), stamp)

	report := renderReport(bundle)
	if err := a.client.Put(ctx, a.bucket, base+".md", strings.NewReader(report), int64(len(report)), "text/markdown"); err != nil {
		return fmt.Errorf("put report: %w", err)
	}

	if len(bundle.Records) > 0 {
		encoded, err := encodeRecordsParquet(bundle.Columns, bundle.Records)
		if err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		if err := a.client.Put(ctx, a.bucket, base+".parquet", bytes.NewReader(encoded), int64(len(encoded)), "application/octet-stream"); err != nil {
			return fmt.Errorf("put results: %w", err)
		}
	}
	return nil
}

func renderReport(bundle answer.Bundle) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "# %s\n\n", strings.TrimSpace(bundle.Question))
	fmt.Fprintf(&builder, "Generated: %s\n\n", bundle.CreatedAt.UTC().Format(time.RFC3339))
	if bundle.GeneratedQuery != "" {
		fmt.Fprintf(&builder, "```sql\n%s\n```\n\n", bundle.GeneratedQuery)
	}
	fmt.Fprintf(&builder, "%s\n\n", bundle.BriefText)
	builder.WriteString(bundle.DetailedText)
	if len(bundle.Insights) > 0 {
		builder.WriteString("\n\n## Insights\n\n")
		for _, insight := range bundle.Insights {
			fmt.Fprintf(&builder, "- %s\n", insight)
		}
	}
	return builder.String()
}

func (a *Archiver) ensureBucket(ctx context.Context, region string) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.CreateBucket(ctx, a.bucket, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", a.bucket, err)
	}
	return nil
}

func sanitizeComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "anonymous"
	}
	return value
}

func cleanPrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.TrimPrefix(prefix, "/"))
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}

func newMinioClient(cfg Config) (*minioClient, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	clientImpl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	return &minioClient{client: clientImpl}, nil
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint URL: %w", err)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("endpoint host is required")
		}
		if parsed.Scheme == "https" {
			return parsed.Host, true, nil
		}
		return parsed.Host, useSSL, nil
	}
	return raw, useSSL, nil
}

type minioClient struct {
	client *minio.Client
}

func (m *minioClient) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (m *minioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.client.BucketExists(ctx, bucket)
}

func (m *minioClient) CreateBucket(ctx context.Context, bucket, region string) error {
	return m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}
