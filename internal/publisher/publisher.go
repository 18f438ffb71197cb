package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lessonmedia/internal/config"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/services"
	"lessonmedia/internal/textutil"
)

// ContentKind classifies a published artifact.
type ContentKind string

const (
	ContentVideo    ContentKind = "video"
	ContentAudio    ContentKind = "audio"
	ContentImage    ContentKind = "image"
	ContentManifest ContentKind = "manifest"
)

// ContentType returns the MIME type uploaded for kind.
func (k ContentKind) ContentType() string {
	switch k {
	case ContentVideo:
		return "video/mp4"
	case ContentAudio:
		return "audio/mpeg"
	case ContentImage:
		return "image/png"
	case ContentManifest:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

const timestampLayout = "20060102T150405Z"

// uploader is the subset of *minio.Client the publisher needs.
type uploader interface {
	FPutObject(ctx context.Context, bucket, key, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// Publisher uploads artifacts to one bucket.
type Publisher struct {
	client  uploader
	bucket  string
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithUploader replaces the minio client, for tests.
func WithUploader(u uploader) Option {
	return func(p *Publisher) {
		if u != nil {
			p.client = u
		}
	}
}

// WithClock overrides the timestamp source used in object keys.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a Publisher from the object store settings.
func New(cfg config.ObjectStore, logger *slog.Logger, opts ...Option) (*Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "configure", "object store endpoint and bucket are required", nil)
	}
	p := &Publisher{
		bucket:  bucket,
		baseURL: publicBase(cfg),
		logger:  logging.NewComponentLogger(logger, "publisher"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		client, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "publish", "configure", "create object store client", err)
		}
		p.client = client
	}
	return p, nil
}

func publicBase(cfg config.ObjectStore) string {
	if base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"); base != "" {
		return base
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, strings.TrimSpace(cfg.Endpoint), strings.TrimSpace(cfg.Bucket))
}

// Bucket returns the target bucket.
func (p *Publisher) Bucket() string {
	return p.bucket
}

// ObjectKey returns the key an artifact uploaded at ts would use.
func ObjectKey(jobID string, ts time.Time, localPath string) string {
	return strings.Join([]string{
		"jobs",
		textutil.SanitizeToken(jobID),
		ts.UTC().Format(timestampLayout),
		filepath.Base(localPath),
	}, "/")
}

// URLFor resolves the public URL of key.
func (p *Publisher) URLFor(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return p.baseURL + "/" + strings.Join(segments, "/")
}

// Publish uploads localPath for jobID and returns its public URL.
func (p *Publisher) Publish(ctx context.Context, jobID, localPath string, kind ContentKind) (string, error) {
	return p.PublishAt(ctx, jobID, localPath, kind, p.now())
}

// PublishAt uploads using an explicit timestamp so a run can keep all of its
// artifacts under one prefix.
func (p *Publisher) PublishAt(ctx context.Context, jobID, localPath string, kind ContentKind, ts time.Time) (string, error) {
	stage, _ := services.StageFromContext(ctx)
	info, err := os.Stat(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrMissingAsset, stage, "publish", "artifact missing before upload", err)
	}
	if info.Size() == 0 {
		return "", services.Wrap(services.ErrMissingAsset, stage, "publish", "artifact is empty", nil)
	}

	key := ObjectKey(jobID, ts, localPath)
	started := time.Now()
	upload, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: kind.ContentType(),
	})
	if err != nil {
		return "", services.Wrap(services.ErrUpload, stage, "publish",
			fmt.Sprintf("upload %s to %s/%s", filepath.Base(localPath), p.bucket, key), err)
	}
	location := p.URLFor(key)
	logging.WithContext(ctx, p.logger).Info("artifact published",
		logging.String("key", key),
		logging.String("kind", string(kind)),
		logging.Int64("bytes", upload.Size),
		logging.Duration("elapsed", time.Since(started)),
		logging.String("url", location),
	)
	return location, nil
}

// CheckBucket verifies that the bucket exists and is reachable.
func (p *Publisher) CheckBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return services.Wrap(services.ErrUpload, "preflight", "bucket", "object store unreachable", err)
	}
	if !exists {
		return services.Wrap(services.ErrConfiguration, "preflight", "bucket",
			fmt.Sprintf("bucket %q does not exist", p.bucket), nil)
	}
	return nil
}
