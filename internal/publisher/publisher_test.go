package publisher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"lessonmedia/internal/config"
	"lessonmedia/internal/logging"
	"lessonmedia/internal/services"
)

type fakeUploader struct {
	puts      []fakePut
	putErr    error
	exists    bool
	existsErr error
}

type fakePut struct {
	bucket, key, path, contentType string
}

func (f *fakeUploader) FPutObject(_ context.Context, bucket, key, path string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	f.puts = append(f.puts, fakePut{bucket: bucket, key: key, path: path, contentType: opts.ContentType})
	info, _ := os.Stat(path)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: info.Size()}, nil
}

func (f *fakeUploader) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func writeArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var fixed = time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))

func newTestPublisher(t *testing.T, cfg config.ObjectStore, up *fakeUploader) *Publisher {
	t.Helper()
	p, err := New(cfg, logging.NewNop(), WithUploader(up), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestPublishUsesNamespacedKeyAndContentType(t *testing.T) {
	up := &fakeUploader{}
	p := newTestPublisher(t, config.ObjectStore{Endpoint: "minio.local:9000", Bucket: "lessons"}, up)
	path := writeArtifact(t, "final.mp4")

	location, err := p.Publish(context.Background(), "Lesson 12", path, ContentVideo)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	wantKey := "jobs/lesson_12/20260304T040607Z/final.mp4"
	if len(up.puts) != 1 || up.puts[0].key != wantKey || up.puts[0].contentType != "video/mp4" || up.puts[0].bucket != "lessons" {
		t.Fatalf("unexpected upload %+v", up.puts)
	}
	if location != "http://minio.local:9000/lessons/"+wantKey {
		t.Fatalf("unexpected url %s", location)
	}
}

func TestPublishPrefersPublicBaseURL(t *testing.T) {
	up := &fakeUploader{}
	p := newTestPublisher(t, config.ObjectStore{
		Endpoint: "minio:9000", Bucket: "b", UseSSL: true, PublicBaseURL: "https://cdn.example.com/media/",
	}, up)
	location, err := p.PublishAt(context.Background(), "j", writeArtifact(t, "page 1.png"), ContentImage, fixed)
	if err != nil {
		t.Fatal(err)
	}
	if location != "https://cdn.example.com/media/jobs/j/20260304T040607Z/page%201.png" {
		t.Fatalf("unexpected url %s", location)
	}
	if up.puts[0].contentType != "image/png" {
		t.Fatalf("unexpected content type %s", up.puts[0].contentType)
	}
}

func TestPublishFailureIsUploadError(t *testing.T) {
	up := &fakeUploader{putErr: errors.New("connection refused")}
	p := newTestPublisher(t, config.ObjectStore{Endpoint: "e", Bucket: "b"}, up)
	ctx := services.WithStage(context.Background(), "publish")
	_, err := p.Publish(ctx, "j", writeArtifact(t, "a.mp3"), ContentAudio)
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload error, got %v", err)
	}

	_, err = p.Publish(ctx, "j", filepath.Join(t.TempDir(), "missing.mp3"), ContentAudio)
	if !errors.Is(err, services.ErrMissingAsset) {
		t.Fatalf("expected missing asset error, got %v", err)
	}
}

func TestCheckBucket(t *testing.T) {
	cfg := config.ObjectStore{Endpoint: "e", Bucket: "b"}
	if err := newTestPublisher(t, cfg, &fakeUploader{exists: true}).CheckBucket(context.Background()); err != nil {
		t.Fatalf("expected bucket ok, got %v", err)
	}
	err := newTestPublisher(t, cfg, &fakeUploader{}).CheckBucket(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	err = newTestPublisher(t, cfg, &fakeUploader{existsErr: errors.New("dial")}).CheckBucket(context.Background())
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload error, got %v", err)
	}
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	if _, err := New(config.ObjectStore{Bucket: "b"}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestContentTypes(t *testing.T) {
	if ContentManifest.ContentType() != "application/json" || ContentAudio.ContentType() != "audio/mpeg" {
		t.Fatal("unexpected content types")
	}
	if ContentKind("other").ContentType() != "application/octet-stream" {
		t.Fatal("unexpected default content type")
	}
}
