// Package archive stores raw fetched content in MinIO object storage.
// Archiving is best-effort: failures are logged by callers and never abort a
// scrape.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mochatech1725/scholarship-scraper2/internal/config"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
)

// Object is one piece of raw content.
type Object struct {
	Source      string
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// Sink accepts raw content.
type Sink interface {
	Put(ctx context.Context, obj Object) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Put(context.Context, Object) error { return nil }

// Archiver writes objects to a MinIO bucket.
type Archiver struct {
	client *miniogo.Client
	bucket string
	log    logger.Logger
}

// New returns an Archiver, or Nop when cfg has no endpoint.
func New(cfg config.MinIOConfig, log logger.Logger) (Sink, error) {
	log = log.With(logger.Component("archive"))
	if !cfg.Enabled() {
		log.Info("MinIO archiving disabled")
		return Nop{}, nil
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	log.Info("MinIO archiver initialized", logger.String("endpoint", cfg.Endpoint), logger.String("bucket", cfg.Bucket))
	return &Archiver{client: client, bucket: cfg.Bucket, log: log}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Put uploads obj under ObjectKey(obj).
func (a *Archiver) Put(ctx context.Context, obj Object) error {
	key := ObjectKey(obj)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(obj.Body), int64(len(obj.Body)),
		miniogo.PutObjectOptions{
			ContentType: obj.ContentType,
			UserMetadata: map[string]string{
				"url":        obj.URL,
				"source":     obj.Source,
				"fetched-at": obj.FetchedAt.UTC().Format(time.RFC3339),
			},
		})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	a.log.Debug("Archived raw content", logger.String("key", key), logger.Int("size", len(obj.Body)))
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// ObjectKey returns <source>/<yyyy-mm-dd>/<url-hash>.<ext>.
func ObjectKey(obj Object) string {
	source := strings.Trim(unsafeKeyChars.ReplaceAllString(strings.ToLower(obj.Source), "-"), "-")
	if source == "" {
		source = "unknown"
	}
	sum := sha256.Sum256([]byte(obj.URL))
	name := hex.EncodeToString(sum[:8]) + extension(obj.ContentType)
	return path.Join(source, obj.FetchedAt.UTC().Format("2006-01-02"), name)
}

func extension(contentType string) string {
	switch {
	case strings.Contains(contentType, "json"):
		return ".json"
	case strings.Contains(contentType, "html"):
		return ".html"
	default:
		return ".txt"
	}
}
