package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediaflow/internal/config"
	"mediaflow/internal/media/ffprobe"
	"mediaflow/internal/services"
)

const minioKeyPrefix = "videos/"

// MinioProvider stores objects in an S3-compatible bucket.
type MinioProvider struct {
	client  *minio.Client
	bucket  string
	expiry  time.Duration
	ffprobe string
}

// NewMinioProvider connects to the endpoint and makes sure the bucket exists.
func NewMinioProvider(ctx context.Context, cfg *config.Config) (*MinioProvider, error) {
	endpoint := strings.TrimSpace(cfg.Storage.MinioEndpoint)
	if endpoint == "" {
		return nil, errors.New("storage: minio endpoint is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.MinioAccessKey, cfg.Storage.MinioSecretKey, ""),
		Secure: cfg.Storage.MinioUseSSL,
		Region: cfg.Storage.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}
	bucket := strings.TrimSpace(cfg.Storage.MinioBucket)
	if bucket == "" {
		bucket = "mediaflow"
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Storage.MinioRegion}); err != nil {
			return nil, fmt.Errorf("storage: create bucket %s: %w", bucket, err)
		}
	}
	expiry := time.Duration(cfg.Storage.URLExpiry) * time.Second
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinioProvider{client: client, bucket: bucket, expiry: expiry, ffprobe: cfg.FFprobeBinary()}, nil
}

// Transfer streams r into the bucket.
func (p *MinioProvider) Transfer(ctx context.Context, r io.Reader, name, mimeType string) (Object, error) {
	filename := objectName(name)
	key := minioKeyPrefix + filename
	info, err := p.client.PutObject(ctx, p.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType:  mimeType,
		UserMetadata: map[string]string{"original-name": name},
	})
	if err != nil {
		return Object{}, services.Wrap(services.ErrTransient, "storage", "transfer", "put object", err)
	}
	objectURL := p.client.EndpointURL().JoinPath(p.bucket, key)
	return Object{
		Ref:      key,
		URL:      objectURL.String(),
		Filename: filename,
		Size:     info.Size,
	}, nil
}

// Probe runs ffprobe over a short-lived presigned link.
func (p *MinioProvider) Probe(ctx context.Context, ref string) (ffprobe.Summary, error) {
	link, err := p.presign(ctx, ref)
	if err != nil {
		return ffprobe.Summary{}, err
	}
	result, err := ffprobe.Inspect(ctx, p.ffprobe, link.String())
	if err != nil {
		return ffprobe.Summary{}, services.Wrap(services.ErrExternalTool, "storage", "probe", "ffprobe", err)
	}
	return result.Summarize(), nil
}

// Delete removes the object.
func (p *MinioProvider) Delete(ctx context.Context, ref string) error {
	if err := validateKey(ref); err != nil {
		return err
	}
	if err := p.client.RemoveObject(ctx, p.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: remove %s: %w", ref, err)
	}
	return nil
}

// Locate returns a presigned playback link.
func (p *MinioProvider) Locate(ctx context.Context, ref string) (Location, error) {
	link, err := p.presign(ctx, ref)
	if err != nil {
		return Location{}, err
	}
	return Location{URL: link.String()}, nil
}

func (p *MinioProvider) presign(ctx context.Context, ref string) (*url.URL, error) {
	if err := validateKey(ref); err != nil {
		return nil, err
	}
	link, err := p.client.PresignedGetObject(ctx, p.bucket, ref, p.expiry, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: presign %s: %w", ref, err)
	}
	return link, nil
}

func validateKey(ref string) error {
	if !strings.HasPrefix(ref, minioKeyPrefix) || strings.Contains(ref, "..") {
		return fmt.Errorf("storage: invalid reference %q: %w", ref, services.ErrValidation)
	}
	return nil
}
