package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mediaflow/internal/config"
	"mediaflow/internal/media/ffprobe"
)

// Object describes a stored upload.
type Object struct {
	Ref      string
	URL      string
	Filename string
	Size     int64
}

// Location tells the HTTP layer how to deliver a stored object. Exactly one
// of URL (redirect target) or Path (file served directly) is set.
type Location struct {
	URL  string
	Path string
}

// Provider is the storage collaborator used by ingress, the pipeline and the
// query surface.
type Provider interface {
	Transfer(ctx context.Context, r io.Reader, name, mimeType string) (Object, error)
	Probe(ctx context.Context, ref string) (ffprobe.Summary, error)
	Delete(ctx context.Context, ref string) error
	Locate(ctx context.Context, ref string) (Location, error)
}

// New builds the provider selected by the configuration.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Backend {
	case config.StorageMinio:
		return NewMinioProvider(ctx, cfg)
	case config.StorageLocal, "":
		return NewLocalProvider(cfg.Storage.LocalDir, cfg.FFprobeBinary())
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.Storage.Backend)
	}
}

// objectName derives a collision-free object name that keeps the upload's
// extension.
func objectName(original string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(original)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return uuid.NewString() + ext
}
