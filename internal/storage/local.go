package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"mediaflow/internal/media/ffprobe"
	"mediaflow/internal/services"
)

// LocalProvider stores objects as files under a single directory.
type LocalProvider struct {
	dir     string
	ffprobe string
}

// NewLocalProvider creates the directory if needed.
func NewLocalProvider(dir, ffprobeBinary string) (*LocalProvider, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: local directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure local directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve local directory: %w", err)
	}
	return &LocalProvider{dir: abs, ffprobe: ffprobeBinary}, nil
}

// Transfer copies r into a new file. A partial file is removed on failure.
func (p *LocalProvider) Transfer(ctx context.Context, r io.Reader, name, _ string) (Object, error) {
	filename := objectName(name)
	target := filepath.Join(p.dir, filename)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Object{}, services.Wrap(services.ErrTransient, "storage", "transfer", "create object", err)
	}
	size, copyErr := io.Copy(f, contextReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(target)
		return Object{}, services.Wrap(services.ErrTransient, "storage", "transfer", "write object", err)
	}
	return Object{
		Ref:      filename,
		URL:      (&url.URL{Scheme: "file", Path: target}).String(),
		Filename: filename,
		Size:     size,
	}, nil
}

// Probe runs ffprobe on the stored file.
func (p *LocalProvider) Probe(ctx context.Context, ref string) (ffprobe.Summary, error) {
	path, err := p.resolve(ref)
	if err != nil {
		return ffprobe.Summary{}, err
	}
	result, err := ffprobe.Inspect(ctx, p.ffprobe, path)
	if err != nil {
		return ffprobe.Summary{}, services.Wrap(services.ErrExternalTool, "storage", "probe", "ffprobe", err)
	}
	return result.Summarize(), nil
}

// Delete removes the stored file. Missing files are not an error.
func (p *LocalProvider) Delete(_ context.Context, ref string) error {
	path, err := p.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", ref, err)
	}
	return nil
}

// Locate returns the on-disk path for direct serving.
func (p *LocalProvider) Locate(_ context.Context, ref string) (Location, error) {
	path, err := p.resolve(ref)
	if err != nil {
		return Location{}, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Location{}, fmt.Errorf("storage: object %s: %w", ref, services.ErrNotFound)
		}
		return Location{}, fmt.Errorf("storage: stat %s: %w", ref, err)
	}
	return Location{Path: path}, nil
}

// Dir returns the storage directory.
func (p *LocalProvider) Dir() string { return p.dir }

func (p *LocalProvider) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return "", fmt.Errorf("storage: invalid reference %q: %w", ref, services.ErrValidation)
	}
	return filepath.Join(p.dir, ref), nil
}

// contextReader stops a long copy once the request is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
