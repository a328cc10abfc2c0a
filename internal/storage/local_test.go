package storage_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/services"
	"mediaflow/internal/storage"
	"mediaflow/internal/testsupport"
)

func newLocal(t *testing.T, ffprobe string) *storage.LocalProvider {
	t.Helper()
	p, err := storage.NewLocalProvider(filepath.Join(t.TempDir(), "media"), ffprobe)
	if err != nil {
		t.Fatalf("NewLocalProvider failed: %v", err)
	}
	return p
}

func TestLocalTransferLocateDelete(t *testing.T) {
	p := newLocal(t, "ffprobe")
	ctx := context.Background()

	obj, err := p.Transfer(ctx, bytes.NewReader(testsupport.MediaBytes(4096)), "Holiday.MP4", "video/mp4")
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if obj.Size != 4096 {
		t.Fatalf("expected 4096 bytes, got %d", obj.Size)
	}
	if !strings.HasSuffix(obj.Filename, ".mp4") || obj.Ref != obj.Filename {
		t.Fatalf("unexpected object naming: %#v", obj)
	}
	if !strings.HasPrefix(obj.URL, "file://") {
		t.Fatalf("expected file URL, got %q", obj.URL)
	}

	loc, err := p.Locate(ctx, obj.Ref)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if loc.Path != filepath.Join(p.Dir(), obj.Filename) || loc.URL != "" {
		t.Fatalf("unexpected location: %#v", loc)
	}

	if err := p.Delete(ctx, obj.Ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(loc.Path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err %v", err)
	}
	if err := p.Delete(ctx, obj.Ref); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if _, err := p.Locate(ctx, obj.Ref); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	p := newLocal(t, "ffprobe")
	for _, ref := range []string{"../etc/passwd", "a/b.mp4", "", ".."} {
		if err := p.Delete(context.Background(), ref); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Delete(%q): expected validation error, got %v", ref, err)
		}
	}
}

func TestLocalProbeUsesFFprobe(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := `#!/bin/sh
echo '{"streams":[{"codec_type":"video","codec_name":"vp9","width":640,"height":360}],"format":{"duration":"3.0","format_name":"matroska,webm","bit_rate":"800000"}}'
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	p := newLocal(t, script)
	ctx := context.Background()

	obj, err := p.Transfer(ctx, bytes.NewReader([]byte("webm")), "clip.webm", "video/webm")
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	summary, err := p.Probe(ctx, obj.Ref)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if summary.Codec != "vp9" || summary.Width != 640 || summary.Format != "matroska" || summary.DurationSeconds != 3 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestLocalProbeFailureIsExternalToolError(t *testing.T) {
	p := newLocal(t, filepath.Join(t.TempDir(), "missing-ffprobe"))
	ctx := context.Background()
	obj, err := p.Transfer(ctx, bytes.NewReader([]byte("x")), "clip.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if _, err := p.Probe(ctx, obj.Ref); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
