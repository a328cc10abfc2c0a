package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// MediaBytes returns size bytes of a repeating pattern standing in for an
// uploaded video. A size <= 0 yields a single byte.
func MediaBytes(size int) []byte {
	if size <= 0 {
		size = 1
	}
	return bytes.Repeat([]byte{0x42}, size)
}

// WriteFile fills the target path with size pattern bytes, creating parent
// directories as needed.
func WriteFile(t testing.TB, path string, size int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, MediaBytes(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
