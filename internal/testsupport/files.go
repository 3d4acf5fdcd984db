package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"packfetch/internal/metacache"
)

// WriteFile fills path with size bytes of a repeating pattern and returns the
// content's cache digest. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) string {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	content := bytes.Repeat([]byte{0x42}, int(size))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	digest, _, err := metacache.Digest(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("digest %s: %v", path, err)
	}
	return digest
}
