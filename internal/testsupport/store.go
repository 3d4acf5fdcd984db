package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"packfetch/internal/config"
	"packfetch/internal/logging"
	"packfetch/internal/metacache"
)

// MustOpenCache opens the cache store configured in cfg and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *metacache.Store {
	t.Helper()

	store, err := metacache.Open(context.Background(), cfg.Paths.CacheDir, logging.NewNop())
	if err != nil {
		t.Fatalf("metacache.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// WriteInstance creates an instance directory with the given instance.toml body.
func WriteInstance(t testing.TB, dir, descriptor string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "instance.toml"), []byte(descriptor), 0o644); err != nil {
		t.Fatalf("write instance.toml: %v", err)
	}
	return dir
}
