package metacache

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"packfetch/internal/services"
)

// Write streams r into entry's file through a temporary file in the same
// directory, renames it into place and records size, digest and etag.
// Callers hold the entry lock while writing.
func (s *Store) Write(ctx context.Context, entry *Entry, r io.Reader, etag string) error {
	dir := filepath.Dir(entry.FullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, "metacache", "write", "create namespace directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+entry.Key+".*.part")
	if err != nil {
		return services.Wrap(services.ErrFilesystem, "metacache", "write", "create temp file", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	h := NewHash()
	size, copyErr := io.Copy(io.MultiWriter(tmp, h), r)
	closeErr := tmp.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return services.Wrap(services.ErrFilesystem, "metacache", "write", "close temp file", closeErr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, entry.FullPath); err != nil {
		return services.Wrap(services.ErrFilesystem, "metacache", "write", "rename into place", err)
	}
	committed = true

	entry.ETag = etag
	entry.Size = size
	entry.Digest = hex.EncodeToString(h.Sum(nil))
	entry.UpdatedAt = time.Now().UTC()
	entry.Stale = false
	return s.UpdateEntry(ctx, entry)
}
