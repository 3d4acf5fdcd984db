package metacache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"packfetch/internal/logging"
	"packfetch/internal/services"
)

const (
	indexFileName  = "metacache.db"
	lockSuffix     = ".lock"
	lockRetryDelay = 50 * time.Millisecond
)

// Entry describes one cached file.
type Entry struct {
	Namespace string
	Key       string
	FullPath  string
	ETag      string
	Digest    string
	Size      int64
	UpdatedAt time.Time
	// Stale is true when the file is missing and must be (re)fetched.
	Stale bool
}

// Store manages the cache directory and its SQLite index.
type Store struct {
	root   string
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes or connects to the cache rooted at root.
func Open(ctx context.Context, root string, logger *slog.Logger) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "metacache", "open", "cache directory is empty", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "metacache", "open", "create cache directory", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(root, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		root:   root,
		db:     db,
		logger: logging.NewComponentLogger(logger, "metacache"),
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Root returns the cache directory.
func (s *Store) Root() string {
	return s.root
}

// ResolveEntry returns the entry for (namespace, key). Entries that were never
// recorded are returned stale with only their identity and path populated.
func (s *Store) ResolveEntry(ctx context.Context, namespace, key string) (*Entry, error) {
	if err := validateName("namespace", namespace); err != nil {
		return nil, err
	}
	if err := validateName("key", key); err != nil {
		return nil, err
	}

	entry := &Entry{
		Namespace: namespace,
		Key:       key,
		FullPath:  s.pathFor(namespace, key),
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT etag, digest, size, updated_at FROM entries WHERE namespace = ? AND key = ?`,
		namespace, key,
	)
	if err := scanEntry(row, entry); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query entry %s/%s: %w", namespace, key, err)
	}

	entry.Stale = !fileExists(entry.FullPath)
	return entry, nil
}

// UpdateEntry records metadata for a freshly written entry.
func (s *Store) UpdateEntry(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return services.Wrap(services.ErrValidation, "metacache", "update", "entry is nil", nil)
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (namespace, key, etag, digest, size, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(namespace, key) DO UPDATE SET
             etag = excluded.etag,
             digest = excluded.digest,
             size = excluded.size,
             updated_at = excluded.updated_at`,
		entry.Namespace,
		entry.Key,
		nullableString(entry.ETag),
		nullableString(entry.Digest),
		entry.Size,
		entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("update entry %s/%s: %w", entry.Namespace, entry.Key, err)
	}
	s.logger.Debug("cache entry updated",
		logging.String("namespace", entry.Namespace),
		logging.String("key", entry.Key),
		logging.Int64("size", entry.Size),
	)
	return nil
}

// Lock acquires the writer lock for entry, waiting until ctx is done.
// The returned function releases the lock.
func (s *Store) Lock(ctx context.Context, entry *Entry) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(entry.FullPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "metacache", "lock", "create namespace directory", err)
	}
	lock := flock.New(entry.FullPath + lockSuffix)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "metacache", "lock", entry.Key, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrFilesystem, "metacache", "lock", entry.Key, errors.New("lock not acquired"))
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("release entry lock failed",
				logging.String("key", entry.Key),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cache_unlock_failed"),
				logging.String(logging.FieldErrorHint, "remove the stale .lock file if it persists"),
				logging.String(logging.FieldImpact, "later writers of this entry may wait"),
			)
		}
	}, nil
}

// Refresh re-evaluates whether entry's file exists.
func (s *Store) Refresh(entry *Entry) {
	entry.Stale = !fileExists(entry.FullPath)
}

// List returns recorded entries, optionally limited to one namespace.
func (s *Store) List(ctx context.Context, namespace string) ([]Entry, error) {
	query := `SELECT namespace, key, etag, digest, size, updated_at FROM entries`
	var args []any
	if namespace != "" {
		query += ` WHERE namespace = ?`
		args = append(args, namespace)
	}
	query += ` ORDER BY namespace, key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var etag, digest sql.NullString
		var updated string
		if err := rows.Scan(&entry.Namespace, &entry.Key, &etag, &digest, &entry.Size, &updated); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.ETag = etag.String
		entry.Digest = digest.String
		entry.UpdatedAt = parseTime(updated)
		entry.FullPath = s.pathFor(entry.Namespace, entry.Key)
		entry.Stale = !fileExists(entry.FullPath)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Evict removes an entry's file and index row.
func (s *Store) Evict(ctx context.Context, namespace, key string) error {
	entry, err := s.ResolveEntry(ctx, namespace, key)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("delete entry %s/%s: %w", namespace, key, err)
	}
	affected, _ := res.RowsAffected()
	removeErr := os.Remove(entry.FullPath)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return services.Wrap(services.ErrFilesystem, "metacache", "evict", entry.FullPath, removeErr)
	}
	if affected == 0 && removeErr != nil {
		return services.Wrap(services.ErrNotFound, "metacache", "evict", namespace+"/"+key, nil)
	}
	return nil
}

// VerifyResult reports whether a recorded digest matches the file on disk.
type VerifyResult struct {
	Entry   Entry
	OK      bool
	Problem string
}

// Verify recomputes the digest of every recorded entry.
func (s *Store) Verify(ctx context.Context, namespace string) ([]VerifyResult, error) {
	entries, err := s.List(ctx, namespace)
	if err != nil {
		return nil, err
	}
	results := make([]VerifyResult, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, verifyEntry(entry))
	}
	return results, nil
}

func verifyEntry(entry Entry) VerifyResult {
	result := VerifyResult{Entry: entry}
	if entry.Stale {
		result.Problem = "file missing"
		return result
	}
	file, err := os.Open(entry.FullPath)
	if err != nil {
		result.Problem = err.Error()
		return result
	}
	defer file.Close()

	digest, size, err := Digest(file)
	switch {
	case err != nil:
		result.Problem = err.Error()
	case entry.Digest == "":
		result.Problem = "no digest recorded"
	case size != entry.Size:
		result.Problem = fmt.Sprintf("size %d, recorded %d", size, entry.Size)
	case digest != entry.Digest:
		result.Problem = "digest mismatch"
	default:
		result.OK = true
	}
	return result
}

// NewHash returns the hash used for entry digests.
func NewHash() hash.Hash {
	return blake3.New()
}

// Digest returns the hex BLAKE3 digest and byte count of r.
func Digest(r io.Reader) (string, int64, error) {
	h := NewHash()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func (s *Store) pathFor(namespace, key string) string {
	return filepath.Join(s.root, namespace, key)
}

func validateName(field, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return services.Wrap(services.ErrValidation, "metacache", "resolve", field+" is empty", nil)
	case value == "." || value == "..":
		return services.Wrap(services.ErrValidation, "metacache", "resolve", fmt.Sprintf("%s %q is not a file name", field, value), nil)
	case strings.ContainsAny(value, `/\`):
		return services.Wrap(services.ErrValidation, "metacache", "resolve", fmt.Sprintf("%s %q contains a path separator", field, value), nil)
	case strings.HasSuffix(value, lockSuffix) || value == indexFileName:
		return services.Wrap(services.ErrValidation, "metacache", "resolve", fmt.Sprintf("%s %q is reserved", field, value), nil)
	}
	return nil
}

func scanEntry(row *sql.Row, entry *Entry) error {
	var etag, digest sql.NullString
	var updated string
	if err := row.Scan(&etag, &digest, &entry.Size, &updated); err != nil {
		return err
	}
	entry.ETag = etag.String
	entry.Digest = digest.String
	entry.UpdatedAt = parseTime(updated)
	return nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
