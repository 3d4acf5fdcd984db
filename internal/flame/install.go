package flame

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"packfetch/internal/fetch"
	"packfetch/internal/fileutil"
	"packfetch/internal/i18n"
	"packfetch/internal/logging"
	"packfetch/internal/metacache"
	"packfetch/internal/netjob"
	"packfetch/internal/services"
	"packfetch/internal/task"
)

// CacheNamespace holds downloaded mod files.
const CacheNamespace = "flame"

// EntryResolver maps a (namespace, key) pair to a cache entry.
type EntryResolver interface {
	ResolveEntry(ctx context.Context, namespace, key string) (*metacache.Entry, error)
}

// InstallTask downloads the resolved files of a manifest into the cache and
// copies them into modsDir. Unresolved files are skipped.
type InstallTask struct {
	*task.Base

	manifest *Manifest
	fetcher  fetch.Fetcher
	cache    EntryResolver
	modsDir  string
	opts     options
	logger   *slog.Logger

	mu  sync.Mutex
	job *netjob.Job
}

type pendingMod struct {
	file  File
	entry *metacache.Entry
}

// NewInstallTask creates an install task for manifest.
func NewInstallTask(manifest *Manifest, fetcher fetch.Fetcher, cache EntryResolver, modsDir string, opts ...Option) *InstallTask {
	o := buildOptions(opts)
	return &InstallTask{
		Base:     task.NewBase("install"),
		manifest: manifest,
		fetcher:  fetcher,
		cache:    cache,
		modsDir:  modsDir,
		opts:     o,
		logger:   logging.NewComponentLogger(o.logger, "flame"),
	}
}

// cacheKey keeps equally named files of different projects apart.
func cacheKey(f File) string {
	return fmt.Sprintf("%d-%d-%s", f.ProjectID, f.FileID, f.FileName)
}

func (t *InstallTask) Execute(ctx context.Context) {
	if !t.Start() {
		return
	}
	ctx = services.WithTaskName(services.WithTaskID(ctx, t.ID()), t.Name())
	logger := logging.WithContext(ctx, t.logger)

	var pending []pendingMod
	for _, file := range t.manifest.Files {
		if !file.Resolved {
			attrs := []logging.Attr{
				logging.Int64("project_id", file.ProjectID),
				logging.Int64("file_id", file.FileID),
				logging.String(logging.FieldImpact, "mod will be missing from the instance"),
				logging.String(logging.FieldErrorHint, "run resolve again"),
			}
			if file.Required {
				attrs = append(attrs, logging.Alert("required_mod_missing"))
			}
			logging.WarnWithContext(logger, "skipping unresolved mod", "mod_unresolved", attrs...)
			continue
		}
		if filepath.Base(file.FileName) != file.FileName || strings.HasPrefix(file.FileName, ".") {
			t.Fail(t.opts.printer.Sprintf(i18n.ModCopyFailed, file.FileName),
				services.Wrap(services.ErrValidation, "flame", "install", "unsafe file name "+file.FileName, nil))
			return
		}
		entry, err := t.cache.ResolveEntry(ctx, CacheNamespace, cacheKey(file))
		if err != nil {
			t.Fail(t.opts.printer.Sprintf(i18n.ModCopyFailed, file.FileName), err)
			return
		}
		pending = append(pending, pendingMod{file: file, entry: entry})
	}
	if len(pending) == 0 {
		t.Succeed()
		return
	}

	t.SetStatus(t.opts.printer.Sprintf(i18n.DownloadingMods))
	job := netjob.New("Mods", t.fetcher,
		netjob.WithConcurrency(t.opts.concurrency),
		netjob.WithLogger(t.opts.logger),
	)
	for _, p := range pending {
		job.Add(netjob.Cached(p.file.URL, p.entry))
	}

	t.mu.Lock()
	t.job = job
	events, err := job.Start(ctx)
	t.mu.Unlock()
	if err != nil {
		t.Fail(t.opts.printer.Sprintf(i18n.ModsAborted), err)
		return
	}
	go t.watch(logger, events, pending)
}

func (t *InstallTask) CanAbort() bool {
	return !t.Finished()
}

// Abort forwards to the download job. Without a running job there is nothing
// to cancel and it still reports success.
func (t *InstallTask) Abort() bool {
	if !t.CanAbort() {
		return false
	}
	t.mu.Lock()
	job := t.job
	t.mu.Unlock()
	if job == nil {
		logging.WarnWithContext(t.logger, "install aborted before downloads started", "premature_abort",
			logging.String(logging.FieldImpact, "nothing to cancel"))
		return true
	}
	return t.AbortWith(job.Abort)
}

func (t *InstallTask) watch(logger *slog.Logger, events <-chan netjob.Event, pending []pendingMod) {
	for ev := range events {
		switch ev.Kind {
		case netjob.EventProgress:
			t.SetProgress(ev.Current, ev.Total)
		case netjob.EventAborted:
			t.Fail(t.opts.printer.Sprintf(i18n.ModsAborted),
				services.Wrap(services.ErrAborted, "flame", "install", "download aborted", nil))
		case netjob.EventFailed:
			t.Fail(t.opts.printer.Sprintf(i18n.DownloadFailed, strings.Join(ev.Failed, "\n"), ev.Reason),
				services.Wrap(services.ErrTransport, "flame", "install", ev.Reason, nil))
		case netjob.EventSucceeded:
			t.copyAll(logger, pending)
		}
	}
}

func (t *InstallTask) copyAll(logger *slog.Logger, pending []pendingMod) {
	t.SetStatus(t.opts.printer.Sprintf(i18n.CopyingMods))
	if err := os.MkdirAll(t.modsDir, 0o755); err != nil {
		t.Fail(t.opts.printer.Sprintf(i18n.ModsDirFailed),
			services.Wrap(services.ErrFilesystem, "flame", "install", t.modsDir, err))
		return
	}
	for i, p := range pending {
		dst := filepath.Join(t.modsDir, p.file.FileName)
		if err := fileutil.CopyFileVerified(p.entry.FullPath, dst); err != nil {
			t.Fail(t.opts.printer.Sprintf(i18n.ModCopyFailed, p.file.FileName),
				services.Wrap(services.ErrFilesystem, "flame", "install", dst, err))
			return
		}
		t.SetProgress(i+1, len(pending))
	}
	logger.Info("mods installed", logging.Int("count", len(pending)), logging.String("mods_dir", t.modsDir))
	t.Succeed()
}
