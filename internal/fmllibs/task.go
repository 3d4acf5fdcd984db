package fmllibs

import (
	"context"
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

const (
	// CacheNamespace holds downloaded FML libraries.
	CacheNamespace = "fmllibs"
	// TraitLegacyFML marks profiles whose loader needs the extra libraries.
	TraitLegacyFML = "legacyFML"
	// ForgeComponent is the uid of the Forge component.
	ForgeComponent = "net.minecraftforge"

	DefaultSelfHostedBaseURL = "https://files.multimc.org/fmllibs/"
	DefaultUpstreamBaseURL   = "https://files.minecraftforge.net/fmllibs/"
)

// Profile answers questions about an instance's launch profile.
type Profile interface {
	HasTrait(name string) bool
	HasComponent(uid string) bool
}

// Target is the instance being prepared.
type Target interface {
	IntendedVersion() string
	LibDir() string
	Profile() Profile
}

// EntryResolver maps a (namespace, key) pair to a cache entry.
type EntryResolver interface {
	ResolveEntry(ctx context.Context, namespace, key string) (*metacache.Entry, error)
}

type options struct {
	table       Table
	selfHosted  string
	upstream    string
	concurrency int
	printer     *i18n.Printer
	logger      *slog.Logger
}

// Option configures the task.
type Option func(*options)

// WithTable replaces the built-in version table.
func WithTable(table Table) Option {
	return func(o *options) {
		if table != nil {
			o.table = table
		}
	}
}

// WithBaseURLs overrides the two download bases. Empty values keep the defaults.
func WithBaseURLs(selfHosted, upstream string) Option {
	return func(o *options) {
		if selfHosted != "" {
			o.selfHosted = selfHosted
		}
		if upstream != "" {
			o.upstream = upstream
		}
	}
}

func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithPrinter(p *i18n.Printer) Option {
	return func(o *options) {
		if p != nil {
			o.printer = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Task downloads and installs the FML libraries an instance is missing.
type Task struct {
	*task.Base

	target  Target
	fetcher fetch.Fetcher
	cache   EntryResolver
	opts    options
	logger  *slog.Logger

	required []Library

	mu  sync.Mutex
	job *netjob.Job
}

// New creates a task for target.
func New(target Target, fetcher fetch.Fetcher, cache EntryResolver, opts ...Option) *Task {
	o := options{
		selfHosted:  DefaultSelfHostedBaseURL,
		upstream:    DefaultUpstreamBaseURL,
		concurrency: netjob.DefaultConcurrency,
		printer:     i18n.English,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.table == nil {
		o.table = DefaultTable()
	}
	return &Task{
		Base:    task.NewBase("fmllibs"),
		target:  target,
		fetcher: fetcher,
		cache:   cache,
		opts:    o,
		logger:  logging.NewComponentLogger(o.logger, "fmllibs"),
	}
}

// Required returns the libraries found missing by Execute.
func (t *Task) Required() []Library {
	return append([]Library(nil), t.required...)
}

// SourceURL returns the download URL for lib.
func (t *Task) SourceURL(lib Library) string {
	base := t.opts.upstream
	if lib.SelfHosted {
		base = t.opts.selfHosted
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + lib.Filename
}

func (t *Task) Execute(ctx context.Context) {
	if !t.Start() {
		return
	}
	ctx = services.WithTaskName(services.WithTaskID(ctx, t.ID()), t.Name())
	logger := logging.WithContext(ctx, t.logger)

	profile := t.target.Profile()
	if profile == nil || !profile.HasTrait(TraitLegacyFML) {
		logger.Debug("profile has no legacy FML trait")
		t.Succeed()
		return
	}

	version := t.target.IntendedVersion()
	libs, ok := t.opts.table[version]
	if !ok {
		logger.Debug("no FML libraries listed for version", logging.String("version", version))
		t.Succeed()
		return
	}

	t.SetStatus(t.opts.printer.Sprintf(i18n.CheckingFMLLibs))
	if !profile.HasComponent(ForgeComponent) {
		logger.Debug("forge not installed")
		t.Succeed()
		return
	}

	libDir := t.target.LibDir()
	for _, lib := range libs {
		if fileutil.Exists(filepath.Join(libDir, lib.Filename)) {
			continue
		}
		t.required = append(t.required, lib)
	}
	if len(t.required) == 0 {
		logger.Debug("all FML libraries present", logging.String("version", version))
		t.Succeed()
		return
	}

	t.SetStatus(t.opts.printer.Sprintf(i18n.DownloadingFMLLibs))
	job := netjob.New("FML libraries", t.fetcher,
		netjob.WithConcurrency(t.opts.concurrency),
		netjob.WithLogger(t.opts.logger),
	)
	entries := make([]*metacache.Entry, len(t.required))
	for i, lib := range t.required {
		entry, err := t.cache.ResolveEntry(ctx, CacheNamespace, lib.Filename)
		if err != nil {
			t.Fail(t.opts.printer.Sprintf(i18n.DownloadFailed, lib.Filename, err.Error()), err)
			return
		}
		entries[i] = entry
		job.Add(netjob.Cached(t.SourceURL(lib), entry))
	}

	logger.Info("downloading FML libraries",
		logging.String("version", version),
		logging.Int("missing", len(t.required)),
	)

	t.mu.Lock()
	t.job = job
	events, err := job.Start(ctx)
	t.mu.Unlock()
	if err != nil {
		t.Fail(t.opts.printer.Sprintf(i18n.FMLLibsAborted), err)
		return
	}
	go t.watch(logger, events, entries)
}

// CanAbort is true until the task has finished.
func (t *Task) CanAbort() bool {
	return !t.Finished()
}

// Abort forwards to the download job when one is running. Without a job
// there is nothing in flight and the abort trivially succeeds.
func (t *Task) Abort() bool {
	if !t.CanAbort() {
		return false
	}
	t.mu.Lock()
	job := t.job
	t.mu.Unlock()
	if job == nil {
		logging.WarnWithContext(t.logger, "Prematurely aborted FML libraries task", "premature_abort",
			logging.String(logging.FieldImpact, "no downloads were in flight"),
			logging.String(logging.FieldErrorHint, "none required"),
		)
		return true
	}
	return t.AbortWith(job.Abort)
}

func (t *Task) watch(logger *slog.Logger, events <-chan netjob.Event, entries []*metacache.Entry) {
	for ev := range events {
		switch ev.Kind {
		case netjob.EventProgress:
			t.SetProgress(ev.Current, ev.Total)
		case netjob.EventAborted:
			t.Fail(t.opts.printer.Sprintf(i18n.FMLLibsAborted),
				services.Wrap(services.ErrAborted, "fmllibs", "download", "aborted", nil))
		case netjob.EventFailed:
			logging.ErrorWithContext(logger, "FML library download failed", "fmllibs_download_failed",
				logging.String("failed", strings.Join(ev.Failed, ",")),
				logging.String("reason", ev.Reason),
				logging.String(logging.FieldErrorHint, "check network access to the library mirrors"),
			)
			t.Fail(t.opts.printer.Sprintf(i18n.DownloadFailed, strings.Join(ev.Failed, "\n"), ev.Reason),
				services.Wrap(services.ErrTransport, "fmllibs", "download", ev.Reason, nil))
		case netjob.EventSucceeded:
			t.copyAll(logger, entries)
		}
	}
}

func (t *Task) copyAll(logger *slog.Logger, entries []*metacache.Entry) {
	t.SetStatus(t.opts.printer.Sprintf(i18n.CopyingFMLLibs))
	libDir := t.target.LibDir()
	total := len(t.required)
	for i, lib := range t.required {
		dst := filepath.Join(libDir, lib.Filename)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			t.Fail(t.opts.printer.Sprintf(i18n.FMLLibDirFailed),
				services.Wrap(services.ErrFilesystem, "fmllibs", "create library folder", libDir, err))
			return
		}
		if err := fileutil.CopyFileVerified(entries[i].FullPath, dst); err != nil {
			t.Fail(t.opts.printer.Sprintf(i18n.FMLLibCopyFailed, lib.Filename),
				services.Wrap(services.ErrFilesystem, "fmllibs", "copy library", dst, err))
			return
		}
		t.SetProgress(i+1, total)
	}
	logger.Info("FML libraries installed", logging.Int("count", total), logging.String("lib_dir", libDir))
	t.Succeed()
}
