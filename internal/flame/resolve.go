package flame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"packfetch/internal/fetch"
	"packfetch/internal/i18n"
	"packfetch/internal/jsonreq"
	"packfetch/internal/logging"
	"packfetch/internal/netjob"
	"packfetch/internal/services"
	"packfetch/internal/task"
)

// MetadataURL builds the metadata document URL for one manifest file.
func MetadataURL(base string, projectID, fileID int64) string {
	return fmt.Sprintf("%s/%d/%d.json", strings.TrimRight(base, "/"), projectID, fileID)
}

// ResolveTask resolves every file of a manifest in place.
//
// The task owns write access to the manifest from Execute until its terminal
// event; callers must not read or modify manifest files in between.
type ResolveTask struct {
	*task.Base

	manifest *Manifest
	fetcher  fetch.Fetcher
	opts     options
	logger   *slog.Logger

	mu  sync.Mutex
	job *netjob.Job
}

// NewResolveTask creates a task resolving manifest's files through fetcher.
func NewResolveTask(manifest *Manifest, fetcher fetch.Fetcher, opts ...Option) *ResolveTask {
	o := buildOptions(opts)
	return &ResolveTask{
		Base:     task.NewBase("resolve"),
		manifest: manifest,
		fetcher:  fetcher,
		opts:     o,
		logger:   logging.NewComponentLogger(o.logger, "flame"),
	}
}

// Execute dispatches one metadata fetch per manifest file.
func (t *ResolveTask) Execute(ctx context.Context) {
	if !t.Start() {
		return
	}
	ctx = services.WithTaskName(services.WithTaskID(ctx, t.ID()), t.Name())
	logger := logging.WithContext(ctx, t.logger)

	files := t.manifest.Files
	t.SetStatus(t.opts.printer.Sprintf(i18n.ResolvingMods))
	t.SetProgress(0, len(files))

	job := netjob.New("Mod id resolver", t.fetcher,
		netjob.WithConcurrency(t.opts.concurrency),
		netjob.WithLogger(t.opts.logger),
	)
	results := make([]*netjob.Download, len(files))
	for i := range files {
		results[i] = netjob.Bytes(MetadataURL(t.opts.metaBaseURL, files[i].ProjectID, files[i].FileID))
		job.Add(results[i])
	}

	t.mu.Lock()
	t.job = job
	events, err := job.Start(ctx)
	t.mu.Unlock()
	if err != nil {
		t.Fail(t.opts.printer.Sprintf(i18n.ResolveSomeFailed), err)
		return
	}

	logger.Info("resolving manifest files", logging.Int("files", len(files)))
	go t.watch(logger, events, results)
}

// CanAbort is true while metadata fetches are in flight.
func (t *ResolveTask) CanAbort() bool {
	t.mu.Lock()
	job := t.job
	t.mu.Unlock()
	return job != nil && job.State() == netjob.StateRunning && !t.Finished()
}

// Abort cancels in-flight fetches. Results that already arrived are still
// applied; the task then fails.
func (t *ResolveTask) Abort() bool {
	if !t.CanAbort() {
		return false
	}
	t.mu.Lock()
	job := t.job
	t.mu.Unlock()
	return t.AbortWith(job.Abort)
}

func (t *ResolveTask) watch(logger *slog.Logger, events <-chan netjob.Event, results []*netjob.Download) {
	for ev := range events {
		if !ev.Terminal() {
			t.SetProgress(ev.Current, ev.Total)
			continue
		}
		aborted := ev.Kind == netjob.EventAborted
		failed := t.apply(logger, results, aborted)
		switch {
		case aborted:
			t.Fail(t.opts.printer.Sprintf(i18n.ResolveAborted),
				services.Wrap(services.ErrAborted, "flame", "resolve", fmt.Sprintf("%d files unresolved", failed), nil))
		case failed > 0:
			t.Fail(t.opts.printer.Sprintf(i18n.ResolveSomeFailed),
				services.Wrap(services.ErrValidation, "flame", "resolve", fmt.Sprintf("%d of %d files unresolved", failed, len(results)), nil))
		default:
			logger.Info("manifest resolved", logging.Int("files", len(results)))
			t.Succeed()
		}
	}
}

// apply walks results in index order so failure attribution is deterministic
// regardless of completion order. It returns the number of failed files.
func (t *ResolveTask) apply(logger *slog.Logger, results []*netjob.Download, aborted bool) int {
	failed := 0
	for i, result := range results {
		file := &t.manifest.Files[i]
		if aborted && errors.Is(result.Err(), services.ErrAborted) {
			failed++
			continue
		}
		if !t.applyOne(logger, file, result) {
			failed++
		}
	}
	return failed
}

func (t *ResolveTask) applyOne(logger *slog.Logger, file *File, result *netjob.Download) bool {
	attrs := []logging.Attr{
		logging.Int64("project_id", file.ProjectID),
		logging.Int64("file_id", file.FileID),
	}
	if result.Err() != nil {
		attrs = append(attrs, logging.String("fetch_error", result.Err().Error()))
	}

	obj, err := jsonreq.RequireObject(result.Data())
	if err != nil {
		logging.ErrorWithContext(logger, "mod resolve failed: parsing error", "mod_resolve_failed",
			append(attrs,
				logging.Error(err),
				logging.String("json", string(result.Data())),
				logging.String(logging.FieldErrorHint, "check the metadata endpoint and the manifest ids"),
			)...)
		return false
	}
	if obj.Has("code") {
		if code, err := jsonreq.RequireInt(obj, "code"); err == nil {
			attrs = append(attrs, logging.Int64("code", code))
		}
		logging.ErrorWithContext(logger, "mod resolve failed: negative result", "mod_resolve_failed",
			append(attrs,
				logging.String("json", string(result.Data())),
				logging.String(logging.FieldErrorHint, "the project or file does not exist on the metadata server"),
			)...)
		return false
	}

	name, err := jsonreq.RequireString(obj, "FileNameOnDisk")
	if err == nil {
		var url string
		url, err = jsonreq.RequireString(obj, "DownloadURL")
		if err == nil {
			file.FileName = name
			file.URL = url
			file.Resolved = true
			return true
		}
	}
	logging.ErrorWithContext(logger, "mod resolve failed: parsing error", "mod_resolve_failed",
		append(attrs,
			logging.Error(err),
			logging.String("json", string(result.Data())),
		)...)
	return false
}
