package netjob

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"packfetch/internal/fetch"
	"packfetch/internal/logging"
	"packfetch/internal/services"
)

// DefaultConcurrency bounds simultaneous fetches when no option is given.
const DefaultConcurrency = 6

// ErrAlreadyStarted is returned by Start on a job that has run before.
var ErrAlreadyStarted = errors.New("netjob: job already started")

// State is the aggregate job state.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// EventKind tags job events.
type EventKind int

const (
	EventProgress EventKind = iota
	EventSucceeded
	EventFailed
	EventAborted
)

// Event is emitted on the channel returned by Start. Failed lists download
// names in submission order; Reason is the first failure's error text.
type Event struct {
	Kind    EventKind
	Current int
	Total   int
	Failed  []string
	Reason  string
}

// Terminal reports whether e ends the job.
func (e Event) Terminal() bool {
	return e.Kind != EventProgress
}

// Job owns a batch of downloads launched together.
type Job struct {
	id          string
	name        string
	fetcher     fetch.Fetcher
	concurrency int
	logger      *slog.Logger

	downloads []*Download

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	failed []string
}

// Option configures a job.
type Option func(*Job)

// WithConcurrency bounds the number of simultaneous fetches.
func WithConcurrency(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		j.logger = logger
	}
}

// New creates an empty job.
func New(name string, fetcher fetch.Fetcher, opts ...Option) *Job {
	j := &Job{
		id:          uuid.NewString(),
		name:        name,
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = logging.NewComponentLogger(j.logger, "netjob").With(
		logging.String("job", name),
		logging.String("job_id", j.id),
	)
	return j
}

// ID returns the job's unique identifier.
func (j *Job) ID() string { return j.id }

// Add appends a download. Downloads added after Start are ignored.
func (j *Job) Add(d *Download) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StatePending || d == nil {
		return
	}
	j.downloads = append(j.downloads, d)
}

// Len reports the number of downloads.
func (j *Job) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.downloads)
}

// Downloads returns the downloads in submission order.
func (j *Job) Downloads() []*Download {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*Download(nil), j.downloads...)
}

// State returns the aggregate state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// FailedFiles returns the names of failed downloads once the job has finished.
func (j *Job) FailedFiles() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.failed...)
}

// Start launches every download and returns the event channel. The channel
// receives Progress events followed by exactly one terminal event and is then
// closed. Canceling ctx has the same effect as Abort.
func (j *Job) Start(ctx context.Context) (<-chan Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StatePending {
		return nil, ErrAlreadyStarted
	}
	j.state = StateRunning

	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	downloads := append([]*Download(nil), j.downloads...)
	events := make(chan Event, len(downloads)+1)
	go j.run(jobCtx, downloads, events)
	return events, nil
}

// Abort cancels outstanding fetches. It returns false when the job is not
// running.
func (j *Job) Abort() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning || j.cancel == nil {
		return false
	}
	j.cancel()
	j.logger.Info("job abort requested")
	return true
}

func (j *Job) run(ctx context.Context, downloads []*Download, events chan<- Event) {
	defer close(events)
	total := len(downloads)

	if total > 0 {
		done := make(chan int, total)
		var g errgroup.Group
		g.SetLimit(j.concurrency)

		go func() {
			for i, d := range downloads {
				if ctx.Err() != nil {
					d.run(ctx, j.fetcher)
					done <- i
					continue
				}
				g.Go(func() error {
					d.run(ctx, j.fetcher)
					done <- i
					return nil
				})
			}
		}()

		for completed := 1; completed <= total; completed++ {
			i := <-done
			if err := downloads[i].err; err != nil {
				j.logger.Debug("download failed",
					logging.String("download", downloads[i].name),
					logging.String("error_kind", services.Classify(err)),
					logging.Error(err),
				)
			}
			if ctx.Err() == nil {
				events <- Event{Kind: EventProgress, Current: completed, Total: total}
			}
		}
		_ = g.Wait()
	}

	final := j.finish(ctx, downloads)
	events <- final
}

func (j *Job) finish(ctx context.Context, downloads []*Download) Event {
	var failed []string
	var reason string
	for _, d := range downloads {
		if d.err == nil {
			continue
		}
		failed = append(failed, d.name)
		if reason == "" {
			reason = d.err.Error()
		}
	}

	event := Event{Total: len(downloads), Current: len(downloads) - len(failed), Failed: failed, Reason: reason}
	state := StateSucceeded
	switch {
	case ctx.Err() != nil:
		state = StateAborted
		event.Kind = EventAborted
		if event.Reason == "" {
			event.Reason = services.ErrAborted.Error()
		}
	case len(failed) > 0:
		state = StateFailed
		event.Kind = EventFailed
	default:
		event.Kind = EventSucceeded
	}

	j.mu.Lock()
	j.state = state
	j.failed = failed
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	j.logger.Debug("job finished",
		logging.String("state", state.String()),
		logging.Int("total", len(downloads)),
		logging.Int("failed", len(failed)),
	)
	return event
}
