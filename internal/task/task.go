// Package task defines the cancellable task contract shared by the resolve,
// install and library materialization tasks.
//
// A task reports zero or more Status and Progress events followed by exactly
// one terminal Succeeded or Failed event, after which its event channel is
// closed. Aborted work always terminates with Failed.
package task

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Task is a unit of asynchronous work with a single terminal outcome.
type Task interface {
	// Execute starts the task and returns without waiting for it to finish.
	Execute(ctx context.Context)
	// Events returns the channel the task reports on.
	Events() <-chan Event
	CanAbort() bool
	// Abort requests cancellation. It returns false when CanAbort is false.
	Abort() bool
}

// EventKind tags task events.
type EventKind int

const (
	EventStatus EventKind = iota
	EventProgress
	EventSucceeded
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventProgress:
		return "progress"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one task notification. Message carries the status text or the
// translated failure message; Err carries the underlying cause of a failure.
type Event struct {
	Kind    EventKind
	Message string
	Current int
	Total   int
	Err     error
}

// Terminal reports whether e is the task's final event.
func (e Event) Terminal() bool {
	return e.Kind == EventSucceeded || e.Kind == EventFailed
}

// Failure is the error returned by Run when a task fails.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ErrNotStarted is returned by Run when a task closes its events without a
// terminal event.
var ErrNotStarted = errors.New("task ended without a result")

const eventBuffer = 64

// Base provides the event plumbing for task implementations: it guarantees
// a single terminal event, drops progress once the task is aborting, and keeps
// a snapshot of the latest status and progress for polling callers.
//
// Events are queued under the same lock that guards the task state and
// forwarded to the channel by a pump goroutine, so queueing never blocks and
// nothing is queued after MarkAborting or a terminal event.
type Base struct {
	id     string
	name   string
	events chan Event

	mu       sync.Mutex
	started  bool
	finished bool
	aborting bool
	status   string
	current  int
	total    int
	queue    []Event
	pumping  bool
	wake     chan struct{}
}

// NewBase creates the plumbing for a task named name.
func NewBase(name string) *Base {
	return &Base{
		id:     uuid.NewString(),
		name:   name,
		events: make(chan Event, eventBuffer),
		wake:   make(chan struct{}, 1),
	}
}

func (b *Base) ID() string   { return b.id }
func (b *Base) Name() string { return b.name }

// Events returns the task's event channel.
func (b *Base) Events() <-chan Event {
	return b.events
}

// Start marks the task started. It returns false if it already was.
func (b *Base) Start() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return false
	}
	b.started = true
	return true
}

// MarkAborting suppresses further progress events. Progress queued before it
// returns is still delivered.
func (b *Base) MarkAborting() {
	b.mu.Lock()
	b.aborting = true
	b.mu.Unlock()
}

// AbortWith runs cancel under the task lock and marks the task aborting only
// when cancel reports success. Progress is suppressed from that point on,
// while a refused cancel leaves the task untouched.
func (b *Base) AbortWith(cancel func() bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished || !cancel() {
		return false
	}
	b.aborting = true
	return true
}

// Aborting reports whether the task was marked aborting.
func (b *Base) Aborting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborting
}

// SetStatus records and emits a status change.
func (b *Base) SetStatus(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.status = text
	b.enqueueLocked(Event{Kind: EventStatus, Message: text})
}

// SetProgress records and emits a progress tick.
func (b *Base) SetProgress(current, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished || b.aborting {
		return
	}
	b.current, b.total = current, total
	b.enqueueLocked(Event{Kind: EventProgress, Current: current, Total: total})
}

// Succeed emits the terminal success event.
func (b *Base) Succeed() {
	b.terminate(Event{Kind: EventSucceeded})
}

// Fail emits the terminal failure event.
func (b *Base) Fail(message string, err error) {
	b.terminate(Event{Kind: EventFailed, Message: message, Err: err})
}

// Finished reports whether a terminal event was emitted.
func (b *Base) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

// Status returns the latest status text.
func (b *Base) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Progress returns the latest progress tick.
func (b *Base) Progress() (current, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.total
}

func (b *Base) terminate(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	b.enqueueLocked(ev)
}

// enqueueLocked must be called with b.mu held.
func (b *Base) enqueueLocked(ev Event) {
	b.queue = append(b.queue, ev)
	if !b.pumping {
		b.pumping = true
		go b.pump()
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// pump forwards queued events in order and closes the channel after the
// terminal event.
func (b *Base) pump() {
	for {
		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		b.mu.Unlock()

		for _, ev := range batch {
			b.events <- ev
			if ev.Terminal() {
				close(b.events)
				return
			}
		}
		<-b.wake
	}
}
