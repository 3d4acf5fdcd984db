package task

import "context"

// Observer receives non-terminal events while Run drives a task.
type Observer func(Event)

// Run executes t and blocks until its terminal event. Canceling ctx aborts
// the task; Run still waits for the terminal event. A failed task yields a
// *Failure.
func Run(ctx context.Context, t Task, observe Observer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	events := t.Events()
	t.Execute(taskCtx)

	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			t.Abort()
		case ev, ok := <-events:
			if !ok {
				return ErrNotStarted
			}
			switch ev.Kind {
			case EventSucceeded:
				return nil
			case EventFailed:
				return &Failure{Message: ev.Message, Err: ev.Err}
			default:
				if observe != nil {
					observe(ev)
				}
			}
		}
	}
}
