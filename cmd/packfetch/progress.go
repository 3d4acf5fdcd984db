package main

import (
	"fmt"
	"io"
	"strings"

	"packfetch/internal/logging"
	"packfetch/internal/task"
)

// progressRenderer prints task status and progress. On a terminal it
// redraws a single line; otherwise it prints sampled lines so redirected
// output stays readable.
type progressRenderer struct {
	out         io.Writer
	interactive bool
	sampler     *logging.ProgressSampler

	status  string
	current int
	total   int
	drawn   bool
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	return &progressRenderer{
		out:         out,
		interactive: isTerminal(out),
		sampler:     logging.NewProgressSampler(25),
	}
}

func (r *progressRenderer) observe(ev task.Event) {
	switch ev.Kind {
	case task.EventStatus:
		r.status = strings.TrimSpace(ev.Message)
		r.current, r.total = 0, 0
	case task.EventProgress:
		r.current, r.total = ev.Current, ev.Total
	default:
		return
	}

	if r.interactive {
		fmt.Fprintf(r.out, "\r\x1b[2K%s", r.line())
		r.drawn = true
		return
	}
	if r.sampler.ShouldLog(r.current, r.total, r.status) {
		fmt.Fprintln(r.out, r.line())
	}
}

func (r *progressRenderer) line() string {
	if r.total <= 0 {
		return r.status
	}
	return fmt.Sprintf("%s [%d/%d]", r.status, r.current, r.total)
}

// finish terminates an in-place line so later output starts cleanly.
func (r *progressRenderer) finish() {
	if r.drawn {
		fmt.Fprintln(r.out)
		r.drawn = false
	}
	r.sampler.Reset()
}
