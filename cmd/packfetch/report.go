package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type checkState int

const (
	checkInfo checkState = iota
	checkPass
	checkFail
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiCyan  = "\x1b[36m"
	ansiBold  = "\x1b[1m"
)

const reportLabelWidth = 28

// report writes labelled check results grouped under headings, as printed by
// `status` and `cache verify`. Colors are used only on a terminal.
type report struct {
	w        io.Writer
	colorize bool
	failures int
	sections int
}

func newReport(w io.Writer) *report {
	return &report{w: w, colorize: isTerminal(w)}
}

func (r *report) section(title string) {
	if r.sections > 0 {
		fmt.Fprintln(r.w)
	}
	r.sections++
	fmt.Fprintln(r.w, r.paint(ansiBold, title))
}

func (r *report) info(label, value string) {
	r.line(checkInfo, label, value)
}

// check records a pass or a failure with an optional detail.
func (r *report) check(label string, passed bool, detail string) {
	state := checkPass
	if !passed {
		state = checkFail
		r.failures++
	}
	r.line(state, label, detail)
}

func (r *report) line(state checkState, label, detail string) {
	mark, color := "-", ansiCyan
	switch state {
	case checkPass:
		mark, color = "ok", ansiGreen
	case checkFail:
		mark, color = "FAIL", ansiRed
	}
	text := fmt.Sprintf("  %-4s %-*s", mark, reportLabelWidth, label)
	if detail != "" {
		text += " " + detail
	}
	fmt.Fprintln(r.w, r.paint(color, text))
}

func (r *report) paint(color, text string) string {
	if !r.colorize {
		return text
	}
	return color + text + ansiReset
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
