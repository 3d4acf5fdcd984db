// Package main hosts the packfetch CLI entrypoint and command graph.
//
// Commands load configuration once, open the shared download cache, and drive
// the resolve, install and FML library tasks through task.Run while rendering
// their status and progress on stderr. Interrupting a command aborts the task
// that is running.
package main
