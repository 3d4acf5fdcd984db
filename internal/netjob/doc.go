// Package netjob runs a set of fetches as one unit.
//
// A Job launches every Download concurrently (bounded by its concurrency
// limit), emits one Progress event per completed download and finishes with
// exactly one terminal event once every download has reported. What a failed
// download means is left to the caller; the job only reports which ones
// failed and why.
package netjob
