// Package preflight provides readiness checks for the directories and remote
// endpoints packfetch depends on.
//
// The CLI "packfetch status" command runs RunAll and renders the results;
// individual checks are exported for callers that only need one of them.
package preflight
