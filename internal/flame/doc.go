// Package flame resolves and installs the mods referenced by a modpack
// manifest.
//
// ResolveTask fetches one metadata document per manifest file and fills in
// the file's download name and URL. Per-file failures are soft: every other
// file is still resolved, but the task as a whole reports failure so callers
// inspect File.Resolved instead of relying on the outcome alone. InstallTask
// downloads resolved files through the cache and copies them into an
// instance's mods folder; any failure there is fatal.
package flame
