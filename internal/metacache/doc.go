// Package metacache stores downloaded files under <root>/<namespace>/<key>
// and indexes their metadata in a SQLite database.
//
// An Entry is stale when its file is absent; callers fetch stale entries and
// record the result with UpdateEntry. Writers of the same entry serialize on
// a file lock next to the entry so concurrent processes sharing a cache
// directory never interleave partial writes.
package metacache
