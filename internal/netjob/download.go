package netjob

import (
	"context"

	"packfetch/internal/fetch"
	"packfetch/internal/metacache"
	"packfetch/internal/services"
)

// Download describes one fetch, either into memory or into a cache entry.
// Data and Err are valid once the owning job has emitted its terminal event.
type Download struct {
	url   string
	name  string
	entry *metacache.Entry

	data []byte
	err  error
}

// Bytes fetches url into a memory buffer.
func Bytes(url string) *Download {
	return &Download{url: url, name: url}
}

// Cached fetches url into entry. Present entries are not downloaded again.
func Cached(url string, entry *metacache.Entry) *Download {
	name := url
	if entry != nil && entry.Key != "" {
		name = entry.Key
	}
	return &Download{url: url, name: name, entry: entry}
}

// Name identifies the download in failure lists: the entry key for cached
// downloads, otherwise the URL.
func (d *Download) Name() string { return d.name }

func (d *Download) URL() string { return d.url }

// Data returns the fetched bytes of a memory download. For HTTP error
// statuses this is the error body.
func (d *Download) Data() []byte { return d.data }

func (d *Download) Err() error { return d.err }

func (d *Download) Entry() *metacache.Entry { return d.entry }

func (d *Download) run(ctx context.Context, fetcher fetch.Fetcher) {
	if err := ctx.Err(); err != nil {
		d.err = services.Wrap(services.ErrAborted, "netjob", "download", d.name, err)
		return
	}
	if d.entry != nil {
		d.err = fetcher.FetchEntry(ctx, d.url, d.entry)
		return
	}
	d.data, d.err = fetcher.FetchBytes(ctx, d.url)
}
