package flame

import (
	"log/slog"

	"packfetch/internal/i18n"
	"packfetch/internal/netjob"
)

// DefaultMetaBaseURL serves per-file metadata documents.
const DefaultMetaBaseURL = "https://cursemeta.dries007.net"

type options struct {
	metaBaseURL string
	concurrency int
	printer     *i18n.Printer
	logger      *slog.Logger
}

// Option configures flame tasks.
type Option func(*options)

// WithMetaBaseURL overrides the metadata endpoint base.
func WithMetaBaseURL(base string) Option {
	return func(o *options) {
		if base != "" {
			o.metaBaseURL = base
		}
	}
}

// WithConcurrency bounds simultaneous fetches.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithPrinter selects the language of status and failure messages.
func WithPrinter(p *i18n.Printer) Option {
	return func(o *options) {
		if p != nil {
			o.printer = p
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{
		metaBaseURL: DefaultMetaBaseURL,
		concurrency: netjob.DefaultConcurrency,
		printer:     i18n.English,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
