package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"packfetch/internal/metacache"
)

type cacheEntryJSON struct {
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Digest    string    `json:"digest,omitempty"`
	ETag      string    `json:"etag,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Stale     bool      `json:"stale"`
}

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the download cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheEvictCommand(ctx))
	cacheCmd.AddCommand(newCacheVerifyCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list [NAMESPACE]",
		Short: "List cached files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := ""
			if len(args) == 1 {
				namespace = args[0]
			}
			return ctx.withCache(cmd, func(store *metacache.Store) error {
				entries, err := store.List(cmd.Context(), namespace)
				if err != nil {
					return err
				}
				if jsonOutput {
					out := make([]cacheEntryJSON, 0, len(entries))
					for _, e := range entries {
						out = append(out, cacheEntryJSON{
							Namespace: e.Namespace,
							Key:       e.Key,
							Path:      e.FullPath,
							Size:      e.Size,
							Digest:    e.Digest,
							ETag:      e.ETag,
							UpdatedAt: e.UpdatedAt,
							Stale:     e.Stale,
						})
					}
					return writeJSON(cmd, out)
				}

				w := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(w, "Cache is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.Namespace,
						e.Key,
						strconv.FormatInt(e.Size, 10),
						shortDigest(e.Digest),
						formatTime(e.UpdatedAt),
						yesNo(e.Stale),
					})
				}
				fmt.Fprintln(w, renderTable(
					[]string{"Namespace", "Key", "Size", "Digest", "Updated", "Stale"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	return cmd
}

func newCacheEvictCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "evict NAMESPACE KEY",
		Short: "Remove one cached file and its index record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(cmd, func(store *metacache.Store) error {
				if err := store.Evict(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %s/%s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newCacheVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [NAMESPACE]",
		Short: "Check cached files against their recorded digests",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := ""
			if len(args) == 1 {
				namespace = args[0]
			}
			return ctx.withCache(cmd, func(store *metacache.Store) error {
				results, err := store.Verify(cmd.Context(), namespace)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				rep := newReport(w)
				for _, r := range results {
					rep.check(r.Entry.Namespace+"/"+r.Entry.Key, r.OK, r.Problem)
				}
				bad := rep.failures
				fmt.Fprintf(w, "%d entries checked, %d problems\n", len(results), bad)
				if bad > 0 {
					return fmt.Errorf("cache verify: %d of %d entries failed", bad, len(results))
				}
				return nil
			})
		},
	}
}

// withCache opens the cache store for a maintenance command.
func (c *commandContext) withCache(cmd *cobra.Command, fn func(*metacache.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	store, err := metacache.Open(cmd.Context(), cfg.Paths.CacheDir, logger)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
