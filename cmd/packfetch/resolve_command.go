package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"packfetch/internal/flame"
	"packfetch/internal/task"
)

type resolvedFileJSON struct {
	ProjectID int64  `json:"project_id"`
	FileID    int64  `json:"file_id"`
	Required  bool   `json:"required"`
	Resolved  bool   `json:"resolved"`
	FileName  string `json:"file_name,omitempty"`
	URL       string `json:"url,omitempty"`
}

type resolveResultJSON struct {
	Manifest string             `json:"manifest"`
	Resolved int                `json:"resolved"`
	Failed   int                `json:"failed"`
	Error    string             `json:"error,omitempty"`
	Files    []resolvedFileJSON `json:"files"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var writePath string

	cmd := &cobra.Command{
		Use:   "resolve MANIFEST",
		Short: "Resolve the file names and download URLs of a modpack manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath := args[0]
			manifest, err := flame.LoadManifest(manifestPath)
			if err != nil {
				return err
			}

			sess, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			runErr := resolveManifest(cmd, sess, manifest)

			// Results that did arrive are kept even when some lookups failed.
			if target := strings.TrimSpace(writePath); target != "" {
				if err := manifest.Save(target); err != nil {
					return errors.Join(runErr, err)
				}
			}

			if jsonOutput {
				if err := writeJSON(cmd, resolveResult(manifestPath, manifest, runErr)); err != nil {
					return err
				}
				return runErr
			}

			out := cmd.OutOrStdout()
			if len(manifest.Files) == 0 {
				fmt.Fprintln(out, "Manifest lists no files")
				return runErr
			}
			fmt.Fprint(out, renderResolveTable(manifest))
			fmt.Fprintln(out)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().StringVarP(&writePath, "write", "w", "", "Save the manifest with resolution results to this path")
	return cmd
}

// resolveManifest runs a ResolveTask for manifest using the session's
// configuration.
func resolveManifest(cmd *cobra.Command, sess *session, manifest *flame.Manifest) error {
	t := flame.NewResolveTask(manifest, sess.client,
		flame.WithMetaBaseURL(sess.cfg.Flame.MetaBaseURL),
		flame.WithConcurrency(sess.cfg.Network.MaxConcurrent),
		flame.WithPrinter(sess.printer),
		flame.WithLogger(sess.logger),
	)
	return sess.runTask(cmd, t)
}

func resolveResult(path string, manifest *flame.Manifest, runErr error) resolveResultJSON {
	result := resolveResultJSON{
		Manifest: path,
		Files:    make([]resolvedFileJSON, 0, len(manifest.Files)),
	}
	for _, f := range manifest.Files {
		if f.Resolved {
			result.Resolved++
		} else {
			result.Failed++
		}
		result.Files = append(result.Files, resolvedFileJSON{
			ProjectID: f.ProjectID,
			FileID:    f.FileID,
			Required:  f.Required,
			Resolved:  f.Resolved,
			FileName:  f.FileName,
			URL:       f.URL,
		})
	}
	var failure *task.Failure
	switch {
	case errors.As(runErr, &failure):
		result.Error = failure.Message
	case runErr != nil:
		result.Error = runErr.Error()
	}
	return result
}

func renderResolveTable(manifest *flame.Manifest) string {
	rows := make([][]string, 0, len(manifest.Files))
	for _, f := range manifest.Files {
		status := "resolved"
		if !f.Resolved {
			status = "failed"
		}
		rows = append(rows, []string{
			strconv.FormatInt(f.ProjectID, 10),
			strconv.FormatInt(f.FileID, 10),
			yesNo(f.Required),
			status,
			f.FileName,
		})
	}
	return renderTable(
		[]string{"Project", "File", "Required", "Status", "File name"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	)
}
