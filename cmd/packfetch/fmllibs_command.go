package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"packfetch/internal/fmllibs"
	"packfetch/internal/instance"
)

func newFMLLibsCommand(ctx *commandContext) *cobra.Command {
	var tablePath string

	cmd := &cobra.Command{
		Use:   "fmllibs INSTANCE_DIR",
		Short: "Download the FML libraries a legacy Forge instance needs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instance.Load(args[0])
			if err != nil {
				return err
			}

			sess, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			t, err := newFMLLibsTask(sess, inst, tablePath)
			if err != nil {
				return err
			}
			if err := sess.runTask(cmd, t); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			required := t.Required()
			if len(required) == 0 {
				fmt.Fprintln(out, "No FML libraries needed")
				return nil
			}
			rows := make([][]string, 0, len(required))
			for _, lib := range required {
				rows = append(rows, []string{lib.Filename, t.SourceURL(lib)})
			}
			fmt.Fprintln(out, renderTable([]string{"Library", "Source"}, rows, nil))
			fmt.Fprintf(out, "Installed %d FML libraries into %s\n", len(required), inst.LibDir())
			return nil
		},
	}

	cmd.Flags().StringVar(&tablePath, "table", "", "TOML file replacing the built-in version table")
	return cmd
}

// newFMLLibsTask builds the library task for inst. An empty tablePath falls
// back to the configured table, then the built-in one.
func newFMLLibsTask(sess *session, inst *instance.Instance, tablePath string) (*fmllibs.Task, error) {
	opts := []fmllibs.Option{
		fmllibs.WithBaseURLs(sess.cfg.FMLLibs.SelfHostedBaseURL, sess.cfg.FMLLibs.UpstreamBaseURL),
		fmllibs.WithConcurrency(sess.cfg.Network.MaxConcurrent),
		fmllibs.WithPrinter(sess.printer),
		fmllibs.WithLogger(sess.logger),
	}

	path := strings.TrimSpace(tablePath)
	if path == "" {
		path = sess.cfg.FMLLibs.TablePath
	}
	table, err := loadFMLTable(path)
	if err != nil {
		return nil, err
	}
	opts = append(opts, fmllibs.WithTable(table))

	return fmllibs.New(inst, sess.client, sess.cache, opts...), nil
}
