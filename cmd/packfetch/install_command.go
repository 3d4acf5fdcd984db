package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"packfetch/internal/flame"
	"packfetch/internal/instance"
	"packfetch/internal/logging"
)

func newInstallCommand(ctx *commandContext) *cobra.Command {
	var instanceDir string
	var skipFMLLibs bool

	cmd := &cobra.Command{
		Use:   "install MANIFEST",
		Short: "Download a modpack's mods into an instance",
		Long: "Resolves any unresolved manifest entries, downloads every resolved mod into the\n" +
			"cache and copies it into the instance mods folder. Legacy Forge instances also\n" +
			"receive their FML libraries unless --skip-fmllibs is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := strings.TrimSpace(instanceDir)
			if dir == "" {
				return fmt.Errorf("--instance is required")
			}
			inst, err := instance.Load(dir)
			if err != nil {
				return err
			}
			manifest, err := flame.LoadManifest(args[0])
			if err != nil {
				return err
			}

			sess, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			if pending := manifest.Unresolved(); len(pending) > 0 {
				sess.logger.Info("resolving manifest before install", logging.Int("unresolved", len(pending)))
				if err := resolveManifest(cmd, sess, manifest); err != nil {
					return err
				}
			}

			install := flame.NewInstallTask(manifest, sess.client, sess.cache, inst.ModsDir(),
				flame.WithConcurrency(sess.cfg.Network.MaxConcurrent),
				flame.WithPrinter(sess.printer),
				flame.WithLogger(sess.logger),
			)
			if err := sess.runTask(cmd, install); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Installed %d mods into %s\n", countResolved(manifest), inst.ModsDir())

			if skipFMLLibs {
				return nil
			}
			libs, err := newFMLLibsTask(sess, inst, "")
			if err != nil {
				return err
			}
			if err := sess.runTask(cmd, libs); err != nil {
				return err
			}
			if n := len(libs.Required()); n > 0 {
				fmt.Fprintf(out, "Installed %d FML libraries into %s\n", n, inst.LibDir())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&instanceDir, "instance", "i", "", "Instance directory containing instance.toml")
	cmd.Flags().BoolVar(&skipFMLLibs, "skip-fmllibs", false, "Do not materialize legacy FML libraries")
	return cmd
}

func countResolved(manifest *flame.Manifest) int {
	n := 0
	for _, f := range manifest.Files {
		if f.Resolved {
			n++
		}
	}
	return n
}
