package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"packfetch/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show, create, or check the packfetch configuration",
	}
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration and show the settings it selects",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configInitTarget(targetPath)
			if err != nil {
				return err
			}
			if err := writeSampleConfig(target, overwrite); err != nil {
				return err
			}

			// Reload the file so the table shows the values a later run will use,
			// including environment overrides.
			cfg, _, _, err := config.Load(target)
			if err != nil {
				return fmt.Errorf("reload sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			writeSettings(out, cfg)
			fmt.Fprintln(out, "Mod files and Forge libraries are cached under cache_dir.")
			fmt.Fprintln(out, "Point meta_base_url or the [fmllibs] URLs at a mirror if the public hosts are unreachable.")
			fmt.Fprintf(out, "Run `packfetch --config %s status` to check the endpoints.\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func configInitTarget(flagValue string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

func writeSampleConfig(target string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if !overwrite {
		_, err := os.Stat(target)
		switch {
		case err == nil:
			return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("check config path: %w", err)
		}
	}
	if err := config.CreateSample(target); err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	return nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if ctx.configSeen {
				fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			} else {
				fmt.Fprintf(out, "No file at %s; built-in defaults apply\n", ctx.configPath)
			}
			writeSettings(out, cfg)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// settingsRows lists the values that decide where files come from and where
// they land.
func settingsRows(cfg *config.Config) [][]string {
	table := cfg.FMLLibs.TablePath
	if table == "" {
		table = "(built-in)"
	}
	logDir := cfg.Paths.LogDir
	if logDir == "" {
		logDir = "(stderr only)"
	}
	return [][]string{
		{"cache_dir", cfg.Paths.CacheDir},
		{"instances_dir", cfg.Paths.InstancesDir},
		{"log_dir", logDir},
		{"max_concurrent", fmt.Sprint(cfg.Network.MaxConcurrent)},
		{"request_timeout", cfg.RequestTimeout().String()},
		{"meta_base_url", cfg.Flame.MetaBaseURL},
		{"self_hosted_base_url", cfg.FMLLibs.SelfHostedBaseURL},
		{"upstream_base_url", cfg.FMLLibs.UpstreamBaseURL},
		{"table_path", table},
	}
}

func writeSettings(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, renderTable([]string{"Setting", "Value"}, settingsRows(cfg), nil))
}
