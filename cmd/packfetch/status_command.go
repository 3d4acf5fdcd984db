package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"packfetch/internal/fmllibs"
	"packfetch/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories and remote endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rep := newReport(cmd.OutOrStdout())

			rep.section("Configuration")
			rep.info("Config file", ctx.configPath)
			rep.info("Config file present", yesNo(ctx.configSeen))
			rep.info("Cache directory", cfg.Paths.CacheDir)
			rep.info("Max concurrent downloads", fmt.Sprint(cfg.Network.MaxConcurrent))

			tableSource := "built-in"
			if cfg.FMLLibs.TablePath != "" {
				tableSource = cfg.FMLLibs.TablePath
			}
			table, tableErr := loadFMLTable(cfg.FMLLibs.TablePath)
			if tableErr != nil {
				rep.check("FML library table", false, tableErr.Error())
			} else {
				rep.info("FML library table", tableSource)
				rep.info("FML versions", strings.Join(table.Versions(), ", "))
			}

			rep.section("Preflight")
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				rep.check(r.Name, r.Passed, r.Detail)
			}

			if preflight.Failed(results) {
				return fmt.Errorf("preflight checks failed")
			}
			if tableErr != nil {
				return fmt.Errorf("load FML library table: %w", tableErr)
			}
			return nil
		},
	}
}

func loadFMLTable(path string) (fmllibs.Table, error) {
	if path == "" {
		return fmllibs.DefaultTable(), nil
	}
	return fmllibs.LoadTable(path)
}
