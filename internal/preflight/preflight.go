package preflight

import (
	"context"

	"packfetch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every readiness check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("Instances directory", cfg.Paths.InstancesDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	timeout := cfg.RequestTimeout()
	agent := cfg.Network.UserAgent
	results = append(results,
		CheckEndpoint(ctx, "Mod metadata server", cfg.Flame.MetaBaseURL, agent, timeout),
		CheckEndpoint(ctx, "FML libraries (self-hosted)", cfg.FMLLibs.SelfHostedBaseURL, agent, timeout),
		CheckEndpoint(ctx, "FML libraries (upstream)", cfg.FMLLibs.UpstreamBaseURL, agent, timeout),
	)
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
