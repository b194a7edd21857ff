package preflight

import (
	"context"

	"mecadoi/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCredentials(cfg.Crossref.Username, cfg.Crossref.Password),
		CheckEndpoint(ctx, "Crossref deposit", cfg.Crossref.DepositURL),
		CheckEndpoint(ctx, "DOI resolver", cfg.Crossref.ResolverURL),
	}

	if cfg.EEB.Enabled {
		results = append(results, CheckEndpoint(ctx, "Early Evidence Base", cfg.EEB.BaseURL))
	}

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
