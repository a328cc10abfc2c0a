package preflight

import (
	"context"

	"mediaflow/internal/config"
)

// Result reports the outcome of a single preflight check. Optional checks
// never count as failures.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDatabase(ctx, cfg),
	}

	switch cfg.Storage.Backend {
	case config.StorageLocal:
		results = append(results, CheckDirectoryAccess("Local storage", cfg.Storage.LocalDir))
	case config.StorageMinio:
		results = append(results, CheckMinio(ctx, cfg))
	}

	for _, dep := range CheckSystemDeps(cfg) {
		result := Result{Name: dep.Name, Passed: dep.Available, Optional: dep.Optional, Detail: dep.Detail}
		if dep.Available {
			result.Detail = dep.Command
		}
		results = append(results, result)
	}

	if cfg.Classifier.Mode == config.ClassifierHTTP {
		results = append(results, CheckHTTPEndpoint(ctx, "Classifier", cfg.Classifier.URL))
	}
	if cfg.Events.NATSURL != "" {
		results = append(results, CheckNATS(ctx, cfg.Events.NATSURL))
	}
	if cfg.Events.NtfyTopic != "" {
		results = append(results, CheckHTTPEndpoint(ctx, "ntfy", cfg.Events.NtfyTopic))
	}
	return results
}

// Failed returns the required results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
