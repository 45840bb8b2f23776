// Package preflight verifies the daemon's runtime environment before it
// starts accepting work: directory access, free disk space, and the optional
// status cache backend.
package preflight

import (
	"context"

	"lectern/internal/config"
	"lectern/internal/statuscache"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks applicable to the given configuration.
func RunAll(ctx context.Context, cfg *config.Config, cache *statuscache.Cache) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Data directory space", cfg.Paths.DataDir),
	}

	if cfg.StatusCache.Enabled {
		results = append(results, CheckStatusCache(ctx, cache))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
