package preflight

import (
	"context"
	"strings"

	"skelrec/internal/config"
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

	var results []Result

	results = append(results, CheckDirectoryAccess("Playback directory", cfg.Paths.PlaybackDir))
	results = append(results, CheckFreeSpace("Playback space", cfg.Paths.PlaybackDir, cfg.Recording.MinFreeMiB))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if strings.EqualFold(cfg.Sensor.Driver, config.DriverBridge) {
		results = append(results, CheckBridge(ctx, cfg.Sensor.BridgeAddress))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
